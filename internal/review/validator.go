// Package review validates submitted case texts against their locked
// TOON target: every personal name of the target must appear in the
// text, no schema or enum token may leak into it, and near-duplicates
// of earlier cases are flagged.
package review

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"caseforge/internal/frtext"
)

const (
	// shingleSize is the n-gram width of the similarity measure.
	shingleSize = 3
	// shortTextRunes is the warning threshold for very short cases.
	shortTextRunes = 60
	// maxSemicolons and maxColons bound the separator counts; beyond
	// them the text reads as a field dump.
	maxSemicolons = 10
	maxColons     = 10
)

var (
	snakeCaseRe    = regexp.MustCompile(`\b[a-z]+_[a-z_]+\b`)
	capsEnumRe     = regexp.MustCompile(`\b[A-Z]{2,}(?:_[A-Z0-9]{2,})+\b`)
	pythonBoolRe   = regexp.MustCompile(`\b(?:True|False)\b`)
	pathDumpRe     = regexp.MustCompile(`\s>\s`)
	bareEnumRe     = regexp.MustCompile(`\b(?:CELIBATAIRE|MARIE|PACSE|DIVORCE|VEUF|JOURS|MOIS|ANNEES)\b`)
	schemaPhraseRe = regexp.MustCompile(`(?i)\b(?:famille\s+defunt|contexte\s+procedure|patrimoine\s+actifs?|liberalites?\s+donations?)\b`)
	defuntFieldsRe = regexp.MustCompile(`(?i)\bdefunt\s+(?:date\s+deces|date\s+naissance|age\s+au\s+deces)\b`)
)

// MissingNamesError rejects a submission whose text omits personal
// names carried by the target.
type MissingNamesError struct {
	Names []string
}

func (e *MissingNamesError) Error() string {
	preview := strings.Join(e.Names, ", ")
	if len(e.Names) > 3 {
		preview = strings.Join(e.Names[:3], ", ") + ", …"
	}
	return fmt.Sprintf("incohérence texte/target_toon: noms absents de l'énoncé (%s)", preview)
}

// LeakageError rejects a submission whose text leaks schema structure,
// enum codes or raw serialization artifacts.
type LeakageError struct {
	Category string
	Reason   string
}

func (e *LeakageError) Error() string {
	return e.Reason
}

// Reference is one text the similarity measure compares against: a seed
// case or a previously accepted submission.
type Reference struct {
	ID   string
	Text string
}

// Report is the validation metadata stored with each accepted
// submission.
type Report struct {
	WordCount        int      `json:"word_count"`
	CharCount        int      `json:"char_count"`
	ContainsDigits   bool     `json:"contains_digits"`
	ExactDuplicate   bool     `json:"exact_duplicate"`
	MaxSimilarity    float64  `json:"max_similarity"`
	ClosestReference string   `json:"closest_reference,omitempty"`
	Warnings         []string `json:"warnings"`
}

// Validator holds the seed corpus and a bounded window of recent
// accepted submissions. Safe for concurrent use: validation runs
// outside the server's state lock.
type Validator struct {
	threshold float64
	window    int
	seeds     []Reference

	mu     sync.RWMutex
	recent []Reference
}

// New builds a validator over the seed corpus. threshold is the
// similarity warning level, window the number of recent submissions
// retained for comparison.
func New(threshold float64, window int, seeds []Reference) *Validator {
	if threshold <= 0 {
		threshold = 0.9
	}
	if window <= 0 {
		window = 50
	}
	return &Validator{threshold: threshold, window: window, seeds: seeds}
}

// Remember records an accepted submission in the comparison window.
func (v *Validator) Remember(id, text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.recent = append(v.recent, Reference{ID: id, Text: text})
	if len(v.recent) > v.window {
		v.recent = v.recent[len(v.recent)-v.window:]
	}
}

// Validate runs the full check order: name coverage, leakage, then the
// soft similarity assessment. The report is returned even on rejection.
func (v *Validator) Validate(caseText string, decodedTarget map[string]any) (Report, error) {
	report := v.assess(caseText)
	if missing := MissingNames(caseText, decodedTarget); len(missing) > 0 {
		return report, &MissingNamesError{Names: missing}
	}
	if err := CheckLeakage(caseText); err != nil {
		return report, err
	}
	return report, nil
}

// CollectNames gathers the personal names of a decoded target: string
// leaves keyed `nom` or `*_nom`, and string list elements under a
// `*_noms` key, deduplicated by cleaned form in visit order.
func CollectNames(target map[string]any) []string {
	var names []string
	var visit func(node any, parentKey string)
	visit = func(node any, parentKey string) {
		switch n := node.(type) {
		case map[string]any:
			for key, value := range n {
				keyNorm := strings.ToLower(key)
				if text, ok := value.(string); ok {
					if keyNorm == "nom" || strings.HasSuffix(keyNorm, "_nom") || strings.HasSuffix(keyNorm, "_noms") {
						if trimmed := strings.TrimSpace(text); trimmed != "" {
							names = append(names, trimmed)
						}
					}
				}
				visit(value, keyNorm)
			}
		case []any:
			if strings.HasSuffix(parentKey, "_noms") {
				for _, item := range n {
					if text, ok := item.(string); ok {
						if trimmed := strings.TrimSpace(text); trimmed != "" {
							names = append(names, trimmed)
						}
					}
				}
			}
			for _, item := range n {
				visit(item, parentKey)
			}
		}
	}
	visit(target, "")

	// Map iteration above makes the raw order unstable; sorting by the
	// cleaned form keeps rejection messages deterministic.
	deduped := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		key := frtext.CleanName(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, name)
	}
	sort.Slice(deduped, func(i, j int) bool {
		return frtext.CleanName(deduped[i]) < frtext.CleanName(deduped[j])
	})
	return deduped
}

// MissingNames returns the target names absent from the case text.
func MissingNames(caseText string, decodedTarget map[string]any) []string {
	normalized := frtext.NormalizeKey(caseText)
	var missing []string
	for _, name := range CollectNames(decodedTarget) {
		if !nameAppears(name, normalized) {
			missing = append(missing, name)
		}
	}
	return missing
}

// nameAppears accepts a cleaned substring match, a long-enough family
// name alone, or the family name together with any earlier token.
func nameAppears(name, normalizedText string) bool {
	cleaned := frtext.CleanName(name)
	if cleaned == "" {
		return true
	}
	if strings.Contains(normalizedText, cleaned) {
		return true
	}
	var tokens []string
	for _, token := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(token) >= 2 {
			tokens = append(tokens, token)
		}
	}
	if len(tokens) == 0 {
		return true
	}
	last := tokens[len(tokens)-1]
	if utf8.RuneCountInString(last) >= 4 && strings.Contains(normalizedText, last) {
		return true
	}
	if strings.Contains(normalizedText, last) {
		for _, token := range tokens[:len(tokens)-1] {
			if strings.Contains(normalizedText, token) {
				return true
			}
		}
	}
	return false
}

// CheckLeakage scans for schema and serialization artifacts in the case
// text, in a fixed order so the first matching category is reported.
func CheckLeakage(caseText string) error {
	if snakeCaseRe.MatchString(caseText) {
		return &LeakageError{
			Category: "snake_case",
			Reason: "format invalide: ne pas inclure de clés internes en snake_case dans l'énoncé " +
				"(ex: statut_matrimonial, option_successorale)",
		}
	}
	if token := capsEnumRe.FindString(caseText); token != "" {
		return &LeakageError{
			Category: "enum_code",
			Reason: fmt.Sprintf("format invalide: ne pas inclure de codes en MAJUSCULES_AVEC_UNDERSCORE dans l'énoncé "+
				"(ex: PARTENAIRE_PACS, NEVEU_NIECE). Reçu: %q. Traduire en français naturel (sans underscores).", token),
		}
	}
	if pythonBoolRe.MatchString(caseText) {
		return &LeakageError{
			Category: "python_bool",
			Reason: "format invalide: ne pas inclure de booléens Python ('True'/'False') dans l'énoncé. " +
				"Utiliser une formulation française (oui/non).",
		}
	}
	if pathDumpRe.MatchString(caseText) {
		return &LeakageError{
			Category: "path_dump",
			Reason: "format invalide: ne pas inclure de chemins type 'famille > defunt > ...' dans l'énoncé. " +
				"Reformuler en phrases françaises.",
		}
	}
	if bareEnumRe.MatchString(caseText) {
		return &LeakageError{
			Category: "bare_enum",
			Reason: "format invalide: ne pas inclure de tokens d'énumération en majuscules (ex: CELIBATAIRE, " +
				"JOURS, MOIS). Traduire en français naturel.",
		}
	}
	if schemaPhraseRe.MatchString(caseText) || defuntFieldsRe.MatchString(caseText) {
		return &LeakageError{
			Category: "schema_phrase",
			Reason: "format invalide: l'énoncé ressemble à un dump de champs (ex: 'famille defunt ...', " +
				"'defunt date deces ...'). Reformuler en français naturel.",
		}
	}
	if strings.Count(caseText, ";") > maxSemicolons {
		return &LeakageError{
			Category: "separators",
			Reason: fmt.Sprintf("format invalide: trop de séparateurs ';' (probable dump de champs). Limite: %d.",
				maxSemicolons),
		}
	}
	if strings.Count(caseText, ":") > maxColons {
		return &LeakageError{
			Category: "separators",
			Reason: fmt.Sprintf("format invalide: trop de séparateurs ':' (probable dump de champs). Limite: %d.",
				maxColons),
		}
	}
	return nil
}

// assess computes the soft similarity metadata against the seed corpus
// and the recent-submission window.
func (v *Validator) assess(caseText string) Report {
	report := Report{
		WordCount:      len(strings.Fields(caseText)),
		CharCount:      utf8.RuneCountInString(caseText),
		ContainsDigits: strings.ContainsAny(caseText, "0123456789"),
		Warnings:       []string{},
	}

	v.mu.RLock()
	recent := v.recent
	v.mu.RUnlock()

	normalized := frtext.NormalizeKey(caseText)
	for _, pool := range [][]Reference{v.seeds, recent} {
		for _, ref := range pool {
			if report.ExactDuplicate {
				break
			}
			if normalized == frtext.NormalizeKey(ref.Text) {
				report.ExactDuplicate = true
				report.MaxSimilarity = 1.0
				report.ClosestReference = ref.ID
				continue
			}
			if score := frtext.Jaccard(caseText, ref.Text, shingleSize); score > report.MaxSimilarity {
				report.MaxSimilarity = score
				report.ClosestReference = ref.ID
			}
		}
	}
	report.MaxSimilarity = round4(report.MaxSimilarity)

	if report.ExactDuplicate {
		report.Warnings = append(report.Warnings, "doublon exact détecté")
	} else if report.MaxSimilarity >= v.threshold {
		report.Warnings = append(report.Warnings, "cas très proche d'un cas existant")
	}
	if report.CharCount < shortTextRunes {
		report.Warnings = append(report.Warnings, "énoncé très court")
	}
	return report
}

func round4(v float64) float64 {
	return float64(int(v*10000+0.5)) / 10000
}
