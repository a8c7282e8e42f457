// Package prompt renders the French instruction prompt locked to each
// issued profile: the per-axis directives, the mandatory constraints,
// the prohibitions, reference-example excerpts from the seed corpus,
// and the fact-source contract binding the narrator to the TOON target.
package prompt

import (
	"math/rand"
	"strings"
	"unicode/utf8"

	"caseforge/internal/axes"
	"caseforge/internal/corpus"
	"caseforge/internal/frtext"
)

// excerptRunes caps the length of a reference-example excerpt.
const excerptRunes = 220

// ReferenceExample is a seed-corpus excerpt shown in the prompt as a
// style anchor.
type ReferenceExample struct {
	CaseID     string `json:"case_id"`
	SourceType string `json:"source_type"`
	SourceName string `json:"source_name"`
	Excerpt    string `json:"excerpt"`
}

// PickReferenceExamples selects up to two seed cases matching the
// profile's topic keywords, shuffled by the draw RNG. When fewer than
// two candidates match, the whole corpus becomes the candidate pool.
func PickReferenceExamples(seeds []corpus.Seed, primary, secondary string, rng *rand.Rand) []ReferenceExample {
	if len(seeds) == 0 {
		return nil
	}

	var keywords []string
	for _, topic := range []string{primary, secondary} {
		if template, ok := axes.TopicTemplates[topic]; ok {
			keywords = append(keywords, template.Keywords...)
		}
	}
	normalized := make([]string, len(keywords))
	for i, word := range keywords {
		normalized[i] = frtext.NormalizeKey(word)
	}

	var candidates []corpus.Seed
	for _, seed := range seeds {
		seedKey := frtext.NormalizeKey(seed.Text)
		for _, keyword := range normalized {
			if keyword != "" && strings.Contains(seedKey, keyword) {
				candidates = append(candidates, seed)
				break
			}
		}
	}
	if len(candidates) < 2 {
		candidates = append([]corpus.Seed(nil), seeds...)
	}

	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) > 2 {
		candidates = candidates[:2]
	}

	examples := make([]ReferenceExample, 0, len(candidates))
	for _, seed := range candidates {
		examples = append(examples, ReferenceExample{
			CaseID:     seed.CaseID,
			SourceType: seed.SourceType,
			SourceName: seed.SourceName,
			Excerpt:    truncateRunes(seed.Text, excerptRunes),
		})
	}
	return examples
}

// MandatoryElements collects the deduplicated prompt constraints of a
// profile: topic elements first, then the presentation-axis requirements,
// then the hard negative ones when active.
func MandatoryElements(profile axes.Profile) []string {
	var elements []string
	for _, topic := range []string{profile.PrimaryTopic, profile.SecondaryTopic} {
		if template, ok := axes.TopicTemplates[topic]; ok {
			elements = append(elements, template.Elements...)
		}
	}
	elements = append(elements, axes.Requirements(axes.AxisFormat, profile.Format)...)
	elements = append(elements, axes.Requirements(axes.AxisLengthBand, profile.LengthBand)...)
	elements = append(elements, axes.Requirements(axes.AxisNoise, profile.Noise)...)
	elements = append(elements, axes.Requirements(axes.AxisNumericDensity, profile.NumericDensity)...)
	elements = append(elements, axes.Requirements(axes.AxisDatePrecision, profile.DatePrecision)...)
	if profile.HardNegativeMode != "" {
		elements = append(elements, axes.Requirements(axes.AxisHardNegativeMode, profile.HardNegativeMode)...)
	}
	if profile.HardNegativeIntensity != "" {
		elements = append(elements, axes.Requirements(axes.AxisHardNegativeIntensity, profile.HardNegativeIntensity)...)
	}

	seen := make(map[string]bool, len(elements))
	deduped := elements[:0]
	for _, item := range elements {
		if seen[item] {
			continue
		}
		seen[item] = true
		deduped = append(deduped, item)
	}
	return deduped
}

// MustAvoid returns the prohibitions of a profile: the common list, plus
// the secrecy line for hard negatives.
func MustAvoid(profile axes.Profile) []string {
	items := append([]string(nil), axes.CommonMustAvoid...)
	if profile.Complexity == axes.ComplexityHardNegative {
		items = append(items, "Ne pas signaler explicitement qu'il s'agit d'un hard negative ou d'un piège.")
	}
	return items
}

// Render builds the instruction prompt for a profile.
func Render(profile axes.Profile, examples []ReferenceExample) string {
	lines := []string{
		"Génère uniquement un énoncé (case_text) pour un cas de succession en français.",
		"Persona : " + axes.Label(axes.AxisPersona, profile.Persona) + ".",
		"Tournure : " + axes.Label(axes.AxisVoice, profile.Voice) + ".",
		"Format : " + axes.Label(axes.AxisFormat, profile.Format) + ".",
		"Longueur visée : " + axes.Label(axes.AxisLengthBand, profile.LengthBand) + ".",
		"Niveau de bruit : " + axes.Label(axes.AxisNoise, profile.Noise) + ".",
		"Densité chiffrée : " + axes.Label(axes.AxisNumericDensity, profile.NumericDensity) + ".",
		"Précision temporelle : " + axes.Label(axes.AxisDatePrecision, profile.DatePrecision) + ".",
		"Niveau : " + axes.Label(axes.AxisComplexity, profile.Complexity) + ".",
		"Sujet principal : " + topicLabel(profile.PrimaryTopic) + ".",
	}
	if profile.SecondaryTopic != "" {
		lines = append(lines, "Sujet secondaire : "+topicLabel(profile.SecondaryTopic)+".")
	}
	if profile.HardNegativeMode != "" {
		lines = append(lines, "Mode hard negative : "+axes.Label(axes.AxisHardNegativeMode, profile.HardNegativeMode)+".")
	}
	if profile.HardNegativeIntensity != "" {
		lines = append(lines, "Intensité hard negative : "+axes.Label(axes.AxisHardNegativeIntensity, profile.HardNegativeIntensity)+".")
	}

	lines = append(lines, "Contraintes :")
	for _, item := range MandatoryElements(profile) {
		lines = append(lines, "- "+item)
	}
	lines = append(lines, "À éviter :")
	for _, item := range MustAvoid(profile) {
		lines = append(lines, "- "+item)
	}
	lines = append(lines, "Sortie attendue : texte brut uniquement (l'énoncé), sans JSON, sans TOON, sans analyse.")

	if len(examples) > 0 {
		lines = append(lines, "Repères de style (à ne pas recopier mot pour mot) :")
		for _, example := range examples {
			lines = append(lines, "- ["+example.CaseID+"] "+example.Excerpt)
		}
	}
	return strings.Join(lines, "\n")
}

// AugmentWithTarget appends the fact-source contract and the TOON block
// to a rendered prompt.
func AugmentWithTarget(basePrompt, toonText string) string {
	var lines []string
	if base := strings.TrimSpace(basePrompt); base != "" {
		lines = append(lines, base, "")
	}
	lines = append(lines,
		"Source de vérité des faits: le TOON ci-dessous.",
		"Règle A: chaque information présente dans le TOON doit apparaître dans l'énoncé, mais reformulée en français naturel.",
		"  - Ne jamais recopier des codes d'énumération du TOON (ex: PARTENAIRE_PACS, NEVEU_NIECE, PROPRE_DEFUNT, IMPOT_SUCCESSION).",
		"  - Si une valeur ressemble à `MAJUSCULES_AVEC_UNDERSCORE`, tu dois la traduire en mots (sans underscores).",
		"  - Exemples: PARTENAIRE_PACS -> partenaire de PACS ; NEVEU_NIECE -> neveu / nièce ;",
		"    COMMUNAUTE_REDUITE_AUX_ACQUETS -> communauté réduite aux acquêts ; A_TITRE_UNIVERSEL -> à titre universel.",
		"Règle B: ne pas ajouter de nouvelles informations structurées (noms, dates, montants, liens, biens) absentes du TOON.",
		"Règle C: ne pas donner la solution juridique, seulement les faits.",
		"Règle D: ne pas recopier la structure ou les clés du TOON (pas de `snake_case`, pas de `champ: valeur`, pas de JSON/TOON dans la réponse).",
		"Règle E: tu peux utiliser des sigles usuels (PACS, SCI, SARL, AV), mais pas des tokens en MAJUSCULES_AVEC_UNDERSCORE.",
		"Sortie attendue: texte brut uniquement (l'énoncé), sans JSON.",
		"",
		"TOON:",
		strings.TrimSpace(toonText),
	)
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// StyleBrief restates the narrative posture of the profile in one
// compact paragraph, persisted with the instruction.
func StyleBrief(profile axes.Profile) string {
	parts := []string{
		"Le cas doit être raconté comme si " + axes.Label(axes.AxisPersona, profile.Persona) + " s'exprimait.",
		"La tournure attendue est " + axes.Label(axes.AxisVoice, profile.Voice) + ".",
		"La forme doit ressembler à " + axes.Label(axes.AxisFormat, profile.Format) + ".",
		"Le coeur juridique doit tourner autour de " + topicLabel(profile.PrimaryTopic) + ".",
	}
	if profile.SecondaryTopic != "" {
		parts = append(parts, "Une seconde couche doit faire intervenir "+topicLabel(profile.SecondaryTopic)+".")
	}
	return strings.Join(parts, " ")
}

func topicLabel(topic string) string {
	if template, ok := axes.TopicTemplates[topic]; ok {
		return template.Label
	}
	return topic
}

func truncateRunes(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "…"
}
