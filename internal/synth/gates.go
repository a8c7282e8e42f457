package synth

import (
	"fmt"
	"strings"

	"caseforge/internal/axes"
	"caseforge/internal/schema"
)

// isoParts is a parsed ISO calendar date. time.Time is avoided on
// purpose: the payloads carry civil dates, not instants.
type isoParts struct {
	year, month, day int
}

func (d isoParts) before(other isoParts) bool {
	if d.year != other.year {
		return d.year < other.year
	}
	if d.month != other.month {
		return d.month < other.month
	}
	return d.day < other.day
}

func parseISODate(s string) *isoParts {
	var d isoParts
	if _, err := fmt.Sscanf(s, "%4d-%2d-%2d", &d.year, &d.month, &d.day); err != nil {
		return nil
	}
	if len(s) != 10 || d.month < 1 || d.month > 12 || d.day < 1 || d.day > 31 {
		return nil
	}
	return &d
}

func isoDate(year, month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

// yearsBetween counts full years from birth to death.
func yearsBetween(birth, death isoParts) int {
	years := death.year - birth.year
	if death.month < birth.month || (death.month == birth.month && death.day < birth.day) {
		years--
	}
	return years
}

// person is one family member flattened for the coherence gate.
type person struct {
	where string
	node  map[string]any
}

// collectPersons gathers every person block of the famille subtree with
// a dotted location label for error messages.
func collectPersons(payload map[string]any) []person {
	famille, ok := getMap(payload, "famille")
	if !ok {
		return nil
	}
	var persons []person
	if defunt, ok := getMap(famille, "defunt"); ok {
		persons = append(persons, person{"famille.defunt", defunt})
	}
	if partenaire, ok := getMap(famille, "partenaire"); ok {
		persons = append(persons, person{"famille.partenaire", partenaire})
	}
	for _, group := range []string{"descendants", "ascendants", "collateraux"} {
		branch, ok := getMap(famille, group)
		if !ok {
			continue
		}
		for key, child := range branch {
			list, ok := child.([]any)
			if !ok {
				continue
			}
			for i, elem := range list {
				node, ok := elem.(map[string]any)
				if !ok {
					continue
				}
				persons = append(persons, person{
					where: fmt.Sprintf("famille.%s.%s[%d]", group, key, i),
					node:  node,
				})
			}
		}
	}
	return persons
}

// validateCoherence is the business gate: family structure, ages and
// dates, insurance and donation integrity, and the blocks each drawn
// topic must have produced.
func validateCoherence(payload map[string]any, profile axes.Profile) error {
	var problems []string
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	famille, _ := getMap(payload, "famille")
	defunt, _ := getMap(famille, "defunt")
	defuntName, _ := defunt["nom"].(string)
	if strings.TrimSpace(defuntName) == "" {
		report("famille.defunt.nom manquant")
	}

	statut, _ := defunt["statut_matrimonial"].(string)
	partenaire, hasPartner := getMap(famille, "partenaire")
	lienType := ""
	if lien, ok := getMap(partenaire, "lien"); ok {
		lienType, _ = lien["type"].(string)
	}
	switch statut {
	case axes.StatutMarie:
		if !hasPartner || (lienType != "" && lienType != axes.LienConjoint) {
			report("statut MARIE sans conjoint cohérent (lien %q)", lienType)
		}
	case axes.StatutPacse:
		if !hasPartner || (lienType != "" && lienType != axes.LienPartenairePacs) {
			report("statut PACSE sans partenaire cohérent (lien %q)", lienType)
		}
	case axes.StatutCelibataire, axes.StatutDivorce, axes.StatutVeuf:
		if lienType == axes.LienConjoint || lienType == axes.LienPartenairePacs {
			report("statut %s incompatible avec un lien %s", statut, lienType)
		}
	}

	death := (*isoParts)(nil)
	if deathDate, ok := defunt["date_deces"].(string); ok {
		death = parseISODate(deathDate)
		if death == nil {
			report("famille.defunt.date_deces invalide: %q", deathDate)
		}
	}

	for _, p := range collectPersons(payload) {
		if option, ok := p.node["option_successorale"].(string); ok && option == "PREDECEDE" {
			continue
		}
		age, hasAge := intValue(p.node["age"])
		if hasAge && (age < 0 || age > 125) {
			report("%s: âge %d hors bornes", p.where, age)
		}
		if minor, ok := p.node["est_mineur"].(bool); ok && hasAge && minor != (age < 18) {
			report("%s: est_mineur incohérent avec l'âge %d", p.where, age)
		}
		if birthDate, ok := p.node["date_naissance"].(string); ok {
			birth := parseISODate(birthDate)
			if birth == nil {
				report("%s: date_naissance invalide: %q", p.where, birthDate)
				continue
			}
			if death != nil {
				if death.before(*birth) {
					report("%s: naissance postérieure au décès", p.where)
				} else if hasAge {
					if computed := yearsBetween(*birth, *death); abs(computed-age) > 1 {
						report("%s: âge %d incohérent avec la date de naissance (%d calculé)", p.where, age, computed)
					}
				}
			}
		}
	}

	validateInsuranceCoherence(payload, defunt, defuntName, report)

	if liberalites, ok := getMap(payload, "liberalites"); ok {
		for i, elem := range listOf(liberalites, "donations") {
			donation, ok := elem.(map[string]any)
			if !ok {
				continue
			}
			donateur, _ := donation["donateur_nom"].(string)
			beneficiaire, _ := donation["beneficiaire_nom"].(string)
			if donateur != "" && donateur == beneficiaire {
				report("liberalites.donations[%d]: donateur et bénéficiaire identiques", i)
			}
		}
	}

	if patrimoine, ok := getMap(payload, "patrimoine"); ok {
		for _, key := range []string{"actifs", "passifs"} {
			for i, elem := range listOf(patrimoine, key) {
				item, ok := elem.(map[string]any)
				if !ok {
					continue
				}
				if v, ok := floatValue(item["valeur"]); ok && v <= 0 {
					report("patrimoine.%s[%d]: valeur non positive", key, i)
				}
			}
		}
	}

	validateTopicBlocks(payload, profile, report)

	if len(problems) > 0 {
		return fmt.Errorf("cohérence métier: %s", strings.Join(problems, "; "))
	}
	return nil
}

func validateInsuranceCoherence(payload, defunt map[string]any, defuntName string, report func(string, ...any)) {
	av, ok := getMap(payload, "assurance_vie")
	if !ok {
		return
	}
	defuntAge, hasDefuntAge := intValue(defunt["age"])
	for i, elem := range listOf(av, "contrats") {
		contrat, ok := elem.(map[string]any)
		if !ok {
			continue
		}
		if assure, ok := contrat["assure_nom"].(string); ok && defuntName != "" && assure != defuntName {
			report("assurance_vie.contrats[%d]: assuré %q différent du défunt", i, assure)
		}
		if versements, ok := getMap(contrat, "versements"); ok && hasDefuntAge {
			if after70, ok := versements["apres_70_ans"].(bool); ok && after70 != (defuntAge >= 70) {
				report("assurance_vie.contrats[%d]: versements après 70 ans incohérents avec l'âge %d", i, defuntAge)
			}
		}
	}
}

// validateTopicBlocks checks the structural promise of each drawn topic.
func validateTopicBlocks(payload map[string]any, profile axes.Profile, report func(string, ...any)) {
	for _, topic := range []string{profile.PrimaryTopic, profile.SecondaryTopic} {
		switch topic {
		case axes.TopicAssuranceVie:
			av, _ := getMap(payload, "assurance_vie")
			if len(listOf(av, "contrats")) == 0 {
				report("topic assurance_vie sans contrat")
			}
		case axes.TopicDonationsReduction:
			liberalites, _ := getMap(payload, "liberalites")
			if len(listOf(liberalites, "donations")) == 0 {
				report("topic donations_reduction sans donation")
			}
		case axes.TopicEntrepriseDutreil:
			patrimoine, _ := getMap(payload, "patrimoine")
			found := false
			for _, elem := range listOf(patrimoine, "actifs") {
				if item, ok := elem.(map[string]any); ok {
					if _, ok := getMap(item, "entreprise"); ok {
						found = true
						break
					}
				}
			}
			if !found {
				report("topic entreprise_dutreil sans actif entreprise")
			}
		}
	}
}

// pathExists reports whether the star-marked path resolves in the
// payload; a star matches any element of the list.
func pathExists(node any, path schema.Path) bool {
	if len(path) == 0 {
		return true
	}
	token, rest := path[0], path[1:]
	if token == schema.Star {
		list, ok := node.([]any)
		if !ok {
			return false
		}
		for _, elem := range list {
			if pathExists(elem, rest) {
				return true
			}
		}
		return false
	}
	obj, ok := node.(map[string]any)
	if !ok {
		return false
	}
	child, present := obj[token]
	if !present {
		return false
	}
	return pathExists(child, rest)
}

// topicPresent reports whether the payload materializes the topic:
// every required leaf, or at least one of its prefixes when the topic
// declares no required leaves.
func topicPresent(payload map[string]any, topic string) bool {
	template, ok := axes.TopicTemplates[topic]
	if !ok {
		return false
	}
	if len(template.Required) > 0 {
		for _, required := range template.Required {
			if !pathExists(payload, required) {
				return false
			}
		}
		return true
	}
	for _, prefix := range template.Prefixes {
		if pathExists(payload, prefix) {
			return true
		}
	}
	return false
}

// validateTopicAlignment is the last gate: the drawn topics must be
// visible in the target itself.
func validateTopicAlignment(payload map[string]any, profile axes.Profile) error {
	for _, topic := range []string{profile.PrimaryTopic, profile.SecondaryTopic} {
		if topic == "" {
			continue
		}
		if !topicPresent(payload, topic) {
			return fmt.Errorf("alignment topic/TOON invalide: topic %s absent de la cible", topic)
		}
	}
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
