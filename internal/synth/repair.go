package synth

import (
	"math"
	"math/rand"
	"sort"
	"strings"

	"caseforge/internal/axes"
	"caseforge/internal/schema"
)

// Age bounds per family group, used when harmonizing ages with the
// decedent's death date. The order is fixed: harmonizing draws from the
// attempt RNG and must replay identically.
var ageBounds = []struct {
	group    string
	min, max int
}{
	{"partenaire", 18, 105},
	{"descendants", 0, 75},
	{"ascendants", 40, 110},
	{"collateraux", 0, 100},
}

// repair enforces the business invariants the independent leaf sampling
// cannot see: the identity anchors, marital-status consistency, age and
// date harmony, and the blocks each drawn topic promises. It mutates the
// payload in place and only writes leaves the loaded schema knows.
func (g *Generator) repair(payload map[string]any, profile axes.Profile, gctx *genContext, rng *rand.Rand) {
	famille := ensureMap(payload, "famille")
	defunt := ensureMap(famille, "defunt")

	defunt["nom"] = gctx.defuntName
	defunt["statut_matrimonial"] = gctx.statut
	deathDate, ok := defunt["date_deces"].(string)
	if !ok || parseISODate(deathDate) == nil {
		deathDate = gctx.deathDate
		defunt["date_deces"] = deathDate
	}
	g.harmonizePerson(defunt, deathDate, 55, 94, rng)

	g.repairRegime(defunt, gctx, rng)
	g.repairPartner(famille, gctx)
	g.repairChildren(famille, profile, gctx)
	g.harmonizeFamily(famille, deathDate, rng)
	g.repairInsurance(payload, profile, gctx, deathDate, rng)
	g.repairBusiness(payload, profile, rng)
	g.repairDonations(payload, profile, gctx)
	repairAmounts(payload)
}

// repairRegime keeps the matrimonial regime block consistent with the
// marital status: only MARIE and VEUF decedents may carry one.
func (g *Generator) repairRegime(defunt map[string]any, gctx *genContext, rng *rand.Rand) {
	regime, has := getMap(defunt, "regime_matrimonial")
	switch gctx.statut {
	case axes.StatutCelibataire, axes.StatutPacse, axes.StatutDivorce:
		delete(defunt, "regime_matrimonial")
	default:
		if !has {
			return
		}
		if !g.Index.IsLeaf(schema.Path{"famille", "defunt", "regime_matrimonial", "type"}) {
			return
		}
		switch {
		case hasKeyContaining(regime, "participation"):
			regime["type"] = "PARTICIPATION_AUX_ACQUETS"
		case truthy(regime["clause_attribution_integrale"]):
			regime["type"] = "COMMUNAUTE_UNIVERSELLE"
		default:
			if _, ok := regime["type"].(string); !ok {
				regime["type"] = pick(rng,
					"COMMUNAUTE_REDUITE_AUX_ACQUETS",
					"SEPARATION_DE_BIENS",
					"COMMUNAUTE_UNIVERSELLE",
					"PARTICIPATION_AUX_ACQUETS",
				)
			}
		}
	}
}

// repairPartner forces the partner block for married and pacsed
// decedents and demotes any leftover partner to concubin otherwise.
func (g *Generator) repairPartner(famille map[string]any, gctx *genContext) {
	switch gctx.statut {
	case axes.StatutMarie, axes.StatutPacse:
		partenaire := ensureMap(famille, "partenaire")
		partenaire["nom"] = gctx.partnerName
		lienType := axes.LienConjoint
		if gctx.statut == axes.StatutPacse {
			lienType = axes.LienPartenairePacs
		}
		if g.Index.IsLeaf(schema.Path{"famille", "partenaire", "lien", "type"}) {
			ensureMap(partenaire, "lien")["type"] = lienType
		}
	default:
		if partenaire, ok := getMap(famille, "partenaire"); ok {
			partenaire["nom"] = gctx.partnerName
			if lien, ok := getMap(partenaire, "lien"); ok {
				lien["type"] = axes.LienConcubin
			}
		}
	}
}

// childTopics are the topics whose targets must name at least one child.
var childTopics = map[string]bool{
	axes.TopicOrdreHeritiers:     true,
	axes.TopicFamilleRecomposee:  true,
	axes.TopicDonationsReduction: true,
	axes.TopicTestamentLegs:      true,
}

func (g *Generator) repairChildren(famille map[string]any, profile axes.Profile, gctx *genContext) {
	needChildren := childTopics[profile.PrimaryTopic] || childTopics[profile.SecondaryTopic]
	descendants, hasDesc := getMap(famille, "descendants")
	if !hasDesc {
		if !needChildren {
			return
		}
		descendants = ensureMap(famille, "descendants")
	}

	enfants := listOf(descendants, "enfants")
	if needChildren && len(enfants) == 0 {
		if g.Index.IsLeaf(schema.Path{"famille", "descendants", "enfants", schema.Star, "nom"}) {
			enfants = []any{map[string]any{}}
			descendants["enfants"] = enfants
		}
	}
	for i, elem := range enfants {
		child, ok := elem.(map[string]any)
		if !ok {
			continue
		}
		if i < len(gctx.childNames) {
			child["nom"] = gctx.childNames[i]
		}
	}
	if profile.PrimaryTopic == axes.TopicFamilleRecomposee && len(enfants) > 0 {
		if first, ok := enfants[0].(map[string]any); ok &&
			g.Index.IsLeaf(schema.Path{"famille", "descendants", "enfants", schema.Star, "est_d_une_precedente_union"}) {
			first["est_d_une_precedente_union"] = true
		}
	}

	for _, elem := range listOf(descendants, "petits_enfants") {
		grandchild, ok := elem.(map[string]any)
		if !ok {
			continue
		}
		if len(gctx.childNames) > 1 {
			grandchild["nom"] = gctx.childNames[1]
		}
		if g.Index.IsLeaf(schema.Path{"famille", "descendants", "petits_enfants", schema.Star, "parent_nom"}) {
			grandchild["parent_nom"] = gctx.childNames[0]
		}
	}
	if len(enfants) == 0 && len(listOf(descendants, "petits_enfants")) == 0 && !hasDesc {
		delete(famille, "descendants")
	}
}

// harmonizeFamily clamps every family member's age to the group bounds
// and realigns birth dates with the death date.
func (g *Generator) harmonizeFamily(famille map[string]any, deathDate string, rng *rand.Rand) {
	for _, bounds := range ageBounds {
		if bounds.group == "partenaire" {
			if partenaire, ok := getMap(famille, "partenaire"); ok {
				g.harmonizePerson(partenaire, deathDate, bounds.min, bounds.max, rng)
			}
			continue
		}
		branch, ok := getMap(famille, bounds.group)
		if !ok {
			continue
		}
		keys := make([]string, 0, len(branch))
		for key := range branch {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			list, ok := branch[key].([]any)
			if !ok {
				continue
			}
			minAge := bounds.min
			// Nephews and nieces may be minors even in an adult sibling
			// branch.
			if bounds.group == "collateraux" && key != "neveux_nieces" {
				minAge = 18
			}
			for _, elem := range list {
				person, ok := elem.(map[string]any)
				if !ok {
					continue
				}
				g.harmonizePerson(person, deathDate, minAge, bounds.max, rng)
			}
		}
	}
}

// harmonizePerson reconciles age, est_mineur, birth date and succession
// option within one person block. A predeceased heir keeps no minor flag
// and escapes the age clamp.
func (g *Generator) harmonizePerson(person map[string]any, deathDate string, minAge, maxAge int, rng *rand.Rand) {
	if option, ok := person["option_successorale"].(string); ok && option == "PREDECEDE" {
		delete(person, "est_mineur")
		return
	}

	age, hasAge := intValue(person["age"])
	if hasAge {
		if age < minAge {
			age = minAge
		}
		if age > maxAge {
			age = maxAge
		}
		person["age"] = age
	}

	death := parseISODate(deathDate)
	if _, hasBirth := person["date_naissance"].(string); hasBirth && death != nil {
		if !hasAge {
			// Age wins when both exist; without it the birth date is
			// redrawn inside the band.
			age = minAge + rng.Intn(maxAge-minAge+1)
		}
		birthYear := death.year - age
		day := death.day
		if day > 28 {
			day = 28
		}
		person["date_naissance"] = isoDate(birthYear, death.month, day)
	}

	if _, hasMinor := person["est_mineur"]; hasMinor && hasAge {
		person["est_mineur"] = age < 18
	}
}

// repairInsurance pins life-insurance contracts to the decedent and
// keeps subscription dates and the over-70 premium flag consistent.
func (g *Generator) repairInsurance(payload map[string]any, profile axes.Profile, gctx *genContext, deathDate string, rng *rand.Rand) {
	needsContract := profile.PrimaryTopic == axes.TopicAssuranceVie || profile.SecondaryTopic == axes.TopicAssuranceVie
	av, hasAV := getMap(payload, "assurance_vie")
	if !hasAV {
		if !needsContract {
			return
		}
		av = ensureMap(payload, "assurance_vie")
	}
	contrats := listOf(av, "contrats")
	if needsContract && len(contrats) == 0 {
		if g.Index.IsLeaf(schema.Path{"assurance_vie", "contrats", schema.Star, "libelle"}) {
			contrats = []any{map[string]any{
				"libelle": "Contrat " + insurers[rng.Intn(len(insurers))],
			}}
			av["contrats"] = contrats
		}
	}

	death := parseISODate(deathDate)
	defuntAge := 0
	if famille, ok := getMap(payload, "famille"); ok {
		if defunt, ok := getMap(famille, "defunt"); ok {
			defuntAge, _ = intValue(defunt["age"])
		}
	}
	for _, elem := range contrats {
		contrat, ok := elem.(map[string]any)
		if !ok {
			continue
		}
		if _, ok := contrat["libelle"].(string); !ok {
			contrat["libelle"] = "Contrat " + insurers[rng.Intn(len(insurers))]
		}
		if g.Index.IsLeaf(schema.Path{"assurance_vie", "contrats", schema.Star, "assure_nom"}) {
			contrat["assure_nom"] = gctx.defuntName
		}
		if souscription, ok := contrat["date_souscription"].(string); ok && death != nil {
			if sub := parseISODate(souscription); sub == nil || !sub.before(*death) {
				year := death.year - (1 + rng.Intn(15))
				contrat["date_souscription"] = isoDate(year, 1+rng.Intn(12), 1+rng.Intn(28))
			}
		}
		if versements, ok := getMap(contrat, "versements"); ok {
			if _, flagged := versements["apres_70_ans"]; flagged && defuntAge > 0 {
				versements["apres_70_ans"] = defuntAge >= 70
			}
		}
	}
	if len(contrats) == 0 && !hasAV {
		delete(payload, "assurance_vie")
	}
}

// repairBusiness makes the Dutreil topic land on an actual company asset.
func (g *Generator) repairBusiness(payload map[string]any, profile axes.Profile, rng *rand.Rand) {
	if profile.PrimaryTopic != axes.TopicEntrepriseDutreil && profile.SecondaryTopic != axes.TopicEntrepriseDutreil {
		return
	}
	patrimoine := ensureMap(payload, "patrimoine")
	actifs := listOf(patrimoine, "actifs")
	if len(actifs) == 0 {
		actifs = []any{map[string]any{}}
		patrimoine["actifs"] = actifs
	}
	first, ok := actifs[0].(map[string]any)
	if !ok {
		return
	}
	if g.Index.IsLeaf(schema.Path{"patrimoine", "actifs", schema.Star, "type"}) {
		first["type"] = "ENTREPRISE"
	}
	if g.Index.IsLeaf(schema.Path{"patrimoine", "actifs", schema.Star, "entreprise", "type"}) {
		entreprise := ensureMap(first, "entreprise")
		entreprise["type"] = "PME"
		if g.Index.IsLeaf(schema.Path{"patrimoine", "actifs", schema.Star, "entreprise", "est_presente_comme_eligible_dutreil"}) {
			entreprise["est_presente_comme_eligible_dutreil"] = true
		}
	}
	if _, ok := first["libelle"].(string); !ok && g.Index.IsLeaf(schema.Path{"patrimoine", "actifs", schema.Star, "libelle"}) {
		first["libelle"] = "Parts " + companies[rng.Intn(len(companies))]
	}
}

// repairDonations keeps the first donation a decedent-to-child one with
// distinct parties.
func (g *Generator) repairDonations(payload map[string]any, profile axes.Profile, gctx *genContext) {
	if profile.PrimaryTopic != axes.TopicDonationsReduction && profile.SecondaryTopic != axes.TopicDonationsReduction {
		return
	}
	liberalites := ensureMap(payload, "liberalites")
	donations := listOf(liberalites, "donations")
	if len(donations) == 0 {
		if !g.Index.IsLeaf(schema.Path{"liberalites", "donations", schema.Star, "donateur_nom"}) {
			return
		}
		donations = []any{map[string]any{}}
		liberalites["donations"] = donations
	}
	first, ok := donations[0].(map[string]any)
	if !ok {
		return
	}
	first["donateur_nom"] = gctx.defuntName
	first["beneficiaire_nom"] = gctx.childNames[0]
	if _, ok := first["type"].(string); !ok && g.Index.IsLeaf(schema.Path{"liberalites", "donations", schema.Star, "type"}) {
		first["type"] = "DONATION_SIMPLE"
	}
}

// repairAmounts turns non-positive asset and debt values positive.
func repairAmounts(payload map[string]any) {
	patrimoine, ok := getMap(payload, "patrimoine")
	if !ok {
		return
	}
	for _, key := range []string{"actifs", "passifs"} {
		for _, elem := range listOf(patrimoine, key) {
			item, ok := elem.(map[string]any)
			if !ok {
				continue
			}
			if v, ok := floatValue(item["valeur"]); ok && v <= 0 {
				item["valeur"] = math.Abs(v) + 1
			}
		}
	}
}

func getMap(node map[string]any, key string) (map[string]any, bool) {
	child, ok := node[key].(map[string]any)
	return child, ok
}

func ensureMap(node map[string]any, key string) map[string]any {
	if child, ok := node[key].(map[string]any); ok {
		return child
	}
	child := map[string]any{}
	node[key] = child
	return child
}

func listOf(node map[string]any, key string) []any {
	list, _ := node[key].([]any)
	return list
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	}
	return 0, false
}

func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func hasKeyContaining(node map[string]any, fragment string) bool {
	for key := range node {
		if strings.Contains(key, fragment) {
			return true
		}
	}
	return false
}
