package axes

import "caseforge/internal/schema"

// TopicTemplate describes one legal topic: how it is presented in the
// prompt and which regions of the master schema it binds to.
type TopicTemplate struct {
	// Label is the French prompt label.
	Label string
	// Keywords select reference examples from the seed corpus.
	Keywords []string
	// Elements are mandatory content constraints rendered into the prompt.
	Elements []string
	// Prefixes are the schema regions the topic samples leaves from.
	Prefixes []schema.Path
	// Required leaf paths must all be present for the topic to count as
	// covered by a generated target.
	Required []schema.Path
}

// Topics lists every topic bucket in the canonical order of the topic
// share table.
var Topics = []string{
	TopicOrdreHeritiers,
	TopicFamilleRecomposee,
	TopicRegimesMatrimoniaux,
	TopicDonationsReduction,
	TopicAssuranceVie,
	TopicIndivisionPartage,
	TopicEntrepriseDutreil,
	TopicDemembrementUsufruit,
	TopicTestamentLegs,
	TopicDettesPassif,
	TopicPacsConcubinage,
	TopicInternationalProcedure,
}

// TopicTemplates maps each topic bucket to its template.
var TopicTemplates = map[string]TopicTemplate{
	TopicOrdreHeritiers: {
		Label:    "ordre des héritiers / dévolution",
		Keywords: []string{"enfant", "célibataire", "frère", "marié", "représentation"},
		Elements: []string{
			"préciser les liens de parenté utiles",
			"indiquer s'il existe ou non un testament",
		},
		Prefixes: []schema.Path{
			{"famille", "descendants"},
			{"famille", "ascendants"},
			{"famille", "collateraux"},
		},
		Required: []schema.Path{
			{"famille", "descendants", "enfants", "*", "nom"},
		},
	},
	TopicFamilleRecomposee: {
		Label:    "famille recomposée / enfants non communs",
		Keywords: []string{"recompos", "premier lit", "enfant non commun", "beau", "adoption simple"},
		Elements: []string{
			"inclure au moins un enfant d'une autre union",
			"laisser un point de friction entre branches familiales",
		},
		Prefixes: []schema.Path{
			{"famille", "descendants"},
			{"famille", "partenaire"},
			{"famille", "collateraux"},
		},
		Required: []schema.Path{
			{"famille", "descendants", "enfants", "*", "nom"},
			{"famille", "descendants", "enfants", "*", "est_d_une_precedente_union"},
		},
	},
	TopicRegimesMatrimoniaux: {
		Label:    "régime matrimonial / liquidation préalable",
		Keywords: []string{"communauté", "séparation de biens", "participation", "récompense"},
		Elements: []string{
			"mentionner le régime matrimonial ou son absence de contrat",
			"faire apparaître un enjeu de propriété entre époux",
		},
		Prefixes: []schema.Path{
			{"famille", "defunt", "regime_matrimonial"},
			{"famille", "partenaire"},
			{"patrimoine", "actifs"},
			{"patrimoine", "recompenses"},
		},
		Required: []schema.Path{
			{"famille", "defunt", "regime_matrimonial", "type"},
			{"patrimoine", "actifs", "*", "type"},
			{"patrimoine", "actifs", "*", "propriete", "nature"},
		},
	},
	TopicDonationsReduction: {
		Label:    "donation / rapport / réduction",
		Keywords: []string{"donation", "hors part", "réduction", "rapport", "donation-partage"},
		Elements: []string{
			"inclure une libéralité antérieure",
			"laisser planer un doute sur son traitement civil",
		},
		Prefixes: []schema.Path{
			{"liberalites", "donations"},
			{"liberalites", "testament"},
			{"liberalites", "legs"},
			{"liberalites", "renonciations_action_reduction"},
			{"liberalites", "raar"},
		},
		Required: []schema.Path{
			{"liberalites", "donations", "*", "donateur_nom"},
			{"liberalites", "donations", "*", "beneficiaire_nom"},
			{"liberalites", "donations", "*", "type"},
		},
	},
	TopicAssuranceVie: {
		Label:    "assurance-vie / bénéficiaires / primes",
		Keywords: []string{"assurance vie", "AV", "bénéficiaire", "primes exag"},
		Elements: []string{
			"mentionner un contrat d'assurance-vie ou un bénéficiaire",
			"glisser un doute sur la place du contrat dans le calcul global",
		},
		Prefixes: []schema.Path{
			{"assurance_vie", "contrats"},
			{"contexte", "procedure", "contestation_clause_beneficiaire_assurance_vie"},
		},
		Required: []schema.Path{
			{"assurance_vie", "contrats", "*", "libelle"},
			{"assurance_vie", "contrats", "*", "assure_nom"},
		},
	},
	TopicIndivisionPartage: {
		Label:    "indivision / partage bloqué / licitation",
		Keywords: []string{"indivision", "vendre", "licitation", "occupation"},
		Elements: []string{
			"faire apparaître au moins deux héritiers en désaccord",
			"inclure un bien difficile à partager",
		},
		Prefixes: []schema.Path{
			{"indivision", "gestion"},
			{"indivision", "comptes"},
			{"indivision", "creances"},
			{"operations_de_partage", "licitation"},
			{"operations_de_partage", "attributions_preferentielles"},
			{"operations_de_partage", "soultes_mentionnees"},
		},
		Required: []schema.Path{
			{"contexte", "procedure", "refus_de_vendre_ou_de_partager", "existe"},
			{"operations_de_partage", "licitation", "est_prevue"},
		},
	},
	TopicEntrepriseDutreil: {
		Label:    "entreprise / titres / Dutreil",
		Keywords: []string{"société", "parts", "Dutreil", "SARL", "SCI", "fonds"},
		Elements: []string{
			"inclure des titres, une société ou un outil professionnel",
			"laisser un enjeu de valorisation ou de reprise",
		},
		Prefixes: []schema.Path{
			{"patrimoine", "actifs"},
			{"liberalites", "donations"},
			{"operations_de_partage", "attributions_preferentielles"},
		},
		Required: []schema.Path{
			{"patrimoine", "actifs", "*", "type"},
			{"patrimoine", "actifs", "*", "entreprise", "type"},
			{"patrimoine", "actifs", "*", "entreprise", "est_presente_comme_eligible_dutreil"},
		},
	},
	TopicDemembrementUsufruit: {
		Label:    "démembrement / usufruit / nue-propriété",
		Keywords: []string{"usufruit", "nue-propriété", "quasi-usufruit", "démembrement"},
		Elements: []string{
			"inclure un usufruit existant ou à choisir",
			"faire apparaître un effet différé ou une créance future",
		},
		Prefixes: []schema.Path{
			{"patrimoine", "actifs"},
			{"operations_de_partage", "conversion_usufruit"},
		},
		Required: []schema.Path{
			{"patrimoine", "actifs", "*", "demembrement", "droits_du_defunt"},
		},
	},
	TopicTestamentLegs: {
		Label:    "testament / legs / clause contestée",
		Keywords: []string{"testament", "legs", "olographe", "légataire"},
		Elements: []string{
			"inclure une disposition testamentaire ou un legs",
			"laisser un doute sur la portée ou la validité de la clause",
		},
		Prefixes: []schema.Path{
			{"liberalites", "testament"},
			{"liberalites", "legs"},
			{"contexte", "procedure", "contestation_testament"},
		},
		Required: []schema.Path{
			{"liberalites", "testament", "existe"},
			{"liberalites", "legs", "*", "beneficiaire_nom"},
			{"liberalites", "legs", "*", "type"},
		},
	},
	TopicDettesPassif: {
		Label:    "dettes / passif / déficit",
		Keywords: []string{"dette", "impôts", "URSSAF", "passif", "déficit"},
		Elements: []string{
			"inclure un passif significatif",
			"faire sentir une tension sur le règlement des dettes",
		},
		Prefixes: []schema.Path{
			{"patrimoine", "passifs"},
			{"operations_de_partage", "creances_entre_copartageants"},
		},
		Required: []schema.Path{
			{"patrimoine", "passifs", "*", "type"},
			{"patrimoine", "passifs", "*", "valeur"},
		},
	},
	TopicPacsConcubinage: {
		Label:    "PACS / concubinage",
		Keywords: []string{"PACS", "concubin", "union libre", "partenaire"},
		Elements: []string{
			"inclure une relation non matrimoniale",
			"faire apparaître un doute sur la protection du survivant",
		},
		Prefixes: []schema.Path{
			{"famille", "partenaire"},
			{"famille", "droits_du_partenaire"},
		},
		Required: []schema.Path{
			{"famille", "partenaire", "nom"},
			{"famille", "partenaire", "lien", "type"},
		},
	},
	TopicInternationalProcedure: {
		Label:    "international / procédure / blocage",
		Keywords: []string{"étranger", "Belgique", "Espagne", "procédure", "mandat", "juge"},
		Elements: []string{
			"inclure un élément procédural ou international",
			"laisser au moins un point de compétence ou de formalité flou",
		},
		Prefixes: []schema.Path{
			{"contexte", "international"},
			{"contexte", "procedure"},
			{"famille", "defunt"},
			{"famille", "partenaire"},
		},
		Required: []schema.Path{
			{"contexte", "international", "professio_juris", "existe"},
			{"contexte", "procedure", "divorce_ou_separation_en_cours", "existe"},
		},
	},
}

// SparseCoveragePrefixes are rarely drawn schema regions sprinkled into
// targets at a low rate so the campaign still covers them.
var SparseCoveragePrefixes = []schema.Path{
	{"famille", "adoption_simple_du_defunt"},
	{"liberalites", "donation_entre_epoux"},
	{"patrimoine", "ameliorations_bien_propre"},
}

// KnownTopic reports whether the bucket names a defined topic.
func KnownTopic(topic string) bool {
	_, ok := TopicTemplates[topic]
	return ok
}
