package axes

import "caseforge/internal/schema"

// PersonaRule states what a persona logically entails in the target: a
// forced marital status for the decedent and the leaves that must exist
// for the narrator's role to be tellable. The generator consumes this as
// data; adding a persona never means touching generator code.
type PersonaRule struct {
	// Statut forces the decedent's marital status, "" leaves it to the
	// topic draw.
	Statut string
	// MandatoryLeaves are always included in the target. Paths absent
	// from the loaded master schema are skipped.
	MandatoryLeaves []schema.Path
}

// Decedent marital status codes of the master schema.
const (
	StatutCelibataire = "CELIBATAIRE"
	StatutMarie       = "MARIE"
	StatutPacse       = "PACSE"
	StatutDivorce     = "DIVORCE"
	StatutVeuf        = "VEUF"
)

// Partner link type codes.
const (
	LienConjoint       = "CONJOINT"
	LienPartenairePacs = "PARTENAIRE_PACS"
	LienConcubin       = "CONCUBIN"
)

// PersonaRules maps each persona bucket to its anchors. Personas absent
// from the table carry no anchor beyond the decedent identity.
var PersonaRules = map[string]PersonaRule{
	PersonaEnfant: {
		MandatoryLeaves: []schema.Path{
			{"famille", "descendants", "enfants", "*", "nom"},
		},
	},
	PersonaConjoint: {
		Statut: StatutMarie,
	},
	PersonaBeauEnfant: {
		Statut: StatutMarie,
		MandatoryLeaves: []schema.Path{
			{"famille", "descendants", "enfants", "*", "nom"},
			{"famille", "descendants", "enfants", "*", "est_d_une_precedente_union"},
		},
	},
	PersonaFratrie: {
		MandatoryLeaves: []schema.Path{
			{"famille", "collateraux", "freres_soeurs", "*", "nom"},
		},
	},
	PersonaNotaire: {
		MandatoryLeaves: []schema.Path{
			{"contexte", "procedure", "accompagnement_professionnel", "existe"},
		},
	},
	PersonaAvocat: {
		MandatoryLeaves: []schema.Path{
			{"contexte", "procedure", "accompagnement_professionnel", "existe"},
		},
	},
	PersonaPartenairePacs: {
		Statut: StatutPacse,
	},
	PersonaConcubin: {
		Statut: StatutCelibataire,
		MandatoryLeaves: []schema.Path{
			{"famille", "partenaire", "nom"},
			{"famille", "partenaire", "lien", "type"},
		},
	},
	PersonaAssocie: {
		MandatoryLeaves: []schema.Path{
			{"patrimoine", "actifs", "*", "type"},
			{"patrimoine", "actifs", "*", "entreprise", "type"},
		},
	},
	PersonaPetitEnfant: {
		MandatoryLeaves: []schema.Path{
			{"famille", "descendants", "enfants", "*", "nom"},
			{"famille", "descendants", "petits_enfants", "*", "nom"},
			{"famille", "descendants", "petits_enfants", "*", "parent_nom"},
		},
	},
}

// TopicStatut returns the marital status a topic pair imposes on the
// decedent, "" when the topics leave it free. The pacs_concubinage case
// is probabilistic and handled by the generator.
func TopicStatut(primary, secondary string) string {
	if primary == TopicRegimesMatrimoniaux || secondary == TopicRegimesMatrimoniaux {
		return StatutMarie
	}
	if primary == TopicFamilleRecomposee {
		return StatutMarie
	}
	return ""
}
