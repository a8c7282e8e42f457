package axes

// Requirements returns the mandatory prompt constraints attached to a
// bucket. Only the presentation axes carry requirements; topic elements
// live on the TopicTemplate.
func Requirements(axis Axis, bucket string) []string {
	if m, ok := requirements[axis]; ok {
		return m[bucket]
	}
	return nil
}

// CommonMustAvoid lists the prohibitions appended to every prompt.
var CommonMustAvoid = []string{
	"Ne pas donner la solution ni conclure sur les droits exacts.",
	"Ne pas fournir d'analyse juridique, de calcul ou de raisonnement explicatif.",
	"Ne pas répondre en liste de points juridiques ou en checklist.",
	"Ne pas recopier mot pour mot les exemples de référence.",
	"Ne pas remplacer la paire demandée par un texte libre, une checklist ou un pseudo-format.",
}

var requirements = map[Axis]map[string][]string{
	AxisFormat: {
		FormatQuestionDirecte:     {"terminer comme une vraie question ou une demande de conseil"},
		FormatMailBrouillon:       {"faire sentir un message envoyé vite, sans mise en forme parfaite"},
		FormatRecitLibre:          {"laisser le narrateur dérouler les faits sans structure trop scolaire"},
		FormatNoteProfessionnelle: {"style sec, quasi-notarial ou cabinet"},
		FormatOralRetranscrit:     {"ponctuation un peu irrégulière, rythme oral"},
		FormatMessageConflictuel:  {"faire sentir un conflit ou une tension explicite"},
	},
	AxisLengthBand: {
		LengthCourt:    {"viser un cas bref et dense, sans devenir télégraphique"},
		LengthMoyen:    {"viser un niveau de détail intermédiaire, lisible d'un seul bloc"},
		LengthLong:     {"ajouter assez de matière factuelle pour un cas nettement développé"},
		LengthTresLong: {"viser un cas riche, détaillé et multi-couches, sans donner la solution"},
	},
	AxisNoise: {
		NoisePropre:               {"pas d'erreur volontaire obligatoire"},
		NoiseLegeresFautes:        {"ajouter 1 ou 2 fautes réalistes maximum"},
		NoiseFautesEtAbreviations: {"ajouter quelques abréviations réalistes (AV, RP, M., Mme, etc.)"},
		NoiseAmbigu:               {"laisser au moins un détail flou, approximatif ou contesté"},
		NoiseTresBrouillon:        {"laisser des morceaux incomplets, hésitants ou mal ponctués"},
	},
	AxisNumericDensity: {
		NumericSansMontant:       {"aucun chiffre n'est obligatoire"},
		NumericUnMontant:         {"inclure au moins un montant ou une valeur"},
		NumericPlusieursMontants: {"inclure plusieurs montants, valeurs ou proportions"},
		NumericMontantsEtDates:   {"inclure au moins un montant et une date utile, de préférence exacte"},
	},
	AxisDatePrecision: {
		DateAucune:        {"aucune date n'est obligatoire si elle n'apporte rien"},
		DateApprox:        {"utiliser un repère temporel flou ou approximatif si une date apparaît"},
		DateExacte:        {"inclure au moins une date exacte (jour/mois/année ou format ISO)"},
	},
	AxisHardNegativeMode: {
		HardNegPasDeDecesClair: {
			"le texte doit ressembler à une succession mais sans décès exploitable clairement posé",
		},
		HardNegInfosIncompletes: {
			"laisser manquer une donnée-clé (date, lien, testament, régime, composition des héritiers)",
		},
		HardNegFaitsContradictoires: {
			"introduire une contradiction factuelle réaliste sans la résoudre",
		},
		HardNegHorsPerimetreMalQualifie: {
			"faire croire à une succession alors qu'une partie du problème relève d'autre chose",
		},
	},
	AxisHardNegativeIntensity: {
		IntensitySoft:             {"ne mettre qu'un défaut principal, le cas doit rester très crédible au premier regard"},
		IntensityHard:             {"cumuler au moins deux sources de confusion sans rendre le texte absurde"},
	},
}
