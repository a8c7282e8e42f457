package axes

// Label returns the short French label of a bucket, rendered into the
// per-axis prompt lines. Unknown buckets fall back to the bucket itself.
func Label(axis Axis, bucket string) string {
	if m, ok := labels[axis]; ok {
		if label, ok := m[bucket]; ok {
			return label
		}
	}
	return bucket
}

// Detail returns the one-sentence French expansion of a bucket, used in
// the dimension guide embedded in persisted instructions.
func Detail(axis Axis, bucket string) string {
	if m, ok := details[axis]; ok {
		return m[bucket]
	}
	return ""
}

// Purpose returns the French explanation of what an axis controls.
func Purpose(axis Axis) string {
	return purposes[axis]
}

var labels = map[Axis]map[string]string{
	AxisPersona: {
		PersonaEnfant:          "un enfant du défunt",
		PersonaConjoint:        "le conjoint survivant",
		PersonaBeauEnfant:      "un beau-fils ou une belle-fille",
		PersonaFratrie:         "un frère ou une sœur",
		PersonaNotaire:         "un notaire ou un clerc",
		PersonaAvocat:          "un avocat en contentieux",
		PersonaPartenairePacs:  "le partenaire de PACS",
		PersonaConcubin:        "le concubin ou la concubine",
		PersonaAssocie:         "un associé ou coindivisaire",
		PersonaPetitEnfant:     "un petit-enfant",
		PersonaTiers:           "un voisin, aidant ou proche extérieur",
		PersonaNarrateurNeutre: "un narrateur externe neutre",
	},
	AxisVoice: {
		VoicePremierePersonne:  "à la première personne",
		VoiceTroisiemePersonne: "à la troisième personne",
		VoiceNoteDossier:       "en note de dossier",
		VoiceParoleRapportee:   "en parole rapportée",
	},
	AxisFormat: {
		FormatQuestionDirecte:     "question directe courte",
		FormatMailBrouillon:       "mail brouillon ou message client",
		FormatRecitLibre:          "récit libre",
		FormatNoteProfessionnelle: "synthèse professionnelle",
		FormatOralRetranscrit:     "oral retranscrit avec ponctuation irrégulière",
		FormatMessageConflictuel:  "message conflictuel ou familial tendu",
	},
	AxisLengthBand: {
		LengthCourt:    "court (1 à 3 phrases)",
		LengthMoyen:    "moyen (un paragraphe net)",
		LengthLong:     "long (paragraphe dense ou deux blocs)",
		LengthTresLong: "très long (cas détaillé quasi dossier)",
	},
	AxisNoise: {
		NoisePropre:               "français propre, quasiment sans bruit",
		NoiseLegeresFautes:        "1 ou 2 fautes crédibles",
		NoiseFautesEtAbreviations: "fautes légères + abréviations réalistes",
		NoiseAmbigu:               "formulation floue avec zones d'ombre",
		NoiseTresBrouillon:        "message très brouillon mais compréhensible",
	},
	AxisNumericDensity: {
		NumericSansMontant:       "aucun montant obligatoire",
		NumericUnMontant:         "au moins un montant ou une valeur approximative",
		NumericPlusieursMontants: "plusieurs montants ou valorisations",
		NumericMontantsEtDates:   "montants + au moins une date utile",
	},
	AxisDatePrecision: {
		DateAucune: "aucune date imposée",
		DateApprox: "repères temporels approximatifs",
		DateExacte: "au moins une date exacte",
	},
	AxisComplexity: {
		ComplexitySimple:        "cas simple",
		ComplexityIntermediaire: "cas intermédiaire",
		ComplexityComplexe:      "cas complexe",
		ComplexityHardNegative:  "hard negative volontaire",
	},
	AxisHardNegativeMode: {
		HardNegPasDeDecesClair:          "faux ami sans décès clairement exploitable",
		HardNegInfosIncompletes:         "dossier incomplet avec infos majeures manquantes",
		HardNegFaitsContradictoires:     "faits contradictoires ou incohérents",
		HardNegHorsPerimetreMalQualifie: "hors périmètre ou mal qualifié mais proche de la succession",
	},
	AxisHardNegativeIntensity: {
		IntensitySoft: "hard negative léger, très proche d'un vrai cas",
		IntensityHard: "hard negative dur, plus piégeux et plus bruité",
	},
}

var details = map[Axis]map[string]string{
	AxisPersona: {
		PersonaEnfant:          "Le narrateur connaît souvent bien les faits, mais il peut être émotionnel ou partiel.",
		PersonaConjoint:        "Le narrateur met souvent en avant sa protection, ses droits et le patrimoine de couple.",
		PersonaBeauEnfant:      "Le narrateur est souvent dans un angle conflictuel ou comparatif avec les autres branches.",
		PersonaFratrie:         "Le narrateur parle souvent de collatéraux, de tensions familiales et d'égalité entre proches.",
		PersonaNotaire:         "Le ton attendu est plus sec, structuré et factuel, avec un prisme de dossier.",
		PersonaAvocat:          "Le ton attendu met davantage l'accent sur le litige, la contestation et les points sensibles.",
		PersonaPartenairePacs:  "Le narrateur met souvent l'accent sur la protection insuffisante ou incertaine du survivant.",
		PersonaConcubin:        "Le narrateur est souvent dans une situation fragile, mal protégée ou mal comprise.",
		PersonaAssocie:         "Le narrateur met souvent en avant la copropriété, la gestion ou la valeur d'un actif partagé.",
		PersonaPetitEnfant:     "Le narrateur fait souvent apparaître la représentation, une branche familiale ou un décalage générationnel.",
		PersonaTiers:           "Le narrateur est utile pour introduire de l'imprécision ou une compréhension partielle des faits.",
		PersonaNarrateurNeutre: "Le narrateur expose les faits sans implication personnelle directe, de façon plus neutre.",
	},
	AxisVoice: {
		VoicePremierePersonne:  "Le texte doit ressembler à une personne qui expose sa propre situation.",
		VoiceTroisiemePersonne: "Le texte doit ressembler à une présentation extérieure d'un dossier ou d'un cas d'espèce.",
		VoiceNoteDossier:       "Le texte doit ressembler à une note interne ou une fiche de dossier.",
		VoiceParoleRapportee:   "Le texte doit donner l'impression que les faits sont rapportés, transmis ou reformulés.",
	},
	AxisFormat: {
		FormatQuestionDirecte:     "Le cas doit se terminer comme une vraie demande adressée à un professionnel.",
		FormatMailBrouillon:       "Le cas doit ressembler à un message envoyé vite, imparfait mais exploitable.",
		FormatRecitLibre:          "Le cas doit dérouler les faits sans plan apparent ni structure scolaire.",
		FormatNoteProfessionnelle: "Le cas doit avoir une forme sèche, quasi cabinet, quasi-notaire.",
		FormatOralRetranscrit:     "Le cas doit garder une cadence parlée, avec une ponctuation un peu irrégulière.",
		FormatMessageConflictuel:  "Le cas doit laisser sentir une tension explicite ou un désaccord familial.",
	},
	AxisLengthBand: {
		LengthCourt:    "Le cas doit rester bref mais contenir l'essentiel sans tomber dans le télégraphique.",
		LengthMoyen:    "Le cas doit tenir dans un bloc lisible avec un bon niveau de matière.",
		LengthLong:     "Le cas doit être nettement développé avec plusieurs informations utiles.",
		LengthTresLong: "Le cas doit ressembler à un mini-dossier riche, sans basculer dans l'analyse.",
	},
	AxisNoise: {
		NoisePropre:               "Le texte peut être très propre, avec peu ou pas de défaut volontaire.",
		NoiseLegeresFautes:        "Le texte peut contenir 1 ou 2 fautes crédibles, pas davantage.",
		NoiseFautesEtAbreviations: "Le texte doit garder une bonne lisibilité tout en injectant des abréviations réalistes.",
		NoiseAmbigu:               "Le texte doit comporter au moins une zone d'ombre, un point mal posé ou discutable.",
		NoiseTresBrouillon:        "Le texte peut être haché, hésitant ou mal ponctué, mais il doit rester compréhensible.",
	},
	AxisNumericDensity: {
		NumericSansMontant:       "Les chiffres ne sont pas obligatoires si le cas reste crédible sans eux.",
		NumericUnMontant:         "Il faut au moins une valeur ou un ordre de grandeur exploitable.",
		NumericPlusieursMontants: "Il faut plusieurs chiffres utiles pour enrichir le dossier.",
		NumericMontantsEtDates:   "Il faut au moins un montant et une date utile, de préférence bien exploitable.",
	},
	AxisDatePrecision: {
		DateAucune: "Aucune date n'est imposée si cela ne sert pas le cas.",
		DateApprox: "Les repères temporels peuvent rester flous, relatifs ou approximatifs.",
		DateExacte: "Au moins une date doit être réellement exploitable (jour/mois/année ou ISO).",
	},
	AxisComplexity: {
		ComplexitySimple:        "Le cas doit rester lisible, direct et peu imbriqué.",
		ComplexityIntermediaire: "Le cas doit comporter quelques couches factuelles mais rester assez standard.",
		ComplexityComplexe:      "Le cas doit cumuler plusieurs éléments ou tensions sans devenir confus.",
		ComplexityHardNegative:  "Le cas doit volontairement piéger un extracteur ou un lecteur trop confiant.",
	},
	AxisHardNegativeMode: {
		HardNegPasDeDecesClair:          "Le texte doit ressembler à une succession sans poser clairement un décès exploitable.",
		HardNegInfosIncompletes:         "Une donnée pivot doit manquer, empêchant une lecture trop simple du cas.",
		HardNegFaitsContradictoires:     "Une contradiction réaliste doit être présente sans être explicitement résolue.",
		HardNegHorsPerimetreMalQualifie: "Le texte doit sembler successoral alors qu'une partie du problème relève d'autre chose.",
	},
	AxisHardNegativeIntensity: {
		IntensitySoft: "Un seul défaut majeur suffit, le cas doit rester très crédible au premier regard.",
		IntensityHard: "Le cas doit cumuler plusieurs confusions tout en restant plausible.",
	},
}

var purposes = map[Axis]string{
	AxisPersona: "Définit qui parle ou depuis quel point de vue social / familial / professionnel " +
		"le cas est raconté. Cela change le biais du narrateur, son niveau d'information " +
		"et le vocabulaire attendu.",
	AxisVoice: "Définit la posture narrative et la grammaire du récit. Cela change la distance " +
		"émotionnelle, la clarté et la manière d'exposer les faits.",
	AxisFormat: "Définit la forme matérielle du texte. Cela évite que tous les cas ressemblent " +
		"à des énoncés scolaires homogènes.",
	AxisLengthBand: "Définit la profondeur factuelle attendue. Cela contrôle la quantité de détails " +
		"et la densité d'information à inclure.",
	AxisNoise: "Définit le niveau de bruit linguistique. Cela simule des entrées plus ou moins " +
		"propres, plus ou moins réalistes côté utilisateur.",
	AxisNumericDensity: "Définit la quantité de chiffres, montants, proportions ou valorisations à faire " +
		"apparaître dans le cas.",
	AxisDatePrecision: "Définit le niveau de précision temporelle attendu, afin de varier entre absence " +
		"de date, repères flous et dates réellement exploitables.",
	AxisComplexity: "Définit la difficulté globale du dossier. Cela contrôle le nombre de couches " +
		"juridiques, de tensions factuelles et la part de cas piégeux.",
	AxisPrimaryTopic: "Définit le coeur juridique du cas. C'est la matière principale qui doit structurer " +
		"l'énoncé.",
	AxisSecondaryTopic: "Ajoute une seconde couche facultative au dossier pour éviter les cas trop plats. " +
		"Le sujet secondaire complique ou enrichit le sujet principal.",
	AxisHardNegativeMode: "Définit la nature du piège lorsque le cas est volontairement un hard negative. " +
		"Ce champ reste inactif si la complexité n'est pas hard negative.",
	AxisHardNegativeIntensity: "Dose la violence du piège sur les hard negatives. Ce champ reste inactif si la " +
		"complexité n'est pas hard negative.",
}
