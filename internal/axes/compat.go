package axes

// Compatibility rules between axes. The scheduler applies these while
// drawing so that impossible profiles are never issued.

// DatePrecisionAllowed reports whether a date precision bucket may be
// drawn for the given numeric density. A case required to carry montants
// et dates cannot simultaneously promise no date at all.
func DatePrecisionAllowed(precision, numericDensity string) bool {
	if numericDensity == NumericMontantsEtDates {
		return precision != DateAucune
	}
	return true
}

// TopicAllowedForPersona reports whether a persona may draw a topic.
// PACS partners and concubines never narrate matrimonial-regime cases:
// the regime presupposes a marriage their own status contradicts.
func TopicAllowedForPersona(persona, topic string) bool {
	if topic != TopicRegimesMatrimoniaux {
		return true
	}
	return persona != PersonaPartenairePacs && persona != PersonaConcubin
}

// SecondaryTopicProbability returns the chance a profile of the given
// complexity carries a secondary topic. Flat simple cases mostly stay
// single-topic; complex and hard negative cases almost always layer two.
func SecondaryTopicProbability(complexity string) float64 {
	switch complexity {
	case ComplexitySimple:
		return 0.15
	case ComplexityIntermediaire:
		return 0.50
	case ComplexityComplexe, ComplexityHardNegative:
		return 0.85
	}
	return 0.50
}

// HardNegativeAxesActive reports whether the two hard negative axes are
// drawn at all for the given complexity.
func HardNegativeAxesActive(complexity string) bool {
	return complexity == ComplexityHardNegative
}
