package axes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultShares(t *testing.T) {
	tables := DefaultShares()

	t.Run("every axis is present", func(t *testing.T) {
		for _, axis := range DrawOrder {
			_, ok := tables[axis]
			assert.True(t, ok, "missing table for axis %s", axis)
		}
	})

	t.Run("every table sums to one", func(t *testing.T) {
		for axis, table := range tables {
			assert.NoError(t, table.Validate(), "axis %s", axis)
		}
	})

	t.Run("bucket order is the declaration order", func(t *testing.T) {
		personas := tables[AxisPersona].Buckets
		require.Len(t, personas, 12)
		assert.Equal(t, PersonaEnfant, personas[0])
		assert.Equal(t, PersonaNarrateurNeutre, personas[11])
	})

	t.Run("secondary topic mirrors primary topic", func(t *testing.T) {
		assert.Equal(t, tables[AxisPrimaryTopic].Buckets, tables[AxisSecondaryTopic].Buckets)
	})
}

func TestShareTable_Override(t *testing.T) {
	table := DefaultShares()[AxisPrimaryTopic]

	t.Run("replaces the whole distribution", func(t *testing.T) {
		forced, err := table.Override(map[string]float64{TopicAssuranceVie: 1.0})
		require.NoError(t, err)
		assert.Equal(t, 1.0, forced.Share(TopicAssuranceVie))
		assert.Equal(t, 0.0, forced.Share(TopicOrdreHeritiers))
		assert.Equal(t, table.Buckets, forced.Buckets)
	})

	t.Run("rejects unknown buckets", func(t *testing.T) {
		_, err := table.Override(map[string]float64{"droit_spatial": 1.0})
		assert.Error(t, err)
	})

	t.Run("rejects shares that do not sum to one", func(t *testing.T) {
		_, err := table.Override(map[string]float64{TopicAssuranceVie: 0.5})
		assert.Error(t, err)
	})
}

func TestProfile_Signature(t *testing.T) {
	base := Profile{
		Persona:        PersonaEnfant,
		Voice:          VoicePremierePersonne,
		Format:         FormatRecitLibre,
		LengthBand:     LengthMoyen,
		Noise:          NoisePropre,
		NumericDensity: NumericUnMontant,
		DatePrecision:  DateExacte,
		Complexity:     ComplexityIntermediaire,
		PrimaryTopic:   TopicAssuranceVie,
	}

	t.Run("joins selections with pipes in fixed order", func(t *testing.T) {
		want := "enfant|premiere_personne|recit_libre|moyen|propre|un_montant|exacte|intermediaire|assurance_vie"
		assert.Equal(t, want, base.Signature())
	})

	t.Run("intensity sits between complexity and topics", func(t *testing.T) {
		p := base
		p.Complexity = ComplexityHardNegative
		p.HardNegativeMode = HardNegInfosIncompletes
		p.HardNegativeIntensity = IntensitySoft
		p.SecondaryTopic = TopicDettesPassif
		want := "enfant|premiere_personne|recit_libre|moyen|propre|un_montant|exacte|hard_negative|soft|assurance_vie|dettes_passif"
		assert.Equal(t, want, p.Signature())
	})

	t.Run("hard negative mode never appears", func(t *testing.T) {
		p := base
		p.HardNegativeMode = HardNegPasDeDecesClair
		assert.Equal(t, base.Signature(), p.Signature())
	})
}

func TestProfile_BucketAccessors(t *testing.T) {
	var p Profile
	for i, axis := range DrawOrder {
		p.SetBucket(axis, DefaultShares()[axis].Buckets[i%2])
	}
	for _, axis := range DrawOrder {
		assert.NotEmpty(t, p.Bucket(axis), "axis %s", axis)
	}
}

func TestCompatibility(t *testing.T) {
	t.Run("montants et dates excludes aucune", func(t *testing.T) {
		assert.False(t, DatePrecisionAllowed(DateAucune, NumericMontantsEtDates))
		assert.True(t, DatePrecisionAllowed(DateApprox, NumericMontantsEtDates))
		assert.True(t, DatePrecisionAllowed(DateAucune, NumericUnMontant))
	})

	t.Run("pacs and concubin personas never draw regimes matrimoniaux", func(t *testing.T) {
		assert.False(t, TopicAllowedForPersona(PersonaPartenairePacs, TopicRegimesMatrimoniaux))
		assert.False(t, TopicAllowedForPersona(PersonaConcubin, TopicRegimesMatrimoniaux))
		assert.True(t, TopicAllowedForPersona(PersonaConjoint, TopicRegimesMatrimoniaux))
		assert.True(t, TopicAllowedForPersona(PersonaConcubin, TopicPacsConcubinage))
	})

	t.Run("secondary topic probability scales with complexity", func(t *testing.T) {
		assert.Equal(t, 0.15, SecondaryTopicProbability(ComplexitySimple))
		assert.Equal(t, 0.50, SecondaryTopicProbability(ComplexityIntermediaire))
		assert.Equal(t, 0.85, SecondaryTopicProbability(ComplexityComplexe))
		assert.Equal(t, 0.85, SecondaryTopicProbability(ComplexityHardNegative))
	})
}

func TestTopicTemplates(t *testing.T) {
	t.Run("every topic bucket carries a template", func(t *testing.T) {
		for _, topic := range DefaultShares()[AxisPrimaryTopic].Buckets {
			tpl, ok := TopicTemplates[topic]
			require.True(t, ok, "topic %s", topic)
			assert.NotEmpty(t, tpl.Label, "topic %s", topic)
			assert.NotEmpty(t, tpl.Keywords, "topic %s", topic)
			assert.NotEmpty(t, tpl.Elements, "topic %s", topic)
			assert.NotEmpty(t, tpl.Prefixes, "topic %s", topic)
			assert.NotEmpty(t, tpl.Required, "topic %s", topic)
		}
	})

	t.Run("known topic check", func(t *testing.T) {
		assert.True(t, KnownTopic(TopicAssuranceVie))
		assert.False(t, KnownTopic("droit_des_marques"))
	})
}

func TestLabels(t *testing.T) {
	t.Run("buckets resolve to french labels", func(t *testing.T) {
		assert.Equal(t, "le conjoint survivant", Label(AxisPersona, PersonaConjoint))
		assert.Equal(t, "cas simple", Label(AxisComplexity, ComplexitySimple))
	})

	t.Run("unknown bucket falls back to itself", func(t *testing.T) {
		assert.Equal(t, "inconnu", Label(AxisPersona, "inconnu"))
	})

	t.Run("every bucket of every axis has label and detail", func(t *testing.T) {
		for axis, table := range DefaultShares() {
			if axis == AxisPrimaryTopic || axis == AxisSecondaryTopic {
				continue
			}
			for _, bucket := range table.Buckets {
				assert.NotEqual(t, bucket, Label(axis, bucket), "label %s/%s", axis, bucket)
				assert.NotEmpty(t, Detail(axis, bucket), "detail %s/%s", axis, bucket)
			}
		}
	})

	t.Run("every axis has a purpose", func(t *testing.T) {
		for _, axis := range DrawOrder {
			assert.NotEmpty(t, Purpose(axis), "axis %s", axis)
		}
	})
}
