// Package axes defines the sampling space of the case generator: the
// twelve diversity axes, their target share tables, the French
// presentation data rendered into prompts, and the topic templates that
// bind each legal topic to regions of the master schema.
//
// Everything here is data. The scheduling logic that consumes the tables
// lives in internal/quota, the payload construction in internal/synth.
package axes

import (
	"fmt"
	"math"
	"strings"
)

// Axis identifies one sampling dimension of a case profile.
type Axis string

const (
	AxisPersona               Axis = "persona"
	AxisVoice                 Axis = "voice"
	AxisFormat                Axis = "format"
	AxisLengthBand            Axis = "length_band"
	AxisNoise                 Axis = "noise"
	AxisNumericDensity        Axis = "numeric_density"
	AxisDatePrecision         Axis = "date_precision"
	AxisComplexity            Axis = "complexity"
	AxisPrimaryTopic          Axis = "primary_topic"
	AxisSecondaryTopic        Axis = "secondary_topic"
	AxisHardNegativeMode      Axis = "hard_negative_mode"
	AxisHardNegativeIntensity Axis = "hard_negative_intensity"
)

// DrawOrder lists the axes in the order the scheduler draws them.
var DrawOrder = []Axis{
	AxisPersona,
	AxisVoice,
	AxisFormat,
	AxisLengthBand,
	AxisNoise,
	AxisNumericDensity,
	AxisDatePrecision,
	AxisComplexity,
	AxisPrimaryTopic,
	AxisSecondaryTopic,
	AxisHardNegativeMode,
	AxisHardNegativeIntensity,
}

// Persona buckets.
const (
	PersonaEnfant          = "enfant"
	PersonaConjoint        = "conjoint"
	PersonaBeauEnfant      = "beau_enfant"
	PersonaFratrie         = "fratrie"
	PersonaNotaire         = "notaire"
	PersonaAvocat          = "avocat"
	PersonaPartenairePacs  = "partenaire_pacs"
	PersonaConcubin        = "concubin"
	PersonaAssocie         = "associe"
	PersonaPetitEnfant     = "petit_enfant"
	PersonaTiers           = "tiers"
	PersonaNarrateurNeutre = "narrateur_neutre"
)

// Voice buckets.
const (
	VoicePremierePersonne  = "premiere_personne"
	VoiceTroisiemePersonne = "troisieme_personne"
	VoiceNoteDossier       = "note_dossier"
	VoiceParoleRapportee   = "parole_rapportee"
)

// Format buckets.
const (
	FormatQuestionDirecte     = "question_directe"
	FormatMailBrouillon       = "mail_brouillon"
	FormatRecitLibre          = "recit_libre"
	FormatNoteProfessionnelle = "note_professionnelle"
	FormatOralRetranscrit     = "oral_retranscrit"
	FormatMessageConflictuel  = "message_conflictuel"
)

// Length buckets.
const (
	LengthCourt    = "court"
	LengthMoyen    = "moyen"
	LengthLong     = "long"
	LengthTresLong = "tres_long"
)

// Noise buckets.
const (
	NoisePropre               = "propre"
	NoiseLegeresFautes        = "legeres_fautes"
	NoiseFautesEtAbreviations = "fautes_et_abreviations"
	NoiseAmbigu               = "ambigu"
	NoiseTresBrouillon        = "tres_brouillon"
)

// Numeric density buckets.
const (
	NumericSansMontant       = "sans_montant"
	NumericUnMontant         = "un_montant"
	NumericPlusieursMontants = "plusieurs_montants"
	NumericMontantsEtDates   = "montants_et_dates"
)

// Date precision buckets.
const (
	DateAucune = "aucune"
	DateApprox = "approx"
	DateExacte = "exacte"
)

// Complexity buckets.
const (
	ComplexitySimple        = "simple"
	ComplexityIntermediaire = "intermediaire"
	ComplexityComplexe      = "complexe"
	ComplexityHardNegative  = "hard_negative"
)

// Topic buckets, shared by the primary and secondary topic axes.
const (
	TopicOrdreHeritiers         = "ordre_heritiers"
	TopicFamilleRecomposee      = "famille_recomposee"
	TopicRegimesMatrimoniaux    = "regimes_matrimoniaux"
	TopicDonationsReduction     = "donations_reduction"
	TopicAssuranceVie           = "assurance_vie"
	TopicIndivisionPartage      = "indivision_partage"
	TopicEntrepriseDutreil      = "entreprise_dutreil"
	TopicDemembrementUsufruit   = "demembrement_usufruit"
	TopicTestamentLegs          = "testament_legs"
	TopicDettesPassif           = "dettes_passif"
	TopicPacsConcubinage        = "pacs_concubinage"
	TopicInternationalProcedure = "international_procedure"
)

// Hard negative mode buckets.
const (
	HardNegPasDeDecesClair          = "pas_de_deces_clair"
	HardNegInfosIncompletes         = "infos_incompletes"
	HardNegFaitsContradictoires     = "faits_contradictoires"
	HardNegHorsPerimetreMalQualifie = "hors_perimetre_mal_qualifie"
)

// Hard negative intensity buckets.
const (
	IntensitySoft = "soft"
	IntensityHard = "hard"
)

// BucketShare pairs a bucket with its target share of the campaign.
type BucketShare struct {
	Bucket string
	Share  float64
}

// ShareTable is one axis's target distribution. Buckets keeps the fixed
// declaration order so that deficit picking iterates deterministically
// under a seeded RNG.
type ShareTable struct {
	Buckets []string
	shares  map[string]float64
}

// NewShareTable builds a table from ordered bucket/share pairs.
func NewShareTable(entries []BucketShare) ShareTable {
	table := ShareTable{
		Buckets: make([]string, 0, len(entries)),
		shares:  make(map[string]float64, len(entries)),
	}
	for _, entry := range entries {
		table.Buckets = append(table.Buckets, entry.Bucket)
		table.shares[entry.Bucket] = entry.Share
	}
	return table
}

// Share returns the target share of a bucket, 0 for unknown buckets.
func (t ShareTable) Share(bucket string) float64 {
	return t.shares[bucket]
}

// Has reports whether the bucket belongs to the axis.
func (t ShareTable) Has(bucket string) bool {
	_, ok := t.shares[bucket]
	return ok
}

// Validate checks that shares are non-negative and sum to 1 within 1e-6.
func (t ShareTable) Validate() error {
	sum := 0.0
	for _, bucket := range t.Buckets {
		share := t.shares[bucket]
		if share < 0 {
			return fmt.Errorf("bucket %q has negative share %v", bucket, share)
		}
		sum += share
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("shares sum to %v, want 1.0", sum)
	}
	return nil
}

// Override returns a copy of the table with shares replaced wholesale.
// Buckets absent from the override get share 0 and become unreachable,
// which is how a campaign forces production onto specific buckets.
// Buckets unknown to the axis are an error.
func (t ShareTable) Override(shares map[string]float64) (ShareTable, error) {
	out := ShareTable{
		Buckets: append([]string(nil), t.Buckets...),
		shares:  make(map[string]float64, len(t.Buckets)),
	}
	for bucket := range shares {
		if !t.Has(bucket) {
			return ShareTable{}, fmt.Errorf("unknown bucket %q", bucket)
		}
	}
	for _, bucket := range t.Buckets {
		out.shares[bucket] = shares[bucket]
	}
	if err := out.Validate(); err != nil {
		return ShareTable{}, err
	}
	return out, nil
}

// DefaultShares returns the built-in target distribution for every axis.
// The secondary topic axis reuses the primary topic table.
func DefaultShares() map[Axis]ShareTable {
	return map[Axis]ShareTable{
		AxisPersona: NewShareTable([]BucketShare{
			{PersonaEnfant, 0.18},
			{PersonaConjoint, 0.12},
			{PersonaBeauEnfant, 0.09},
			{PersonaFratrie, 0.08},
			{PersonaNotaire, 0.08},
			{PersonaAvocat, 0.07},
			{PersonaPartenairePacs, 0.07},
			{PersonaConcubin, 0.06},
			{PersonaAssocie, 0.07},
			{PersonaPetitEnfant, 0.05},
			{PersonaTiers, 0.05},
			{PersonaNarrateurNeutre, 0.08},
		}),
		AxisVoice: NewShareTable([]BucketShare{
			{VoicePremierePersonne, 0.45},
			{VoiceTroisiemePersonne, 0.35},
			{VoiceNoteDossier, 0.10},
			{VoiceParoleRapportee, 0.10},
		}),
		AxisFormat: NewShareTable([]BucketShare{
			{FormatQuestionDirecte, 0.22},
			{FormatMailBrouillon, 0.18},
			{FormatRecitLibre, 0.22},
			{FormatNoteProfessionnelle, 0.14},
			{FormatOralRetranscrit, 0.14},
			{FormatMessageConflictuel, 0.10},
		}),
		AxisLengthBand: NewShareTable([]BucketShare{
			{LengthCourt, 0.18},
			{LengthMoyen, 0.42},
			{LengthLong, 0.32},
			{LengthTresLong, 0.08},
		}),
		AxisNoise: NewShareTable([]BucketShare{
			{NoisePropre, 0.42},
			{NoiseLegeresFautes, 0.22},
			{NoiseFautesEtAbreviations, 0.17},
			{NoiseAmbigu, 0.16},
			{NoiseTresBrouillon, 0.03},
		}),
		AxisNumericDensity: NewShareTable([]BucketShare{
			{NumericSansMontant, 0.06},
			{NumericUnMontant, 0.26},
			{NumericPlusieursMontants, 0.38},
			{NumericMontantsEtDates, 0.30},
		}),
		AxisDatePrecision: NewShareTable([]BucketShare{
			{DateAucune, 0.15},
			{DateApprox, 0.20},
			{DateExacte, 0.65},
		}),
		AxisComplexity: NewShareTable([]BucketShare{
			{ComplexitySimple, 0.20},
			{ComplexityIntermediaire, 0.40},
			{ComplexityComplexe, 0.24},
			{ComplexityHardNegative, 0.16},
		}),
		AxisPrimaryTopic:   topicShares(),
		AxisSecondaryTopic: topicShares(),
		AxisHardNegativeMode: NewShareTable([]BucketShare{
			{HardNegPasDeDecesClair, 0.30},
			{HardNegInfosIncompletes, 0.30},
			{HardNegFaitsContradictoires, 0.25},
			{HardNegHorsPerimetreMalQualifie, 0.15},
		}),
		AxisHardNegativeIntensity: NewShareTable([]BucketShare{
			{IntensitySoft, 0.80},
			{IntensityHard, 0.20},
		}),
	}
}

func topicShares() ShareTable {
	return NewShareTable([]BucketShare{
		{TopicOrdreHeritiers, 0.08},
		{TopicFamilleRecomposee, 0.12},
		{TopicRegimesMatrimoniaux, 0.08},
		{TopicDonationsReduction, 0.10},
		{TopicAssuranceVie, 0.10},
		{TopicIndivisionPartage, 0.09},
		{TopicEntrepriseDutreil, 0.08},
		{TopicDemembrementUsufruit, 0.06},
		{TopicTestamentLegs, 0.08},
		{TopicDettesPassif, 0.06},
		{TopicPacsConcubinage, 0.07},
		{TopicInternationalProcedure, 0.08},
	})
}

// Profile is one full draw across the axes. SecondaryTopic and the two
// hard negative fields are empty when not drawn.
type Profile struct {
	Persona               string `json:"persona"`
	Voice                 string `json:"voice"`
	Format                string `json:"format"`
	LengthBand            string `json:"length_band"`
	Noise                 string `json:"noise"`
	NumericDensity        string `json:"numeric_density"`
	DatePrecision         string `json:"date_precision"`
	Complexity            string `json:"complexity"`
	PrimaryTopic          string `json:"primary_topic"`
	SecondaryTopic        string `json:"secondary_topic,omitempty"`
	HardNegativeMode      string `json:"hard_negative_mode,omitempty"`
	HardNegativeIntensity string `json:"hard_negative_intensity,omitempty"`
}

// Bucket returns the profile's selection on the given axis.
func (p Profile) Bucket(axis Axis) string {
	switch axis {
	case AxisPersona:
		return p.Persona
	case AxisVoice:
		return p.Voice
	case AxisFormat:
		return p.Format
	case AxisLengthBand:
		return p.LengthBand
	case AxisNoise:
		return p.Noise
	case AxisNumericDensity:
		return p.NumericDensity
	case AxisDatePrecision:
		return p.DatePrecision
	case AxisComplexity:
		return p.Complexity
	case AxisPrimaryTopic:
		return p.PrimaryTopic
	case AxisSecondaryTopic:
		return p.SecondaryTopic
	case AxisHardNegativeMode:
		return p.HardNegativeMode
	case AxisHardNegativeIntensity:
		return p.HardNegativeIntensity
	}
	return ""
}

// SetBucket writes the profile's selection on the given axis.
func (p *Profile) SetBucket(axis Axis, bucket string) {
	switch axis {
	case AxisPersona:
		p.Persona = bucket
	case AxisVoice:
		p.Voice = bucket
	case AxisFormat:
		p.Format = bucket
	case AxisLengthBand:
		p.LengthBand = bucket
	case AxisNoise:
		p.Noise = bucket
	case AxisNumericDensity:
		p.NumericDensity = bucket
	case AxisDatePrecision:
		p.DatePrecision = bucket
	case AxisComplexity:
		p.Complexity = bucket
	case AxisPrimaryTopic:
		p.PrimaryTopic = bucket
	case AxisSecondaryTopic:
		p.SecondaryTopic = bucket
	case AxisHardNegativeMode:
		p.HardNegativeMode = bucket
	case AxisHardNegativeIntensity:
		p.HardNegativeIntensity = bucket
	}
}

// Signature joins the non-empty selections with "|" in a fixed order.
// Two profiles with the same signature read as near-duplicates to the
// scheduler. The hard negative mode stays out of the signature: two traps
// of the same intensity on the same topics are already too close.
func (p Profile) Signature() string {
	parts := make([]string, 0, 11)
	for _, part := range []string{
		p.Persona,
		p.Voice,
		p.Format,
		p.LengthBand,
		p.Noise,
		p.NumericDensity,
		p.DatePrecision,
		p.Complexity,
		p.HardNegativeIntensity,
		p.PrimaryTopic,
		p.SecondaryTopic,
	} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "|")
}
