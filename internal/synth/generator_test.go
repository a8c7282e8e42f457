package synth

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseforge/internal/axes"
	"caseforge/internal/schema"
)

// roundTripCodec hands back the encoded payload on decode, standing in
// for the TOON CLI.
type roundTripCodec struct {
	last map[string]any
}

func (c *roundTripCodec) Encode(_ context.Context, payload map[string]any) (string, error) {
	c.last = payload
	return "famille:\n  defunt:", nil
}

func (c *roundTripCodec) Decode(_ context.Context, _ string) (map[string]any, error) {
	return c.last, nil
}

func loadTestIndex(t *testing.T) *schema.Index {
	t.Helper()
	idx, err := schema.Load("../../testdata/schema_cible.json")
	require.NoError(t, err)
	return idx
}

func testGenerator(t *testing.T) *Generator {
	t.Helper()
	return &Generator{
		Index:       loadTestIndex(t),
		Codec:       &roundTripCodec{},
		Seed:        42,
		MaxAttempts: 50,
	}
}

func baseProfile() axes.Profile {
	return axes.Profile{
		Persona:        axes.PersonaEnfant,
		Voice:          axes.VoicePremierePersonne,
		Format:         axes.FormatRecitLibre,
		LengthBand:     axes.LengthMoyen,
		Noise:          axes.NoisePropre,
		NumericDensity: axes.NumericUnMontant,
		DatePrecision:  axes.DateExacte,
		Complexity:     axes.ComplexityIntermediaire,
		PrimaryTopic:   axes.TopicOrdreHeritiers,
	}
}

func TestGenerateEveryTopic(t *testing.T) {
	g := testGenerator(t)
	for i, topic := range axes.Topics {
		t.Run(topic, func(t *testing.T) {
			profile := baseProfile()
			profile.PrimaryTopic = topic
			if topic == axes.TopicRegimesMatrimoniaux {
				profile.Persona = axes.PersonaConjoint
			}
			result, err := g.Generate(context.Background(), profile, i+1)
			require.NoError(t, err)
			assert.NotEmpty(t, result.TOON)
			assert.GreaterOrEqual(t, result.Attempts, 1)

			require.NoError(t, schema.ValidateSparse(result.Payload))
			require.NoError(t, g.Index.ValidatePayload(result.Payload))
			assert.True(t, topicPresent(result.Payload, topic),
				"le topic %s doit être matérialisé dans la cible", topic)
		})
	}
}

func TestBuildAttemptDeterministic(t *testing.T) {
	g := testGenerator(t)
	profile := baseProfile()

	build := func() map[string]any {
		for attempt := 1; attempt <= g.MaxAttempts; attempt++ {
			rng := rand.New(rand.NewSource(g.Seed*1000 + 7*100 + int64(attempt)))
			if payload, err := g.BuildAttempt(profile, rng); err == nil {
				return payload
			}
		}
		t.Fatal("aucune tentative n'a abouti")
		return nil
	}

	first := build()
	second := build()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("deux reconstructions de la même séquence divergent (-première +seconde):\n%s", diff)
	}
}

func TestGenerateForcesIdentityAnchors(t *testing.T) {
	g := testGenerator(t)
	profile := baseProfile()
	// Several sequences: the full identity subtree is unconditional, not
	// a sampling accident.
	for seq := 3; seq <= 8; seq++ {
		result, err := g.Generate(context.Background(), profile, seq)
		require.NoError(t, err)

		famille := result.Payload["famille"].(map[string]any)
		defunt := famille["defunt"].(map[string]any)
		assert.NotEmpty(t, defunt["nom"])
		assert.NotEmpty(t, defunt["statut_matrimonial"])

		death := parseISODate(defunt["date_deces"].(string))
		require.NotNil(t, death)
		birth := parseISODate(defunt["date_naissance"].(string))
		require.NotNil(t, birth, "séquence %d: date de naissance manquante", seq)
		require.True(t, birth.before(*death))

		age, ok := intValue(defunt["age"])
		require.True(t, ok, "séquence %d: âge du défunt manquant", seq)
		assert.LessOrEqual(t, abs(yearsBetween(*birth, *death)-age), 1)
	}
}

func TestGeneratedDatesRelativeToDeath(t *testing.T) {
	g := testGenerator(t)
	profile := baseProfile()
	profile.PrimaryTopic = axes.TopicDonationsReduction
	profile.Complexity = axes.ComplexityComplexe
	for seq := 31; seq <= 35; seq++ {
		result, err := g.Generate(context.Background(), profile, seq)
		require.NoError(t, err)

		famille := result.Payload["famille"].(map[string]any)
		defunt := famille["defunt"].(map[string]any)
		death := parseISODate(defunt["date_deces"].(string))
		require.NotNil(t, death)
		assertDatesNotAfter(t, result.Payload, "", *death)
	}
}

// assertDatesNotAfter walks the payload and fails on any date leaf that
// postdates the death.
func assertDatesNotAfter(t *testing.T, node any, where string, death isoParts) {
	t.Helper()
	switch v := node.(type) {
	case map[string]any:
		for key, child := range v {
			childWhere := key
			if where != "" {
				childWhere = where + "." + key
			}
			if strings.Contains(key, "date") && key != "date_deces" {
				if text, ok := child.(string); ok {
					d := parseISODate(text)
					require.NotNil(t, d, "%s: date illisible %q", childWhere, text)
					assert.False(t, death.before(*d), "%s: %s postérieure au décès", childWhere, text)
					continue
				}
			}
			assertDatesNotAfter(t, child, childWhere, death)
		}
	case []any:
		for _, elem := range v {
			assertDatesNotAfter(t, elem, where+".*", death)
		}
	}
}

func TestRepairMaritalStatusRegimes(t *testing.T) {
	g := testGenerator(t)
	profile := baseProfile()
	profile.Persona = axes.PersonaConjoint
	profile.PrimaryTopic = axes.TopicRegimesMatrimoniaux

	result, err := g.Generate(context.Background(), profile, 11)
	require.NoError(t, err)

	famille := result.Payload["famille"].(map[string]any)
	defunt := famille["defunt"].(map[string]any)
	assert.Equal(t, axes.StatutMarie, defunt["statut_matrimonial"])

	partenaire, ok := famille["partenaire"].(map[string]any)
	require.True(t, ok, "un défunt marié doit avoir un conjoint dans la cible")
	lien := partenaire["lien"].(map[string]any)
	assert.Equal(t, axes.LienConjoint, lien["type"])

	regime := defunt["regime_matrimonial"].(map[string]any)
	assert.Contains(t, []any{
		"COMMUNAUTE_REDUITE_AUX_ACQUETS", "SEPARATION_DE_BIENS",
		"COMMUNAUTE_UNIVERSELLE", "PARTICIPATION_AUX_ACQUETS",
	}, regime["type"])
}

func TestRepairDutreil(t *testing.T) {
	g := testGenerator(t)
	profile := baseProfile()
	profile.Persona = axes.PersonaAssocie
	profile.PrimaryTopic = axes.TopicEntrepriseDutreil

	result, err := g.Generate(context.Background(), profile, 17)
	require.NoError(t, err)

	patrimoine := result.Payload["patrimoine"].(map[string]any)
	actifs := patrimoine["actifs"].([]any)
	require.NotEmpty(t, actifs)
	first := actifs[0].(map[string]any)
	assert.Equal(t, "ENTREPRISE", first["type"])
	entreprise := first["entreprise"].(map[string]any)
	assert.Equal(t, true, entreprise["est_presente_comme_eligible_dutreil"])
}

func TestRepairPacsStatus(t *testing.T) {
	g := testGenerator(t)
	profile := baseProfile()
	profile.Persona = axes.PersonaPartenairePacs
	profile.PrimaryTopic = axes.TopicPacsConcubinage

	result, err := g.Generate(context.Background(), profile, 23)
	require.NoError(t, err)

	famille := result.Payload["famille"].(map[string]any)
	defunt := famille["defunt"].(map[string]any)
	assert.Equal(t, axes.StatutPacse, defunt["statut_matrimonial"])
	assert.NotContains(t, defunt, "regime_matrimonial",
		"un défunt pacsé n'a pas de régime matrimonial")

	partenaire := famille["partenaire"].(map[string]any)
	lien := partenaire["lien"].(map[string]any)
	assert.Equal(t, axes.LienPartenairePacs, lien["type"])
}

func TestCoherenceRejectsMismatchedInsured(t *testing.T) {
	payload := map[string]any{
		"famille": map[string]any{
			"defunt": map[string]any{
				"nom":                "Jean Morel",
				"statut_matrimonial": axes.StatutCelibataire,
				"date_deces":         "2024-03-10",
			},
		},
		"assurance_vie": map[string]any{
			"contrats": []any{
				map[string]any{"libelle": "Contrat AXA", "assure_nom": "Paul Durand"},
			},
		},
	}
	profile := baseProfile()
	profile.PrimaryTopic = axes.TopicAssuranceVie
	err := validateCoherence(payload, profile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assuré")
}

func TestCoherenceRejectsSelfDonation(t *testing.T) {
	payload := map[string]any{
		"famille": map[string]any{
			"defunt": map[string]any{
				"nom":                "Jean Morel",
				"statut_matrimonial": axes.StatutCelibataire,
				"date_deces":         "2024-03-10",
			},
		},
		"liberalites": map[string]any{
			"donations": []any{
				map[string]any{
					"donateur_nom":     "Jean Morel",
					"beneficiaire_nom": "Jean Morel",
					"type":             "DONATION_SIMPLE",
				},
			},
		},
	}
	err := validateCoherence(payload, baseProfile())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identiques")
}

func TestCoherenceRejectsAgeBirthMismatch(t *testing.T) {
	payload := map[string]any{
		"famille": map[string]any{
			"defunt": map[string]any{
				"nom":                "Jean Morel",
				"statut_matrimonial": axes.StatutCelibataire,
				"date_deces":         "2024-03-10",
				"age":                70,
				"date_naissance":     "1980-03-10",
			},
		},
	}
	err := validateCoherence(payload, baseProfile())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incohérent")
}

func TestTopicAlignment(t *testing.T) {
	payload := map[string]any{
		"famille": map[string]any{
			"descendants": map[string]any{
				"enfants": []any{
					map[string]any{"nom": "Lucie Morel"},
				},
			},
		},
	}
	profile := baseProfile()
	assert.NoError(t, validateTopicAlignment(payload, profile))

	profile.PrimaryTopic = axes.TopicAssuranceVie
	err := validateTopicAlignment(payload, profile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alignment topic/TOON invalide")
}

func TestSetPathValueNestedLists(t *testing.T) {
	payload := map[string]any{}
	setPathValue(payload, schema.ParsePath("assurance_vie.contrats.*.beneficiaires.*.nom"), "Emma Roux")
	setPathValue(payload, schema.ParsePath("assurance_vie.contrats.*.libelle"), "Contrat MAIF")

	av := payload["assurance_vie"].(map[string]any)
	contrats := av["contrats"].([]any)
	require.Len(t, contrats, 1)
	contrat := contrats[0].(map[string]any)
	assert.Equal(t, "Contrat MAIF", contrat["libelle"])
	beneficiaires := contrat["beneficiaires"].([]any)
	require.Len(t, beneficiaires, 1)
	assert.Equal(t, "Emma Roux", beneficiaires[0].(map[string]any)["nom"])
}

func TestPathExistsStarMatchesAnyElement(t *testing.T) {
	payload := map[string]any{
		"liberalites": map[string]any{
			"donations": []any{
				map[string]any{"montant": 1000},
				map[string]any{"donateur_nom": "Jean Morel"},
			},
		},
	}
	assert.True(t, pathExists(payload, schema.ParsePath("liberalites.donations.*.donateur_nom")))
	assert.False(t, pathExists(payload, schema.ParsePath("liberalites.donations.*.date")))
}

func TestParseISODate(t *testing.T) {
	d := parseISODate("2024-03-10")
	require.NotNil(t, d)
	assert.Equal(t, 2024, d.year)
	assert.Nil(t, parseISODate("10/03/2024"))
	assert.Nil(t, parseISODate("2024-13-01"))
	assert.Nil(t, parseISODate(""))
}

func TestYearsBetween(t *testing.T) {
	birth := isoParts{1980, 6, 15}
	assert.Equal(t, 43, yearsBetween(birth, isoParts{2024, 3, 10}))
	assert.Equal(t, 44, yearsBetween(birth, isoParts{2024, 6, 15}))
}

func TestLeafValueRespectsEnums(t *testing.T) {
	g := testGenerator(t)
	rng := rand.New(rand.NewSource(1))
	gctx := &genContext{
		defuntName:  "Jean Morel",
		partnerName: "Claire Petit",
		childNames:  []string{"Lucie Morel", "Hugo Morel"},
		used:        map[string]struct{}{},
		statut:      axes.StatutMarie,
	}

	path := schema.ParsePath("famille.defunt.statut_matrimonial")
	spec, ok := g.Index.LeafSpec(path)
	require.True(t, ok)
	assert.Equal(t, axes.StatutMarie, g.leafValue(path, spec, gctx, rng))

	lienPath := schema.ParsePath("famille.partenaire.lien.type")
	lienSpec, ok := g.Index.LeafSpec(lienPath)
	require.True(t, ok)
	assert.Equal(t, axes.LienConjoint, g.leafValue(lienPath, lienSpec, gctx, rng))
}

func TestLeafValueNameReuse(t *testing.T) {
	g := testGenerator(t)
	rng := rand.New(rand.NewSource(1))
	gctx := &genContext{
		defuntName:  "Jean Morel",
		partnerName: "Claire Petit",
		childNames:  []string{"Lucie Morel", "Hugo Morel"},
		used:        map[string]struct{}{},
		statut:      axes.StatutMarie,
	}

	path := schema.ParsePath("famille.defunt.nom")
	spec, _ := g.Index.LeafSpec(path)
	assert.Equal(t, "Jean Morel", g.leafValue(path, spec, gctx, rng))

	childPath := schema.ParsePath("famille.descendants.enfants.*.nom")
	childSpec, _ := g.Index.LeafSpec(childPath)
	assert.Equal(t, "Lucie Morel", g.leafValue(childPath, childSpec, gctx, rng))
}

func TestBuiltinNamesUnique(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	used := map[string]struct{}{}
	seen := map[string]bool{}
	for i := 0; i < 30; i++ {
		name := BuiltinNames{}.FullName(rng, used)
		assert.False(t, seen[name], "nom dupliqué: %s", name)
		seen[name] = true
	}
}
