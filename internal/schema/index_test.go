package schema

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchemaDoc() map[string]any {
	return map[string]any{
		"famille": map[string]any{
			"defunt": map[string]any{
				"nom": map[string]any{
					"description": "nom complet du défunt",
					"type":        "string",
				},
				"statut_matrimonial": map[string]any{
					"description":       "statut au décès",
					"valeurs_possibles": []any{"CELIBATAIRE", "MARIE", "PACSE"},
				},
				"age_au_deces": map[string]any{
					"description": "âge au décès",
					"type":        "number",
				},
			},
			"descendants": map[string]any{
				"enfants": []any{
					map[string]any{
						"nom":        map[string]any{"type": "string"},
						"est_mineur": map[string]any{"type": "boolean"},
					},
				},
			},
			"partenaire": map[string]any{
				// "type" est ici un nœud structurel, pas une clé méta.
				"lien": map[string]any{
					"type": map[string]any{
						"pickOne": []any{"CONJOINT", "PARTENAIRE_PACS"},
					},
					"duree_union": map[string]any{
						"valeur": map[string]any{"type": "number"},
					},
				},
			},
		},
	}
}

func buildTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Build(testSchemaDoc())
	require.NoError(t, err)
	return idx
}

func TestBuildClassifiesNodes(t *testing.T) {
	idx := buildTestIndex(t)

	assert.True(t, idx.IsLeaf(Path{"famille", "defunt", "nom"}))
	assert.True(t, idx.IsLeaf(Path{"famille", "descendants", "enfants", Star, "nom"}))
	assert.True(t, idx.IsLeaf(Path{"famille", "partenaire", "lien", "type"}))
	assert.True(t, idx.IsPrefix(Path{"famille", "defunt"}))
	// A list node is a prefix both at its own path and under the star
	// marker; payloads traverse the bare path first.
	assert.True(t, idx.IsPrefix(Path{"famille", "descendants", "enfants"}))
	assert.True(t, idx.IsPrefix(Path{"famille", "descendants", "enfants", Star}))
	assert.False(t, idx.IsLeaf(Path{"famille", "partenaire", "lien"}))
	assert.False(t, idx.Known(Path{"famille", "inconnu"}))
	assert.Equal(t, 7, idx.LeafCount())
}

func TestBuildEnumAndTypes(t *testing.T) {
	idx := buildTestIndex(t)

	spec, ok := idx.LeafSpec(Path{"famille", "defunt", "statut_matrimonial"})
	require.True(t, ok)
	assert.True(t, spec.IsEnum())
	assert.Equal(t, []string{"CELIBATAIRE", "MARIE", "PACSE"}, spec.Enum)
	assert.Equal(t, TypeString, spec.Type)

	assert.Equal(t, []string{"CONJOINT", "PARTENAIRE_PACS"},
		idx.EnumValues(Path{"famille", "partenaire", "lien", "type"}))
	assert.Nil(t, idx.EnumValues(Path{"famille", "defunt", "nom"}))

	age, ok := idx.LeafSpec(Path{"famille", "defunt", "age_au_deces"})
	require.True(t, ok)
	assert.Equal(t, TypeNumber, age.Type)
}

func TestBuildRejectsMalformedSchemas(t *testing.T) {
	t.Run("liste à plusieurs modèles", func(t *testing.T) {
		_, err := Build(map[string]any{
			"famille": map[string]any{
				"enfants": []any{
					map[string]any{"nom": map[string]any{"type": "string"}},
					map[string]any{"nom": map[string]any{"type": "string"}},
				},
			},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exactement 1 modèle")
	})

	t.Run("scalaire nu", func(t *testing.T) {
		_, err := Build(map[string]any{"famille": map[string]any{"nom": "Jean"}})
		require.Error(t, err)
	})

	t.Run("type déclaré inconnu", func(t *testing.T) {
		_, err := Build(map[string]any{
			"famille": map[string]any{"nom": map[string]any{"type": "datetime"}},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "type déclaré inconnu")
	})

	t.Run("schema vide", func(t *testing.T) {
		_, err := Build(map[string]any{})
		require.Error(t, err)
	})
}

func TestLeavesUnder(t *testing.T) {
	idx := buildTestIndex(t)

	under := idx.LeavesUnder(Path{"famille", "defunt"})
	require.Len(t, under, 3)
	// Ordre canonique par clé pointée.
	assert.Equal(t, "famille.defunt.age_au_deces", under[0].Path.Key())

	all := idx.LeavesUnder(Path{"famille"})
	assert.Len(t, all, 7)
	assert.Empty(t, idx.LeavesUnder(Path{"contexte"}))
}

func TestLeavesUnderConcurrent(t *testing.T) {
	idx := buildTestIndex(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Len(t, idx.LeavesUnder(Path{"famille", "defunt"}), 3)
				idx.LeavesUnder(Path{"famille", "descendants"})
				idx.LeavesUnder(Path{"famille", "partenaire"})
			}
		}()
	}
	wg.Wait()
}

func TestValidateLeaf(t *testing.T) {
	idx := buildTestIndex(t)

	nom := Path{"famille", "defunt", "nom"}
	assert.NoError(t, idx.ValidateLeaf(nom, "Jean Morel"))
	assert.Error(t, idx.ValidateLeaf(nom, "   "))
	assert.Error(t, idx.ValidateLeaf(nom, 12))

	statut := Path{"famille", "defunt", "statut_matrimonial"}
	assert.NoError(t, idx.ValidateLeaf(statut, "MARIE"))
	assert.Error(t, idx.ValidateLeaf(statut, "VEUF"))

	age := Path{"famille", "defunt", "age_au_deces"}
	assert.NoError(t, idx.ValidateLeaf(age, float64(67)))
	assert.Error(t, idx.ValidateLeaf(age, "67"))

	mineur := Path{"famille", "descendants", "enfants", Star, "est_mineur"}
	assert.NoError(t, idx.ValidateLeaf(mineur, true))
	assert.Error(t, idx.ValidateLeaf(mineur, "oui"))
}

func TestValidatePayload(t *testing.T) {
	idx := buildTestIndex(t)

	valid := map[string]any{
		"famille": map[string]any{
			"defunt": map[string]any{
				"nom":                "Jean Morel",
				"statut_matrimonial": "MARIE",
			},
			"descendants": map[string]any{
				"enfants": []any{
					map[string]any{"nom": "Lucie Morel", "est_mineur": false},
				},
			},
		},
	}
	assert.NoError(t, idx.ValidatePayload(valid))

	t.Run("clé inconnue", func(t *testing.T) {
		payload := map[string]any{"famille": map[string]any{"defunt": map[string]any{"surnom": "JM"}}}
		err := idx.ValidatePayload(payload)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "clé inconnue")
	})

	t.Run("liste hors schéma", func(t *testing.T) {
		payload := map[string]any{"famille": map[string]any{"defunt": []any{map[string]any{}}}}
		err := idx.ValidatePayload(payload)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "liste non autorisée")
	})

	t.Run("enum violée", func(t *testing.T) {
		payload := map[string]any{"famille": map[string]any{"defunt": map[string]any{"statut_matrimonial": "VEUF"}}}
		assert.Error(t, idx.ValidatePayload(payload))
	})
}

func TestValidateSparse(t *testing.T) {
	assert.NoError(t, ValidateSparse(map[string]any{
		"famille": map[string]any{"defunt": map[string]any{"nom": "Jean Morel"}},
	}))

	cases := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{"null", map[string]any{"famille": nil}, "null interdit"},
		{"objet vide", map[string]any{"famille": map[string]any{}}, "objet vide"},
		{"liste vide", map[string]any{"famille": map[string]any{"enfants": []any{}}}, "liste vide"},
		{"string vide", map[string]any{"famille": map[string]any{"nom": "  "}}, "string vide"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSparse(tc.payload)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParsePathRoundTrip(t *testing.T) {
	path := Path{"famille", "descendants", "enfants", Star, "nom"}
	assert.Equal(t, path, ParsePath(path.Key()))
	assert.Equal(t, Path{}, ParsePath(""))
	assert.Equal(t, "nom", path.Last())
	assert.True(t, path.HasPrefix(Path{"famille", "descendants"}))
	assert.False(t, path.HasPrefix(Path{"famille", "defunt"}))
}
