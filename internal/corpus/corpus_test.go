package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.jsonl")
	rows := `{"case_id": "c-01", "source_type": "annales", "source_name": "crfpa", "text": "Mon père est décédé\r\n\r\n\r\nen mars."}
{"text": "Ma tante est morte sans testament."}
{"source_type": "vide"}
{"text": ""}
`
	require.NoError(t, os.WriteFile(path, []byte(rows), 0o644))

	seeds, err := LoadSeeds(path)
	require.NoError(t, err)
	require.Len(t, seeds, 2)

	assert.Equal(t, "c-01", seeds[0].CaseID)
	assert.Equal(t, "annales", seeds[0].SourceType)
	assert.Equal(t, "Mon père est décédé\n\nen mars.", seeds[0].Text, "le texte doit être normalisé")

	assert.Equal(t, "seed_0002", seeds[1].CaseID)
	assert.Equal(t, "unknown", seeds[1].SourceType)
}

func TestLoadSeedsMissingFile(t *testing.T) {
	seeds, err := LoadSeeds(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, seeds)
}

func TestLoadSeedsEmptyPath(t *testing.T) {
	seeds, err := LoadSeeds("")
	require.NoError(t, err)
	assert.Empty(t, seeds)
}

func TestLoadSeedsRejectsBrokenJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{pas du json}\n"), 0o644))
	_, err := LoadSeeds(path)
	assert.Error(t, err)
}

func TestPairRecord(t *testing.T) {
	record := PairRecord("Mon  père est   décédé.", "famille:\n  defunt:")
	require.Len(t, record.Messages, 3)
	assert.Equal(t, "system", record.Messages[0].Role)
	assert.Equal(t, PairSystemPrompt, record.Messages[0].Content)
	assert.Equal(t, "Mon père est décédé.", record.Messages[1].Content)
	assert.Equal(t, "famille:\n  defunt:", record.Messages[2].Content)
}

func TestSeedRecordKeepsMessagesShape(t *testing.T) {
	record := SeedRecord(Seed{CaseID: "c-07", SourceType: "annales", SourceName: "crfpa", Text: "Texte du cas."})
	require.Len(t, record.Messages, 3)
	assert.Contains(t, record.Messages[1].Content, "annales / crfpa")
	assert.Contains(t, record.Messages[1].Content, "c-07")
	assert.Equal(t, "Texte du cas.", record.Messages[2].Content)
}
