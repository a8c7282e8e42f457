// Package corpus loads the seed corpus and shapes the training-export
// records. Seeds count toward the campaign totals without passing the
// submission validator; they were vetted upstream.
package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"caseforge/internal/frtext"
	"caseforge/internal/logging"
)

// PairSystemPrompt is the system message of every training record.
const PairSystemPrompt = "Tu extrais les informations d'un énoncé de succession en français. " +
	"Tu réponds uniquement par du TOON valide conforme au schéma cible attendu."

// Seed is one externally supplied case text.
type Seed struct {
	CaseID     string `json:"case_id"`
	SourceType string `json:"source_type"`
	SourceName string `json:"source_name,omitempty"`
	Text       string `json:"text"`
}

// Message is one chat turn of a training record.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TrainingRecord is one JSONL row of the training exports.
type TrainingRecord struct {
	Messages []Message `json:"messages"`
}

// LoadSeeds reads a JSONL seed file. Rows without a usable text field are
// skipped; a missing file yields no seeds and no error, so a fresh
// campaign can start from zero.
func LoadSeeds(path string) ([]Seed, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Storage("corpus de seeds absent (%s), démarrage à vide", path)
			return nil, nil
		}
		return nil, fmt.Errorf("ouverture du corpus de seeds: %w", err)
	}
	defer f.Close()

	var seeds []Seed
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("corpus de seeds ligne %d: %w", line, err)
		}
		text, _ := row["text"].(string)
		if text == "" {
			continue
		}
		seed := Seed{
			CaseID:     stringOr(row["case_id"], fmt.Sprintf("seed_%04d", len(seeds)+1)),
			SourceType: stringOr(row["source_type"], "unknown"),
			SourceName: stringOr(row["source_name"], ""),
			Text:       frtext.NormalizeText(text),
		}
		seeds = append(seeds, seed)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("lecture du corpus de seeds: %w", err)
	}
	return seeds, nil
}

func stringOr(value any, fallback string) string {
	if text, ok := value.(string); ok && text != "" {
		return text
	}
	return fallback
}

// PairRecord builds the training row for an accepted submission: the case
// text as the user turn, the locked TOON target as the assistant turn.
func PairRecord(caseText, targetTOON string) TrainingRecord {
	return TrainingRecord{Messages: []Message{
		{Role: "system", Content: PairSystemPrompt},
		{Role: "user", Content: frtext.NormalizeText(caseText)},
		{Role: "assistant", Content: targetTOON},
	}}
}

// SeedRecord builds the text-only training row for a seed case, keeping
// the merged export on a single messages schema. Seeds carry no locked
// target, so the assistant turn holds the vetted case text itself and the
// user turn names the source.
func SeedRecord(seed Seed) TrainingRecord {
	source := seed.SourceType
	if seed.SourceName != "" {
		source += " / " + seed.SourceName
	}
	instruction := fmt.Sprintf(
		"Rédige un énoncé de succession français réaliste du même registre que la source %s (cas %s).",
		source, seed.CaseID)
	return TrainingRecord{Messages: []Message{
		{Role: "system", Content: PairSystemPrompt},
		{Role: "user", Content: instruction},
		{Role: "assistant", Content: seed.Text},
	}}
}
