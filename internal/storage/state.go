package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"caseforge/internal/logging"
)

// AppendIssued journals an issued instruction. This is the commit point
// of issuance.
func (s *Store) AppendIssued(rec InstructionRecord) error {
	return AppendJSONL(s.path(IssuedFilename), rec)
}

// AppendSubmitted journals an accepted submission. This is the commit
// point of acceptance.
func (s *Store) AppendSubmitted(rec SubmissionRecord) error {
	return AppendJSONL(s.path(SubmittedFilename), rec)
}

// LoadState replays the two journals, applying the legacy migrations
// first: target_json fields are renamed to target_toon, submissions
// whose target cannot be recovered are dropped, and a stale
// _last_instruction.json from the pre-TOON era is removed. Migrated
// journals are rewritten in place.
func (s *Store) LoadState() ([]InstructionRecord, []SubmissionRecord, error) {
	issuedRows, err := readJSONLines(s.path(IssuedFilename))
	if err != nil {
		return nil, nil, err
	}
	submittedRows, err := readJSONLines(s.path(SubmittedFilename))
	if err != nil {
		return nil, nil, err
	}

	issuedRows, issuedChanged := sanitizeIssuedRows(issuedRows)
	submittedRows, submittedChanged := sanitizeSubmittedRows(submittedRows)

	if issuedChanged {
		logging.Storage("journal des consignes migré (target_json -> target_toon)")
		if err := rewriteRows(s.path(IssuedFilename), issuedRows); err != nil {
			return nil, nil, err
		}
	}
	if submittedChanged {
		logging.Storage("journal des soumissions migré, %d lignes conservées", len(submittedRows))
		if err := rewriteRows(s.path(SubmittedFilename), submittedRows); err != nil {
			return nil, nil, err
		}
	}
	s.removeStaleLastInstruction()

	issued, err := decodeRows[InstructionRecord](issuedRows)
	if err != nil {
		return nil, nil, fmt.Errorf("relecture des consignes: %w", err)
	}
	submitted, err := decodeRows[SubmissionRecord](submittedRows)
	if err != nil {
		return nil, nil, fmt.Errorf("relecture des soumissions: %w", err)
	}
	return issued, submitted, nil
}

// sanitizeIssuedRows renames the legacy target_json fields of an
// instruction row, including the mentions embedded in the prompt and in
// the contract blocks.
func sanitizeIssuedRows(rows []map[string]any) ([]map[string]any, bool) {
	changed := false
	for _, row := range rows {
		if value, ok := row["server_target_json"]; ok {
			delete(row, "server_target_json")
			if _, exists := row["server_target_toon"]; !exists {
				row["server_target_toon"] = value
			}
			changed = true
		}
		if renameInStrings(row, "prompt") {
			changed = true
		}
		if format, ok := row["response_format"].(map[string]any); ok {
			if renameInStringList(format, "required_keys") || renameInStrings(format, "case_text_rule") {
				changed = true
			}
		}
		if contract, ok := row["submission_contract"].(map[string]any); ok {
			if renameInStringList(contract, "required_fields") || renameInStrings(contract, "note") {
				changed = true
			}
		}
	}
	return rows, changed
}

// sanitizeSubmittedRows renames target_json to target_toon and drops
// rows whose target is unusable.
func sanitizeSubmittedRows(rows []map[string]any) ([]map[string]any, bool) {
	changed := false
	kept := rows[:0]
	for _, row := range rows {
		if value, ok := row["target_json"]; ok {
			delete(row, "target_json")
			if _, exists := row["target_toon"]; !exists {
				row["target_toon"] = value
			}
			changed = true
		}
		target, _ := row["target_toon"].(string)
		if strings.TrimSpace(target) == "" {
			logging.Storage("soumission %v sans cible exploitable, ligne ignorée", row["instruction_id"])
			changed = true
			continue
		}
		kept = append(kept, row)
	}
	return kept, changed
}

func renameInStrings(node map[string]any, key string) bool {
	text, ok := node[key].(string)
	if !ok || !strings.Contains(text, "target_json") {
		return false
	}
	node[key] = strings.ReplaceAll(text, "target_json", "target_toon")
	return true
}

func renameInStringList(node map[string]any, key string) bool {
	list, ok := node[key].([]any)
	if !ok {
		return false
	}
	changed := false
	for i, item := range list {
		if text, ok := item.(string); ok && strings.Contains(text, "target_json") {
			list[i] = strings.ReplaceAll(text, "target_json", "target_toon")
			changed = true
		}
	}
	return changed
}

// removeStaleLastInstruction deletes the single-slot instruction file of
// the pre-journal format when it still carries a target_json field.
func (s *Store) removeStaleLastInstruction() {
	path := s.path(legacyInstructionFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if bytes.Contains(data, []byte("target_json")) {
		if err := os.Remove(path); err == nil {
			logging.Storage("fichier hérité %s supprimé", legacyInstructionFile)
		}
	}
}

func rewriteRows(path string, rows []map[string]any) error {
	generic := make([]any, len(rows))
	for i, row := range rows {
		generic[i] = row
	}
	return rewriteJSONL(path, generic)
}

func decodeRows[T any](rows []map[string]any) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		raw, err := json.Marshal(row)
		if err != nil {
			return nil, err
		}
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// instructionFile is the per-record view: the journal record plus the
// lifecycle status and, once submitted, the submission itself.
type instructionFile struct {
	InstructionRecord
	Status     string            `json:"status"`
	Submission *SubmissionRecord `json:"submission,omitempty"`
}

// WriteInstructionFile persists the per-record instruction file. status
// is "issued" or "submitted"; submission is embedded when present.
func (s *Store) WriteInstructionFile(rec InstructionRecord, status string, submission *SubmissionRecord) error {
	return WriteJSONAtomic(s.InstructionFile(rec.InstructionID), instructionFile{
		InstructionRecord: rec,
		Status:            status,
		Submission:        submission,
	})
}

// WriteSubmissionFile persists the per-record submission file.
func (s *Store) WriteSubmissionFile(rec SubmissionRecord) error {
	return WriteJSONAtomic(s.SubmissionFile(rec.InstructionID), rec)
}

// WriteCounters refreshes the quick-glance counters file.
func (s *Store) WriteCounters(issued, submitted, generationTarget int, dimensions map[string]map[string]int) error {
	return WriteJSONAtomic(s.path(CountersFilename), Counters{
		Issued:           issued,
		Submitted:        submitted,
		GenerationTarget: generationTarget,
		Dimensions:       dimensions,
		UpdatedAt:        time.Now().UTC().Format(time.RFC3339),
	})
}

// EnsureRunConfig loads the run identity file, creating it on the first
// start of a campaign. Restarts keep the original run_id.
func (s *Store) EnsureRunConfig(targetTotal, generationTarget, seedCases int) (RunConfig, error) {
	path := s.path(ConfigFilename)
	if data, err := os.ReadFile(path); err == nil {
		var cfg RunConfig
		if err := json.Unmarshal(data, &cfg); err == nil && cfg.RunID != "" {
			return cfg, nil
		}
		logging.Storage("config.json illisible, régénération de l'identité de run")
	}
	cfg := RunConfig{
		RunID:            uuid.NewString(),
		CreatedAt:        time.Now().UTC().Format(time.RFC3339),
		TargetTotalCases: targetTotal,
		GenerationTarget: generationTarget,
		SeedCases:        seedCases,
	}
	if err := WriteJSONAtomic(path, cfg); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}
