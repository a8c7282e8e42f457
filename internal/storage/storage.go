// Package storage owns the on-disk state of a campaign: the append-only
// instruction and submission logs (the commit points), the per-record
// files, the rewritten training exports, and the counters and summary
// snapshots. Logs are appended with fsync; everything else is written
// atomically via temp file and rename.
package storage

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File names under the state directory.
const (
	ConfigFilename        = "config.json"
	IssuedFilename        = "issued_instructions.jsonl"
	SubmittedFilename     = "generated_cases.jsonl"
	SummaryJSONFilename   = "summary.json"
	SummaryMDFilename     = "summary.md"
	CountersFilename      = "counters.json"
	GeneratedTrainFile    = "generated_cases_train_mistral.jsonl"
	FullTrainFile         = "full_training_cases_mistral.jsonl"
	InstructionsDirname   = "instructions"
	SubmissionsDirname    = "submissions"
	LogsDirname           = "logs"
	legacyInstructionFile = "_last_instruction.json"
)

// Store anchors all persistence to one state directory.
type Store struct {
	Dir string
}

// Open prepares the state directory and its subdirectories.
func Open(dir string) (*Store, error) {
	s := &Store{Dir: dir}
	for _, sub := range []string{"", InstructionsDirname, SubmissionsDirname, LogsDirname} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("préparation du répertoire d'état: %w", err)
		}
	}
	return s, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.Dir, name)
}

// InstructionFile returns the per-record path of an instruction.
func (s *Store) InstructionFile(id string) string {
	return filepath.Join(s.Dir, InstructionsDirname, id+".json")
}

// SubmissionFile returns the per-record path of a submission.
func (s *Store) SubmissionFile(id string) string {
	return filepath.Join(s.Dir, SubmissionsDirname, id+".json")
}

// LogsDir returns the directory the logging package writes under.
func (s *Store) LogsDir() string {
	return s.Dir
}

// AppendJSONL appends one record to a JSONL log and fsyncs before
// closing. This is the commit point of every state mutation.
func AppendJSONL(path string, record any) error {
	line, err := marshalJSON(record, false)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("ouverture du journal %s: %w", filepath.Base(path), err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("écriture du journal %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsync du journal %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// WriteFileAtomic writes data to path through a temp file, fsync and
// rename, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte) error {
	var suffix [6]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return err
	}
	tmp := path + ".tmp-" + hex.EncodeToString(suffix[:])
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// WriteJSONAtomic marshals a record (indent 2, no HTML escaping so the
// French text stays readable) and writes it atomically.
func WriteJSONAtomic(path string, record any) error {
	data, err := marshalJSON(record, true)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, append(data, '\n'))
}

func marshalJSON(record any, indent bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(record); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// readJSONLines parses every non-blank line of a JSONL file into raw
// objects. A missing file yields an empty slice.
func readJSONLines(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var rows []map[string]any
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, fmt.Errorf("ligne invalide dans %s: %w", filepath.Base(path), err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// rewriteJSONL replaces a JSONL file wholesale, atomically.
func rewriteJSONL(path string, rows []any) error {
	var buf bytes.Buffer
	for _, row := range rows {
		line, err := marshalJSON(row, false)
		if err != nil {
			return err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return WriteFileAtomic(path, buf.Bytes())
}
