// Package store keeps a queryable SQLite mirror of accepted
// submissions. The JSONL journal stays the source of truth; the archive
// exists for ad-hoc analysis of axis distributions and is rebuilt from
// the journal on every start.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"caseforge/internal/axes"
	"caseforge/internal/storage"
)

// Archive wraps the submissions database.
type Archive struct {
	db *sql.DB
	mu sync.Mutex
}

const submissionsTable = `
CREATE TABLE IF NOT EXISTS submissions (
	instruction_id          TEXT PRIMARY KEY,
	agent_id                TEXT,
	submitted_at            TEXT,
	persona                 TEXT,
	voice                   TEXT,
	format                  TEXT,
	length_band             TEXT,
	noise                   TEXT,
	numeric_density         TEXT,
	date_precision          TEXT,
	complexity              TEXT,
	primary_topic           TEXT,
	secondary_topic         TEXT,
	hard_negative_mode      TEXT,
	hard_negative_intensity TEXT,
	word_count              INTEGER,
	max_similarity          REAL,
	case_text               TEXT
);`

// Open initializes the archive database at the given path.
func Open(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("préparation du répertoire de l'archive: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ouverture de l'archive: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(submissionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialisation du schéma de l'archive: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close releases the database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Record upserts one accepted submission. INSERT OR REPLACE keeps
// journal replays idempotent.
func (a *Archive) Record(rec storage.SubmissionRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.db.Exec(`
		INSERT OR REPLACE INTO submissions (
			instruction_id, agent_id, submitted_at,
			persona, voice, format, length_band, noise,
			numeric_density, date_precision, complexity,
			primary_topic, secondary_topic,
			hard_negative_mode, hard_negative_intensity,
			word_count, max_similarity, case_text
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.InstructionID, rec.AgentID, rec.SubmittedAt,
		rec.Dimensions.Persona, rec.Dimensions.Voice, rec.Dimensions.Format,
		rec.Dimensions.LengthBand, rec.Dimensions.Noise,
		rec.Dimensions.NumericDensity, rec.Dimensions.DatePrecision,
		rec.Dimensions.Complexity,
		rec.Dimensions.PrimaryTopic, rec.Dimensions.SecondaryTopic,
		rec.Dimensions.HardNegativeMode, rec.Dimensions.HardNegativeIntensity,
		rec.Validation.WordCount, rec.Validation.MaxSimilarity, rec.CaseText)
	if err != nil {
		return fmt.Errorf("archivage de %s: %w", rec.InstructionID, err)
	}
	return nil
}

// Replay upserts a batch of submissions, used at startup to resync the
// archive with the journal.
func (a *Archive) Replay(records []storage.SubmissionRecord) error {
	for _, rec := range records {
		if err := a.Record(rec); err != nil {
			return err
		}
	}
	return nil
}

// archiveColumns whitelists the axis columns for CountByAxis. The axis
// names double as column names.
var archiveColumns = func() map[axes.Axis]bool {
	cols := make(map[axes.Axis]bool, len(axes.DrawOrder))
	for _, axis := range axes.DrawOrder {
		cols[axis] = true
	}
	return cols
}()

// CountByAxis returns the bucket distribution of one axis over the
// archived submissions.
func (a *Archive) CountByAxis(axis axes.Axis) (map[string]int, error) {
	if !archiveColumns[axis] {
		return nil, fmt.Errorf("axe inconnu: %s", axis)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	rows, err := a.db.Query(fmt.Sprintf(
		`SELECT %s, COUNT(*) FROM submissions GROUP BY %s`, axis, axis))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var bucket sql.NullString
		var count int
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, err
		}
		counts[bucket.String] = count
	}
	return counts, rows.Err()
}

// Entry is one row of the Recent listing.
type Entry struct {
	InstructionID string
	SubmittedAt   string
	Persona       string
	PrimaryTopic  string
	WordCount     int
	MaxSimilarity float64
}

// Recent returns the latest archived submissions, newest first.
func (a *Archive) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	rows, err := a.db.Query(`
		SELECT instruction_id, submitted_at, persona, primary_topic, word_count, max_similarity
		FROM submissions ORDER BY submitted_at DESC, instruction_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.InstructionID, &e.SubmittedAt, &e.Persona,
			&e.PrimaryTopic, &e.WordCount, &e.MaxSimilarity); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
