// Package main implements an offline audit of a submissions journal.
//
// It loads a generated_cases.jsonl file into a throwaway SQLite database
// and prints the bucket distribution of every diversity axis, so a
// finished campaign can be checked without a running coordinator.
//
// Usage:
//
//	go run ./cmd/tools/corpus-audit -input data/caseforge/generated_cases.jsonl
package main

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"caseforge/internal/axes"
	"caseforge/internal/storage"
)

func main() {
	input := flag.String("input", "generated_cases.jsonl", "journal des soumissions (JSONL)")
	dbPath := flag.String("db", "", "base SQLite de travail (défaut: en mémoire)")
	minWords := flag.Int("min-words", 0, "signale les cas sous ce nombre de mots")
	flag.Parse()

	if err := run(*input, *dbPath, *minWords); err != nil {
		fmt.Fprintln(os.Stderr, "Erreur:", err)
		os.Exit(1)
	}
}

func run(input, dbPath string, minWords int) error {
	records, err := loadSubmissions(input)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("aucune soumission dans %s", input)
	}

	dsn := dbPath
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("ouverture de la base d'audit: %w", err)
	}
	defer db.Close()

	if err := ingest(db, records); err != nil {
		return err
	}

	fmt.Printf("%d soumissions auditées depuis %s\n", len(records), input)
	for _, axis := range axes.DrawOrder {
		if err := printAxis(db, axis, len(records)); err != nil {
			return err
		}
	}

	if minWords > 0 {
		short := 0
		for _, rec := range records {
			if rec.Validation.WordCount < minWords {
				short++
				fmt.Printf("cas court: %s (%d mots)\n", rec.InstructionID, rec.Validation.WordCount)
			}
		}
		fmt.Printf("%d cas sous %d mots\n", short, minWords)
	}
	return nil
}

func loadSubmissions(path string) ([]storage.SubmissionRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lecture du journal: %w", err)
	}
	defer f.Close()

	var records []storage.SubmissionRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var rec storage.SubmissionRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("ligne %d illisible: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

func ingest(db *sql.DB, records []storage.SubmissionRecord) error {
	// One row per (submission, axis) keeps the distribution queries flat.
	if _, err := db.Exec(`DROP TABLE IF EXISTS audit`); err != nil {
		return err
	}
	if _, err := db.Exec(`CREATE TABLE audit (
		instruction_id TEXT,
		axis TEXT,
		bucket TEXT,
		word_count INTEGER
	)`); err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO audit (instruction_id, axis, bucket, word_count) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, rec := range records {
		for _, axis := range axes.DrawOrder {
			bucket := rec.Dimensions.Bucket(axis)
			if bucket == "" {
				continue
			}
			if _, err := stmt.Exec(rec.InstructionID, string(axis), bucket, rec.Validation.WordCount); err != nil {
				tx.Rollback()
				return err
			}
		}
	}
	return tx.Commit()
}

func printAxis(db *sql.DB, axis axes.Axis, total int) error {
	rows, err := db.Query(`SELECT bucket, COUNT(*) FROM audit WHERE axis = ? GROUP BY bucket`, string(axis))
	if err != nil {
		return err
	}
	defer rows.Close()

	type bucketCount struct {
		bucket string
		count  int
	}
	var counts []bucketCount
	for rows.Next() {
		var bc bucketCount
		if err := rows.Scan(&bc.bucket, &bc.count); err != nil {
			return err
		}
		counts = append(counts, bc)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(counts) == 0 {
		return nil
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].count > counts[j].count })

	fmt.Printf("\n%s\n", axis)
	for _, bc := range counts {
		fmt.Printf("  %-28s %5d  (%.1f%%)\n", bc.bucket, bc.count, 100*float64(bc.count)/float64(total))
	}
	return nil
}
