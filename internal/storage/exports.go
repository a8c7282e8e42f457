package storage

import (
	"caseforge/internal/corpus"
	"caseforge/internal/logging"
)

// RewriteExports rebuilds the two training exports from scratch: the
// generated-only file holds one pair record per accepted submission, the
// full file prepends the seed corpus. Whole rewrites keep the exports
// consistent with the journal after replays and migrations.
func (s *Store) RewriteExports(seeds []corpus.Seed, submitted []SubmissionRecord) error {
	pairs := make([]any, 0, len(submitted))
	for _, rec := range submitted {
		pairs = append(pairs, corpus.PairRecord(rec.CaseText, rec.TargetTOON))
	}
	if err := rewriteJSONL(s.path(GeneratedTrainFile), pairs); err != nil {
		return err
	}

	full := make([]any, 0, len(seeds)+len(pairs))
	for _, seed := range seeds {
		full = append(full, corpus.SeedRecord(seed))
	}
	full = append(full, pairs...)
	if err := rewriteJSONL(s.path(FullTrainFile), full); err != nil {
		return err
	}
	logging.Storage("exports réécrits: %d cas générés, %d cas au total", len(pairs), len(full))
	return nil
}
