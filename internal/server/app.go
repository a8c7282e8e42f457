// Package server is the coordinator: it owns the scheduler, the
// generator, the validator and every persistence handle behind one
// mutex, and exposes the whole state machine over four HTTP routes.
package server

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"caseforge/internal/config"
	"caseforge/internal/corpus"
	"caseforge/internal/frtext"
	"caseforge/internal/logging"
	"caseforge/internal/prompt"
	"caseforge/internal/quota"
	"caseforge/internal/review"
	"caseforge/internal/schema"
	"caseforge/internal/storage"
	"caseforge/internal/store"
	"caseforge/internal/synth"
	"caseforge/internal/toon"
)

// App owns all mutable campaign state. Every access to the scheduler,
// the issued table, the submitted set and the validator goes through mu.
type App struct {
	cfg   *config.Config
	codec toon.Codec

	mu        sync.Mutex
	index     *schema.Index
	scheduler *quota.Scheduler
	generator *synth.Generator
	validator *review.Validator

	st      *storage.Store
	archive *store.Archive
	watcher *schema.Watcher

	seeds            []corpus.Seed
	generationTarget int

	issued        []storage.InstructionRecord
	issuedIdx     map[string]int
	submitted     map[string]bool
	submittedRecs []storage.SubmissionRecord
}

// New builds the coordinator: schema index, seed corpus, scheduler,
// journald state replay and the startup reconciliation of the derived
// files. The codec is injected so tests can stub the external CLI.
func New(cfg *config.Config, codec toon.Codec) (*App, error) {
	st, err := storage.Open(cfg.StateDir)
	if err != nil {
		return nil, err
	}
	index, err := schema.Load(cfg.SchemaFile)
	if err != nil {
		return nil, fmt.Errorf("chargement du schema maître: %w", err)
	}
	seeds, err := corpus.LoadSeeds(cfg.CorpusFile)
	if err != nil {
		return nil, err
	}

	generationTarget := cfg.GenerationTarget
	if generationTarget == 0 {
		generationTarget = cfg.TargetTotalCases - len(seeds)
		if generationTarget < 0 {
			generationTarget = 0
		}
	}

	scheduler, err := quota.New(cfg.Seed, cfg.SignatureFIFO, cfg.Shares)
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:              cfg,
		codec:            codec,
		index:            index,
		scheduler:        scheduler,
		st:               st,
		seeds:            seeds,
		generationTarget: generationTarget,
		issuedIdx:        make(map[string]int),
		submitted:        make(map[string]bool),
	}
	app.generator = &synth.Generator{
		Index:       index,
		Codec:       codec,
		Names:       synth.BuiltinNames{},
		Seed:        cfg.Seed,
		MaxAttempts: cfg.MaxAttempts,
	}

	seedRefs := make([]review.Reference, 0, len(seeds))
	for _, seed := range seeds {
		seedRefs = append(seedRefs, review.Reference{ID: seed.CaseID, Text: seed.Text})
	}
	app.validator = review.New(cfg.SimilarityThreshold, cfg.SimilarityWindow, seedRefs)

	if err := app.replayState(); err != nil {
		return nil, err
	}
	if _, err := st.EnsureRunConfig(cfg.TargetTotalCases, generationTarget, len(seeds)); err != nil {
		return nil, err
	}

	if cfg.ArchiveEnabled {
		archive, err := store.Open(filepath.Join(cfg.StateDir, "archive.db"))
		if err != nil {
			logging.Get(logging.CategoryStorage).Warn("archive sqlite indisponible: %v", err)
		} else {
			app.archive = archive
			if err := archive.Replay(app.submittedRecs); err != nil {
				logging.Get(logging.CategoryStorage).Warn("resynchronisation de l'archive: %v", err)
			}
		}
	}

	if cfg.WatchSchema {
		watcher, err := schema.NewWatcher(cfg.SchemaFile, app.installIndex)
		if err != nil {
			return nil, err
		}
		app.watcher = watcher
	}

	// Startup reconciliation: the derived files follow the journals.
	if err := st.RewriteExports(seeds, app.submittedRecs); err != nil {
		return nil, err
	}
	if err := st.WriteCounters(len(app.issued), len(app.submittedRecs), generationTarget, app.axisCountsLocked()); err != nil {
		return nil, err
	}
	if err := st.WriteSummary(app.snapshotLocked()); err != nil {
		return nil, err
	}

	logging.Server("coordinateur prêt: %d feuilles de schema, %d seeds, %d consignes rejouées, %d soumissions",
		index.LeafCount(), len(seeds), len(app.issued), len(app.submittedRecs))
	return app, nil
}

// replayState reloads the journals and rebuilds the in-memory tables,
// scheduler counters and validator window.
func (a *App) replayState() error {
	issued, submitted, err := a.st.LoadState()
	if err != nil {
		return err
	}
	a.issued = issued
	for i, rec := range issued {
		a.issuedIdx[rec.InstructionID] = i
		a.scheduler.Commit(rec.Dimensions)
	}
	a.submittedRecs = submitted
	for _, rec := range submitted {
		a.submitted[rec.InstructionID] = true
		a.validator.Remember(rec.InstructionID, rec.CaseText)
	}
	return nil
}

// installIndex swaps the schema index after a watcher reload.
func (a *App) installIndex(index *schema.Index) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.index = index
	a.generator.Index = index
}

// Close releases the optional handles. The HTTP lifecycle calls it on
// shutdown; tests call it directly.
func (a *App) Close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			logging.Get(logging.CategoryStorage).Warn("fermeture de l'archive: %v", err)
		}
	}
}

// InstructionResponse is the next-instruction payload: the persisted
// record plus the locked target under its wire name and the coverage.
type InstructionResponse struct {
	storage.InstructionRecord
	TargetTOON string                        `json:"target_toon"`
	Coverage   map[string]quota.AxisProgress `json:"coverage"`
}

// ExhaustedResponse signals a completed campaign.
type ExhaustedResponse struct {
	Done     bool                          `json:"done"`
	Kind     string                        `json:"kind"`
	Message  string                        `json:"message"`
	Coverage map[string]quota.AxisProgress `json:"coverage"`
}

// NextInstruction draws a profile, generates and locks its target, and
// commits the issuance. forceTopic is honored when it names a topic the
// share tables can reach.
func (a *App) NextInstruction(ctx context.Context, agentID, forceTopic string) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.generationTarget > 0 && len(a.submittedRecs) >= a.generationTarget {
		return ExhaustedResponse{
			Done: true,
			Kind: "exhausted",
			Message: fmt.Sprintf("objectif de génération atteint (%d/%d), plus de consignes à émettre",
				len(a.submittedRecs), a.generationTarget),
			Coverage: a.scheduler.Coverage(a.generationTarget),
		}, nil
	}

	sequence := a.scheduler.Issued() + 1
	profile, err := a.scheduler.Draw(sequence, forceTopic)
	if err != nil {
		return nil, fmt.Errorf("tirage du profil: %w", err)
	}

	// Generation stays under the lock: counters only ever advance for
	// instructions that reached the journal.
	result, err := a.generator.Generate(ctx, profile, sequence)
	if err != nil {
		logging.Get(logging.CategoryServer).Warn("séquence %d: génération échouée: %v", sequence, err)
		return nil, generationFailed(err.Error())
	}

	instructionID := fmt.Sprintf("INS-%04d", sequence)
	rng := rand.New(rand.NewSource(a.cfg.Seed + int64(sequence)))
	examples := prompt.PickReferenceExamples(a.seeds, profile.PrimaryTopic, profile.SecondaryTopic, rng)
	augmented := prompt.AugmentWithTarget(prompt.Render(profile, examples), result.TOON)

	rec := storage.InstructionRecord{
		InstructionID:      instructionID,
		AgentID:            agentID,
		IssuedAt:           time.Now().UTC().Format(time.RFC3339),
		Signature:          profile.Signature(),
		Dimensions:         profile,
		DimensionGuide:     prompt.DimensionGuide(profile),
		StyleBrief:         prompt.StyleBrief(profile),
		MustInclude:        review.CollectNames(result.Decoded),
		MustAvoid:          prompt.MustAvoid(profile),
		ResponseFormat:     storage.DefaultResponseFormat(),
		SubmissionContract: storage.DefaultSubmissionContract(),
		ReferenceExamples:  examples,
		Prompt:             augmented,
		ServerTargetTOON:   result.TOON,
	}

	if err := a.st.AppendIssued(rec); err != nil {
		return nil, err
	}
	a.scheduler.Commit(profile)
	a.issued = append(a.issued, rec)
	a.issuedIdx[instructionID] = len(a.issued) - 1
	a.refreshDerivedLocked(rec, nil)

	logging.Server("consigne %s émise (séquence %d, %d tentative(s), signature %s)",
		instructionID, sequence, result.Attempts, rec.Signature)
	return InstructionResponse{
		InstructionRecord: rec,
		TargetTOON:        rec.ServerTargetTOON,
		Coverage:          a.scheduler.Coverage(a.generationTarget),
	}, nil
}

// SubmitRequest is the parsed submit-case body, kept raw so unexpected
// keys (the legacy target) are detectable.
type SubmitRequest struct {
	InstructionID string
	CaseText      string
	AgentID       string
	HasTarget     bool
}

// ParseSubmitBody validates the decoded JSON body of a submission.
func ParseSubmitBody(body map[string]any) (SubmitRequest, error) {
	var req SubmitRequest
	if id, _ := body["instruction_id"].(string); strings.TrimSpace(id) != "" {
		req.InstructionID = strings.TrimSpace(id)
	} else {
		return req, badRequest("invalid_payload", "instruction_id manquant")
	}
	text, _ := body["case_text"].(string)
	req.CaseText = frtext.NormalizeText(text)
	if req.CaseText == "" {
		return req, badRequest("invalid_payload", "case_text vide")
	}
	if _, ok := body["target_toon"]; ok {
		return req, badRequest("legacy_target",
			"target_toon non attendu: soumettre uniquement instruction_id + case_text")
	}
	if agent, _ := body["agent_id"].(string); strings.TrimSpace(agent) != "" {
		req.AgentID = strings.TrimSpace(agent)
	}
	return req, nil
}

// SubmitResponse acknowledges an accepted submission.
type SubmitResponse struct {
	Accepted        bool                          `json:"accepted"`
	Stored          bool                          `json:"stored"`
	Validation      review.Report                 `json:"validation"`
	TargetTOONLines int                           `json:"target_toon_lines"`
	Coverage        map[string]quota.AxisProgress `json:"coverage"`
}

// SubmitCase validates a submission against its locked target and
// commits it. The TOON decode and the text validation run outside the
// lock; only the commit re-locks.
func (a *App) SubmitCase(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	a.mu.Lock()
	idx, known := a.issuedIdx[req.InstructionID]
	if !known {
		a.mu.Unlock()
		return nil, badRequest("unknown_instruction", "instruction inconnue: %s", req.InstructionID)
	}
	if a.submitted[req.InstructionID] {
		a.mu.Unlock()
		return nil, badRequest("already_submitted", "instruction déjà soumise: %s", req.InstructionID)
	}
	instruction := a.issued[idx]
	a.mu.Unlock()

	target, err := toon.Normalize(instruction.ServerTargetTOON)
	if err != nil {
		return nil, fmt.Errorf("cible TOON serveur invalide pour %s: %w", req.InstructionID, err)
	}
	decoded, err := a.codec.Decode(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("décodage de la cible TOON de %s: %w", req.InstructionID, err)
	}

	report, err := a.validator.Validate(req.CaseText, decoded)
	if err != nil {
		var missing *review.MissingNamesError
		if errors.As(err, &missing) {
			return nil, badRequest("missing_name", "%s", err.Error())
		}
		var leak *review.LeakageError
		if errors.As(err, &leak) {
			logging.Review("soumission %s rejetée (%s)", req.InstructionID, leak.Category)
			return nil, badRequest("leakage", "%s", leak.Reason)
		}
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	// Double-submit race guard across the unlocked decode and validation.
	if a.submitted[req.InstructionID] {
		return nil, badRequest("already_submitted", "instruction déjà soumise: %s", req.InstructionID)
	}

	agentID := req.AgentID
	if agentID == "" {
		agentID = instruction.AgentID
	}
	rec := storage.SubmissionRecord{
		InstructionID: req.InstructionID,
		AgentID:       agentID,
		SubmittedAt:   time.Now().UTC().Format(time.RFC3339),
		CaseText:      req.CaseText,
		TargetTOON:    target,
		TargetSource:  storage.TargetSourceServer,
		Validation:    report,
		Dimensions:    instruction.Dimensions,
	}
	if err := a.st.AppendSubmitted(rec); err != nil {
		return nil, err
	}
	a.submitted[req.InstructionID] = true
	a.submittedRecs = append(a.submittedRecs, rec)
	a.validator.Remember(req.InstructionID, req.CaseText)
	a.refreshDerivedLocked(instruction, &rec)

	if a.archive != nil {
		// Mirror write; a failing archive never fails the submission.
		if err := a.archive.Record(rec); err != nil {
			logging.Get(logging.CategoryStorage).Warn("archive sqlite: %v", err)
		}
	}

	logging.Server("soumission %s acceptée (%d mots, similarité max %.4f)",
		req.InstructionID, report.WordCount, report.MaxSimilarity)
	return &SubmitResponse{
		Accepted:        true,
		Stored:          true,
		Validation:      report,
		TargetTOONLines: len(strings.Split(target, "\n")),
		Coverage:        a.scheduler.Coverage(a.generationTarget),
	}, nil
}

// refreshDerivedLocked rewrites the per-record files and the derived
// views after a journal append. Failures here are logged, not fatal: the
// journal already holds the truth and the next write catches up.
func (a *App) refreshDerivedLocked(instruction storage.InstructionRecord, submission *storage.SubmissionRecord) {
	log := logging.Get(logging.CategoryStorage)
	status := "issued"
	if submission != nil {
		status = "submitted"
		if err := a.st.WriteSubmissionFile(*submission); err != nil {
			log.Warn("écriture du fichier de soumission: %v", err)
		}
		if err := a.st.RewriteExports(a.seeds, a.submittedRecs); err != nil {
			log.Warn("réécriture des exports: %v", err)
		}
	}
	if err := a.st.WriteInstructionFile(instruction, status, submission); err != nil {
		log.Warn("écriture du fichier de consigne: %v", err)
	}
	if err := a.st.WriteCounters(len(a.issued), len(a.submittedRecs), a.generationTarget, a.axisCountsLocked()); err != nil {
		log.Warn("écriture des compteurs: %v", err)
	}
	if err := a.st.WriteSummary(a.snapshotLocked()); err != nil {
		log.Warn("écriture du résumé: %v", err)
	}
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	OK                 bool `json:"ok"`
	TargetTotalCases   int  `json:"target_total_cases"`
	GenerationTarget   int  `json:"generation_target"`
	SeedCases          int  `json:"seed_cases"`
	Issued             int  `json:"issued"`
	Submitted          int  `json:"submitted"`
	TrainingCasesTotal int  `json:"training_cases_total"`
}

// Health reports the campaign totals.
func (a *App) Health() HealthResponse {
	a.mu.Lock()
	defer a.mu.Unlock()
	return HealthResponse{
		OK:                 true,
		TargetTotalCases:   a.cfg.TargetTotalCases,
		GenerationTarget:   a.generationTarget,
		SeedCases:          len(a.seeds),
		Issued:             len(a.issued),
		Submitted:          len(a.submittedRecs),
		TrainingCasesTotal: len(a.seeds) + len(a.submittedRecs),
	}
}

// Dashboard returns the coverage snapshot, identical to summary.json.
func (a *App) Dashboard() storage.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *App) axisCountsLocked() map[string]map[string]int {
	counts := make(map[string]map[string]int)
	for axis, buckets := range a.scheduler.Counts() {
		counts[string(axis)] = buckets
	}
	return counts
}

func (a *App) snapshotLocked() storage.Snapshot {
	submitted := len(a.submittedRecs)
	remaining := a.generationTarget - submitted
	if remaining < 0 {
		remaining = 0
	}
	return storage.Snapshot{
		TargetTotalCases:     a.cfg.TargetTotalCases,
		GenerationTarget:     a.generationTarget,
		SeedCases:            len(a.seeds),
		Issued:               len(a.issued),
		Submitted:            submitted,
		TrainingCasesCurrent: len(a.seeds) + submitted,
		Remaining:            remaining,
		Dimensions:           a.scheduler.Coverage(a.generationTarget),
	}
}
