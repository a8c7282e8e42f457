package synth

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"caseforge/internal/axes"
	"caseforge/internal/logging"
	"caseforge/internal/schema"
	"caseforge/internal/toon"
)

// Result is one successfully generated and serialized target.
type Result struct {
	Payload  map[string]any
	TOON     string
	Decoded  map[string]any
	Attempts int
}

// Generator produces targets for drawn profiles. It is not safe for
// concurrent use; the server serializes generation under its lock.
type Generator struct {
	Index       *schema.Index
	Codec       toon.Codec
	Names       NameProvider
	Seed        int64
	MaxAttempts int
}

// genContext carries the per-attempt identity cast, the decedent's
// marital status and the death date through the pipeline stages. The
// death date is drawn up front so every other date can be placed
// relative to it.
type genContext struct {
	defuntName  string
	partnerName string
	childNames  []string
	used        map[string]struct{}
	statut      string
	deathDate   string
}

// Generate runs independent attempts until one target passes every gate
// and survives the TOON round trip. Each attempt derives its own RNG from
// (seed, sequence, attempt) so failures replay exactly.
func (g *Generator) Generate(ctx context.Context, profile axes.Profile, sequence int) (*Result, error) {
	attempts := g.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	log := logging.Get(logging.CategoryGenerator)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		rng := rand.New(rand.NewSource(g.Seed*1000 + int64(sequence)*100 + int64(attempt)))
		payload, err := g.BuildAttempt(profile, rng)
		if err != nil {
			lastErr = err
			log.Debug("séquence %d tentative %d rejetée: %v", sequence, attempt, err)
			continue
		}
		text, decoded, err := toon.EncodeVerified(ctx, g.Codec, payload)
		if err != nil {
			lastErr = err
			log.Warn("séquence %d tentative %d: échec TOON: %v", sequence, attempt, err)
			continue
		}
		return &Result{Payload: payload, TOON: text, Decoded: decoded, Attempts: attempt}, nil
	}
	return nil, fmt.Errorf("génération épuisée après %d tentatives: %w", attempts, lastErr)
}

// BuildAttempt runs one full pipeline pass without serialization:
// identity, persona anchors, topic blocks, sprinkle, typed values, repair
// and the four validation gates.
func (g *Generator) BuildAttempt(profile axes.Profile, rng *rand.Rand) (map[string]any, error) {
	gctx := g.newContext(profile, rng)

	selected := g.selectPaths(profile, gctx, rng)
	payload := g.fill(selected, gctx, rng)
	g.repair(payload, profile, gctx, rng)

	if err := schema.ValidateSparse(payload); err != nil {
		return nil, err
	}
	if err := g.Index.ValidatePayload(payload); err != nil {
		return nil, err
	}
	if err := validateCoherence(payload, profile); err != nil {
		return nil, err
	}
	if err := validateTopicAlignment(payload, profile); err != nil {
		return nil, err
	}
	return payload, nil
}

// newContext draws the identity cast and resolves the decedent's marital
// status from persona and topics.
func (g *Generator) newContext(profile axes.Profile, rng *rand.Rand) *genContext {
	used := make(map[string]struct{})
	names := g.Names
	if names == nil {
		names = BuiltinNames{}
	}
	gctx := &genContext{
		defuntName:  names.FullName(rng, used),
		partnerName: names.FullName(rng, used),
		childNames:  []string{names.FullName(rng, used), names.FullName(rng, used)},
		used:        used,
		deathDate:   randomISODate(rng, 2023, 2026),
	}

	statut := axes.TopicStatut(profile.PrimaryTopic, profile.SecondaryTopic)
	if statut == "" {
		if profile.PrimaryTopic == axes.TopicPacsConcubinage || profile.SecondaryTopic == axes.TopicPacsConcubinage {
			if rng.Float64() < 0.7 {
				statut = axes.StatutPacse
			} else {
				statut = axes.StatutCelibataire
			}
		} else {
			all := []string{
				axes.StatutMarie, axes.StatutPacse, axes.StatutCelibataire,
				axes.StatutDivorce, axes.StatutVeuf,
			}
			statut = all[rng.Intn(len(all))]
		}
	}
	if rule, ok := axes.PersonaRules[profile.Persona]; ok && rule.Statut != "" {
		statut = rule.Statut
	}
	gctx.statut = statut
	return gctx
}

// inclusionProbability scales topic leaf sampling with complexity.
func inclusionProbability(complexity string) float64 {
	switch complexity {
	case axes.ComplexitySimple:
		return 0.18
	case axes.ComplexityIntermediaire:
		return 0.28
	case axes.ComplexityComplexe:
		return 0.40
	case axes.ComplexityHardNegative:
		return 0.34
	}
	return 0.28
}

// selectPaths assembles the leaf set of the attempt: mandatory identity,
// persona anchors, topic-required leaves, probabilistic topic blocks and
// the cross-topic sprinkle. Paths unknown to the loaded schema are
// dropped silently so persona rules survive schema evolution.
func (g *Generator) selectPaths(profile axes.Profile, gctx *genContext, rng *rand.Rand) map[string]schema.Path {
	selected := make(map[string]schema.Path)
	add := func(path schema.Path) {
		if g.Index.IsLeaf(path) {
			selected[path.Key()] = path
		}
	}

	// Mandatory decedent identity.
	add(schema.Path{"famille", "defunt", "nom"})
	add(schema.Path{"famille", "defunt", "statut_matrimonial"})
	add(schema.Path{"famille", "defunt", "date_naissance"})
	add(schema.Path{"famille", "defunt", "date_deces"})
	add(schema.Path{"famille", "defunt", "age"})
	if gctx.statut == axes.StatutMarie || gctx.statut == axes.StatutPacse {
		add(schema.Path{"famille", "partenaire", "nom"})
		add(schema.Path{"famille", "partenaire", "lien", "type"})
	}

	// Persona anchors.
	if rule, ok := axes.PersonaRules[profile.Persona]; ok {
		for _, path := range rule.MandatoryLeaves {
			add(path)
		}
	}

	// Topic-required leaves.
	for _, topic := range []string{profile.PrimaryTopic, profile.SecondaryTopic} {
		if template, ok := axes.TopicTemplates[topic]; ok {
			for _, path := range template.Required {
				add(path)
			}
		}
	}

	// Probabilistic sampling under the topic prefixes.
	proba := inclusionProbability(profile.Complexity)
	for _, prefix := range g.topicPrefixes(profile) {
		for _, spec := range g.Index.LeavesUnder(prefix) {
			if rng.Float64() <= proba {
				add(spec.Path)
			}
		}
	}

	// Cross-topic sprinkle: up to two rarely covered prefixes, one or
	// two leaves each.
	sprinkled := 0
	for _, prefix := range axes.SparseCoveragePrefixes {
		if sprinkled >= 2 || rng.Float64() > 0.12 {
			continue
		}
		leaves := g.Index.LeavesUnder(prefix)
		if len(leaves) == 0 {
			continue
		}
		take := 1 + rng.Intn(2)
		for i := 0; i < take; i++ {
			add(leaves[rng.Intn(len(leaves))].Path)
		}
		sprinkled++
	}
	return selected
}

// topicPrefixes returns the deduplicated schema regions of the profile:
// the decedent subtree, the drawn topics, and the procedural context for
// the upper complexity bands.
func (g *Generator) topicPrefixes(profile axes.Profile) []schema.Path {
	prefixes := []schema.Path{{"famille", "defunt"}}
	for _, topic := range []string{profile.PrimaryTopic, profile.SecondaryTopic} {
		if template, ok := axes.TopicTemplates[topic]; ok {
			prefixes = append(prefixes, template.Prefixes...)
		}
	}
	if profile.Complexity == axes.ComplexityComplexe || profile.Complexity == axes.ComplexityHardNegative {
		prefixes = append(prefixes, schema.Path{"contexte", "procedure"}, schema.Path{"operations_de_partage"})
	}
	seen := make(map[string]bool, len(prefixes))
	deduped := prefixes[:0]
	for _, prefix := range prefixes {
		if seen[prefix.Key()] {
			continue
		}
		seen[prefix.Key()] = true
		deduped = append(deduped, prefix)
	}
	return deduped
}

// fill writes typed values for the selected leaves, identities first so
// value generation for the thematic blocks can reference them.
func (g *Generator) fill(selected map[string]schema.Path, gctx *genContext, rng *rand.Rand) map[string]any {
	keys := make([]string, 0, len(selected))
	for key := range selected {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	payload := make(map[string]any)
	isIdentity := func(path schema.Path) bool {
		return path.HasPrefix(schema.Path{"famille", "defunt"}) || path.HasPrefix(schema.Path{"famille", "partenaire"})
	}

	for _, stage := range []bool{true, false} {
		for _, root := range []string{
			"contexte", "famille", "liberalites", "assurance_vie",
			"patrimoine", "indivision", "operations_de_partage",
		} {
			for _, key := range keys {
				path := selected[key]
				if len(path) == 0 || path[0] != root || isIdentity(path) != stage {
					continue
				}
				spec, ok := g.Index.LeafSpec(path)
				if !ok {
					continue
				}
				setPathValue(payload, path, g.leafValue(path, spec, gctx, rng))
			}
		}
	}
	return payload
}

// setPathValue writes a value at a star-marked path, creating the object
// and list spine as needed. List markers always address the first
// element; multi-element lists only come out of the repair pass.
func setPathValue(payload map[string]any, path schema.Path, value any) {
	var node any = payload
	for i, token := range path {
		last := i == len(path)-1
		next := ""
		if !last {
			next = path[i+1]
		}

		if token == schema.Star {
			list, ok := node.([]any)
			if !ok || len(list) == 0 {
				// The spine creation always leaves one slot; anything
				// else means a repair rewrote the branch, leave it be.
				return
			}
			if last {
				list[0] = value
				return
			}
			child := list[0]
			if next == schema.Star {
				if _, ok := child.([]any); !ok {
					list[0] = []any{}
				}
			} else {
				if _, ok := child.(map[string]any); !ok {
					list[0] = map[string]any{}
				}
			}
			node = list[0]
			continue
		}

		obj, ok := node.(map[string]any)
		if !ok {
			return
		}
		if last {
			obj[token] = value
			return
		}
		existing, present := obj[token]
		if next == schema.Star {
			if list, isList := existing.([]any); !present || !isList || len(list) == 0 {
				obj[token] = []any{newListSlot(path, i+2)}
			}
			node = obj[token]
			continue
		}
		if _, isMap := existing.(map[string]any); !present || !isMap {
			obj[token] = map[string]any{}
		}
		node = obj[token]
	}
}

// newListSlot builds the container for a fresh list element, based on
// the segment following the star. A star-terminal path gets a nil slot,
// overwritten with the scalar in the same call.
func newListSlot(path schema.Path, nextIdx int) any {
	if nextIdx >= len(path) {
		return nil
	}
	if path[nextIdx] == schema.Star {
		return []any{}
	}
	return map[string]any{}
}
