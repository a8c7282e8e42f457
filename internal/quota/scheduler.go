// Package quota keeps the issued corpus aligned with the per-axis target
// shares. Every instruction draw picks the most underrepresented bucket
// of each axis under the compatibility rules, then dodges near-repeats of
// recently issued profiles.
package quota

import (
	"fmt"
	"math/rand"

	"caseforge/internal/axes"
	"caseforge/internal/logging"
)

// redrawRounds bounds the signature-collision redraw loop. A profile
// still colliding after that many single-axis redraws is accepted.
const redrawRounds = 4

// Scheduler owns the per-axis counters and the signature FIFO. It is not
// safe for concurrent use; the server serializes access under its lock.
type Scheduler struct {
	seed   int64
	shares map[axes.Axis]axes.ShareTable
	counts map[axes.Axis]map[string]int
	issued int

	fifo     []string
	fifoSize int
}

// New builds a scheduler from the default share tables with the given
// per-axis overrides applied. An override replaces the whole table of its
// axis; buckets it omits become unreachable.
func New(seed int64, fifoSize int, overrides map[string]map[string]float64) (*Scheduler, error) {
	shares := axes.DefaultShares()
	for name, override := range overrides {
		axis := axes.Axis(name)
		table, ok := shares[axis]
		if !ok {
			return nil, fmt.Errorf("axe inconnu dans shares: %q", name)
		}
		replaced, err := table.Override(override)
		if err != nil {
			return nil, fmt.Errorf("shares.%s: %w", name, err)
		}
		shares[axis] = replaced
		// The secondary topic axis follows a primary topic override so
		// a forced campaign cannot leak blocked topics as secondaries.
		if axis == axes.AxisPrimaryTopic {
			if _, explicit := overrides[string(axes.AxisSecondaryTopic)]; !explicit {
				shares[axes.AxisSecondaryTopic] = replaced
			}
		}
	}

	counts := make(map[axes.Axis]map[string]int, len(shares))
	for axis := range shares {
		counts[axis] = make(map[string]int)
	}
	if fifoSize < 0 {
		fifoSize = 0
	}
	return &Scheduler{
		seed:     seed,
		shares:   shares,
		counts:   counts,
		fifoSize: fifoSize,
	}, nil
}

// Issued returns the number of committed draws.
func (s *Scheduler) Issued() int {
	return s.issued
}

// Counts returns a deep copy of the per-axis bucket counters.
func (s *Scheduler) Counts() map[axes.Axis]map[string]int {
	out := make(map[axes.Axis]map[string]int, len(s.counts))
	for axis, buckets := range s.counts {
		clone := make(map[string]int, len(buckets))
		for bucket, n := range buckets {
			clone[bucket] = n
		}
		out[axis] = clone
	}
	return out
}

// pickUnderrepresented selects the bucket minimizing the deficit score
// (count/share, count, random tiebreak) among reachable, non-excluded
// buckets. Zero-share buckets are never drawn.
func pickUnderrepresented(table axes.ShareTable, counts map[string]int, rng *rand.Rand, exclude map[string]bool) (string, error) {
	best := ""
	var bestRatio, bestTie float64
	bestCount := 0
	found := false
	for _, bucket := range table.Buckets {
		share := table.Share(bucket)
		if share <= 0 || exclude[bucket] {
			continue
		}
		current := counts[bucket]
		ratio := float64(current) / share
		tie := rng.Float64()
		if !found || ratio < bestRatio ||
			(ratio == bestRatio && current < bestCount) ||
			(ratio == bestRatio && current == bestCount && tie < bestTie) {
			best, bestRatio, bestCount, bestTie = bucket, ratio, current, tie
			found = true
		}
	}
	if !found {
		return "", fmt.Errorf("aucun bucket disponible")
	}
	return best, nil
}

// Draw assembles a full profile for the given issuance sequence. The RNG
// is derived from seed+sequence so a failed generation redraws the exact
// same profile on retry of the same sequence, and tests replay runs.
func (s *Scheduler) Draw(sequence int, forceTopic string) (axes.Profile, error) {
	rng := rand.New(rand.NewSource(s.seed + int64(sequence)))

	var profile axes.Profile
	var err error
	for _, axis := range []axes.Axis{
		axes.AxisPersona, axes.AxisVoice, axes.AxisFormat,
		axes.AxisLengthBand, axes.AxisNoise, axes.AxisNumericDensity,
	} {
		bucket, perr := s.pick(axis, rng, nil)
		if perr != nil {
			return axes.Profile{}, fmt.Errorf("axe %s: %w", axis, perr)
		}
		profile.SetBucket(axis, bucket)
	}

	exclude := map[string]bool{}
	if !axes.DatePrecisionAllowed(axes.DateAucune, profile.NumericDensity) {
		exclude[axes.DateAucune] = true
	}
	if profile.DatePrecision, err = s.pick(axes.AxisDatePrecision, rng, exclude); err != nil {
		return axes.Profile{}, fmt.Errorf("axe date_precision: %w", err)
	}

	if profile.Complexity, err = s.pick(axes.AxisComplexity, rng, nil); err != nil {
		return axes.Profile{}, fmt.Errorf("axe complexity: %w", err)
	}

	blockedTopics := map[string]bool{}
	for _, topic := range axes.Topics {
		if !axes.TopicAllowedForPersona(profile.Persona, topic) {
			blockedTopics[topic] = true
		}
	}

	if forceTopic != "" && s.shares[axes.AxisPrimaryTopic].Has(forceTopic) {
		profile.PrimaryTopic = forceTopic
	} else {
		if profile.PrimaryTopic, err = s.pick(axes.AxisPrimaryTopic, rng, blockedTopics); err != nil {
			return axes.Profile{}, fmt.Errorf("axe primary_topic: %w", err)
		}
	}

	if rng.Float64() < axes.SecondaryTopicProbability(profile.Complexity) {
		excludeTopics := map[string]bool{profile.PrimaryTopic: true}
		for topic := range blockedTopics {
			excludeTopics[topic] = true
		}
		secondary, serr := s.pick(axes.AxisSecondaryTopic, rng, excludeTopics)
		if serr == nil {
			profile.SecondaryTopic = secondary
		}
		// A forced single-topic campaign has no second reachable topic;
		// the profile simply stays single-topic.
	}

	if axes.HardNegativeAxesActive(profile.Complexity) {
		if profile.HardNegativeIntensity, err = s.pick(axes.AxisHardNegativeIntensity, rng, nil); err != nil {
			return axes.Profile{}, fmt.Errorf("axe hard_negative_intensity: %w", err)
		}
		if profile.HardNegativeMode, err = s.pick(axes.AxisHardNegativeMode, rng, nil); err != nil {
			return axes.Profile{}, fmt.Errorf("axe hard_negative_mode: %w", err)
		}
	}

	profile = s.avoidRecentSignature(profile, rng)
	return profile, nil
}

func (s *Scheduler) pick(axis axes.Axis, rng *rand.Rand, exclude map[string]bool) (string, error) {
	return pickUnderrepresented(s.shares[axis], s.counts[axis], rng, exclude)
}

// avoidRecentSignature redraws the freest axis while the profile matches
// a recently issued signature, up to redrawRounds times. Collisions past
// the budget are accepted; variety matters less than forward progress.
func (s *Scheduler) avoidRecentSignature(profile axes.Profile, rng *rand.Rand) axes.Profile {
	for round := 0; round < redrawRounds; round++ {
		if !s.inFIFO(profile.Signature()) {
			return profile
		}
		axis, allowed := s.freestAxis(profile)
		if axis == "" {
			return profile
		}
		exclude := map[string]bool{profile.Bucket(axis): true}
		for bucket := range allowed {
			if !allowed[bucket] {
				exclude[bucket] = true
			}
		}
		bucket, err := s.pick(axis, rng, exclude)
		if err != nil {
			return profile
		}
		logging.Get(logging.CategoryScheduler).Debug(
			"signature répétée, redraw de %s: %s → %s", axis, profile.Bucket(axis), bucket)
		profile.SetBucket(axis, bucket)
	}
	return profile
}

// freestAxis returns the redraw candidate with the most allowed buckets
// besides the current one, together with its allowance map. Axes whose
// change could invalidate the rest of the profile (complexity, the hard
// negative pair, the optional secondary topic) stay out of the candidate
// set.
func (s *Scheduler) freestAxis(profile axes.Profile) (axes.Axis, map[string]bool) {
	candidates := []axes.Axis{
		axes.AxisPersona, axes.AxisVoice, axes.AxisFormat,
		axes.AxisLengthBand, axes.AxisNoise, axes.AxisNumericDensity,
		axes.AxisDatePrecision, axes.AxisPrimaryTopic,
	}
	bestAxis := axes.Axis("")
	var bestAllowed map[string]bool
	bestFreedom := 0
	for _, axis := range candidates {
		allowed := s.allowedBuckets(axis, profile)
		freedom := 0
		for bucket, ok := range allowed {
			if ok && bucket != profile.Bucket(axis) {
				freedom++
			}
		}
		if freedom > bestFreedom {
			bestAxis, bestAllowed, bestFreedom = axis, allowed, freedom
		}
	}
	return bestAxis, bestAllowed
}

// allowedBuckets applies the compatibility rules to one axis given the
// rest of the profile.
func (s *Scheduler) allowedBuckets(axis axes.Axis, profile axes.Profile) map[string]bool {
	table := s.shares[axis]
	allowed := make(map[string]bool, len(table.Buckets))
	for _, bucket := range table.Buckets {
		ok := table.Share(bucket) > 0
		switch axis {
		case axes.AxisDatePrecision:
			ok = ok && axes.DatePrecisionAllowed(bucket, profile.NumericDensity)
		case axes.AxisNumericDensity:
			ok = ok && axes.DatePrecisionAllowed(profile.DatePrecision, bucket)
		case axes.AxisPrimaryTopic:
			ok = ok && axes.TopicAllowedForPersona(profile.Persona, bucket) && bucket != profile.SecondaryTopic
		case axes.AxisPersona:
			ok = ok && axes.TopicAllowedForPersona(bucket, profile.PrimaryTopic) &&
				(profile.SecondaryTopic == "" || axes.TopicAllowedForPersona(bucket, profile.SecondaryTopic))
		}
		allowed[bucket] = ok
	}
	return allowed
}

func (s *Scheduler) inFIFO(signature string) bool {
	for _, seen := range s.fifo {
		if seen == signature {
			return true
		}
	}
	return false
}

// Commit records a successfully issued profile: axis counters advance and
// the signature enters the FIFO. Called only after the instruction has
// been generated and logged.
func (s *Scheduler) Commit(profile axes.Profile) {
	for _, axis := range axes.DrawOrder {
		if bucket := profile.Bucket(axis); bucket != "" {
			s.counts[axis][bucket]++
		}
	}
	s.issued++
	if s.fifoSize > 0 {
		s.fifo = append(s.fifo, profile.Signature())
		if len(s.fifo) > s.fifoSize {
			s.fifo = s.fifo[len(s.fifo)-s.fifoSize:]
		}
	}
}
