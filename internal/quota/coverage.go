package quota

import (
	"math"

	"caseforge/internal/axes"
)

// BucketProgress is one row of the coverage dashboard.
type BucketProgress struct {
	TargetShare float64 `json:"target_share"`
	TargetCount float64 `json:"target_count"`
	Current     int     `json:"current"`
	Gap         float64 `json:"gap"`
}

// AxisProgress maps bucket name to its progress row.
type AxisProgress map[string]BucketProgress

// coverageAxes lists the axes reported on the dashboard, in render order.
// The secondary topic axis stays off the dashboard: its draws are a
// complexity-dependent subset of issuance and gaps would be meaningless.
var coverageAxes = []axes.Axis{
	axes.AxisPersona,
	axes.AxisVoice,
	axes.AxisFormat,
	axes.AxisLengthBand,
	axes.AxisNoise,
	axes.AxisNumericDensity,
	axes.AxisDatePrecision,
	axes.AxisComplexity,
	axes.AxisPrimaryTopic,
	axes.AxisHardNegativeMode,
	axes.AxisHardNegativeIntensity,
}

// CoverageAxes returns the dashboard axis order.
func CoverageAxes() []axes.Axis {
	return coverageAxes
}

// Coverage computes per-axis bucket progress against the generation
// target. The two hard negative axes are measured against the expected
// hard negative volume, not the whole campaign.
func (s *Scheduler) Coverage(generationTarget int) map[string]AxisProgress {
	hardNegativeBase := float64(generationTarget) * s.shares[axes.AxisComplexity].Share(axes.ComplexityHardNegative)

	out := make(map[string]AxisProgress, len(coverageAxes))
	for _, axis := range coverageAxes {
		base := float64(generationTarget)
		if axis == axes.AxisHardNegativeMode || axis == axes.AxisHardNegativeIntensity {
			base = hardNegativeBase
		}
		table := s.shares[axis]
		progress := make(AxisProgress, len(table.Buckets))
		for _, bucket := range table.Buckets {
			share := table.Share(bucket)
			targetCount := round1(base * share)
			current := s.counts[axis][bucket]
			progress[bucket] = BucketProgress{
				TargetShare: share,
				TargetCount: targetCount,
				Current:     current,
				Gap:         round1(targetCount - float64(current)),
			}
		}
		out[string(axis)] = progress
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
