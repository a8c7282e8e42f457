package storage

import (
	"fmt"
	"strconv"
	"strings"

	"caseforge/internal/axes"
	"caseforge/internal/quota"
)

// WriteSummary persists the coverage dashboard, both machine readable
// and rendered as markdown.
func (s *Store) WriteSummary(snapshot Snapshot) error {
	if err := WriteJSONAtomic(s.path(SummaryJSONFilename), snapshot); err != nil {
		return err
	}
	return WriteFileAtomic(s.path(SummaryMDFilename), []byte(renderSummaryMarkdown(snapshot)))
}

func renderSummaryMarkdown(snapshot Snapshot) string {
	var b strings.Builder
	b.WriteString("# Case Instruction Server\n\n")
	fmt.Fprintf(&b, "- target_total_cases: %d\n", snapshot.TargetTotalCases)
	fmt.Fprintf(&b, "- generation_target: %d\n", snapshot.GenerationTarget)
	fmt.Fprintf(&b, "- seed_cases: %d\n", snapshot.SeedCases)
	fmt.Fprintf(&b, "- issued: %d\n", snapshot.Issued)
	fmt.Fprintf(&b, "- submitted: %d\n", snapshot.Submitted)
	fmt.Fprintf(&b, "- training_cases_current: %d\n", snapshot.TrainingCasesCurrent)
	fmt.Fprintf(&b, "- remaining: %d\n", snapshot.Remaining)
	b.WriteString("\n## Coverage\n")

	shares := axes.DefaultShares()
	for _, axis := range quota.CoverageAxes() {
		progress, ok := snapshot.Dimensions[string(axis)]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n### %s\n", axis)
		for _, bucket := range shares[axis].Buckets {
			row, ok := progress[bucket]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "- %s: current=%d target=%s gap=%s\n",
				bucket, row.Current, formatCount(row.TargetCount), formatCount(row.Gap))
		}
	}
	return b.String()
}

// formatCount trims trailing zeros so whole targets read as integers.
func formatCount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
