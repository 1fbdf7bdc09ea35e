package rank

import (
	"slices"

	"github.com/mchmarny/peptopt/pkg/peptide"
)

// Top returns the k best candidates by descending score. The sort is stable,
// so equal scores keep their generation order. k is clamped to
// [0, len(list)]; the input slice is not modified.
func Top(list []peptide.Candidate, k int) []peptide.Candidate {
	k = max(0, min(k, len(list)))

	sorted := slices.Clone(list)
	slices.SortStableFunc(sorted, func(a, b peptide.Candidate) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	return sorted[:k:k]
}
