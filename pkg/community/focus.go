package community

import (
	"sort"

	"github.com/dd0wney/cluso-flowgraph/pkg/matrix"
)

// FocusScores rates how concentrated each column node's neighbors are within
// row communities: the mean, over neighboring row labels, of the share of
// that label's rows the column touches. rowCounts holds rows per dense label.
// A column without neighbors scores 0.
func FocusScores(m *matrix.Matrix[float64], rowLabels []int, rowCounts []int) []float64 {
	scores := make([]float64, m.ColCap())
	hist := make(map[int]int)
	for j := range scores {
		for k := range hist {
			delete(hist, k)
		}
		for _, i := range m.NeighborsOfCol(j) {
			if i < len(rowLabels) {
				hist[rowLabels[i]]++
			}
		}
		if len(hist) == 0 {
			continue
		}
		keys := make([]int, 0, len(hist))
		for l := range hist {
			keys = append(keys, l)
		}
		sort.Ints(keys)
		var sum float64
		for _, l := range keys {
			n := hist[l]
			if l >= 0 && l < len(rowCounts) && rowCounts[l] > 0 {
				sum += float64(n) / float64(rowCounts[l])
			}
		}
		scores[j] = sum / float64(len(hist))
	}
	return scores
}
