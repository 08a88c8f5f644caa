// Package propagation diffuses sparse numeric training labels across a
// weighted bipartite graph, or across a community-level graph, to score
// unlabeled nodes.
package propagation

import (
	"math"

	"github.com/dd0wney/cluso-flowgraph/pkg/matrix"
)

// LogTransform replaces every weight w with ln(1+w), damping heavy-tailed
// byte counts.
func LogTransform(m *matrix.Matrix[float64]) {
	m.Map(func(_, _ int, w float64) float64 { return math.Log1p(w) })
}

// RowColumnNormalize scales every row to sum to 1 and then every column to
// sum to 1, once each. Column scaling perturbs the row sums again; the result
// is an approximation of a doubly stochastic matrix, not a fixed point.
// Rows or columns summing to zero are left alone. Both caches are rebuilt.
func RowColumnNormalize(m *matrix.Matrix[float64]) {
	rowSums := m.RowSums()
	m.Map(func(i, _ int, w float64) float64 {
		if rowSums[i] == 0 {
			return w
		}
		return w / rowSums[i]
	})

	colSums := m.ColSums()
	m.Map(func(_, j int, w float64) float64 {
		if colSums[j] == 0 {
			return w
		}
		return w / colSums[j]
	})
	m.Rebuild()
}
