package community

import (
	"fmt"

	"github.com/dd0wney/cluso-flowgraph/pkg/matrix"
)

// AggregateByLabel folds the node-level matrix into a k x k label matrix whose
// cell (a, b) is the summed weight of edges from rows labeled a to columns
// labeled b. Labels must be dense in [0, k).
func AggregateByLabel(m *matrix.Matrix[float64], labels Labels, k int) (*matrix.Matrix[float64], error) {
	return aggregate(m, labels, k, func(w float64) float64 { return w })
}

// AggregateEdgeCounts is AggregateByLabel counting edges instead of summing
// weights.
func AggregateEdgeCounts(m *matrix.Matrix[float64], labels Labels, k int) (*matrix.Matrix[float64], error) {
	return aggregate(m, labels, k, func(float64) float64 { return 1 })
}

func aggregate(m *matrix.Matrix[float64], labels Labels, k int, value func(float64) float64) (*matrix.Matrix[float64], error) {
	if len(labels.Rows) < m.RowCap() || len(labels.Cols) < m.ColCap() {
		return nil, fmt.Errorf("aggregate: %w", ErrLabelMismatch)
	}
	agg := matrix.New[float64](k, k, 0)
	var err error
	m.Each(func(i, j int, w float64) bool {
		if aerr := agg.Add(labels.Rows[i], labels.Cols[j], value(w)); aerr != nil {
			err = fmt.Errorf("edge (%d,%d): %w", i, j, aerr)
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	agg.Rebuild()
	return agg, nil
}
