package community

import (
	"fmt"
	"sort"

	"github.com/dd0wney/cluso-flowgraph/pkg/logging"
	"github.com/dd0wney/cluso-flowgraph/pkg/matrix"
)

// MergePair is a candidate or committed merge of label B into label A.
type MergePair struct {
	A     int
	B     int
	Delta float64
}

// MergeResult is the output of a merger run. Labels keep the surviving
// original ids; relabel them for dense output.
type MergeResult struct {
	Labels     Labels
	Modularity float64
	Initial    float64
	History    []float64 // modularity after each round
	Rounds     int
	Merges     []MergePair
	Remaining  int
}

// Merger greedily merges neighboring communities while modularity improves.
type Merger struct {
	g      *Graph
	logger logging.Logger

	labels  Labels
	agg     *matrix.Matrix[float64]
	active  map[int]struct{}
	rowDeg  []float64
	colDeg  []float64
	contrib []float64
}

// NewMerger creates a merger over the node-level graph g.
func NewMerger(g *Graph, logger logging.Logger) *Merger {
	return &Merger{
		g:      g,
		logger: logging.OrNop(logger).With(logging.Component("merger")),
	}
}

// Run merges communities of a dense labeling (ids in [0, k)) until no pair of
// connected communities has a positive modularity delta.
func (mg *Merger) Run(labels Labels) (*MergeResult, error) {
	k, err := labelSpace(labels)
	if err != nil {
		return nil, err
	}
	if err := mg.init(labels, k); err != nil {
		return nil, err
	}

	result := &MergeResult{Initial: mg.Modularity()}
	mg.logger.Info("starting merge", logging.Count(len(mg.active)), logging.Modularity(result.Initial))

	if mg.g.Sum > 0 {
		for pairs := mg.candidates(); len(pairs) > 0; pairs = mg.candidates() {
			consumed := make(map[int]struct{})
			for _, p := range pairs {
				if _, ok := consumed[p.A]; ok {
					continue
				}
				if _, ok := consumed[p.B]; ok {
					continue
				}
				mg.merge(p.A, p.B)
				consumed[p.A] = struct{}{}
				consumed[p.B] = struct{}{}
				result.Merges = append(result.Merges, p)
			}
			mg.agg.RebuildTranspose()

			result.Rounds++
			q := mg.Modularity()
			result.History = append(result.History, q)
			mg.logger.Debug("merge round",
				logging.Iteration(result.Rounds),
				logging.Int("merges", len(consumed)/2),
				logging.Modularity(q))
		}
	}

	result.Labels = mg.labels.Clone()
	result.Modularity = mg.Modularity()
	result.Remaining = len(mg.active)
	mg.logger.Info("merge finished",
		logging.Int("rounds", result.Rounds),
		logging.Count(result.Remaining),
		logging.Modularity(result.Modularity))
	return result, nil
}

// labelSpace returns k for labels dense in [0, k).
func labelSpace(labels Labels) (int, error) {
	k := 0
	for _, side := range [][]int{labels.Rows, labels.Cols} {
		for _, l := range side {
			if l < 0 {
				return 0, fmt.Errorf("merger: negative label %d, relabel first: %w", l, ErrLabelMismatch)
			}
			if l >= k {
				k = l + 1
			}
		}
	}
	return k, nil
}

func (mg *Merger) init(labels Labels, k int) error {
	agg, err := AggregateByLabel(mg.g.Matrix, labels, k)
	if err != nil {
		return err
	}
	mg.agg = agg
	mg.labels = labels.Clone()

	mg.active = make(map[int]struct{})
	for _, side := range [][]int{labels.Rows, labels.Cols} {
		for _, l := range side {
			mg.active[l] = struct{}{}
		}
	}

	mg.rowDeg = make([]float64, k)
	mg.colDeg = make([]float64, k)
	for i, l := range labels.Rows {
		mg.rowDeg[l] += mg.g.RowDegrees[i]
	}
	for j, l := range labels.Cols {
		mg.colDeg[l] += mg.g.ColDegrees[j]
	}

	mg.contrib = make([]float64, k)
	for l := range mg.active {
		mg.contrib[l] = mg.labelContribution(l)
	}
	return nil
}

func (mg *Merger) labelContribution(l int) float64 {
	if mg.g.Sum == 0 {
		return 0
	}
	return mg.agg.Get(l, l) - mg.rowDeg[l]*mg.colDeg[l]/mg.g.Sum
}

func (mg *Merger) sortedActive() []int {
	out := make([]int, 0, len(mg.active))
	for l := range mg.active {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// Delta returns the modularity gain (unnormalized by m) of merging a and b.
func (mg *Merger) Delta(a, b int) float64 {
	merged := mg.agg.Get(a, a) + mg.agg.Get(b, b) + mg.agg.Get(a, b) + mg.agg.Get(b, a)
	merged -= (mg.rowDeg[a] + mg.rowDeg[b]) * (mg.colDeg[a] + mg.colDeg[b]) / mg.g.Sum
	return merged - mg.contrib[a] - mg.contrib[b]
}

// candidates lists connected label pairs with a positive delta, best first.
// Ties go to the smaller A, then the smaller B.
func (mg *Merger) candidates() []MergePair {
	var pairs []MergePair
	neighbors := make(map[int]struct{})
	for _, a := range mg.sortedActive() {
		for k := range neighbors {
			delete(neighbors, k)
		}
		for _, b := range mg.agg.NeighborsOfRow(a) {
			neighbors[b] = struct{}{}
		}
		for _, b := range mg.agg.NeighborsOfCol(a) {
			neighbors[b] = struct{}{}
		}
		for b := range neighbors {
			if b <= a {
				continue
			}
			if d := mg.Delta(a, b); d > 0 {
				pairs = append(pairs, MergePair{A: a, B: b, Delta: d})
			}
		}
	}
	sort.Slice(pairs, func(x, y int) bool {
		if pairs[x].Delta != pairs[y].Delta {
			return pairs[x].Delta > pairs[y].Delta
		}
		if pairs[x].A != pairs[y].A {
			return pairs[x].A < pairs[y].A
		}
		return pairs[x].B < pairs[y].B
	})
	return pairs
}

// merge folds b into a.
func (mg *Merger) merge(a, b int) {
	others := mg.sortedActive()
	for _, o := range others {
		if w := mg.agg.Get(a, o) + mg.agg.Get(b, o); w != 0 {
			_ = mg.agg.Set(a, o, w)
		}
	}
	for _, o := range others {
		if w := mg.agg.Get(o, a) + mg.agg.Get(o, b); w != 0 {
			_ = mg.agg.Set(o, a, w)
		}
	}
	mg.agg.RemoveRow(b)
	mg.agg.RemoveCol(b)

	mg.rowDeg[a] += mg.rowDeg[b]
	mg.colDeg[a] += mg.colDeg[b]
	mg.rowDeg[b], mg.colDeg[b] = 0, 0

	mg.contrib[a] = mg.labelContribution(a)
	mg.contrib[b] = 0
	delete(mg.active, b)

	for i, l := range mg.labels.Rows {
		if l == b {
			mg.labels.Rows[i] = a
		}
	}
	for j, l := range mg.labels.Cols {
		if l == b {
			mg.labels.Cols[j] = a
		}
	}
}

// Modularity returns the current Q from the per-label contributions.
func (mg *Merger) Modularity() float64 {
	if mg.g.Sum == 0 {
		return 0
	}
	var q float64
	for _, l := range mg.sortedActive() {
		q += mg.contrib[l]
	}
	return q / mg.g.Sum
}
