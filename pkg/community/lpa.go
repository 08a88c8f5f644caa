package community

import (
	"errors"
	"fmt"
	"math"

	"github.com/dd0wney/cluso-flowgraph/pkg/logging"
	"github.com/dd0wney/cluso-flowgraph/pkg/matrix"
)

// ErrLabelMismatch is returned when seed labels do not cover the matrix.
var ErrLabelMismatch = errors.New("label arrays do not match matrix dimensions")

// Detector runs bipartite label propagation. Each node adopts the neighbor
// label l maximizing Σ w(x,n) − deg(x)·degSum(l)/m, ties going to the
// smallest label id.
type Detector struct {
	cfg    Config
	g      *Graph
	logger logging.Logger

	labels    Labels
	rowDegSum map[int]float64
	colDegSum map[int]float64

	score map[int]float64 // scratch, per update
	cands []int           // scratch, per update
}

// NewDetector creates a detector over g. The matrix caches of g must be clean.
func NewDetector(g *Graph, cfg Config) *Detector {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultConfig().MaxIterations
	}
	if cfg.MinGain <= 0 {
		cfg.MinGain = DefaultConfig().MinGain
	}
	return &Detector{
		cfg:    cfg,
		g:      g,
		logger: logging.OrNop(cfg.Logger).With(logging.Component("lpa")),
		score:  make(map[int]float64),
	}
}

// Run propagates labels starting from seed, which is copied. The returned
// labels are not yet relabeled.
func (d *Detector) Run(seed Labels) (*Result, error) {
	m := d.g.Matrix
	if len(seed.Rows) != m.RowCap() || len(seed.Cols) != m.ColCap() {
		return nil, fmt.Errorf("seed %dx%d, matrix %dx%d: %w",
			len(seed.Rows), len(seed.Cols), m.RowCap(), m.ColCap(), ErrLabelMismatch)
	}
	if m.AdjacencyState() != matrix.Clean {
		return nil, fmt.Errorf("lpa: %w", matrix.ErrStaleCache)
	}

	d.labels = seed.Clone()
	d.rowDegSum, d.colDegSum = DegreeSums(d.g, d.labels)

	modularity := d.Modularity()
	result := &Result{Initial: modularity}
	d.logger.Info("starting label propagation",
		logging.String("mode", d.cfg.Mode.String()),
		logging.Modularity(modularity),
		logging.Int("rows", m.Rows()),
		logging.Int("cols", m.Cols()))

	switch d.cfg.Mode {
	case ModeAlternate:
		for it := 1; it <= d.cfg.MaxIterations; it++ {
			d.updateRows()
			d.updateCols()
			next := d.Modularity()
			result.History = append(result.History, next)
			result.Iterations = it
			d.logger.Debug("pass complete", logging.Iteration(it), logging.Modularity(next))

			gain := next - modularity
			modularity = next
			if gain < d.cfg.MinGain {
				result.Converged = true
				break
			}
		}
		if !result.Converged {
			d.logger.Warn("iteration cap reached", logging.Iteration(result.Iterations))
		}
	default:
		d.updateCols()
		modularity = d.Modularity()
		result.History = append(result.History, modularity)
		result.Iterations = 1
		result.Converged = true
	}

	result.Labels = d.labels.Clone()
	result.Modularity = modularity
	result.Communities = countLabels(d.labels)
	d.logger.Info("label propagation finished",
		logging.Modularity(modularity),
		logging.Iteration(result.Iterations),
		logging.Count(result.Communities))
	return result, nil
}

// Labels returns the current assignment. The slices are owned by the detector.
func (d *Detector) Labels() Labels { return d.labels }

// RowDegreeSum returns the tracked row degree sum of a label.
func (d *Detector) RowDegreeSum(label int) float64 { return d.rowDegSum[label] }

// ColDegreeSum returns the tracked column degree sum of a label.
func (d *Detector) ColDegreeSum(label int) float64 { return d.colDegSum[label] }

// Modularity returns Q of the current assignment using the tracked degree sums.
func (d *Detector) Modularity() float64 {
	return modularityFrom(d.g, d.labels, d.rowDegSum, d.colDegSum)
}

// ContributionMap returns the per-label contribution of the current assignment.
func (d *Detector) ContributionMap() map[int]float64 {
	return ContributionMap(d.g, d.labels)
}

func (d *Detector) updateRows() {
	for i := range d.labels.Rows {
		old := d.labels.Rows[i]
		deg := d.g.RowDegrees[i]
		d.rowDegSum[old] -= deg
		next := d.bestLabel(d.g.Matrix.RowList(i), deg, d.labels.Cols, d.colDegSum,
			func(n int) float64 { return d.g.Matrix.Get(i, n) })
		d.labels.Rows[i] = next
		d.rowDegSum[next] += deg
	}
}

func (d *Detector) updateCols() {
	for j := range d.labels.Cols {
		old := d.labels.Cols[j]
		deg := d.g.ColDegrees[j]
		d.colDegSum[old] -= deg
		next := d.bestLabel(d.g.Matrix.ColList(j), deg, d.labels.Rows, d.rowDegSum,
			func(n int) float64 { return d.g.Matrix.Get(n, j) })
		d.labels.Cols[j] = next
		d.colDegSum[next] += deg
	}
}

// bestLabel picks the label for a node with the given neighbors on the
// opposite side. otherDegSum holds the opposite side's label degree sums.
func (d *Detector) bestLabel(neighbors []int, deg float64, otherLabels []int, otherDegSum map[int]float64, weight func(n int) float64) int {
	switch len(neighbors) {
	case 0:
		return IsolatedLabel
	case 1:
		return otherLabels[neighbors[0]]
	}

	d.cands = d.cands[:0]
	for _, n := range neighbors {
		l := otherLabels[n]
		if _, seen := d.score[l]; !seen {
			d.cands = append(d.cands, l)
		}
		d.score[l] += weight(n)
	}

	best := 0
	bestScore := math.Inf(-1)
	for _, l := range d.cands {
		s := d.score[l]
		if d.g.Sum > 0 {
			s -= deg * otherDegSum[l] / d.g.Sum
		}
		if s > bestScore || (s == bestScore && l < best) {
			best, bestScore = l, s
		}
		delete(d.score, l)
	}
	return best
}

func countLabels(labels Labels) int {
	seen := make(map[int]struct{})
	for _, l := range labels.Rows {
		seen[l] = struct{}{}
	}
	for _, l := range labels.Cols {
		seen[l] = struct{}{}
	}
	return len(seen)
}
