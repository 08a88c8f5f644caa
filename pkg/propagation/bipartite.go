package propagation

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/dd0wney/cluso-flowgraph/pkg/logging"
	"github.com/dd0wney/cluso-flowgraph/pkg/matrix"
)

// ErrNoTrainingLabels is returned when no training label maps onto the graph.
var ErrNoTrainingLabels = errors.New("no training labels inside the graph")

// Options configures a propagation solver
type Options struct {
	// Tolerance is multiplied by the number of solved nodes to form the
	// convergence threshold on the per-alternation absolute change
	Tolerance     float64
	MaxIterations int
	// LogWeights applies ln(1+w) before normalization
	LogWeights bool
	Logger     logging.Logger
}

// DefaultBipartiteOptions returns the node-level solver defaults
func DefaultBipartiteOptions() Options {
	return Options{
		Tolerance:     1e-6,
		MaxIterations: 1000,
		LogWeights:    true,
	}
}

// DefaultCommunityOptions returns the community-level solver defaults
func DefaultCommunityOptions() Options {
	return Options{
		Tolerance:     1e-3,
		MaxIterations: 100,
	}
}

// Result holds settled scores
type Result struct {
	Rows       []float64 // scores of the row space
	Cols       []float64 // scores of the column space
	Trained    []bool    // column nodes that carried a training label
	Iterations int
	Converged  bool
	Residual   float64 // absolute change in the last alternation
}

// Unlabeled returns the column scores of nodes that had no training label.
func (r *Result) Unlabeled() map[int]float64 {
	out := make(map[int]float64)
	for j, v := range r.Cols {
		if !r.Trained[j] {
			out[j] = v
		}
	}
	return out
}

// BipartiteSolver propagates column-side training labels across a bipartite
// matrix. Each alternation first sets every row to the weighted sum of its
// column neighbors, then every unlabeled column to the weighted sum of its
// row neighbors. Training columns are reset to their label before each sweep.
type BipartiteSolver struct {
	opts   Options
	logger logging.Logger

	rowCol *matrix.Matrix[float64] // normalized rows x cols
	colRow *matrix.Matrix[float64] // normalized cols x rows

	train      map[int]float64
	rows       []float64
	cols       []float64
	trained    []bool
	rowTrained []bool
	prev       []float64

	iterations int
	residual   float64
}

// NewBipartiteSolver prepares the normalized copies of m. m is not modified.
func NewBipartiteSolver(m *matrix.Matrix[float64], train map[int]float64, opts Options) (*BipartiteSolver, error) {
	defaults := DefaultBipartiteOptions()
	if opts.Tolerance <= 0 {
		opts.Tolerance = defaults.Tolerance
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaults.MaxIterations
	}

	s := &BipartiteSolver{
		opts:       opts,
		logger:     logging.OrNop(opts.Logger).With(logging.Component("propagation")),
		train:      make(map[int]float64, len(train)),
		rows:       make([]float64, m.RowCap()),
		cols:       make([]float64, m.ColCap()),
		trained:    make([]bool, m.ColCap()),
		rowTrained: make([]bool, m.RowCap()),
		prev:       make([]float64, m.ColCap()),
	}
	for j, v := range train {
		if j < 0 || j >= len(s.cols) {
			continue
		}
		s.train[j] = v
		s.trained[j] = true
		s.cols[j] = v
	}
	if len(train) > 0 && len(s.train) == 0 {
		return nil, fmt.Errorf("%d labels: %w", len(train), ErrNoTrainingLabels)
	}

	s.rowCol = m.Clone()
	if opts.LogWeights {
		LogTransform(s.rowCol)
	}
	s.colRow = s.rowCol.Transpose()
	RowColumnNormalize(s.rowCol)
	RowColumnNormalize(s.colRow)
	return s, nil
}

// Threshold is the residual below which the solver stops.
func (s *BipartiteSolver) Threshold() float64 {
	return s.opts.Tolerance * float64(len(s.cols))
}

// Step runs one alternation and returns the absolute change on the column side.
func (s *BipartiteSolver) Step() float64 {
	clamp(s.cols, s.trained, s.train)
	sweep(s.colRow, s.cols, s.rows, s.rowTrained)

	clamp(s.cols, s.trained, s.train)
	copy(s.prev, s.cols)
	sweep(s.rowCol, s.rows, s.cols, s.trained)

	s.iterations++
	s.residual = floats.Distance(s.prev, s.cols, 1)
	return s.residual
}

// Run alternates until the residual drops below Threshold or the iteration
// cap is reached.
func (s *BipartiteSolver) Run() *Result {
	threshold := s.Threshold()
	converged := false
	for it := 1; it <= s.opts.MaxIterations; it++ {
		residual := s.Step()
		s.logger.Debug("alternation complete",
			logging.Iteration(s.iterations),
			logging.Residual(residual),
			logging.Float64("score_sum", floats.Sum(s.cols)))
		if residual < threshold {
			converged = true
			break
		}
	}

	if !converged {
		s.logger.Warn("iteration cap reached before convergence",
			logging.Iteration(s.iterations),
			logging.Residual(s.residual))
	}
	s.logger.Info("bipartite propagation finished",
		logging.Iteration(s.iterations),
		logging.Residual(s.residual),
		logging.Bool("converged", converged))
	return s.Result(converged)
}

// Result snapshots the current scores.
func (s *BipartiteSolver) Result(converged bool) *Result {
	return &Result{
		Rows:       append([]float64(nil), s.rows...),
		Cols:       append([]float64(nil), s.cols...),
		Trained:    append([]bool(nil), s.trained...),
		Iterations: s.iterations,
		Converged:  converged,
		Residual:   s.residual,
	}
}

// Bipartite is NewBipartiteSolver followed by Run.
func Bipartite(m *matrix.Matrix[float64], train map[int]float64, opts Options) (*Result, error) {
	s, err := NewBipartiteSolver(m, train, opts)
	if err != nil {
		return nil, err
	}
	return s.Run(), nil
}

// sweep sets every untrained target j to Σ source[i]·w(i,j) over the column
// neighbors of j in m, where m is source x target.
func sweep(m *matrix.Matrix[float64], source, target []float64, trained []bool) {
	for j := range target {
		if trained[j] {
			continue
		}
		var sum float64
		for _, i := range m.ColList(j) {
			sum += source[i] * m.Get(i, j)
		}
		target[j] = sum
	}
}

func clamp(values []float64, trained []bool, train map[int]float64) {
	for j, ok := range trained {
		if ok {
			values[j] = train[j]
		}
	}
}
