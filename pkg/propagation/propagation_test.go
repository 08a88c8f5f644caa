package propagation

import (
	"errors"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dd0wney/cluso-flowgraph/pkg/matrix"
)

func newMatrix(t *testing.T, grid [][]float64) *matrix.Matrix[float64] {
	t.Helper()
	m := matrix.New[float64](len(grid), len(grid[0]), 0)
	for i, row := range grid {
		for j, w := range row {
			if w != 0 {
				if err := m.Set(i, j, w); err != nil {
					t.Fatal(err)
				}
			}
		}
	}
	m.Rebuild()
	return m
}

func TestLogTransform(t *testing.T) {
	m := newMatrix(t, [][]float64{{1, math.E - 1}})
	LogTransform(m)
	if math.Abs(m.Get(0, 0)-math.Ln2) > 1e-12 || math.Abs(m.Get(0, 1)-1) > 1e-12 {
		t.Errorf("unexpected log weights %v", m.Entries())
	}
}

func TestRowColumnNormalize(t *testing.T) {
	m := newMatrix(t, [][]float64{
		{1, 3},
		{2, 0},
	})
	RowColumnNormalize(m)

	// Rows first: [0.25 0.75] [1 0]; then columns: col0 sum 1.25, col1 sum 0.75
	want := map[[2]int]float64{
		{0, 0}: 0.25 / 1.25,
		{0, 1}: 1,
		{1, 0}: 1 / 1.25,
	}
	for k, v := range want {
		if got := m.Get(k[0], k[1]); math.Abs(got-v) > 1e-12 {
			t.Errorf("(%d,%d) = %f, want %f", k[0], k[1], got, v)
		}
	}
	for _, s := range m.ColSums() {
		if math.Abs(s-1) > 1e-12 {
			t.Errorf("expected column sums of 1, got %f", s)
		}
	}
	if m.AdjacencyState() != matrix.Clean {
		t.Error("expected caches rebuilt after normalization")
	}
}

func TestRowColumnNormalize_ZeroRow(t *testing.T) {
	m := matrix.New[float64](2, 2, 0)
	_ = m.Set(0, 0, 4)
	RowColumnNormalize(m)
	for _, e := range m.Entries() {
		if math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
			t.Fatalf("non-finite weight %v", e)
		}
	}
	if m.Get(0, 0) != 1 {
		t.Errorf("expected 1, got %f", m.Get(0, 0))
	}
}

func TestBipartite_SingleEdge(t *testing.T) {
	m := newMatrix(t, [][]float64{{1}})
	s, err := NewBipartiteSolver(m, map[int]float64{0: 1.0}, DefaultBipartiteOptions())
	if err != nil {
		t.Fatal(err)
	}
	s.Step()
	result := s.Result(true)
	if result.Rows[0] != 1.0 {
		t.Errorf("expected unlabeled neighbor score 1.0 after one alternation, got %f", result.Rows[0])
	}
	if result.Cols[0] != 1.0 {
		t.Errorf("expected training label preserved, got %f", result.Cols[0])
	}
}

func TestBipartite_ScoresUnlabeled(t *testing.T) {
	// ext 0 is a known-bad endpoint, ext 2 shares int 0 with it, ext 3 does not
	m := newMatrix(t, [][]float64{
		{100, 0, 100, 0},
		{0, 50, 0, 50},
	})
	result, err := Bipartite(m, map[int]float64{0: 1.0, 1: 0.0}, DefaultBipartiteOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !result.Converged {
		t.Fatalf("expected convergence, got residual %g after %d", result.Residual, result.Iterations)
	}
	scores := result.Unlabeled()
	if len(scores) != 2 {
		t.Fatalf("expected 2 unlabeled scores, got %v", scores)
	}
	if scores[2] <= scores[3] {
		t.Errorf("expected ext 2 (%f) to score above ext 3 (%f)", scores[2], scores[3])
	}
	if math.Abs(scores[2]-1) > 1e-4 || scores[3] != 0 {
		t.Errorf("unexpected scores %v", scores)
	}
}

func TestBipartite_CapEnforced(t *testing.T) {
	m := newMatrix(t, [][]float64{
		{1, 2, 0},
		{0, 3, 1},
		{2, 0, 5},
	})
	opts := DefaultBipartiteOptions()
	opts.MaxIterations = 2
	opts.Tolerance = 1e-300
	result, err := Bipartite(m, map[int]float64{0: 1}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if result.Iterations != 2 || result.Converged {
		t.Errorf("expected 2 capped iterations, got %d converged=%v", result.Iterations, result.Converged)
	}
}

func TestBipartite_NoTrainingInside(t *testing.T) {
	m := newMatrix(t, [][]float64{{1}})
	if _, err := Bipartite(m, map[int]float64{7: 1}, DefaultBipartiteOptions()); !errors.Is(err, ErrNoTrainingLabels) {
		t.Errorf("expected ErrNoTrainingLabels, got %v", err)
	}
}

func TestCommunity_MeanSeedAndUnknown(t *testing.T) {
	// Two communities linked to themselves and weakly to each other
	agg := newMatrix(t, [][]float64{
		{4, 1},
		{1, 4},
	})
	membership := []int{0, 0, 1, -1}
	train := map[int]float64{0: 1.0, 1: 0.5}

	result, err := Community(agg, membership, train, DefaultCommunityOptions())
	if err != nil {
		t.Fatal(err)
	}
	if result.Nodes[3] != 0 {
		t.Errorf("expected unknown node to score 0, got %f", result.Nodes[3])
	}
	if result.Nodes[2] <= 0 || result.Nodes[2] >= result.Nodes[0] {
		t.Errorf("expected community 1 to score between 0 and community 0, got %v", result.Nodes)
	}
	if result.Iterations > DefaultCommunityOptions().MaxIterations {
		t.Errorf("iteration cap exceeded: %d", result.Iterations)
	}
}

func TestCommunity_RejectsNonSquare(t *testing.T) {
	agg := matrix.New[float64](2, 3, 0)
	if _, err := Community(agg, nil, nil, DefaultCommunityOptions()); err == nil {
		t.Error("expected error for non-square community graph")
	}
}

// TestPropagationSettles checks that a converged run is stable under one more alternation
func TestPropagationSettles(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	const rows, cols = 4, 5
	properties := gopter.NewProperties(parameters)
	properties.Property("one more alternation stays within the threshold", prop.ForAll(
		func(ws []int, labeled int) bool {
			m := matrix.New[float64](rows, cols, 0)
			for n, w := range ws {
				if w > 0 {
					_ = m.Set(n/cols, n%cols, float64(w*w))
				}
			}
			m.Rebuild()

			s, err := NewBipartiteSolver(m, map[int]float64{labeled: 1.0}, DefaultBipartiteOptions())
			if err != nil {
				return false
			}
			result := s.Run()
			if !result.Converged {
				// Oscillating inputs are bounded by the cap instead
				return result.Iterations == DefaultBipartiteOptions().MaxIterations
			}
			before := append([]float64(nil), result.Cols...)
			s.Step()
			after := s.Result(true).Cols
			for j := range before {
				if math.Abs(after[j]-before[j]) > s.Threshold() {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(rows*cols, gen.IntRange(0, 4)),
		gen.IntRange(0, cols-1),
	))
	properties.TestingRun(t)
}
