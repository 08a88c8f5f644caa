package community

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/dd0wney/cluso-flowgraph/pkg/matrix"
)

// newGraph builds a graph from a dense weight grid, zero meaning no edge
func newGraph(t *testing.T, grid [][]float64) *Graph {
	t.Helper()
	rows, cols := len(grid), 0
	if rows > 0 {
		cols = len(grid[0])
	}
	m := matrix.New[float64](rows, cols, 0)
	for i, row := range grid {
		for j, w := range row {
			if w != 0 {
				if err := m.Set(i, j, w); err != nil {
					t.Fatalf("Set(%d,%d): %v", i, j, err)
				}
			}
		}
	}
	return NewGraph(m)
}

// twoBlocks is two disjoint 2x2 complete bipartite blocks
func twoBlocks(t *testing.T) *Graph {
	return newGraph(t, [][]float64{
		{1, 1, 0, 0},
		{1, 1, 0, 0},
		{0, 0, 1, 1},
		{0, 0, 1, 1},
	})
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSeedLabels(t *testing.T) {
	labels := SeedLabels(3, 2, map[int]int{0: 4, 2: 1})
	want := Labels{Rows: []int{4, 5, 1}, Cols: []int{6, 7}}
	if !reflect.DeepEqual(labels, want) {
		t.Errorf("SeedLabels = %+v, want %+v", labels, want)
	}

	fresh := SeedLabels(2, 2, nil)
	if !reflect.DeepEqual(fresh, Labels{Rows: []int{0, 1}, Cols: []int{2, 3}}) {
		t.Errorf("unexpected fresh labels %+v", fresh)
	}
}

func TestRelabel_DenseAscending(t *testing.T) {
	r := Relabel(Labels{Rows: []int{40, 7, 40}, Cols: []int{IsolatedLabel, 7, 99}})
	if r.Count != 4 {
		t.Fatalf("expected 4 labels, got %d", r.Count)
	}
	// IsolatedLabel sorts first
	if !reflect.DeepEqual(r.Labels.Rows, []int{2, 1, 2}) || !reflect.DeepEqual(r.Labels.Cols, []int{0, 1, 3}) {
		t.Errorf("unexpected relabeling %+v", r.Labels)
	}
	if r.Isolated != 0 {
		t.Errorf("expected isolated id 0, got %d", r.Isolated)
	}
	if !reflect.DeepEqual(r.RowCounts, []int{0, 1, 2, 0}) || !reflect.DeepEqual(r.ColCounts, []int{1, 1, 0, 1}) {
		t.Errorf("unexpected histograms rows=%v cols=%v", r.RowCounts, r.ColCounts)
	}

	comms := r.Communities(map[int]float64{2: 0.3})
	if len(comms) != 4 || !reflect.DeepEqual(comms[2].Rows, []int{0, 2}) || comms[2].Contribution != 0.3 {
		t.Errorf("unexpected communities %+v", comms[2])
	}
}

func TestModularity_ZeroWeight(t *testing.T) {
	g := NewGraph(matrix.New[float64](2, 2, 0))
	if q := Modularity(g, SeedLabels(2, 2, nil)); q != 0 {
		t.Errorf("expected 0 modularity for empty graph, got %f", q)
	}
	if c := ContributionMap(g, SeedLabels(2, 2, nil)); len(c) != 0 {
		t.Errorf("expected empty contribution map, got %v", c)
	}
}

func TestModularity_TwoBlocks(t *testing.T) {
	g := twoBlocks(t)
	labels := Labels{Rows: []int{0, 0, 1, 1}, Cols: []int{0, 0, 1, 1}}
	if q := Modularity(g, labels); !approx(q, 0.5) {
		t.Errorf("expected Q=0.5, got %f", q)
	}

	contrib := ContributionMap(g, labels)
	var sum float64
	for _, c := range contrib {
		sum += c
	}
	if !approx(sum, 0.5) || !approx(contrib[0], 0.25) {
		t.Errorf("contributions %v do not sum to Q", contrib)
	}
}

func TestDetector_TwoBlocksAlternate(t *testing.T) {
	g := twoBlocks(t)
	cfg := DefaultConfig()
	cfg.Mode = ModeAlternate

	result, err := NewDetector(g, cfg).Run(SeedLabels(4, 4, nil))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Converged {
		t.Error("expected convergence")
	}
	if result.Communities != 2 {
		t.Errorf("expected 2 communities, got %d", result.Communities)
	}
	if result.Modularity <= 0.4 {
		t.Errorf("expected modularity > 0.4, got %f", result.Modularity)
	}

	r := Relabel(result.Labels)
	want := []int{0, 0, 1, 1}
	if !reflect.DeepEqual(r.Labels.Rows, want) || !reflect.DeepEqual(r.Labels.Cols, want) {
		t.Errorf("expected rows and cols %v, got %+v", want, r.Labels)
	}
}

func TestDetector_SinglePassSeeded(t *testing.T) {
	g := twoBlocks(t)
	seed := SeedLabels(4, 4, map[int]int{0: 0, 1: 0, 2: 1, 3: 1})

	result, err := NewDetector(g, DefaultConfig()).Run(seed)
	if err != nil {
		t.Fatal(err)
	}
	if result.Iterations != 1 {
		t.Errorf("expected a single pass, got %d", result.Iterations)
	}
	if !reflect.DeepEqual(result.Labels.Rows, []int{0, 0, 1, 1}) {
		t.Errorf("single pass must not move rows, got %v", result.Labels.Rows)
	}
	if !reflect.DeepEqual(result.Labels.Cols, []int{0, 0, 1, 1}) {
		t.Errorf("expected columns to follow row groups, got %v", result.Labels.Cols)
	}
	if !approx(result.Modularity, 0.5) {
		t.Errorf("expected Q=0.5, got %f", result.Modularity)
	}
	if result.Initial >= result.Modularity {
		t.Errorf("expected modularity gain, %f -> %f", result.Initial, result.Modularity)
	}
}

func TestDetector_IsolatedAndSingleNeighbor(t *testing.T) {
	g := newGraph(t, [][]float64{
		{5, 0, 0},
		{0, 0, 0},
	})
	seed := SeedLabels(2, 3, map[int]int{0: 9})

	result, err := NewDetector(g, DefaultConfig()).Run(seed)
	if err != nil {
		t.Fatal(err)
	}
	if result.Labels.Cols[0] != 9 {
		t.Errorf("expected single-neighbor column to adopt label 9, got %d", result.Labels.Cols[0])
	}
	if result.Labels.Cols[1] != IsolatedLabel || result.Labels.Cols[2] != IsolatedLabel {
		t.Errorf("expected isolated sentinel on empty columns, got %v", result.Labels.Cols)
	}
}

func TestDetector_TieBreakSmallestLabel(t *testing.T) {
	// Column 0 sees rows labeled 7 and 3 with equal weight and degree
	g := newGraph(t, [][]float64{
		{1},
		{1},
	})
	seed := Labels{Rows: []int{7, 3}, Cols: []int{11}}

	result, err := NewDetector(g, DefaultConfig()).Run(seed)
	if err != nil {
		t.Fatal(err)
	}
	if result.Labels.Cols[0] != 3 {
		t.Errorf("expected tie broken to label 3, got %d", result.Labels.Cols[0])
	}
}

func TestDetector_Errors(t *testing.T) {
	g := twoBlocks(t)
	if _, err := NewDetector(g, DefaultConfig()).Run(SeedLabels(3, 4, nil)); !errors.Is(err, ErrLabelMismatch) {
		t.Errorf("expected ErrLabelMismatch, got %v", err)
	}

	_ = g.Matrix.Set(0, 3, 1)
	if _, err := NewDetector(g, DefaultConfig()).Run(SeedLabels(4, 4, nil)); !errors.Is(err, matrix.ErrStaleCache) {
		t.Errorf("expected ErrStaleCache, got %v", err)
	}
}

func TestDetector_DegreeSumsTracked(t *testing.T) {
	g := newGraph(t, [][]float64{
		{3, 1, 0, 2},
		{0, 2, 2, 0},
		{1, 0, 4, 1},
	})
	cfg := DefaultConfig()
	cfg.Mode = ModeAlternate
	d := NewDetector(g, cfg)
	result, err := d.Run(SeedLabels(3, 4, nil))
	if err != nil {
		t.Fatal(err)
	}

	rowSums, colSums := DegreeSums(g, result.Labels)
	for l, s := range rowSums {
		if !approx(d.RowDegreeSum(l), s) {
			t.Errorf("row degree sum of %d: tracked %f, actual %f", l, d.RowDegreeSum(l), s)
		}
	}
	for l, s := range colSums {
		if !approx(d.ColDegreeSum(l), s) {
			t.Errorf("col degree sum of %d: tracked %f, actual %f", l, d.ColDegreeSum(l), s)
		}
	}
	if !approx(d.Modularity(), Modularity(g, result.Labels)) {
		t.Errorf("tracked modularity %f differs from bulk %f", d.Modularity(), Modularity(g, result.Labels))
	}
}

func TestMerger_TwoBlocksFromSingletons(t *testing.T) {
	g := twoBlocks(t)
	result, err := NewMerger(g, nil).Run(SeedLabels(4, 4, nil))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Remaining != 2 {
		t.Errorf("expected 2 communities, got %d", result.Remaining)
	}
	if result.Rounds != 2 || !approx(result.History[0], 0.25) || !approx(result.History[1], 0.5) {
		t.Errorf("unexpected rounds %d history %v", result.Rounds, result.History)
	}
	if !approx(result.Modularity, Modularity(g, result.Labels)) {
		t.Errorf("merger modularity %f differs from bulk %f", result.Modularity, Modularity(g, result.Labels))
	}

	r := Relabel(result.Labels)
	if !reflect.DeepEqual(r.Labels.Rows, []int{0, 0, 1, 1}) || !reflect.DeepEqual(r.Labels.Cols, []int{0, 0, 1, 1}) {
		t.Errorf("unexpected merged labels %+v", r.Labels)
	}
}

func TestMerger_RejectsSentinel(t *testing.T) {
	g := twoBlocks(t)
	labels := Labels{Rows: []int{0, 0, 1, 1}, Cols: []int{0, IsolatedLabel, 1, 1}}
	if _, err := NewMerger(g, nil).Run(labels); !errors.Is(err, ErrLabelMismatch) {
		t.Errorf("expected ErrLabelMismatch, got %v", err)
	}
}

func TestMerger_EmptyGraph(t *testing.T) {
	g := NewGraph(matrix.New[float64](2, 2, 0))
	result, err := NewMerger(g, nil).Run(SeedLabels(2, 2, nil))
	if err != nil {
		t.Fatal(err)
	}
	if result.Rounds != 0 || result.Modularity != 0 || result.Remaining != 4 {
		t.Errorf("unexpected result for empty graph %+v", result)
	}
}

func TestAggregateByLabel(t *testing.T) {
	g := twoBlocks(t)
	labels := Labels{Rows: []int{0, 0, 1, 1}, Cols: []int{0, 1, 1, 1}}
	agg, err := AggregateByLabel(g.Matrix, labels, 2)
	if err != nil {
		t.Fatal(err)
	}
	if agg.Get(0, 0) != 2 || agg.Get(0, 1) != 2 || agg.Get(1, 1) != 4 || agg.Get(1, 0) != 0 {
		t.Errorf("unexpected aggregate %v", agg.Entries())
	}
	if agg.Sum() != g.Sum {
		t.Errorf("aggregate sum %f differs from graph sum %f", agg.Sum(), g.Sum)
	}

	counts, err := AggregateEdgeCounts(g.Matrix, labels, 2)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Get(1, 1) != 4 {
		t.Errorf("expected 4 edges in (1,1), got %f", counts.Get(1, 1))
	}

	if _, err := AggregateByLabel(g.Matrix, labels, 1); !errors.Is(err, matrix.ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange for undersized label space, got %v", err)
	}
}

func TestFocusScores(t *testing.T) {
	g := newGraph(t, [][]float64{
		{1, 1, 0},
		{1, 0, 0},
		{0, 1, 0},
	})
	rowLabels := []int{0, 0, 1}
	rowCounts := []int{2, 1}

	scores := FocusScores(g.Matrix, rowLabels, rowCounts)
	// col 0: label 0 with 2 of 2 rows -> 1.0
	// col 1: label 0 with 1 of 2, label 1 with 1 of 1 -> (0.5+1)/2
	// col 2: no neighbors -> 0
	want := []float64{1.0, 0.75, 0}
	for j := range want {
		if !approx(scores[j], want[j]) {
			t.Errorf("focus[%d] = %f, want %f", j, scores[j], want[j])
		}
	}
}
