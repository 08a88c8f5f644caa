package entitygraph

import (
	"context"
	"fmt"
	"sort"

	"github.com/dd0wney/cluso-flowgraph/pkg/logging"
	"github.com/dd0wney/cluso-flowgraph/pkg/matrix"
	"github.com/dd0wney/cluso-flowgraph/pkg/parallel"
	"github.com/dd0wney/cluso-flowgraph/pkg/stats"
)

// pairWorker is the private state of one pool worker.
type pairWorker struct {
	table *stats.LogFactorialTable
	edges []Edge
	pairs int
}

// Build links every pair of entities that share a second-hop neighbor and
// whose neighbor overlap has probability below opts.Alpha under the
// hypergeometric null. Source entities are fanned out to a worker pool;
// the result does not depend on the worker count.
func Build(ctx context.Context, c *Counts, opts Options) (*Graph, error) {
	logger := logging.OrNop(opts.Logger).With(logging.Component("significance"))
	timer := logging.StartTimer(logger, "building significance graph",
		logging.Int("entities", c.Entities.Len()),
		logging.Int("lower_nodes", c.Lower.Len()))

	m := c.Matrix
	if m.AdjacencyState() != matrix.Clean || m.TransposeState() != matrix.Clean {
		m.Rebuild()
	}
	universe := c.Lower.Len()

	pool, err := parallel.NewWorkerPool(opts.Workers, func(int) *pairWorker {
		return &pairWorker{table: stats.NewLogFactorialTable(universe)}
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("significance pool: %w", err)
	}

	for i1 := 0; i1 < m.RowCap()-1; i1++ {
		if err := ctx.Err(); err != nil {
			pool.Close()
			return nil, err
		}
		pool.Submit(func(w *pairWorker) {
			w.evaluate(m, universe, i1, opts.Alpha)
		})
	}
	if err := pool.Wait(); err != nil {
		return nil, fmt.Errorf("significance workers: %w", err)
	}

	g := &Graph{Entities: c.Entities}
	for _, w := range pool.States() {
		g.Edges = append(g.Edges, w.edges...)
		g.Pairs += w.pairs
	}
	sortEdges(g.Edges)

	timer.End(logging.Int("pairs", g.Pairs), logging.Int("edges", len(g.Edges)))
	return g, nil
}

// evaluate tests i1 against every later entity reachable in two hops.
func (w *pairWorker) evaluate(m *matrix.Matrix[int], universe, i1 int, alpha float64) {
	j1s := m.RowList(i1)
	candidates := make(map[int]struct{})
	for _, j := range j1s {
		for _, i2 := range m.ColList(j) {
			if i2 > i1 {
				candidates[i2] = struct{}{}
			}
		}
	}

	for _, i2 := range sortedSet(candidates) {
		j2s := m.RowList(i2)
		overlap := intersectSorted(j1s, j2s)
		w.pairs++
		p := w.table.NealProbability(universe, len(j1s), len(j2s), overlap)
		if p < alpha {
			w.edges = append(w.edges, Edge{From: i1, To: i2, Probability: p, Weight: 1 - p})
		}
	}
}

func intersectSorted(a, b []int) int {
	n, x, y := 0, 0, 0
	for x < len(a) && y < len(b) {
		switch {
		case a[x] < b[y]:
			x++
		case a[x] > b[y]:
			y++
		default:
			n++
			x++
			y++
		}
	}
	return n
}

func sortedSet(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(a, b int) bool {
		if edges[a].From != edges[b].From {
			return edges[a].From < edges[b].From
		}
		return edges[a].To < edges[b].To
	})
}
