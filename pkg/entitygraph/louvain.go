package entitygraph

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"
)

// Louvain returns the communities of every level of a Louvain modularity
// hierarchy over g, coarsest level first. Duplicate member sets across
// levels are reported once. seed makes the run reproducible.
func Louvain(g *Graph, resolution float64, seed uint64) []Cluster {
	if len(g.Edges) == 0 {
		out := make([]Cluster, g.Size())
		for v := range out {
			out[v] = Cluster{ID: v, Members: []int{v}}
		}
		return out
	}

	wg := simple.NewWeightedUndirectedGraph(0, 0)
	for v := 0; v < g.Size(); v++ {
		wg.AddNode(simple.Node(v))
	}
	for _, e := range g.Edges {
		wg.SetWeightedEdge(wg.NewWeightedEdge(simple.Node(e.From), simple.Node(e.To), e.Weight))
	}

	var out []Cluster
	seen := make(map[string]bool)
	level, _ := community.Modularize(wg, resolution, rand.NewPCG(seed, seed)).(*community.ReducedUndirected)
	for level != nil {
		communities := level.Communities()
		sets := make([][]int, 0, len(communities))
		for _, comm := range communities {
			if len(comm) == 0 {
				continue
			}
			members := make([]int, len(comm))
			for n, node := range comm {
				members[n] = int(node.ID())
			}
			sort.Ints(members)
			sets = append(sets, members)
		}
		sort.Slice(sets, func(a, b int) bool { return sets[a][0] < sets[b][0] })
		for _, members := range sets {
			key := clusterKey(members)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, Cluster{ID: len(out), Members: members})
		}
		level, _ = level.Expanded().(*community.ReducedUndirected)
	}
	return out
}
