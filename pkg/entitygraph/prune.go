package entitygraph

import (
	"math"
	"sort"
)

// Prune bounds the graph to floor(ratio x connected vertices) edges when it
// holds more, dropping the lowest-weight edges first. Ties drop the edge
// with the smaller endpoints first. The connected-vertex count is taken
// before pruning. g is not modified.
func Prune(g *Graph, ratio float64) *Graph {
	out := &Graph{Entities: g.Entities, Pairs: g.Pairs}
	limit := int(math.Floor(float64(g.ConnectedVertices()) * ratio))
	if len(g.Edges) <= limit {
		out.Edges = append([]Edge(nil), g.Edges...)
		return out
	}

	byWeight := append([]Edge(nil), g.Edges...)
	sort.SliceStable(byWeight, func(a, b int) bool {
		ea, eb := byWeight[a], byWeight[b]
		if ea.Weight != eb.Weight {
			return ea.Weight < eb.Weight
		}
		if ea.From != eb.From {
			return ea.From < eb.From
		}
		return ea.To < eb.To
	})
	out.Edges = byWeight[len(byWeight)-limit:]
	sortEdges(out.Edges)
	return out
}
