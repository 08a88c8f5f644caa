package entitygraph

import (
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/dd0wney/cluso-flowgraph/pkg/ingest"
)

// Scores holds one centrality value per entity.
type Scores struct {
	Entities *ingest.Index
	Values   []float64
}

// Score returns the centrality of key. Entities unseen by the graph score 0.
func (s *Scores) Score(key string) float64 {
	i, ok := s.Entities.Lookup(key)
	if !ok {
		return 0
	}
	return s.Values[i]
}

// Centrality runs PageRank over g with teleport probability jump. Each
// undirected edge is walked in both directions and every vertex takes part,
// isolated or not.
func Centrality(g *Graph, jump, tolerance float64) *Scores {
	s := &Scores{Entities: g.Entities, Values: make([]float64, g.Size())}
	if g.Size() == 0 {
		return s
	}

	dg := simple.NewDirectedGraph()
	for i := 0; i < g.Size(); i++ {
		dg.AddNode(simple.Node(i))
	}
	for _, e := range g.Edges {
		dg.SetEdge(dg.NewEdge(simple.Node(e.From), simple.Node(e.To)))
		dg.SetEdge(dg.NewEdge(simple.Node(e.To), simple.Node(e.From)))
	}

	ranks := network.PageRank(dg, 1-jump, tolerance)
	for id, r := range ranks {
		s.Values[id] = r
	}
	return s
}
