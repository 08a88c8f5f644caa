// Package entitygraph coarsens a bipartite co-occurrence matrix into a graph
// over entities, keeping only statistically significant neighbor overlaps,
// and scores, clusters and matches that graph.
package entitygraph

import (
	"runtime"
	"sort"

	"github.com/dd0wney/cluso-flowgraph/pkg/ingest"
	"github.com/dd0wney/cluso-flowgraph/pkg/logging"
)

// Options configures graph construction and scoring.
type Options struct {
	// MinDays drops (entity, lower node) pairs seen on fewer distinct days.
	MinDays int `yaml:"min_days" validate:"gte=1"`
	// Alpha is the significance level; pairs with p < Alpha are linked.
	Alpha float64 `yaml:"alpha" validate:"gt=0,lt=1"`
	// Ratio bounds edges to Ratio x connected vertices after pruning.
	Ratio float64 `yaml:"ratio" validate:"gt=0"`
	// Jump is the PageRank teleport probability.
	Jump float64 `yaml:"jump" validate:"gt=0,lt=1"`
	// Tolerance is the PageRank convergence tolerance.
	Tolerance float64 `yaml:"tolerance" validate:"gt=0"`
	// Workers evaluating entity pairs; <= 0 means one per CPU.
	Workers int `yaml:"workers" validate:"gte=0"`

	Logger logging.Logger `yaml:"-" validate:"-"`
}

// DefaultInfluenceOptions returns the settings for the flat influence graph.
func DefaultInfluenceOptions() Options {
	return Options{
		MinDays:   7,
		Alpha:     1e-5,
		Ratio:     3.0,
		Jump:      0.15,
		Tolerance: 1e-6,
		Workers:   runtime.NumCPU(),
	}
}

// DefaultHierarchyOptions returns the settings used before clustering.
func DefaultHierarchyOptions() Options {
	opts := DefaultInfluenceOptions()
	opts.MinDays = 14
	return opts
}

// Edge is an undirected link between two entities, From < To.
type Edge struct {
	From        int
	To          int
	Probability float64 // chance of the observed overlap
	Weight      float64 // 1 - Probability
}

// Graph is an undirected significance graph over the entities of a Counts.
type Graph struct {
	Entities *ingest.Index
	Edges    []Edge // sorted by (From, To)
	Pairs    int    // entity pairs tested while building
}

// Size returns the number of vertices, connected or not.
func (g *Graph) Size() int { return g.Entities.Len() }

// Degrees returns the edge count of every vertex.
func (g *Graph) Degrees() []int {
	deg := make([]int, g.Size())
	for _, e := range g.Edges {
		deg[e.From]++
		deg[e.To]++
	}
	return deg
}

// ConnectedVertices counts vertices with at least one edge.
func (g *Graph) ConnectedVertices() int {
	n := 0
	for _, d := range g.Degrees() {
		if d > 0 {
			n++
		}
	}
	return n
}

// Adjacency returns the sorted neighbor list of every vertex.
func (g *Graph) Adjacency() [][]int {
	adj := make([][]int, g.Size())
	for _, e := range g.Edges {
		adj[e.From] = append(adj[e.From], e.To)
		adj[e.To] = append(adj[e.To], e.From)
	}
	for _, a := range adj {
		sort.Ints(a)
	}
	return adj
}

// Cluster is a set of entities. Children lists the clusters merged to form
// it, empty for leaves.
type Cluster struct {
	ID       int
	Members  []int
	Children []int
}

// Match pairs a known grouping with its most similar cluster.
type Match struct {
	Grouping   string
	Similarity float64 // 1 - Jensen-Shannon divergence, in [0, 1]
	Cluster    Cluster
	Members    []int // lower-node ids of the grouping
}
