// Package community detects communities in a weighted bipartite graph with
// label propagation and refines them with greedy modularity merging.
package community

import (
	"math"

	"github.com/dd0wney/cluso-flowgraph/pkg/logging"
	"github.com/dd0wney/cluso-flowgraph/pkg/matrix"
)

// IsolatedLabel is assigned to nodes without neighbors. No seeding scheme
// produces it, so isolated nodes never share a community.
const IsolatedLabel = math.MinInt32

// Mode selects which node spaces the detector updates.
type Mode int

const (
	// ModeSinglePass updates the column space once and stops
	ModeSinglePass Mode = iota
	// ModeAlternate updates rows then columns each pass until the
	// modularity gain drops below MinGain
	ModeAlternate
)

// String returns the config name of a mode
func (m Mode) String() string {
	switch m {
	case ModeSinglePass:
		return "single-pass"
	case ModeAlternate:
		return "alternate"
	default:
		return "unknown"
	}
}

// ParseMode maps a config name to a Mode
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "single-pass", "single":
		return ModeSinglePass, true
	case "alternate", "full":
		return ModeAlternate, true
	default:
		return ModeSinglePass, false
	}
}

// Config holds detector options
type Config struct {
	Mode          Mode
	MaxIterations int     // cap on full passes in ModeAlternate
	MinGain       float64 // stop when a pass gains less modularity than this
	Logger        logging.Logger
}

// DefaultConfig returns the detector defaults
func DefaultConfig() Config {
	return Config{
		Mode:          ModeSinglePass,
		MaxIterations: 100,
		MinGain:       1e-4,
	}
}

// Graph bundles a node-level matrix with the totals every modularity
// computation needs. The matrix caches must be clean.
type Graph struct {
	Matrix     *matrix.Matrix[float64]
	Sum        float64
	RowDegrees []float64
	ColDegrees []float64
}

// NewGraph computes the total weight and degree arrays of m and rebuilds its
// caches.
func NewGraph(m *matrix.Matrix[float64]) *Graph {
	m.Rebuild()
	return &Graph{
		Matrix:     m,
		Sum:        m.Sum(),
		RowDegrees: m.RowSums(),
		ColDegrees: m.ColSums(),
	}
}

// Labels is one community assignment per node space
type Labels struct {
	Rows []int
	Cols []int
}

// Clone returns an independent copy
func (l Labels) Clone() Labels {
	return Labels{
		Rows: append([]int(nil), l.Rows...),
		Cols: append([]int(nil), l.Cols...),
	}
}

// Community is one detected community after relabeling
type Community struct {
	ID           int
	Rows         []int
	Cols         []int
	Contribution float64 // share of total modularity
}

// Result is the output of a detection run
type Result struct {
	Labels      Labels
	Modularity  float64
	Initial     float64   // modularity of the seed assignment
	History     []float64 // modularity after each pass
	Iterations  int
	Converged   bool
	Communities int
}
