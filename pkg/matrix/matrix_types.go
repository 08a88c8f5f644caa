package matrix

import (
	"errors"

	"golang.org/x/exp/constraints"
)

// Weight is the set of cell payload types a Matrix can hold: byte counts and
// log-scaled weights as floats, day counts as integers.
type Weight interface {
	constraints.Integer | constraints.Float
}

// Common sentinel errors
var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrStaleCache      = errors.New("cache is stale; rebuild required")
)

// CacheState tracks whether a derived cache agrees with the primary data.
type CacheState int

const (
	// Dirty means the primary data changed since the last rebuild
	Dirty CacheState = iota
	// Rebuilding is set for the duration of a rebuild
	Rebuilding
	// Clean means the cache reflects the primary data
	Clean
)

// String returns the string representation of a cache state
func (s CacheState) String() string {
	switch s {
	case Dirty:
		return "dirty"
	case Rebuilding:
		return "rebuilding"
	case Clean:
		return "clean"
	default:
		return "unknown"
	}
}

// Matrix is a sparse bipartite adjacency matrix between a row space I and a
// column space J, both addressed by dense 0-based indices.
//
// Cell payloads live in a single map keyed by the packed (row, col) pair. The
// row key sets are primary data; the column key sets (the transpose) and the
// flat sorted neighbor arrays are caches that are rebuilt explicitly. Every
// mutation marks both caches Dirty.
type Matrix[W Weight] struct {
	rows    int // current row count, shrinks on RemoveRow
	cols    int // current column count, shrinks on RemoveCol
	rowCap  int // size of the row index space, never shrinks
	colCap  int // size of the column index space, never shrinks
	nullVal W

	cells   map[uint64]W
	rowKeys []map[int]struct{}

	colKeys        []map[int]struct{}
	transposeState CacheState

	rowAdj         [][]int
	colAdj         [][]int
	adjacencyState CacheState
}

// Entry is one non-default cell.
type Entry[W Weight] struct {
	Row    int
	Col    int
	Weight W
}
