package ingest

import (
	"fmt"
	"sort"

	"github.com/dd0wney/cluso-flowgraph/pkg/matrix"
)

// MatrixOptions selects and shapes the flows that enter a matrix.
type MatrixOptions struct {
	// Service keeps only flows tagged with this category; "" keeps all.
	Service string
	// Resolver maps external keys to column entities; nil keeps keys as-is.
	// Flows whose external key does not resolve are dropped.
	Resolver Resolver
	// Internal, when non-nil, drops flows whose internal key is not in it.
	Internal map[string]bool
	// Binary stores 1.0 per (row, col) pair instead of accumulating weights.
	Binary bool
}

// FlowMatrix is an internal x external weight matrix with its key indexes.
type FlowMatrix struct {
	Matrix  *matrix.Matrix[float64]
	Rows    *Index
	Cols    *Index
	Dropped int // flows excluded by the options
}

func (o MatrixOptions) accept(f Flow) (string, bool) {
	if o.Internal != nil && !o.Internal[f.Internal] {
		return "", false
	}
	if !f.HasService(o.Service) {
		return "", false
	}
	if o.Resolver == nil {
		return f.External, true
	}
	return o.Resolver.Resolve(f.External)
}

// BuildFlowMatrix indexes both key spaces in ascending order and sums the
// weights of recurring pairs. Caches are rebuilt before returning.
func BuildFlowMatrix(flows []Flow, opts MatrixOptions) (*FlowMatrix, error) {
	rowSet := make(map[string]struct{})
	colSet := make(map[string]struct{})
	entities := make([]string, len(flows))
	kept := make([]bool, len(flows))
	dropped := 0
	for n, f := range flows {
		entity, ok := opts.accept(f)
		if !ok {
			dropped++
			continue
		}
		entities[n] = entity
		kept[n] = true
		rowSet[f.Internal] = struct{}{}
		colSet[entity] = struct{}{}
	}

	fm := &FlowMatrix{
		Rows:    SetIndex(rowSet),
		Cols:    SetIndex(colSet),
		Dropped: dropped,
	}
	fm.Matrix = matrix.New[float64](fm.Rows.Len(), fm.Cols.Len(), 0)
	for n, f := range flows {
		if !kept[n] {
			continue
		}
		i, _ := fm.Rows.Lookup(f.Internal)
		j, _ := fm.Cols.Lookup(entities[n])
		var err error
		if opts.Binary {
			err = fm.Matrix.Set(i, j, 1.0)
		} else {
			err = fm.Matrix.Add(i, j, f.Weight)
		}
		if err != nil {
			return nil, fmt.Errorf("flow %s -> %s: %w", f.Internal, f.External, err)
		}
	}
	fm.Matrix.Rebuild()
	return fm, nil
}

// DaySets records, per entity, the distinct day buckets on which each lower
// node was seen with it.
type DaySets map[string]map[string]map[string]struct{}

// Add records one sighting.
func (d DaySets) Add(entity, lower, day string) {
	nodes, ok := d[entity]
	if !ok {
		nodes = make(map[string]map[string]struct{})
		d[entity] = nodes
	}
	days, ok := nodes[lower]
	if !ok {
		days = make(map[string]struct{})
		nodes[lower] = days
	}
	days[day] = struct{}{}
}

// Days returns the number of distinct days entity and lower co-occurred.
func (d DaySets) Days(entity, lower string) int {
	return len(d[entity][lower])
}

// Entities returns the entity keys in ascending order.
func (d DaySets) Entities() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BuildDaySets groups flows by resolved entity (the external side) and
// internal lower node. The options' Binary flag is ignored.
func BuildDaySets(flows []Flow, opts MatrixOptions) DaySets {
	d := make(DaySets)
	for _, f := range flows {
		entity, ok := opts.accept(f)
		if !ok {
			continue
		}
		d.Add(entity, f.Internal, f.Day)
	}
	return d
}
