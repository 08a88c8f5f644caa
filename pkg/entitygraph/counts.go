package entitygraph

import (
	"fmt"

	"github.com/dd0wney/cluso-flowgraph/pkg/ingest"
	"github.com/dd0wney/cluso-flowgraph/pkg/matrix"
)

// Counts is an entity x lower-node matrix of co-occurrence days.
type Counts struct {
	Matrix   *matrix.Matrix[int]
	Entities *ingest.Index
	Lower    *ingest.Index
}

// CountMatrix keeps the (entity, lower node) pairs seen on at least minDays
// distinct days. Entities and lower nodes with no surviving pair are left
// out. Both indexes are sorted and the caches are rebuilt.
func CountMatrix(days ingest.DaySets, minDays int) (*Counts, error) {
	entitySet := make(map[string]struct{})
	lowerSet := make(map[string]struct{})
	for entity, nodes := range days {
		for lower, set := range nodes {
			if len(set) >= minDays {
				entitySet[entity] = struct{}{}
				lowerSet[lower] = struct{}{}
			}
		}
	}

	c := &Counts{
		Entities: ingest.SetIndex(entitySet),
		Lower:    ingest.SetIndex(lowerSet),
	}
	c.Matrix = matrix.New[int](c.Entities.Len(), c.Lower.Len(), 0)
	for entity, nodes := range days {
		i, ok := c.Entities.Lookup(entity)
		if !ok {
			continue
		}
		for lower, set := range nodes {
			if len(set) < minDays {
				continue
			}
			j, _ := c.Lower.Lookup(lower)
			if err := c.Matrix.Set(i, j, len(set)); err != nil {
				return nil, fmt.Errorf("count %s/%s: %w", entity, lower, err)
			}
		}
	}
	c.Matrix.Rebuild()
	return c, nil
}
