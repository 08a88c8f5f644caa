package entitygraph

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/dd0wney/cluso-flowgraph/pkg/logging"
)

// Matcher compares entity clusters with known groupings of lower nodes.
type Matcher struct {
	counts      *Counts
	logger      logging.Logger
	projections []histogram
}

// histogram is a sparse normalized distribution over lower-node ids.
type histogram map[int]float64

// NewMatcher projects every cluster onto the lower-node space: each member
// entity contributes one count per lower node it is linked to, and the
// counts are normalized to sum to 1.
func NewMatcher(c *Counts, clusters []Cluster, logger logging.Logger) *Matcher {
	m := &Matcher{
		counts:      c,
		logger:      logging.OrNop(logger).With(logging.Component("matcher")),
		projections: make([]histogram, len(clusters)),
	}
	for n, cl := range clusters {
		h := make(histogram)
		for _, e := range cl.Members {
			for _, j := range c.Matrix.RowList(e) {
				h[j]++
			}
		}
		m.projections[n] = h.normalized()
	}
	return m
}

// Match finds, for every grouping, the cluster whose projection is most
// similar to the grouping's uniform distribution over its members.
// Similarity is 1 - JS(p, q) in nats. Groupings with no member known to the
// count matrix, or with no positive match, are left out. Results are sorted
// by descending similarity, then grouping key.
func (m *Matcher) Match(clusters []Cluster, groupings map[string][]string) []Match {
	keys := make([]string, 0, len(groupings))
	for k := range groupings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Match
	for _, key := range keys {
		var members []int
		grouping := make(histogram)
		for _, host := range groupings[key] {
			if j, ok := m.counts.Lower.Lookup(host); ok {
				members = append(members, j)
				grouping[j]++
			}
		}
		if len(members) == 0 {
			continue
		}
		sort.Ints(members)
		grouping = grouping.normalized()

		best := -1
		bestScore := 0.0
		for n, proj := range m.projections {
			score := Similarity(grouping, proj)
			if score > bestScore {
				best, bestScore = n, score
			}
		}
		if best < 0 {
			m.logger.Debug("no cluster matches grouping", logging.String("grouping", key))
			continue
		}
		out = append(out, Match{
			Grouping:   key,
			Similarity: bestScore,
			Cluster:    clusters[best],
			Members:    members,
		})
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Similarity != out[b].Similarity {
			return out[a].Similarity > out[b].Similarity
		}
		return out[a].Grouping < out[b].Grouping
	})
	m.logger.Info("clusters matched", logging.Count(len(out)), logging.Int("groupings", len(keys)))
	return out
}

// Similarity is 1 - JS(p, q) over the union support of two sparse
// distributions. Empty distributions have similarity 0.
func Similarity(p, q map[int]float64) float64 {
	if len(p) == 0 || len(q) == 0 {
		return 0
	}
	support := make(map[int]struct{}, len(p)+len(q))
	for k := range p {
		support[k] = struct{}{}
	}
	for k := range q {
		support[k] = struct{}{}
	}
	ids := sortedSet(support)
	pv := make([]float64, len(ids))
	qv := make([]float64, len(ids))
	for n, id := range ids {
		pv[n] = p[id]
		qv[n] = q[id]
	}
	s := 1 - stat.JensenShannon(pv, qv)
	if s < 0 {
		return 0
	}
	return s
}

func (h histogram) normalized() histogram {
	values := make([]float64, 0, len(h))
	for _, v := range h {
		values = append(values, v)
	}
	total := floats.Sum(values)
	if total == 0 {
		return h
	}
	for k, v := range h {
		h[k] = v / total
	}
	return h
}
