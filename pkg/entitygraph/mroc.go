package entitygraph

import (
	"sort"
	"strconv"
	"strings"
)

type mrocCluster struct {
	id        int
	key       string
	members   []int
	neighbors []int // vertices adjacent to the cluster but outside it
	children  []int
}

// mroc grows an overlapping cluster forest. Every vertex seeds a leaf made
// of itself and its neighbors; clusters are then taken in FIFO order and
// merged with the adjacent cluster of highest member Jaccard similarity
// until no queued cluster has a neighbor.
type mroc struct {
	adj      [][]int
	clusters []*mrocCluster
	byKey    map[string]*mrocCluster
	active   map[string]bool
	queue    []*mrocCluster
	raw      []map[int]*mrocCluster // vertex -> clusters holding it, by id
}

// MROC returns every cluster of the forest in creation order: leaves first,
// then merges. Equal member sets are one cluster.
func MROC(g *Graph) []Cluster {
	r := &mroc{
		adj:    g.Adjacency(),
		byKey:  make(map[string]*mrocCluster),
		active: make(map[string]bool),
		raw:    make([]map[int]*mrocCluster, g.Size()),
	}
	for v := range r.raw {
		r.raw[v] = make(map[int]*mrocCluster)
	}
	r.seed()
	r.run()

	out := make([]Cluster, len(r.clusters))
	for n, c := range r.clusters {
		out[n] = Cluster{ID: c.id, Members: c.members, Children: c.children}
	}
	return out
}

func (r *mroc) seed() {
	var leaves []*mrocCluster
	for v := range r.adj {
		base := map[int]struct{}{v: {}}
		for _, n := range r.adj[v] {
			base[n] = struct{}{}
		}
		c := r.intern(base, r.outside(base))
		if !r.active[c.key] {
			r.active[c.key] = true
			leaves = append(leaves, c)
		}
	}
	r.queue = append(r.queue, leaves...)
	for _, c := range leaves {
		r.attach(c)
	}
}

func (r *mroc) run() {
	for len(r.queue) > 0 {
		c := r.queue[0]
		r.queue = r.queue[1:]
		if !r.active[c.key] {
			continue
		}
		delete(r.active, c.key)

		candidates := r.adjacentClusters(c)
		if len(candidates) == 0 {
			continue
		}
		best := candidates[0]
		bestScore := -1.0
		for _, n := range candidates {
			if s := jaccard(c.members, n.members); s > bestScore {
				best, bestScore = n, s
			}
		}

		union := make(map[int]struct{}, len(c.members)+len(best.members))
		for _, v := range c.members {
			union[v] = struct{}{}
		}
		for _, v := range best.members {
			union[v] = struct{}{}
		}
		merged := r.intern(union, r.outside(union))
		merged.addChild(c.id)
		merged.addChild(best.id)

		r.detach(c)
		r.detach(best)
		delete(r.active, best.key)
		r.attach(merged)
		r.active[merged.key] = true
		r.queue = append(r.queue, merged)
	}
}

// intern returns the cluster with the given members, creating it if new.
func (r *mroc) intern(members map[int]struct{}, neighbors []int) *mrocCluster {
	sorted := sortedSet(members)
	key := clusterKey(sorted)
	if c, ok := r.byKey[key]; ok {
		return c
	}
	c := &mrocCluster{id: len(r.clusters), key: key, members: sorted, neighbors: neighbors}
	r.clusters = append(r.clusters, c)
	r.byKey[key] = c
	return c
}

// outside returns the sorted vertices adjacent to set but not in it.
func (r *mroc) outside(set map[int]struct{}) []int {
	out := make(map[int]struct{})
	for v := range set {
		for _, n := range r.adj[v] {
			if _, in := set[n]; !in {
				out[n] = struct{}{}
			}
		}
	}
	return sortedSet(out)
}

// adjacentClusters returns the clusters holding any neighbor of c, by id.
func (r *mroc) adjacentClusters(c *mrocCluster) []*mrocCluster {
	seen := make(map[int]*mrocCluster)
	for _, v := range c.neighbors {
		for id, other := range r.raw[v] {
			seen[id] = other
		}
	}
	out := make([]*mrocCluster, 0, len(seen))
	for _, other := range seen {
		out = append(out, other)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].id < out[b].id })
	return out
}

func (r *mroc) attach(c *mrocCluster) {
	for _, v := range c.members {
		r.raw[v][c.id] = c
	}
}

func (r *mroc) detach(c *mrocCluster) {
	for _, v := range c.members {
		delete(r.raw[v], c.id)
	}
}

func (c *mrocCluster) addChild(id int) {
	if id == c.id {
		return
	}
	for _, existing := range c.children {
		if existing == id {
			return
		}
	}
	c.children = append(c.children, id)
}

func clusterKey(members []int) string {
	var b strings.Builder
	for n, v := range members {
		if n > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}

// jaccard of two sorted sets.
func jaccard(a, b []int) float64 {
	inter := intersectSorted(a, b)
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
