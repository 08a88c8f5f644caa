package community

import "sort"

// SeedLabels builds the initial assignment for numRows x numCols nodes. Rows
// present in rowSeeds take their seed label; every other row and every
// column gets a fresh label above the largest seed.
func SeedLabels(numRows, numCols int, rowSeeds map[int]int) Labels {
	next := 0
	for _, l := range rowSeeds {
		if l >= next {
			next = l + 1
		}
	}
	labels := Labels{
		Rows: make([]int, numRows),
		Cols: make([]int, numCols),
	}
	for i := range labels.Rows {
		if l, ok := rowSeeds[i]; ok {
			labels.Rows[i] = l
			continue
		}
		labels.Rows[i] = next
		next++
	}
	for j := range labels.Cols {
		labels.Cols[j] = next
		next++
	}
	return labels
}

// Relabeling is a canonical assignment with dense ids 0..Count-1.
type Relabeling struct {
	Labels    Labels
	Count     int
	RowCounts []int // nodes per label on the row side
	ColCounts []int // nodes per label on the column side
	Mapping   map[int]int
	Isolated  int // dense id of IsolatedLabel, or -1
}

// Relabel maps every label used on either side to a dense id, in ascending
// order of the original label values.
func Relabel(labels Labels) *Relabeling {
	seen := make(map[int]struct{})
	for _, l := range labels.Rows {
		seen[l] = struct{}{}
	}
	for _, l := range labels.Cols {
		seen[l] = struct{}{}
	}
	old := make([]int, 0, len(seen))
	for l := range seen {
		old = append(old, l)
	}
	sort.Ints(old)

	mapping := make(map[int]int, len(old))
	for id, l := range old {
		mapping[l] = id
	}

	r := &Relabeling{
		Labels: Labels{
			Rows: make([]int, len(labels.Rows)),
			Cols: make([]int, len(labels.Cols)),
		},
		Count:     len(old),
		RowCounts: make([]int, len(old)),
		ColCounts: make([]int, len(old)),
		Mapping:   mapping,
		Isolated:  -1,
	}
	if id, ok := mapping[IsolatedLabel]; ok {
		r.Isolated = id
	}
	for i, l := range labels.Rows {
		id := mapping[l]
		r.Labels.Rows[i] = id
		r.RowCounts[id]++
	}
	for j, l := range labels.Cols {
		id := mapping[l]
		r.Labels.Cols[j] = id
		r.ColCounts[id]++
	}
	return r
}

// Communities groups nodes by dense label and attaches each label's
// modularity contribution. Communities are ordered by ID.
func (r *Relabeling) Communities(contrib map[int]float64) []*Community {
	out := make([]*Community, r.Count)
	for id := range out {
		out[id] = &Community{ID: id, Contribution: contrib[id]}
	}
	for i, l := range r.Labels.Rows {
		out[l].Rows = append(out[l].Rows, i)
	}
	for j, l := range r.Labels.Cols {
		out[l].Cols = append(out[l].Cols, j)
	}
	return out
}
