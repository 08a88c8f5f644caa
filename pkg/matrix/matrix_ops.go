package matrix

import "sort"

// Entries returns every stored cell ordered by row, then column.
func (m *Matrix[W]) Entries() []Entry[W] {
	keys := make([]uint64, 0, len(m.cells))
	for k := range m.cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })

	out := make([]Entry[W], len(keys))
	for n, k := range keys {
		i, j := unpack(k)
		out[n] = Entry[W]{Row: i, Col: j, Weight: m.cells[k]}
	}
	return out
}

// Each calls fn for every stored cell in row-major order. Iteration stops
// early when fn returns false.
func (m *Matrix[W]) Each(fn func(i, j int, w W) bool) {
	for _, e := range m.Entries() {
		if !fn(e.Row, e.Col, e.Weight) {
			return
		}
	}
}

// Sum returns the total of all stored weights.
func (m *Matrix[W]) Sum() float64 {
	var total float64
	for _, w := range m.cells {
		total += float64(w)
	}
	return total
}

// RowSums returns the weighted degree of every row.
func (m *Matrix[W]) RowSums() []float64 {
	sums := make([]float64, m.rowCap)
	for k, w := range m.cells {
		i, _ := unpack(k)
		sums[i] += float64(w)
	}
	return sums
}

// ColSums returns the weighted degree of every column.
func (m *Matrix[W]) ColSums() []float64 {
	sums := make([]float64, m.colCap)
	for k, w := range m.cells {
		_, j := unpack(k)
		sums[j] += float64(w)
	}
	return sums
}

// Transpose returns a new cols x rows matrix with every cell mirrored. Both
// caches of the result are rebuilt.
func (m *Matrix[W]) Transpose() *Matrix[W] {
	t := New[W](m.colCap, m.rowCap, m.nullVal)
	for k, w := range m.cells {
		i, j := unpack(k)
		_ = t.Set(j, i, w)
	}
	t.rows, t.cols = m.cols, m.rows
	t.Rebuild()
	return t
}

// Clone returns a deep copy. Cache states carry over.
func (m *Matrix[W]) Clone() *Matrix[W] {
	c := New[W](m.rowCap, m.colCap, m.nullVal)
	c.rows, c.cols = m.rows, m.cols
	for k, w := range m.cells {
		c.cells[k] = w
	}
	for i, keys := range m.rowKeys {
		c.rowKeys[i] = cloneSet(keys)
	}
	for j, keys := range m.colKeys {
		c.colKeys[j] = cloneSet(keys)
	}
	for i, adj := range m.rowAdj {
		c.rowAdj[i] = append([]int(nil), adj...)
	}
	for j, adj := range m.colAdj {
		c.colAdj[j] = append([]int(nil), adj...)
	}
	c.transposeState = m.transposeState
	c.adjacencyState = m.adjacencyState
	return c
}

// Map replaces every stored weight with fn(w) in place. The key structure is
// unchanged, so caches keep their state.
func (m *Matrix[W]) Map(fn func(i, j int, w W) W) {
	for k, w := range m.cells {
		i, j := unpack(k)
		m.cells[k] = fn(i, j, w)
	}
}

// Convert copies m into a matrix of another weight type.
func Convert[To, From Weight](m *Matrix[From], fn func(From) To) *Matrix[To] {
	out := New[To](m.rowCap, m.colCap, fn(m.nullVal))
	out.rows, out.cols = m.rows, m.cols
	for k, w := range m.cells {
		i, j := unpack(k)
		_ = out.Set(i, j, fn(w))
	}
	out.Rebuild()
	return out
}

func cloneSet(set map[int]struct{}) map[int]struct{} {
	if set == nil {
		return nil
	}
	out := make(map[int]struct{}, len(set))
	for k := range set {
		out[k] = struct{}{}
	}
	return out
}
