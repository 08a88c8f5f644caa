package matrix

import (
	"fmt"
	"sort"
)

// New creates an empty rows x cols matrix whose absent cells read as nullVal.
func New[W Weight](rows, cols int, nullVal W) *Matrix[W] {
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}
	return &Matrix[W]{
		rows:           rows,
		cols:           cols,
		rowCap:         rows,
		colCap:         cols,
		nullVal:        nullVal,
		cells:          make(map[uint64]W),
		rowKeys:        make([]map[int]struct{}, rows),
		colKeys:        make([]map[int]struct{}, cols),
		transposeState: Clean,
		rowAdj:         make([][]int, rows),
		colAdj:         make([][]int, cols),
		adjacencyState: Clean,
	}
}

func pack(i, j int) uint64 {
	return uint64(uint32(i))<<32 | uint64(uint32(j))
}

func unpack(key uint64) (int, int) {
	return int(uint32(key >> 32)), int(uint32(key))
}

// Rows returns the current row count.
func (m *Matrix[W]) Rows() int { return m.rows }

// Cols returns the current column count.
func (m *Matrix[W]) Cols() int { return m.cols }

// RowCap returns the size of the row index space.
func (m *Matrix[W]) RowCap() int { return m.rowCap }

// ColCap returns the size of the column index space.
func (m *Matrix[W]) ColCap() int { return m.colCap }

// Default returns the value reported for absent cells.
func (m *Matrix[W]) Default() W { return m.nullVal }

// Len returns the number of stored cells.
func (m *Matrix[W]) Len() int { return len(m.cells) }

// TransposeState reports the state of the column-side cache.
func (m *Matrix[W]) TransposeState() CacheState { return m.transposeState }

// AdjacencyState reports the state of the flat neighbor arrays.
func (m *Matrix[W]) AdjacencyState() CacheState { return m.adjacencyState }

func (m *Matrix[W]) rowInRange(i int) bool { return i >= 0 && i < m.rowCap }
func (m *Matrix[W]) colInRange(j int) bool { return j >= 0 && j < m.colCap }

func (m *Matrix[W]) checkIndex(i, j int) error {
	if !m.rowInRange(i) {
		return fmt.Errorf("row %d not in [0,%d): %w", i, m.rowCap, ErrIndexOutOfRange)
	}
	if !m.colInRange(j) {
		return fmt.Errorf("col %d not in [0,%d): %w", j, m.colCap, ErrIndexOutOfRange)
	}
	return nil
}

func (m *Matrix[W]) markDirty() {
	m.transposeState = Dirty
	m.adjacencyState = Dirty
}

// Get returns the weight at (i, j), or the default when absent or out of range.
func (m *Matrix[W]) Get(i, j int) W {
	if !m.rowInRange(i) || !m.colInRange(j) {
		return m.nullVal
	}
	if v, ok := m.cells[pack(i, j)]; ok {
		return v
	}
	return m.nullVal
}

// Has reports whether (i, j) holds a stored value.
func (m *Matrix[W]) Has(i, j int) bool {
	if !m.rowInRange(i) || !m.colInRange(j) {
		return false
	}
	_, ok := m.cells[pack(i, j)]
	return ok
}

// Set stores w at (i, j).
func (m *Matrix[W]) Set(i, j int, w W) error {
	if err := m.checkIndex(i, j); err != nil {
		return err
	}
	m.cells[pack(i, j)] = w
	if m.rowKeys[i] == nil {
		m.rowKeys[i] = make(map[int]struct{})
	}
	m.rowKeys[i][j] = struct{}{}
	m.markDirty()
	return nil
}

// Add increments (i, j) by w, starting from the default when absent.
func (m *Matrix[W]) Add(i, j int, w W) error {
	return m.Set(i, j, m.Get(i, j)+w)
}

// Remove deletes the cell at (i, j). Removing an absent cell is a no-op.
func (m *Matrix[W]) Remove(i, j int) {
	if !m.rowInRange(i) || !m.colInRange(j) {
		return
	}
	key := pack(i, j)
	if _, ok := m.cells[key]; !ok {
		return
	}
	delete(m.cells, key)
	delete(m.rowKeys[i], j)
	if m.colKeys[j] != nil {
		delete(m.colKeys[j], i)
	}
	m.markDirty()
}

// RemoveRow drops every cell in row i and shrinks the row count by one.
// Surviving rows keep their indices.
func (m *Matrix[W]) RemoveRow(i int) {
	if !m.rowInRange(i) {
		return
	}
	for j := range m.rowKeys[i] {
		delete(m.cells, pack(i, j))
		if m.colKeys[j] != nil {
			delete(m.colKeys[j], i)
		}
	}
	m.rowKeys[i] = nil
	m.rows--
	m.markDirty()
}

// RemoveCol drops every cell in column j and shrinks the column count by one.
// Surviving columns keep their indices. Works from the primary row sets, so
// the transpose does not need to be clean.
func (m *Matrix[W]) RemoveCol(j int) {
	if !m.colInRange(j) {
		return
	}
	for i, keys := range m.rowKeys {
		if _, ok := keys[j]; ok {
			delete(keys, j)
			delete(m.cells, pack(i, j))
		}
	}
	m.colKeys[j] = nil
	m.cols--
	m.markDirty()
}

// NeighborsOfRow returns the columns stored in row i, in ascending order.
// Reads the primary data and is always current.
func (m *Matrix[W]) NeighborsOfRow(i int) []int {
	if !m.rowInRange(i) {
		return nil
	}
	return sortedKeys(m.rowKeys[i])
}

// NeighborsOfCol returns the rows stored in column j as of the last
// RebuildTranspose, in ascending order.
func (m *Matrix[W]) NeighborsOfCol(j int) []int {
	if !m.colInRange(j) {
		return nil
	}
	return sortedKeys(m.colKeys[j])
}

// ColNeighbors is NeighborsOfCol that refuses to serve a stale transpose.
func (m *Matrix[W]) ColNeighbors(j int) ([]int, error) {
	if m.transposeState != Clean {
		return nil, fmt.Errorf("col %d neighbors: transpose %s: %w", j, m.transposeState, ErrStaleCache)
	}
	return m.NeighborsOfCol(j), nil
}

// RowList returns the flat neighbor array of row i from the last
// RebuildAdjacency. The slice is shared and must not be modified.
func (m *Matrix[W]) RowList(i int) []int {
	if !m.rowInRange(i) {
		return nil
	}
	return m.rowAdj[i]
}

// ColList returns the flat neighbor array of column j from the last
// RebuildAdjacency. The slice is shared and must not be modified.
func (m *Matrix[W]) ColList(j int) []int {
	if !m.colInRange(j) {
		return nil
	}
	return m.colAdj[j]
}

// RowAdjacency is RowList that refuses to serve stale arrays.
func (m *Matrix[W]) RowAdjacency(i int) ([]int, error) {
	if m.adjacencyState != Clean {
		return nil, fmt.Errorf("row %d adjacency: arrays %s: %w", i, m.adjacencyState, ErrStaleCache)
	}
	return m.RowList(i), nil
}

// ColAdjacency is ColList that refuses to serve stale arrays.
func (m *Matrix[W]) ColAdjacency(j int) ([]int, error) {
	if m.adjacencyState != Clean {
		return nil, fmt.Errorf("col %d adjacency: arrays %s: %w", j, m.adjacencyState, ErrStaleCache)
	}
	return m.ColList(j), nil
}

// TransposeGet reads (i, j) through the column-side cache. It returns the
// default when the transpose does not list i under column j.
func (m *Matrix[W]) TransposeGet(j, i int) W {
	if !m.colInRange(j) {
		return m.nullVal
	}
	if _, ok := m.colKeys[j][i]; !ok {
		return m.nullVal
	}
	return m.Get(i, j)
}

// RebuildTranspose recomputes the column key sets from the row key sets.
func (m *Matrix[W]) RebuildTranspose() {
	m.transposeState = Rebuilding
	for j := range m.colKeys {
		m.colKeys[j] = nil
	}
	for i, keys := range m.rowKeys {
		for j := range keys {
			if m.colKeys[j] == nil {
				m.colKeys[j] = make(map[int]struct{})
			}
			m.colKeys[j][i] = struct{}{}
		}
	}
	m.transposeState = Clean
}

// RebuildAdjacency materializes sorted neighbor arrays for every row and
// column. A dirty transpose is rebuilt first so the column arrays agree with
// the primary data.
func (m *Matrix[W]) RebuildAdjacency() {
	if m.transposeState != Clean {
		m.RebuildTranspose()
	}
	m.adjacencyState = Rebuilding
	for i, keys := range m.rowKeys {
		m.rowAdj[i] = sortedKeys(keys)
	}
	for j, keys := range m.colKeys {
		m.colAdj[j] = sortedKeys(keys)
	}
	m.adjacencyState = Clean
}

// Rebuild brings both caches up to date.
func (m *Matrix[W]) Rebuild() {
	m.RebuildTranspose()
	m.RebuildAdjacency()
}

func sortedKeys(set map[int]struct{}) []int {
	if len(set) == 0 {
		return nil
	}
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
