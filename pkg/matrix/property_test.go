package matrix

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

const (
	propRows = 8
	propCols = 6
)

// buildFromCodes fills a propRows x propCols matrix from encoded cell positions.
// Repeated codes accumulate.
func buildFromCodes(codes []int) *Matrix[float64] {
	m := New[float64](propRows, propCols, 0)
	for n, code := range codes {
		_ = m.Add(code/propCols, code%propCols, float64(n%5+1))
	}
	return m
}

// TestMatrixInvariants checks cache agreement after arbitrary mutation sequences
func TestMatrixInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	cellCode := gen.IntRange(0, propRows*propCols-1)

	properties.Property("transpose agrees with primary after rebuild", prop.ForAll(
		func(codes []int, removals []int) bool {
			m := buildFromCodes(codes)
			for _, code := range removals {
				m.Remove(code/propCols, code%propCols)
			}
			m.RebuildTranspose()
			for i := 0; i < propRows; i++ {
				for j := 0; j < propCols; j++ {
					if m.TransposeGet(j, i) != m.Get(i, j) {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(cellCode),
		gen.SliceOf(cellCode),
	))

	properties.Property("adjacency arrays match neighbor sets without duplicates", prop.ForAll(
		func(codes []int, dropRow, dropCol int) bool {
			m := buildFromCodes(codes)
			m.RemoveRow(dropRow)
			m.RemoveCol(dropCol)
			m.RebuildAdjacency()

			for i := 0; i < propRows; i++ {
				if !sameSet(m.RowList(i), m.rowKeys[i]) {
					return false
				}
			}
			for j := 0; j < propCols; j++ {
				if !sameSet(m.ColList(j), m.colKeys[j]) {
					return false
				}
				for _, i := range m.ColList(j) {
					if !m.Has(i, j) {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(cellCode),
		gen.IntRange(0, propRows-1),
		gen.IntRange(0, propCols-1),
	))

	properties.Property("row sums equal column sums in total", prop.ForAll(
		func(codes []int) bool {
			m := buildFromCodes(codes)
			var rs, cs float64
			for _, v := range m.RowSums() {
				rs += v
			}
			for _, v := range m.ColSums() {
				cs += v
			}
			return rs == cs && rs == m.Sum()
		},
		gen.SliceOf(cellCode),
	))

	properties.TestingRun(t)
}

func sameSet(list []int, set map[int]struct{}) bool {
	if len(list) != len(set) {
		return false
	}
	seen := make(map[int]bool, len(list))
	for _, v := range list {
		if seen[v] {
			return false
		}
		seen[v] = true
		if _, ok := set[v]; !ok {
			return false
		}
	}
	return true
}
