package matrix

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// newTestMatrix builds a 3x4 float matrix with a handful of cells
func newTestMatrix(t *testing.T) *Matrix[float64] {
	t.Helper()
	m := New[float64](3, 4, 0)
	cells := []Entry[float64]{
		{0, 0, 1}, {0, 2, 2}, {1, 1, 3}, {2, 2, 4}, {2, 3, 5},
	}
	for _, c := range cells {
		if err := m.Set(c.Row, c.Col, c.Weight); err != nil {
			t.Fatalf("Set(%d,%d) failed: %v", c.Row, c.Col, err)
		}
	}
	return m
}

func TestMatrix_GetDefault(t *testing.T) {
	m := New[int](2, 2, -1)
	if got := m.Get(0, 1); got != -1 {
		t.Errorf("expected default -1, got %d", got)
	}
	// Out of range reads are permissive
	if got := m.Get(10, 10); got != -1 {
		t.Errorf("expected default for out-of-range read, got %d", got)
	}
	if n := m.NeighborsOfRow(99); len(n) != 0 {
		t.Errorf("expected no neighbors for out-of-range row, got %v", n)
	}
	if n := m.ColList(-1); n != nil {
		t.Errorf("expected nil adjacency for negative column, got %v", n)
	}
}

func TestMatrix_SetOutOfRange(t *testing.T) {
	m := New[float64](2, 2, 0)
	if err := m.Set(2, 0, 1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange for row, got %v", err)
	}
	if err := m.Add(0, -1, 1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange for col, got %v", err)
	}
}

func TestMatrix_AddAccumulates(t *testing.T) {
	m := New[float64](1, 1, 0)
	for i := 0; i < 3; i++ {
		if err := m.Add(0, 0, 2.5); err != nil {
			t.Fatal(err)
		}
	}
	if got := m.Get(0, 0); got != 7.5 {
		t.Errorf("expected 7.5, got %f", got)
	}
}

func TestMatrix_CacheStates(t *testing.T) {
	m := newTestMatrix(t)
	if m.TransposeState() != Dirty || m.AdjacencyState() != Dirty {
		t.Fatalf("expected dirty caches after writes, got %s/%s", m.TransposeState(), m.AdjacencyState())
	}
	if _, err := m.ColNeighbors(2); !errors.Is(err, ErrStaleCache) {
		t.Errorf("expected ErrStaleCache from ColNeighbors, got %v", err)
	}
	if _, err := m.RowAdjacency(0); !errors.Is(err, ErrStaleCache) {
		t.Errorf("expected ErrStaleCache from RowAdjacency, got %v", err)
	}

	// Adjacency rebuild pulls the transpose along with it
	m.RebuildAdjacency()
	if m.TransposeState() != Clean || m.AdjacencyState() != Clean {
		t.Fatalf("expected clean caches, got %s/%s", m.TransposeState(), m.AdjacencyState())
	}
	col, err := m.ColNeighbors(2)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(col, []int{0, 2}) {
		t.Errorf("expected column 2 neighbors [0 2], got %v", col)
	}
	row, _ := m.RowAdjacency(2)
	if !reflect.DeepEqual(row, []int{2, 3}) {
		t.Errorf("expected row 2 adjacency [2 3], got %v", row)
	}

	m.Remove(0, 0)
	if m.TransposeState() != Dirty {
		t.Error("expected Remove to mark the transpose dirty")
	}
}

func TestMatrix_TransposeAgreement(t *testing.T) {
	m := newTestMatrix(t)
	m.RebuildTranspose()
	for i := 0; i < m.RowCap(); i++ {
		for j := 0; j < m.ColCap(); j++ {
			if m.TransposeGet(j, i) != m.Get(i, j) {
				t.Errorf("transpose mismatch at (%d,%d)", i, j)
			}
		}
	}
}

func TestMatrix_RemoveRowAndCol(t *testing.T) {
	m := newTestMatrix(t)
	m.Rebuild()

	m.RemoveRow(0)
	if m.Rows() != 2 {
		t.Errorf("expected 2 rows, got %d", m.Rows())
	}
	if m.Get(0, 2) != 0 || m.Has(0, 0) {
		t.Error("expected row 0 cells to be gone")
	}
	// Surviving indices are not renumbered
	if m.Get(2, 3) != 5 {
		t.Errorf("expected (2,3)=5 after RemoveRow, got %f", m.Get(2, 3))
	}

	m.RemoveCol(2)
	if m.Cols() != 3 {
		t.Errorf("expected 3 cols, got %d", m.Cols())
	}
	if m.Has(2, 2) {
		t.Error("expected (2,2) removed with column 2")
	}
	m.Rebuild()
	if n := m.NeighborsOfCol(2); len(n) != 0 {
		t.Errorf("expected no neighbors for removed column, got %v", n)
	}
	if n := m.NeighborsOfRow(2); !reflect.DeepEqual(n, []int{3}) {
		t.Errorf("expected row 2 neighbors [3], got %v", n)
	}
	if m.Len() != 2 {
		t.Errorf("expected 2 cells left, got %d", m.Len())
	}
}

func TestMatrix_Sums(t *testing.T) {
	m := newTestMatrix(t)
	if s := m.Sum(); s != 15 {
		t.Errorf("expected sum 15, got %f", s)
	}
	if rs := m.RowSums(); !reflect.DeepEqual(rs, []float64{3, 3, 9}) {
		t.Errorf("unexpected row sums %v", rs)
	}
	if cs := m.ColSums(); !reflect.DeepEqual(cs, []float64{1, 3, 6, 5}) {
		t.Errorf("unexpected col sums %v", cs)
	}
}

func TestMatrix_EachOrdered(t *testing.T) {
	m := newTestMatrix(t)
	var seen [][2]int
	m.Each(func(i, j int, _ float64) bool {
		seen = append(seen, [2]int{i, j})
		return true
	})
	want := [][2]int{{0, 0}, {0, 2}, {1, 1}, {2, 2}, {2, 3}}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("expected row-major order %v, got %v", want, seen)
	}

	count := 0
	m.Each(func(int, int, float64) bool {
		count++
		return count < 2
	})
	if count != 2 {
		t.Errorf("expected early stop after 2 cells, got %d", count)
	}
}

func TestMatrix_TransposeCloneMap(t *testing.T) {
	m := newTestMatrix(t)

	tr := m.Transpose()
	if tr.RowCap() != 4 || tr.ColCap() != 3 {
		t.Fatalf("expected 4x3 transpose, got %dx%d", tr.RowCap(), tr.ColCap())
	}
	if tr.Get(3, 2) != 5 {
		t.Errorf("expected transposed (3,2)=5, got %f", tr.Get(3, 2))
	}

	c := m.Clone()
	c.Map(func(_, _ int, w float64) float64 { return w * 2 })
	if c.Get(2, 3) != 10 {
		t.Errorf("expected mapped clone value 10, got %f", c.Get(2, 3))
	}
	if m.Get(2, 3) != 5 {
		t.Errorf("expected original untouched, got %f", m.Get(2, 3))
	}

	counts := Convert(m, func(w float64) int { return int(w) })
	if counts.Get(1, 1) != 3 {
		t.Errorf("expected converted value 3, got %d", counts.Get(1, 1))
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	m := newTestMatrix(t)
	m.RemoveRow(1)

	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, m); err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}
	got, err := ReadSnapshot[float64](&buf)
	if err != nil {
		t.Fatalf("ReadSnapshot failed: %v", err)
	}
	if got.Rows() != m.Rows() || got.RowCap() != m.RowCap() {
		t.Errorf("expected rows %d/%d, got %d/%d", m.Rows(), m.RowCap(), got.Rows(), got.RowCap())
	}
	if !reflect.DeepEqual(got.Entries(), m.Entries()) {
		t.Errorf("entries differ: %v vs %v", got.Entries(), m.Entries())
	}
	if got.TransposeState() != Clean || got.AdjacencyState() != Clean {
		t.Error("expected clean caches after load")
	}
}

func TestSnapshot_OpenMapped(t *testing.T) {
	m := newTestMatrix(t)
	path := filepath.Join(t.TempDir(), "day.fgmx")
	if err := SaveSnapshot(path, m); err != nil {
		t.Fatal(err)
	}
	got, err := OpenSnapshot[float64](path)
	if err != nil {
		t.Fatalf("OpenSnapshot failed: %v", err)
	}
	if got.Get(2, 3) != 5 || got.Len() != m.Len() {
		t.Errorf("unexpected mapped snapshot contents: %v", got.Entries())
	}
}

func TestSnapshot_Corrupt(t *testing.T) {
	m := newTestMatrix(t)
	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, m); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	data[len(data)-1] ^= 0xFF

	if _, err := ReadSnapshot[float64](bytes.NewReader(data)); !errors.Is(err, ErrSnapshotCorrupt) {
		t.Errorf("expected ErrSnapshotCorrupt, got %v", err)
	}
}

func TestSnapshot_CorruptHeader(t *testing.T) {
	m := newTestMatrix(t)
	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, m); err != nil {
		t.Fatal(err)
	}
	payloadLenOffset := 40

	tests := []struct {
		name   string
		mutate func(data []byte)
	}{
		{"bad magic with huge length", func(data []byte) {
			data[0] ^= 0xFF
			binary.BigEndian.PutUint32(data[payloadLenOffset:], math.MaxUint32)
		}},
		{"bad version", func(data []byte) {
			binary.BigEndian.PutUint16(data[4:], SnapshotVersion+1)
		}},
		{"length beyond data", func(data []byte) {
			binary.BigEndian.PutUint32(data[payloadLenOffset:], math.MaxUint32)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := append([]byte(nil), buf.Bytes()...)
			tt.mutate(data)

			if _, err := ReadSnapshot[float64](bytes.NewReader(data)); !errors.Is(err, ErrSnapshotCorrupt) {
				t.Errorf("ReadSnapshot: expected ErrSnapshotCorrupt, got %v", err)
			}

			path := filepath.Join(t.TempDir(), "bad.snap")
			if err := os.WriteFile(path, data, 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := OpenSnapshot[float64](path); !errors.Is(err, ErrSnapshotCorrupt) {
				t.Errorf("OpenSnapshot: expected ErrSnapshotCorrupt, got %v", err)
			}
		})
	}
}
