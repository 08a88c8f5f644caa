package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dd0wney/cluso-flowgraph/pkg/matrix"
)

// Side names of key tables and label files.
const (
	SideInternal = "int"
	SideExternal = "ext"
)

// SnapshotKeysPath returns the key table stored next to a matrix snapshot:
// "out/flows.snap" pairs with "out/flows.keys.csv".
func SnapshotKeysPath(snapshot string) string {
	return strings.TrimSuffix(snapshot, filepath.Ext(snapshot)) + ".keys.csv"
}

// WriteKeys writes the row then column keys as `side,key` lines in id order.
func (fm *FlowMatrix) WriteKeys(w io.Writer) (retErr error) {
	cw := csv.NewWriter(w)
	defer func() {
		cw.Flush()
		if err := cw.Error(); err != nil && retErr == nil {
			retErr = fmt.Errorf("CSV writer flush error: %w", err)
		}
	}()
	for _, k := range fm.Rows.Keys() {
		if err := cw.Write([]string{SideInternal, k}); err != nil {
			return fmt.Errorf("failed to write key: %w", err)
		}
	}
	for _, k := range fm.Cols.Keys() {
		if err := cw.Write([]string{SideExternal, k}); err != nil {
			return fmt.Errorf("failed to write key: %w", err)
		}
	}
	return nil
}

// KeyIndexes are the row and column indexes of a stored matrix.
type KeyIndexes struct {
	Rows *Index
	Cols *Index
}

// ReadKeyIndexes parses a table written by WriteKeys. Ids follow line
// order per side; a repeated key fails the read.
func ReadKeyIndexes(r io.Reader, source string) (*KeyIndexes, error) {
	keys := &KeyIndexes{Rows: NewIndex(), Cols: NewIndex()}
	err := eachRecord(r, source, false, func(line int, fields []string) error {
		if len(fields) < 2 {
			return &RecordError{Source: source, Line: line, Field: -1,
				Reason: fmt.Sprintf("expected 2 fields, got %d", len(fields))}
		}
		var idx *Index
		switch fields[0] {
		case SideInternal:
			idx = keys.Rows
		case SideExternal:
			idx = keys.Cols
		default:
			return &RecordError{Source: source, Line: line, Field: 0,
				Reason: fmt.Sprintf("unknown side %q", fields[0])}
		}
		if _, dup := idx.Lookup(fields[1]); dup {
			return &RecordError{Source: source, Line: line, Field: 1,
				Reason: fmt.Sprintf("duplicate key %q", fields[1])}
		}
		idx.Add(fields[1])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// LoadSnapshot reads a flow matrix saved with matrix.WriteSnapshot together
// with its key table. The key counts must match the matrix dimensions.
func LoadSnapshot(path string) (*FlowMatrix, error) {
	m, err := matrix.OpenSnapshot[float64](path)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", path, err)
	}
	keys, err := OpenTable(SnapshotKeysPath(path), ReadKeyIndexes)
	if err != nil {
		return nil, err
	}
	if keys.Rows.Len() != m.RowCap() || keys.Cols.Len() != m.ColCap() {
		return nil, fmt.Errorf("%s: %d x %d keys for a %d x %d matrix: %w",
			path, keys.Rows.Len(), keys.Cols.Len(), m.RowCap(), m.ColCap(), matrix.ErrSnapshotCorrupt)
	}
	return &FlowMatrix{Matrix: m, Rows: keys.Rows, Cols: keys.Cols}, nil
}
