// Package ingest reads flow records and the side tables used to resolve and
// seed them, and materializes them into sparse matrices.
package ingest

import (
	"errors"
	"fmt"
)

// ErrMalformedRecord is wrapped by every RecordError.
var ErrMalformedRecord = errors.New("malformed record")

// RecordError pinpoints a bad input line. Ingestion stops at the first one.
type RecordError struct {
	Source string // file name or other label of the input
	Line   int    // 1-based, header included
	Field  int    // 0-based field index, -1 when the whole record is bad
	Reason string
	Err    error // underlying parse error, if any
}

func (e *RecordError) Error() string {
	msg := fmt.Sprintf("%s:%d", e.Source, e.Line)
	if e.Field >= 0 {
		msg += fmt.Sprintf(": field %d", e.Field)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both ErrMalformedRecord and the underlying parse error.
func (e *RecordError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedRecord}
	}
	return []error{ErrMalformedRecord, e.Err}
}

// Flow field positions in the input edge list.
const (
	FieldInternal   = 0
	FieldExternal   = 1
	FieldSrcService = 2
	FieldDstService = 3
	FieldDay        = 4
	FieldWeight     = 6

	// MinFlowFields is the shortest acceptable flow record.
	MinFlowFields = FieldWeight + 1
)

// Flow is one edge-list record.
type Flow struct {
	Internal   string
	External   string
	SrcService string
	DstService string
	Day        string
	Weight     float64
}

// Resolver maps an external key onto the entity it belongs to.
type Resolver interface {
	Resolve(external string) (entity string, ok bool)
}

// Identity resolves every key to itself.
type Identity struct{}

// Resolve returns key unchanged.
func (Identity) Resolve(key string) (string, bool) { return key, true }
