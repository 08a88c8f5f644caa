package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// newReader returns a lenient CSV reader. Field counts are checked by the
// callers so that short records produce a RecordError.
func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true
	reader.TrimLeadingSpace = true
	return reader
}

// eachRecord calls fn for every record after the optional header, with
// fields trimmed. Parse failures become a RecordError.
func eachRecord(r io.Reader, source string, skipHeader bool, fn func(line int, fields []string) error) error {
	reader := newReader(r)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return &RecordError{Source: source, Line: parseErr.Line, Field: -1, Reason: "unparseable record", Err: parseErr.Err}
			}
			return fmt.Errorf("reading %s: %w", source, err)
		}
		line, _ := reader.FieldPos(0)
		if skipHeader {
			skipHeader = false
			continue
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		if err := fn(line, record); err != nil {
			return err
		}
	}
}

// ReadFlows parses an edge list. The first line is a header. Any record
// with fewer than MinFlowFields fields or a weight that is not a finite
// non-negative number fails the whole read.
func ReadFlows(r io.Reader, source string) ([]Flow, error) {
	var flows []Flow
	err := eachRecord(r, source, true, func(line int, fields []string) error {
		if len(fields) < MinFlowFields {
			return &RecordError{
				Source: source,
				Line:   line,
				Field:  -1,
				Reason: fmt.Sprintf("expected at least %d fields, got %d", MinFlowFields, len(fields)),
			}
		}
		weight, err := strconv.ParseFloat(fields[FieldWeight], 64)
		if err != nil {
			return &RecordError{
				Source: source,
				Line:   line,
				Field:  FieldWeight,
				Reason: fmt.Sprintf("weight %q is not numeric", fields[FieldWeight]),
				Err:    err,
			}
		}
		if math.IsNaN(weight) || math.IsInf(weight, 0) || weight < 0 {
			return &RecordError{
				Source: source,
				Line:   line,
				Field:  FieldWeight,
				Reason: fmt.Sprintf("weight %q must be a finite non-negative number", fields[FieldWeight]),
			}
		}
		flows = append(flows, Flow{
			Internal:   fields[FieldInternal],
			External:   fields[FieldExternal],
			SrcService: fields[FieldSrcService],
			DstService: fields[FieldDstService],
			Day:        fields[FieldDay],
			Weight:     weight,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return flows, nil
}

// ReadFlowFiles reads and concatenates several edge lists.
func ReadFlowFiles(paths ...string) ([]Flow, error) {
	var all []Flow
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open flows: %w", err)
		}
		flows, err := ReadFlows(f, path)
		f.Close()
		if err != nil {
			return nil, err
		}
		all = append(all, flows...)
	}
	return all, nil
}
