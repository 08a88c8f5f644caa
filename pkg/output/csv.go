package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/dd0wney/cluso-flowgraph/pkg/community"
	"github.com/dd0wney/cluso-flowgraph/pkg/entitygraph"
	"github.com/dd0wney/cluso-flowgraph/pkg/ingest"
)

// Side names used in label files.
const (
	SideInternal = ingest.SideInternal
	SideExternal = ingest.SideExternal
)

// Score is one id,score row.
type Score struct {
	ID    string
	Value float64
}

// SortedScores turns a score map into rows ordered by id.
func SortedScores(scores map[string]float64) []Score {
	out := make([]Score, 0, len(scores))
	for id, v := range scores {
		out = append(out, Score{ID: id, Value: v})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

func writeCSV(w io.Writer, fill func(cw *csv.Writer) error) (retErr error) {
	cw := csv.NewWriter(w)
	defer func() {
		cw.Flush()
		if err := cw.Error(); err != nil && retErr == nil {
			retErr = fmt.Errorf("CSV writer flush error: %w", err)
		}
	}()
	if err := fill(cw); err != nil {
		return fmt.Errorf("failed to write CSV record: %w", err)
	}
	return nil
}

// WriteLabels writes nodeID,side,label for every row node, then every
// column node. Labels are dense community ids.
func WriteLabels(w io.Writer, rows, cols *ingest.Index, labels community.Labels) error {
	if len(labels.Rows) != rows.Len() || len(labels.Cols) != cols.Len() {
		return fmt.Errorf("labels %dx%d do not match index %dx%d",
			len(labels.Rows), len(labels.Cols), rows.Len(), cols.Len())
	}
	return writeCSV(w, func(cw *csv.Writer) error {
		for i, l := range labels.Rows {
			if err := cw.Write([]string{rows.Key(i), SideInternal, strconv.Itoa(l)}); err != nil {
				return err
			}
		}
		for j, l := range labels.Cols {
			if err := cw.Write([]string{cols.Key(j), SideExternal, strconv.Itoa(l)}); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteScores writes id,score rows in the given order.
func WriteScores(w io.Writer, scores []Score) error {
	return writeCSV(w, func(cw *csv.Writer) error {
		for _, s := range scores {
			if err := cw.Write([]string{s.ID, FormatDouble(s.Value)}); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteCommunitySummary writes label,modularity,members... for every
// non-empty community, by descending modularity contribution then label.
// Members list row keys before column keys.
func WriteCommunitySummary(w io.Writer, comms []*community.Community, rows, cols *ingest.Index) error {
	sorted := make([]*community.Community, 0, len(comms))
	for _, c := range comms {
		if len(c.Rows)+len(c.Cols) > 0 {
			sorted = append(sorted, c)
		}
	}
	sort.SliceStable(sorted, func(a, b int) bool {
		if sorted[a].Contribution != sorted[b].Contribution {
			return sorted[a].Contribution > sorted[b].Contribution
		}
		return sorted[a].ID < sorted[b].ID
	})

	return writeCSV(w, func(cw *csv.Writer) error {
		for _, c := range sorted {
			record := []string{strconv.Itoa(c.ID), FormatDouble(c.Contribution)}
			for _, i := range c.Rows {
				record = append(record, rows.Key(i))
			}
			for _, j := range c.Cols {
				record = append(record, cols.Key(j))
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteClusters writes id,children,members... for every cluster. Children
// are joined with spaces; member ids are mapped through key.
func WriteClusters(w io.Writer, clusters []entitygraph.Cluster, key func(id int) string) error {
	return writeCSV(w, func(cw *csv.Writer) error {
		for _, c := range clusters {
			children := make([]string, len(c.Children))
			for n, child := range c.Children {
				children[n] = strconv.Itoa(child)
			}
			record := []string{strconv.Itoa(c.ID), strings.Join(children, " ")}
			for _, m := range c.Members {
				record = append(record, key(m))
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		return nil
	})
}
