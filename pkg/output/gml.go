package output

import (
	"fmt"
	"io"
	"math"

	"github.com/dd0wney/cluso-flowgraph/pkg/entitygraph"
	"github.com/dd0wney/cluso-flowgraph/pkg/matrix"
)

type lineWriter struct {
	w   io.Writer
	err error
}

func (lw *lineWriter) line(format string, args ...any) {
	if lw.err != nil {
		return
	}
	_, lw.err = fmt.Fprintf(lw.w, format+"\n", args...)
}

// WriteGML writes a community summary graph. summary is label x label on
// the two sides; rowCounts and colCounts give the nodes per label. Only
// labels with nodes on a side become nodes of that side. Node weights and
// edge values are ln(w+1); ids are 1-based with column labels offset by the
// number of row labels.
func WriteGML(w io.Writer, summary *matrix.Matrix[float64], rowCounts, colCounts []int) error {
	rowIDs := make(map[int]int)
	var rowLabels, colLabels []int
	for l, n := range rowCounts {
		if n > 0 {
			rowIDs[l] = len(rowLabels)
			rowLabels = append(rowLabels, l)
		}
	}
	colIDs := make(map[int]int)
	for l, n := range colCounts {
		if n > 0 {
			colIDs[l] = len(colLabels)
			colLabels = append(colLabels, l)
		}
	}

	lw := &lineWriter{w: w}
	lw.line("graph")
	lw.line("[")
	for n, l := range rowLabels {
		writeBipartiteNode(lw, n+1, "int", l, rowCounts[l], 0)
	}
	for n, l := range colLabels {
		writeBipartiteNode(lw, n+1+len(rowLabels), "ext", l, colCounts[l], 1)
	}
	lw.line("")

	for _, e := range summary.Entries() {
		src, okRow := rowIDs[e.Row]
		dst, okCol := colIDs[e.Col]
		if !okRow || !okCol {
			return fmt.Errorf("summary cell (%d,%d) references a label without nodes", e.Row, e.Col)
		}
		lw.line("edge")
		lw.line("[")
		lw.line("source %d", src+1)
		lw.line("target %d", dst+1+len(rowLabels))
		lw.line("value %s", FormatDouble(math.Log(e.Weight+1)))
		lw.line("]")
	}
	lw.line("]")
	return lw.err
}

func writeBipartiteNode(lw *lineWriter, id int, side string, label, count, sideFlag int) {
	lw.line("node")
	lw.line("[")
	lw.line("id %d", id)
	lw.line("label %s%d", side, label)
	lw.line("Weight \"%s\"", FormatDouble(math.Log(float64(count)+1)))
	lw.line("Side %d", sideFlag)
	lw.line("]")
}

// WriteEntityGML writes the significance graph with quoted entity keys as
// ids. name maps an entity key to its display label. The closing bracket
// is not followed by a newline.
func WriteEntityGML(w io.Writer, g *entitygraph.Graph, name func(key string) string) error {
	lw := &lineWriter{w: w}
	lw.line("graph")
	lw.line("[")
	for _, key := range g.Entities.Keys() {
		lw.line("node")
		lw.line("[")
		lw.line("id  %q", key)
		lw.line("label %q", name(key))
		lw.line("]")
	}
	for _, e := range g.Edges {
		lw.line("edge")
		lw.line("[")
		lw.line("source %q", g.Entities.Key(e.From))
		lw.line("target %q", g.Entities.Key(e.To))
		lw.line("]")
	}
	if lw.err != nil {
		return lw.err
	}
	_, err := io.WriteString(w, "]")
	return err
}
