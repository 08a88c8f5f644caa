package output

import (
	"io"
	"math"

	"github.com/dd0wney/cluso-flowgraph/pkg/entitygraph"
)

// WriteMatches writes one block per match: the grouping key, the
// similarity as a whole percentage, the member entity names, the grouping's
// lower-node keys and a blank line.
func WriteMatches(w io.Writer, matches []entitygraph.Match, entityName, lowerKey func(id int) string) error {
	lw := &lineWriter{w: w}
	for _, m := range matches {
		lw.line("Internal Label = %s", m.Grouping)
		lw.line("Match = %d%%", int(math.RoundToEven(m.Similarity*100)))
		for _, e := range m.Cluster.Members {
			lw.line("%s", entityName(e))
		}
		for _, j := range m.Members {
			lw.line("%s", lowerKey(j))
		}
		lw.line("")
	}
	return lw.err
}
