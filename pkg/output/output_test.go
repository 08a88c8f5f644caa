package output

import (
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-flowgraph/pkg/community"
	"github.com/dd0wney/cluso-flowgraph/pkg/entitygraph"
	"github.com/dd0wney/cluso-flowgraph/pkg/ingest"
	"github.com/dd0wney/cluso-flowgraph/pkg/matrix"
)

func TestFormatDouble(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{math.Copysign(0, -1), "-0.0"},
		{1, "1.0"},
		{-3, "-3.0"},
		{0.001, "0.001"},
		{math.Log(2), "0.6931471805599453"},
		{1234567, "1234567.0"},
		{1e7, "1.0E7"},
		{1.5e7, "1.5E7"},
		{1e-4, "1.0E-4"},
		{-2.5e-5, "-2.5E-5"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDouble(tt.in), "FormatDouble(%v)", tt.in)
	}
}

func TestWriteLabels(t *testing.T) {
	rows := ingest.NewSortedIndex([]string{"10.0.0.1", "10.0.0.2"})
	cols := ingest.NewSortedIndex([]string{"8.8.8.8"})
	labels := community.Labels{Rows: []int{0, 1}, Cols: []int{1}}

	var buf bytes.Buffer
	require.NoError(t, WriteLabels(&buf, rows, cols, labels))
	assert.Equal(t, "10.0.0.1,int,0\n10.0.0.2,int,1\n8.8.8.8,ext,1\n", buf.String())
}

func TestWriteLabels_SizeMismatch(t *testing.T) {
	rows := ingest.NewSortedIndex([]string{"a"})
	cols := ingest.NewSortedIndex(nil)
	err := WriteLabels(&bytes.Buffer{}, rows, cols, community.Labels{Rows: []int{0, 1}})
	assert.Error(t, err)
}

func TestWriteScores(t *testing.T) {
	scores := SortedScores(map[string]float64{"b": 0.5, "a": 1, "c": 1e-4})

	var buf bytes.Buffer
	require.NoError(t, WriteScores(&buf, scores))
	assert.Equal(t, "a,1.0\nb,0.5\nc,1.0E-4\n", buf.String())
}

func TestWriteCommunitySummary(t *testing.T) {
	rows := ingest.NewSortedIndex([]string{"h1", "h2"})
	cols := ingest.NewSortedIndex([]string{"x1", "x2"})
	comms := []*community.Community{
		{ID: 0, Rows: []int{0}, Cols: []int{0}, Contribution: 0.25},
		{ID: 1, Contribution: 0.9},
		{ID: 2, Rows: []int{1}, Cols: []int{1}, Contribution: 0.5},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCommunitySummary(&buf, comms, rows, cols))
	assert.Equal(t, "2,0.5,h2,x2\n0,0.25,h1,x1\n", buf.String())
}

func TestWriteGML(t *testing.T) {
	summary := matrix.New(2, 2, 0.0)
	require.NoError(t, summary.Set(0, 1, 1.0))

	var buf bytes.Buffer
	require.NoError(t, WriteGML(&buf, summary, []int{1, 0}, []int{0, 1}))

	want := strings.Join([]string{
		"graph",
		"[",
		"node", "[", "id 1", "label int0", `Weight "0.6931471805599453"`, "Side 0", "]",
		"node", "[", "id 2", "label ext1", `Weight "0.6931471805599453"`, "Side 1", "]",
		"",
		"edge", "[", "source 1", "target 2", "value 0.6931471805599453", "]",
		"]",
	}, "\n") + "\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteGML_UnknownLabel(t *testing.T) {
	summary := matrix.New(2, 2, 0.0)
	require.NoError(t, summary.Set(1, 1, 1.0))

	err := WriteGML(&bytes.Buffer{}, summary, []int{1, 0}, []int{0, 1})
	assert.Error(t, err)
}

func TestWriteEntityGML(t *testing.T) {
	g := &entitygraph.Graph{
		Entities: ingest.NewSortedIndex([]string{"asn1", "asn2", "asn3"}),
		Edges:    []entitygraph.Edge{{From: 0, To: 1, Probability: 1e-6, Weight: 1 - 1e-6}},
	}
	names := map[string]string{"asn1": "One", "asn2": "Two"}

	var buf bytes.Buffer
	require.NoError(t, WriteEntityGML(&buf, g, func(key string) string {
		if n, ok := names[key]; ok {
			return n
		}
		return key
	}))

	want := strings.Join([]string{
		"graph",
		"[",
		"node", "[", `id  "asn1"`, `label "One"`, "]",
		"node", "[", `id  "asn2"`, `label "Two"`, "]",
		"node", "[", `id  "asn3"`, `label "asn3"`, "]",
		"edge", "[", `source "asn1"`, `target "asn2"`, "]",
		"]",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestWriteMatches(t *testing.T) {
	matches := []entitygraph.Match{
		{Grouping: "dept-a", Similarity: 0.875, Cluster: entitygraph.Cluster{Members: []int{0, 1}}, Members: []int{2}},
		{Grouping: "dept-b", Similarity: 0.125, Cluster: entitygraph.Cluster{Members: []int{1}}, Members: []int{0, 1}},
	}
	entities := []string{"ASN-A", "ASN-B"}
	hosts := []string{"h0", "h1", "h2"}

	var buf bytes.Buffer
	require.NoError(t, WriteMatches(&buf, matches,
		func(id int) string { return entities[id] },
		func(id int) string { return hosts[id] }))

	want := strings.Join([]string{
		"Internal Label = dept-a", "Match = 88%", "ASN-A", "ASN-B", "h2", "",
		"Internal Label = dept-b", "Match = 12%", "ASN-B", "h0", "h1", "",
	}, "\n") + "\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "scores.csv")
	err := WriteFile(path, func(w io.Writer) error {
		return WriteScores(w, []Score{{ID: "a", Value: 2}})
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,2.0\n", string(data))
}

func TestWriteClusters(t *testing.T) {
	clusters := []entitygraph.Cluster{
		{ID: 0, Members: []int{1}},
		{ID: 1, Members: []int{0, 1}, Children: []int{0, 2}},
	}
	keys := []string{"asn1", "asn2"}

	var buf bytes.Buffer
	require.NoError(t, WriteClusters(&buf, clusters, func(id int) string { return keys[id] }))
	assert.Equal(t, "0,,asn2\n1,0 2,asn1,asn2\n", buf.String())
}
