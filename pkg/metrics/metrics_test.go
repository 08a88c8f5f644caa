package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var metric dto.Metric
	if err := g.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return metric.Gauge.GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return metric.Counter.GetValue()
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}

	if r.FlowsRead == nil {
		t.Error("FlowsRead not initialized")
	}
	if r.Modularity == nil {
		t.Error("Modularity not initialized")
	}
	if r.PropagationIterations == nil {
		t.Error("PropagationIterations not initialized")
	}
	if r.SignificanceEdges == nil {
		t.Error("SignificanceEdges not initialized")
	}
	if r.GetPrometheusRegistry() == nil {
		t.Error("Prometheus registry not initialized")
	}
}

func TestNewRegistry_Independent(t *testing.T) {
	r1 := NewRegistry()
	r2 := NewRegistry()

	r1.RecordFlows(10, 2)

	if got := counterValue(t, r2.FlowsRead); got != 0 {
		t.Errorf("second registry FlowsRead = %v, want 0", got)
	}
}

func TestRecordFlows(t *testing.T) {
	r := NewRegistry()
	r.RecordFlows(10, 2)
	r.RecordFlows(5, 1)

	if got := counterValue(t, r.FlowsRead); got != 15 {
		t.Errorf("FlowsRead = %v, want 15", got)
	}
	if got := counterValue(t, r.FlowsDropped); got != 3 {
		t.Errorf("FlowsDropped = %v, want 3", got)
	}
}

func TestRecordCommunityStage(t *testing.T) {
	r := NewRegistry()
	r.RecordCommunityStage("lpa", 0.42, 7)
	r.RecordCommunityStage("merged", 0.45, 5)

	if got := gaugeValue(t, r.Modularity.WithLabelValues("lpa")); got != 0.42 {
		t.Errorf("Modularity{lpa} = %v, want 0.42", got)
	}
	if got := gaugeValue(t, r.Communities.WithLabelValues("merged")); got != 5 {
		t.Errorf("Communities{merged} = %v, want 5", got)
	}
}

func TestRecordPropagation(t *testing.T) {
	r := NewRegistry()
	r.RecordPropagation("bipartite", 12, 3e-7, true)
	r.RecordPropagation("community", 100, 0.5, false)

	if got := gaugeValue(t, r.PropagationIterations.WithLabelValues("bipartite")); got != 12 {
		t.Errorf("iterations = %v, want 12", got)
	}
	if got := gaugeValue(t, r.PropagationConverged.WithLabelValues("bipartite")); got != 1 {
		t.Errorf("converged{bipartite} = %v, want 1", got)
	}
	if got := gaugeValue(t, r.PropagationConverged.WithLabelValues("community")); got != 0 {
		t.Errorf("converged{community} = %v, want 0", got)
	}
}

func TestRecordEntityGraph(t *testing.T) {
	r := NewRegistry()
	r.RecordEntityGraph(40, 12, 9)

	if got := gaugeValue(t, r.EntityPairsTested); got != 40 {
		t.Errorf("pairs = %v, want 40", got)
	}
	if got := gaugeValue(t, r.SignificanceEdges.WithLabelValues("pruned")); got != 9 {
		t.Errorf("pruned edges = %v, want 9", got)
	}
}

func TestRecordRun(t *testing.T) {
	r := NewRegistry()
	r.RecordRun("communities", nil)
	r.RecordRun("communities", errors.New("boom"))
	r.RecordRun("communities", nil)

	if got := counterValue(t, r.RunsTotal.WithLabelValues("communities", StatusSuccess)); got != 2 {
		t.Errorf("success runs = %v, want 2", got)
	}
	if got := counterValue(t, r.RunsTotal.WithLabelValues("communities", StatusError)); got != 1 {
		t.Errorf("error runs = %v, want 1", got)
	}
	if got := gaugeValue(t, r.LastRunTimestamp.WithLabelValues("communities")); got <= 0 {
		t.Errorf("last run timestamp = %v, want > 0", got)
	}
}

func TestObserveStage(t *testing.T) {
	r := NewRegistry()
	r.ObserveStage("lpa", 50*time.Millisecond)
	r.ObserveStage("lpa", 150*time.Millisecond)

	h, err := r.StageDuration.GetMetricWithLabelValues("lpa")
	if err != nil {
		t.Fatalf("Failed to get metric: %v", err)
	}
	var metric dto.Metric
	if err := h.(prometheus.Histogram).Write(&metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if got := metric.Histogram.GetSampleCount(); got != 2 {
		t.Errorf("sample count = %d, want 2", got)
	}
}

func TestUpdateSystemMetrics(t *testing.T) {
	r := NewRegistry()
	r.UpdateSystemMetrics()

	if got := gaugeValue(t, r.GoRoutines); got < 1 {
		t.Errorf("goroutines = %v, want >= 1", got)
	}
	if got := gaugeValue(t, r.MemoryAllocBytes); got <= 0 {
		t.Errorf("alloc bytes = %v, want > 0", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := NewRegistry()
	r.RecordMatrix("flows", 3, 4, 6)
	r.RecordFlows(10, 0)

	path := filepath.Join(t.TempDir(), "flowgraph.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() = %v", err)
	}
	text := string(data)
	for _, want := range []string{
		"flowgraph_flows_read_total 10",
		`flowgraph_matrix_cells{matrix="flows"} 6`,
		`flowgraph_matrix_dimension{matrix="flows",side="cols"} 4`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("textfile missing %q", want)
		}
	}
}
