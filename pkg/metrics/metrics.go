package metrics

import (
	"fmt"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes for RecordRun.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// RecordMatrix records the shape of a built matrix.
func (r *Registry) RecordMatrix(name string, rows, cols, cells int) {
	r.MatrixDimensions.WithLabelValues(name, "rows").Set(float64(rows))
	r.MatrixDimensions.WithLabelValues(name, "cols").Set(float64(cols))
	r.MatrixCells.WithLabelValues(name).Set(float64(cells))
}

// RecordFlows counts read and dropped flow records.
func (r *Registry) RecordFlows(read, dropped int) {
	r.FlowsRead.Add(float64(read))
	r.FlowsDropped.Add(float64(dropped))
}

// RecordCommunityStage records modularity and community count after stage.
func (r *Registry) RecordCommunityStage(stage string, modularity float64, communities int) {
	r.Modularity.WithLabelValues(stage).Set(modularity)
	r.Communities.WithLabelValues(stage).Set(float64(communities))
}

// RecordMerge records a multi-step greedy merge run.
func (r *Registry) RecordMerge(rounds, merges int) {
	r.MergeRounds.Set(float64(rounds))
	r.Merges.Set(float64(merges))
}

// RecordPropagation records the outcome of a propagation solve.
func (r *Registry) RecordPropagation(mode string, iterations int, residual float64, converged bool) {
	r.PropagationIterations.WithLabelValues(mode).Set(float64(iterations))
	r.PropagationResidual.WithLabelValues(mode).Set(residual)
	if converged {
		r.PropagationConverged.WithLabelValues(mode).Set(1)
	} else {
		r.PropagationConverged.WithLabelValues(mode).Set(0)
	}
}

// RecordEntityGraph records significance graph sizes before and after
// pruning.
func (r *Registry) RecordEntityGraph(pairs, built, pruned int) {
	r.EntityPairsTested.Set(float64(pairs))
	r.SignificanceEdges.WithLabelValues("built").Set(float64(built))
	r.SignificanceEdges.WithLabelValues("pruned").Set(float64(pruned))
}

// ObserveStage records how long a stage took.
func (r *Registry) ObserveStage(stage string, d time.Duration) {
	r.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordRun counts a finished run and stamps its completion time.
func (r *Registry) RecordRun(command string, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	r.RunsTotal.WithLabelValues(command, status).Inc()
	r.LastRunTimestamp.WithLabelValues(command).SetToCurrentTime()
}

// UpdateSystemMetrics samples goroutine and memory usage.
func (r *Registry) UpdateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
	r.MemoryAllocBytes.Set(float64(m.Alloc))
	r.MemorySysBytes.Set(float64(m.Sys))
}

// WriteTextfile writes every metric to path in the text exposition format
// read by the node-exporter textfile collector. The file is written to a
// temporary name and renamed into place.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
