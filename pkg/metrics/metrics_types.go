// Package metrics exposes per-run Prometheus metrics for the analysis
// stages. Batch runs export them through the node-exporter textfile
// collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for one run.
type Registry struct {
	// Ingest Metrics
	FlowsRead        prometheus.Counter
	FlowsDropped     prometheus.Counter
	MatrixCells      *prometheus.GaugeVec
	MatrixDimensions *prometheus.GaugeVec

	// Community Metrics
	LPAIterations prometheus.Gauge
	Modularity    *prometheus.GaugeVec
	MergeRounds   prometheus.Gauge
	Merges        prometheus.Gauge
	Communities   *prometheus.GaugeVec

	// Propagation Metrics
	PropagationIterations *prometheus.GaugeVec
	PropagationResidual   *prometheus.GaugeVec
	PropagationConverged  *prometheus.GaugeVec

	// Entity Graph Metrics
	EntityPairsTested  prometheus.Gauge
	SignificanceEdges  *prometheus.GaugeVec
	EntityClusters     *prometheus.GaugeVec
	GroupingMatches    prometheus.Gauge
	CentralityMaxScore prometheus.Gauge

	// Run Metrics
	StageDuration    *prometheus.HistogramVec
	RunsTotal        *prometheus.CounterVec
	LastRunTimestamp *prometheus.GaugeVec

	// System Metrics
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge
	MemorySysBytes   prometheus.Gauge

	registry *prometheus.Registry
}

// NewRegistry creates a registry with all metrics initialized.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	r.initIngestMetrics()
	r.initCommunityMetrics()
	r.initPropagationMetrics()
	r.initEntityMetrics()
	r.initRunMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
