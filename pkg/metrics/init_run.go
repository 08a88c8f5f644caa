package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initRunMetrics() {
	r.StageDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowgraph_stage_duration_seconds",
			Help:    "Wall time of a pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"stage"},
	)

	r.RunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowgraph_runs_total",
			Help: "Pipeline runs by command and outcome",
		},
		[]string{"command", "status"},
	)

	r.LastRunTimestamp = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flowgraph_last_run_timestamp_seconds",
			Help: "Unix time the last run of a command finished",
		},
		[]string{"command"},
	)
}
