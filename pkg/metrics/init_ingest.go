package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initIngestMetrics() {
	r.FlowsRead = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "flowgraph_flows_read_total",
			Help: "Flow records read from input files",
		},
	)

	r.FlowsDropped = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "flowgraph_flows_dropped_total",
			Help: "Flow records skipped by service filter or entity resolution",
		},
	)

	r.MatrixCells = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flowgraph_matrix_cells",
			Help: "Non-default cells in a built matrix",
		},
		[]string{"matrix"},
	)

	r.MatrixDimensions = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flowgraph_matrix_dimension",
			Help: "Row or column count of a built matrix",
		},
		[]string{"matrix", "side"},
	)
}
