package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initPropagationMetrics() {
	r.PropagationIterations = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flowgraph_propagation_iterations",
			Help: "Score propagation sweeps run",
		},
		[]string{"mode"},
	)

	r.PropagationResidual = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flowgraph_propagation_residual",
			Help: "Summed score change of the last propagation sweep",
		},
		[]string{"mode"},
	)

	r.PropagationConverged = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flowgraph_propagation_converged",
			Help: "1 if propagation reached its threshold before the iteration cap",
		},
		[]string{"mode"},
	)
}
