package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initCommunityMetrics() {
	r.LPAIterations = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "flowgraph_lpa_iterations",
			Help: "Label propagation passes run",
		},
	)

	r.Modularity = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flowgraph_modularity",
			Help: "Bipartite modularity after a community stage",
		},
		[]string{"stage"},
	)

	r.MergeRounds = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "flowgraph_merge_rounds",
			Help: "Multi-step greedy merge rounds run",
		},
	)

	r.Merges = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "flowgraph_merges",
			Help: "Community pairs merged",
		},
	)

	r.Communities = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flowgraph_communities",
			Help: "Distinct community labels after a stage",
		},
		[]string{"stage"},
	)
}
