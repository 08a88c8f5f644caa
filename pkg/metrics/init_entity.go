package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initEntityMetrics() {
	r.EntityPairsTested = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "flowgraph_entity_pairs_tested",
			Help: "Entity pairs evaluated by the overlap significance test",
		},
	)

	r.SignificanceEdges = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flowgraph_significance_edges",
			Help: "Edges in the entity graph",
		},
		[]string{"phase"},
	)

	r.EntityClusters = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flowgraph_entity_clusters",
			Help: "Clusters found in the entity graph",
		},
		[]string{"method"},
	)

	r.GroupingMatches = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "flowgraph_grouping_matches",
			Help: "Known groupings matched to a cluster",
		},
	)

	r.CentralityMaxScore = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "flowgraph_centrality_max_score",
			Help: "Highest PageRank score in the entity graph",
		},
	)
}
