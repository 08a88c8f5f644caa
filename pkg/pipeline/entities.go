package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/dd0wney/cluso-flowgraph/pkg/entitygraph"
	"github.com/dd0wney/cluso-flowgraph/pkg/ingest"
	"github.com/dd0wney/cluso-flowgraph/pkg/output"
	"github.com/dd0wney/cluso-flowgraph/pkg/store"
	"github.com/dd0wney/cluso-flowgraph/pkg/validation"
)

// Entities builds the significance graph over external entities, prunes
// it, scores every entity by centrality, and optionally clusters the graph
// and matches the clusters against known internal groupings.
func Entities(ctx context.Context, env *Env, in *Inputs) (*Report, error) {
	return execute(ctx, env, CommandEntities, func(r *run) error {
		if len(in.Flows) == 0 {
			return fmt.Errorf("%w: entity graphs need day-bucketed flow records, not a snapshot", ErrNoFlows)
		}
		cfg := r.env.Config
		opts := cfg.EntityOptions(r.logger)
		if err := validation.Struct(&opts); err != nil {
			return err
		}

		var counts *entitygraph.Counts
		err := r.stage("counts", func() error {
			days := ingest.BuildDaySets(in.Flows, matrixOptions(cfg, in))
			var err error
			counts, err = entitygraph.CountMatrix(days, opts.MinDays)
			if err != nil {
				return err
			}
			r.env.Metrics.RecordMatrix("entity_days", counts.Entities.Len(), counts.Lower.Len(), counts.Matrix.Len())
			return nil
		})
		if err != nil {
			return err
		}
		r.report.stat("entities", "%d over %d lower nodes", counts.Entities.Len(), counts.Lower.Len())

		var pruned *entitygraph.Graph
		err = r.stage("significance", func() error {
			g, err := entitygraph.Build(r.ctx, counts, opts)
			if err != nil {
				return err
			}
			pruned = entitygraph.Prune(g, opts.Ratio)
			r.env.Metrics.RecordEntityGraph(g.Pairs, len(g.Edges), len(pruned.Edges))
			r.report.stat("edges", "%d significant, %d kept", len(g.Edges), len(pruned.Edges))
			return nil
		})
		if err != nil {
			return err
		}

		var scores []output.Score
		err = r.stage("centrality", func() error {
			cs := entitygraph.Centrality(pruned, opts.Jump, opts.Tolerance)
			scores = make([]output.Score, len(cs.Values))
			var top float64
			for i, v := range cs.Values {
				scores[i] = output.Score{ID: cs.Entities.Key(i), Value: v}
				top = max(top, v)
			}
			r.env.Metrics.CentralityMaxScore.Set(top)
			return nil
		})
		if err != nil {
			return err
		}

		var clusters []entitygraph.Cluster
		if method := cfg.Entity.Clustering; method != "none" {
			err = r.stage("clustering", func() error {
				if method == "louvain" {
					clusters = entitygraph.Louvain(pruned, cfg.Entity.Resolution, cfg.Entity.Seed)
				} else {
					clusters = entitygraph.MROC(pruned)
				}
				r.env.Metrics.EntityClusters.WithLabelValues(method).Set(float64(len(clusters)))
				r.report.stat("clusters", "%d (%s)", len(clusters), method)
				return nil
			})
			if err != nil {
				return err
			}
		}

		var matches []entitygraph.Match
		if len(clusters) > 0 && len(in.Groups) > 0 {
			err = r.stage("matching", func() error {
				matcher := entitygraph.NewMatcher(counts, clusters, r.logger)
				matches = matcher.Match(clusters, ingest.Groupings(in.Groups))
				r.env.Metrics.GroupingMatches.Set(float64(len(matches)))
				r.report.stat("matches", "%d", len(matches))
				return nil
			})
			if err != nil {
				return err
			}
		}

		entityKey := func(id int) string { return counts.Entities.Key(id) }
		return r.stage("output", func() error {
			if err := r.write(FileCentrality, func(w io.Writer) error {
				return output.WriteScores(w, scores)
			}); err != nil {
				return err
			}
			if cfg.Output.GML {
				if err := r.write(FileEntityGML, func(w io.Writer) error {
					return output.WriteEntityGML(w, pruned, in.entityName)
				}); err != nil {
					return err
				}
			}
			if clusters != nil {
				if err := r.write(FileClusters, func(w io.Writer) error {
					return output.WriteClusters(w, clusters, entityKey)
				}); err != nil {
					return err
				}
			}
			if matches != nil {
				if err := r.write(FileMatches, func(w io.Writer) error {
					return output.WriteMatches(w, matches,
						func(id int) string { return in.entityName(entityKey(id)) },
						counts.Lower.Key)
				}); err != nil {
					return err
				}
			}
			return r.env.Store.SaveScores(r.ctx, r.report.RunID, store.KindCentrality, storeScores(scores))
		})
	})
}
