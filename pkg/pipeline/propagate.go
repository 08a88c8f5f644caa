package pipeline

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/dd0wney/cluso-flowgraph/pkg/community"
	"github.com/dd0wney/cluso-flowgraph/pkg/logging"
	"github.com/dd0wney/cluso-flowgraph/pkg/output"
	"github.com/dd0wney/cluso-flowgraph/pkg/propagation"
	"github.com/dd0wney/cluso-flowgraph/pkg/store"
)

// Propagate spreads training scores from labeled external nodes to the
// unlabeled ones, either node by node across the bipartite matrix or
// between detected communities, and writes one score per unlabeled node.
func Propagate(ctx context.Context, env *Env, in *Inputs) (*Report, error) {
	return execute(ctx, env, CommandPropagate, func(r *run) error {
		if len(in.Train) == 0 {
			return fmt.Errorf("propagate: %w", propagation.ErrNoTrainingLabels)
		}
		fm, err := r.buildMatrix(in)
		if err != nil {
			return err
		}

		train := make(map[int]float64, len(in.Train))
		for key, v := range in.Train {
			if j, ok := fm.Cols.Lookup(key); ok {
				train[j] = v
			}
		}
		r.logger.Info("training labels resolved",
			logging.Int("labels", len(in.Train)),
			logging.Int("matched", len(train)))
		r.report.stat("training labels", "%d of %d matched", len(train), len(in.Train))

		cfg := r.env.Config
		opts := cfg.PropagationOptions(r.logger)
		r.report.stat("solver", "tolerance=%g cap=%d log=%t", opts.Tolerance, opts.MaxIterations, opts.LogWeights)
		var scores []output.Score
		unlabeled := func(j int, v float64) {
			if _, ok := train[j]; !ok {
				scores = append(scores, output.Score{ID: fm.Cols.Key(j), Value: v})
			}
		}

		switch cfg.Propagation.Mode {
		case "community":
			g := community.NewGraph(fm.Matrix)
			rel, err := r.detect(g, fm, in)
			if err != nil {
				return err
			}
			err = r.stage("propagate", func() error {
				agg, err := community.AggregateByLabel(fm.Matrix, rel.Labels, rel.Count)
				if err != nil {
					return err
				}
				res, err := propagation.Community(agg, rel.Labels.Cols, train, opts)
				if err != nil {
					return err
				}
				for j, v := range res.Nodes {
					unlabeled(j, v)
				}
				r.recordPropagation("community", res.Iterations, res.Residual, res.Converged)
				return nil
			})
			if err != nil {
				return err
			}
		default:
			err := r.stage("propagate", func() error {
				res, err := propagation.Bipartite(fm.Matrix, train, opts)
				if err != nil {
					return err
				}
				for j, v := range res.Cols {
					unlabeled(j, v)
				}
				r.recordPropagation("bipartite", res.Iterations, res.Residual, res.Converged)
				return nil
			})
			if err != nil {
				return err
			}
		}
		sort.Slice(scores, func(a, b int) bool { return scores[a].ID < scores[b].ID })

		return r.stage("output", func() error {
			if err := r.write(FilePropagation, func(w io.Writer) error {
				return output.WriteScores(w, scores)
			}); err != nil {
				return err
			}
			return r.env.Store.SaveScores(r.ctx, r.report.RunID, store.KindPropagation, storeScores(scores))
		})
	})
}

func (r *run) recordPropagation(mode string, iterations int, residual float64, converged bool) {
	r.env.Metrics.RecordPropagation(mode, iterations, residual, converged)
	r.report.stat("propagation", "%s, %d iterations, converged=%t", mode, iterations, converged)
}
