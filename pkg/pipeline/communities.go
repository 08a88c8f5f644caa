package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/dd0wney/cluso-flowgraph/pkg/community"
	"github.com/dd0wney/cluso-flowgraph/pkg/ingest"
	"github.com/dd0wney/cluso-flowgraph/pkg/logging"
	"github.com/dd0wney/cluso-flowgraph/pkg/matrix"
	"github.com/dd0wney/cluso-flowgraph/pkg/output"
	"github.com/dd0wney/cluso-flowgraph/pkg/store"
)

// Output file names.
const (
	FileLabels       = "labels.csv"
	FileCommunities  = "communities.csv"
	FileFocus        = "focus.csv"
	FileSummaryGML   = "summary.gml"
	FileSnapshot     = "flows.snap"
	FileSnapshotKeys = "flows.keys.csv"
	FilePropagation  = "propagation.csv"
	FileCentrality   = "centrality.csv"
	FileEntityGML    = "entities.gml"
	FileClusters     = "clusters.csv"
	FileMatches      = "matches.txt"
)

// Communities detects bipartite communities in the flow matrix, optionally
// merges them, and writes labels, the community summary, focus scores and
// the summary graph.
func Communities(ctx context.Context, env *Env, in *Inputs) (*Report, error) {
	return execute(ctx, env, CommandCommunities, func(r *run) error {
		fm, err := r.buildMatrix(in)
		if err != nil {
			return err
		}
		g := community.NewGraph(fm.Matrix)

		rel, err := r.detect(g, fm, in)
		if err != nil {
			return err
		}

		var comms []*community.Community
		var focus []float64
		err = r.stage("focus", func() error {
			comms = rel.Communities(community.ContributionMap(g, rel.Labels))
			focus = community.FocusScores(fm.Matrix, rel.Labels.Rows, rel.RowCounts)
			return nil
		})
		if err != nil {
			return err
		}

		focusScores := make([]output.Score, len(focus))
		for j, v := range focus {
			focusScores[j] = output.Score{ID: fm.Cols.Key(j), Value: v}
		}

		err = r.stage("output", func() error {
			if err := r.write(FileLabels, func(w io.Writer) error {
				return output.WriteLabels(w, fm.Rows, fm.Cols, rel.Labels)
			}); err != nil {
				return err
			}
			if err := r.write(FileCommunities, func(w io.Writer) error {
				return output.WriteCommunitySummary(w, comms, fm.Rows, fm.Cols)
			}); err != nil {
				return err
			}
			if err := r.write(FileFocus, func(w io.Writer) error {
				return output.WriteScores(w, focusScores)
			}); err != nil {
				return err
			}
			if !r.env.Config.Output.GML {
				return nil
			}
			aggregate := community.AggregateEdgeCounts
			if r.env.Config.Output.GMLCells == "weights" {
				aggregate = community.AggregateByLabel
			}
			summary, err := aggregate(fm.Matrix, rel.Labels, rel.Count)
			if err != nil {
				return err
			}
			return r.write(FileSummaryGML, func(w io.Writer) error {
				return output.WriteGML(w, summary, rel.RowCounts, rel.ColCounts)
			})
		})
		if err != nil {
			return err
		}

		err = r.stage("persist", func() error {
			if err := r.env.Store.SaveLabels(r.ctx, r.report.RunID, storeLabels(fm, rel.Labels)); err != nil {
				return err
			}
			return r.env.Store.SaveScores(r.ctx, r.report.RunID, store.KindFocus, storeScores(focusScores))
		})
		if err != nil {
			return err
		}

		r.report.stat("communities", "%d", rel.Count)
		return nil
	})
}

// buildMatrix builds the internal x external flow matrix, or takes the
// preloaded snapshot matrix, and optionally snapshots it.
func (r *run) buildMatrix(in *Inputs) (*ingest.FlowMatrix, error) {
	var fm *ingest.FlowMatrix
	err := r.stage("ingest", func() error {
		if in.Matrix != nil {
			fm = in.Matrix
			r.logger.Info("flow matrix loaded from snapshot",
				logging.Path(r.env.Config.Ingest.Snapshot),
				logging.Int("cells", fm.Matrix.Len()))
		} else {
			var err error
			fm, err = ingest.BuildFlowMatrix(in.Flows, matrixOptions(r.env.Config, in))
			if err != nil {
				return err
			}
			r.env.Metrics.RecordFlows(len(in.Flows), fm.Dropped)
		}
		if fm.Matrix.Len() == 0 {
			return fmt.Errorf("%w after filtering %d records", ErrNoFlows, len(in.Flows))
		}
		r.env.Metrics.RecordMatrix("flows", fm.Rows.Len(), fm.Cols.Len(), fm.Matrix.Len())
		r.logger.Info("flow matrix built",
			logging.Int("rows", fm.Rows.Len()),
			logging.Int("cols", fm.Cols.Len()),
			logging.Int("cells", fm.Matrix.Len()),
			logging.Int("dropped", fm.Dropped))

		if !r.env.Config.Output.Snapshot {
			return nil
		}
		if err := r.write(FileSnapshot, func(w io.Writer) error {
			return matrix.WriteSnapshot(w, fm.Matrix)
		}); err != nil {
			return err
		}
		return r.write(FileSnapshotKeys, fm.WriteKeys)
	})
	if err != nil {
		return nil, err
	}
	if in.Matrix != nil {
		r.report.stat("flows", "from snapshot %s", r.env.Config.Ingest.Snapshot)
	} else {
		r.report.stat("flows", "%d (%d dropped)", len(in.Flows), fm.Dropped)
	}
	r.report.stat("matrix", "%d x %d, %d cells", fm.Rows.Len(), fm.Cols.Len(), fm.Matrix.Len())
	return fm, nil
}

// detect runs label propagation from group seeds, then the optional merge,
// and returns the dense labeling.
func (r *run) detect(g *community.Graph, fm *ingest.FlowMatrix, in *Inputs) (*community.Relabeling, error) {
	cfg := r.env.Config
	var rel *community.Relabeling
	err := r.stage("lpa", func() error {
		seeds := make(map[int]int)
		if cfg.Community.SeedGroups && len(in.Groups) > 0 {
			hosts, _ := ingest.GroupLabels(in.Groups)
			for host, label := range hosts {
				if i, ok := fm.Rows.Lookup(host); ok {
					seeds[i] = label
				}
			}
		}
		seed := community.SeedLabels(fm.Rows.Len(), fm.Cols.Len(), seeds)

		res, err := community.NewDetector(g, cfg.LPAConfig(r.logger)).Run(seed)
		if err != nil {
			return err
		}
		rel = community.Relabel(res.Labels)
		r.env.Metrics.LPAIterations.Set(float64(res.Iterations))
		r.env.Metrics.RecordCommunityStage("lpa", res.Modularity, rel.Count)
		r.report.stat("modularity (lpa)", "%.6f", res.Modularity)
		return nil
	})
	if err != nil || !cfg.Community.Merge {
		return rel, err
	}

	err = r.stage("merge", func() error {
		res, err := community.NewMerger(g, r.logger).Run(rel.Labels)
		if err != nil {
			return err
		}
		rel = community.Relabel(res.Labels)
		r.env.Metrics.RecordMerge(res.Rounds, len(res.Merges))
		r.env.Metrics.RecordCommunityStage("merged", res.Modularity, rel.Count)
		r.report.stat("modularity (merged)", "%.6f", res.Modularity)
		return nil
	})
	return rel, err
}

func storeLabels(fm *ingest.FlowMatrix, labels community.Labels) []store.Label {
	out := make([]store.Label, 0, len(labels.Rows)+len(labels.Cols))
	for i, l := range labels.Rows {
		out = append(out, store.Label{Node: fm.Rows.Key(i), Side: output.SideInternal, Label: l})
	}
	for j, l := range labels.Cols {
		out = append(out, store.Label{Node: fm.Cols.Key(j), Side: output.SideExternal, Label: l})
	}
	return out
}

func storeScores(scores []output.Score) []store.Score {
	out := make([]store.Score, len(scores))
	for n, s := range scores {
		out[n] = store.Score{ID: s.ID, Value: s.Value}
	}
	return out
}
