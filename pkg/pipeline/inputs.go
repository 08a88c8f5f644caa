package pipeline

import (
	"errors"
	"fmt"

	"github.com/dd0wney/cluso-flowgraph/pkg/config"
	"github.com/dd0wney/cluso-flowgraph/pkg/ingest"
)

// ErrNoFlows is returned when no flow input is configured or all inputs are
// empty.
var ErrNoFlows = errors.New("no flow records")

// Inputs are the parsed input tables of a run.
type Inputs struct {
	Flows    []ingest.Flow
	Matrix   *ingest.FlowMatrix // preloaded from a snapshot; nil builds from Flows
	Internal map[string]bool // nil keeps every internal key
	ASN      *ingest.ASNMap
	Groups   []ingest.GroupRecord
	Train    map[string]float64 // external key -> training score
}

// LoadInputs reads every table named in cfg.Ingest and the propagation
// training labels. A configured snapshot stands in for the flow files.
func LoadInputs(cfg *config.Config) (*Inputs, error) {
	if len(cfg.Ingest.Flows) == 0 && cfg.Ingest.Snapshot == "" {
		return nil, fmt.Errorf("%w: ingest.flows is empty", ErrNoFlows)
	}
	in := &Inputs{}
	var err error
	if len(cfg.Ingest.Flows) > 0 {
		if in.Flows, err = ingest.ReadFlowFiles(cfg.Ingest.Flows...); err != nil {
			return nil, err
		}
	}
	if p := cfg.Ingest.Snapshot; p != "" {
		if in.Matrix, err = ingest.LoadSnapshot(p); err != nil {
			return nil, err
		}
	}

	if p := cfg.Ingest.Internal; p != "" {
		if in.Internal, err = ingest.OpenTable(p, ingest.ReadKeys); err != nil {
			return nil, err
		}
	}
	if p := cfg.Ingest.ASNMap; p != "" {
		if in.ASN, err = ingest.OpenTable(p, ingest.ReadASNMap); err != nil {
			return nil, err
		}
	}
	if p := cfg.Ingest.Groups; p != "" {
		if in.Groups, err = ingest.OpenTable(p, ingest.ReadGroups); err != nil {
			return nil, err
		}
	}
	if p := cfg.Propagation.Labels; p != "" {
		if in.Train, err = ingest.OpenTable(p, ingest.ReadScores); err != nil {
			return nil, err
		}
	}
	return in, nil
}

// matrixOptions selects flows per the ingest settings.
func matrixOptions(cfg *config.Config, in *Inputs) ingest.MatrixOptions {
	opts := ingest.MatrixOptions{
		Service:  cfg.Ingest.Service,
		Internal: in.Internal,
		Binary:   cfg.Ingest.Binary,
	}
	if cfg.Ingest.ResolveASN && in.ASN != nil {
		opts.Resolver = in.ASN
	}
	return opts
}

// entityName maps an entity key to a display name.
func (in *Inputs) entityName(key string) string {
	if in.ASN == nil {
		return key
	}
	return in.ASN.Name(key)
}
