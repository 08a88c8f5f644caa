// Package store persists run results: per-node scores, community labels and
// a record of every run.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Score kinds.
const (
	KindFocus       = "focus"
	KindPropagation = "propagation"
	KindCentrality  = "centrality"
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown store driver")

// Score is one scored node.
type Score struct {
	ID    string
	Value float64
}

// Label is the community of one node.
type Label struct {
	Node  string
	Side  string
	Label int
}

// Run describes one pipeline execution.
type Run struct {
	ID         string
	Command    string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Detail     string
}

// Store persists results. Saving scores or labels replaces whatever the
// same run stored before under the same kind.
type Store interface {
	SaveRun(ctx context.Context, run Run) error
	SaveScores(ctx context.Context, runID, kind string, scores []Score) error
	SaveLabels(ctx context.Context, runID string, labels []Label) error
	Scores(ctx context.Context, runID, kind string) ([]Score, error)
	Labels(ctx context.Context, runID string) ([]Label, error)
	Close() error
}

// Open connects to the store named by driver. An empty driver returns a
// store that discards everything.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "":
		return Nop{}, nil
	case DriverSQLite:
		s, err := OpenSQLite(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		s, err := NewPGStore(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// Nop discards writes and reads nothing.
type Nop struct{}

func (Nop) SaveRun(context.Context, Run) error                        { return nil }
func (Nop) SaveScores(context.Context, string, string, []Score) error { return nil }
func (Nop) SaveLabels(context.Context, string, []Label) error         { return nil }
func (Nop) Scores(context.Context, string, string) ([]Score, error)   { return nil, nil }
func (Nop) Labels(context.Context, string) ([]Label, error)           { return nil, nil }
func (Nop) Close() error                                              { return nil }
