package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore keeps results in PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects to databaseURL and creates missing tables.
func NewPGStore(ctx context.Context, databaseURL string) (*PGStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 4
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	s := &PGStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

func (s *PGStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		command TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS scores (
		run_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		id TEXT NOT NULL,
		score DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (run_id, kind, id)
	);

	CREATE TABLE IF NOT EXISTS labels (
		run_id TEXT NOT NULL,
		node TEXT NOT NULL,
		side TEXT NOT NULL,
		label INTEGER NOT NULL,
		PRIMARY KEY (run_id, side, node)
	);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// SaveRun inserts or updates a run record.
func (s *PGStore) SaveRun(ctx context.Context, run Run) error {
	query := `
		INSERT INTO runs (id, command, started_at, finished_at, status, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			status = EXCLUDED.status,
			detail = EXCLUDED.detail
	`
	if _, err := s.pool.Exec(ctx, query, run.ID, run.Command, run.StartedAt, run.FinishedAt, run.Status, run.Detail); err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// SaveScores replaces the scores of kind for runID with a bulk copy.
func (s *PGStore) SaveScores(ctx context.Context, runID, kind string, scores []Score) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM scores WHERE run_id = $1 AND kind = $2`, runID, kind); err != nil {
			return fmt.Errorf("failed to clear scores: %w", err)
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"scores"},
			scoreColumns,
			pgx.CopyFromRows(scoreRows(runID, kind, scores)),
		)
		if err != nil {
			return fmt.Errorf("failed to copy scores: %w", err)
		}
		return nil
	})
}

// SaveLabels replaces the labels of runID with a bulk copy.
func (s *PGStore) SaveLabels(ctx context.Context, runID string, labels []Label) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM labels WHERE run_id = $1`, runID); err != nil {
			return fmt.Errorf("failed to clear labels: %w", err)
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"labels"},
			labelColumns,
			pgx.CopyFromRows(labelRows(runID, labels)),
		)
		if err != nil {
			return fmt.Errorf("failed to copy labels: %w", err)
		}
		return nil
	})
}

// scoreColumns and scoreRows shape scores for COPY into the scores table.
var scoreColumns = []string{"run_id", "kind", "id", "score"}

func scoreRows(runID, kind string, scores []Score) [][]any {
	rows := make([][]any, len(scores))
	for i, sc := range scores {
		rows[i] = []any{runID, kind, sc.ID, sc.Value}
	}
	return rows
}

var labelColumns = []string{"run_id", "node", "side", "label"}

func labelRows(runID string, labels []Label) [][]any {
	rows := make([][]any, len(labels))
	for i, l := range labels {
		rows[i] = []any{runID, l.Node, l.Side, int32(l.Label)}
	}
	return rows
}

// Scores returns the scores of kind for runID ordered by id.
func (s *PGStore) Scores(ctx context.Context, runID, kind string) ([]Score, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, score FROM scores WHERE run_id = $1 AND kind = $2 ORDER BY id`, runID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Score])
	if err != nil {
		return nil, fmt.Errorf("failed to scan scores: %w", err)
	}
	return out, nil
}

// Labels returns the labels of runID ordered by side, then node.
func (s *PGStore) Labels(ctx context.Context, runID string) ([]Label, error) {
	rows, err := s.pool.Query(ctx, `SELECT node, side, label FROM labels WHERE run_id = $1 ORDER BY side, node`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Label])
	if err != nil {
		return nil, fmt.Errorf("failed to scan labels: %w", err)
	}
	return out, nil
}

// Close closes the connection pool.
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}
