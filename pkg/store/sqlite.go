package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	command TEXT NOT NULL,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	status TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS scores (
	run_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	id TEXT NOT NULL,
	score REAL NOT NULL,
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

// SQLiteStore keeps results in a single SQLite file. A connection is not
// safe for concurrent use, so calls are serialized.
type SQLiteStore struct {
	mu   sync.Mutex
	conn *sqlite.Conn
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate, sqlite.OpenReadWrite, sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := sqlitex.ExecuteTransient(conn, "PRAGMA synchronous = NORMAL", nil); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := sqlitex.ExecuteScript(conn, sqliteSchema, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &SQLiteStore{conn: conn}, nil
}

// SaveRun inserts or replaces a run record.
func (s *SQLiteStore) SaveRun(_ context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := sqlitex.Execute(s.conn,
		`INSERT OR REPLACE INTO runs (id, command, started_at, finished_at, status, detail) VALUES (?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			run.ID,
			run.Command,
			run.StartedAt.UTC().Format(time.RFC3339Nano),
			run.FinishedAt.UTC().Format(time.RFC3339Nano),
			run.Status,
			run.Detail,
		}})
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// SaveScores replaces the scores of kind for runID.
func (s *SQLiteStore) SaveScores(_ context.Context, runID, kind string, scores []Score) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	endFn, err := sqlitex.ImmediateTransaction(s.conn)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer endFn(&err)

	if err := sqlitex.Execute(s.conn, `DELETE FROM scores WHERE run_id = ? AND kind = ?`,
		&sqlitex.ExecOptions{Args: []any{runID, kind}}); err != nil {
		return fmt.Errorf("clear scores: %w", err)
	}

	stmt, err := s.conn.Prepare(`INSERT INTO scores (run_id, kind, id, score) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare score insert: %w", err)
	}
	for _, sc := range scores {
		stmt.BindText(1, runID)
		stmt.BindText(2, kind)
		stmt.BindText(3, sc.ID)
		stmt.BindFloat(4, sc.Value)
		if _, err := stmt.Step(); err != nil {
			_ = stmt.Reset()
			return fmt.Errorf("insert score %s: %w", sc.ID, err)
		}
		if err := stmt.Reset(); err != nil {
			return err
		}
	}
	return nil
}

// SaveLabels replaces the labels of runID.
func (s *SQLiteStore) SaveLabels(_ context.Context, runID string, labels []Label) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	endFn, err := sqlitex.ImmediateTransaction(s.conn)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer endFn(&err)

	if err := sqlitex.Execute(s.conn, `DELETE FROM labels WHERE run_id = ?`,
		&sqlitex.ExecOptions{Args: []any{runID}}); err != nil {
		return fmt.Errorf("clear labels: %w", err)
	}

	stmt, err := s.conn.Prepare(`INSERT INTO labels (run_id, node, side, label) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare label insert: %w", err)
	}
	for _, l := range labels {
		stmt.BindText(1, runID)
		stmt.BindText(2, l.Node)
		stmt.BindText(3, l.Side)
		stmt.BindInt64(4, int64(l.Label))
		if _, err := stmt.Step(); err != nil {
			_ = stmt.Reset()
			return fmt.Errorf("insert label %s: %w", l.Node, err)
		}
		if err := stmt.Reset(); err != nil {
			return err
		}
	}
	return nil
}

// Scores returns the scores of kind for runID ordered by id.
func (s *SQLiteStore) Scores(_ context.Context, runID, kind string) ([]Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Score
	err := sqlitex.Execute(s.conn, `SELECT id, score FROM scores WHERE run_id = ? AND kind = ? ORDER BY id`,
		&sqlitex.ExecOptions{
			Args: []any{runID, kind},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, Score{ID: stmt.ColumnText(0), Value: stmt.ColumnFloat(1)})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	return out, nil
}

// Labels returns the labels of runID ordered by side, then node.
func (s *SQLiteStore) Labels(_ context.Context, runID string) ([]Label, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Label
	err := sqlitex.Execute(s.conn, `SELECT node, side, label FROM labels WHERE run_id = ? ORDER BY side, node`,
		&sqlitex.ExecOptions{
			Args: []any{runID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, Label{Node: stmt.ColumnText(0), Side: stmt.ColumnText(1), Label: int(stmt.ColumnInt64(2))})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}
	return out, nil
}

// Close closes the connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}
