package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/michaelpento.lv/xchainarb/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS execution_events (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    execution_id   TEXT    NOT NULL,
    opportunity_id TEXT    NOT NULL,
    stage          TEXT    NOT NULL,
    reference      TEXT    NOT NULL DEFAULT '',
    error          TEXT    NOT NULL DEFAULT '',
    reconcile      INTEGER NOT NULL DEFAULT 0,
    recorded_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_execution ON execution_events(execution_id, id);
`

// SQLiteStore is a Recorder backed by SQLite (pure Go, no cgo)
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the journal database at dsn
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %q: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // single writer; also keeps :memory: on one connection
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply journal schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Record implements Recorder
func (s *SQLiteStore) Record(ctx context.Context, ev Event) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_events
			(execution_id, opportunity_id, stage, reference, error, reconcile, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ExecutionID, ev.OpportunityID, string(ev.Stage), ev.Reference, ev.Error,
		boolToInt(ev.Reconcile), at.UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// Events returns the transitions of one execution in the order they happened
func (s *SQLiteStore) Events(ctx context.Context, executionID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT execution_id, opportunity_id, stage, reference, error, reconcile, recorded_at
		FROM execution_events
		WHERE execution_id = ?
		ORDER BY id`, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Unreconciled returns the latest event of every execution that stopped
// after submitting funds, or that never reached a terminal stage.
func (s *SQLiteStore) Unreconciled(ctx context.Context) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.execution_id, e.opportunity_id, e.stage, e.reference, e.error, e.reconcile, e.recorded_at
		FROM execution_events e
		JOIN (SELECT execution_id, MAX(id) AS last_id FROM execution_events GROUP BY execution_id) l
			ON e.id = l.last_id
		WHERE e.reconcile = 1 OR e.stage NOT IN (?, ?, ?)
		ORDER BY e.id`,
		string(types.StageCompleted), string(types.StageRejected), string(types.StageFailed))
	if err != nil {
		return nil, fmt.Errorf("failed to query unreconciled executions: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		var (
			ev        Event
			stage     string
			reconcile int
			at        int64
		)
		if err := rows.Scan(&ev.ExecutionID, &ev.OpportunityID, &stage, &ev.Reference, &ev.Error, &reconcile, &at); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Stage = types.Stage(stage)
		ev.Reconcile = reconcile != 0
		ev.At = time.Unix(0, at).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
