// ABOUTME: SQLite-backed audit sink storing lifecycle events in an audit_events table.
// ABOUTME: Mirrors the JSONL sink but allows querying history with SQL.

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteSink writes audit events to a SQLite database.
type SQLiteSink struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteSink opens (or creates) an audit database at the given path.
func NewSQLiteSink(path string, logger *slog.Logger) (*SQLiteSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating audit directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS audit_events (
			id TEXT PRIMARY KEY,
			timestamp TEXT NOT NULL,
			kind TEXT NOT NULL,
			session_id TEXT,
			connection_id TEXT,
			server_id TEXT,
			detail TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_audit_session ON audit_events(session_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}

	return &SQLiteSink{db: db, logger: logger.With("component", "audit")}, nil
}

// Record inserts one event. Failures are logged, never returned.
func (s *SQLiteSink) Record(ctx context.Context, ev Event) {
	stamp(&ev)

	var detail string
	if len(ev.Detail) > 0 {
		b, err := json.Marshal(ev.Detail)
		if err != nil {
			s.logger.Warn("dropping audit detail", "kind", ev.Kind, "error", err)
		} else {
			detail = string(b)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, timestamp, kind, session_id, connection_id, server_id, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Timestamp, string(ev.Kind), ev.SessionID, ev.ConnectionID, ev.ServerID, detail,
	)
	if err != nil {
		s.logger.Warn("audit insert failed", "kind", ev.Kind, "error", err)
	}
}

// Count returns the number of stored events of the given kind.
// Used by operational tooling and tests; an empty kind counts everything.
func (s *SQLiteSink) Count(ctx context.Context, kind Kind) (int, error) {
	var n int
	var err error
	if kind == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events WHERE kind = ?`, string(kind)).Scan(&n)
	}
	return n, err
}

// Close closes the underlying database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
