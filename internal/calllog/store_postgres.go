package calllog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PostgresStore persists call history in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed call log. The caller owns the
// *sql.DB lifecycle.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the call_log table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS call_log (
			id UUID PRIMARY KEY,
			number TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			direction TEXT NOT NULL,
			outcome TEXT NOT NULL,
			caller_name TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure call_log schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	query := `
		INSERT INTO call_log (id, number, fingerprint, direction, outcome, caller_name, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Number,
		entry.Fingerprint,
		entry.Direction,
		string(entry.Outcome),
		entry.CallerName,
		entry.StartedAt,
		entry.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("insert call log entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, number, fingerprint, direction, outcome, caller_name, started_at, ended_at
		FROM call_log
		ORDER BY ended_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list call log entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var outcome string
		if err := rows.Scan(&e.ID, &e.Number, &e.Fingerprint, &e.Direction, &outcome, &e.CallerName, &e.StartedAt, &e.EndedAt); err != nil {
			return nil, fmt.Errorf("scan call log entry: %w", err)
		}
		e.Outcome = Outcome(outcome)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate call log entries: %w", err)
	}
	return entries, nil
}
