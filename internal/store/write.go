package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stagehand-dev/stagehand/internal/engine"
)

// CreateRun registers a run before its first trace event.
// Uses ON CONFLICT(token) DO NOTHING for idempotency - re-registering an
// existing run token is silently ignored.
func (s *Store) CreateRun(ctx context.Context, token, scenario string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (token, scenario)
		VALUES (?, ?)
		ON CONFLICT(token) DO NOTHING
	`, token, scenario)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun records the run's final pass/fail outcome.
func (s *Store) FinishRun(ctx context.Context, token string, pass bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET pass = ? WHERE token = ?
	`, pass, token)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run: unknown run token %q", token)
	}
	return nil
}

// WriteEvent inserts one trace event for a run.
// Arguments are serialized to canonical JSON per RFC 8785 so stored
// traces compare byte for byte against fresh runs.
//
// Uses ON CONFLICT DO NOTHING for idempotency - (run_token, seq) is the
// primary key and a duplicate write of the same event is silently ignored.
func (s *Store) WriteEvent(ctx context.Context, token string, ev engine.TraceEvent) error {
	var argsJSON sql.NullString
	if len(ev.Args) > 0 {
		data, err := engine.MarshalCanonical(ev.Args)
		if err != nil {
			return fmt.Errorf("write event: marshal args: %w", err)
		}
		argsJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trace_events
		(run_token, seq, type, entry_id, helper, kind, args, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		token,
		ev.Seq,
		ev.Type,
		nullable(ev.EntryID),
		ev.Helper,
		ev.Kind,
		argsJSON,
		nullable(ev.Error),
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	return nil
}

// nullable maps empty strings to SQL NULL.
func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
