package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/stagehand-dev/stagehand/internal/engine"
)

// RunInfo summarizes one recorded run.
type RunInfo struct {
	Token     string `json:"token"`
	Scenario  string `json:"scenario"`
	StartedAt string `json:"started_at"`

	// Pass is nil while the run is in progress.
	Pass *bool `json:"pass,omitempty"`

	// Events is the number of recorded trace events.
	Events int64 `json:"events"`
}

// ListRuns returns all recorded runs, oldest first.
// Run tokens are UUIDv7 in production, so token order is creation order;
// the started_at tiebreak covers fixed test tokens.
func (s *Store) ListRuns(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.token, r.scenario, r.started_at, r.pass,
		       (SELECT COUNT(*) FROM trace_events e WHERE e.run_token = r.token)
		FROM runs r
		ORDER BY r.started_at ASC, r.token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var info RunInfo
		var pass sql.NullBool
		if err := rows.Scan(&info.Token, &info.Scenario, &info.StartedAt, &pass, &info.Events); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if pass.Valid {
			info.Pass = &pass.Bool
		}
		runs = append(runs, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	if runs == nil {
		runs = []RunInfo{}
	}
	return runs, nil
}

// ReadTrace returns every trace event for a run token in seq order.
// Returns an empty slice (not nil) if the run has no events.
func (s *Store) ReadTrace(ctx context.Context, token string) ([]engine.TraceEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, type, entry_id, helper, kind, args, error
		FROM trace_events
		WHERE run_token = ?
		ORDER BY seq ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query trace: %w", err)
	}
	defer rows.Close()

	var trace []engine.TraceEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		trace = append(trace, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace: %w", err)
	}

	if trace == nil {
		trace = []engine.TraceEvent{}
	}
	return trace, nil
}

// MaxSeq returns the highest seq recorded for a run, 0 if none.
// Used to resume a session clock against an existing trace.
func (s *Store) MaxSeq(ctx context.Context, token string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM trace_events WHERE run_token = ?
	`, token).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}

// scanEvent reads one trace event row.
func scanEvent(rows *sql.Rows) (engine.TraceEvent, error) {
	var ev engine.TraceEvent
	var entryID, args, errMsg sql.NullString

	if err := rows.Scan(&ev.Seq, &ev.Type, &entryID, &ev.Helper, &ev.Kind, &args, &errMsg); err != nil {
		return engine.TraceEvent{}, fmt.Errorf("scan event: %w", err)
	}

	ev.EntryID = entryID.String
	ev.Error = errMsg.String

	if args.Valid {
		decoded, err := decodeArgs([]byte(args.String))
		if err != nil {
			return engine.TraceEvent{}, fmt.Errorf("scan event: %w", err)
		}
		ev.Args = decoded
	}

	return ev, nil
}

// decodeArgs parses a stored canonical JSON argument array, preserving
// integers as int64. Plain json.Unmarshal would widen them to float64,
// which canonical serialization rejects on the next round trip.
func decodeArgs(data []byte) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode args: %w", err)
	}
	return convertNumbers(raw)
}

// convertNumbers rewrites json.Number values to int64 in place.
func convertNumbers(vals []any) ([]any, error) {
	for i, v := range vals {
		conv, err := convertNumber(v)
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		vals[i] = conv
	}
	return vals, nil
}

func convertNumber(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer number %q", val.String())
		}
		return n, nil
	case []any:
		return convertNumbers(val)
	case map[string]any:
		for k, mv := range val {
			conv, err := convertNumber(mv)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			val[k] = conv
		}
		return val, nil
	default:
		return v, nil
	}
}
