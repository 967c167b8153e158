package store

import (
	"context"
	"log/slog"

	"github.com/stagehand-dev/stagehand/internal/engine"
)

// TraceRecorder streams session trace events into the store as they
// happen. Implements engine.Recorder.
//
// Write failures are logged, not returned: Record is called from the
// drain loop, which has no error channel, and a persistence problem
// should not abort the run it is observing.
type TraceRecorder struct {
	store *Store
	token string
	log   *slog.Logger
}

// NewTraceRecorder creates a recorder that writes events for the given
// run token. The run should already exist via CreateRun.
func NewTraceRecorder(s *Store, token string, log *slog.Logger) *TraceRecorder {
	if log == nil {
		log = slog.Default()
	}
	return &TraceRecorder{store: s, token: token, log: log}
}

// Record implements engine.Recorder.
func (r *TraceRecorder) Record(ev engine.TraceEvent) {
	if err := r.store.WriteEvent(context.Background(), r.token, ev); err != nil {
		r.log.Error("failed to persist trace event",
			"run_token", r.token,
			"seq", ev.Seq,
			"type", ev.Type,
			"error", err)
	}
}
