package engine

// TraceEvent is one observation of queue activity, stamped with a seq
// number from the session clock. The full ordered event list is the run's
// trace, used for assertions, golden comparison, and persistence.
type TraceEvent struct {
	// Seq is the event's logical timestamp, unique within a run.
	Seq int64 `json:"seq"`

	// Type is one of "enqueued", "started", "fulfilled", "failed", "sync".
	// "sync" covers immediate executions that bypass the queue.
	Type string `json:"type"`

	// EntryID identifies the entry, empty for sync executions.
	EntryID string `json:"entry_id,omitempty"`

	// Helper is the helper name ("andThen" for barriers).
	Helper string `json:"helper"`

	// Kind is "helper", "barrier", or "sync".
	Kind string `json:"kind"`

	// Args are the invocation arguments, nil when there are none.
	Args []any `json:"args,omitempty"`

	// Error holds the failure message for "failed" events.
	Error string `json:"error,omitempty"`
}

// Trace event type constants.
const (
	EventEnqueued  = "enqueued"
	EventStarted   = "started"
	EventFulfilled = "fulfilled"
	EventFailed    = "failed"
	EventSync      = "sync"
)

// Recorder receives trace events as the session produces them.
// Implementations: the harness result (in-memory) and the store's
// trace writer (SQLite). Record is called from the drain loop and from
// sync helper call sites; implementations need not be thread-safe beyond
// that single logical thread.
type Recorder interface {
	Record(ev TraceEvent)
}

// discardRecorder drops all events. Used when no recorder is configured.
type discardRecorder struct{}

func (discardRecorder) Record(TraceEvent) {}

// MultiRecorder fans events out to several recorders in order.
type MultiRecorder []Recorder

// Record implements Recorder.
func (m MultiRecorder) Record(ev TraceEvent) {
	for _, r := range m {
		r.Record(ev)
	}
}
