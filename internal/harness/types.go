package harness

import "github.com/stagehand-dev/stagehand/internal/engine"

// Result is the outcome of a scenario run.
// It implements engine.Recorder, so the session writes the trace into it
// directly as entries move through the queue.
type Result struct {
	// Pass indicates overall scenario success: no errors and, unless the
	// scenario allows them, no entry failures.
	Pass bool `json:"pass"`

	// Trace contains every recorded trace event in order.
	Trace []engine.TraceEvent `json:"trace"`

	// Errors contains assertion and execution error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Failures contains the messages of failed entries, in order.
	// Populated even when the scenario allows failures.
	Failures []string `json:"failures,omitempty"`

	// AppEvents is the scripted application's interaction log.
	AppEvents []string `json:"app_events,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []engine.TraceEvent{},
		Errors: []string{},
	}
}

// Record implements engine.Recorder.
func (r *Result) Record(ev engine.TraceEvent) {
	r.Trace = append(r.Trace, ev)
}

// AddError adds an error message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
