// Package testutil provides shared helpers for tests across packages.
package testutil

import (
	"sync"

	"github.com/stagehand-dev/stagehand/internal/engine"
)

// Recorder collects trace events in memory for test assertions.
//
// Unlike the harness result, Recorder can be reset for test reuse and
// inspected while a drain is still in progress.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type Recorder struct {
	mu     sync.Mutex
	events []engine.TraceEvent
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record implements engine.Recorder.
func (r *Recorder) Record(ev engine.TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events in arrival order.
func (r *Recorder) Events() []engine.TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]engine.TraceEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns "type:helper" strings for each event, a compact form
// for order assertions.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type + ":" + ev.Helper
	}
	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Reset discards all recorded events.
//
// Used for test reuse. After Reset(), the recorder behaves as new.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
