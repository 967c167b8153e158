package engine

import (
	"sync"

	"github.com/stagehand-dev/stagehand/internal/pending"
)

// EntryKind distinguishes queued entry kinds.
type EntryKind int

const (
	// EntryHelper is an async helper invocation awaiting its completion.
	EntryHelper EntryKind = iota + 1
	// EntryBarrier is a deferred callback that runs once all earlier
	// entries are terminal.
	EntryBarrier
)

// String returns the lowercase kind name used in traces.
func (k EntryKind) String() string {
	switch k {
	case EntryHelper:
		return "helper"
	case EntryBarrier:
		return "barrier"
	default:
		return "unknown"
	}
}

// State is the lifecycle state of a queue entry.
//
// Transitions: Pending -> Running -> {Fulfilled, Failed}.
// No entry re-enters Running after reaching a terminal state; violating
// transitions panic, since they indicate a bug in the drain loop rather
// than a runtime condition.
type State int

const (
	// StatePending means the entry is enqueued, not yet started.
	StatePending State = iota + 1
	// StateRunning means the entry's handler has been invoked and its
	// completion is being awaited.
	StateRunning
	// StateFulfilled means the entry completed successfully.
	StateFulfilled
	// StateFailed means the entry's handler or a child failed.
	StateFailed
)

// String returns the lowercase state name used in traces.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateFulfilled:
		return "fulfilled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Entry is one scheduled invocation: an async helper call or a barrier.
//
// Entries are created at call time and owned by the session. The drain
// loop is the only mutator of state; external callers may read state at
// any time.
type Entry struct {
	id   string
	seq  int64
	name string
	args []any
	kind EntryKind

	// invoke runs the bound helper handler (helper entries only).
	invoke func() *pending.Result
	// barrier is the deferred callback (barrier entries only).
	barrier func() error

	mu       sync.Mutex
	state    State
	result   any
	err      error
	children []*Entry
}

// ID returns the entry's identifier (run token + enqueue seq).
func (e *Entry) ID() string { return e.id }

// Seq returns the enqueue sequence number.
func (e *Entry) Seq() int64 { return e.seq }

// Name returns the helper name, or "andThen" for barriers.
func (e *Entry) Name() string { return e.name }

// Args returns the invocation arguments.
func (e *Entry) Args() []any { return e.args }

// Kind returns the entry kind.
func (e *Entry) Kind() EntryKind { return e.kind }

// State returns the entry's current lifecycle state.
func (e *Entry) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Result returns the value the entry settled with. Meaningful only once
// the entry is terminal; sync helper entries carry the handler's return
// value, async entries the value their completion fulfilled with.
func (e *Entry) Result() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// Err returns the failure recorded on the entry, nil if none.
func (e *Entry) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Terminal reports whether the entry reached Fulfilled or Failed.
func (e *Entry) Terminal() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateFulfilled || e.state == StateFailed
}

// Failed reports whether the entry reached the Failed state.
func (e *Entry) Failed() bool {
	return e.State() == StateFailed
}

// Children returns a snapshot of the entries called from inside this
// entry's handler. They execute after the parent's own work, before the
// parent settles.
func (e *Entry) Children() []*Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Entry, len(e.children))
	copy(out, e.children)
	return out
}

// markRunning transitions Pending -> Running.
func (e *Entry) markRunning() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePending {
		panic("engine: entry " + e.id + " started in state " + e.state.String())
	}
	e.state = StateRunning
}

// settle transitions Running -> Fulfilled (err == nil) or Failed.
func (e *Entry) settle(value any, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRunning {
		panic("engine: entry " + e.id + " settled in state " + e.state.String())
	}
	if err != nil {
		e.state = StateFailed
		e.err = err
		return
	}
	e.state = StateFulfilled
	e.result = value
}

// addChild appends a nested call made while this entry's handler runs.
func (e *Entry) addChild(child *Entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.children = append(e.children, child)
}
