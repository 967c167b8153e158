// Package pending provides the completion future used to signal when an
// asynchronous helper has finished its work.
//
// A Result starts unsettled. Exactly one of Fulfill or Fail takes effect;
// later settle attempts are ignored (first writer wins). Consumers wait on
// Done or Wait. The queue drain loop waits on a Result before starting the
// next queued entry, which is what makes enqueue order equal execution
// order regardless of each helper's real-world latency.
package pending

import (
	"context"
	"sync"
)

// Result is a settle-once completion future.
//
// Thread-safety: all methods are safe for concurrent use. Producers
// (application code, background goroutines) settle; the single drain loop
// consumes.
type Result struct {
	mu      sync.Mutex
	done    chan struct{}
	settled bool
	value   any
	err     error
}

// New creates an unsettled Result.
func New() *Result {
	return &Result{done: make(chan struct{})}
}

// Fulfilled creates a Result already settled with a value.
// Used by synchronous work wrapped in an async shape, and by composite
// helpers whose own work is nothing but their child calls.
func Fulfilled(value any) *Result {
	r := New()
	r.Fulfill(value)
	return r
}

// Failed creates a Result already settled with an error.
func Failed(err error) *Result {
	r := New()
	r.Fail(err)
	return r
}

// Fulfill settles the Result with a value.
// Returns false if the Result was already settled (no-op).
func (r *Result) Fulfill(value any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.settled {
		return false
	}
	r.settled = true
	r.value = value
	close(r.done)
	return true
}

// Fail settles the Result with an error.
// Returns false if the Result was already settled (no-op).
func (r *Result) Fail(err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.settled {
		return false
	}
	r.settled = true
	r.err = err
	close(r.done)
	return true
}

// Done returns a channel that is closed once the Result is settled.
// Use with select for context-aware waiting.
func (r *Result) Done() <-chan struct{} {
	return r.done
}

// Settled reports whether the Result has reached a terminal state.
func (r *Result) Settled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settled
}

// Value returns the settled value and error.
// Only meaningful after Done is closed; before that it returns zero values.
func (r *Result) Value() (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value, r.err
}

// Wait blocks until the Result settles or the context is cancelled.
// There is no per-entry timeout: with a background context this waits
// indefinitely, which is the documented default.
func (r *Result) Wait(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
		return r.Value()
	}
}
