package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/stagehand-dev/stagehand/internal/helper"
	"github.com/stagehand-dev/stagehand/internal/pending"
)

// ErrSessionClosed is returned by Call and AndThen after Close.
var ErrSessionClosed = errors.New("session is closed")

// Session binds a helper registry to an application under test and owns
// the execution queue for one test run.
//
// Thread-safety model:
//   - Call / AndThen: safe from any goroutine, though normal usage is the
//     single test goroutine plus handlers running inside Drain
//   - Drain: must be called from exactly one goroutine at a time
//
// INVARIANTS:
//   - At most one entry is in flight at any time
//   - Top-level entries execute in exact enqueue order
//   - An entry's children execute before the entry settles
type Session struct {
	reg    *helper.Registry
	hc     *helper.Context
	queue  *workQueue
	clock  *Clock
	tokens TokenGenerator
	token  string
	rec    Recorder
	log    *slog.Logger

	mu       sync.Mutex
	current  *Entry // entry whose handler is executing, for call nesting
	failures []*ExecError
	draining bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session's structured logger.
// Defaults to slog.Default().
func WithLogger(log *slog.Logger) SessionOption {
	return func(s *Session) { s.log = log }
}

// WithRecorder sets the trace recorder.
// Defaults to a recorder that discards all events. Use a MultiRecorder to
// record to several sinks at once.
func WithRecorder(rec Recorder) SessionOption {
	return func(s *Session) { s.rec = rec }
}

// WithTokenGenerator sets the run token generator.
// Defaults to UUIDv7Generator. Tests use NewFixedGenerator for
// deterministic run tokens and entry IDs.
func WithTokenGenerator(gen TokenGenerator) SessionOption {
	return func(s *Session) { s.tokens = gen }
}

// WithClock sets the logical clock, e.g. to resume seq numbering against
// an existing trace store.
func WithClock(clock *Clock) SessionOption {
	return func(s *Session) { s.clock = clock }
}

// NewSession creates a session over a registry and application.
//
// The registry is frozen here: every helper must be registered before the
// session exists, mirroring the requirement that helpers exist before the
// application starts. Late registration fails with RegistryFrozenError.
func NewSession(reg *helper.Registry, app helper.Application, opts ...SessionOption) *Session {
	s := &Session{
		reg:    reg,
		queue:  newWorkQueue(),
		clock:  NewClock(),
		tokens: UUIDv7Generator{},
		rec:    discardRecorder{},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.token = s.tokens.Generate()
	s.hc = &helper.Context{App: app, Log: s.log}
	reg.Freeze()

	return s
}

// Token returns the session's run token.
func (s *Session) Token() string { return s.token }

// Clock returns the session's logical clock.
func (s *Session) Clock() *Clock { return s.clock }

// QueueLen returns the number of pending top-level entries.
// Useful for monitoring and testing.
func (s *Session) QueueLen() int { return s.queue.Len() }

// Call invokes a helper by name.
//
// Sync helpers execute immediately and synchronously; the returned entry
// is already terminal and carries the handler's result. Async helpers
// enqueue a pending entry and return without blocking; the entry reaches
// a terminal state during Drain.
//
// If called while another helper's handler is executing, an async entry
// attaches as a child of the running entry instead of joining the
// top-level queue: it runs right after the parent's own work, and the
// parent settles only once all children are terminal.
//
// Fails with UnknownHelperError for unregistered names.
func (s *Session) Call(name string, args ...any) (*Entry, error) {
	d, err := s.reg.Lookup(name)
	if err != nil {
		return nil, err
	}

	if d.Kind() == helper.KindSync {
		return s.callSync(d, args)
	}
	return s.callAsync(d, args)
}

// callSync executes a sync helper at the call site, bypassing the queue.
func (s *Session) callSync(d *helper.Descriptor, args []any) (*Entry, error) {
	seq := s.clock.Next()
	e := &Entry{
		id:    s.entryID(seq),
		seq:   seq,
		name:  d.Name(),
		args:  args,
		kind:  EntryHelper,
		state: StatePending,
	}

	e.markRunning()
	value, err := s.invokeSync(d, e, args)

	ev := TraceEvent{
		Seq:    seq,
		Type:   EventSync,
		Helper: d.Name(),
		Kind:   "sync",
		Args:   args,
	}
	if err != nil {
		fail := NewHelperFailure(e, err)
		e.settle(nil, fail)
		s.addFailure(fail)
		ev.Error = fail.Error()
		s.log.Error("sync helper failed", "helper", d.Name(), "seq", seq, "error", err)
	} else {
		e.settle(value, nil)
		s.log.Debug("sync helper executed", "helper", d.Name(), "seq", seq)
	}
	s.rec.Record(ev)

	return e, nil
}

// invokeSync runs a sync handler with panic recovery.
func (s *Session) invokeSync(d *helper.Descriptor, e *Entry, args []any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, err = nil, NewPanicFailure(e, r)
		}
	}()
	return d.InvokeSync(s.hc, args...)
}

// callAsync enqueues a pending entry for an async helper.
func (s *Session) callAsync(d *helper.Descriptor, args []any) (*Entry, error) {
	seq := s.clock.Next()
	e := &Entry{
		id:    s.entryID(seq),
		seq:   seq,
		name:  d.Name(),
		args:  args,
		kind:  EntryHelper,
		state: StatePending,
	}
	e.invoke = func() *pending.Result {
		p := d.InvokeAsync(s.hc, args...)
		if p == nil {
			// A nil future means the helper had no deferred work.
			return pending.Fulfilled(nil)
		}
		return p
	}

	s.mu.Lock()
	parent := s.current
	s.mu.Unlock()

	if parent != nil {
		parent.addChild(e)
	} else if !s.queue.Enqueue(e) {
		return nil, ErrSessionClosed
	}

	s.rec.Record(TraceEvent{
		Seq:     seq,
		Type:    EventEnqueued,
		EntryID: e.id,
		Helper:  d.Name(),
		Kind:    e.kind.String(),
		Args:    args,
	})
	s.log.Debug("entry enqueued", "helper", d.Name(), "entry_id", e.id, "seq", seq, "nested", parent != nil)

	return e, nil
}

// AndThen enqueues a barrier entry wrapping cb.
//
// The callback runs only once every entry enqueued strictly before it is
// terminal (fulfilled or failed), and observes the application state as it
// exists at that point. Helpers called from inside the callback are
// appended to the top-level queue, after the barrier. A non-nil error from
// cb (or a panic) marks the barrier Failed exactly like a failed helper;
// draining continues.
func (s *Session) AndThen(cb func() error) (*Entry, error) {
	seq := s.clock.Next()
	e := &Entry{
		id:      s.entryID(seq),
		seq:     seq,
		name:    "andThen",
		kind:    EntryBarrier,
		state:   StatePending,
		barrier: cb,
	}

	if !s.queue.Enqueue(e) {
		return nil, ErrSessionClosed
	}

	s.rec.Record(TraceEvent{
		Seq:     seq,
		Type:    EventEnqueued,
		EntryID: e.id,
		Helper:  e.name,
		Kind:    e.kind.String(),
	})
	s.log.Debug("barrier enqueued", "entry_id", e.id, "seq", seq)

	return e, nil
}

// Drain processes the queue until it is empty.
//
// Entries run one at a time in enqueue order; for each async entry the
// loop waits on its completion future before starting the next. Draining
// an already-empty queue is a no-op that returns immediately.
//
// Handler failures do not stop draining; they are recorded and reported
// via Failures. The context is for process-level shutdown only: with a
// background context, Drain waits indefinitely on each completion, which
// is the documented default (no per-entry timeout, no cancellation of
// individual entries).
func (s *Session) Drain(ctx context.Context) error {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return fmt.Errorf("drain already in progress")
	}
	s.draining = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.draining = false
		s.mu.Unlock()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		e, ok := s.queue.TryDequeue()
		if !ok {
			// Entries are enqueued only by this goroutine and by handlers
			// it runs, so an empty queue means the drain is complete.
			return nil
		}

		if err := s.execute(ctx, e); err != nil {
			return err
		}
	}
}

// execute runs one entry to a terminal state.
// Returns a non-nil error only on context cancellation; handler failures
// are recorded and absorbed.
func (s *Session) execute(ctx context.Context, e *Entry) error {
	e.markRunning()
	s.rec.Record(TraceEvent{
		Seq:     s.clock.Next(),
		Type:    EventStarted,
		EntryID: e.id,
		Helper:  e.name,
		Kind:    e.kind.String(),
	})
	s.log.Debug("entry started", "helper", e.name, "entry_id", e.id, "seq", e.seq)

	var value any
	var execErr error

	switch e.kind {
	case EntryBarrier:
		execErr = s.runBarrier(e)

	case EntryHelper:
		p := s.invokeEntry(e)

		v, err := p.Wait(ctx)
		if ctx.Err() != nil {
			s.settleEntry(e, nil, NewHelperFailure(e, ctx.Err()))
			return ctx.Err()
		}
		value, execErr = v, err

		// Children enqueued by the handler run before the entry settles.
		// The slice is stable here: nesting calls happen synchronously
		// inside the handler, which has returned.
		for _, child := range e.Children() {
			if cerr := s.execute(ctx, child); cerr != nil {
				s.settleEntry(e, nil, NewHelperFailure(e, cerr))
				return cerr
			}
			if child.Failed() && execErr == nil {
				execErr = fmt.Errorf("nested call %s: %w", child.Name(), child.Err())
			}
		}
	}

	if execErr != nil {
		var fail *ExecError
		if !errors.As(execErr, &fail) || fail.EntryID != e.id {
			if e.kind == EntryBarrier {
				fail = NewBarrierFailure(e, execErr)
			} else {
				fail = NewHelperFailure(e, execErr)
			}
		}
		s.settleEntry(e, nil, fail)
	} else {
		s.settleEntry(e, value, nil)
	}

	return nil
}

// invokeEntry runs an async handler with the entry installed as the
// nesting target and with panic recovery.
func (s *Session) invokeEntry(e *Entry) (p *pending.Result) {
	defer func() {
		if r := recover(); r != nil {
			p = pending.Failed(NewPanicFailure(e, r))
		}
	}()

	s.mu.Lock()
	prev := s.current
	s.current = e
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.current = prev
		s.mu.Unlock()
	}()

	return e.invoke()
}

// runBarrier runs a barrier callback with panic recovery.
// The nesting target stays nil, so helpers called by the callback join
// the top-level queue behind the barrier.
func (s *Session) runBarrier(e *Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewPanicFailure(e, r)
		}
	}()
	if e.barrier == nil {
		return nil
	}
	return e.barrier()
}

// settleEntry records the terminal transition and any failure.
func (s *Session) settleEntry(e *Entry, value any, fail *ExecError) {
	if fail != nil {
		e.settle(nil, fail)
		s.addFailure(fail)
		s.rec.Record(TraceEvent{
			Seq:     s.clock.Next(),
			Type:    EventFailed,
			EntryID: e.id,
			Helper:  e.name,
			Kind:    e.kind.String(),
			Error:   fail.Error(),
		})
		s.log.Error("entry failed",
			"helper", e.name,
			"entry_id", e.id,
			"seq", e.seq,
			"error", fail,
		)
		return
	}

	e.settle(value, nil)
	s.rec.Record(TraceEvent{
		Seq:     s.clock.Next(),
		Type:    EventFulfilled,
		EntryID: e.id,
		Helper:  e.name,
		Kind:    e.kind.String(),
	})
	s.log.Debug("entry fulfilled", "helper", e.name, "entry_id", e.id, "seq", e.seq)
}

// addFailure appends to the session failure list.
func (s *Session) addFailure(fail *ExecError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, fail)
}

// Failures returns every execution failure recorded so far, in order.
func (s *Session) Failures() []*ExecError {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ExecError, len(s.failures))
	copy(out, s.failures)
	return out
}

// Failed reports whether any entry failed during the run.
func (s *Session) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.failures) > 0
}

// Close shuts the session down: further Call/AndThen enqueues fail with
// ErrSessionClosed. Entries already queued can still be drained.
func (s *Session) Close() {
	s.queue.Close()
}

// entryID derives a stable entry identifier from the run token and seq.
func (s *Session) entryID(seq int64) string {
	return fmt.Sprintf("%s/%d", s.token, seq)
}
