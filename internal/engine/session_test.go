package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehand-dev/stagehand/internal/helper"
	"github.com/stagehand-dev/stagehand/internal/pending"
)

// nullApp satisfies helper.Application for tests that drive the session
// through custom helpers rather than the built-in surface.
type nullApp struct{}

func (nullApp) Visit(string) *pending.Result          { return pending.Fulfilled(nil) }
func (nullApp) Click(string) *pending.Result          { return pending.Fulfilled(nil) }
func (nullApp) FillIn(string, string) *pending.Result { return pending.Fulfilled(nil) }
func (nullApp) KeyEvent(string, string, int) *pending.Result {
	return pending.Fulfilled(nil)
}
func (nullApp) TriggerEvent(string, string, map[string]any) *pending.Result {
	return pending.Fulfilled(nil)
}
func (nullApp) CurrentPath() string      { return "/" }
func (nullApp) CurrentRouteName() string { return "index" }
func (nullApp) CurrentURL() string       { return "/" }
func (nullApp) Find(string, string) []string {
	return nil
}

// captureRecorder keeps every trace event in memory.
type captureRecorder struct {
	events []TraceEvent
}

func (r *captureRecorder) Record(ev TraceEvent) {
	r.events = append(r.events, ev)
}

func (r *captureRecorder) types() []string {
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type + ":" + ev.Helper
	}
	return out
}

func newTestSession(t *testing.T, setup func(reg *helper.Registry), opts ...SessionOption) (*Session, *captureRecorder) {
	t.Helper()

	reg := helper.NewRegistry()
	if setup != nil {
		setup(reg)
	}

	rec := &captureRecorder{}
	opts = append([]SessionOption{
		WithRecorder(rec),
		WithTokenGenerator(NewFixedGenerator("run-1")),
	}, opts...)

	return NewSession(reg, nullApp{}, opts...), rec
}

// immediate registers an async helper whose completion is already settled
// and which appends its name to order on invocation.
func immediate(reg *helper.Registry, name string, order *[]string) {
	err := reg.RegisterAsyncHelper(name, func(hc *helper.Context, args ...any) *pending.Result {
		*order = append(*order, name)
		return pending.Fulfilled(name)
	})
	if err != nil {
		panic(err)
	}
}

// deferred registers an async helper whose completion settles from a
// separate goroutine after a short delay.
func deferred(reg *helper.Registry, name string, order *[]string) {
	err := reg.RegisterAsyncHelper(name, func(hc *helper.Context, args ...any) *pending.Result {
		p := pending.New()
		go func() {
			time.Sleep(5 * time.Millisecond)
			*order = append(*order, name)
			p.Fulfill(name)
		}()
		return p
	})
	if err != nil {
		panic(err)
	}
}

func TestSessionFreezesRegistry(t *testing.T) {
	reg := helper.NewRegistry()
	NewSession(reg, nullApp{}, WithTokenGenerator(NewFixedGenerator("run-1")))

	assert.True(t, reg.Frozen())
	err := reg.RegisterHelper("late", func(hc *helper.Context, args ...any) (any, error) {
		return nil, nil
	})
	assert.True(t, helper.IsRegistryFrozen(err))
}

func TestSessionCallUnknownHelper(t *testing.T) {
	s, _ := newTestSession(t, nil)

	e, err := s.Call("nope")
	assert.Nil(t, e)
	assert.True(t, helper.IsUnknownHelper(err))
}

func TestSessionSyncHelperRunsImmediately(t *testing.T) {
	var ran bool
	s, rec := newTestSession(t, func(reg *helper.Registry) {
		require.NoError(t, reg.RegisterHelper("peek", func(hc *helper.Context, args ...any) (any, error) {
			ran = true
			return "value", nil
		}))
	})

	e, err := s.Call("peek")
	require.NoError(t, err)

	// Terminal before any drain.
	assert.True(t, ran)
	assert.Equal(t, StateFulfilled, e.State())
	assert.Equal(t, "value", e.Result())
	assert.Equal(t, 0, s.QueueLen())

	require.Len(t, rec.events, 1)
	assert.Equal(t, EventSync, rec.events[0].Type)
	assert.Equal(t, "peek", rec.events[0].Helper)
}

func TestSessionSyncHelperFailureRecorded(t *testing.T) {
	s, rec := newTestSession(t, func(reg *helper.Registry) {
		require.NoError(t, reg.RegisterHelper("bad", func(hc *helper.Context, args ...any) (any, error) {
			return nil, errors.New("no such element")
		}))
	})

	e, err := s.Call("bad")
	require.NoError(t, err)

	assert.Equal(t, StateFailed, e.State())
	assert.True(t, s.Failed())
	require.Len(t, s.Failures(), 1)
	assert.Equal(t, ErrCodeHelperFailed, s.Failures()[0].Code)
	assert.NotEmpty(t, rec.events[0].Error)
}

func TestSessionAsyncFIFOOrder(t *testing.T) {
	var order []string
	s, _ := newTestSession(t, func(reg *helper.Registry) {
		deferred(reg, "first", &order)
		immediate(reg, "second", &order)
		deferred(reg, "third", &order)
	})

	_, err := s.Call("first")
	require.NoError(t, err)
	_, err = s.Call("second")
	require.NoError(t, err)
	_, err = s.Call("third")
	require.NoError(t, err)

	// Nothing runs until the drain.
	assert.Empty(t, order)
	assert.Equal(t, 3, s.QueueLen())

	require.NoError(t, s.Drain(context.Background()))
	assert.Equal(t, []string{"first", "second", "third"}, order)
	assert.Equal(t, 0, s.QueueLen())
}

func TestSessionTraceEventOrder(t *testing.T) {
	var order []string
	s, rec := newTestSession(t, func(reg *helper.Registry) {
		immediate(reg, "visit", &order)
		immediate(reg, "click", &order)
	})

	_, err := s.Call("visit", "/contacts")
	require.NoError(t, err)
	_, err = s.Call("click", ".ok")
	require.NoError(t, err)
	require.NoError(t, s.Drain(context.Background()))

	assert.Equal(t, []string{
		"enqueued:visit",
		"enqueued:click",
		"started:visit",
		"fulfilled:visit",
		"started:click",
		"fulfilled:click",
	}, rec.types())

	// Seq numbers strictly increase across the trace.
	for i := 1; i < len(rec.events); i++ {
		assert.Greater(t, rec.events[i].Seq, rec.events[i-1].Seq)
	}

	// Entry IDs are derived from the fixed run token.
	assert.Equal(t, "run-1/1", rec.events[0].EntryID)
	assert.Equal(t, []any{"/contacts"}, rec.events[0].Args)
}

func TestSessionFailureDoesNotStopDrain(t *testing.T) {
	var order []string
	s, rec := newTestSession(t, func(reg *helper.Registry) {
		immediate(reg, "ok", &order)
		require.NoError(t, reg.RegisterAsyncHelper("boom", func(hc *helper.Context, args ...any) *pending.Result {
			order = append(order, "boom")
			return pending.Failed(errors.New("exploded"))
		}))
	})

	_, err := s.Call("ok")
	require.NoError(t, err)
	eBoom, err := s.Call("boom")
	require.NoError(t, err)
	eAfter, err := s.Call("ok")
	require.NoError(t, err)

	require.NoError(t, s.Drain(context.Background()))

	// The entry after the failure still ran.
	assert.Equal(t, []string{"ok", "boom", "ok"}, order)
	assert.Equal(t, StateFailed, eBoom.State())
	assert.Equal(t, StateFulfilled, eAfter.State())

	require.Len(t, s.Failures(), 1)
	fail := s.Failures()[0]
	assert.Equal(t, ErrCodeHelperFailed, fail.Code)
	assert.Equal(t, "boom", fail.Helper)
	assert.True(t, IsHelperFailure(fail))

	assert.Contains(t, rec.types(), "failed:boom")
}

func TestSessionHandlerPanicBecomesFailure(t *testing.T) {
	s, _ := newTestSession(t, func(reg *helper.Registry) {
		require.NoError(t, reg.RegisterAsyncHelper("panics", func(hc *helper.Context, args ...any) *pending.Result {
			panic("wild")
		}))
	})

	e, err := s.Call("panics")
	require.NoError(t, err)
	require.NoError(t, s.Drain(context.Background()))

	assert.Equal(t, StateFailed, e.State())
	require.Len(t, s.Failures(), 1)
	assert.Equal(t, ErrCodeHandlerPanic, s.Failures()[0].Code)
	assert.Contains(t, s.Failures()[0].Error(), "wild")
}

func TestSessionBarrierRunsAfterPriorEntries(t *testing.T) {
	var order []string
	s, _ := newTestSession(t, func(reg *helper.Registry) {
		deferred(reg, "nav", &order)
	})

	_, err := s.Call("nav")
	require.NoError(t, err)
	_, err = s.AndThen(func() error {
		order = append(order, "barrier")
		return nil
	})
	require.NoError(t, err)
	_, err = s.Call("nav")
	require.NoError(t, err)

	require.NoError(t, s.Drain(context.Background()))
	assert.Equal(t, []string{"nav", "barrier", "nav"}, order)
}

func TestSessionBarrierAfterFailedEntryStillRuns(t *testing.T) {
	var barrierRan bool
	s, _ := newTestSession(t, func(reg *helper.Registry) {
		require.NoError(t, reg.RegisterAsyncHelper("boom", func(hc *helper.Context, args ...any) *pending.Result {
			return pending.Failed(errors.New("exploded"))
		}))
	})

	_, err := s.Call("boom")
	require.NoError(t, err)
	_, err = s.AndThen(func() error {
		barrierRan = true
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, s.Drain(context.Background()))
	assert.True(t, barrierRan)
}

func TestSessionBarrierFailure(t *testing.T) {
	s, _ := newTestSession(t, nil)

	e, err := s.AndThen(func() error {
		return fmt.Errorf("assertion failed: want 3 contacts")
	})
	require.NoError(t, err)
	require.NoError(t, s.Drain(context.Background()))

	assert.Equal(t, StateFailed, e.State())
	require.Len(t, s.Failures(), 1)
	assert.Equal(t, ErrCodeBarrierFailed, s.Failures()[0].Code)
	assert.True(t, IsBarrierFailure(s.Failures()[0]))
}

func TestSessionBarrierPanicBecomesFailure(t *testing.T) {
	s, _ := newTestSession(t, nil)

	e, err := s.AndThen(func() error {
		panic("assert blew up")
	})
	require.NoError(t, err)
	require.NoError(t, s.Drain(context.Background()))

	assert.Equal(t, StateFailed, e.State())
	require.Len(t, s.Failures(), 1)
	assert.Equal(t, ErrCodeHandlerPanic, s.Failures()[0].Code)
}

func TestSessionBackToBackBarriers(t *testing.T) {
	var order []string
	s, _ := newTestSession(t, nil)

	_, err := s.AndThen(func() error {
		order = append(order, "first")
		return nil
	})
	require.NoError(t, err)
	_, err = s.AndThen(func() error {
		order = append(order, "second")
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, s.Drain(context.Background()))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestSessionBarrierCallbackEnqueuesAfterBarrier(t *testing.T) {
	var order []string
	s, _ := newTestSession(t, func(reg *helper.Registry) {
		immediate(reg, "click", &order)
	})

	_, err := s.AndThen(func() error {
		order = append(order, "barrier")
		_, cerr := s.Call("click")
		return cerr
	})
	require.NoError(t, err)

	require.NoError(t, s.Drain(context.Background()))
	assert.Equal(t, []string{"barrier", "click"}, order)
}

func TestSessionNestedCallsRunAsChildren(t *testing.T) {
	// addContact composes two built-in-style calls; they attach as
	// children and finish before addContact settles.
	var order []string
	var sess *Session
	sess, _ = newTestSession(t, func(reg *helper.Registry) {
		immediate(reg, "fillIn", &order)
		immediate(reg, "click", &order)
		immediate(reg, "visit", &order)
		require.NoError(t, reg.RegisterAsyncHelper("addContact", func(hc *helper.Context, args ...any) *pending.Result {
			order = append(order, "addContact")
			if _, err := sess.Call("fillIn", "#name", "Bob"); err != nil {
				return pending.Failed(err)
			}
			if _, err := sess.Call("click", "#create"); err != nil {
				return pending.Failed(err)
			}
			return pending.Fulfilled(nil)
		}))
	})

	parent, err := sess.Call("addContact", "Bob")
	require.NoError(t, err)
	after, err := sess.Call("visit", "/done")
	require.NoError(t, err)

	require.NoError(t, sess.Drain(context.Background()))

	// Children complete before the entry queued after the composite.
	assert.Equal(t, []string{"addContact", "fillIn", "click", "visit"}, order)
	assert.Equal(t, StateFulfilled, parent.State())
	assert.Equal(t, StateFulfilled, after.State())

	children := parent.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "fillIn", children[0].Name())
	assert.Equal(t, "click", children[1].Name())
	assert.True(t, children[0].Terminal())
	assert.True(t, children[1].Terminal())
}

func TestSessionFailedChildFailsParent(t *testing.T) {
	var sess *Session
	sess, _ = newTestSession(t, func(reg *helper.Registry) {
		require.NoError(t, reg.RegisterAsyncHelper("boom", func(hc *helper.Context, args ...any) *pending.Result {
			return pending.Failed(errors.New("exploded"))
		}))
		require.NoError(t, reg.RegisterAsyncHelper("composite", func(hc *helper.Context, args ...any) *pending.Result {
			if _, err := sess.Call("boom"); err != nil {
				return pending.Failed(err)
			}
			return pending.Fulfilled(nil)
		}))
	})

	parent, err := sess.Call("composite")
	require.NoError(t, err)
	require.NoError(t, sess.Drain(context.Background()))

	assert.Equal(t, StateFailed, parent.State())
	require.Len(t, parent.Children(), 1)
	assert.Equal(t, StateFailed, parent.Children()[0].State())

	// Both the child and the parent report as failures.
	assert.Len(t, sess.Failures(), 2)
}

func TestSessionDrainEmptyQueueIsNoop(t *testing.T) {
	s, rec := newTestSession(t, nil)

	require.NoError(t, s.Drain(context.Background()))
	require.NoError(t, s.Drain(context.Background()))
	assert.Empty(t, rec.events)
}

func TestSessionDrainContextCancelled(t *testing.T) {
	s, _ := newTestSession(t, func(reg *helper.Registry) {
		require.NoError(t, reg.RegisterAsyncHelper("hangs", func(hc *helper.Context, args ...any) *pending.Result {
			return pending.New() // never settles
		}))
	})

	_, err := s.Call("hangs")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = s.Drain(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSessionCloseRejectsCalls(t *testing.T) {
	var order []string
	s, _ := newTestSession(t, func(reg *helper.Registry) {
		immediate(reg, "visit", &order)
	})

	s.Close()

	_, err := s.Call("visit")
	assert.ErrorIs(t, err, ErrSessionClosed)

	_, err = s.AndThen(func() error { return nil })
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSessionToken(t *testing.T) {
	s, _ := newTestSession(t, nil)
	assert.Equal(t, "run-1", s.Token())
}

func TestSessionWithClock(t *testing.T) {
	var order []string
	s, rec := newTestSession(t, func(reg *helper.Registry) {
		immediate(reg, "visit", &order)
	}, WithClock(NewClockAt(100)))

	_, err := s.Call("visit")
	require.NoError(t, err)
	require.NoError(t, s.Drain(context.Background()))

	require.NotEmpty(t, rec.events)
	assert.Equal(t, int64(101), rec.events[0].Seq)
	assert.Equal(t, "run-1/101", rec.events[0].EntryID)
}
