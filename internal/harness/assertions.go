package harness

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/stagehand-dev/stagehand/internal/engine"
)

// EvaluateAssertions checks every assertion against the run result and
// returns all failure messages. Does not fail fast: a scenario report
// lists every violated assertion.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if msg := evaluateAssertion(result, &a); msg != "" {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %s", i, a.Type, msg))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a *Assertion) string {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result, a)
	case AssertTraceOrder:
		return assertTraceOrder(result, a)
	case AssertTraceCount:
		return assertTraceCount(result, a)
	case AssertEntryState:
		return assertEntryState(result, a)
	case AssertAppEvents:
		return assertAppEvents(result, a)
	case AssertFailureCount:
		return assertFailureCount(result, a)
	case AssertFailureContains:
		return assertFailureContains(result, a)
	default:
		return fmt.Sprintf("unknown assertion type %q", a.Type)
	}
}

// eventType returns the assertion's event filter with per-type defaults.
func eventType(a *Assertion, fallback string) string {
	if a.Event != "" {
		return a.Event
	}
	return fallback
}

// matchEvent reports whether ev matches the helper name and event type.
func matchEvent(ev engine.TraceEvent, helper, event string) bool {
	return ev.Helper == helper && ev.Type == event
}

func assertTraceContains(result *Result, a *Assertion) string {
	event := eventType(a, engine.EventEnqueued)
	for _, ev := range result.Trace {
		if !matchEvent(ev, a.Helper, event) {
			continue
		}
		if a.Args == nil || reflect.DeepEqual(ev.Args, a.Args) {
			return ""
		}
	}
	if a.Args != nil {
		return fmt.Sprintf("no %q event for helper %q with args %v", event, a.Helper, a.Args)
	}
	return fmt.Sprintf("no %q event for helper %q", event, a.Helper)
}

// assertTraceOrder checks that events for the listed helpers appear in
// order. Subsequence match: unrelated events may interleave.
func assertTraceOrder(result *Result, a *Assertion) string {
	event := eventType(a, engine.EventStarted)

	idx := 0
	for _, ev := range result.Trace {
		if idx >= len(a.Helpers) {
			break
		}
		if matchEvent(ev, a.Helpers[idx], event) {
			idx++
		}
	}
	if idx < len(a.Helpers) {
		return fmt.Sprintf("%q events out of order: matched %d of %v, stuck at %q",
			event, idx, a.Helpers, a.Helpers[idx])
	}
	return ""
}

func assertTraceCount(result *Result, a *Assertion) string {
	event := eventType(a, engine.EventEnqueued)

	count := 0
	for _, ev := range result.Trace {
		if matchEvent(ev, a.Helper, event) {
			count++
		}
	}
	if count != a.Count {
		return fmt.Sprintf("helper %q has %d %q events, want %d", a.Helper, count, event, a.Count)
	}
	return ""
}

// assertEntryState checks the terminal state of the last entry for a
// helper. Sync executions report via their single "sync" event: an empty
// error means fulfilled.
func assertEntryState(result *Result, a *Assertion) string {
	got := ""
	for _, ev := range result.Trace {
		if ev.Helper != a.Helper {
			continue
		}
		switch ev.Type {
		case engine.EventFulfilled:
			got = "fulfilled"
		case engine.EventFailed:
			got = "failed"
		case engine.EventSync:
			if ev.Error == "" {
				got = "fulfilled"
			} else {
				got = "failed"
			}
		}
	}
	if got == "" {
		return fmt.Sprintf("no terminal event for helper %q", a.Helper)
	}
	if got != a.State {
		return fmt.Sprintf("helper %q ended %s, want %s", a.Helper, got, a.State)
	}
	return ""
}

func assertAppEvents(result *Result, a *Assertion) string {
	if !reflect.DeepEqual(result.AppEvents, a.Events) {
		return fmt.Sprintf("app events %v, want %v", result.AppEvents, a.Events)
	}
	return ""
}

func assertFailureCount(result *Result, a *Assertion) string {
	if len(result.Failures) != a.Count {
		return fmt.Sprintf("run recorded %d failures, want %d: %v",
			len(result.Failures), a.Count, result.Failures)
	}
	return ""
}

func assertFailureContains(result *Result, a *Assertion) string {
	for _, f := range result.Failures {
		if strings.Contains(f, a.Message) {
			return ""
		}
	}
	return fmt.Sprintf("no failure contains %q in %v", a.Message, result.Failures)
}
