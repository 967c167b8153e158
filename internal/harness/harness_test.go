package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehand-dev/stagehand/internal/app"
	"github.com/stagehand-dev/stagehand/internal/engine"
	"github.com/stagehand-dev/stagehand/internal/testutil"
)

func minimalApp() app.Config {
	return app.Config{
		Pages: []app.Page{{Path: "/", Route: "index"}},
	}
}

func mustParse(t *testing.T, yaml string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(yaml))
	require.NoError(t, err)
	return s
}

func TestRunAddContactScenario(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "add-contact.yaml"))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Failures)
}

func TestRunRecordsTraceInOrder(t *testing.T) {
	s := mustParse(t, `
name: order
description: FIFO order across two calls and a barrier
run_token: run-order
app:
  pages:
    - path: /
      route: index
      elements:
        - selector: "#ok"
steps:
  - call: visit
    args: ["/"]
  - call: click
    args: ["#ok"]
  - wait: {}
`)

	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	var types []string
	for _, ev := range result.Trace {
		types = append(types, ev.Type+":"+ev.Helper)
	}
	assert.Equal(t, []string{
		"enqueued:visit",
		"enqueued:click",
		"enqueued:andThen",
		"started:visit",
		"fulfilled:visit",
		"started:click",
		"fulfilled:click",
		"started:andThen",
		"fulfilled:andThen",
	}, types)

	// Entry IDs carry the fixed run token.
	assert.Equal(t, "run-order/1", result.Trace[0].EntryID)
}

func TestRunFailureContinuesDraining(t *testing.T) {
	s := mustParse(t, `
name: missing-element
description: A failed click is recorded and the run continues
run_token: run-fail
allow_failures: true
app:
  pages:
    - path: /
      route: index
      elements:
        - selector: "#ok"
steps:
  - call: visit
    args: ["/"]
  - call: click
    args: ["#missing"]
  - call: click
    args: ["#ok"]
  - wait: {}
assertions:
  - type: failure_count
    count: 1
  - type: failure_contains
    message: no element
  - type: trace_count
    helper: click
    event: failed
    count: 1
  - type: trace_count
    helper: click
    event: fulfilled
    count: 1
  - type: entry_state
    helper: andThen
    state: fulfilled
`)

	result, err := Run(s)
	require.NoError(t, err)

	// allow_failures keeps the failure out of Errors; assertions all pass.
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0], "HELPER_FAILED")
}

func TestRunFailureFailsResultByDefault(t *testing.T) {
	s := mustParse(t, `
name: strict
description: Without allow_failures a failed helper fails the run
app:
  pages:
    - path: /
steps:
  - call: visit
    args: ["/nowhere"]
`)

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "no page with path")
}

func TestRunBarrierMismatchFailsRun(t *testing.T) {
	s := mustParse(t, `
name: wrong-path
description: A barrier expectation mismatch is a run failure
app:
  pages:
    - path: /
      route: index
steps:
  - call: visit
    args: ["/"]
  - wait:
      current_path: /somewhere-else
`)

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Failures)
	assert.Contains(t, result.Failures[0], "BARRIER_FAILED")
	assert.Contains(t, result.Failures[0], "current_path")
}

func TestRunSyncHelperExecutesAtCallTime(t *testing.T) {
	// currentPath runs when the step is reached, before the queued visit
	// drains, so it observes the empty pre-visit state.
	s := mustParse(t, `
name: sync-immediate
description: Sync helpers bypass the queue entirely
app:
  pages:
    - path: /
      route: index
steps:
  - call: visit
    args: ["/"]
  - call: currentPath
assertions:
  - type: trace_contains
    helper: currentPath
    event: sync
`)

	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	// The sync event precedes every started event in the trace.
	var syncIdx, startedIdx int
	for i, ev := range result.Trace {
		if ev.Type == engine.EventSync {
			syncIdx = i
		}
		if ev.Type == engine.EventStarted && startedIdx == 0 {
			startedIdx = i
		}
	}
	assert.Less(t, syncIdx, startedIdx)
}

func TestRunUnknownHelperInStep(t *testing.T) {
	s := mustParse(t, `
name: unknown
description: Unknown helper names abort the run setup
app:
  pages:
    - path: /
steps:
  - call: warp
`)

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNKNOWN_HELPER")
}

func TestRunCompositeChildFailureFailsComposite(t *testing.T) {
	s := mustParse(t, `
name: composite-fail
description: A failing inner call fails the composite entry
run_token: run-cf
allow_failures: true
app:
  pages:
    - path: /
      route: index
steps:
  - call: visit
    args: ["/"]
  - call: breakIt
helpers:
  - name: breakIt
    steps:
      - call: click
        args: ["#missing"]
assertions:
  - type: entry_state
    helper: breakIt
    state: failed
  - type: entry_state
    helper: click
    state: failed
  - type: failure_count
    count: 2
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunWithExtraRecorder(t *testing.T) {
	rec := testutil.NewRecorder()

	s := mustParse(t, `
name: extra
description: Extra recorders observe the same trace as the result
app:
  pages:
    - path: /
steps:
  - call: visit
    args: ["/"]
`)

	result, err := Run(s, WithExtraRecorder(rec))
	require.NoError(t, err)

	assert.Equal(t, result.Trace, rec.Events())
}
