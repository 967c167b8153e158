package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/stagehand-dev/stagehand/internal/engine"
)

// SnapshotTrace serializes a run's trace to canonical JSON, one event per
// line wrapped in a snapshot object. Canonical serialization (RFC 8785)
// makes the bytes stable across runs and Go versions, so golden files
// compare exactly.
func SnapshotTrace(scenarioName, runToken string, trace []engine.TraceEvent) ([]byte, error) {
	events := make([]any, len(trace))
	for i, ev := range trace {
		obj := map[string]any{
			"seq":    ev.Seq,
			"type":   ev.Type,
			"helper": ev.Helper,
			"kind":   ev.Kind,
		}
		if ev.EntryID != "" {
			obj["entry_id"] = ev.EntryID
		}
		if len(ev.Args) > 0 {
			obj["args"] = ev.Args
		}
		if ev.Error != "" {
			obj["error"] = ev.Error
		}
		events[i] = obj
	}

	snapshot := map[string]any{
		"scenario_name": scenarioName,
		"trace":         events,
	}
	if runToken != "" {
		snapshot["run_token"] = runToken
	}

	return engine.MarshalCanonical(snapshot)
}

// RunWithGolden executes a scenario and compares its trace against the
// golden file testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	token := scenario.RunToken
	if token == "" {
		token = DefaultRunToken
	}
	if err := AssertGolden(t, scenario.Name, token, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already-computed result's trace against the
// golden file for scenarioName.
func AssertGolden(t *testing.T, scenarioName, runToken string, result *Result) error {
	t.Helper()

	traceJSON, err := SnapshotTrace(scenarioName, runToken, result.Trace)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
