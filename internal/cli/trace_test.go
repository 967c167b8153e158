package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordRun runs the passing scenario with recording enabled and
// returns the database path.
func recordRun(t *testing.T, token string) string {
	t.Helper()
	path := writeScenario(t, "visit-home.yaml", passingScenario)
	dbPath := filepath.Join(t.TempDir(), "traces.db")

	_, err := executeCommand(t, "run", path, "--db", dbPath, "--token", token)
	require.NoError(t, err)
	return dbPath
}

func TestTraceCommandTextOutput(t *testing.T) {
	dbPath := recordRun(t, "trace-run-1")

	out, err := executeCommand(t, "trace", "--db", dbPath, "--run", "trace-run-1")
	require.NoError(t, err)

	assert.Contains(t, out, "Trace for Run: trace-run-1")
	assert.Contains(t, out, "Scenario: visit-home")
	assert.Contains(t, out, "Status: Passed")
	assert.Contains(t, out, "=== Timeline ===")
	assert.Contains(t, out, "ENQUEUED  visit (helper)")
	assert.Contains(t, out, "ENQUEUED  andThen (barrier)")
	assert.Contains(t, out, "=== Stats ===")
}

func TestTraceCommandVerboseShowsArgs(t *testing.T) {
	dbPath := recordRun(t, "trace-run-1")

	out, err := executeCommand(t, "--verbose", "trace", "--db", dbPath, "--run", "trace-run-1")
	require.NoError(t, err)
	assert.Contains(t, out, `Args: ["/"]`)
	assert.Contains(t, out, "Entry: trace-run-1/1")
}

func TestTraceCommandHelperFilter(t *testing.T) {
	dbPath := recordRun(t, "trace-run-1")

	out, err := executeCommand(t, "trace", "--db", dbPath, "--run", "trace-run-1", "--helper", "visit")
	require.NoError(t, err)
	assert.Contains(t, out, "visit (helper)")
	assert.NotContains(t, out, "andThen")
}

func TestTraceCommandJSONOutput(t *testing.T) {
	dbPath := recordRun(t, "trace-run-1")

	out, err := executeCommand(t, "--format", "json", "trace", "--db", dbPath, "--run", "trace-run-1")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "trace-run-1", data["run_token"])
	assert.Equal(t, "visit-home", data["scenario"])

	timeline, ok := data["timeline"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, timeline)
}

func TestTraceCommandUnknownRun(t *testing.T) {
	dbPath := recordRun(t, "trace-run-1")

	out, err := executeCommand(t, "trace", "--db", dbPath, "--run", "no-such-run")
	require.NoError(t, err)
	assert.Contains(t, out, "No events found for run: no-such-run")
}

func TestRunsCommandListsRuns(t *testing.T) {
	dbPath := recordRun(t, "trace-run-1")

	out, err := executeCommand(t, "runs", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "TOKEN")
	assert.Contains(t, out, "trace-run-1")
	assert.Contains(t, out, "visit-home")
	assert.Contains(t, out, "Passed")
}

func TestRunsCommandEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")

	out, err := executeCommand(t, "runs", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")
}
