package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommandValidFile(t *testing.T) {
	path := writeScenario(t, "visit-home.yaml", passingScenario)

	out, err := executeCommand(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 1 scenario file(s) valid")
}

func TestValidateCommandInvalidFile(t *testing.T) {
	// steps is required and missing
	path := writeScenario(t, "broken.yaml", "name: broken\napp:\n  pages:\n    - path: /\n      route: index\n")

	out, err := executeCommand(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
}

func TestValidateCommandDirectory(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"visit-home.yaml":    passingScenario,
		"visit-missing.yaml": failingScenario,
	})

	// Both files are schema-valid even though one fails at runtime
	out, err := executeCommand(t, "validate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "2 scenario file(s) valid")
}

func TestValidateCommandJSONOutput(t *testing.T) {
	path := writeScenario(t, "broken.yaml", "name: broken\n")

	out, err := executeCommand(t, "--format", "json", "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "SCENARIO_INVALID", resp.Error.Code)
}

func TestValidateCommandPathNotFound(t *testing.T) {
	_, err := executeCommand(t, "validate", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateCommandEmptyDirectory(t *testing.T) {
	_, err := executeCommand(t, "validate", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
