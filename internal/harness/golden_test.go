package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGoldenVisitAndCheck(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "visit-and-check.yaml"))
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestSnapshotTraceDeterministic(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "visit-and-check.yaml"))
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := SnapshotTrace(s.Name, s.RunToken, first.Trace)
	require.NoError(t, err)
	b, err := SnapshotTrace(s.Name, s.RunToken, second.Trace)
	require.NoError(t, err)

	assert.Equal(t, string(a), string(b))
}

func TestSnapshotTraceRejectsUnserializableArgs(t *testing.T) {
	result := sampleResult()
	result.Trace[0].Args = []any{3.14}

	_, err := SnapshotTrace("bad", "run", result.Trace)
	assert.ErrorContains(t, err, "floats are forbidden")
}
