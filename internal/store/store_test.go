package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehand-dev/stagehand/internal/engine"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenAppliesPragmas(t *testing.T) {
	// :memory: databases report journal_mode "memory", so use a real file.
	path := filepath.Join(t.TempDir(), "trace.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	var version int
	require.NoError(t, s2.DB().QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestCreateRunIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRun(ctx, "run-1", "visit-and-check"))
	require.NoError(t, s.CreateRun(ctx, "run-1", "visit-and-check"))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].Token)
	assert.Equal(t, "visit-and-check", runs[0].Scenario)
	assert.Nil(t, runs[0].Pass)
}

func TestFinishRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRun(ctx, "run-1", "visit-and-check"))
	require.NoError(t, s.FinishRun(ctx, "run-1", true))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.NotNil(t, runs[0].Pass)
	assert.True(t, *runs[0].Pass)
}

func TestFinishRunUnknownToken(t *testing.T) {
	s := openTestStore(t)

	err := s.FinishRun(context.Background(), "no-such-run", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown run token")
}

func TestTraceRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRun(ctx, "run-1", "add-contact"))

	events := []engine.TraceEvent{
		{Seq: 1, Type: engine.EventEnqueued, EntryID: "run-1/1", Helper: "visit", Kind: "helper", Args: []any{"/contacts"}},
		{Seq: 2, Type: engine.EventSync, Helper: "keyEvent", Kind: "sync", Args: []any{"#name", "keydown", int64(13)}},
		{Seq: 3, Type: engine.EventStarted, EntryID: "run-1/1", Helper: "visit", Kind: "helper"},
		{Seq: 4, Type: engine.EventFailed, EntryID: "run-1/1", Helper: "visit", Kind: "helper", Error: "no page with path /contacts"},
	}
	for _, ev := range events {
		require.NoError(t, s.WriteEvent(ctx, "run-1", ev))
	}

	got, err := s.ReadTrace(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, events, got)
}

func TestTraceRoundTripMapArgs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRun(ctx, "run-1", "trigger"))

	ev := engine.TraceEvent{
		Seq:     1,
		Type:    engine.EventEnqueued,
		EntryID: "run-1/1",
		Helper:  "triggerEvent",
		Kind:    "helper",
		Args:    []any{"#name", "keypress", map[string]any{"keyCode": int64(13), "shift": true}},
	}
	require.NoError(t, s.WriteEvent(ctx, "run-1", ev))

	got, err := s.ReadTrace(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ev, got[0])
}

func TestWriteEventIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRun(ctx, "run-1", "visit-and-check"))

	ev := engine.TraceEvent{Seq: 1, Type: engine.EventEnqueued, EntryID: "run-1/1", Helper: "visit", Kind: "helper", Args: []any{"/"}}
	require.NoError(t, s.WriteEvent(ctx, "run-1", ev))
	require.NoError(t, s.WriteEvent(ctx, "run-1", ev))

	got, err := s.ReadTrace(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestReadTraceEmptyRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRun(ctx, "run-1", "visit-and-check"))

	got, err := s.ReadTrace(ctx, "run-1")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMaxSeq(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seq, err := s.MaxSeq(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	require.NoError(t, s.CreateRun(ctx, "run-1", "visit-and-check"))
	require.NoError(t, s.WriteEvent(ctx, "run-1", engine.TraceEvent{Seq: 1, Type: engine.EventEnqueued, EntryID: "run-1/1", Helper: "visit", Kind: "helper"}))
	require.NoError(t, s.WriteEvent(ctx, "run-1", engine.TraceEvent{Seq: 5, Type: engine.EventFulfilled, EntryID: "run-1/1", Helper: "visit", Kind: "helper"}))

	seq, err = s.MaxSeq(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), seq)
}

func TestDeletingRunCascadesToEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRun(ctx, "run-1", "visit-and-check"))
	require.NoError(t, s.WriteEvent(ctx, "run-1", engine.TraceEvent{Seq: 1, Type: engine.EventEnqueued, EntryID: "run-1/1", Helper: "visit", Kind: "helper"}))

	_, err := s.DB().ExecContext(ctx, "DELETE FROM runs WHERE token = ?", "run-1")
	require.NoError(t, err)

	got, err := s.ReadTrace(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTraceRecorderPersistsEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRun(ctx, "run-1", "visit-and-check"))

	rec := NewTraceRecorder(s, "run-1", slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec.Record(engine.TraceEvent{Seq: 1, Type: engine.EventEnqueued, EntryID: "run-1/1", Helper: "visit", Kind: "helper", Args: []any{"/contacts"}})
	rec.Record(engine.TraceEvent{Seq: 2, Type: engine.EventStarted, EntryID: "run-1/1", Helper: "visit", Kind: "helper"})

	got, err := s.ReadTrace(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "enqueued", got[0].Type)
	assert.Equal(t, []any{"/contacts"}, got[0].Args)
}
