package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/stagehand-dev/stagehand/internal/app"
	"github.com/stagehand-dev/stagehand/internal/engine"
	"github.com/stagehand-dev/stagehand/internal/helper"
)

// RunOption configures a scenario run.
type RunOption func(*runConfig)

type runConfig struct {
	logger *slog.Logger
	extra  engine.Recorder
}

// WithRunLogger sets the logger for the session and application.
// Defaults to a discarding logger so test output stays quiet.
func WithRunLogger(log *slog.Logger) RunOption {
	return func(c *runConfig) { c.logger = log }
}

// WithExtraRecorder adds a second trace sink beside the result, e.g. the
// SQLite trace store when a run is recorded.
func WithExtraRecorder(rec engine.Recorder) RunOption {
	return func(c *runConfig) { c.extra = rec }
}

// Run executes a scenario and returns its result.
//
// Each run gets a fresh scripted application, a fresh registry with the
// built-in helpers plus the scenario's composites, and a session with a
// fixed run token, so repeated runs produce identical traces.
func Run(scenario *Scenario, opts ...RunOption) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext is Run with a caller-supplied context for shutdown.
func RunContext(ctx context.Context, scenario *Scenario, opts ...RunOption) (*Result, error) {
	cfg := runConfig{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	application, err := app.NewScriptedApp(scenario.App, app.WithAppLogger(cfg.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build application: %w", err)
	}

	reg := helper.NewRegistry()
	if err := helper.RegisterBuiltins(reg); err != nil {
		return nil, fmt.Errorf("failed to register built-in helpers: %w", err)
	}

	// Composite handlers need the session for nested calls, but the
	// session freezes the registry at construction. The indirection lets
	// registration happen first.
	var sess *engine.Session
	if err := registerComposites(reg, scenario.Helpers, &sess); err != nil {
		return nil, err
	}

	result := NewResult()
	var rec engine.Recorder = result
	if cfg.extra != nil {
		rec = engine.MultiRecorder{result, cfg.extra}
	}

	token := scenario.RunToken
	if token == "" {
		token = DefaultRunToken
	}

	sess = engine.NewSession(reg, application,
		engine.WithRecorder(rec),
		engine.WithTokenGenerator(engine.NewFixedGenerator(token)),
		engine.WithLogger(cfg.logger),
	)

	for i, step := range scenario.Steps {
		if step.Wait != nil {
			expect := step.Wait
			if _, err := sess.AndThen(func() error {
				return evaluateExpect(application, expect)
			}); err != nil {
				return nil, fmt.Errorf("steps[%d]: %w", i, err)
			}
			continue
		}

		if _, err := sess.Call(step.Call, step.Args...); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	if err := sess.Drain(ctx); err != nil {
		return nil, fmt.Errorf("drain failed: %w", err)
	}

	for _, fail := range sess.Failures() {
		result.Failures = append(result.Failures, fail.Error())
		if !scenario.AllowFailures {
			result.AddError(fail.Error())
		}
	}

	result.AppEvents = application.Events()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// evaluateExpect checks a wait barrier's expectations against the
// application state at barrier time.
func evaluateExpect(a *app.ScriptedApp, e *Expect) error {
	if e.CurrentPath != "" {
		if got := a.CurrentPath(); got != e.CurrentPath {
			return fmt.Errorf("current_path: got %q, want %q", got, e.CurrentPath)
		}
	}
	if e.RouteName != "" {
		if got := a.CurrentRouteName(); got != e.RouteName {
			return fmt.Errorf("route_name: got %q, want %q", got, e.RouteName)
		}
	}
	if e.CurrentURL != "" {
		if got := a.CurrentURL(); got != e.CurrentURL {
			return fmt.Errorf("current_url: got %q, want %q", got, e.CurrentURL)
		}
	}
	if e.Value != nil {
		got, err := a.Value(e.Value.Selector)
		if err != nil {
			return fmt.Errorf("value %s: %w", e.Value.Selector, err)
		}
		if got != e.Value.Equals {
			return fmt.Errorf("value %s: got %q, want %q", e.Value.Selector, got, e.Value.Equals)
		}
	}
	if e.Find != nil {
		found := a.Find(e.Find.Selector, e.Find.Scope)
		if len(found) != e.Find.Count {
			return fmt.Errorf("find %s: got %d elements, want %d", e.Find.Selector, len(found), e.Find.Count)
		}
	}
	return nil
}
