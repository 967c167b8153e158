package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/stagehand-dev/stagehand/internal/harness"
	"github.com/stagehand-dev/stagehand/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Token    string
}

// RunReport holds the result of a single scenario run for output.
type RunReport struct {
	Scenario string   `json:"scenario"`
	RunToken string   `json:"run_token"`
	Pass     bool     `json:"pass"`
	Events   int      `json:"events"`
	Failures []string `json:"failures,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a single scenario",
		Long: `Run a single scenario file against a fresh scripted application.

Steps execute through the async helper queue: async helpers enqueue,
sync helpers run at call time, and wait barriers check application
state once everything ahead of them has settled.

With --db the trace is recorded to SQLite as it is produced, so it can
be inspected later with the trace command.

Exit codes:
  0 - Scenario passed
  1 - Scenario failed (helper failures or assertion mismatches)
  2 - Command error (invalid scenario, database error, etc.)

Examples:
  stagehand run ./scenarios/add-contact.yaml
  stagehand run ./scenarios/add-contact.yaml --db ./traces.db
  stagehand run ./scenarios/add-contact.yaml --token run-42 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for trace recording")
	cmd.Flags().StringVar(&opts.Token, "token", "", "run token override (defaults to the scenario's run_token)")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error("SCENARIO_INVALID", err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	if opts.Token != "" {
		scenario.RunToken = opts.Token
	}
	token := scenario.RunToken
	if token == "" {
		token = harness.DefaultRunToken
	}

	runOpts := []harness.RunOption{}
	if opts.Verbose {
		runOpts = append(runOpts, harness.WithRunLogger(slog.New(
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)))
	}

	// Open the trace store before running so recording starts with the
	// first event.
	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()

		ctx := context.Background()
		if err := st.CreateRun(ctx, token, scenario.Name); err != nil {
			return WrapExitError(ExitCommandError, "failed to register run", err)
		}
		runOpts = append(runOpts, harness.WithExtraRecorder(
			store.NewTraceRecorder(st, token, slog.Default()),
		))
		formatter.VerboseLog("Recording trace for run %s to %s", token, opts.Database)
	}

	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		_ = formatter.Error("RUN_FAILED", err.Error(), nil)
		return WrapExitError(ExitCommandError, "scenario run failed", err)
	}

	if st != nil {
		if err := st.FinishRun(context.Background(), token, result.Pass); err != nil {
			return WrapExitError(ExitCommandError, "failed to finish run", err)
		}
	}

	report := RunReport{
		Scenario: scenario.Name,
		RunToken: token,
		Pass:     result.Pass,
		Events:   len(result.Trace),
		Failures: result.Failures,
		Errors:   result.Errors,
	}

	return outputRunReport(formatter, report)
}

func outputRunReport(formatter *OutputFormatter, report RunReport) error {
	if formatter.Format == "json" {
		if err := formatter.Success(report); err != nil {
			return err
		}
		if !report.Pass {
			return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", report.Scenario))
		}
		return nil
	}

	w := formatter.Writer
	if report.Pass {
		fmt.Fprintf(w, "✓ %s passed (%d trace events)\n", report.Scenario, report.Events)
		return nil
	}

	fmt.Fprintf(w, "✗ %s failed\n", report.Scenario)
	for _, msg := range report.Errors {
		fmt.Fprintf(w, "  - %s\n", msg)
	}
	if formatter.Verbose {
		for _, fail := range report.Failures {
			fmt.Fprintf(w, "  helper failure: %s\n", fail)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", report.Scenario))
}
