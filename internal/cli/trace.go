package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stagehand-dev/stagehand/internal/engine"
	"github.com/stagehand-dev/stagehand/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunToken string
	Helper   string // optional - filter to a specific helper
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunToken string              `json:"run_token"`
	Scenario string              `json:"scenario,omitempty"`
	Pass     *bool               `json:"pass,omitempty"`
	Timeline []engine.TraceEvent `json:"timeline"`
	Stats    TraceStats          `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Enqueued    int `json:"enqueued"`
	Fulfilled   int `json:"fulfilled"`
	Failed      int `json:"failed"`
	Sync        int `json:"sync"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show a recorded run trace",
		Long: `Show the recorded trace for a run token.

The timeline lists every queue event in seq order: enqueues, entry
starts, settlements, and sync executions that bypassed the queue.

Examples:
  stagehand trace --db ./traces.db --run run-42
  stagehand trace --db ./traces.db --run run-42 --helper visit
  stagehand trace --db ./traces.db --run run-42 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "run token to show (required)")
	_ = cmd.MarkFlagRequired("run")
	cmd.Flags().StringVar(&opts.Helper, "helper", "", "filter to a specific helper name")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	events, err := st.ReadTrace(ctx, opts.RunToken)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}

	if len(events) == 0 {
		if opts.Format == "json" {
			return outputTraceJSON(cmd, TraceResult{
				RunToken: opts.RunToken,
				Timeline: []engine.TraceEvent{},
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "No events found for run: %s\n", opts.RunToken)
		return nil
	}

	result := TraceResult{
		RunToken: opts.RunToken,
		Timeline: filterTimeline(events, opts.Helper),
	}
	result.Stats = buildTraceStats(result.Timeline)

	// Attach run metadata when the run row exists.
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	for _, info := range runs {
		if info.Token == opts.RunToken {
			result.Scenario = info.Scenario
			result.Pass = info.Pass
			break
		}
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}

	return outputTraceText(cmd, result, opts.Verbose)
}

// filterTimeline drops events that do not match the helper filter.
func filterTimeline(events []engine.TraceEvent, helperFilter string) []engine.TraceEvent {
	if helperFilter == "" {
		return events
	}

	var timeline []engine.TraceEvent
	for _, ev := range events {
		if ev.Helper == helperFilter {
			timeline = append(timeline, ev)
		}
	}
	if timeline == nil {
		timeline = []engine.TraceEvent{}
	}
	return timeline
}

func buildTraceStats(events []engine.TraceEvent) TraceStats {
	stats := TraceStats{TotalEvents: len(events)}
	for _, ev := range events {
		switch ev.Type {
		case engine.EventEnqueued:
			stats.Enqueued++
		case engine.EventFulfilled:
			stats.Fulfilled++
		case engine.EventFailed:
			stats.Failed++
		case engine.EventSync:
			stats.Sync++
		}
	}
	return stats
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace for Run: %s\n", result.RunToken)
	if result.Scenario != "" {
		fmt.Fprintf(w, "Scenario: %s\n", result.Scenario)
	}
	fmt.Fprintf(w, "Status: %s\n", runStatus(result.Pass))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	} else {
		for _, event := range result.Timeline {
			formatTimelineEvent(w, event, verbose)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Enqueued:     %d\n", result.Stats.Enqueued)
	fmt.Fprintf(w, "  Fulfilled:    %d\n", result.Stats.Fulfilled)
	fmt.Fprintf(w, "  Failed:       %d\n", result.Stats.Failed)
	fmt.Fprintf(w, "  Sync:         %d\n", result.Stats.Sync)

	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, event engine.TraceEvent, verbose bool) {
	fmt.Fprintf(w, "  [%d] %-9s %s (%s)\n", event.Seq, strings.ToUpper(event.Type), event.Helper, event.Kind)

	if verbose && len(event.Args) > 0 {
		fmt.Fprintf(w, "       Args: %s\n", formatArgList(event.Args))
	}
	if event.Error != "" {
		fmt.Fprintf(w, "       Error: %s\n", event.Error)
	}
	if verbose && event.EntryID != "" {
		fmt.Fprintf(w, "       Entry: %s\n", event.EntryID)
	}
}

// formatArgList formats invocation arguments for display.
func formatArgList(args []any) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = formatValue(arg)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// formatValue formats a single value for display, handling nested
// structures deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		if len(val) == 0 {
			return "{}"
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var parts []string
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(val[k])))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []any:
		return formatArgList(val)
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// runStatus returns a human-readable run outcome.
func runStatus(pass *bool) string {
	switch {
	case pass == nil:
		return "In progress (not finished)"
	case *pass:
		return "Passed"
	default:
		return "Failed"
	}
}
