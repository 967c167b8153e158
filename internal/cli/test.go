package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stagehand-dev/stagehand/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter    string // scenario filter (glob pattern)
	GoldenDir string // directory of golden trace snapshots
	Update    bool   // regenerate golden snapshots
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run a directory of scenarios",
		Long: `Run every scenario file in a directory and report pass/fail.

Each scenario runs against a fresh scripted application with a fixed
run token, so traces are deterministic. With --golden-dir, each trace
is also compared byte for byte against <golden-dir>/<name>.golden;
--update regenerates those snapshots instead of comparing.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  stagehand test ./scenarios
  stagehand test ./scenarios --filter "contact-*"
  stagehand test ./scenarios --golden-dir ./golden --update
  stagehand test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden-dir", "", "directory of golden trace snapshots")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden snapshots")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}
	if opts.Update && opts.GoldenDir == "" {
		return NewExitError(ExitCommandError, "--update requires --golden-dir")
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return fmt.Errorf("failed to find scenarios: %w", err)
	}

	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, TestResult{
				Scenarios: []ScenarioResult{},
				Total:     0,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}

	for _, scenarioFile := range scenarioFiles {
		scenResult := runOneScenario(scenarioFile, opts)
		result.Scenarios = append(result.Scenarios, scenResult)

		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}

	return outputTestText(cmd, result)
}

// runOneScenario runs a single scenario file and reports its outcome.
// Errors loading or running the file count as a failed scenario rather
// than aborting the whole batch.
func runOneScenario(path string, opts *TestOptions) ScenarioResult {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return ScenarioResult{Name: name, Errors: []string{err.Error()}}
	}

	res := ScenarioResult{Name: scenario.Name}

	runResult, err := harness.Run(scenario)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res
	}
	res.Errors = append(res.Errors, runResult.Errors...)

	if opts.GoldenDir != "" {
		if err := checkGolden(scenario, runResult, opts); err != nil {
			res.Errors = append(res.Errors, err.Error())
		}
	}

	res.Pass = len(res.Errors) == 0
	return res
}

// checkGolden compares (or with --update, rewrites) the scenario's
// golden trace snapshot.
func checkGolden(scenario *harness.Scenario, result *harness.Result, opts *TestOptions) error {
	token := scenario.RunToken
	if token == "" {
		token = harness.DefaultRunToken
	}

	snapshot, err := harness.SnapshotTrace(scenario.Name, token, result.Trace)
	if err != nil {
		return fmt.Errorf("snapshot trace: %w", err)
	}

	goldenPath := filepath.Join(opts.GoldenDir, scenario.Name+".golden")

	if opts.Update {
		if err := os.MkdirAll(opts.GoldenDir, 0o755); err != nil {
			return fmt.Errorf("create golden dir: %w", err)
		}
		if err := os.WriteFile(goldenPath, snapshot, 0o644); err != nil {
			return fmt.Errorf("write golden file: %w", err)
		}
		return nil
	}

	want, err := os.ReadFile(goldenPath)
	if err != nil {
		return fmt.Errorf("read golden file: %w", err)
	}
	if !bytes.Equal(snapshot, want) {
		return fmt.Errorf("trace does not match golden file %s", goldenPath)
	}
	return nil
}

// findScenarioFiles finds all YAML scenario files in a directory.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		// Only process .yaml and .yml files
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		// Apply filter if specified
		if filter != "" {
			base := filepath.Base(path)
			name := strings.TrimSuffix(base, ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total))
	}
	return nil
}

// outputTestText outputs the test result as text.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	for _, scen := range result.Scenarios {
		if scen.Pass {
			fmt.Fprintf(w, "✓ %s\n", scen.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", scen.Name)
		for _, msg := range scen.Errors {
			fmt.Fprintf(w, "    %s\n", msg)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total))
	}
	return nil
}
