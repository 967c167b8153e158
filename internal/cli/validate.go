package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stagehand-dev/stagehand/internal/harness"
)

// ValidationIssue is one scenario file that failed validation.
type ValidationIssue struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  int               `json:"files"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario.yaml|scenarios-dir>",
		Short: "Validate scenario files without running them",
		Long: `Validate scenario files against the scenario schema.

Checks each file against the CUE schema, then against the structural
rules the runner enforces (known helper call shapes, argument types,
composite helper constraints) without executing anything.

Exit codes:
  0 - All files valid
  1 - One or more files invalid
  2 - Command error (path not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	info, err := os.Stat(path)
	if err != nil {
		_ = formatter.Error("PATH_NOT_FOUND", err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to stat path", err)
	}

	var files []string
	if info.IsDir() {
		files, err = findScenarioFiles(path, "")
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list scenarios", err)
		}
		if len(files) == 0 {
			return NewExitError(ExitCommandError, fmt.Sprintf("no scenario files found in %s", path))
		}
	} else {
		files = []string{path}
	}

	result := ValidationResult{Files: len(files)}
	for _, file := range files {
		formatter.VerboseLog("Validating %s", file)
		if _, err := harness.LoadScenario(file); err != nil {
			result.Issues = append(result.Issues, ValidationIssue{
				File:    file,
				Message: err.Error(),
			})
		}
	}
	result.Valid = len(result.Issues) == 0

	return outputValidationResult(formatter, result)
}

func outputValidationResult(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result}
		if !result.Valid {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    "SCENARIO_INVALID",
				Message: result.Issues[0].Message,
			}
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		if !result.Valid {
			return NewExitError(ExitFailure, fmt.Sprintf("validation failed for %d file(s)", len(result.Issues)))
		}
		return nil
	}

	if result.Valid {
		fmt.Fprintf(formatter.Writer, "✓ %d scenario file(s) valid\n", result.Files)
		return nil
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range result.Issues {
		fmt.Fprintf(formatter.Writer, "%s\n  %s\n\n", issue.File, issue.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed for %d file(s)", len(result.Issues)))
}
