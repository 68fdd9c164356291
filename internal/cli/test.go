package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/petracek/modelite/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Workdir string // where run databases are written
}

// ScenarioOutcome holds the result of a single scenario run.
type ScenarioOutcome struct {
	Name     string   `json:"name"`
	Token    string   `json:"token,omitempty"`
	Pass     bool     `json:"pass"`
	Checks   int      `json:"checks"`
	Failures []string `json:"failures,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioOutcome `json:"scenarios"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Total     int               `json:"total"`
	Workdir   string            `json:"workdir,omitempty"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario.yaml...>",
		Short: "Run YAML conformance scenarios",
		Long: `Run conformance scenarios outside go test. Each scenario declares its
models inline and executes against its own fresh database, so scenarios
never interfere with each other.

Run databases are kept when any scenario fails so the final state can be
inspected; they are removed after a fully green run unless --workdir
points somewhere explicit.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  modelite test ./scenarios/crud.yaml
  modelite test ./scenarios/*.yaml --format json
  modelite test ./scenarios/*.yaml --workdir ./runs --verbose`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Workdir, "workdir", "", "directory for run databases (default: a temp dir)")

	return cmd
}

func runTests(opts *TestOptions, paths []string, cmd *cobra.Command) error {
	workdir := opts.Workdir
	ephemeral := false
	if workdir == "" {
		dir, err := os.MkdirTemp("", "modelite-test-")
		if err != nil {
			return WrapExitError(ExitCommandError, "creating work directory", err)
		}
		workdir = dir
		ephemeral = true
	} else if err := os.MkdirAll(workdir, 0o755); err != nil {
		return WrapExitError(ExitCommandError, "creating work directory", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result := TestResult{
		Scenarios: make([]ScenarioOutcome, 0, len(paths)),
		Total:     len(paths),
		Workdir:   workdir,
	}
	for _, path := range paths {
		outcome := runOneScenario(ctx, path, workdir, opts, cmd)
		result.Scenarios = append(result.Scenarios, outcome)
		if outcome.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if ephemeral && result.Failed == 0 {
		_ = os.RemoveAll(workdir)
		result.Workdir = ""
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// runOneScenario loads and executes a single scenario file. Load and
// execution problems count as scenario failures, not command errors, so one
// broken file never hides the results of the rest.
func runOneScenario(ctx context.Context, path, workdir string, opts *TestOptions, cmd *cobra.Command) ScenarioOutcome {
	w := cmd.OutOrStdout()
	name := filepath.Base(path)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		if opts.Format != "json" {
			fmt.Fprintf(w, "✗ %s\n", name)
			fmt.Fprintf(w, "  Load error: %v\n", err)
		}
		return ScenarioOutcome{
			Name:     name,
			Pass:     false,
			Failures: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	result, err := harness.Run(ctx, scenario, workdir, harness.WithLogger(slog.Default()))
	if err != nil {
		if opts.Format != "json" {
			fmt.Fprintf(w, "✗ %s\n", scenario.Name)
			fmt.Fprintf(w, "  Execution error: %v\n", err)
		}
		return ScenarioOutcome{
			Name:     scenario.Name,
			Pass:     false,
			Failures: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}

	outcome := ScenarioOutcome{
		Name:     scenario.Name,
		Token:    result.Token,
		Pass:     result.OK(),
		Checks:   result.Passed + result.Failed,
		Failures: result.Failures,
	}
	if opts.Format != "json" {
		if outcome.Pass {
			fmt.Fprintf(w, "✓ %s (%d checks)\n", scenario.Name, outcome.Checks)
		} else {
			fmt.Fprintf(w, "✗ %s\n", scenario.Name)
			for _, f := range result.Failures {
				fmt.Fprintf(w, "  %s\n", f)
			}
		}
	}
	return outcome
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	status := "ok"
	if result.Failed > 0 {
		status = "error"
	}

	response := CLIResponse{
		Status: status,
		Data:   result,
	}
	if result.Failed > 0 {
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test result as text.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		if result.Workdir != "" {
			fmt.Fprintf(w, "Run databases kept in %s\n", result.Workdir)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
