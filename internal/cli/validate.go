package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult holds the outcome of validating a declarations directory.
type ValidationResult struct {
	Valid  bool          `json:"valid"`
	Models []ModelReport `json:"models,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <decls-dir>",
		Short: "Validate model declarations without touching a database",
		Long: `Validate CUE model declarations: compile them, then register each one
into a fresh registry so name conflicts, duplicate fields, bad defaults,
and unresolved ref targets surface exactly as they would at runtime.

Exit codes:
  0 - All declarations valid
  1 - One or more declarations rejected
  2 - Command error (directory missing, CUE does not compile)

Examples:
  modelite validate ./models
  modelite validate ./models --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, declsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loaded, err := LoadDeclarations(declsDir)
	if err != nil {
		return commandError(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, declsDir)

	_, reports := registerAll(loaded.Declarations)

	invalid := 0
	for _, r := range reports {
		if !r.Valid {
			invalid++
		}
	}

	if opts.Format == "json" {
		result := ValidationResult{Valid: invalid == 0, Models: reports}
		if invalid == 0 {
			if err := formatter.Success(result); err != nil {
				return err
			}
			return nil
		}
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    ErrCodeRegistration,
				Message: fmt.Sprintf("%d declaration(s) rejected", invalid),
			},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d declaration(s) rejected", invalid))
	}

	w := formatter.Writer
	for _, r := range reports {
		if r.Valid {
			fmt.Fprintf(w, "✓ %s (table %s, fingerprint %s)\n", r.Name, r.Table, r.Fingerprint)
		} else {
			fmt.Fprintf(w, "✗ %s: %s\n", r.Name, r.Error)
		}
	}
	if invalid > 0 {
		fmt.Fprintf(w, "\n%d valid, %d rejected\n", len(reports)-invalid, invalid)
		return NewExitError(ExitFailure, fmt.Sprintf("%d declaration(s) rejected", invalid))
	}
	fmt.Fprintln(w, "✓ All declarations valid")
	return nil
}

// commandError renders a load failure and converts it to exit code 2.
func commandError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message))
	}
	_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
	return NewExitError(ExitCommandError, err.Error())
}
