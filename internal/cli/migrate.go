package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/petracek/modelite/internal/engine"
	"github.com/petracek/modelite/internal/sqlgen"
	"github.com/petracek/modelite/internal/store"
)

// MigrateResult holds the outcome of a migrate run.
type MigrateResult struct {
	Database string        `json:"database"`
	Tables   []ModelReport `json:"tables"`
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate <decls-dir>",
		Short: "Create or extend tables for the declared models",
		Long: `Validate CUE model declarations, then open the database and bring every
table up to date in declaration order. Tables are created when missing;
existing tables gain columns added to the declaration since they were
built. Existing columns are never altered or dropped.

Exit codes:
  0 - All tables up to date
  1 - One or more declarations rejected
  2 - Command error (missing --db, unreachable database)

Examples:
  modelite migrate --db ./app.db ./models
  modelite migrate --db ./app.db ./models --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runMigrate(opts *RootOptions, declsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Database == "" {
		_ = formatter.Error(ErrCodeGeneric, "migrate requires --db", nil)
		return NewExitError(ExitCommandError, "migrate requires --db")
	}

	loaded, err := LoadDeclarations(declsDir)
	if err != nil {
		return commandError(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, declsDir)

	reg, reports := registerAll(loaded.Declarations)
	for _, r := range reports {
		if !r.Valid {
			_ = formatter.Error(ErrCodeRegistration, fmt.Sprintf("%s: %s", r.Name, r.Error), nil)
			return NewExitError(ExitFailure, fmt.Sprintf("declaration %s rejected", r.Name))
		}
	}

	slog.Info("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, fmt.Sprintf("opening database: %v", err), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	eng := engine.New(st, reg)
	for _, s := range reg.Schemas() {
		formatter.VerboseLog("%s", sqlgen.CreateTable(s))
		if err := eng.EnsureTable(ctx, s); err != nil {
			_ = formatter.Error(ErrCodeGeneric, fmt.Sprintf("ensuring table %q: %v", s.Table(), err), nil)
			return WrapExitError(ExitCommandError, fmt.Sprintf("ensuring table %q", s.Table()), err)
		}
	}

	if opts.Format == "json" {
		return formatter.Success(MigrateResult{Database: opts.Database, Tables: reports})
	}

	w := formatter.Writer
	for _, r := range reports {
		fmt.Fprintf(w, "✓ %s (%s)\n", r.Table, r.Name)
	}
	fmt.Fprintf(w, "Migrated %d table(s) in %s\n", len(reports), opts.Database)
	return nil
}
