package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petracek/modelite/internal/model"
)

// TableInfo describes one model's storage layout.
type TableInfo struct {
	Model       string       `json:"model"`
	Table       string       `json:"table"`
	Fingerprint string       `json:"fingerprint"`
	Columns     []ColumnInfo `json:"columns"`
}

// ColumnInfo describes one column of a table.
type ColumnInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"` // storage affinity (INTEGER, TEXT, REAL, BLOB)
	PrimaryKey bool   `json:"primaryKey,omitempty"`
	Nullable   bool   `json:"nullable,omitempty"`
	Unique     bool   `json:"unique,omitempty"`
	Ref        string `json:"ref,omitempty"` // "Model.field" target
}

// TablesResult holds the tables listing.
type TablesResult struct {
	Tables []TableInfo `json:"tables"`
}

// NewTablesCommand creates the tables command.
func NewTablesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables <decls-dir>",
		Short: "Show the storage layout the declarations map to",
		Long: `Compile and register CUE model declarations, then print the table each
model maps to with its schema fingerprint and columns. Purely diagnostic;
no database is touched.

Examples:
  modelite tables ./models
  modelite tables ./models --verbose
  modelite tables ./models --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTables(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runTables(opts *RootOptions, declsDir string, cmd *cobra.Command) error {
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

	reg, reports := registerAll(loaded.Declarations)
	for _, r := range reports {
		if !r.Valid {
			_ = formatter.Error(ErrCodeRegistration, fmt.Sprintf("%s: %s", r.Name, r.Error), nil)
			return NewExitError(ExitFailure, fmt.Sprintf("declaration %s rejected", r.Name))
		}
	}

	infos := make([]TableInfo, 0, len(reg.Schemas()))
	for _, s := range reg.Schemas() {
		infos = append(infos, tableInfo(s))
	}

	if opts.Format == "json" {
		return formatter.Success(TablesResult{Tables: infos})
	}

	w := formatter.Writer
	for _, info := range infos {
		fmt.Fprintf(w, "%s (model %s, fingerprint %s, %d columns)\n",
			info.Table, info.Model, info.Fingerprint, len(info.Columns))
		if !opts.Verbose {
			continue
		}
		for _, col := range info.Columns {
			fmt.Fprintf(w, "  %s %s%s\n", col.Name, col.Type, columnNotes(col))
		}
	}
	return nil
}

// tableInfo flattens a schema into its display form.
func tableInfo(s *model.Schema) TableInfo {
	info := TableInfo{
		Model:       s.Name(),
		Table:       s.Table(),
		Fingerprint: fingerprintPrefix(s.Fingerprint()),
	}
	for _, f := range s.Fields() {
		col := ColumnInfo{
			Name:       f.Name,
			Type:       f.Type.DDL(),
			PrimaryKey: f.PrimaryKey,
			Nullable:   f.Nullable,
			Unique:     f.Unique,
		}
		if f.Ref != nil {
			if target, targetField, ok := s.RefTarget(f.Name); ok {
				col.Ref = target.Name() + "." + targetField.Name
			}
		}
		info.Columns = append(info.Columns, col)
	}
	return info
}

// columnNotes renders the flag suffix for a text-mode column line.
func columnNotes(col ColumnInfo) string {
	notes := ""
	if col.PrimaryKey {
		notes += " primary key"
	}
	if col.Unique {
		notes += " unique"
	}
	if col.Nullable {
		notes += " nullable"
	}
	if col.Ref != "" {
		notes += " references " + col.Ref
	}
	return notes
}
