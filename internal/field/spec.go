package field

import (
	"fmt"
	"strings"
)

// Ref declares a foreign key to another model's field.
type Ref struct {
	Model string // target model name, must already be registered
	Field string // target field name; empty means the target's primary key
}

// Spec is one declared field of a model.
//
// Declaration order is significant: it fixes column order in DDL, the
// column list of INSERT statements, and the tuple order of hydrated rows.
type Spec struct {
	Name       string
	Type       Type
	PrimaryKey bool // at most one per model; must be Integer kind
	Nullable   bool
	Default    any  // substituted for absent values before validation
	Unique     bool
	Ref        *Ref // nil when the field is not a foreign key
}

// ColumnDDL renders the column definition fragment for CREATE TABLE and
// ALTER TABLE ADD COLUMN. REFERENCES fragments are appended by the SQL
// generator, which resolves the target table through the registry.
//
// Defaults are deliberately absent from the DDL: the validation pipeline
// substitutes them before every insert, so the database never needs a
// DEFAULT clause and no literal is ever interpolated into schema text.
func (s Spec) ColumnDDL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", QuoteIdent(s.Name), s.Type.DDL())
	if s.PrimaryKey {
		// An INTEGER PRIMARY KEY column aliases the rowid, which is what
		// makes identities auto-assigned on insert.
		b.WriteString(" PRIMARY KEY")
		return b.String()
	}
	if !s.Nullable {
		b.WriteString(" NOT NULL")
	}
	if s.Unique {
		b.WriteString(" UNIQUE")
	}
	return b.String()
}

// QuoteIdent double-quotes an identifier for use in generated SQL.
// Embedded quotes are doubled per the SQL standard.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
