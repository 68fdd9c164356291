// Package sqlgen turns schemas and queries into parameterized SQLite
// statements.
//
// Values are never interpolated into statement text: every value travels as
// a ? placeholder argument. Identifiers are double-quoted. Generation is
// deterministic, so equal inputs produce byte-identical SQL and golden tests
// can pin the exact output.
package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/petracek/modelite/internal/field"
	"github.com/petracek/modelite/internal/model"
)

// CreateTable renders the CREATE TABLE IF NOT EXISTS statement for a schema.
// Columns appear in declaration order; foreign-key columns carry REFERENCES
// fragments resolved through the schema's registered targets.
func CreateTable(s *model.Schema) string {
	defs := make([]string, 0, len(s.Fields()))
	for _, f := range s.Fields() {
		defs = append(defs, columnDef(s, f))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		field.QuoteIdent(s.Table()), strings.Join(defs, ", "))
}

// AddColumn renders the ALTER TABLE statement that adds one declared column
// to an existing table. Used by additive schema synchronization.
//
// ALTER TABLE cannot bind parameters, so a declared default is rendered as a
// quoted literal. SQLite refuses to add a required column without one because
// existing rows need a backfill value.
func AddColumn(s *model.Schema, f field.Spec) (string, error) {
	def := columnDef(s, f)
	switch {
	case f.Default != nil:
		lit, err := defaultLiteral(f)
		if err != nil {
			return "", err
		}
		def += " DEFAULT " + lit
	case !f.Nullable && !f.PrimaryKey:
		return "", fmt.Errorf("add column %q to %q: required column needs a default to backfill existing rows",
			f.Name, s.Table())
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s",
		field.QuoteIdent(s.Table()), def), nil
}

// DropTable renders the DROP TABLE IF EXISTS statement.
func DropTable(s *model.Schema) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", field.QuoteIdent(s.Table()))
}

// columnDef renders one column definition, appending the REFERENCES fragment
// for foreign keys.
func columnDef(s *model.Schema, f field.Spec) string {
	def := f.ColumnDDL()
	if f.Ref == nil {
		return def
	}
	target, tf, ok := s.RefTarget(f.Name)
	if !ok {
		// Registration resolves every ref; an unresolved one here is a bug
		// in the schema, not a runtime condition.
		panic(fmt.Sprintf("sqlgen: field %q has unresolved reference", f.Name))
	}
	return fmt.Sprintf("%s REFERENCES %s (%s)",
		def, field.QuoteIdent(target.Table()), field.QuoteIdent(tf.Name))
}

// defaultLiteral renders a field's normalized default in its stored form as a
// SQL literal. Single quotes in text are doubled.
func defaultLiteral(f field.Spec) (string, error) {
	p, err := f.Type.ToStorage(f.Default)
	if err != nil {
		return "", fmt.Errorf("default for %q: %w", f.Name, err)
	}
	switch v := p.(type) {
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'", nil
	case []byte:
		return fmt.Sprintf("X'%X'", v), nil
	default:
		return "", fmt.Errorf("default for %q: no literal form for %T", f.Name, p)
	}
}
