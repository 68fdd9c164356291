package sqlgen

import (
	"fmt"
	"strings"

	"github.com/petracek/modelite/internal/field"
	"github.com/petracek/modelite/internal/model"
	"github.com/petracek/modelite/internal/query"
)

// validOps is the operator allowlist. Anything outside it is rejected at
// translation time, which keeps the WHERE generator a closed surface.
var validOps = map[query.Op]string{
	query.OpEq:   "=",
	query.OpNe:   "<>",
	query.OpLt:   "<",
	query.OpLe:   "<=",
	query.OpGt:   ">",
	query.OpGe:   ">=",
	query.OpIn:   "IN",
	query.OpLike: "LIKE",
}

// Insert renders the INSERT statement for a schema. The primary key column
// is omitted so the database assigns the identity. Returns the statement and
// the column order its placeholders expect.
func Insert(s *model.Schema) (string, []string) {
	pk := s.PrimaryKey().Name
	cols := make([]string, 0, len(s.Fields())-1)
	quoted := make([]string, 0, len(s.Fields())-1)
	for _, f := range s.Fields() {
		if f.Name == pk {
			continue
		}
		cols = append(cols, f.Name)
		quoted = append(quoted, field.QuoteIdent(f.Name))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		field.QuoteIdent(s.Table()), strings.Join(quoted, ", "), placeholders)
	return sql, cols
}

// SelectByKey renders the single-row lookup by primary key.
func SelectByKey(s *model.Schema) string {
	return SelectBy(s, s.PrimaryKey().Name)
}

// SelectBy renders a single-row lookup on an arbitrary column. Reference
// resolution uses it when a foreign key targets a non-key column.
func SelectBy(s *model.Schema, column string) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? LIMIT 1",
		columnList(s), field.QuoteIdent(s.Table()), field.QuoteIdent(column))
}

// SelectKeyExists renders the existence probe used by foreign-key checks.
func SelectKeyExists(table, column string) string {
	return fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ? LIMIT 1",
		field.QuoteIdent(table), field.QuoteIdent(column))
}

// Select renders the filter query for a schema.
//
// Every select carries an ORDER BY ending in the primary key, so result
// order is stable even when the caller asked for none or ordered by a
// non-unique field.
func Select(s *model.Schema, q query.Query) (string, []any, error) {
	where, args, err := whereClause(s, q.Clauses)
	if err != nil {
		return "", nil, err
	}

	order, err := orderClause(s, q.OrderBy)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", columnList(s), field.QuoteIdent(s.Table()))
	b.WriteString(where)
	b.WriteString(order)

	switch {
	case q.Limit > 0:
		b.WriteString(" LIMIT ?")
		args = append(args, int64(q.Limit))
		if q.Offset > 0 {
			b.WriteString(" OFFSET ?")
			args = append(args, int64(q.Offset))
		}
	case q.Offset > 0:
		// SQLite requires a LIMIT before OFFSET; -1 means unbounded.
		b.WriteString(" LIMIT -1 OFFSET ?")
		args = append(args, int64(q.Offset))
	}

	return b.String(), args, nil
}

// Update renders the UPDATE statement for exactly the given columns.
// Placeholder order is the column order followed by the primary key.
func Update(s *model.Schema, cols []string) (string, error) {
	if len(cols) == 0 {
		return "", fmt.Errorf("update of %q: no columns to set", s.Name())
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		if _, ok := s.Field(c); !ok {
			return "", fmt.Errorf("update of %q: unknown field %q", s.Name(), c)
		}
		sets[i] = field.QuoteIdent(c) + " = ?"
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		field.QuoteIdent(s.Table()), strings.Join(sets, ", "), field.QuoteIdent(s.PrimaryKey().Name)), nil
}

// Delete renders the delete-by-primary-key statement.
func Delete(s *model.Schema) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = ?",
		field.QuoteIdent(s.Table()), field.QuoteIdent(s.PrimaryKey().Name))
}

// DeleteWhere renders a filtered bulk delete. Ordering, limit, and offset
// make no sense for a delete and are rejected.
func DeleteWhere(s *model.Schema, q query.Query) (string, []any, error) {
	if len(q.OrderBy) > 0 || q.Limit != 0 || q.Offset != 0 {
		return "", nil, fmt.Errorf("delete from %q: order, limit, and offset are not supported", s.Name())
	}
	where, args, err := whereClause(s, q.Clauses)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("DELETE FROM %s%s", field.QuoteIdent(s.Table()), where), args, nil
}

// Count renders a COUNT(*) over the filtered rows.
func Count(s *model.Schema, q query.Query) (string, []any, error) {
	if len(q.OrderBy) > 0 || q.Limit != 0 || q.Offset != 0 {
		return "", nil, fmt.Errorf("count of %q: order, limit, and offset are not supported", s.Name())
	}
	where, args, err := whereClause(s, q.Clauses)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", field.QuoteIdent(s.Table()), where), args, nil
}

// columnList renders the full quoted column list in declaration order.
// SELECT * would surrender column order to the database; hydration depends
// on the declared order, so columns are always spelled out.
func columnList(s *model.Schema) string {
	cols := s.Columns()
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = field.QuoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

// whereClause translates clauses into " WHERE ..." with bound arguments.
// Returns "" when there are no clauses.
func whereClause(s *model.Schema, clauses []query.Clause) (string, []any, error) {
	if len(clauses) == 0 {
		return "", nil, nil
	}

	parts := make([]string, 0, len(clauses))
	var args []any
	for _, c := range clauses {
		sql, clauseArgs, err := compileClause(s, c)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		args = append(args, clauseArgs...)
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

// compileClause translates one comparison, converting the operand through
// the field's storage codec so e.g. booleans compare against their stored
// 0/1 form.
func compileClause(s *model.Schema, c query.Clause) (string, []any, error) {
	f, ok := s.Field(c.Field)
	if !ok {
		return "", nil, fmt.Errorf("filter on %q: unknown field %q", s.Name(), c.Field)
	}
	op, ok := validOps[c.Op]
	if !ok {
		return "", nil, fmt.Errorf("filter on %q: unsupported operator %v", s.Name(), c.Op)
	}

	col := field.QuoteIdent(c.Field)
	switch c.Op {
	case query.OpIn:
		values, ok := c.Value.([]any)
		if !ok {
			return "", nil, fmt.Errorf("filter on %q: IN requires a value list, got %T", s.Name(), c.Value)
		}
		if len(values) == 0 {
			return "", nil, fmt.Errorf("filter on %q: IN requires at least one value", s.Name())
		}
		args := make([]any, len(values))
		for i, v := range values {
			p, err := operand(f, v)
			if err != nil {
				return "", nil, fmt.Errorf("filter on %q: %w", s.Name(), err)
			}
			args[i] = p
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
		return fmt.Sprintf("%s IN (%s)", col, placeholders), args, nil

	case query.OpLike:
		pattern, ok := c.Value.(string)
		if !ok {
			return "", nil, fmt.Errorf("filter on %q: LIKE requires a string pattern, got %T", s.Name(), c.Value)
		}
		return fmt.Sprintf("%s LIKE ?", col), []any{pattern}, nil

	default:
		p, err := operand(f, c.Value)
		if err != nil {
			return "", nil, fmt.Errorf("filter on %q: %w", s.Name(), err)
		}
		return fmt.Sprintf("%s %s ?", col, op), []any{p}, nil
	}
}

// operand converts a comparison value into its stored form.
func operand(f field.Spec, v any) (any, error) {
	if v == nil {
		return nil, fmt.Errorf("field %q: cannot compare against nil", f.Name)
	}
	p, err := f.Type.ToStorage(v)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", f.Name, err)
	}
	return p, nil
}

// orderClause renders ORDER BY with the caller's terms first and the primary
// key appended as a tiebreaker when absent.
func orderClause(s *model.Schema, terms []query.Order) (string, error) {
	pk := s.PrimaryKey().Name
	parts := make([]string, 0, len(terms)+1)
	pkOrdered := false
	for _, o := range terms {
		if _, ok := s.Field(o.Field); !ok {
			return "", fmt.Errorf("order on %q: unknown field %q", s.Name(), o.Field)
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("%s %s", field.QuoteIdent(o.Field), dir))
		if o.Field == pk {
			pkOrdered = true
		}
	}
	if !pkOrdered {
		parts = append(parts, field.QuoteIdent(pk)+" ASC")
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}
