// Package query defines the filter expressions accepted by the CRUD engine.
//
// A Query is a plain value: building one performs no validation and no I/O.
// Field names and operator/operand shapes are checked at translation time
// against a concrete model schema, so the same Query value can be reused
// across models. Clauses combine with AND only.
package query

// Op identifies a comparison operator in a filter clause.
//
// The set is closed; the SQL generator dispatches through an allowlist and
// rejects anything outside it.
type Op uint8

const (
	OpEq Op = iota // =
	OpNe           // <>
	OpLt           // <
	OpLe           // <=
	OpGt           // >
	OpGe           // >=
	OpIn           // IN (...)
	OpLike         // LIKE
)

// String returns the SQL spelling of the operator.
func (op Op) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "<>"
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpIn:
		return "IN"
	case OpLike:
		return "LIKE"
	default:
		return "op(?)"
	}
}

// Clause is one field comparison. For OpIn the value must be []any with at
// least one element; for OpLike it must be a string pattern.
type Clause struct {
	Field string
	Op    Op
	Value any
}

// Order is one ORDER BY term.
type Order struct {
	Field string
	Desc  bool
}

// Query describes which rows to match and in what shape to return them.
// The zero value matches all rows in declaration order of the database.
type Query struct {
	Clauses []Clause
	OrderBy []Order
	Limit   int // 0 means no limit
	Offset  int // 0 means no offset; ignored without a limit or order
}

// Where starts a query from a set of clauses.
func Where(clauses ...Clause) Query {
	return Query{Clauses: clauses}
}

// All matches every row.
func All() Query {
	return Query{}
}

// Sorted appends an ORDER BY term and returns the extended query.
func (q Query) Sorted(fieldName string, desc bool) Query {
	q.OrderBy = append(q.OrderBy[:len(q.OrderBy):len(q.OrderBy)], Order{Field: fieldName, Desc: desc})
	return q
}

// Take caps the number of returned rows.
func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

// Skip offsets into the matching rows.
func (q Query) Skip(n int) Query {
	q.Offset = n
	return q
}

// Eq matches rows where the field equals the value.
func Eq(fieldName string, v any) Clause {
	return Clause{Field: fieldName, Op: OpEq, Value: v}
}

// Ne matches rows where the field differs from the value.
func Ne(fieldName string, v any) Clause {
	return Clause{Field: fieldName, Op: OpNe, Value: v}
}

// Lt matches rows where the field is less than the value.
func Lt(fieldName string, v any) Clause {
	return Clause{Field: fieldName, Op: OpLt, Value: v}
}

// Le matches rows where the field is at most the value.
func Le(fieldName string, v any) Clause {
	return Clause{Field: fieldName, Op: OpLe, Value: v}
}

// Gt matches rows where the field is greater than the value.
func Gt(fieldName string, v any) Clause {
	return Clause{Field: fieldName, Op: OpGt, Value: v}
}

// Ge matches rows where the field is at least the value.
func Ge(fieldName string, v any) Clause {
	return Clause{Field: fieldName, Op: OpGe, Value: v}
}

// In matches rows where the field equals any of the values.
func In(fieldName string, values ...any) Clause {
	return Clause{Field: fieldName, Op: OpIn, Value: values}
}

// Like matches rows where the field matches the SQL LIKE pattern.
func Like(fieldName string, pattern string) Clause {
	return Clause{Field: fieldName, Op: OpLike, Value: pattern}
}
