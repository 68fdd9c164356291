// Package field defines the closed set of column datatypes a model may
// declare, and the per-type codecs between runtime Go values and the values
// handed to the SQLite driver.
//
// SQLite columns are weakly typed; the checks here are what give declared
// fields their strictness. Validation happens before any SQL executes, and
// hydration converts driver values back into the declared runtime types.
package field

import (
	"fmt"
	"time"
)

// Type is a sealed interface over the supported column datatypes.
// Only Integer, Text, Real, Blob, Boolean, and DateTime implement it.
type Type interface {
	fieldType() // Sealed - only types in this package implement it

	// Kind reports which variant this is.
	Kind() Kind

	// Validate checks a non-nil runtime value against the variant and
	// returns the normalized form (e.g. int -> int64). The returned error
	// describes the mismatch; callers attach field context.
	Validate(v any) (any, error)

	// ToStorage converts a validated runtime value into the value bound as
	// a SQL parameter. Total for every value Validate accepts.
	ToStorage(v any) (any, error)

	// FromStorage converts a value scanned from the driver back into the
	// runtime form. Fails when the stored value cannot represent the
	// declared type.
	FromStorage(p any) (any, error)

	// DDL returns the column type fragment used in CREATE TABLE.
	DDL() string
}

// Kind identifies a Type variant.
type Kind uint8

const (
	KindInteger Kind = iota
	KindText
	KindReal
	KindBlob
	KindBoolean
	KindDateTime
)

// String returns the lowercase name used in declarations and messages.
func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindText:
		return "text"
	case KindReal:
		return "real"
	case KindBlob:
		return "blob"
	case KindBoolean:
		return "boolean"
	case KindDateTime:
		return "datetime"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Integer stores signed 64-bit integers in an INTEGER column.
type Integer struct{}

func (Integer) fieldType() {}

// Kind implements Type.
func (Integer) Kind() Kind { return KindInteger }

// Validate accepts int, int32, and int64, normalizing to int64.
// Booleans are rejected even though they share INTEGER affinity.
func (Integer) Validate(v any) (any, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	default:
		return nil, fmt.Errorf("expected integer, got %T", v)
	}
}

// ToStorage implements Type.
func (t Integer) ToStorage(v any) (any, error) {
	return t.Validate(v)
}

// FromStorage implements Type.
func (Integer) FromStorage(p any) (any, error) {
	switch n := p.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return nil, fmt.Errorf("stored value %T cannot hydrate an integer field", p)
	}
}

// DDL implements Type.
func (Integer) DDL() string { return "INTEGER" }

// Text stores UTF-8 strings in a TEXT column.
type Text struct{}

func (Text) fieldType() {}

// Kind implements Type.
func (Text) Kind() Kind { return KindText }

// Validate accepts string only.
func (Text) Validate(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

// ToStorage implements Type.
func (t Text) ToStorage(v any) (any, error) {
	return t.Validate(v)
}

// FromStorage implements Type.
// The driver may scan TEXT columns as []byte depending on how the value
// was written; both forms hydrate to string.
func (Text) FromStorage(p any) (any, error) {
	switch s := p.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return nil, fmt.Errorf("stored value %T cannot hydrate a text field", p)
	}
}

// DDL implements Type.
func (Text) DDL() string { return "TEXT" }

// Real stores 64-bit floating point numbers in a REAL column.
type Real struct{}

func (Real) fieldType() {}

// Kind implements Type.
func (Real) Kind() Kind { return KindReal }

// Validate accepts float32 and float64, widening to float64.
// Integer input is widened too; the declared type wins over the Go literal.
func (Real) Validate(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return nil, fmt.Errorf("expected real, got %T", v)
	}
}

// ToStorage implements Type.
func (t Real) ToStorage(v any) (any, error) {
	return t.Validate(v)
}

// FromStorage implements Type.
// SQLite stores whole-valued reals as integers; widen them back.
func (Real) FromStorage(p any) (any, error) {
	switch n := p.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	default:
		return nil, fmt.Errorf("stored value %T cannot hydrate a real field", p)
	}
}

// DDL implements Type.
func (Real) DDL() string { return "REAL" }

// Blob stores raw bytes in a BLOB column.
type Blob struct{}

func (Blob) fieldType() {}

// Kind implements Type.
func (Blob) Kind() Kind { return KindBlob }

// Validate accepts []byte only.
func (Blob) Validate(v any) (any, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("expected bytes, got %T", v)
	}
	return b, nil
}

// ToStorage implements Type.
func (t Blob) ToStorage(v any) (any, error) {
	return t.Validate(v)
}

// FromStorage implements Type.
func (Blob) FromStorage(p any) (any, error) {
	switch b := p.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return nil, fmt.Errorf("stored value %T cannot hydrate a blob field", p)
	}
}

// DDL implements Type.
func (Blob) DDL() string { return "BLOB" }

// Boolean stores true/false as INTEGER 0/1.
type Boolean struct{}

func (Boolean) fieldType() {}

// Kind implements Type.
func (Boolean) Kind() Kind { return KindBoolean }

// Validate accepts bool only. Integers are rejected: 0/1 encoding is a
// storage detail, not part of the runtime contract.
func (Boolean) Validate(v any) (any, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("expected boolean, got %T", v)
	}
	return b, nil
}

// ToStorage converts bool to the stored 0/1 integer.
func (t Boolean) ToStorage(v any) (any, error) {
	val, err := t.Validate(v)
	if err != nil {
		return nil, err
	}
	if val.(bool) {
		return int64(1), nil
	}
	return int64(0), nil
}

// FromStorage converts the stored integer back to bool.
// Any nonzero value hydrates to true, matching SQLite's own truthiness.
func (Boolean) FromStorage(p any) (any, error) {
	switch n := p.(type) {
	case int64:
		return n != 0, nil
	case bool:
		return n, nil
	default:
		return nil, fmt.Errorf("stored value %T cannot hydrate a boolean field", p)
	}
}

// DDL implements Type.
func (Boolean) DDL() string { return "INTEGER" }

// DateTime stores instants as RFC 3339 UTC text.
//
// OnCreate fields are filled with the current time when a record is
// inserted; OnUpdate fields on insert and on every update. Autofill is
// applied by the engine before validation, so caller-supplied values for
// plain DateTime fields still pass through Validate.
type DateTime struct {
	OnCreate bool
	OnUpdate bool
}

func (DateTime) fieldType() {}

// Kind implements Type.
func (DateTime) Kind() Kind { return KindDateTime }

// Validate accepts time.Time only.
func (DateTime) Validate(v any) (any, error) {
	t, ok := v.(time.Time)
	if !ok {
		return nil, fmt.Errorf("expected time, got %T", v)
	}
	return t, nil
}

// ToStorage converts to RFC 3339 text in UTC so stored values compare
// lexicographically in chronological order.
func (d DateTime) ToStorage(v any) (any, error) {
	val, err := d.Validate(v)
	if err != nil {
		return nil, err
	}
	return val.(time.Time).UTC().Format(time.RFC3339Nano), nil
}

// FromStorage parses the stored RFC 3339 text back into time.Time.
func (DateTime) FromStorage(p any) (any, error) {
	var s string
	switch v := p.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case time.Time:
		return v, nil
	default:
		return nil, fmt.Errorf("stored value %T cannot hydrate a datetime field", p)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("stored value %q is not a valid datetime: %w", s, err)
	}
	return t, nil
}

// DDL implements Type.
func (DateTime) DDL() string { return "TEXT" }
