package model

import (
	"errors"
	"fmt"
)

// ConflictError reports a re-registration whose declaration differs from the
// one already registered under the same model name.
type ConflictError struct {
	Model    string
	Existing string // fingerprint of the registered declaration
	Proposed string // fingerprint of the rejected declaration
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("model %q: conflicting redeclaration (registered %.12s, proposed %.12s)",
		e.Model, e.Existing, e.Proposed)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// RefError reports a foreign-key value that matched no row in the target
// model's table at validation time.
type RefError struct {
	Field string // referencing field
	Model string // target model name
	Value any
}

// Error implements the error interface.
func (e *RefError) Error() string {
	return fmt.Sprintf("field %q references missing %s row (key %v)", e.Field, e.Model, e.Value)
}

// IsRefViolation reports whether err is (or wraps) a RefError.
func IsRefViolation(err error) bool {
	var re *RefError
	return errors.As(err, &re)
}
