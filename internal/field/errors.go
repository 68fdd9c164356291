package field

import (
	"errors"
	"fmt"
)

// Validation failure codes carried by FieldError.
const (
	CodeType         = "type"          // value does not match the declared type
	CodeNull         = "null"          // nil value for a non-nullable field without a default
	CodeUnknownField = "unknown_field" // value supplied for a field the model does not declare
	CodePrimaryKey   = "primary_key"   // caller attempted to set the driver-assigned identity
)

// FieldError reports one field-level validation failure.
// Validation fails fast: the first failing field in declaration order wins.
type FieldError struct {
	Field   string
	Code    string
	Message string
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Message)
}

// IsFieldError reports whether err is (or wraps) a FieldError.
func IsFieldError(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe)
}
