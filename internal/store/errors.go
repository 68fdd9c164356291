package store

import (
	"errors"
	"fmt"
)

// ErrNoRow reports that a single-row query matched nothing.
// It is a signal, not a failure: callers decide whether absence is an error.
var ErrNoRow = errors.New("no row")

// DriverError wraps a failure from the SQLite driver. Nothing above this
// package sees a raw driver error.
type DriverError struct {
	Op  string // which adapter operation failed
	Err error
}

// Error implements the error interface.
func (e *DriverError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

// Unwrap exposes the driver error for errors.Is/As.
func (e *DriverError) Unwrap() error { return e.Err }

// IsDriverError reports whether err is (or wraps) a DriverError.
func IsDriverError(err error) bool {
	var de *DriverError
	return errors.As(err, &de)
}
