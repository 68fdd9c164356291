package engine

import "errors"

// ErrNotFound reports an update or delete aimed at a primary key with no row
// behind it. Callers match it with errors.Is; the wrapped message carries the
// table and key.
//
// Get deliberately does not use it: a missing row on read returns (nil, nil),
// absence there is an answer rather than a failure.
var ErrNotFound = errors.New("record not found")
