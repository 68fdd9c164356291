package store

import (
	"database/sql"
	"sync"
)

// Rows is a forward-only cursor over a query result.
//
// It wraps the driver cursor and releases the store's statement slot when
// closed. Iteration follows the database/sql shape:
//
//	rows, err := st.Query(ctx, stmt, args...)
//	if err != nil { ... }
//	defer rows.Close()
//	for rows.Next() {
//	    if err := rows.Scan(dests...); err != nil { ... }
//	}
//	if err := rows.Err(); err != nil { ... }
type Rows struct {
	rows    *sql.Rows
	release func()
	once    sync.Once
	err     error
}

// Next advances to the next row. It returns false at the end of the result
// or on error; Err distinguishes the two.
func (r *Rows) Next() bool {
	return r.rows.Next()
}

// Scan copies the current row's columns into dest.
func (r *Rows) Scan(dest ...any) error {
	if err := r.rows.Scan(dest...); err != nil {
		return &DriverError{Op: "scan", Err: err}
	}
	return nil
}

// Err returns the error, if any, that ended iteration early.
func (r *Rows) Err() error {
	if err := r.rows.Err(); err != nil {
		return &DriverError{Op: "rows", Err: err}
	}
	return nil
}

// Close releases the cursor and the store's statement slot.
// Idempotent: extra calls are no-ops.
func (r *Rows) Close() error {
	r.once.Do(func() {
		if err := r.rows.Close(); err != nil {
			r.err = &DriverError{Op: "close rows", Err: err}
		}
		r.release()
	})
	return r.err
}
