// Package store is the only package that touches the SQLite driver.
//
// It owns a single database handle and serializes statements on a mutex, so
// exactly one statement is in flight at any time. Everything above it deals
// in statement text and bound arguments; nothing above it imports
// database/sql.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the single SQLite connection.
//
// All operations are synchronous and run to completion before returning;
// Query hands back a live cursor and keeps the statement slot occupied until
// the cursor is closed. Callers must not issue store calls while one of
// their cursors is open.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Open creates or opens a SQLite database at the given path.
//
// The connection is configured with:
//   - a pool capped at one connection, matching SQLite's single writer
//   - WAL mode for concurrent readers (file databases)
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - foreign key enforcement
//
// Foreign keys are validated by the layer above before any write reaches
// the driver; the pragma is a second line that turns check-then-write races
// into driver errors instead of silent dangling references.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, &DriverError{Op: "open", Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &DriverError{Op: "open", Err: err}
	}

	// One connection total. The mutex in this package is the concurrency
	// story; the pool must not grow a second handle behind it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return &DriverError{Op: "close", Err: err}
	}
	return nil
}

// Path returns the path the store was opened with.
func (s *Store) Path() string { return s.path }

// Result reports the outcome of an Exec.
type Result struct {
	LastInsertID int64
	RowsAffected int64
}

// Exec runs a statement that returns no rows.
func (s *Store) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return Result{}, &DriverError{Op: "exec", Err: err}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Result{}, &DriverError{Op: "exec", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Result{}, &DriverError{Op: "exec", Err: err}
	}
	return Result{LastInsertID: id, RowsAffected: n}, nil
}

// QueryRow runs a single-row query and scans it into dest.
// Returns ErrNoRow when the query matches nothing. The scan happens inside
// the call, so no cursor outlives it.
func (s *Store) QueryRow(ctx context.Context, query string, args []any, dest ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.QueryRowContext(ctx, query, args...).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoRow
	}
	if err != nil {
		return &DriverError{Op: "query row", Err: err}
	}
	return nil
}

// Query runs a multi-row query and returns a forward-only cursor.
//
// The statement slot stays occupied until Close. Close is idempotent and
// must always be called, even when iteration is abandoned early.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	s.mu.Lock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.mu.Unlock()
		return nil, &DriverError{Op: "query", Err: err}
	}
	return &Rows{rows: rows, release: s.mu.Unlock}, nil
}

// applyPragmas sets the required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return &DriverError{Op: "pragma", Err: fmt.Errorf("%s: %w", pragma, err)}
		}
	}
	return nil
}

// verifyPragma checks that a pragma reads back the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
