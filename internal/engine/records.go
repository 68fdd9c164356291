package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/petracek/modelite/internal/model"
	"github.com/petracek/modelite/internal/query"
	"github.com/petracek/modelite/internal/sqlgen"
	"github.com/petracek/modelite/internal/store"
)

// FilterOption adjusts how Filter materializes its results.
type FilterOption func(*filterConfig)

type filterConfig struct {
	eager bool
}

// EagerRefs makes Filter resolve every populated reference field up front and
// attach the related records. It costs one extra lookup per reference value
// and buffers the whole result set, because the store admits one live cursor
// at a time and the lookups cannot run while the filter cursor is open.
func EagerRefs() FilterOption {
	return func(c *filterConfig) { c.eager = true }
}

// Filter runs the query and returns an iterator over matching records.
//
// Plain filters stream from the live cursor and hold the store's statement
// slot until the iterator is closed; no other call on the same store may run
// in between. With EagerRefs the rows are drained and resolved before Filter
// returns, and closing the iterator is a no-op.
func (e *Engine) Filter(ctx context.Context, s *model.Schema, q query.Query, opts ...FilterOption) (*Records, error) {
	var cfg filterConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	stmt, args, err := sqlgen.Select(s, q)
	if err != nil {
		return nil, err
	}
	slog.Debug("filter", "table", s.Table(), "args", len(args))
	rows, err := e.store.Query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	if !cfg.eager {
		return &Records{schema: s, rows: rows}, nil
	}

	recs, err := drain(s, rows)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if err := e.ResolveRefs(ctx, rec); err != nil {
			return nil, err
		}
	}
	return &Records{schema: s, buffered: recs, eager: true}, nil
}

// Records iterates over the results of a filter.
//
// Usage mirrors database/sql:
//
//	recs, err := eng.Filter(ctx, users, q)
//	if err != nil { ... }
//	defer recs.Close()
//	for recs.Next() {
//		rec := recs.Record()
//		...
//	}
//	if err := recs.Err(); err != nil { ... }
type Records struct {
	schema *model.Schema

	// Streaming mode: rows is the live cursor.
	rows *store.Rows

	// Eager mode: the drained, resolved result set.
	buffered []*model.Record
	eager    bool
	idx      int

	cur *model.Record
	err error
}

// Next advances to the next record. It returns false at the end of the set
// or on the first hydration failure, which Err then reports.
func (rs *Records) Next() bool {
	if rs.err != nil {
		return false
	}
	if rs.eager {
		if rs.idx >= len(rs.buffered) {
			return false
		}
		rs.cur = rs.buffered[rs.idx]
		rs.idx++
		return true
	}
	if !rs.rows.Next() {
		return false
	}
	rec, err := scanRecord(rs.schema, rs.rows.Scan)
	if err != nil {
		rs.err = err
		return false
	}
	rs.cur = rec
	return true
}

// Record returns the record Next advanced to.
func (rs *Records) Record() *model.Record { return rs.cur }

// Err reports the error that ended iteration early, if any.
func (rs *Records) Err() error {
	if rs.err != nil {
		return rs.err
	}
	if rs.rows != nil {
		return rs.rows.Err()
	}
	return nil
}

// Close releases the underlying cursor and the store's statement slot.
// Safe to call more than once, and a no-op for eager result sets.
func (rs *Records) Close() error {
	if rs.rows != nil {
		return rs.rows.Close()
	}
	return nil
}

// drain hydrates every remaining row and closes the cursor, releasing the
// store before any follow-up statements run.
func drain(s *model.Schema, rows *store.Rows) ([]*model.Record, error) {
	defer rows.Close()
	var recs []*model.Record
	for rows.Next() {
		rec, err := scanRecord(s, rows.Scan)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, rows.Close()
}

// getRow fetches one row with a single-row statement and hydrates it.
// Missing rows come back as (nil, nil).
func (e *Engine) getRow(ctx context.Context, s *model.Schema, stmt string, key any) (*model.Record, error) {
	rec, err := scanRecord(s, func(dest ...any) error {
		return e.store.QueryRow(ctx, stmt, []any{key}, dest...)
	})
	if errors.Is(err, store.ErrNoRow) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// scanRecord scans one row in declared column order and hydrates each stored
// primitive through its field codec.
func scanRecord(s *model.Schema, scan func(dest ...any) error) (*model.Record, error) {
	fields := s.Fields()
	raw := make([]any, len(fields))
	ptrs := make([]any, len(fields))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := scan(ptrs...); err != nil {
		return nil, err
	}

	values := make(map[string]any, len(fields))
	for i, f := range fields {
		if raw[i] == nil {
			values[f.Name] = nil
			continue
		}
		v, err := f.Type.FromStorage(raw[i])
		if err != nil {
			return nil, fmt.Errorf("hydrating %s.%s: %w", s.Name(), f.Name, err)
		}
		values[f.Name] = v
	}

	id, ok := values[s.PrimaryKey().Name].(int64)
	if !ok {
		return nil, fmt.Errorf("hydrating %s: primary key is %T, want int64",
			s.Name(), values[s.PrimaryKey().Name])
	}
	return model.NewRecord(s, id, values), nil
}
