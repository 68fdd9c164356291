package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/petracek/modelite/internal/field"
	"github.com/petracek/modelite/internal/model"
	"github.com/petracek/modelite/internal/sqlgen"
	"github.com/petracek/modelite/internal/store"
)

// Engine binds a registry of schemas to one open store.
//
// Thread-safety model:
//   - The store serializes statements behind its own mutex.
//   - A streaming Records iterator holds the store's statement slot until
//     closed, so no other engine call on the same store may run in between.
type Engine struct {
	store    *store.Store
	registry *model.Registry
	now      func() time.Time
}

// Option adjusts engine construction.
type Option func(*Engine)

// WithClock replaces the wall clock used to stamp managed datetime fields.
// Tests pin time with it.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an engine over an open store and a registry of schemas.
func New(st *store.Store, reg *model.Registry, opts ...Option) *Engine {
	e := &Engine{store: st, registry: reg, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the registry the engine was built with.
func (e *Engine) Registry() *model.Registry { return e.registry }

// lookup returns the reference probe injected into validation. It asks the
// target table whether a row holds the referenced value, so existence checks
// run against live data at the moment of validation.
func (e *Engine) lookup(ctx context.Context) model.LookupFunc {
	return func(target *model.Schema, tf field.Spec, v any) (bool, error) {
		p, err := tf.Type.ToStorage(v)
		if err != nil {
			return false, err
		}
		var one int64
		err = e.store.QueryRow(ctx, sqlgen.SelectKeyExists(target.Table(), tf.Name), []any{p}, &one)
		if errors.Is(err, store.ErrNoRow) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}
}

// EnsureTable creates the schema's table when absent and adds declared
// columns missing from an existing table.
//
// Synchronization is additive only. Surplus database columns are left alone;
// dropped or retyped fields are never reconciled.
func (e *Engine) EnsureTable(ctx context.Context, s *model.Schema) error {
	if _, err := e.store.Exec(ctx, sqlgen.CreateTable(s)); err != nil {
		return err
	}
	existing, err := e.store.TableColumns(ctx, s.Table())
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c] = true
	}
	for _, f := range s.Fields() {
		if have[f.Name] {
			continue
		}
		stmt, err := sqlgen.AddColumn(s, f)
		if err != nil {
			return err
		}
		if _, err := e.store.Exec(ctx, stmt); err != nil {
			return err
		}
		slog.Debug("added column", "table", s.Table(), "column", f.Name)
	}
	return nil
}

// EnsureAll runs EnsureTable for every registered schema in registration
// order. References only point backward, so each referenced table exists
// before the table declaring the reference.
func (e *Engine) EnsureAll(ctx context.Context) error {
	for _, s := range e.registry.Schemas() {
		if err := e.EnsureTable(ctx, s); err != nil {
			return fmt.Errorf("ensuring table %q: %w", s.Table(), err)
		}
	}
	return nil
}

// DropTable removes the schema's table if it exists. Rows referencing it from
// other tables are not touched; with foreign keys enforced SQLite will refuse
// the drop while referencing rows remain.
func (e *Engine) DropTable(ctx context.Context, s *model.Schema) error {
	_, err := e.store.Exec(ctx, sqlgen.DropTable(s))
	return err
}
