package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/petracek/modelite/internal/field"
	"github.com/petracek/modelite/internal/model"
	"github.com/petracek/modelite/internal/query"
	"github.com/petracek/modelite/internal/sqlgen"
)

// Create validates the values and inserts one row, returning the identity the
// database assigned. The primary key must not be supplied. Managed datetime
// fields left absent are stamped with the engine clock.
func (e *Engine) Create(ctx context.Context, s *model.Schema, values map[string]any) (int64, error) {
	values = e.stampCreate(s, values)
	normalized, err := model.ValidateRecord(s, values, e.lookup(ctx))
	if err != nil {
		return 0, err
	}

	stmt, cols := sqlgen.Insert(s)
	args, err := bindColumns(s, cols, normalized)
	if err != nil {
		return 0, err
	}
	slog.Debug("insert", "table", s.Table(), "columns", len(cols))
	res, err := e.store.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertID, nil
}

// Get fetches one record by primary key. A missing row is an answer, not a
// failure: both return values are nil.
func (e *Engine) Get(ctx context.Context, s *model.Schema, id int64) (*model.Record, error) {
	return e.getRow(ctx, s, sqlgen.SelectByKey(s), id)
}

// Update validates the changed fields and writes exactly those columns.
// OnUpdate datetime fields are stamped unless the caller set them. Returns
// ErrNotFound wrapped with table and key when no row matches.
func (e *Engine) Update(ctx context.Context, s *model.Schema, id int64, changes map[string]any) error {
	changes = e.stampUpdate(s, changes)
	normalized, err := model.ValidateChanges(s, changes, e.lookup(ctx))
	if err != nil {
		return err
	}

	// Columns go out in declaration order so equal change sets produce
	// byte-identical statements.
	cols := make([]string, 0, len(normalized))
	for _, f := range s.Fields() {
		if _, ok := normalized[f.Name]; ok {
			cols = append(cols, f.Name)
		}
	}
	stmt, err := sqlgen.Update(s, cols)
	if err != nil {
		return err
	}
	args, err := bindColumns(s, cols, normalized)
	if err != nil {
		return err
	}
	args = append(args, id)
	slog.Debug("update", "table", s.Table(), "columns", len(cols))
	res, err := e.store.Exec(ctx, stmt, args...)
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update %q key %d: %w", s.Table(), id, ErrNotFound)
	}
	return nil
}

// Delete removes one row by primary key. Returns ErrNotFound wrapped with
// table and key when no row matches.
func (e *Engine) Delete(ctx context.Context, s *model.Schema, id int64) error {
	res, err := e.store.Exec(ctx, sqlgen.Delete(s), id)
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete %q key %d: %w", s.Table(), id, ErrNotFound)
	}
	return nil
}

// DeleteWhere removes every row matching the query and reports how many went.
// Matching nothing deletes nothing and is not an error.
func (e *Engine) DeleteWhere(ctx context.Context, s *model.Schema, q query.Query) (int64, error) {
	stmt, args, err := sqlgen.DeleteWhere(s, q)
	if err != nil {
		return 0, err
	}
	slog.Debug("delete where", "table", s.Table(), "args", len(args))
	res, err := e.store.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// Count reports how many rows match the query.
func (e *Engine) Count(ctx context.Context, s *model.Schema, q query.Query) (int64, error) {
	stmt, args, err := sqlgen.Count(s, q)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := e.store.QueryRow(ctx, stmt, args, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// ResolveRefs fetches the row behind every populated reference field and
// attaches it to the record. A reference whose target row has vanished since
// the read stays unattached; Record.Related reports the absence.
func (e *Engine) ResolveRefs(ctx context.Context, rec *model.Record) error {
	s := rec.Schema()
	for _, f := range s.Fields() {
		if f.Ref == nil {
			continue
		}
		v, ok := rec.Get(f.Name)
		if !ok || v == nil {
			continue
		}
		target, tf, ok := s.RefTarget(f.Name)
		if !ok {
			return fmt.Errorf("field %q: reference target not resolved", f.Name)
		}
		p, err := tf.Type.ToStorage(v)
		if err != nil {
			return fmt.Errorf("resolving %q: %w", f.Name, err)
		}
		related, err := e.getRow(ctx, target, sqlgen.SelectBy(target, tf.Name), p)
		if err != nil {
			return fmt.Errorf("resolving %q: %w", f.Name, err)
		}
		if related != nil {
			rec.AttachRelated(f.Name, related)
		}
	}
	return nil
}

// stampCreate fills managed datetime fields the caller left absent. Both
// OnCreate and OnUpdate fields receive the creation instant, so a record's
// created and modified stamps start equal.
func (e *Engine) stampCreate(s *model.Schema, values map[string]any) map[string]any {
	return e.stamp(s, values, func(dt field.DateTime) bool { return dt.OnCreate || dt.OnUpdate })
}

// stampUpdate fills OnUpdate fields the caller left absent. An explicit value
// in the change set wins over the clock.
func (e *Engine) stampUpdate(s *model.Schema, changes map[string]any) map[string]any {
	return e.stamp(s, changes, func(dt field.DateTime) bool { return dt.OnUpdate })
}

// stamp copies the values and fills each managed datetime field that is
// absent from the copy. The caller's map is never mutated.
func (e *Engine) stamp(s *model.Schema, values map[string]any, managed func(field.DateTime) bool) map[string]any {
	out := make(map[string]any, len(values)+1)
	for k, v := range values {
		out[k] = v
	}
	for _, f := range s.Fields() {
		dt, ok := f.Type.(field.DateTime)
		if !ok || !managed(dt) {
			continue
		}
		if _, present := out[f.Name]; !present {
			out[f.Name] = e.now().UTC()
		}
	}
	return out
}

// bindColumns converts normalized values into driver arguments in the given
// column order. Values are already validated; a codec failure here means the
// pipeline and the binder disagree, which is a bug worth surfacing.
func bindColumns(s *model.Schema, cols []string, values map[string]any) ([]any, error) {
	args := make([]any, 0, len(cols)+1)
	for _, c := range cols {
		v := values[c]
		if v == nil {
			args = append(args, nil)
			continue
		}
		f, ok := s.Field(c)
		if !ok {
			return nil, fmt.Errorf("bind: unknown field %q", c)
		}
		p, err := f.Type.ToStorage(v)
		if err != nil {
			return nil, fmt.Errorf("bind %q: %w", c, err)
		}
		args = append(args, p)
	}
	return args, nil
}
