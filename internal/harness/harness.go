// Package harness runs YAML conformance scenarios against the engine.
//
// Each scenario declares its models inline, drives a sequence of operations
// against a fresh database file, and asserts on the tables left behind.
// Determinism rules:
//   - Every run gets its own database, so identities always start at 1 and
//     scenarios can use literal keys.
//   - The engine clock starts at a fixed epoch and moves only when a
//     scenario advances it, so managed datetime stamps never depend on the
//     wall clock.
//   - Where clauses are compiled with sorted field names, so repeated runs
//     execute byte-identical statements.
//
// Runs are tagged with a UUIDv7 token that also names the database file,
// which keeps concurrent runs under one temp dir from colliding.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/petracek/modelite/internal/engine"
	"github.com/petracek/modelite/internal/field"
	"github.com/petracek/modelite/internal/model"
	"github.com/petracek/modelite/internal/query"
	"github.com/petracek/modelite/internal/store"
	"github.com/petracek/modelite/internal/testutil"
)

// scenarioEpoch pins managed datetime stamps across runs.
var scenarioEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness executes one scenario run.
type Harness struct {
	engine   *engine.Engine
	clock    *testutil.FixedClock
	logger   *slog.Logger
	newToken func() string
}

// Result aggregates the checks of one scenario run.
type Result struct {
	// Token is the UUIDv7 run token; the run's database file carries it too.
	Token string

	// Passed and Failed count steps and assertions.
	Passed int
	Failed int

	// Failures holds one message per failed check.
	Failures []string
}

// OK reports whether every check passed.
func (r *Result) OK() bool { return r.Failed == 0 }

func (r *Result) pass() { r.Passed++ }

func (r *Result) failf(format string, args ...any) {
	r.Failed++
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

// RunOption adjusts a scenario run.
type RunOption func(*Harness)

// WithLogger routes step logging somewhere visible. Runs are silent by
// default.
func WithLogger(l *slog.Logger) RunOption {
	return func(h *Harness) { h.logger = l }
}

// WithTokenSource replaces the UUIDv7 run token generator. Tests pin the
// token with it so golden reports and database paths are reproducible.
func WithTokenSource(next func() string) RunOption {
	return func(h *Harness) { h.newToken = next }
}

// Run executes a scenario against a fresh database under dir.
//
// The returned error covers infrastructure problems only (bad scenario,
// unreachable database). Failed expectations land in the Result.
func Run(ctx context.Context, scenario *Scenario, dir string, opts ...RunOption) (*Result, error) {
	h := &Harness{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		newToken: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, opt := range opts {
		opt(h)
	}
	token := h.newToken()

	st, err := store.Open(filepath.Join(dir, token+".db"))
	if err != nil {
		return nil, fmt.Errorf("opening scenario store: %w", err)
	}
	defer st.Close()

	reg := model.NewRegistry()
	for i, m := range scenario.Models {
		decl, err := buildDeclaration(m)
		if err != nil {
			return nil, fmt.Errorf("models[%d]: %w", i, err)
		}
		if _, err := reg.Register(decl); err != nil {
			return nil, fmt.Errorf("models[%d]: %w", i, err)
		}
	}

	h.clock = testutil.NewFixedClock(scenarioEpoch)
	h.engine = engine.New(st, reg, engine.WithClock(h.clock.Now))
	if err := h.engine.EnsureAll(ctx); err != nil {
		return nil, err
	}

	h.logger.Info("scenario starting", "name", scenario.Name, "token", token)

	result := &Result{Token: token}
	for i, step := range scenario.Steps {
		if err := h.runStep(ctx, i, step, result); err != nil {
			return nil, err
		}
	}
	for i, a := range scenario.Assertions {
		if err := h.runAssertion(ctx, i, a, result); err != nil {
			return nil, err
		}
	}

	h.logger.Info("scenario finished",
		"name", scenario.Name, "passed", result.Passed, "failed", result.Failed)
	return result, nil
}

// RunScenario loads and runs one scenario fixture against a fresh database
// under the test's temp dir, reporting failed checks through t.
func RunScenario(ctx context.Context, t *testing.T, path string) *Result {
	t.Helper()
	scenario, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("loading scenario %s: %v", path, err)
	}
	result, err := Run(ctx, scenario, t.TempDir())
	if err != nil {
		t.Fatalf("running scenario %q: %v", scenario.Name, err)
	}
	for _, f := range result.Failures {
		t.Errorf("scenario %q: %s", scenario.Name, f)
	}
	return result
}

// runStep executes one step and records its outcome. The returned error is
// reserved for malformed scenarios.
func (h *Harness) runStep(ctx context.Context, index int, step Step, result *Result) error {
	if step.Op == OpAdvance {
		d, err := time.ParseDuration(step.Duration)
		if err != nil {
			return fmt.Errorf("steps[%d]: bad duration %q: %w", index, step.Duration, err)
		}
		h.clock.Advance(d)
		h.logger.Debug("clock advanced", "step", index, "duration", step.Duration)
		return nil
	}

	s, ok := h.engine.Registry().Get(step.Model)
	if !ok {
		return fmt.Errorf("steps[%d]: model %q not declared", index, step.Model)
	}
	at := fmt.Sprintf("steps[%d] %s %s", index, step.Op, step.Model)

	switch step.Op {
	case OpCreate:
		id, err := h.engine.Create(ctx, s, step.Values)
		if h.settled(result, at, step.Expect, err) {
			return nil
		}
		if step.Expect != nil && step.Expect.Key != 0 && id != step.Expect.Key {
			result.failf("%s: assigned key %d, want %d", at, id, step.Expect.Key)
			return nil
		}
		result.pass()
		h.logger.Debug("created", "step", index, "model", step.Model, "key", id)

	case OpGet:
		rec, err := h.engine.Get(ctx, s, step.Key)
		if h.settled(result, at, step.Expect, err) {
			return nil
		}
		if step.Expect != nil && step.Expect.Absent {
			if rec != nil {
				result.failf("%s: key %d exists, expected absent", at, step.Key)
				return nil
			}
			result.pass()
			return nil
		}
		if rec == nil {
			result.failf("%s: no row for key %d", at, step.Key)
			return nil
		}
		if step.Expect != nil {
			if msg := matchValues(s, rec, step.Expect.Values); msg != "" {
				result.failf("%s: %s", at, msg)
				return nil
			}
		}
		result.pass()

	case OpUpdate:
		err := h.engine.Update(ctx, s, step.Key, step.Values)
		if h.settled(result, at, step.Expect, err) {
			return nil
		}
		result.pass()

	case OpDelete:
		err := h.engine.Delete(ctx, s, step.Key)
		if h.settled(result, at, step.Expect, err) {
			return nil
		}
		result.pass()

	case OpDeleteWhere:
		n, err := h.engine.DeleteWhere(ctx, s, whereQuery(step.Where))
		if h.settled(result, at, step.Expect, err) {
			return nil
		}
		if c := expectCount(step.Expect); c != nil && n != *c {
			result.failf("%s: deleted %d rows, want %d", at, n, *c)
			return nil
		}
		result.pass()

	case OpFilter:
		rs, err := h.engine.Filter(ctx, s, whereQuery(step.Where))
		if h.settled(result, at, step.Expect, err) {
			return nil
		}
		var n int64
		for rs.Next() {
			n++
		}
		iterErr := rs.Err()
		if closeErr := rs.Close(); iterErr == nil {
			iterErr = closeErr
		}
		if iterErr != nil {
			result.failf("%s: iterating: %v", at, iterErr)
			return nil
		}
		if c := expectCount(step.Expect); c != nil && n != *c {
			result.failf("%s: matched %d rows, want %d", at, n, *c)
			return nil
		}
		result.pass()

	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}
	return nil
}

// runAssertion checks final table contents.
func (h *Harness) runAssertion(ctx context.Context, index int, a Assertion, result *Result) error {
	s, ok := h.engine.Registry().Get(a.Model)
	if !ok {
		return fmt.Errorf("assertions[%d]: model %q not declared", index, a.Model)
	}
	at := fmt.Sprintf("assertions[%d] %s %s", index, a.Type, a.Model)

	switch a.Type {
	case AssertCount:
		n, err := h.engine.Count(ctx, s, whereQuery(a.Where))
		if err != nil {
			result.failf("%s: %v", at, err)
			return nil
		}
		if n != a.Count {
			result.failf("%s: counted %d rows, want %d", at, n, a.Count)
			return nil
		}
		result.pass()

	case AssertRow:
		rec, err := h.engine.Get(ctx, s, a.Key)
		if err != nil {
			result.failf("%s: %v", at, err)
			return nil
		}
		if a.Absent {
			if rec != nil {
				result.failf("%s: key %d exists, expected absent", at, a.Key)
				return nil
			}
			result.pass()
			return nil
		}
		if rec == nil {
			result.failf("%s: no row for key %d", at, a.Key)
			return nil
		}
		if msg := matchValues(s, rec, a.Expect); msg != "" {
			result.failf("%s: %s", at, msg)
			return nil
		}
		result.pass()

	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// settled resolves a step outcome against its expected error category.
// Returns true when the outcome is already decided: the step failed, or it
// errored exactly as expected.
func (h *Harness) settled(result *Result, at string, expect *Expect, err error) bool {
	want := ""
	if expect != nil {
		want = expect.Error
	}
	switch {
	case want == "" && err == nil:
		return false
	case want == "" && err != nil:
		result.failf("%s: unexpected error: %v", at, err)
		return true
	case err == nil:
		result.failf("%s: expected %s error, step succeeded", at, want)
		return true
	case matchErrorCategory(want, err):
		result.pass()
		return true
	default:
		result.failf("%s: expected %s error, got: %v", at, want, err)
		return true
	}
}

// matchErrorCategory maps an expect category onto the error taxonomy.
func matchErrorCategory(category string, err error) bool {
	switch category {
	case ExpectValidation:
		return field.IsFieldError(err)
	case ExpectRef:
		return model.IsRefViolation(err)
	case ExpectNotFound:
		return errors.Is(err, engine.ErrNotFound)
	case ExpectConflict:
		return model.IsConflict(err)
	case ExpectDriver:
		return store.IsDriverError(err)
	default:
		return false
	}
}

// matchValues subset-matches expected values against a fetched record.
// Expected values are normalized through the field's own validator so YAML
// integers compare equal to stored int64s. Returns "" on match.
func matchValues(s *model.Schema, rec *model.Record, want map[string]any) string {
	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		got, ok := rec.Get(k)
		if !ok {
			return fmt.Sprintf("field %q not declared", k)
		}
		wantVal := want[k]
		if wantVal == nil {
			if got != nil {
				return fmt.Sprintf("field %q is %v, want NULL", k, got)
			}
			continue
		}
		f, ok := s.Field(k)
		if !ok {
			return fmt.Sprintf("field %q not declared", k)
		}
		normalized, err := f.Type.Validate(wantVal)
		if err != nil {
			return fmt.Sprintf("field %q: expected value invalid: %v", k, err)
		}
		if !valueEqual(got, normalized) {
			return fmt.Sprintf("field %q is %v, want %v", k, got, normalized)
		}
	}
	return ""
}

// valueEqual compares a hydrated value with a normalized expectation.
// Times compare by instant; a Z suffix and a +00:00 offset must not differ.
func valueEqual(got, want any) bool {
	if gt, ok := got.(time.Time); ok {
		wt, ok := want.(time.Time)
		return ok && gt.Equal(wt)
	}
	return reflect.DeepEqual(got, want)
}

// whereQuery compiles an equality map into a query with sorted field order.
func whereQuery(where map[string]any) query.Query {
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]query.Clause, 0, len(keys))
	for _, k := range keys {
		clauses = append(clauses, query.Eq(k, where[k]))
	}
	return query.Where(clauses...)
}

// buildDeclaration converts an inline YAML model into a registry declaration.
func buildDeclaration(m ModelDecl) (model.Declaration, error) {
	decl := model.Declaration{Name: m.Name, Table: m.Table}
	for _, f := range m.Fields {
		t, err := fieldType(f)
		if err != nil {
			return decl, fmt.Errorf("field %q: %w", f.Name, err)
		}
		spec := field.Spec{
			Name:       f.Name,
			Type:       t,
			PrimaryKey: f.PrimaryKey,
			Nullable:   f.Nullable,
			Unique:     f.Unique,
			Default:    f.Default,
		}
		if f.Ref != nil {
			spec.Ref = &field.Ref{Model: f.Ref.Model, Field: f.Ref.Field}
		}
		decl.Fields = append(decl.Fields, spec)
	}
	return decl, nil
}

// fieldType maps a YAML type string to its field type. The strings match the
// compiler's CUE type names.
func fieldType(f FieldDecl) (field.Type, error) {
	switch f.Type {
	case "integer":
		return field.Integer{}, nil
	case "text":
		return field.Text{}, nil
	case "real":
		return field.Real{}, nil
	case "blob":
		return field.Blob{}, nil
	case "boolean":
		return field.Boolean{}, nil
	case "datetime":
		return field.DateTime{OnCreate: f.OnCreate, OnUpdate: f.OnUpdate}, nil
	default:
		return nil, fmt.Errorf("unknown type %q", f.Type)
	}
}

func expectCount(e *Expect) *int64 {
	if e == nil {
		return nil
	}
	return e.Count
}
