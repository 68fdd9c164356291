package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petracek/modelite/internal/field"
)

// lookupStub records calls so tests can assert that reference checks are
// deferred behind the cheap checks.
type lookupStub struct {
	calls  int
	exists bool
	err    error
}

func (l *lookupStub) fn(target *Schema, tf field.Spec, v any) (bool, error) {
	l.calls++
	return l.exists, l.err
}

func noLookup(t *testing.T) LookupFunc {
	return func(target *Schema, tf field.Spec, v any) (bool, error) {
		t.Fatalf("lookup must not be called, got %s.%s key %v", target.Name(), tf.Name, v)
		return false, nil
	}
}

func registerAll(t *testing.T, decls ...Declaration) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, d := range decls {
		_, err := r.Register(d)
		require.NoError(t, err)
	}
	return r
}

func fieldCode(t *testing.T, err error) (string, string) {
	t.Helper()
	var fe *field.FieldError
	require.ErrorAs(t, err, &fe)
	return fe.Field, fe.Code
}

func TestValidateRecordNormalizesAndSubstitutesDefaults(t *testing.T) {
	r := registerAll(t, userDecl())
	s, _ := r.Get("User")

	out, err := ValidateRecord(s, map[string]any{"email": "a@b.c"}, noLookup(t))
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"email":  "a@b.c",
		"active": true, // default substituted
	}, out)
	_, hasPK := out["id"]
	assert.False(t, hasPK, "primary key is never part of the insert values")
}

func TestValidateRecordRejectsUndeclaredField(t *testing.T) {
	r := registerAll(t, userDecl())
	s, _ := r.Get("User")

	_, err := ValidateRecord(s, map[string]any{"email": "a@b.c", "nickname": "x"}, noLookup(t))
	require.Error(t, err)
	name, code := fieldCode(t, err)
	assert.Equal(t, "nickname", name)
	assert.Equal(t, field.CodeUnknownField, code)
}

func TestValidateRecordRejectsCallerSuppliedPrimaryKey(t *testing.T) {
	r := registerAll(t, userDecl())
	s, _ := r.Get("User")

	_, err := ValidateRecord(s, map[string]any{"id": 7, "email": "a@b.c"}, noLookup(t))
	require.Error(t, err)
	name, code := fieldCode(t, err)
	assert.Equal(t, "id", name)
	assert.Equal(t, field.CodePrimaryKey, code)
}

func TestValidateRecordRequiredFieldMissing(t *testing.T) {
	r := registerAll(t, userDecl())
	s, _ := r.Get("User")

	_, err := ValidateRecord(s, map[string]any{}, noLookup(t))
	require.Error(t, err)
	name, code := fieldCode(t, err)
	assert.Equal(t, "email", name)
	assert.Equal(t, field.CodeNull, code)
}

func TestValidateRecordExplicitNilForNullableField(t *testing.T) {
	r := registerAll(t, Declaration{
		Name: "Note",
		Fields: []field.Spec{
			{Name: "body", Type: field.Text{}},
			{Name: "score", Type: field.Real{}, Nullable: true},
		},
	})
	s, _ := r.Get("Note")

	out, err := ValidateRecord(s, map[string]any{"body": "hi", "score": nil}, noLookup(t))
	require.NoError(t, err)
	v, present := out["score"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestValidateRecordAbsentNullableFieldBecomesNil(t *testing.T) {
	r := registerAll(t, Declaration{
		Name: "Note",
		Fields: []field.Spec{
			{Name: "body", Type: field.Text{}},
			{Name: "score", Type: field.Real{}, Nullable: true},
		},
	})
	s, _ := r.Get("Note")

	out, err := ValidateRecord(s, map[string]any{"body": "hi"}, noLookup(t))
	require.NoError(t, err)
	v, present := out["score"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestValidateRecordFailsFastInDeclarationOrder(t *testing.T) {
	r := registerAll(t, Declaration{
		Name: "Pair",
		Fields: []field.Spec{
			{Name: "first", Type: field.Integer{}},
			{Name: "second", Type: field.Integer{}},
		},
	})
	s, _ := r.Get("Pair")

	// Both values are invalid; the first declared field must be reported.
	_, err := ValidateRecord(s, map[string]any{"first": "x", "second": "y"}, noLookup(t))
	require.Error(t, err)
	name, code := fieldCode(t, err)
	assert.Equal(t, "first", name)
	assert.Equal(t, field.CodeType, code)
}

func TestValidateRecordDefersLookupBehindCheapChecks(t *testing.T) {
	r := registerAll(t, userDecl(), postDecl())
	s, _ := r.Get("Post")

	stub := &lookupStub{exists: true}
	_, err := ValidateRecord(s, map[string]any{
		"title":     42, // type failure on an earlier field
		"author_id": 1,
	}, stub.fn)
	require.Error(t, err)
	assert.Zero(t, stub.calls, "reference lookup must not run when a cheap check fails")
}

func TestValidateRecordRefViolation(t *testing.T) {
	r := registerAll(t, userDecl(), postDecl())
	s, _ := r.Get("Post")

	stub := &lookupStub{exists: false}
	_, err := ValidateRecord(s, map[string]any{"title": "hello", "author_id": 99}, stub.fn)
	require.Error(t, err)
	assert.True(t, IsRefViolation(err))
	assert.Equal(t, 1, stub.calls)

	var re *RefError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "author_id", re.Field)
	assert.Equal(t, "User", re.Model)
	assert.Equal(t, int64(99), re.Value)
}

func TestValidateRecordRefSatisfied(t *testing.T) {
	r := registerAll(t, userDecl(), postDecl())
	s, _ := r.Get("Post")

	stub := &lookupStub{exists: true}
	out, err := ValidateRecord(s, map[string]any{"title": "hello", "author_id": 1}, stub.fn)
	require.NoError(t, err)
	assert.Equal(t, int64(1), out["author_id"])
	assert.Equal(t, 1, stub.calls)
}

func TestValidateRecordNilRefSkipsLookup(t *testing.T) {
	r := registerAll(t, userDecl())
	_, err := r.Register(Declaration{
		Name: "Draft",
		Fields: []field.Spec{
			{Name: "title", Type: field.Text{}},
			{Name: "reviewer_id", Type: field.Integer{}, Nullable: true, Ref: &field.Ref{Model: "User"}},
		},
	})
	require.NoError(t, err)
	s, _ := r.Get("Draft")

	out, err := ValidateRecord(s, map[string]any{"title": "wip"}, noLookup(t))
	require.NoError(t, err)
	assert.Nil(t, out["reviewer_id"])
}

func TestValidateRecordLookupErrorPropagates(t *testing.T) {
	r := registerAll(t, userDecl(), postDecl())
	s, _ := r.Get("Post")

	boom := errors.New("database is sulking")
	stub := &lookupStub{err: boom}
	_, err := ValidateRecord(s, map[string]any{"title": "hello", "author_id": 1}, stub.fn)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsRefViolation(err))
	assert.False(t, field.IsFieldError(err))
}

func TestValidateChangesTouchesOnlyProvidedFields(t *testing.T) {
	r := registerAll(t, userDecl())
	s, _ := r.Get("User")

	out, err := ValidateChanges(s, map[string]any{"active": false}, noLookup(t))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"active": false}, out)
}

func TestValidateChangesRejectsUndeclaredAndPrimaryKey(t *testing.T) {
	r := registerAll(t, userDecl())
	s, _ := r.Get("User")

	_, err := ValidateChanges(s, map[string]any{"nope": 1}, noLookup(t))
	require.Error(t, err)
	_, code := fieldCode(t, err)
	assert.Equal(t, field.CodeUnknownField, code)

	_, err = ValidateChanges(s, map[string]any{"id": 2}, noLookup(t))
	require.Error(t, err)
	_, code = fieldCode(t, err)
	assert.Equal(t, field.CodePrimaryKey, code)
}

func TestValidateChangesChecksChangedRefs(t *testing.T) {
	r := registerAll(t, userDecl(), postDecl())
	s, _ := r.Get("Post")

	stub := &lookupStub{exists: false}
	_, err := ValidateChanges(s, map[string]any{"author_id": 5}, stub.fn)
	require.Error(t, err)
	assert.True(t, IsRefViolation(err))
}

func TestValidateChangesNilForNonNullableField(t *testing.T) {
	r := registerAll(t, userDecl())
	s, _ := r.Get("User")

	_, err := ValidateChanges(s, map[string]any{"email": nil}, noLookup(t))
	require.Error(t, err)
	name, code := fieldCode(t, err)
	assert.Equal(t, "email", name)
	assert.Equal(t, field.CodeNull, code)
}
