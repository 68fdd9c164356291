package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petracek/modelite/internal/field"
)

func userDecl() Declaration {
	return Declaration{
		Name: "User",
		Fields: []field.Spec{
			{Name: "email", Type: field.Text{}, Unique: true},
			{Name: "active", Type: field.Boolean{}, Default: true},
		},
	}
}

func postDecl() Declaration {
	return Declaration{
		Name: "Post",
		Fields: []field.Spec{
			{Name: "title", Type: field.Text{}},
			{Name: "author_id", Type: field.Integer{}, Ref: &field.Ref{Model: "User"}},
		},
	}
}

func TestRegisterInjectsImplicitPrimaryKey(t *testing.T) {
	r := NewRegistry()
	s, err := r.Register(userDecl())
	require.NoError(t, err)

	fields := s.Fields()
	require.Len(t, fields, 3)
	assert.Equal(t, "id", fields[0].Name)
	assert.True(t, fields[0].PrimaryKey)
	assert.Equal(t, field.KindInteger, fields[0].Type.Kind())
	assert.Equal(t, "id", s.PrimaryKey().Name)
	assert.Equal(t, []string{"id", "email", "active"}, s.Columns())
}

func TestRegisterKeepsExplicitPrimaryKey(t *testing.T) {
	r := NewRegistry()
	s, err := r.Register(Declaration{
		Name: "Counter",
		Fields: []field.Spec{
			{Name: "seq", Type: field.Integer{}, PrimaryKey: true},
			{Name: "label", Type: field.Text{}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "seq", s.PrimaryKey().Name)
	assert.Equal(t, []string{"seq", "label"}, s.Columns())
}

func TestRegisterTableNameDefaultsToLowercase(t *testing.T) {
	r := NewRegistry()
	s, err := r.Register(userDecl())
	require.NoError(t, err)
	assert.Equal(t, "user", s.Table())

	s2, err := r.Register(Declaration{
		Name:   "AuditEvent",
		Table:  "audit_log",
		Fields: []field.Spec{{Name: "what", Type: field.Text{}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "audit_log", s2.Table())
}

func TestRegisterNormalizesDefaults(t *testing.T) {
	r := NewRegistry()
	s, err := r.Register(Declaration{
		Name: "Gauge",
		Fields: []field.Spec{
			{Name: "threshold", Type: field.Integer{}, Default: 10},
		},
	})
	require.NoError(t, err)
	f, ok := s.Field("threshold")
	require.True(t, ok)
	assert.Equal(t, int64(10), f.Default)
}

func TestRegisterRejectsBadDeclarations(t *testing.T) {
	tests := []struct {
		name string
		decl Declaration
	}{
		{"empty model name", Declaration{Fields: []field.Spec{{Name: "a", Type: field.Text{}}}}},
		{"empty field name", Declaration{Name: "M", Fields: []field.Spec{{Type: field.Text{}}}}},
		{"nil field type", Declaration{Name: "M", Fields: []field.Spec{{Name: "a"}}}},
		{"duplicate field", Declaration{Name: "M", Fields: []field.Spec{
			{Name: "a", Type: field.Text{}},
			{Name: "a", Type: field.Integer{}},
		}}},
		{"two primary keys", Declaration{Name: "M", Fields: []field.Spec{
			{Name: "a", Type: field.Integer{}, PrimaryKey: true},
			{Name: "b", Type: field.Integer{}, PrimaryKey: true},
		}}},
		{"text primary key", Declaration{Name: "M", Fields: []field.Spec{
			{Name: "a", Type: field.Text{}, PrimaryKey: true},
		}}},
		{"primary key with ref", Declaration{Name: "M", Fields: []field.Spec{
			{Name: "a", Type: field.Integer{}, PrimaryKey: true, Ref: &field.Ref{Model: "User"}},
		}}},
		{"default fails its type", Declaration{Name: "M", Fields: []field.Spec{
			{Name: "a", Type: field.Integer{}, Default: "ten"},
		}}},
		{"id collides with implicit pk", Declaration{Name: "M", Fields: []field.Spec{
			{Name: "id", Type: field.Text{}},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			_, err := r.Register(tt.decl)
			assert.Error(t, err)
		})
	}
}

func TestRegisterResolvesRefsAgainstEarlierModels(t *testing.T) {
	r := NewRegistry()
	users, err := r.Register(userDecl())
	require.NoError(t, err)

	posts, err := r.Register(postDecl())
	require.NoError(t, err)

	target, tf, ok := posts.RefTarget("author_id")
	require.True(t, ok)
	assert.Same(t, users, target)
	assert.Equal(t, "id", tf.Name)
}

func TestRegisterRejectsRefToUnregisteredModel(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(postDecl())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unregistered model")
}

func TestRegisterRejectsRefTypeMismatch(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(userDecl())
	require.NoError(t, err)

	_, err = r.Register(Declaration{
		Name: "Badge",
		Fields: []field.Spec{
			{Name: "owner_email", Type: field.Integer{}, Ref: &field.Ref{Model: "User", Field: "email"}},
		},
	})
	assert.Error(t, err)
}

func TestRegisterRefToNamedField(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(userDecl())
	require.NoError(t, err)

	badges, err := r.Register(Declaration{
		Name: "Badge",
		Fields: []field.Spec{
			{Name: "owner_email", Type: field.Text{}, Ref: &field.Ref{Model: "User", Field: "email"}},
		},
	})
	require.NoError(t, err)

	_, tf, ok := badges.RefTarget("owner_email")
	require.True(t, ok)
	assert.Equal(t, "email", tf.Name)
}

func TestRegisterIdempotentForIdenticalDeclaration(t *testing.T) {
	r := NewRegistry()
	first, err := r.Register(userDecl())
	require.NoError(t, err)

	again, err := r.Register(userDecl())
	require.NoError(t, err)
	assert.Same(t, first, again)
}

func TestRegisterConflictingRedeclaration(t *testing.T) {
	r := NewRegistry()
	first, err := r.Register(userDecl())
	require.NoError(t, err)

	changed := userDecl()
	changed.Fields[0].Nullable = true
	_, err = r.Register(changed)
	require.Error(t, err)
	assert.True(t, IsConflict(err))

	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "User", ce.Model)
	assert.Equal(t, first.Fingerprint(), ce.Existing)

	// Registry keeps the original.
	got, ok := r.Get("User")
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestDefaultRegistryHelpers(t *testing.T) {
	// The Default registry is process-wide, so this test owns its model name.
	s, err := Register(Declaration{
		Name:   "DefaultRegistryProbe",
		Fields: []field.Spec{{Name: "label", Type: field.Text{}}},
	})
	require.NoError(t, err)

	got, ok := Lookup("DefaultRegistryProbe")
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = Lookup("NeverRegistered")
	assert.False(t, ok)
}

func TestSchemasReturnsRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(userDecl())
	require.NoError(t, err)
	_, err = r.Register(postDecl())
	require.NoError(t, err)

	schemas := r.Schemas()
	require.Len(t, schemas, 2)
	assert.Equal(t, "User", schemas[0].Name())
	assert.Equal(t, "Post", schemas[1].Name())
}
