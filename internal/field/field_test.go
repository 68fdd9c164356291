package field

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeSealed(t *testing.T) {
	// Compile-time check that every variant satisfies Type.
	var _ Type = Integer{}
	var _ Type = Text{}
	var _ Type = Real{}
	var _ Type = Blob{}
	var _ Type = Boolean{}
	var _ Type = DateTime{}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "integer", KindInteger.String())
	assert.Equal(t, "text", KindText.String())
	assert.Equal(t, "real", KindReal.String())
	assert.Equal(t, "blob", KindBlob.String())
	assert.Equal(t, "boolean", KindBoolean.String())
	assert.Equal(t, "datetime", KindDateTime.String())
}

// =============================================================================
// Validate
// =============================================================================

func TestValidateAcceptsDeclaredTypes(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		typ  Type
		in   any
		want any
	}{
		{"integer int64", Integer{}, int64(7), int64(7)},
		{"integer int", Integer{}, 7, int64(7)},
		{"integer int32", Integer{}, int32(7), int64(7)},
		{"text", Text{}, "hello", "hello"},
		{"real float64", Real{}, 2.5, 2.5},
		{"real float32", Real{}, float32(1.5), 1.5},
		{"real widens int", Real{}, 3, 3.0},
		{"blob", Blob{}, []byte{0x01, 0x02}, []byte{0x01, 0x02}},
		{"boolean", Boolean{}, true, true},
		{"datetime", DateTime{}, now, now},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.typ.Validate(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateRejectsMismatches(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		in   any
	}{
		{"integer rejects string", Integer{}, "7"},
		{"integer rejects float", Integer{}, 7.0},
		{"integer rejects bool", Integer{}, true},
		{"text rejects int", Text{}, 42},
		{"text rejects bytes", Text{}, []byte("x")},
		{"real rejects string", Real{}, "2.5"},
		{"blob rejects string", Blob{}, "raw"},
		{"boolean rejects int", Boolean{}, 1},
		{"boolean rejects string", Boolean{}, "true"},
		{"datetime rejects string", DateTime{}, "2024-01-01T00:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.typ.Validate(tt.in)
			assert.Error(t, err)
		})
	}
}

// =============================================================================
// ToStorage / FromStorage
// =============================================================================

func TestBooleanStorageRoundTrip(t *testing.T) {
	p, err := Boolean{}.ToStorage(true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p)

	p, err = Boolean{}.ToStorage(false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), p)

	v, err := Boolean{}.FromStorage(int64(1))
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = Boolean{}.FromStorage(int64(0))
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestBooleanFromStorageNonzeroIsTrue(t *testing.T) {
	v, err := Boolean{}.FromStorage(int64(7))
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestDateTimeStorageIsRFC3339UTC(t *testing.T) {
	loc := time.FixedZone("plus2", 2*3600)
	in := time.Date(2024, 3, 1, 14, 30, 0, 0, loc)

	p, err := DateTime{}.ToStorage(in)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T12:30:00Z", p)

	v, err := DateTime{}.FromStorage(p)
	require.NoError(t, err)
	assert.True(t, in.Equal(v.(time.Time)))
}

func TestDateTimeFromStorageRejectsGarbage(t *testing.T) {
	_, err := DateTime{}.FromStorage("not-a-time")
	assert.Error(t, err)

	_, err = DateTime{}.FromStorage(int64(12))
	assert.Error(t, err)
}

func TestTextFromStorageAcceptsBytes(t *testing.T) {
	v, err := Text{}.FromStorage([]byte("stored"))
	require.NoError(t, err)
	assert.Equal(t, "stored", v)
}

func TestRealFromStorageWidensInteger(t *testing.T) {
	// SQLite stores whole-valued reals as integers.
	v, err := Real{}.FromStorage(int64(4))
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)
}

func TestFromStorageRejectsImpossibleValues(t *testing.T) {
	_, err := Integer{}.FromStorage("seven")
	assert.Error(t, err)

	_, err = Boolean{}.FromStorage("true")
	assert.Error(t, err)

	_, err = Blob{}.FromStorage(int64(1))
	assert.Error(t, err)
}

// =============================================================================
// Column DDL
// =============================================================================

func TestColumnDDL(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want string
	}{
		{
			"primary key",
			Spec{Name: "id", Type: Integer{}, PrimaryKey: true},
			`"id" INTEGER PRIMARY KEY`,
		},
		{
			"required text",
			Spec{Name: "email", Type: Text{}},
			`"email" TEXT NOT NULL`,
		},
		{
			"required unique text",
			Spec{Name: "email", Type: Text{}, Unique: true},
			`"email" TEXT NOT NULL UNIQUE`,
		},
		{
			"nullable real",
			Spec{Name: "score", Type: Real{}, Nullable: true},
			`"score" REAL`,
		},
		{
			"boolean stored as integer",
			Spec{Name: "active", Type: Boolean{}},
			`"active" INTEGER NOT NULL`,
		},
		{
			"datetime stored as text",
			Spec{Name: "created_at", Type: DateTime{OnCreate: true}},
			`"created_at" TEXT NOT NULL`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.spec.ColumnDDL())
		})
	}
}

func TestQuoteIdentEscapesQuotes(t *testing.T) {
	assert.Equal(t, `"name"`, QuoteIdent("name"))
	assert.Equal(t, `"we""ird"`, QuoteIdent(`we"ird`))
}

func TestFieldErrorMessageAndPredicate(t *testing.T) {
	err := &FieldError{Field: "email", Code: CodeType, Message: "expected string, got int"}
	assert.Equal(t, `field "email": expected string, got int`, err.Error())
	assert.True(t, IsFieldError(err))
	assert.False(t, IsFieldError(assert.AnError))
}
