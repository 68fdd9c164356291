package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore opens a store on a fresh database file.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpenAppliesPragmas(t *testing.T) {
	st := newTestStore(t)

	assert.NoError(t, st.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, st.verifyPragma("synchronous", "1")) // NORMAL
	assert.NoError(t, st.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, st.verifyPragma("foreign_keys", "1"))
}

func TestOpenFailsForUnreachablePath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "nested", "test.db"))
	require.Error(t, err)
	assert.True(t, IsDriverError(err))
}

func TestExecReportsIDAndCount(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Exec(ctx, `CREATE TABLE things ("id" INTEGER PRIMARY KEY, "name" TEXT NOT NULL)`)
	require.NoError(t, err)

	res, err := st.Exec(ctx, `INSERT INTO things ("name") VALUES (?)`, "first")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.LastInsertID)
	assert.Equal(t, int64(1), res.RowsAffected)

	res, err = st.Exec(ctx, `UPDATE things SET "name" = ? WHERE "id" = ?`, "renamed", int64(99))
	require.NoError(t, err)
	assert.Zero(t, res.RowsAffected)
}

func TestExecWrapsDriverFailures(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Exec(context.Background(), "THIS IS NOT SQL")
	require.Error(t, err)
	assert.True(t, IsDriverError(err))

	var de *DriverError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "exec", de.Op)
}

func TestQueryRowScansAndSignalsAbsence(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Exec(ctx, `CREATE TABLE things ("id" INTEGER PRIMARY KEY, "name" TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = st.Exec(ctx, `INSERT INTO things ("name") VALUES (?)`, "only")
	require.NoError(t, err)

	var name string
	err = st.QueryRow(ctx, `SELECT "name" FROM things WHERE "id" = ?`, []any{int64(1)}, &name)
	require.NoError(t, err)
	assert.Equal(t, "only", name)

	err = st.QueryRow(ctx, `SELECT "name" FROM things WHERE "id" = ?`, []any{int64(2)}, &name)
	assert.ErrorIs(t, err, ErrNoRow)
	assert.False(t, IsDriverError(err), "absence is a signal, not a driver failure")
}

func TestQueryCursorIteratesInOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Exec(ctx, `CREATE TABLE things ("id" INTEGER PRIMARY KEY, "name" TEXT NOT NULL)`)
	require.NoError(t, err)
	for _, name := range []string{"a", "b", "c"} {
		_, err = st.Exec(ctx, `INSERT INTO things ("name") VALUES (?)`, name)
		require.NoError(t, err)
	}

	rows, err := st.Query(ctx, `SELECT "id", "name" FROM things ORDER BY "id" ASC`)
	require.NoError(t, err)
	defer rows.Close()

	var got []string
	for rows.Next() {
		var id int64
		var name string
		require.NoError(t, rows.Scan(&id, &name))
		got = append(got, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestQueryCloseReleasesStatementSlot(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Exec(ctx, `CREATE TABLE things ("id" INTEGER PRIMARY KEY, "name" TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = st.Exec(ctx, `INSERT INTO things ("name") VALUES (?)`, "x")
	require.NoError(t, err)

	rows, err := st.Query(ctx, `SELECT "id" FROM things`)
	require.NoError(t, err)

	// Abandon iteration without draining.
	require.NoError(t, rows.Close())
	require.NoError(t, rows.Close()) // idempotent

	// The slot must be free again.
	_, err = st.Exec(ctx, `INSERT INTO things ("name") VALUES (?)`, "y")
	assert.NoError(t, err)
}

func TestForeignKeyPragmaBacksValidation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Exec(ctx, `CREATE TABLE parents ("id" INTEGER PRIMARY KEY)`)
	require.NoError(t, err)
	_, err = st.Exec(ctx, `CREATE TABLE children ("id" INTEGER PRIMARY KEY, "parent_id" INTEGER NOT NULL REFERENCES parents ("id"))`)
	require.NoError(t, err)

	_, err = st.Exec(ctx, `INSERT INTO children ("parent_id") VALUES (?)`, int64(42))
	require.Error(t, err)
	assert.True(t, IsDriverError(err))
}

func TestTableColumns(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Exec(ctx, `CREATE TABLE things ("id" INTEGER PRIMARY KEY, "name" TEXT NOT NULL, "score" REAL)`)
	require.NoError(t, err)

	cols, err := st.TableColumns(ctx, "things")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "score"}, cols)

	cols, err = st.TableColumns(ctx, "absent")
	require.NoError(t, err)
	assert.Empty(t, cols)
}
