package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petracek/modelite/internal/query"
)

// collect drains an iterator and returns the records in arrival order.
func collect(t *testing.T, rs *Records) []map[string]any {
	t.Helper()
	defer func() { require.NoError(t, rs.Close()) }()

	var out []map[string]any
	for rs.Next() {
		rec := rs.Record()
		row := map[string]any{"id": rec.ID()}
		for _, f := range rec.Schema().Fields() {
			v, ok := rec.Get(f.Name)
			require.True(t, ok)
			row[f.Name] = v
		}
		out = append(out, row)
	}
	require.NoError(t, rs.Err())
	return out
}

func seedUsers(t *testing.T, eng *Engine) {
	t.Helper()
	ctx := context.Background()
	users := mustSchema(t, eng.Registry(), "User")
	for _, u := range []map[string]any{
		{"email": "ada@calc.dev", "active": true},
		{"email": "grace@navy.mil", "active": false},
		{"email": "edsger@thagard.nl", "active": true},
	} {
		_, err := eng.Create(ctx, users, u)
		require.NoError(t, err)
	}
}

func TestFilterAllStreamsInKeyOrder(t *testing.T) {
	eng, reg := newTestEngine(t, nil, userDecl())
	seedUsers(t, eng)

	rs, err := eng.Filter(context.Background(), mustSchema(t, reg, "User"), query.All())
	require.NoError(t, err)

	rows := collect(t, rs)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, int64(2), rows[1]["id"])
	assert.Equal(t, int64(3), rows[2]["id"])
}

func TestFilterWhereAndOrder(t *testing.T) {
	eng, reg := newTestEngine(t, nil, userDecl())
	seedUsers(t, eng)

	q := query.Where(query.Eq("active", true)).Sorted("email", true)
	rs, err := eng.Filter(context.Background(), mustSchema(t, reg, "User"), q)
	require.NoError(t, err)

	rows := collect(t, rs)
	require.Len(t, rows, 2)
	assert.Equal(t, "edsger@thagard.nl", rows[0]["email"])
	assert.Equal(t, "ada@calc.dev", rows[1]["email"])
}

func TestFilterLimitOffsetPaging(t *testing.T) {
	eng, reg := newTestEngine(t, nil, userDecl())
	seedUsers(t, eng)
	users := mustSchema(t, reg, "User")
	ctx := context.Background()

	page1, err := eng.Filter(ctx, users, query.All().Take(2))
	require.NoError(t, err)
	rows := collect(t, page1)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0]["id"])

	page2, err := eng.Filter(ctx, users, query.All().Take(2).Skip(2))
	require.NoError(t, err)
	rows = collect(t, page2)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), rows[0]["id"])
}

func TestFilterInClause(t *testing.T) {
	eng, reg := newTestEngine(t, nil, userDecl())
	seedUsers(t, eng)

	q := query.Where(query.In("email", "ada@calc.dev", "edsger@thagard.nl"))
	rs, err := eng.Filter(context.Background(), mustSchema(t, reg, "User"), q)
	require.NoError(t, err)

	rows := collect(t, rs)
	assert.Len(t, rows, 2)
}

func TestFilterEmptyResult(t *testing.T) {
	eng, reg := newTestEngine(t, nil, userDecl())

	rs, err := eng.Filter(context.Background(), mustSchema(t, reg, "User"), query.All())
	require.NoError(t, err)

	rows := collect(t, rs)
	assert.Empty(t, rows)
}

func TestFilterRejectsUnknownField(t *testing.T) {
	eng, reg := newTestEngine(t, nil, userDecl())

	_, err := eng.Filter(context.Background(), mustSchema(t, reg, "User"),
		query.Where(query.Eq("nickname", "x")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")
}

func TestFilterStreamingReleasesStoreOnClose(t *testing.T) {
	eng, reg := newTestEngine(t, nil, userDecl())
	seedUsers(t, eng)
	users := mustSchema(t, reg, "User")
	ctx := context.Background()

	rs, err := eng.Filter(ctx, users, query.All())
	require.NoError(t, err)
	require.True(t, rs.Next())
	require.NoError(t, rs.Close())

	// The statement slot is free again; a follow-up call must not block.
	n, err := eng.Count(ctx, users, query.All())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestFilterEagerRefsAttachesRelatedRecords(t *testing.T) {
	eng, reg := newTestEngine(t, nil, userDecl(), postDecl())
	users := mustSchema(t, reg, "User")
	posts := mustSchema(t, reg, "Post")
	ctx := context.Background()

	ada, err := eng.Create(ctx, users, map[string]any{"email": "ada@calc.dev"})
	require.NoError(t, err)
	grace, err := eng.Create(ctx, users, map[string]any{"email": "grace@navy.mil"})
	require.NoError(t, err)
	for _, p := range []map[string]any{
		{"title": "engines", "author_id": ada},
		{"title": "compilers", "author_id": grace},
	} {
		_, err := eng.Create(ctx, posts, p)
		require.NoError(t, err)
	}

	rs, err := eng.Filter(ctx, posts, query.All(), EagerRefs())
	require.NoError(t, err)
	defer rs.Close()

	var emails []string
	for rs.Next() {
		author, ok := rs.Record().Related("author_id")
		require.True(t, ok, "eager filter attaches the referenced record")
		email, _ := author.Get("email")
		emails = append(emails, email.(string))
	}
	require.NoError(t, rs.Err())
	assert.Equal(t, []string{"ada@calc.dev", "grace@navy.mil"}, emails)
}

func TestFilterWithoutEagerRefsLeavesRelatedUnset(t *testing.T) {
	eng, reg := newTestEngine(t, nil, userDecl(), postDecl())
	users := mustSchema(t, reg, "User")
	posts := mustSchema(t, reg, "Post")
	ctx := context.Background()

	ada, err := eng.Create(ctx, users, map[string]any{"email": "ada@calc.dev"})
	require.NoError(t, err)
	_, err = eng.Create(ctx, posts, map[string]any{"title": "engines", "author_id": ada})
	require.NoError(t, err)

	rs, err := eng.Filter(ctx, posts, query.All())
	require.NoError(t, err)
	defer rs.Close()

	require.True(t, rs.Next())
	_, ok := rs.Record().Related("author_id")
	assert.False(t, ok, "plain filters never fetch related rows")
	require.NoError(t, rs.Err())
}

func TestResolveRefsAfterGet(t *testing.T) {
	eng, reg := newTestEngine(t, nil, userDecl(), postDecl())
	users := mustSchema(t, reg, "User")
	posts := mustSchema(t, reg, "Post")
	ctx := context.Background()

	ada, err := eng.Create(ctx, users, map[string]any{"email": "ada@calc.dev"})
	require.NoError(t, err)
	postID, err := eng.Create(ctx, posts, map[string]any{"title": "engines", "author_id": ada})
	require.NoError(t, err)

	rec, err := eng.Get(ctx, posts, postID)
	require.NoError(t, err)
	require.NoError(t, eng.ResolveRefs(ctx, rec))

	author, ok := rec.Related("author_id")
	require.True(t, ok)
	assert.Equal(t, ada, author.ID())
}

func TestRecordsCloseIsIdempotent(t *testing.T) {
	eng, reg := newTestEngine(t, nil, userDecl())
	seedUsers(t, eng)

	rs, err := eng.Filter(context.Background(), mustSchema(t, reg, "User"), query.All())
	require.NoError(t, err)
	require.NoError(t, rs.Close())
	require.NoError(t, rs.Close())
}
