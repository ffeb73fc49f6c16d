package books

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshelf/pkg/database"
	"bookshelf/pkg/models"
)

func newRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "books.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))
	return NewRepo(db)
}

func ptr[T any](v T) *T { return &v }

func TestInsertAndGetKeepsNullables(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	published := time.Date(1965, 1, 1, 0, 0, 0, 0, time.UTC)
	full, err := r.Insert(ctx, models.NewBook{
		Title:         "Dune",
		Author:        "Frank Herbert",
		ISBN:          ptr("9780441013593"),
		PageCount:     ptr(412),
		PublishedDate: &published,
		Genres:        []string{"Science fiction", "Ecology"},
	})
	require.NoError(t, err)
	sparse, err := r.Insert(ctx, models.NewBook{Title: "Untitled notes", Author: "Unknown"})
	require.NoError(t, err)

	got, err := r.GetByID(ctx, full.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "9780441013593", *got.ISBN)
	assert.Equal(t, 412, *got.PageCount)
	assert.True(t, published.Equal(*got.PublishedDate))
	assert.Equal(t, []string{"Science fiction", "Ecology"}, got.Genres)
	assert.Nil(t, got.Description)

	got, err = r.GetByID(ctx, sparse.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ISBN)
	assert.Nil(t, got.PageCount)
	assert.Nil(t, got.PublishedDate)
	assert.Empty(t, got.Genres)

	missing, err := r.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFindByISBN(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	_, err := r.Insert(ctx, models.NewBook{Title: "No ISBN", Author: "A"})
	require.NoError(t, err)
	first, err := r.Insert(ctx, models.NewBook{Title: "Dune", Author: "Herbert", ISBN: ptr("123")})
	require.NoError(t, err)
	_, err = r.Insert(ctx, models.NewBook{Title: "Dune (reprint)", Author: "Herbert", ISBN: ptr("123")})
	require.NoError(t, err)

	got, err := r.FindByISBN(ctx, "123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID, "oldest row wins")

	got, err = r.FindByISBN(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListAndCount(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	for _, title := range []string{"Dune", "Dune Messiah", "Neuromancer"} {
		_, err := r.Insert(ctx, models.NewBook{Title: title, Author: "Someone"})
		require.NoError(t, err)
	}

	q := ListQuery{Q: "dune", Limit: 1}
	total, err := r.Count(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	items, err := r.List(ctx, q)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Dune", items[0].Title)

	q.Offset = 1
	items, err = r.List(ctx, q)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Dune Messiah", items[0].Title)
}

func TestBuildListSQLClampsLimit(t *testing.T) {
	_, args := buildListSQL(ListQuery{Limit: 500, Offset: -4}, false)
	assert.Equal(t, []any{20, 0}, args)

	sqlStr, args := buildListSQL(ListQuery{ISBN: " 123 "}, true)
	assert.Contains(t, sqlStr, "isbn = ?")
	assert.Equal(t, []any{"123"}, args)
}

func TestValidate(t *testing.T) {
	nb := models.NewBook{Title: "  Dune ", ISBN: ptr("  ")}
	assert.Empty(t, Validate(&nb))
	assert.Equal(t, "Dune", nb.Title)
	assert.Equal(t, "Unknown", nb.Author)
	assert.Nil(t, nb.ISBN)

	assert.Equal(t, "title required", Validate(&models.NewBook{Title: " "}))
	assert.Equal(t, "page_count must be >= 0", Validate(&models.NewBook{Title: "x", PageCount: ptr(-1)}))
}
