package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshelf/pkg/models"
)

func intPtr(n int) *int { return &n }

func TestCoverURL(t *testing.T) {
	assert.Equal(t, "https://covers.openlibrary.org/b/id/240727-M.jpg", CoverURL(240727))
}

func TestLookupISBN(t *testing.T) {
	assert.Equal(t, "123", LookupISBN(models.SearchDoc{ISBN: []string{"123", "456"}}))
	assert.Equal(t, "", LookupISBN(models.SearchDoc{}))
}

func TestBookFromDocFullRecord(t *testing.T) {
	cover := int64(42)
	doc := models.SearchDoc{
		Title:               "Dune",
		AuthorName:          []string{"Frank Herbert", "Someone Else"},
		ISBN:                []string{"9780441013593"},
		FirstSentence:       []string{"In the week before..."},
		NumberOfPagesMedian: intPtr(896),
		FirstPublishYear:    intPtr(1965),
		Subject:             []string{"Science fiction"},
		CoverI:              &cover,
	}

	nb := BookFromDoc(doc)
	assert.Equal(t, "Dune", nb.Title)
	assert.Equal(t, "Frank Herbert", nb.Author)
	require.NotNil(t, nb.ISBN)
	assert.Equal(t, "9780441013593", *nb.ISBN)
	require.NotNil(t, nb.Description)
	assert.Equal(t, "In the week before...", *nb.Description)
	require.NotNil(t, nb.PageCount)
	assert.Equal(t, 896, *nb.PageCount)
	require.NotNil(t, nb.PublishedDate)
	assert.Equal(t, time.Date(1965, time.January, 1, 0, 0, 0, 0, time.UTC), *nb.PublishedDate)
	assert.Equal(t, []string{"Science fiction"}, nb.Genres)
	require.NotNil(t, nb.CoverURL)
	assert.Equal(t, "https://covers.openlibrary.org/b/id/42-M.jpg", *nb.CoverURL)
}

func TestBookFromDocSparseRecord(t *testing.T) {
	nb := BookFromDoc(models.SearchDoc{Title: "Untitled Notes"})

	assert.Equal(t, "Untitled Notes", nb.Title)
	assert.Equal(t, "Unknown", nb.Author)
	assert.Nil(t, nb.ISBN)
	assert.Nil(t, nb.Description)
	assert.Nil(t, nb.PageCount)
	assert.Nil(t, nb.PublishedDate)
	assert.Nil(t, nb.Genres)
	assert.Nil(t, nb.CoverURL)
}

func TestBookFromDocTreatsZeroAsAbsent(t *testing.T) {
	zero := int64(0)
	nb := BookFromDoc(models.SearchDoc{
		Title:               "Zeroes",
		NumberOfPagesMedian: intPtr(0),
		FirstPublishYear:    intPtr(0),
		CoverI:              &zero,
		AuthorName:          []string{""},
	})
	assert.Equal(t, "Unknown", nb.Author)
	assert.Nil(t, nb.PageCount)
	assert.Nil(t, nb.PublishedDate)
	assert.Nil(t, nb.CoverURL)
}
