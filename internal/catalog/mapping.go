package catalog

import (
	"fmt"
	"strings"
	"time"

	"bookshelf/pkg/models"
)

const coverBaseURL = "https://covers.openlibrary.org/b/id"

// CoverURL returns the medium cover image for an Open Library cover id.
func CoverURL(coverID int64) string {
	return fmt.Sprintf("%s/%d-M.jpg", coverBaseURL, coverID)
}

// LookupISBN is the key used to find an existing catalog row: the first ISBN
// of the record, or "" when it has none.
func LookupISBN(doc models.SearchDoc) string {
	if len(doc.ISBN) == 0 {
		return ""
	}
	return strings.TrimSpace(doc.ISBN[0])
}

// BookFromDoc maps a search record to a new catalog row. Empty values become
// nil so the row stores NULL rather than "" or 0.
func BookFromDoc(doc models.SearchDoc) models.NewBook {
	nb := models.NewBook{
		Title:  doc.Title,
		Author: "Unknown",
	}
	if len(doc.AuthorName) > 0 && doc.AuthorName[0] != "" {
		nb.Author = doc.AuthorName[0]
	}
	if isbn := LookupISBN(doc); isbn != "" {
		nb.ISBN = &isbn
	}
	if len(doc.FirstSentence) > 0 && doc.FirstSentence[0] != "" {
		d := doc.FirstSentence[0]
		nb.Description = &d
	}
	if doc.CoverI != nil && *doc.CoverI != 0 {
		u := CoverURL(*doc.CoverI)
		nb.CoverURL = &u
	}
	if doc.NumberOfPagesMedian != nil && *doc.NumberOfPagesMedian != 0 {
		n := *doc.NumberOfPagesMedian
		nb.PageCount = &n
	}
	if doc.FirstPublishYear != nil && *doc.FirstPublishYear != 0 {
		t := time.Date(*doc.FirstPublishYear, time.January, 1, 0, 0, 0, 0, time.UTC)
		nb.PublishedDate = &t
	}
	if len(doc.Subject) > 0 {
		nb.Genres = append([]string(nil), doc.Subject...)
	}
	return nb
}
