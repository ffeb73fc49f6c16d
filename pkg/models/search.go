package models

// SearchDoc is one record of an Open Library search response. Every field is
// optional upstream.
type SearchDoc struct {
	Key                 string   `json:"key"`
	Title               string   `json:"title"`
	AuthorName          []string `json:"author_name,omitempty"`
	ISBN                []string `json:"isbn,omitempty"`
	FirstSentence       []string `json:"first_sentence,omitempty"`
	NumberOfPagesMedian *int     `json:"number_of_pages_median,omitempty"`
	FirstPublishYear    *int     `json:"first_publish_year,omitempty"`
	Subject             []string `json:"subject,omitempty"`
	CoverI              *int64   `json:"cover_i,omitempty"`
}
