package models

import "time"

// Book is a catalog entry shared by all users.
type Book struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	ISBN          *string    `json:"isbn"`
	Description   *string    `json:"description"`
	CoverURL      *string    `json:"cover_url"`
	PageCount     *int       `json:"page_count"`
	PublishedDate *time.Time `json:"published_date"`
	Genres        []string   `json:"genres"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewBook is the insert shape of a Book; the store assigns id and timestamps.
type NewBook struct {
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	ISBN          *string    `json:"isbn"`
	Description   *string    `json:"description"`
	CoverURL      *string    `json:"cover_url"`
	PageCount     *int       `json:"page_count"`
	PublishedDate *time.Time `json:"published_date"`
	Genres        []string   `json:"genres"`
}
