package models

import (
	"strings"
	"time"
)

type Status string

const (
	StatusWantToRead Status = "want_to_read"
	StatusReading    Status = "reading"
	StatusRead       Status = "read"
	StatusDNF        Status = "dnf"
)

// StatusAll is the shelf filter value that disables status filtering.
const StatusAll Status = "all"

// Statuses lists the valid shelf statuses in display order.
var Statuses = []Status{StatusWantToRead, StatusReading, StatusRead, StatusDNF}

func (s Status) Valid() bool {
	switch s {
	case StatusWantToRead, StatusReading, StatusRead, StatusDNF:
		return true
	}
	return false
}

// ParseStatus normalizes loose spellings ("want to read", "did not finish")
// into a Status. It returns "" for anything it does not recognise.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "want_to_read", "want to read", "wanttoread", "want":
		return StatusWantToRead
	case "reading":
		return StatusReading
	case "read", "finished":
		return StatusRead
	case "dnf", "did not finish", "did_not_finish":
		return StatusDNF
	case "all":
		return StatusAll
	default:
		return ""
	}
}

// UserBook is one shelf entry: a user's relationship to a catalog book.
type UserBook struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	BookID     string     `json:"book_id"`
	Status     Status     `json:"status"`
	Rating     *int       `json:"rating"`
	Review     *string    `json:"review"`
	Progress   int        `json:"progress"`
	StartDate  *time.Time `json:"start_date"`
	FinishDate *time.Time `json:"finish_date"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ShelfEntry is a UserBook joined with its catalog Book.
type ShelfEntry struct {
	UserBook
	Book Book `json:"book"`
}

// UserBookUpdate is a partial update of a UserBook. Nil fields are not written.
type UserBookUpdate struct {
	Status     *Status    `json:"status,omitempty"`
	Rating     *int       `json:"rating,omitempty"`
	Review     *string    `json:"review,omitempty"`
	Progress   *int       `json:"progress,omitempty"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	FinishDate *time.Time `json:"finish_date,omitempty"`
}

func (u UserBookUpdate) Empty() bool {
	return u.Status == nil && u.Rating == nil && u.Review == nil &&
		u.Progress == nil && u.StartDate == nil && u.FinishDate == nil
}

// Apply merges the supplied fields into ub.
func (u UserBookUpdate) Apply(ub *UserBook) {
	if ub == nil {
		return
	}
	if u.Status != nil {
		ub.Status = *u.Status
	}
	if u.Rating != nil {
		v := *u.Rating
		ub.Rating = &v
	}
	if u.Review != nil {
		v := *u.Review
		ub.Review = &v
	}
	if u.Progress != nil {
		ub.Progress = *u.Progress
	}
	if u.StartDate != nil {
		v := *u.StartDate
		ub.StartDate = &v
	}
	if u.FinishDate != nil {
		v := *u.FinishDate
		ub.FinishDate = &v
	}
}
