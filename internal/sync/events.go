package sync

import (
	"context"
	"errors"
	"time"

	"bookshelf/pkg/models"
)

const (
	EventShelfInsert = "shelf.insert"
	EventShelfUpdate = "shelf.update"
)

// ShelfEvent announces a change to one user_books row. It is delivered only
// to connections authenticated as UserID.
type ShelfEvent struct {
	Type       string        `json:"type"`
	UserID     string        `json:"user_id"`
	UserBookID string        `json:"user_book_id"`
	BookID     string        `json:"book_id"`
	Status     models.Status `json:"status,omitempty"`
	Progress   int           `json:"progress"`
	Rating     *int          `json:"rating,omitempty"`
	At         time.Time     `json:"at"`
}

// NewShelfEvent describes ub after a write of the given type.
func NewShelfEvent(typ string, ub models.UserBook) ShelfEvent {
	return ShelfEvent{
		Type:       typ,
		UserID:     ub.UserID,
		UserBookID: ub.ID,
		BookID:     ub.BookID,
		Status:     ub.Status,
		Progress:   ub.Progress,
		Rating:     ub.Rating,
		At:         time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev ShelfEvent) error
}

// Fanout publishes to every member and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev ShelfEvent) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AuthFunc resolves a bearer token to a user id.
type AuthFunc func(ctx context.Context, token string) (string, error)
