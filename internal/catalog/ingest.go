package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"bookshelf/internal/backend"
	"bookshelf/pkg/models"
)

// Store is the slice of the backend the ingester writes through.
type Store interface {
	backend.Books
	InsertUserBook(ctx context.Context, req backend.InsertUserBookRequest) (*models.UserBook, error)
}

// Ingester adds catalog search results to a user's shelf, creating the
// catalog row on first sight of an ISBN.
type Ingester struct {
	store Store
	log   *zap.Logger
}

func NewIngester(store Store, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{store: store, log: logger}
}

// AddToShelf shelves doc for userID as want_to_read. Stores implementing
// backend.ShelfIngester do it in one write; otherwise the book lookup, the
// book insert and the shelf insert run as separate steps and the first
// failing step's error is returned.
func (i *Ingester) AddToShelf(ctx context.Context, userID string, doc models.SearchDoc) (*models.UserBook, error) {
	if i == nil || i.store == nil {
		return nil, backend.ErrBackendUnavailable
	}
	if userID == "" {
		return nil, backend.ErrNoActiveUser
	}

	isbn := LookupISBN(doc)
	nb := BookFromDoc(doc)

	if atomic, ok := i.store.(backend.ShelfIngester); ok {
		ub, err := atomic.IngestToShelf(ctx, backend.IngestRequest{UserID: userID, ISBN: isbn, Book: nb})
		if err != nil {
			i.log.Error("add to shelf failed", zap.String("isbn", isbn), zap.Error(err))
			return nil, fmt.Errorf("add to shelf: %w", err)
		}
		return ub, nil
	}

	bookID, err := i.resolveBook(ctx, isbn, nb)
	if err != nil {
		return nil, err
	}

	// A failure here leaves a book created above without a shelf entry.
	ub, err := i.store.InsertUserBook(ctx, backend.InsertUserBookRequest{
		UserID: userID,
		BookID: bookID,
		Status: models.StatusWantToRead,
	})
	if err != nil {
		i.log.Error("insert shelf entry failed", zap.String("book_id", bookID), zap.Error(err))
		return nil, fmt.Errorf("insert shelf entry: %w", err)
	}
	return ub, nil
}

func (i *Ingester) resolveBook(ctx context.Context, isbn string, nb models.NewBook) (string, error) {
	existing, err := i.store.FindBookByISBN(ctx, backend.FindBookByISBNRequest{ISBN: isbn})
	if err != nil {
		i.log.Error("lookup book failed", zap.String("isbn", isbn), zap.Error(err))
		return "", fmt.Errorf("lookup book: %w", err)
	}
	if existing != nil {
		return existing.ID, nil
	}

	created, err := i.store.InsertBook(ctx, backend.InsertBookRequest{Book: nb})
	if err != nil {
		i.log.Error("insert book failed", zap.String("title", nb.Title), zap.Error(err))
		return "", fmt.Errorf("insert book: %w", err)
	}
	return created.ID, nil
}
