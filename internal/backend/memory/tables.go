package memory

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"bookshelf/internal/backend"
	"bookshelf/pkg/models"
)

func (b *Backend) GetProfile(ctx context.Context, req backend.GetProfileRequest) (*models.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(OpGetProfile); err != nil {
		return nil, err
	}
	if err := b.requireSessionLocked("get profile", false); err != nil {
		return nil, err
	}
	p, ok := b.profiles[req.ID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (b *Backend) UpdateProfile(ctx context.Context, req backend.UpdateProfileRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(OpUpdateProfile); err != nil {
		return err
	}
	if err := b.requireSessionLocked("update profile", true); err != nil {
		return err
	}
	p, ok := b.profiles[req.ID]
	if !ok {
		return backend.WriteError("update profile", http.StatusNotFound, "profile not found")
	}
	req.Fields.Apply(&p)
	p.UpdatedAt = b.now()
	b.profiles[req.ID] = p
	return nil
}

// SeedProfile stores p directly, bypassing auth.
func (b *Backend) SeedProfile(p models.Profile) {
	b.mu.Lock()
	b.profiles[p.ID] = p
	b.mu.Unlock()
}

// Profile returns the stored row for id.
func (b *Backend) Profile(id string) (models.Profile, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.profiles[id]
	return p, ok
}

func (b *Backend) FindBookByISBN(ctx context.Context, req backend.FindBookByISBNRequest) (*models.Book, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(OpFindBook); err != nil {
		return nil, err
	}
	if err := b.requireSessionLocked("find book", false); err != nil {
		return nil, err
	}
	if bk, ok := b.findByISBNLocked(req.ISBN); ok {
		return &bk, nil
	}
	return nil, nil
}

// findByISBNLocked is an equality match; rows stored without an ISBN never match.
func (b *Backend) findByISBNLocked(isbn string) (models.Book, bool) {
	for _, id := range b.bookOrder {
		bk := b.books[id]
		if bk.ISBN != nil && *bk.ISBN == isbn {
			return bk, true
		}
	}
	return models.Book{}, false
}

func (b *Backend) InsertBook(ctx context.Context, req backend.InsertBookRequest) (*models.Book, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(OpInsertBook); err != nil {
		return nil, err
	}
	if err := b.requireSessionLocked("insert book", true); err != nil {
		return nil, err
	}
	bk := b.insertBookLocked(req.Book)
	return &bk, nil
}

func (b *Backend) insertBookLocked(nb models.NewBook) models.Book {
	now := b.now()
	bk := models.Book{
		ID:            uuid.NewString(),
		Title:         nb.Title,
		Author:        nb.Author,
		ISBN:          nb.ISBN,
		Description:   nb.Description,
		CoverURL:      nb.CoverURL,
		PageCount:     nb.PageCount,
		PublishedDate: nb.PublishedDate,
		Genres:        nb.Genres,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	b.books[bk.ID] = bk
	b.bookOrder = append(b.bookOrder, bk.ID)
	return bk
}

// Books returns every catalog row in insertion order.
func (b *Backend) Books() []models.Book {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Book, 0, len(b.bookOrder))
	for _, id := range b.bookOrder {
		out = append(out, b.books[id])
	}
	return out
}

// SeedBook inserts a catalog row directly and returns it.
func (b *Backend) SeedBook(nb models.NewBook) models.Book {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.insertBookLocked(nb)
}

func (b *Backend) ListShelf(ctx context.Context, req backend.ListShelfRequest) ([]models.ShelfEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(OpListShelf); err != nil {
		return nil, err
	}
	if err := b.requireSessionLocked("list shelf", false); err != nil {
		return nil, err
	}

	filter := req.Status
	if filter == models.StatusAll {
		filter = ""
	}

	// newest first, like the SQL store
	out := make([]models.ShelfEntry, 0, len(b.shelfOrd))
	for i := len(b.shelfOrd) - 1; i >= 0; i-- {
		ub := b.shelf[b.shelfOrd[i]]
		if ub.UserID != req.UserID {
			continue
		}
		if filter != "" && ub.Status != filter {
			continue
		}
		out = append(out, models.ShelfEntry{UserBook: ub, Book: b.books[ub.BookID]})
	}
	return out, nil
}

func (b *Backend) InsertUserBook(ctx context.Context, req backend.InsertUserBookRequest) (*models.UserBook, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(OpInsertUserBook); err != nil {
		return nil, err
	}
	if err := b.requireSessionLocked("insert user book", true); err != nil {
		return nil, err
	}
	ub, err := b.insertUserBookLocked(req)
	if err != nil {
		return nil, err
	}
	return &ub, nil
}

func (b *Backend) insertUserBookLocked(req backend.InsertUserBookRequest) (models.UserBook, error) {
	if _, ok := b.books[req.BookID]; !ok {
		return models.UserBook{}, backend.WriteError("insert user book", http.StatusBadRequest, "unknown book_id")
	}
	status := req.Status
	if status == "" {
		status = models.StatusWantToRead
	}
	if !status.Valid() {
		return models.UserBook{}, backend.WriteError("insert user book", http.StatusBadRequest, "invalid status")
	}
	now := b.now()
	ub := models.UserBook{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		BookID:    req.BookID,
		Status:    status,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.shelf[ub.ID] = ub
	b.shelfOrd = append(b.shelfOrd, ub.ID)
	return ub, nil
}

func (b *Backend) UpdateUserBook(ctx context.Context, req backend.UpdateUserBookRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(OpUpdateUserBook); err != nil {
		return err
	}
	if err := b.requireSessionLocked("update user book", true); err != nil {
		return err
	}
	ub, ok := b.shelf[req.ID]
	if !ok {
		return backend.WriteError("update user book", http.StatusNotFound, "not found")
	}
	req.Fields.Apply(&ub)
	ub.UpdatedAt = b.now()
	b.shelf[req.ID] = ub
	return nil
}

// UserBooks returns every shelf row in insertion order.
func (b *Backend) UserBooks() []models.UserBook {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.UserBook, 0, len(b.shelfOrd))
	for _, id := range b.shelfOrd {
		out = append(out, b.shelf[id])
	}
	return out
}

// Atomic wraps a Backend and adds the single-write ingestion capability.
type Atomic struct {
	*Backend
}

func NewAtomic() *Atomic {
	return &Atomic{Backend: New()}
}

func (a *Atomic) IngestToShelf(ctx context.Context, req backend.IngestRequest) (*models.UserBook, error) {
	b := a.Backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin(OpIngest); err != nil {
		return nil, err
	}
	if err := b.requireSessionLocked("ingest", true); err != nil {
		return nil, err
	}

	// A failed shelf insert takes the freshly created book with it.
	bk, found := b.findByISBNLocked(req.ISBN)
	if !found {
		bk = b.insertBookLocked(req.Book)
	}
	ub, err := b.insertUserBookLocked(backend.InsertUserBookRequest{
		UserID: req.UserID,
		BookID: bk.ID,
		Status: models.StatusWantToRead,
	})
	if err != nil {
		if !found {
			delete(b.books, bk.ID)
			b.bookOrder = b.bookOrder[:len(b.bookOrder)-1]
		}
		return nil, err
	}
	return &ub, nil
}

var (
	_ backend.Client        = (*Backend)(nil)
	_ backend.ShelfIngester = (*Atomic)(nil)
)
