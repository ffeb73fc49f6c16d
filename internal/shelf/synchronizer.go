// Package shelf keeps a client-side copy of the signed-in user's shelf and
// writes status, progress and rating changes through to the backend.
package shelf

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"bookshelf/internal/backend"
	"bookshelf/internal/session"
	"bookshelf/pkg/models"
)

type Option func(*Synchronizer)

// WithClock overrides the source of start/finish timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

type Synchronizer struct {
	table backend.UserBooks
	log   *zap.Logger
	now   func() time.Time

	mu      sync.RWMutex
	userID  string
	filter  models.Status
	entries []models.ShelfEntry
	loading bool
	// gen changes with identity or filter; fetches started under an older
	// generation are dropped.
	gen uint64
}

// NewSynchronizer returns an empty shelf with no identity. A nil table makes
// every operation fail with backend.ErrBackendUnavailable.
func NewSynchronizer(table backend.UserBooks, logger *zap.Logger, opts ...Option) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Synchronizer{
		table:  table,
		log:    logger,
		now:    func() time.Time { return time.Now().UTC() },
		filter: models.StatusAll,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Entries returns a copy of the cached shelf.
func (s *Synchronizer) Entries() []models.ShelfEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ShelfEntry(nil), s.entries...)
}

// Entry returns the cached entry with the given id.
func (s *Synchronizer) Entry(id string) (models.ShelfEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}
	return models.ShelfEntry{}, false
}

func (s *Synchronizer) Filter() models.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

func (s *Synchronizer) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// SetIdentity switches the shelf to userID and re-fetches. An empty userID
// clears the cache.
func (s *Synchronizer) SetIdentity(ctx context.Context, userID string) error {
	s.mu.Lock()
	if s.userID == userID {
		s.mu.Unlock()
		return nil
	}
	s.userID = userID
	s.gen++
	if userID == "" {
		s.entries = nil
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.Refresh(ctx)
}

// HandleSession follows the session manager: the shelf tracks whoever is
// signed in. Register it with session.Manager.Subscribe.
func (s *Synchronizer) HandleSession(ctx context.Context, st session.State) error {
	if st.Loading {
		return nil
	}
	return s.SetIdentity(ctx, st.UserID())
}

// SetFilter limits the shelf to one status and re-fetches. "" and
// models.StatusAll list every entry.
func (s *Synchronizer) SetFilter(ctx context.Context, status models.Status) error {
	if status == "" {
		status = models.StatusAll
	}
	if status != models.StatusAll && !status.Valid() {
		return fmt.Errorf("set filter: invalid status %q", status)
	}
	s.mu.Lock()
	changed := s.filter != status
	s.filter = status
	if changed {
		s.gen++
	}
	hasUser := s.userID != ""
	s.mu.Unlock()

	if !changed || !hasUser {
		return nil
	}
	return s.Refresh(ctx)
}

// Refresh re-fetches every entry for the active identity, joined with its
// book and narrowed by the filter, and replaces the cache wholesale.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	if s.table == nil {
		return backend.ErrBackendUnavailable
	}

	s.mu.Lock()
	userID, filter, gen := s.userID, s.filter, s.gen
	if userID == "" {
		s.mu.Unlock()
		return backend.ErrNoActiveUser
	}
	s.loading = true
	s.mu.Unlock()

	entries, err := s.table.ListShelf(ctx, backend.ListShelfRequest{UserID: userID, Status: filter})

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen {
		s.loading = false
	}
	if err != nil {
		s.log.Error("fetch shelf failed", zap.String("user_id", userID), zap.Error(err))
		return fmt.Errorf("fetch shelf: %w", err)
	}
	if gen != s.gen {
		s.log.Debug("dropping stale shelf fetch", zap.String("user_id", userID))
		return nil
	}
	s.entries = entries
	return nil
}

// UpdateStatus writes a new status and then re-fetches the shelf. Moving to
// reading stamps start_date; moving to read stamps finish_date unless the
// entry already has one.
func (s *Synchronizer) UpdateStatus(ctx context.Context, id string, status models.Status) error {
	if s.table == nil {
		return backend.ErrBackendUnavailable
	}
	if !status.Valid() {
		return fmt.Errorf("update status: invalid status %q", status)
	}

	fields := models.UserBookUpdate{Status: &status}
	now := s.now()
	switch status {
	case models.StatusReading:
		// TODO: confirm with product whether re-entering reading should keep
		// the first start_date instead of restamping it.
		fields.StartDate = &now
	case models.StatusRead:
		if e, ok := s.Entry(id); !ok || e.FinishDate == nil {
			fields.FinishDate = &now
		}
	}

	if err := s.table.UpdateUserBook(ctx, backend.UpdateUserBookRequest{ID: id, Fields: fields}); err != nil {
		s.log.Error("update book status failed",
			zap.String("user_book_id", id),
			zap.String("status", string(status)),
			zap.Error(err))
		return fmt.Errorf("update status: %w", err)
	}
	return s.Refresh(ctx)
}

// UpdateProgress writes a progress percentage and patches the matching
// cached entry. Range checking is left to the caller and the backend.
func (s *Synchronizer) UpdateProgress(ctx context.Context, id string, progress int) error {
	fields := models.UserBookUpdate{Progress: &progress}
	return s.writeAndPatch(ctx, "update progress", id, fields)
}

// UpdateRating writes a 1-5 star rating and patches the matching entry.
func (s *Synchronizer) UpdateRating(ctx context.Context, id string, stars int) error {
	fields := models.UserBookUpdate{Rating: &stars}
	return s.writeAndPatch(ctx, "update rating", id, fields)
}

func (s *Synchronizer) UpdateReview(ctx context.Context, id string, review string) error {
	fields := models.UserBookUpdate{Review: &review}
	return s.writeAndPatch(ctx, "update review", id, fields)
}

func (s *Synchronizer) writeAndPatch(ctx context.Context, op, id string, fields models.UserBookUpdate) error {
	if s.table == nil {
		return backend.ErrBackendUnavailable
	}
	if err := s.table.UpdateUserBook(ctx, backend.UpdateUserBookRequest{ID: id, Fields: fields}); err != nil {
		s.log.Error(op+" failed", zap.String("user_book_id", id), zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			fields.Apply(&s.entries[i].UserBook)
			break
		}
	}
	s.mu.Unlock()
	return nil
}
