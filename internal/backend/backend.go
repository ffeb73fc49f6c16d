// Package backend defines the typed contract between the client core and the
// managed backend: credential sessions with change notifications, and the
// profiles, books and user_books tables.
package backend

import (
	"context"
	"time"

	"bookshelf/pkg/models"
)

// AuthEventType names a session change notification.
type AuthEventType string

const (
	EventInitialSession AuthEventType = "INITIAL_SESSION"
	EventSignedIn       AuthEventType = "SIGNED_IN"
	EventSignedOut      AuthEventType = "SIGNED_OUT"
	EventUserUpdated    AuthEventType = "USER_UPDATED"
)

type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

type Session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

// AuthEvent is delivered to OnAuthStateChange subscribers. Session is nil when
// nobody is signed in.
type AuthEvent struct {
	Event   AuthEventType
	Session *Session
}

type Subscription interface {
	Unsubscribe()
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type Auth interface {
	SignInWithPassword(ctx context.Context, req SignInRequest) error
	SignUp(ctx context.Context, req SignUpRequest) error
	SignOut(ctx context.Context) error
	// OnAuthStateChange registers fn for session notifications. The first
	// notification is always EventInitialSession with the current session.
	OnAuthStateChange(fn func(AuthEvent)) Subscription
}

type GetProfileRequest struct {
	ID string
}

type UpdateProfileRequest struct {
	ID     string
	Fields models.ProfileUpdate
}

type Profiles interface {
	// GetProfile returns (nil, nil) when no row exists.
	GetProfile(ctx context.Context, req GetProfileRequest) (*models.Profile, error)
	UpdateProfile(ctx context.Context, req UpdateProfileRequest) error
}

type FindBookByISBNRequest struct {
	ISBN string
}

type InsertBookRequest struct {
	Book models.NewBook
}

type Books interface {
	// FindBookByISBN returns (nil, nil) when no row matches.
	FindBookByISBN(ctx context.Context, req FindBookByISBNRequest) (*models.Book, error)
	InsertBook(ctx context.Context, req InsertBookRequest) (*models.Book, error)
}

type ListShelfRequest struct {
	UserID string
	// Status filters to a single status; "" or StatusAll lists everything.
	Status models.Status
}

type InsertUserBookRequest struct {
	UserID string
	BookID string
	Status models.Status
}

type UpdateUserBookRequest struct {
	ID     string
	Fields models.UserBookUpdate
}

type UserBooks interface {
	ListShelf(ctx context.Context, req ListShelfRequest) ([]models.ShelfEntry, error)
	InsertUserBook(ctx context.Context, req InsertUserBookRequest) (*models.UserBook, error)
	UpdateUserBook(ctx context.Context, req UpdateUserBookRequest) error
}

// IngestRequest resolves-or-creates Book by ISBN and shelves it for UserID
// as want_to_read, in one atomic write.
type IngestRequest struct {
	UserID string         `json:"user_id"`
	ISBN   string         `json:"isbn"`
	Book   models.NewBook `json:"book"`
}

// ShelfIngester is implemented by backends that can ingest atomically.
type ShelfIngester interface {
	IngestToShelf(ctx context.Context, req IngestRequest) (*models.UserBook, error)
}

type Client interface {
	Auth
	Profiles
	Books
	UserBooks
}
