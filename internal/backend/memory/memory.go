// Package memory is an in-process implementation of backend.Client. It keeps
// the same semantics as the HTTP backend and lets tests inject failures and
// count calls per operation.
package memory

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bookshelf/internal/backend"
	"bookshelf/pkg/models"
)

// Operation names used by FailNext and Calls.
const (
	OpSignIn         = "auth.signin"
	OpSignUp         = "auth.signup"
	OpSignOut        = "auth.signout"
	OpGetProfile     = "profiles.get"
	OpUpdateProfile  = "profiles.update"
	OpFindBook       = "books.find"
	OpInsertBook     = "books.insert"
	OpListShelf      = "user_books.list"
	OpInsertUserBook = "user_books.insert"
	OpUpdateUserBook = "user_books.update"
	OpIngest         = "user_books.ingest"
)

type account struct {
	user     backend.User
	password string
}

// Backend keeps users, sessions and table rows in memory.
type Backend struct {
	mu       sync.Mutex
	now      func() time.Time
	accounts map[string]account // key: lower-case email
	session  *backend.Session

	subs   map[int]func(backend.AuthEvent)
	nextID int

	profiles  map[string]models.Profile
	books     map[string]models.Book
	bookOrder []string
	shelf     map[string]models.UserBook
	shelfOrd  []string

	fail  map[string]error
	calls map[string]int
}

func New() *Backend {
	return &Backend{
		now:      func() time.Time { return time.Now().UTC() },
		accounts: make(map[string]account),
		subs:     make(map[int]func(backend.AuthEvent)),
		profiles: make(map[string]models.Profile),
		books:    make(map[string]models.Book),
		shelf:    make(map[string]models.UserBook),
		fail:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

// FailNext makes the next call to op return err instead of running.
func (b *Backend) FailNext(op string, err error) {
	b.mu.Lock()
	b.fail[op] = err
	b.mu.Unlock()
}

// Calls reports how many times op was invoked, including failed calls.
func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// SetClock replaces the timestamp source.
func (b *Backend) SetClock(now func() time.Time) {
	b.mu.Lock()
	b.now = now
	b.mu.Unlock()
}

// begin records a call and returns any injected failure. Caller holds mu.
func (b *Backend) begin(op string) error {
	b.calls[op]++
	if err, ok := b.fail[op]; ok {
		delete(b.fail, op)
		return err
	}
	return nil
}

func (b *Backend) SignInWithPassword(ctx context.Context, req backend.SignInRequest) error {
	b.mu.Lock()
	if err := b.begin(OpSignIn); err != nil {
		b.mu.Unlock()
		return err
	}
	acc, ok := b.accounts[strings.ToLower(strings.TrimSpace(req.Email))]
	if !ok || acc.password != req.Password {
		b.mu.Unlock()
		return backend.ReadError("sign in", http.StatusUnauthorized, "invalid credentials")
	}
	b.session = b.newSessionLocked(acc.user)
	ev := backend.AuthEvent{Event: backend.EventSignedIn, Session: copySession(b.session)}
	subs := b.subscribersLocked()
	b.mu.Unlock()

	notify(subs, ev)
	return nil
}

func (b *Backend) SignUp(ctx context.Context, req backend.SignUpRequest) error {
	b.mu.Lock()
	if err := b.begin(OpSignUp); err != nil {
		b.mu.Unlock()
		return err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		b.mu.Unlock()
		return backend.WriteError("sign up", http.StatusBadRequest, "email and password required")
	}
	if _, exists := b.accounts[email]; exists {
		b.mu.Unlock()
		return backend.WriteError("sign up", http.StatusConflict, "email already exists")
	}

	u := backend.User{ID: uuid.NewString(), Email: email, Username: req.Username}
	b.accounts[email] = account{user: u, password: req.Password}

	now := b.now()
	p := models.Profile{ID: u.ID, CreatedAt: now, UpdatedAt: now}
	if req.Username != "" {
		name := req.Username
		p.Username = &name
	}
	b.profiles[u.ID] = p

	b.session = b.newSessionLocked(u)
	ev := backend.AuthEvent{Event: backend.EventSignedIn, Session: copySession(b.session)}
	subs := b.subscribersLocked()
	b.mu.Unlock()

	notify(subs, ev)
	return nil
}

func (b *Backend) SignOut(ctx context.Context) error {
	b.mu.Lock()
	if err := b.begin(OpSignOut); err != nil {
		b.mu.Unlock()
		return err
	}
	b.session = nil
	subs := b.subscribersLocked()
	b.mu.Unlock()

	notify(subs, backend.AuthEvent{Event: backend.EventSignedOut})
	return nil
}

type subscription struct {
	b  *Backend
	id int
}

func (s subscription) Unsubscribe() {
	s.b.mu.Lock()
	delete(s.b.subs, s.id)
	s.b.mu.Unlock()
}

func (b *Backend) OnAuthStateChange(fn func(backend.AuthEvent)) backend.Subscription {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = fn
	initial := backend.AuthEvent{Event: backend.EventInitialSession, Session: copySession(b.session)}
	b.mu.Unlock()

	fn(initial)
	return subscription{b: b, id: id}
}

// Subscribers reports the number of live auth subscriptions.
func (b *Backend) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// CurrentSession returns a copy of the active session, or nil.
func (b *Backend) CurrentSession() *backend.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copySession(b.session)
}

func (b *Backend) newSessionLocked(u backend.User) *backend.Session {
	return &backend.Session{
		AccessToken: uuid.NewString(),
		ExpiresAt:   b.now().Add(24 * time.Hour),
		User:        u,
	}
}

func (b *Backend) subscribersLocked() []func(backend.AuthEvent) {
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]func(backend.AuthEvent), 0, len(ids))
	for _, id := range ids {
		out = append(out, b.subs[id])
	}
	return out
}

func notify(subs []func(backend.AuthEvent), ev backend.AuthEvent) {
	for _, fn := range subs {
		fn(ev)
	}
}

func copySession(s *backend.Session) *backend.Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func (b *Backend) requireSessionLocked(op string, write bool) error {
	if b.session != nil {
		return nil
	}
	if write {
		return backend.WriteError(op, http.StatusUnauthorized, "not authenticated")
	}
	return backend.ReadError(op, http.StatusUnauthorized, "not authenticated")
}
