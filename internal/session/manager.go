// Package session owns the signed-in identity and its profile. State moves
// only in response to the backend's session notifications; the operations
// forward credentials and report errors.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"bookshelf/internal/backend"
	"bookshelf/pkg/models"
)

// State is a snapshot of the manager. User is nil when anonymous.
type State struct {
	User    *backend.User
	Profile *models.Profile
	Loading bool
}

func (s State) Authenticated() bool { return s.User != nil }

// UserID returns the active identity or "".
func (s State) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

type Manager struct {
	client backend.Client
	log    *zap.Logger

	mu        sync.RWMutex
	state     State
	listeners map[int]func(State)
	nextL     int

	qmu     sync.Mutex
	pending []backend.AuthEvent
	wake    chan struct{}

	ready     chan struct{}
	readyOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	running   bool
	sub       backend.Subscription
}

// NewManager creates a manager in the loading state. A nil client makes
// every operation fail with backend.ErrBackendUnavailable.
func NewManager(client backend.Client, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		client:    client,
		log:       logger,
		state:     State{Loading: true},
		listeners: make(map[int]func(State)),
		wake:      make(chan struct{}, 1),
		ready:     make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Start subscribes to session notifications. Only the first call has an
// effect. Pair it with Close.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		if m.client == nil {
			m.setState(State{})
			m.markReady()
			return
		}
		m.running = true
		go m.loop()
		m.sub = m.client.OnAuthStateChange(m.enqueue)
	})
}

// Close releases the subscription exactly once and waits for any in-flight
// notification to finish. Results arriving afterwards are discarded.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		// a Start after Close must not subscribe
		m.startOnce.Do(func() {})
		if m.sub != nil {
			m.sub.Unsubscribe()
		}
		m.cancel()
		if m.running {
			<-m.done
		}
	})
}

// Ready is closed once the first notification has been processed.
func (m *Manager) Ready() <-chan struct{} { return m.ready }

// State returns a copy of the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyState(m.state)
}

// Subscribe registers fn to run after every state change. It returns a
// function that removes the listener.
func (m *Manager) Subscribe(fn func(State)) func() {
	m.mu.Lock()
	m.nextL++
	id := m.nextL
	m.listeners[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	if m.client == nil {
		return backend.ErrBackendUnavailable
	}
	if err := m.client.SignInWithPassword(ctx, backend.SignInRequest{Email: email, Password: password}); err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	return nil
}

// SignUp creates an identity carrying username as an attribute.
func (m *Manager) SignUp(ctx context.Context, email, password, username string) error {
	if m.client == nil {
		return backend.ErrBackendUnavailable
	}
	req := backend.SignUpRequest{Email: email, Password: password, Username: username}
	if err := m.client.SignUp(ctx, req); err != nil {
		return fmt.Errorf("sign up: %w", err)
	}
	return nil
}

func (m *Manager) SignOut(ctx context.Context) error {
	if m.client == nil {
		return backend.ErrBackendUnavailable
	}
	if err := m.client.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// UpdateProfile writes the supplied fields to the active identity's profile
// and, on success, merges them into the cached profile without re-fetching.
// Usernames are trimmed before the write.
func (m *Manager) UpdateProfile(ctx context.Context, fields models.ProfileUpdate) error {
	if m.client == nil {
		return backend.ErrBackendUnavailable
	}
	m.mu.RLock()
	user := m.state.User
	m.mu.RUnlock()
	if user == nil {
		return backend.ErrNoActiveUser
	}
	userID := user.ID
	// the server stores usernames trimmed; the cache must merge the same value
	if fields.Username != nil {
		name := strings.TrimSpace(*fields.Username)
		fields.Username = &name
	}

	if err := m.client.UpdateProfile(ctx, backend.UpdateProfileRequest{ID: userID, Fields: fields}); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	m.mu.Lock()
	// the identity may have changed while the write was in flight
	if m.state.User == nil || m.state.User.ID != userID || m.state.Profile == nil {
		m.mu.Unlock()
		return nil
	}
	fields.Apply(m.state.Profile)
	st := copyState(m.state)
	listeners := m.listenersLocked()
	m.mu.Unlock()

	notifyAll(listeners, st)
	return nil
}

func (m *Manager) enqueue(ev backend.AuthEvent) {
	m.qmu.Lock()
	m.pending = append(m.pending, ev)
	m.qmu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) loop() {
	defer close(m.done)
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.wake:
		}
		for {
			m.qmu.Lock()
			if len(m.pending) == 0 {
				m.qmu.Unlock()
				break
			}
			ev := m.pending[0]
			m.pending = m.pending[1:]
			m.qmu.Unlock()

			m.handle(ev)
			if m.ctx.Err() != nil {
				return
			}
		}
	}
}

func (m *Manager) handle(ev backend.AuthEvent) {
	next := State{}
	if ev.Session != nil {
		u := ev.Session.User
		next.User = &u
		p, err := m.client.GetProfile(m.ctx, backend.GetProfileRequest{ID: u.ID})
		if err != nil {
			m.log.Warn("fetch profile failed",
				zap.String("event", string(ev.Event)),
				zap.String("user_id", u.ID),
				zap.Error(err))
		}
		next.Profile = p
	}
	if m.ctx.Err() != nil {
		return
	}

	m.log.Debug("session changed",
		zap.String("event", string(ev.Event)),
		zap.Bool("authenticated", next.User != nil))
	m.setState(next)
	m.markReady()
}

func (m *Manager) setState(st State) {
	m.mu.Lock()
	m.state = st
	snap := copyState(st)
	listeners := m.listenersLocked()
	m.mu.Unlock()
	notifyAll(listeners, snap)
}

func (m *Manager) markReady() {
	m.readyOnce.Do(func() { close(m.ready) })
}

func (m *Manager) listenersLocked() []func(State) {
	out := make([]func(State), 0, len(m.listeners))
	for _, fn := range m.listeners {
		out = append(out, fn)
	}
	return out
}

func notifyAll(fns []func(State), st State) {
	for _, fn := range fns {
		fn(copyState(st))
	}
}

func copyState(s State) State {
	out := State{Loading: s.Loading}
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	if s.Profile != nil {
		p := *s.Profile
		out.Profile = &p
	}
	return out
}
