package httpclient

import (
	"context"
	"net/http"
	"slices"

	"go.uber.org/zap"

	"bookshelf/internal/backend"
)

func (c *Client) SignInWithPassword(ctx context.Context, req backend.SignInRequest) error {
	var s backend.Session
	if err := c.doJSON(ctx, "sign in", http.MethodPost, "/auth/signin", req, &s); err != nil {
		return err
	}
	c.setSession(&s, backend.EventSignedIn)
	return nil
}

func (c *Client) SignUp(ctx context.Context, req backend.SignUpRequest) error {
	var s backend.Session
	if err := c.doJSON(ctx, "sign up", http.MethodPost, "/auth/signup", req, &s); err != nil {
		return err
	}
	c.setSession(&s, backend.EventSignedIn)
	return nil
}

// SignOut revokes the session server-side and clears it locally. An already
// expired or revoked token still signs out locally.
func (c *Client) SignOut(ctx context.Context) error {
	if c.token() != "" {
		err := c.doJSON(ctx, "sign out", http.MethodPost, "/auth/signout", nil, nil)
		if err != nil && !isStatus(err, http.StatusUnauthorized) {
			return err
		}
	}
	c.setSession(nil, backend.EventSignedOut)
	return nil
}

type subscription struct {
	c  *Client
	id int
}

func (s subscription) Unsubscribe() {
	s.c.mu.Lock()
	delete(s.c.subs, s.id)
	s.c.mu.Unlock()
}

func (c *Client) OnAuthStateChange(fn func(backend.AuthEvent)) backend.Subscription {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs[id] = fn
	initial := backend.AuthEvent{Event: backend.EventInitialSession, Session: copySession(c.session)}
	c.mu.Unlock()

	fn(initial)
	return subscription{c: c, id: id}
}

func (c *Client) setSession(s *backend.Session, event backend.AuthEventType) {
	c.mu.Lock()
	c.session = copySession(s)
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	subs := make([]func(backend.AuthEvent), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, c.subs[id])
	}
	c.mu.Unlock()

	if c.TokenPath != "" {
		var err error
		if s == nil {
			err = clearSession(c.TokenPath)
		} else {
			err = saveSession(c.TokenPath, s)
		}
		if err != nil {
			c.log.Warn("persist session failed", zap.String("path", c.TokenPath), zap.Error(err))
		}
	}

	ev := backend.AuthEvent{Event: event, Session: copySession(s)}
	for _, fn := range subs {
		fn(ev)
	}
}
