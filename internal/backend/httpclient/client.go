// Package httpclient implements backend.Client against the bookshelf
// api-server over HTTP/JSON.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"bookshelf/internal/backend"
)

const maxResponseBytes = 8 << 20

type Client struct {
	BaseURL string
	HTTP    *http.Client
	// TokenPath persists the session between processes; empty disables it.
	TokenPath string

	log *zap.Logger

	mu      sync.Mutex
	session *backend.Session
	subs    map[int]func(backend.AuthEvent)
	nextID  int
}

// New builds a client and restores a persisted, unexpired session from
// tokenPath if there is one.
func New(baseURL, tokenPath string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		HTTP:      &http.Client{Timeout: 15 * time.Second},
		TokenPath: tokenPath,
		log:       logger,
		subs:      make(map[int]func(backend.AuthEvent)),
	}
	if tokenPath != "" {
		s, err := loadSession(tokenPath)
		switch {
		case err != nil:
			c.log.Debug("no stored session", zap.String("path", tokenPath), zap.Error(err))
		case s != nil && time.Now().Before(s.ExpiresAt):
			c.session = s
		}
	}
	return c
}

// Session returns a copy of the current session, or nil.
func (c *Client) Session() *backend.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copySession(c.session)
}

func (c *Client) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

type errorBody struct {
	Error string `json:"error"`
}

// doJSON sends payload (if any) and decodes a 2xx body into out (if any).
// Non-2xx replies become RemoteErrors classified by method: GET is a read,
// everything else a write.
func (c *Client) doJSON(ctx context.Context, op, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &backend.RemoteError{Op: op, Kind: backend.ErrNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &backend.RemoteError{Op: op, Kind: backend.ErrNetwork, Status: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
			msg = eb.Error
		}
		if method == http.MethodGet {
			return backend.ReadError(op, resp.StatusCode, msg)
		}
		return backend.WriteError(op, resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return backend.ReadError(op, resp.StatusCode, "decode response: "+err.Error())
	}
	return nil
}

func isStatus(err error, code int) bool {
	var re *backend.RemoteError
	return errors.As(err, &re) && re.Status == code
}

func copySession(s *backend.Session) *backend.Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
