// Package catalog searches the Open Library catalog and turns search results
// into shelf entries.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"bookshelf/internal/backend"
	"bookshelf/pkg/models"
)

const (
	DefaultBaseURL = "https://openlibrary.org"
	DefaultLimit   = 10

	// MaxResponseBytes caps how much of an upstream search body is read.
	MaxResponseBytes = 4 << 20
)

// Searcher runs a free-text catalog search.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.SearchDoc, error)
}

// Client talks to an Open Library compatible search endpoint.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	// Limiter paces outgoing requests; nil disables pacing.
	Limiter *rate.Limiter
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 12 * time.Second},
		Limiter: rate.NewLimiter(rate.Every(time.Second), 3),
	}
}

type searchResponse struct {
	NumFound int                `json:"numFound"`
	Docs     []models.SearchDoc `json:"docs"`
}

// Search returns up to limit records for query. A blank query returns no
// results without a network call.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]models.SearchDoc, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/search.json?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("search: build request: %w", err)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, &backend.RemoteError{Op: "search", Kind: backend.ErrNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return nil, &backend.RemoteError{Op: "search", Kind: backend.ErrNetwork, Status: resp.StatusCode, Message: err.Error()}
	}
	if len(body) > MaxResponseBytes {
		return nil, &backend.RemoteError{Op: "search", Kind: backend.ErrNetwork, Status: resp.StatusCode, Message: "response too large"}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &backend.RemoteError{Op: "search", Kind: backend.ErrNetwork, Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("search: decode: %w", err)
	}
	if len(sr.Docs) > limit {
		sr.Docs = sr.Docs[:limit]
	}
	return sr.Docs, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}
