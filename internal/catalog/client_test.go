package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshelf/internal/backend"
)

const duneJSON = `{
  "numFound": 2,
  "docs": [
    {
      "key": "/works/OL893415W",
      "title": "Dune",
      "author_name": ["Frank Herbert"],
      "isbn": ["9780441013593", "0441013597"],
      "first_sentence": ["In the week before their departure to Arrakis..."],
      "number_of_pages_median": 896,
      "first_publish_year": 1965,
      "subject": ["Science fiction", "Desert"],
      "cover_i": 11481354
    },
    {"key": "/works/OL1W", "title": "Dune Messiah"}
  ]
}`

type lastRequest struct {
	mu  sync.Mutex
	url *url.URL
}

func (l *lastRequest) get() *url.URL {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.url
}

func newUpstream(t *testing.T, status int, body string) (*httptest.Server, *int32, *lastRequest) {
	t.Helper()
	var hits int32
	last := &lastRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		last.mu.Lock()
		last.url = r.URL
		last.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits, last
}

func TestSearchDecodesDocs(t *testing.T) {
	srv, _, last := newUpstream(t, http.StatusOK, duneJSON)
	c := NewClient(srv.URL)
	c.Limiter = nil

	docs, err := c.Search(context.Background(), "dune", 0)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	u := last.get()
	assert.Equal(t, "/search.json", u.Path)
	assert.Equal(t, "dune", u.Query().Get("q"))
	assert.Equal(t, "10", u.Query().Get("limit"))

	d := docs[0]
	assert.Equal(t, "Dune", d.Title)
	assert.Equal(t, []string{"Frank Herbert"}, d.AuthorName)
	require.NotNil(t, d.FirstPublishYear)
	assert.Equal(t, 1965, *d.FirstPublishYear)
	require.NotNil(t, d.CoverI)
	assert.Equal(t, int64(11481354), *d.CoverI)
	assert.Nil(t, docs[1].CoverI)
}

func TestSearchTruncatesToLimit(t *testing.T) {
	srv, _, last := newUpstream(t, http.StatusOK, duneJSON)
	c := NewClient(srv.URL)

	docs, err := c.Search(context.Background(), "dune", 1)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, "1", last.get().Query().Get("limit"))
}

func TestSearchBlankQuerySkipsNetwork(t *testing.T) {
	srv, hits, _ := newUpstream(t, http.StatusOK, duneJSON)
	c := NewClient(srv.URL)

	docs, err := c.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestSearchNonSuccessIsNetworkFailure(t *testing.T) {
	srv, _, _ := newUpstream(t, http.StatusServiceUnavailable, "upstream down")
	c := NewClient(srv.URL)

	_, err := c.Search(context.Background(), "dune", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrNetwork)

	var re *backend.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusServiceUnavailable, re.Status)
}

func TestSearchTransportFailureIsNetworkFailure(t *testing.T) {
	srv, _, _ := newUpstream(t, http.StatusOK, duneJSON)
	base := srv.URL
	srv.Close()

	_, err := NewClient(base).Search(context.Background(), "dune", 10)
	assert.ErrorIs(t, err, backend.ErrNetwork)
}

func TestSearchRejectsOversizedBody(t *testing.T) {
	huge := `{"docs":[` + strings.Repeat(" ", MaxResponseBytes) + `]}`
	srv, _, _ := newUpstream(t, http.StatusOK, huge)

	_, err := NewClient(srv.URL).Search(context.Background(), "dune", 10)
	assert.ErrorIs(t, err, backend.ErrNetwork)

	var re *backend.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "response too large", re.Message)
}
