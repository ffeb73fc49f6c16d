// Package servertest starts the full api-server route stack on a throwaway
// SQLite database for end-to-end tests.
package servertest

import (
	"database/sql"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bookshelf/internal/auth"
	"bookshelf/internal/catalog"
	"bookshelf/internal/server"
	synchub "bookshelf/internal/sync"
	"bookshelf/pkg/database"
)

type Stack struct {
	Server *httptest.Server
	URL    string
	DB     *sql.DB
	Hub    *synchub.Hub
	Tokens auth.TokenService
}

type Option func(*server.Deps)

// WithSearcher mounts the /catalog routes over s.
func WithSearcher(s catalog.Searcher) Option {
	return func(d *server.Deps) { d.Searcher = s }
}

// WithEvents replaces the default hub-only publisher.
func WithEvents(p synchub.Publisher) Option {
	return func(d *server.Deps) { d.Events = p }
}

// New starts the stack and registers cleanup on t.
func New(t testing.TB, opts ...Option) *Stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := database.Config{Path: filepath.Join(t.TempDir(), "test.db")}
	db, err := database.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	tokens := auth.TokenService{
		Secret:   []byte("test-secret"),
		Issuer:   "bookshelf-test",
		Duration: time.Hour,
	}
	hub := synchub.NewHub(zap.NewNop())
	deps := server.Deps{
		DB:     db,
		DBPath: cfg.Path,
		Tokens: tokens,
		Hub:    hub,
		Log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv := httptest.NewServer(server.NewRouter(deps))
	t.Cleanup(func() {
		srv.Close()
		_ = db.Close()
	})
	return &Stack{Server: srv, URL: srv.URL, DB: db, Hub: hub, Tokens: tokens}
}
