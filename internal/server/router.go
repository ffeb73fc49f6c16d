// Package server assembles the api-server's HTTP routes.
package server

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bookshelf/internal/auth"
	"bookshelf/internal/books"
	"bookshelf/internal/catalog"
	"bookshelf/internal/library"
	"bookshelf/internal/profiles"
	synchub "bookshelf/internal/sync"
	"bookshelf/pkg/utils"
)

type Deps struct {
	DB       *sql.DB
	DBPath   string
	Tokens   auth.TokenService
	Hub      *synchub.Hub
	Events   synchub.Publisher // defaults to Hub
	Searcher catalog.Searcher
	Log      *zap.Logger
}

// AuthFunc adapts token verification for the event stream transports.
func AuthFunc(v auth.Verifier) synchub.AuthFunc {
	return func(ctx context.Context, token string) (string, error) {
		claims, err := v.Verify(ctx, token)
		if err != nil {
			return "", err
		}
		return claims.UserID, nil
	}
}

func NewRouter(d Deps) *gin.Engine {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	if d.Hub == nil {
		d.Hub = synchub.NewHub(log.Named("sync"))
	}
	if d.Events == nil {
		d.Events = d.Hub
	}

	authRepo := auth.NewRepo(d.DB)
	verifier := auth.Verifier{Tokens: d.Tokens, Repo: authRepo}

	router := gin.New()
	router.Use(gin.Recovery(), utils.RequestID(), utils.RequestLog(log.Named("http")))
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": d.DBPath})
	})
	router.GET("/ready", readyHandler(d.DB, d.Hub))
	router.GET("/ws", synchub.WSHandler(d.Hub, AuthFunc(verifier)))

	auth.NewHandler(authRepo, d.Tokens, log.Named("auth")).RegisterRoutes(router.Group("/auth"))
	if d.Searcher != nil {
		catalog.NewHandler(d.Searcher, log.Named("catalog")).RegisterRoutes(router.Group("/catalog"))
	}

	rest := router.Group("/rest")
	rest.Use(auth.AuthMiddleware(d.Tokens, authRepo))
	profiles.NewHandler(profiles.NewRepo(d.DB), log.Named("profiles")).RegisterRoutes(rest)
	books.NewHandler(books.NewRepo(d.DB), log.Named("books")).RegisterRoutes(rest.Group("/books"))
	library.NewHandler(library.NewRepo(d.DB), d.Events, log.Named("library")).RegisterRoutes(rest)

	return router
}

func readyHandler(db *sql.DB, hub *synchub.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"db_error":    err.Error(),
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	}
}
