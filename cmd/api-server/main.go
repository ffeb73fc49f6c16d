package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bookshelf/internal/auth"
	"bookshelf/internal/catalog"
	"bookshelf/internal/server"
	synchub "bookshelf/internal/sync"
	"bookshelf/pkg/database"
	"bookshelf/pkg/utils"
)

func main() {
	if err := utils.LoadDotEnv(); err != nil {
		// zap is not built yet
		os.Stderr.WriteString("load .env: " + err.Error() + "\n")
		os.Exit(1)
	}
	cfg := utils.LoadServerConfig()

	logger, err := utils.NewLogger(cfg.LogLevel, false)
	if err != nil {
		os.Stderr.WriteString("build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api-server failed", zap.Error(err))
	}
}

func run(cfg utils.ServerConfig, logger *zap.Logger) error {
	dbCfg := database.DefaultConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return err
	}

	authCfg := utils.LoadAuthConfig()
	tokenSvc := auth.TokenService{
		Secret:   []byte(authCfg.JWTSecret),
		Issuer:   authCfg.JWTIssuer,
		Duration: authCfg.JWTDuration,
	}
	authFn := server.AuthFunc(auth.Verifier{Tokens: tokenSvc, Repo: auth.NewRepo(db)})

	hub := synchub.NewHub(logger.Named("sync"))
	events := synchub.Fanout{hub}
	if cfg.AMQPURL != "" {
		pub, err := synchub.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue, logger.Named("amqp"))
		if err != nil {
			logger.Warn("amqp disabled", zap.Error(err))
		} else {
			defer pub.Close()
			events = append(events, pub)
		}
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn("redis unavailable, catalog cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			_ = rdb.Close()
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}
	searcher := catalog.NewCachedSearcher(catalog.NewClient(cfg.CatalogURL), rdb, cfg.CatalogCacheTTL, logger.Named("catalog"))

	gin.SetMode(gin.ReleaseMode)
	router := server.NewRouter(server.Deps{
		DB:       db,
		DBPath:   dbCfg.Path,
		Tokens:   tokenSvc,
		Hub:      hub,
		Events:   events,
		Searcher: searcher,
		Log:      logger,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.TCPAddr != "" {
		tcpSrv := synchub.NewServer(cfg.TCPAddr, hub, authFn, logger.Named("tcp"))
		// bind first so address errors surface before serving HTTP
		if err := tcpSrv.Listen(); err != nil {
			return err
		}
		g.Go(func() error { return tcpSrv.Serve(gctx) })
	}

	g.Go(func() error {
		logger.Info("http api listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
