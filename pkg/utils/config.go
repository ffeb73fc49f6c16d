package utils

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv reads an optional .env file into the process environment.
// Variables already set win over the file.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return n
}

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTDuration time.Duration
}

func LoadAuthConfig() AuthConfig {
	hours := getenvInt("BOOKSHELF_JWT_TTL_HOURS", 24)
	if hours <= 0 {
		hours = 24
	}
	return AuthConfig{
		// dev default, override in any shared deployment
		JWTSecret:   getenv("BOOKSHELF_JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:   getenv("BOOKSHELF_JWT_ISSUER", "bookshelf"),
		JWTDuration: time.Duration(hours) * time.Hour,
	}
}

type ServerConfig struct {
	HTTPAddr string
	TCPAddr  string // empty disables the TCP event stream
	LogLevel string
	// RedisAddr and AMQPURL are optional; empty disables the integration.
	RedisAddr string
	AMQPURL   string
	AMQPQueue string
	// CatalogURL is the upstream Open Library compatible search endpoint.
	CatalogURL      string
	CatalogCacheTTL time.Duration
}

func LoadServerConfig() ServerConfig {
	ttl, err := time.ParseDuration(getenv("BOOKSHELF_CATALOG_CACHE_TTL", "10m"))
	if err != nil || ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return ServerConfig{
		HTTPAddr:        getenv("BOOKSHELF_HTTP_ADDR", ":8080"),
		TCPAddr:         os.Getenv("BOOKSHELF_TCP_ADDR"),
		LogLevel:        getenv("BOOKSHELF_LOG_LEVEL", "info"),
		RedisAddr:       os.Getenv("BOOKSHELF_REDIS_ADDR"),
		AMQPURL:         os.Getenv("BOOKSHELF_AMQP_URL"),
		AMQPQueue:       getenv("BOOKSHELF_AMQP_QUEUE", "shelf.events"),
		CatalogURL:      getenv("BOOKSHELF_CATALOG_URL", "https://openlibrary.org"),
		CatalogCacheTTL: ttl,
	}
}
