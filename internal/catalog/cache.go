package catalog

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bookshelf/pkg/models"
)

const DefaultCacheTTL = 10 * time.Minute

// CachedSearcher keeps search results in Redis. With a nil Redis client it
// passes every call straight through.
type CachedSearcher struct {
	Next  Searcher
	Redis *redis.Client
	TTL   time.Duration
	log   *zap.Logger
}

func NewCachedSearcher(next Searcher, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedSearcher {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSearcher{Next: next, Redis: rdb, TTL: ttl, log: logger}
}

func cacheKey(query string, limit int) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(query)) + "|" + strconv.Itoa(limit)))
	return "catalog:search:" + hex.EncodeToString(sum[:])
}

func (c *CachedSearcher) Search(ctx context.Context, query string, limit int) ([]models.SearchDoc, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if c.Redis == nil {
		return c.Next.Search(ctx, query, limit)
	}

	key := cacheKey(query, limit)
	raw, err := c.Redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var docs []models.SearchDoc
		if jerr := json.Unmarshal(raw, &docs); jerr == nil {
			return docs, nil
		}
		c.log.Warn("discarding corrupt search cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("search cache read failed", zap.Error(err))
	}

	docs, err := c.Next.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if b, jerr := json.Marshal(docs); jerr == nil {
		if serr := c.Redis.Set(ctx, key, b, c.TTL).Err(); serr != nil {
			c.log.Warn("search cache write failed", zap.Error(serr))
		}
	}
	return docs, nil
}
