package extractor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultCacheTTL = 24 * time.Hour
	cacheKeyPrefix  = "stocknews:extract:"
)

// ErrCacheMiss is returned by a Store when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// Store is the key/value surface the cache needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisStore adapts a go-redis client to Store.
type RedisStore struct {
	rdb redis.Cmdable
}

func NewRedisStore(rdb redis.Cmdable) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

// NewRedisClient connects using a redis:// URL, falling back to a plain address.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// Cached serves successful extractions from a Store. Failures are never
// cached, and store errors fall through to the wrapped extractor.
type Cached struct {
	next   Extractor
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

func NewCached(next Extractor, store Store, ttl time.Duration, logger *slog.Logger) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{
		next:   next,
		store:  store,
		ttl:    ttl,
		logger: logger.With("extractor", "cache"),
	}
}

func (c *Cached) Extract(ctx context.Context, url string) (Extraction, error) {
	key := CacheKey(url)

	raw, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var ext Extraction
		if jsonErr := json.Unmarshal(raw, &ext); jsonErr == nil {
			c.logger.Debug("cache hit", "url", url)
			return ext, nil
		}
		c.logger.Warn("discarding corrupt cache entry", "url", url)
	case !errors.Is(err, ErrCacheMiss):
		c.logger.Warn("cache lookup failed", "url", url, "error", err)
	}

	ext, err := c.next.Extract(ctx, url)
	if err != nil {
		return ext, err
	}

	body, err := json.Marshal(ext)
	if err != nil {
		return ext, nil
	}
	if err := c.store.Set(ctx, key, body, c.ttl); err != nil {
		c.logger.Warn("cache store failed", "url", url, "error", err)
	}

	return ext, nil
}

// CacheKey derives the store key for a URL.
func CacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
