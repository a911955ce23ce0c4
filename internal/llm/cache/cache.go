// Package cache implements the research cache: a keyed, TTL-based
// memoization layer so repeated analysis phases for the same company and
// industry do not re-invoke the remote service. Entries are content-addressed
// and writes are idempotent; last-writer-wins is acceptable by design.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ahrav/bizcase/internal/llm/configuration"
	llmerrors "github.com/ahrav/bizcase/internal/llm/errors"
)

const keyPrefix = "research:"

// RedisClient is the narrow Redis surface the cache depends on. Production
// uses *redis.Client; tests supply a mock.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// ResearchCache memoizes per-phase research payloads in Redis. The storage
// backend reclaims expired entries; there is no eviction policy beyond TTL.
type ResearchCache struct {
	client RedisClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewResearchCache creates a cache with the configured default TTL.
func NewResearchCache(client RedisClient, cfg configuration.CacheConfig) *ResearchCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = configuration.DefaultCacheTTL
	}
	return &ResearchCache{
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("component", "research-cache"),
	}
}

// NewRedisClient constructs a go-redis client from cache configuration.
func NewRedisClient(cfg configuration.CacheConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// Key derives the stable cache key for a (company, industry, segment)
// triple. Identifiers are normalized before hashing so case and surrounding
// whitespace do not split cache entries.
func Key(company, industry, segment string) string {
	normalize := func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	}
	sum := sha256.Sum256([]byte(
		normalize(company) + "|" + normalize(industry) + "|" + normalize(segment),
	))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached payload for the triple, or ErrCacheMiss.
// A corrupt stored entry is treated as a miss and deleted.
func (c *ResearchCache) Get(ctx context.Context, company, industry, segment string) (map[string]any, error) {
	if c.client == nil {
		return nil, llmerrors.ErrCacheMiss
	}
	key := Key(company, industry, segment)

	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, llmerrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("cache get failed: %w", err)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		c.logger.Warn("dropping corrupt cache entry", "key", key, "error", err)
		c.client.Del(ctx, key)
		return nil, llmerrors.ErrCacheMiss
	}
	return payload, nil
}

// Set stores the payload for the triple. The optional ttl overrides the
// default; writes are last-writer-wins.
func (c *ResearchCache) Set(ctx context.Context, company, industry, segment string, payload map[string]any, ttl ...time.Duration) error {
	if c.client == nil {
		return nil
	}
	expiry := c.ttl
	if len(ttl) > 0 && ttl[0] > 0 {
		expiry = ttl[0]
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("cache payload marshal failed: %w", err)
	}

	key := Key(company, industry, segment)
	if err := c.client.Set(ctx, key, raw, expiry).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Invalidate removes the entry for the triple, if any.
func (c *ResearchCache) Invalidate(ctx context.Context, company, industry, segment string) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, Key(company, industry, segment)).Err(); err != nil {
		return fmt.Errorf("cache invalidate failed: %w", err)
	}
	return nil
}
