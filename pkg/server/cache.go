package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/halderavik/cross-tab-tool/pkg/crosstab"
)

// ResultCache stores serialized analysis results in Redis, keyed by a
// digest of the request and the dataset fingerprint. The same request
// against an unchanged dataset is deterministic, so cached bytes are always
// valid until the file changes.
type ResultCache struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewResultCache creates a cache around an existing Redis client. A nil
// client disables caching entirely.
func NewResultCache(client *redis.Client, logger *zap.Logger, ttl time.Duration) *ResultCache {
	return &ResultCache{client: client, logger: logger, ttl: ttl}
}

// Key derives the cache key from the canonicalized request JSON plus the
// dataset fingerprint (path, size, mtime).
func (c *ResultCache) Key(fingerprint string, req *crosstab.Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request for cache key: %w", err)
	}
	hash := sha256.New()
	hash.Write([]byte(fingerprint))
	hash.Write(body)
	return "crosstab:" + hex.EncodeToString(hash.Sum(nil)), nil
}

// Get returns the cached result bytes, if present.
func (c *ResultCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Result cache read failed", zap.Error(err))
		}
		return nil, false
	}
	return data, true
}

// Set stores result bytes under key. Failures only disable the cache entry,
// never the analysis.
func (c *ResultCache) Set(ctx context.Context, key string, data []byte) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Result cache write failed", zap.Error(err))
	}
}
