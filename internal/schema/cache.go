package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisVersionCache caches frozen schema versions in Redis. Version rows are
// immutable once written, so the TTL is generous and misses are harmless.
type RedisVersionCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisVersionCache creates a cache over an existing Redis client.
func NewRedisVersionCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisVersionCache {
	return &RedisVersionCache{client: client, ttl: ttl, logger: logger}
}

func versionKey(id string, version int) string {
	return fmt.Sprintf("schema:%s:v%d", id, version)
}

// GetVersion returns a cached frozen version if present.
func (c *RedisVersionCache) GetVersion(ctx context.Context, id string, version int) (*Schema, bool) {
	raw, err := c.client.Get(ctx, versionKey(id, version)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("Schema cache read failed", "schema_id", id, "version", version, "error", err)
		return nil, false
	}
	var sc Schema
	if err := json.Unmarshal(raw, &sc); err != nil {
		c.logger.Warn("Schema cache entry corrupt", "schema_id", id, "version", version, "error", err)
		return nil, false
	}
	return &sc, true
}

// PutVersion stores a frozen version. Failures are logged and ignored, the
// database remains authoritative.
func (c *RedisVersionCache) PutVersion(ctx context.Context, sc *Schema) {
	raw, err := json.Marshal(sc)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, versionKey(sc.ID, sc.Version), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("Schema cache write failed", "schema_id", sc.ID, "version", sc.Version, "error", err)
	}
}
