// Package cache holds the Redis backed helpers shared by every bookingd
// instance: the pull snapshot cache and the sync rate limiters.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/booking-manager/internal/application"
)

const generationKey = "sync:snapshot:generation"

// RedisSnapshotCache stores pull snapshots under a generation number.
// Invalidate bumps the generation so every instance stops seeing old
// entries at once; stale keys are left to expire.
type RedisSnapshotCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

var _ application.SnapshotCache = (*RedisSnapshotCache)(nil)

// NewRedisSnapshotCache wraps client. A non-positive ttl defaults to 30s.
func NewRedisSnapshotCache(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *RedisSnapshotCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSnapshotCache{client: client, ttl: ttl, logger: logger.With(slog.String("component", "snapshot_cache"))}
}

// Get returns the snapshot cached for scope in the current generation.
func (c *RedisSnapshotCache) Get(ctx context.Context, scope string) (application.SyncSnapshot, bool) {
	key, err := c.key(ctx, scope)
	if err != nil {
		c.logger.WarnContext(ctx, "snapshot cache generation lookup failed", slog.Any("error", err))
		return application.SyncSnapshot{}, false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "snapshot cache read failed", slog.String("key", key), slog.Any("error", err))
		}
		return application.SyncSnapshot{}, false
	}

	var snapshot application.SyncSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		c.logger.WarnContext(ctx, "snapshot cache entry undecodable", slog.String("key", key), slog.Any("error", err))
		return application.SyncSnapshot{}, false
	}
	return snapshot, true
}

// Store caches snapshot for scope until the TTL elapses.
func (c *RedisSnapshotCache) Store(ctx context.Context, scope string, snapshot application.SyncSnapshot) {
	key, err := c.key(ctx, scope)
	if err != nil {
		c.logger.WarnContext(ctx, "snapshot cache generation lookup failed", slog.Any("error", err))
		return
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		c.logger.WarnContext(ctx, "snapshot cache encode failed", slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "snapshot cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}

// Invalidate moves every instance to a fresh generation.
func (c *RedisSnapshotCache) Invalidate(ctx context.Context) {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		c.logger.WarnContext(ctx, "snapshot cache invalidation failed", slog.Any("error", err))
	}
}

func (c *RedisSnapshotCache) key(ctx context.Context, scope string) (string, error) {
	generation, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return snapshotKey(generation, scope), nil
}

func snapshotKey(generation int64, scope string) string {
	return fmt.Sprintf("sync:snapshot:%d:%s", generation, scope)
}
