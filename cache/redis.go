package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/keeper"
	"github.com/xraph/keeper/permission"
)

// Compile-time interface check.
var _ keeper.Cache = (*Redis)(nil)

const defaultKeyPrefix = "keeper:"

// Redis is a snapshot cache shared between engine instances. Each entry is
// indexed under its space and its tenant so invalidation does not need to
// scan the keyspace.
type Redis struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// RedisOption configures the Redis cache.
type RedisOption func(*Redis)

// WithRedisTTL sets the entry time-to-live.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = ttl }
}

// WithKeyPrefix sets the prefix of every key the cache writes.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

// WithRedisLogger sets the logger used to report Redis failures.
func WithRedisLogger(l *slog.Logger) RedisOption {
	return func(r *Redis) { r.logger = l }
}

// NewRedis creates a Redis-backed snapshot cache.
func NewRedis(rdb redis.Cmdable, opts ...RedisOption) *Redis {
	r := &Redis{
		rdb:    rdb,
		ttl:    time.Minute,
		prefix: defaultKeyPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns a cached snapshot. Redis errors count as misses.
func (r *Redis) Get(ctx context.Context, key keeper.SnapshotKey) (*permission.Snapshot, bool) {
	data, err := r.rdb.Get(ctx, r.entryKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("snapshot cache read failed", slog.String("error", err.Error()))
		}
		return nil, false
	}
	var snap permission.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		r.logger.Warn("snapshot cache entry corrupt", slog.String("error", err.Error()))
		return nil, false
	}
	return &snap, true
}

// Set stores a snapshot and records it in the space and tenant indexes.
func (r *Redis) Set(ctx context.Context, key keeper.SnapshotKey, snap *permission.Snapshot) {
	if snap == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	entry := r.entryKey(key)
	spaceIdx := r.spaceIndex(key.TenantID, key.SpaceID)
	tenantIdx := r.tenantIndex(key.TenantID)

	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, entry, data, r.ttl)
		p.SAdd(ctx, spaceIdx, entry)
		p.Expire(ctx, spaceIdx, r.ttl)
		p.SAdd(ctx, tenantIdx, entry)
		p.Expire(ctx, tenantIdx, r.ttl)
		return nil
	})
	if err != nil {
		r.logger.Warn("snapshot cache write failed", slog.String("error", err.Error()))
	}
}

// InvalidateSpace removes every cached snapshot of a space.
func (r *Redis) InvalidateSpace(ctx context.Context, tenantID, spaceID string) {
	r.dropIndex(ctx, r.spaceIndex(tenantID, spaceID))
}

// InvalidateTenant removes every cached snapshot of a tenant.
func (r *Redis) InvalidateTenant(ctx context.Context, tenantID string) {
	r.dropIndex(ctx, r.tenantIndex(tenantID))
}

func (r *Redis) dropIndex(ctx context.Context, index string) {
	keys, err := r.rdb.SMembers(ctx, index).Result()
	if err != nil {
		r.logger.Warn("snapshot cache invalidation failed",
			slog.String("index", index),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := r.rdb.Del(ctx, append(keys, index)...).Err(); err != nil {
		r.logger.Warn("snapshot cache invalidation failed",
			slog.String("index", index),
			slog.String("error", err.Error()),
		)
	}
}

func (r *Redis) entryKey(key keeper.SnapshotKey) string {
	return r.prefix + "snap:" + key.String()
}

func (r *Redis) spaceIndex(tenantID, spaceID string) string {
	return r.prefix + "idx:space:" + keeper.SpacePrefix(tenantID, spaceID)
}

func (r *Redis) tenantIndex(tenantID string) string {
	return r.prefix + "idx:tenant:" + keeper.TenantPrefix(tenantID)
}
