package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clinic-suggestion-engine/internal/domain"
)

// SnapshotCache persists serialized knowledge snapshots in Redis so a
// restarted instance can warm up without a full database load.
type SnapshotCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewSnapshotCache creates a snapshot cache from the cache configuration.
func NewSnapshotCache(config domain.CacheConfig) (*SnapshotCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &SnapshotCache{
		redis:      client,
		defaultTTL: config.DefaultTTL,
	}, nil
}

// cachedSnapshot is the wire form of a snapshot with cache metadata.
type cachedSnapshot struct {
	Medicines []*domain.MedicineRecord    `json:"medicines"`
	Rules     []domain.InteractionWarning `json:"rules"`
	CachedAt  time.Time                   `json:"cached_at"`
	ExpiresAt time.Time                   `json:"expires_at"`
}

// Get retrieves the cached snapshot for the given catalog version tag.
// A corrupted or expired entry is evicted and reported as a miss.
func (c *SnapshotCache) Get(ctx context.Context, version string) (*Snapshot, bool, error) {
	key := c.snapshotKey(version)

	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil // Cache miss
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get snapshot cache: %w", err)
	}

	var cached cachedSnapshot
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return NewSnapshot(cached.Medicines, cached.Rules), true, nil
}

// Set caches the snapshot under the given catalog version tag.
func (c *SnapshotCache) Set(ctx context.Context, version string, snapshot *Snapshot, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	cached := cachedSnapshot{
		Medicines: snapshot.Medicines(),
		Rules:     snapshot.Rules(),
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}

	jsonData, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot cache data: %w", err)
	}

	return c.redis.Set(ctx, c.snapshotKey(version), jsonData, ttl).Err()
}

// Invalidate removes the cached snapshot for the given version.
func (c *SnapshotCache) Invalidate(ctx context.Context, version string) error {
	return c.redis.Del(ctx, c.snapshotKey(version)).Err()
}

// InvalidateAll removes every cached snapshot.
func (c *SnapshotCache) InvalidateAll(ctx context.Context) error {
	keys, err := c.redis.Keys(ctx, "knowledge:snapshot:*").Result()
	if err != nil {
		return fmt.Errorf("failed to list snapshot keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...).Err()
}

// Ping checks if the Redis connection is alive.
func (c *SnapshotCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *SnapshotCache) Close() error {
	return c.redis.Close()
}

// snapshotKey derives a stable key from the catalog version tag.
func (c *SnapshotCache) snapshotKey(version string) string {
	hash := sha256.Sum256([]byte(version))
	return fmt.Sprintf("knowledge:snapshot:%x", hash[:8])
}
