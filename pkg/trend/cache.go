package trend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores classified trends between lookups.
type Cache interface {
	Get(ctx context.Context, key string) (Trend, bool, error)
	Set(ctx context.Context, key string, t Trend, ttl time.Duration) error
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	trend   Trend
	expires time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Trend, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Trend{}, false, nil
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, key)
		return Trend{}, false, nil
	}
	return e.trend, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, t Trend, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := memoryEntry{trend: t}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

// RedisCache shares classified trends across processes.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache wraps a redis client. Keys are stored under prefix.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "flowrank:trend:"
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Trend, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Trend{}, false, nil
	}
	if err != nil {
		return Trend{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var t Trend
	if err := json.Unmarshal(data, &t); err != nil {
		return Trend{}, false, fmt.Errorf("decode cached trend %s: %w", key, err)
	}
	return t, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, t Trend, ttl time.Duration) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode trend %s: %w", key, err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
