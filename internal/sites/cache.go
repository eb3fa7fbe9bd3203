package sites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned by Cache.Get when no page is stored for a key.
var ErrCacheMiss = errors.New("page not cached")

// Cache stores rendered pages. Entries are kept past their revalidation
// window so they can be served stale; MaxAge bounds how long they live.
type Cache interface {
	Get(ctx context.Context, key string) (*Page, error)
	Set(ctx context.Context, key string, p *Page) error
	Delete(ctx context.Context, key string) error
}

// ── In-memory ──────────────────────────────────────────────────────────────

type memEntry struct {
	page      *Page
	expiresAt time.Time
}

// MemoryCache is a thread-safe in-process page cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
	maxAge  time.Duration
}

// NewMemoryCache creates a MemoryCache whose entries expire after maxAge.
func NewMemoryCache(maxAge time.Duration) *MemoryCache {
	return &MemoryCache{entries: make(map[string]*memEntry), maxAge: maxAge}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) (*Page, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, ErrCacheMiss
	}
	return e.page, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, p *Page) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &memEntry{page: p, expiresAt: time.Now().Add(c.maxAge)}
	return nil
}

// Delete implements Cache.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Evict removes expired entries and returns how many were removed.
func (c *MemoryCache) Evict() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	n := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// ── Redis ──────────────────────────────────────────────────────────────────

const redisKeyPrefix = "sites:page:"

// RedisCache stores pages in Redis so several server processes share them.
type RedisCache struct {
	client *redis.Client
	maxAge time.Duration
}

// NewRedisCache creates a RedisCache. Entries expire after maxAge.
func NewRedisCache(client *redis.Client, maxAge time.Duration) *RedisCache {
	return &RedisCache{client: client, maxAge: maxAge}
}

// DialRedis connects to Redis and verifies the connection.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (*Page, error) {
	b, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get page: %w", err)
	}
	var p Page
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode cached page: %w", err)
	}
	return &p, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, p *Page) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode page: %w", err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, b, c.maxAge).Err(); err != nil {
		return fmt.Errorf("redis set page: %w", err)
	}
	return nil
}

// Delete implements Cache.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete page: %w", err)
	}
	return nil
}
