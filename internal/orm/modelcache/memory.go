package modelcache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryCache keeps snapshots in process memory
type MemoryCache struct {
	mu     sync.RWMutex
	items  map[string]item
	config Config
	now    func() time.Time
}

type item struct {
	value     []byte
	expiresAt time.Time
}

func (i item) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// NewMemoryCache creates an in-memory cache
func NewMemoryCache(config Config) *MemoryCache {
	return &MemoryCache{
		items:  make(map[string]item),
		config: config,
		now:    time.Now,
	}
}

// Get returns the stored bytes or ErrCacheMiss
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	it, ok := c.items[c.config.Prefix+key]
	c.mu.RUnlock()

	if !ok || it.expired(c.now()) {
		return nil, ErrCacheMiss{Key: key}
	}
	return append([]byte(nil), it.value...), nil
}

// Set stores bytes under key
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl == 0 {
		ttl = c.config.DefaultTTL
	}

	it := item{value: append([]byte(nil), value...)}
	if ttl > 0 {
		it.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.items[c.config.Prefix+key] = it
	c.mu.Unlock()
	return nil
}

// Delete removes key
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.items, c.config.Prefix+key)
	c.mu.Unlock()
	return nil
}

// Clear removes every key carrying the cache prefix
func (c *MemoryCache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.items {
		if strings.HasPrefix(k, c.config.Prefix) {
			delete(c.items, k)
		}
	}
	return nil
}

// Exists reports whether key is present and not expired
func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c.mu.RLock()
	it, ok := c.items[c.config.Prefix+key]
	c.mu.RUnlock()
	return ok && !it.expired(c.now()), nil
}
