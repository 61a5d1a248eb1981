// Package cache provides a small in-memory TTL cache.
package cache

import (
	"sync"
	"time"
)

type item[V any] struct {
	value      V
	expiration time.Time
}

// Cache is an in-memory TTL cache safe for concurrent access.
type Cache[V any] struct {
	mu    sync.RWMutex
	items map[string]item[V]
	now   func() time.Time
}

// New constructs an empty Cache.
func New[V any]() *Cache[V] {
	return &Cache[V]{items: make(map[string]item[V]), now: time.Now}
}

// Set stores value under key for ttl. A non-positive ttl is a no-op.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = item[V]{value: value, expiration: c.now().Add(ttl)}
}

// Get returns the value for key if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().After(it.expiration) {
		c.mu.Lock()
		if cur, ok := c.items[key]; ok && cur.expiration.Equal(it.expiration) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	return it.value, true
}
