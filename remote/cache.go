package remote

import (
	"sync"
	"time"
)

type cacheEntry[T any] struct {
	data T
	at   time.Time
}

// Cache is a TTL map. An entry is valid while now-at < ttl; expired entries
// are evicted on lookup.
type Cache[T any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry[T]
}

// NewCache creates an empty cache with the given TTL.
func NewCache[T any](ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry[T]),
	}
}

// Get returns the cached value for key if it has not expired.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.now().Sub(e.at) >= c.ttl {
		delete(c.entries, key)
		return zero, false
	}
	return e.data, true
}

// Set stores v under key, stamped with the current time.
func (c *Cache[T]) Set(key string, v T) {
	c.mu.Lock()
	c.entries[key] = cacheEntry[T]{data: v, at: c.now()}
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
