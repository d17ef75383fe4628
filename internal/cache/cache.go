package cache

import (
	"sync"
	"time"
)

type item[V any] struct {
	value  V
	stored time.Time
}

// Cache provides a simple in-memory cache with expiration
type Cache[K comparable, V any] struct {
	data map[K]item[V]
	ttl  time.Duration
	now  func() time.Time
	mu   sync.RWMutex
}

// NewCache creates a new cache with the specified TTL
func NewCache[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		data: make(map[K]item[V]),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Get retrieves a value from the cache. Expired entries are removed.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	it, exists := c.data[key]
	c.mu.RUnlock()

	var zero V
	if !exists {
		return zero, false
	}
	if c.now().Sub(it.stored) > c.ttl {
		c.mu.Lock()
		if cur, ok := c.data[key]; ok && cur.stored.Equal(it.stored) {
			delete(c.data, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return it.value, true
}

// Set stores a value in the cache
func (c *Cache[K, V]) Set(key K, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = item[V]{value: val, stored: c.now()}
}

// Len returns the number of stored entries, expired or not
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
