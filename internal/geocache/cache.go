// ABOUTME: Thread-safe, size-bounded memo cache for geocoding results.
// ABOUTME: Keys are exact query strings; entries never expire, oldest are evicted first.

package geocache

import (
	"container/list"
	"sync"
)

// DefaultMaxSize bounds memory when a caller does not pick a size.
const DefaultMaxSize = 1024

// cacheEntry stores a value and its position in the insertion order.
type cacheEntry[V any] struct {
	value   V
	element *list.Element
}

// Cache memoizes values by exact key. Uses a doubly-linked list to keep
// insertion order so the oldest entry is evicted in O(1) when full.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry[V]
	order   *list.List // keys, oldest at front
	maxSize int
	hits    uint64
	misses  uint64
}

// New creates a cache holding at most maxSize entries.
func New[V any](maxSize int) *Cache[V] {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Cache[V]{
		entries: make(map[string]*cacheEntry[V]),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// Get returns the value stored under key.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return entry.value, true
}

// Put stores value under key unless the key is already present, and returns
// the value that ends up cached. The first writer wins.
func (c *Cache[V]) Put(key string, value V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		return entry.value
	}
	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	elem := c.order.PushBack(key)
	c.entries[key] = &cacheEntry[V]{value: value, element: elem}
	return value
}

// GetOrLoad returns the cached value for key or calls load and caches its
// result. load runs without the lock held; failed loads are not cached.
func (c *Cache[V]) GetOrLoad(key string, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		var zero V
		return zero, err
	}
	return c.Put(key, v), nil
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *Cache[V]) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, key)
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit and miss counters (for logging).
func (c *Cache[V]) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
