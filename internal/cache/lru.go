// Package cache memoizes derived views of the ledger.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU is a size-bounded cache whose entries also expire after a TTL.
// Safe for concurrent use.
type LRU[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	items   map[string]*list.Element
	order   *list.List

	hits, misses uint64
}

type entry[T any] struct {
	key       string
	value     T
	expiresAt time.Time
}

// Stats is a snapshot of cache effectiveness.
type Stats struct {
	Size   int    `json:"size"`
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// NewLRU returns a cache holding at most maxSize entries (minimum 1).
// A ttl of zero or less disables expiry.
func NewLRU[T any](maxSize int, ttl time.Duration) *LRU[T] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LRU[T]{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	e := elem.Value.(*entry[T])
	if c.expired(e) {
		c.remove(elem)
		c.misses++
		return zero, false
	}
	c.order.MoveToFront(elem)
	c.hits++
	return e.value, true
}

// Set stores value under key, evicting the least recently used entry
// when the cache is full.
func (c *LRU[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[T]{key: key, value: value}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}
	if elem, ok := c.items[key]; ok {
		elem.Value = e
		c.order.MoveToFront(elem)
		return
	}
	c.items[key] = c.order.PushFront(e)
	if c.order.Len() > c.maxSize {
		c.remove(c.order.Back())
	}
}

// GetOrCompute returns the cached value for key, computing and storing it
// on a miss. compute runs outside the lock.
func (c *LRU[T]) GetOrCompute(key string, compute func() T) T {
	if v, ok := c.Get(key); ok {
		return v
	}
	v := compute()
	c.Set(key, v)
	return v
}

// Purge drops every entry. Counters are kept.
func (c *LRU[T]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// CleanExpired removes expired entries and returns how many were dropped.
func (c *LRU[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if c.expired(elem.Value.(*entry[T])) {
			c.remove(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

func (c *LRU[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Size: len(c.items), Hits: c.hits, Misses: c.misses}
}

func (c *LRU[T]) expired(e *entry[T]) bool {
	return c.ttl > 0 && c.now().After(e.expiresAt)
}

func (c *LRU[T]) remove(elem *list.Element) {
	delete(c.items, elem.Value.(*entry[T]).key)
	c.order.Remove(elem)
}
