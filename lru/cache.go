// Package lru provides a generic, thread-safe LRU cache with optional
// entry expiry, an eviction callback, and hit/miss counters.
//
// All single-key operations are O(1). Expired entries are removed lazily
// on access, so Len may briefly overcount after a TTL elapses.
package lru

import (
	"sync"
	"time"
)

// Metrics is a point-in-time snapshot of cache counters.
type Metrics struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
}

// HitRate returns hits over total lookups, or 0 before any lookup.
func (m Metrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0
	}
	return float64(m.Hits) / float64(total)
}

// Option configures a Cache at construction time.
type Option[K comparable, V any] func(*Cache[K, V])

// WithTTL sets a default time-to-live applied to every Put. Entries stored
// with PutWithTTL keep their own deadline. Zero means entries never expire.
func WithTTL[K comparable, V any](ttl time.Duration) Option[K, V] {
	return func(c *Cache[K, V]) { c.defaultTTL = ttl }
}

// WithOnEvict registers a callback invoked whenever an entry leaves the
// cache through capacity eviction or expiry. The callback runs with the
// cache lock held and must not call back into the cache.
func WithOnEvict[K comparable, V any](fn func(key K, val V)) Option[K, V] {
	return func(c *Cache[K, V]) { c.onEvict = fn }
}

// entry is a doubly linked list node holding one cached pair. A zero
// expiresAt means the entry never expires.
type entry[K comparable, V any] struct {
	key       K
	val       V
	expiresAt time.Time
	prev      *entry[K, V]
	next      *entry[K, V]
}

// Cache is a fixed-capacity least-recently-used cache safe for concurrent
// use. K must be comparable; V can be any type.
type Cache[K comparable, V any] struct {
	mu         sync.Mutex
	capacity   int
	defaultTTL time.Duration
	onEvict    func(K, V)
	items      map[K]*entry[K, V]
	head       *entry[K, V] // most recently used sentinel
	tail       *entry[K, V] // least recently used sentinel
	metrics    Metrics

	now func() time.Time
}

// New creates a cache holding at most capacity entries.
// Panics if capacity < 1.
func New[K comparable, V any](capacity int, opts ...Option[K, V]) *Cache[K, V] {
	if capacity < 1 {
		panic("lru: capacity must be >= 1")
	}

	head := &entry[K, V]{}
	tail := &entry[K, V]{}
	head.next = tail
	tail.prev = head

	c := &Cache[K, V]{
		capacity: capacity,
		items:    make(map[K]*entry[K, V], capacity),
		head:     head,
		tail:     tail,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a value and promotes it to most recently used. An entry
// past its deadline is dropped and reported as a miss.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		c.metrics.Misses++
		var zero V
		return zero, false
	}
	if c.expired(e) {
		c.expire(e)
		c.metrics.Misses++
		var zero V
		return zero, false
	}

	c.metrics.Hits++
	c.moveToFront(e)
	return e.val, true
}

// Put inserts or updates a pair using the cache-wide TTL. Updating an
// existing key resets its deadline. When an insert displaces the least
// recently used entry, that entry's key and value are returned with true.
func (c *Cache[K, V]) Put(key K, val V) (K, V, bool) {
	return c.put(key, val, c.defaultTTL)
}

// PutWithTTL is Put with a per-entry TTL overriding the cache default.
func (c *Cache[K, V]) PutWithTTL(key K, val V, ttl time.Duration) (K, V, bool) {
	return c.put(key, val, ttl)
}

func (c *Cache[K, V]) put(key K, val V, ttl time.Duration) (K, V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var deadline time.Time
	if ttl > 0 {
		deadline = c.now().Add(ttl)
	}

	if e, ok := c.items[key]; ok {
		e.val = val
		e.expiresAt = deadline
		c.moveToFront(e)
		var zeroK K
		var zeroV V
		return zeroK, zeroV, false
	}

	var evictedKey K
	var evictedVal V
	evicted := false
	if len(c.items) >= c.capacity {
		victim := c.tail.prev
		c.unlink(victim)
		delete(c.items, victim.key)
		evictedKey = victim.key
		evictedVal = victim.val
		evicted = true
		c.metrics.Evictions++
		if c.onEvict != nil {
			c.onEvict(victim.key, victim.val)
		}
	}

	e := &entry[K, V]{key: key, val: val, expiresAt: deadline}
	c.items[key] = e
	c.pushFront(e)

	return evictedKey, evictedVal, evicted
}

// Delete removes a key. Returns true if the key existed. The eviction
// callback does not fire for explicit deletes.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return false
	}

	c.unlink(e)
	delete(c.items, key)
	return true
}

// Len returns the number of stored entries, including any whose deadline
// has passed but which have not been touched since.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Peek retrieves a value without promoting it and without touching the
// hit/miss counters. Expired entries are still dropped.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.expired(e) {
		c.expire(e)
		var zero V
		return zero, false
	}
	return e.val, true
}

// Keys returns live keys ordered from most to least recently used.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, len(c.items))
	for cur := c.head.next; cur != c.tail; cur = cur.next {
		if c.expired(cur) {
			continue
		}
		keys = append(keys, cur.key)
	}
	return keys
}

// Metrics returns a snapshot of the cache counters.
func (c *Cache[K, V]) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// Clear drops every entry without firing the eviction callback.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.head.next = c.tail
	c.tail.prev = c.head
	c.items = make(map[K]*entry[K, V], c.capacity)
}

// --- internal operations (caller must hold lock) ---

func (c *Cache[K, V]) expired(e *entry[K, V]) bool {
	return !e.expiresAt.IsZero() && c.now().After(e.expiresAt)
}

// expire removes a dead entry and reports it to the eviction callback.
func (c *Cache[K, V]) expire(e *entry[K, V]) {
	c.unlink(e)
	delete(c.items, e.key)
	c.metrics.Expirations++
	if c.onEvict != nil {
		c.onEvict(e.key, e.val)
	}
}

func (c *Cache[K, V]) unlink(e *entry[K, V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev = nil
	e.next = nil
}

func (c *Cache[K, V]) pushFront(e *entry[K, V]) {
	e.next = c.head.next
	e.prev = c.head
	c.head.next.prev = e
	c.head.next = e
}

func (c *Cache[K, V]) moveToFront(e *entry[K, V]) {
	c.unlink(e)
	c.pushFront(e)
}
