// Package cache provides the in-process result cache shared by every chat
// session: a bounded LRU map with per-entry TTL, hit/miss accounting and a
// rolling statistics tracker.
package cache

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/jonboulle/clockwork"
)

// ErrInvalidCapacity is returned when a cache is built with capacity <= 0
var ErrInvalidCapacity = errors.New("cache capacity must be positive")

// ResultCache is a thread-safe, bounded cache with strict LRU eviction and
// lazy TTL expiry. A single mutex guards the map, the recency list and the
// counters.
type ResultCache[V any] struct {
	mu         sync.Mutex
	items      *simplelru.LRU[string, *entry[V]]
	capacity   int
	defaultTTL time.Duration
	clock      clockwork.Clock

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64
}

// New creates a cache holding at most capacity entries. defaultTTL applies to
// Set; zero means entries never expire. A nil clock uses wall time.
func New[V any](capacity int, defaultTTL time.Duration, clock clockwork.Clock) (*ResultCache[V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	items, err := simplelru.NewLRU[string, *entry[V]](capacity, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru: %w", err)
	}

	return &ResultCache[V]{
		items:      items,
		capacity:   capacity,
		defaultTTL: defaultTTL,
		clock:      clock,
	}, nil
}

// Get returns the cached value for key. An expired entry is removed and
// reported as a miss.
func (c *ResultCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items.Peek(key)
	if !ok {
		c.misses++
		return zero, false
	}

	now := c.clock.Now()
	if e.expired(now) {
		c.items.Remove(key)
		c.expirations++
		c.misses++
		return zero, false
	}

	// Promote to most-recently-used
	c.items.Get(key)
	e.touch(now)
	c.hits++
	return e.value, true
}

// Peek returns the value for key without touching recency or counters
func (c *ResultCache[V]) Peek(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items.Peek(key)
	if !ok || e.expired(c.clock.Now()) {
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the cache's default TTL
func (c *ResultCache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores value under key. The entry becomes most-recently-used;
// inserting a new key into a full cache evicts the least-recently-used one.
func (c *ResultCache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	e := &entry[V]{
		key:            key,
		value:          value,
		createdAt:      now,
		ttl:            ttl,
		lastAccessedAt: now,
	}

	if evicted := c.items.Add(key, e); evicted {
		c.evictions++
	}

	if n := c.items.Len(); n > c.capacity {
		panic(fmt.Sprintf("cache: size %d exceeds capacity %d", n, c.capacity))
	}
}

// Delete removes a single key and reports whether it was present
func (c *ResultCache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Remove(key)
}

// Invalidate removes every entry whose key contains pattern and returns how
// many were removed. Matching is a plain substring test. An empty pattern
// matches nothing; use Clear to drop everything.
func (c *ResultCache[V]) Invalidate(pattern string) int {
	if pattern == "" {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range c.items.Keys() {
		if strings.Contains(key, pattern) {
			c.items.Remove(key)
			removed++
		}
	}
	return removed
}

// Clear empties the cache. Counters survive; see ResetStats.
func (c *ResultCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Purge()
}

// CleanupExpired removes every expired entry and returns the count. Expired
// keys are collected first and removed in a second, re-checked pass so the
// lock is never held for a full scan plus deletes.
func (c *ResultCache[V]) CleanupExpired() int {
	c.mu.Lock()
	now := c.clock.Now()
	var expired []string
	for _, key := range c.items.Keys() {
		if e, ok := c.items.Peek(key); ok && e.expired(now) {
			expired = append(expired, key)
		}
	}
	c.mu.Unlock()

	if len(expired) == 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now = c.clock.Now()
	removed := 0
	for _, key := range expired {
		e, ok := c.items.Peek(key)
		if !ok || !e.expired(now) {
			continue
		}
		c.items.Remove(key)
		c.expirations++
		removed++
	}
	return removed
}

// Len returns the number of entries, expired or not
func (c *ResultCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}

// Capacity returns the maximum number of entries
func (c *ResultCache[V]) Capacity() int {
	return c.capacity
}

// Stats returns a copy of the current counters
func (c *ResultCache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}

	return Stats{
		Size:          c.items.Len(),
		Capacity:      c.capacity,
		Hits:          c.hits,
		Misses:        c.misses,
		Evictions:     c.evictions,
		Expirations:   c.expirations,
		TotalRequests: total,
		HitRate:       hitRate,
	}
}

// ResetStats zeroes the hit, miss, eviction and expiration counters
func (c *ResultCache[V]) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits, c.misses, c.evictions, c.expirations = 0, 0, 0, 0
}
