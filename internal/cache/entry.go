package cache

import "time"

// entry is the cache's private record for one key. Only the value leaves the
// cache; the bookkeeping fields are never handed to callers.
type entry[V any] struct {
	key            string
	value          V
	createdAt      time.Time
	ttl            time.Duration
	accessCount    int64
	lastAccessedAt time.Time
}

// expired reports whether the entry outlived its TTL. A TTL of zero or less
// never expires.
func (e *entry[V]) expired(now time.Time) bool {
	if e.ttl <= 0 {
		return false
	}
	return now.Sub(e.createdAt) > e.ttl
}

func (e *entry[V]) touch(now time.Time) {
	e.accessCount++
	e.lastAccessedAt = now
}
