// ABOUTME: Thread-safe TTL cache keyed by Idempotency-Key for replaying completed requests.
// ABOUTME: Tracks in-flight keys so concurrent duplicates can be refused instead of re-executed.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// State is what Begin found for a key.
type State int

const (
	// Fresh means the key was unknown (or expired) and is now marked in flight.
	Fresh State = iota
	// InFlight means another caller holds the key and has not completed.
	InFlight
	// Done means the key completed within the TTL; the stored value is returned.
	Done
)

// cacheEntry stores the timestamp, value and list element for a cached key.
type cacheEntry[V any] struct {
	timestamp time.Time
	done      bool
	value     V
	element   *list.Element
}

// Cache is a TTL-based, size-limited map from idempotency keys to results.
// Completed entries expire ttl after completion; in-flight entries only leave
// through Complete, Abandon or size eviction. A doubly-linked list keeps
// insertion order for O(1) eviction.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry[V]
	order   *list.List // keys, oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a cache with the specified TTL and maximum size.
// A background goroutine periodically cleans up expired entries.
func New[V any](ttl time.Duration, maxSize int) *Cache[V] {
	if maxSize <= 0 {
		maxSize = 1024
	}
	c := &Cache[V]{
		entries: make(map[string]*cacheEntry[V]),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Begin atomically looks key up and, if it is unknown or expired, marks it
// in flight. The value is only meaningful when the state is Done.
func (c *Cache[V]) Begin(key string) (State, V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	if entry, ok := c.entries[key]; ok {
		switch {
		case !entry.done:
			return InFlight, zero
		case !c.expired(entry):
			return Done, entry.value
		}
		c.removeLocked(key, entry)
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	elem := c.order.PushBack(key)
	c.entries[key] = &cacheEntry[V]{
		timestamp: c.now(),
		element:   elem,
	}
	return Fresh, zero
}

// Complete stores v for a key previously returned Fresh by Begin.
func (c *Cache[V]) Complete(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		// Evicted while in flight; keep the result anyway.
		entry = &cacheEntry[V]{element: c.order.PushBack(key)}
		c.entries[key] = entry
	} else {
		c.order.MoveToBack(entry.element)
	}
	entry.done = true
	entry.value = v
	entry.timestamp = c.now()
}

// Abandon forgets an in-flight key so it can be retried.
func (c *Cache[V]) Abandon(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok && !entry.done {
		c.removeLocked(key, entry)
	}
}

// Len returns the number of tracked keys, including expired ones not yet cleaned.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[V]) expired(entry *cacheEntry[V]) bool {
	return entry.done && c.now().Sub(entry.timestamp) >= c.ttl
}

func (c *Cache[V]) removeLocked(key string, entry *cacheEntry[V]) {
	c.order.Remove(entry.element)
	delete(c.entries, key)
}

// evictOldest removes the oldest entry from the cache.
// Must be called with mu held.
func (c *Cache[V]) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, key)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (c *Cache[V]) cleanup() {
	interval := time.Minute
	if c.ttl > 0 && c.ttl < interval {
		interval = c.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired entries from the cache.
func (c *Cache[V]) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if c.expired(entry) {
			c.removeLocked(key, entry)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (c *Cache[V]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
