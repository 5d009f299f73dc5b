// Package cache provides the bounded result store used by the analysis
// orchestrator.
//
// Entries are keyed by a [Fingerprint] of the submitted source text. The
// store holds at most Cap entries and evicts in insertion order: when a new
// key arrives at capacity, the oldest-inserted entry is dropped. Reads never
// change eviction order, so this is first-in-first-out rather than LRU.
//
// A FIFO is safe for concurrent use. Values are stored as given; callers that
// hand out mutable values should copy them on the way in and out.
package cache

import (
	"slices"
	"sync"
	"time"
)

// DefaultSize is the default maximum number of entries.
const DefaultSize = 20

// Entry is a cached value plus the time it was stored.
type Entry[V any] struct {
	Value    V         `json:"value"`
	CachedAt time.Time `json:"cached_at"`
}

// FIFO is a bounded, insertion-ordered key/value store.
type FIFO[V any] struct {
	mu      sync.Mutex
	max     int
	order   []string
	entries map[string]Entry[V]
	now     func() time.Time
}

// New creates a FIFO holding at most size entries.
// A non-positive size selects [DefaultSize].
func New[V any](size int) *FIFO[V] {
	if size <= 0 {
		size = DefaultSize
	}
	return &FIFO[V]{
		max:     size,
		entries: make(map[string]Entry[V], size),
		now:     time.Now,
	}
}

// Get returns the value stored under key.
func (c *FIFO[V]) Get(key string) (V, bool) {
	e, ok := c.Entry(key)
	return e.Value, ok
}

// Entry returns the value stored under key together with its timestamp.
func (c *FIFO[V]) Entry(key string) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok
}

// Put stores v under key. A new key arriving at capacity first evicts the
// oldest-inserted entry. Re-putting an existing key replaces its value and
// timestamp but keeps its position in the eviction order.
func (c *FIFO[V]) Put(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(key, Entry[V]{Value: v, CachedAt: c.now()})
}

func (c *FIFO[V]) putLocked(key string, e Entry[V]) {
	if _, ok := c.entries[key]; !ok {
		for len(c.order) >= c.max {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = e
}

// Delete removes key if present.
func (c *FIFO[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	c.order = slices.DeleteFunc(c.order, func(k string) bool { return k == key })
}

// Clear drops every entry.
func (c *FIFO[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
	c.entries = make(map[string]Entry[V], c.max)
}

// Len returns the number of stored entries.
func (c *FIFO[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Cap returns the maximum number of entries.
func (c *FIFO[V]) Cap() int { return c.max }

// Keys returns the stored keys, oldest-inserted first.
func (c *FIFO[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.order)
}
