// Package readingcache keeps recent scoring API results in memory so an
// identical submission on the same day is answered without a new call.
package readingcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"sync/atomic"
)

// Cache is a bounded map from request key to result with oldest-first
// eviction. A Cache with max size 0 stores nothing.
type Cache[V any] struct {
	mu       sync.Mutex
	entries  map[string]*node[V]
	head     *node[V] // most recently added
	tail     *node[V] // oldest, evicted first
	maxSize  int
	size     atomic.Int64
	nodePool sync.Pool
}

type node[V any] struct {
	key        string
	value      V
	prev, next *node[V]
}

func (n *node[V]) reset() {
	var zero V
	n.key = ""
	n.value = zero
	n.prev, n.next = nil, nil
}

// New creates a cache. The default bound is 1024 entries.
func New[V any](opts ...Option) *Cache[V] {
	cfg := options{maxSize: 1024}
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &Cache[V]{
		entries: make(map[string]*node[V]),
		maxSize: cfg.maxSize,
	}
	c.nodePool.New = func() any { return &node[V]{} }
	return c
}

// Enabled reports whether the cache stores anything.
func (c *Cache[V]) Enabled() bool { return c.maxSize > 0 }

// Get returns the value stored under key.
func (c *Cache[V]) Get(_ context.Context, key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	return n.value, true
}

// Put stores value under key, replacing an earlier value in place and
// evicting the oldest entry when full.
func (c *Cache[V]) Put(_ context.Context, key string, value V) {
	if c.maxSize <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.entries[key]; ok {
		n.value = value
		return
	}
	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	n := c.nodePool.Get().(*node[V])
	n.key = key
	n.value = value
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
	c.entries[key] = n
	c.size.Add(1)
}

// evictOldest drops the tail. Must be called with c.mu held.
func (c *Cache[V]) evictOldest() {
	n := c.tail
	if n == nil {
		return
	}
	c.tail = n.prev
	if c.tail != nil {
		c.tail.next = nil
	} else {
		c.head = nil
	}
	delete(c.entries, n.key)
	n.reset()
	c.nodePool.Put(n)
	c.size.Add(-1)
}

// Size returns the current number of entries.
func (c *Cache[V]) Size() int64 {
	return c.size.Load()
}

// Key derives a cache key from the form name, the calendar day and the
// normalized request. Requests that fail to encode yield "" which callers
// treat as uncacheable.
func Key(form, day string, request any) string {
	body, err := json.Marshal(request)
	if err != nil {
		return ""
	}
	h := sha256.New()
	h.Write([]byte(form))
	h.Write([]byte{0})
	h.Write([]byte(day))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
