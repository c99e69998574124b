// Package apicache provides a bounded, TTL-aware in-memory cache for
// idempotent GET responses. It is the Go analogue of the reference
// implementation's InMemoryLRUAPICache: an ordered map evicted by
// least-recently-used once it grows past a configured size, with entries
// that additionally expire on their own wall-clock schedule.
package apicache

import (
	"container/list"
	"context"
	"sync"
	"time"

	ptime "ghsnapshot/internal/platform/time"
)

// entry is the value stored behind each cache key.
type entry struct {
	key    string
	value  any
	expiry *time.Time
}

// LRU is a mutex-guarded least-recently-used cache with optional per-entry
// TTL. The zero value is not usable; construct with New.
type LRU struct {
	maxLen int
	now    func() time.Time

	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front = most recently used
}

// New builds an LRU cache that holds at most maxLen entries. maxLen <= 0
// means unbounded (eviction never triggers on size, only on TTL).
func New(maxLen int) *LRU {
	return &LRU{
		maxLen: maxLen,
		now:    time.Now,
		items:  make(map[string]*list.Element),
		order:  list.New(),
	}
}

// Get returns the cached value for key if present and unexpired, moving it
// to the front of the LRU order. A miss — absent or expired — returns
// (nil, false); an expired entry is evicted as a side effect, matching the
// reference implementation's get().
func (c *LRU) Get(_ context.Context, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if e.expiry != nil && !c.now().Before(*e.expiry) {
		c.removeElement(el)
		return nil, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

// Set stores value under key. A positive ttlSeconds makes the entry expire
// ttlSeconds from now; nil or a non-positive value means it never expires
// on its own. Inserting
// past maxLen evicts the least-recently-used entry.
func (c *LRU) Set(_ context.Context, key string, value any, ttlSeconds *int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiry *time.Time
	if ttlSeconds != nil && *ttlSeconds > 0 {
		expiry = ptime.Ptr(c.now().Add(time.Duration(*ttlSeconds) * time.Second))
	}

	if el, ok := c.items[key]; ok {
		el.Value = &entry{key: key, value: value, expiry: expiry}
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&entry{key: key, value: value, expiry: expiry})
	c.items[key] = el

	if c.maxLen > 0 && c.order.Len() > c.maxLen {
		oldest := c.order.Back()
		if oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Close is a no-op retained to satisfy domain.Cache; there is no underlying
// connection to release.
func (c *LRU) Close(_ context.Context) error {
	return nil
}

// removeElement deletes el from both the ordering list and the index map.
// Callers must hold c.mu.
func (c *LRU) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}
