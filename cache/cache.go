// Package cache provides a bounded LRU response cache with per-entry expiry.
//
// Information Hiding:
// - Recency bookkeeping (map + intrusive list) hidden behind Get/Set
// - Key normalization applied internally, callers pass raw query text
// - Expiry is lazy: checked on read, never by a background sweeper

package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultMaxSize is the default entry capacity.
const DefaultMaxSize = 200

// DefaultTTL is the default entry lifetime.
const DefaultTTL = 2 * time.Hour

type entry struct {
	key      string
	value    map[string]any
	cachedAt time.Time
}

// ResponseCache is an LRU cache with TTL, safe for concurrent use.
// A single mutex guards every read/write/evict sequence; all operations
// are O(1) aside from copying the stored value.
type ResponseCache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	order   *list.List // front = most recently used
	items   map[string]*list.Element
	now     func() time.Time
	log     zerolog.Logger
}

// New creates a cache with the given capacity and TTL. Non-positive
// arguments fall back to the defaults.
func New(maxSize int, ttl time.Duration, log zerolog.Logger) *ResponseCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResponseCache{
		maxSize: maxSize,
		ttl:     ttl,
		order:   list.New(),
		items:   make(map[string]*list.Element),
		now:     time.Now,
		log:     log,
	}
}

// normalizeKey applies the uniform trim+lowercase rule.
func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Get returns the cached value for key, or nil if absent or expired.
// Expired entries are purged on read; hits are promoted to most recently
// used. The returned map is a copy without internal metadata.
func (c *ResponseCache) Get(key string) map[string]any {
	key = normalizeKey(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil
	}

	ent := el.Value.(*entry)
	if c.now().Sub(ent.cachedAt) > c.ttl {
		c.order.Remove(el)
		delete(c.items, key)
		c.log.Debug().Str("key", truncate(key, 50)).Msg("cache entry expired")
		return nil
	}

	c.order.MoveToFront(el)

	out := make(map[string]any, len(ent.value))
	for k, v := range ent.value {
		out[k] = v
	}
	c.log.Debug().Str("key", truncate(key, 50)).Msg("cache hit")
	return out
}

// Set stores value under key, replacing any existing entry. When the
// cache grows past capacity the least-recently-used entry is evicted.
func (c *ResponseCache) Set(key string, value map[string]any) {
	key = normalizeKey(key)

	stored := make(map[string]any, len(value))
	for k, v := range value {
		stored[k] = v
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.order.Remove(el)
		delete(c.items, key)
	}

	c.items[key] = c.order.PushFront(&entry{
		key:      key,
		value:    stored,
		cachedAt: c.now(),
	})

	if c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		if oldest != nil {
			old := oldest.Value.(*entry)
			c.order.Remove(oldest)
			delete(c.items, old.key)
			c.log.Debug().Str("key", truncate(old.key, 50)).Msg("cache evicted")
		}
	}
}

// Clear removes every entry.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
}

// Len returns the current entry count.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats describes the cache configuration and occupancy.
type Stats struct {
	Size    int           `json:"size"`
	MaxSize int           `json:"max_size"`
	TTL     time.Duration `json:"ttl"`
}

// Stats returns a snapshot of cache statistics.
func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Size: c.order.Len(), MaxSize: c.maxSize, TTL: c.ttl}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
