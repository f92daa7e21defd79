package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestCache(maxSize int, ttl time.Duration) *ResponseCache {
	return New(maxSize, ttl, zerolog.Nop())
}

func TestSetGetRoundTrip(t *testing.T) {
	c := newTestCache(10, time.Hour)

	c.Set("Hello", map[string]any{"description": "hi"})

	got := c.Get("hello")
	if got == nil {
		t.Fatal("expected hit after Set")
	}
	if got["description"] != "hi" {
		t.Errorf("got %v, want hi", got["description"])
	}
}

func TestKeyNormalization(t *testing.T) {
	c := newTestCache(10, time.Hour)

	c.Set("  Open Firefox  ", map[string]any{"description": "ok"})

	if c.Get("open firefox") == nil {
		t.Error("normalized lookup should hit")
	}
	if c.Get("OPEN FIREFOX") == nil {
		t.Error("case-insensitive lookup should hit")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(10, time.Minute)

	base := time.Now()
	c.now = func() time.Time { return base }
	c.Set("q", map[string]any{"description": "a"})

	if c.Get("q") == nil {
		t.Fatal("entry should be live before TTL")
	}

	c.now = func() time.Time { return base.Add(time.Minute + time.Second) }
	if c.Get("q") != nil {
		t.Error("entry should be expired past TTL")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be purged, len = %d", c.Len())
	}
}

func TestLRUEviction(t *testing.T) {
	const maxSize = 3
	c := newTestCache(maxSize, time.Hour)

	for i := 0; i < maxSize+1; i++ {
		c.Set(fmt.Sprintf("key-%d", i), map[string]any{"n": i})
	}

	if c.Len() != maxSize {
		t.Fatalf("len = %d, want %d", c.Len(), maxSize)
	}
	if c.Get("key-0") != nil {
		t.Error("least-recently-used key should have been evicted")
	}
	for i := 1; i <= maxSize; i++ {
		if c.Get(fmt.Sprintf("key-%d", i)) == nil {
			t.Errorf("key-%d should survive eviction", i)
		}
	}
}

func TestGetPromotesRecency(t *testing.T) {
	c := newTestCache(2, time.Hour)

	c.Set("a", map[string]any{"v": 1})
	c.Set("b", map[string]any{"v": 2})

	// Touch a so b becomes the LRU entry.
	c.Get("a")
	c.Set("c", map[string]any{"v": 3})

	if c.Get("b") != nil {
		t.Error("b should have been evicted")
	}
	if c.Get("a") == nil {
		t.Error("a was promoted and should survive")
	}
}

func TestMetadataDoesNotLeak(t *testing.T) {
	c := newTestCache(10, time.Hour)

	c.Set("q", map[string]any{"description": "a"})
	got := c.Get("q")
	for k := range got {
		if k != "description" {
			t.Errorf("unexpected key %q in cached value", k)
		}
	}
}

func TestReturnedValueIsACopy(t *testing.T) {
	c := newTestCache(10, time.Hour)

	c.Set("q", map[string]any{"description": "a"})
	got := c.Get("q")
	got["description"] = "mutated"

	again := c.Get("q")
	if again["description"] != "a" {
		t.Error("mutating a returned value must not affect the cache")
	}
}

func TestClear(t *testing.T) {
	c := newTestCache(10, time.Hour)
	c.Set("a", map[string]any{"v": 1})
	c.Set("b", map[string]any{"v": 2})

	c.Clear()

	if c.Len() != 0 {
		t.Errorf("len after Clear = %d, want 0", c.Len())
	}
	if c.Get("a") != nil {
		t.Error("cleared entry should miss")
	}
}
