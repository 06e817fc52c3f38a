package remote

import (
	"testing"
	"time"
)

func TestCache_TTLBoundary(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache[string](time.Hour)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	now = now.Add(time.Hour - time.Nanosecond)
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("expected hit just before expiry, got %q, %v", v, ok)
	}

	now = now.Add(time.Nanosecond)
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss at exactly ttl")
	}
	if c.Len() != 0 {
		t.Errorf("expected expired entry to be evicted, len=%d", c.Len())
	}
}

func TestCache_Clear(t *testing.T) {
	c := NewCache[int](time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
	c.Clear()
	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after clear")
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d", c.Len())
	}
}

func TestCache_SetRefreshesTimestamp(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache[string](time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k", "old")
	now = now.Add(50 * time.Second)
	c.Set("k", "new")
	now = now.Add(50 * time.Second)
	if v, ok := c.Get("k"); !ok || v != "new" {
		t.Errorf("expected refreshed entry, got %q, %v", v, ok)
	}
}
