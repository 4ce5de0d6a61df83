package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryKeyCache_RoundTrip(t *testing.T) {
	c := NewMemoryKeyCache()
	ctx := context.Background()

	if _, err := c.Get(ctx, "tenant-1"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}

	if err := c.Set(ctx, "tenant-1", []byte(`{"keys":[]}`), time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc, err := c.Get(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(doc) != `{"keys":[]}` {
		t.Errorf("unexpected document %q", doc)
	}
}

func TestMemoryKeyCache_Expiry(t *testing.T) {
	now := time.Now()
	c := &memoryCache{
		entries: make(map[string]memoryEntry),
		now:     func() time.Time { return now },
	}
	ctx := context.Background()

	if err := c.Set(ctx, "tenant-1", []byte("doc"), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := c.Get(ctx, "tenant-1"); err != nil {
		t.Fatalf("fresh entry should hit: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := c.Get(ctx, "tenant-1"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected expired entry to miss, got %v", err)
	}
}
