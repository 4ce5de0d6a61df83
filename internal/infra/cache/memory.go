package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	doc       []byte
	expiresAt time.Time
}

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryKeyCache is the in-process fallback used when no redis URL is
// configured (single-instance deployments, tests).
func NewMemoryKeyCache() KeyCache {
	return &memoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *memoryCache) Get(_ context.Context, tenantID string) ([]byte, error) {
	m.mu.RLock()
	entry, ok := m.entries[tenantID]
	m.mu.RUnlock()

	if !ok || m.now().After(entry.expiresAt) {
		return nil, ErrCacheMiss
	}
	return entry.doc, nil
}

func (m *memoryCache) Set(_ context.Context, tenantID string, doc []byte, ttl time.Duration) error {
	m.mu.Lock()
	m.entries[tenantID] = memoryEntry{doc: doc, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}
