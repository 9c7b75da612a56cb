package rag

import (
	"context"
	"sync"
	"time"
)

// DocumentCache memoizes fused document sets by normalized query. A hit
// short-circuits both retrieval channels and fusion; the cached set is
// returned unchanged. Implementations enforce their own expiry and must be
// safe for concurrent use.
type DocumentCache interface {
	Get(ctx context.Context, key string) ([]Document, bool)
	Put(ctx context.Context, key string, docs []Document, ttl time.Duration)
}

type memoryCacheEntry struct {
	docs      []Document
	expiresAt time.Time
}

// MemoryCache is a process-local DocumentCache with per-entry TTL. Entries
// are evicted lazily on read.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryCacheEntry)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]Document, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return entry.docs, true
}

func (c *MemoryCache) Put(_ context.Context, key string, docs []Document, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = memoryCacheEntry{docs: docs, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}
