// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fetch

import (
	"os"
	"sync"
	"time"
)

// =============================================================================
// CONTENT CACHE
// =============================================================================

// Cache is an LRU cache of fetched content. File entries are invalidated when
// the file's modification time moves forward; every entry expires after ttl
// (zero disables expiry).
type Cache struct {
	mu          sync.Mutex
	entries     map[string]*cacheEntry
	accessOrder []string
	maxEntries  int
	ttl         time.Duration
	now         func() time.Time

	hits   int
	misses int
}

type cacheEntry struct {
	content  Content
	path     string // non-empty for file entries
	modTime  time.Time
	cachedAt time.Time
}

// CacheStats holds cache statistics.
type CacheStats struct {
	Hits       int
	Misses     int
	EntryCount int
	HitRate    float64
}

// NewCache creates a cache holding at most maxEntries items.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = 64
	}
	return &Cache{
		entries:     make(map[string]*cacheEntry),
		accessOrder: make([]string, 0, maxEntries),
		maxEntries:  maxEntries,
		ttl:         ttl,
		now:         time.Now,
	}
}

// Get returns a cached copy of the content for key.
func (c *Cache) Get(key string) (*Content, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	if c.ttl > 0 && c.now().Sub(entry.cachedAt) > c.ttl {
		c.removeLocked(key)
		c.misses++
		return nil, false
	}

	if entry.path != "" {
		info, err := os.Stat(entry.path)
		if err != nil || info.ModTime().After(entry.modTime) {
			c.removeLocked(key)
			c.misses++
			return nil, false
		}
	}

	c.touchLocked(key)
	c.hits++
	content := entry.content
	content.Data = append([]byte(nil), entry.content.Data...)
	return &content, true
}

// Put stores content under key. For files, path and modTime enable
// invalidation on change.
func (c *Cache) Put(key string, content *Content, path string, modTime time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.removeLocked(key)
	}
	for len(c.entries) >= c.maxEntries && len(c.accessOrder) > 0 {
		c.removeLocked(c.accessOrder[0])
	}

	stored := *content
	stored.Data = append([]byte(nil), content.Data...)
	c.entries[key] = &cacheEntry{
		content:  stored,
		path:     path,
		modTime:  modTime,
		cachedAt: c.now(),
	}
	c.accessOrder = append(c.accessOrder, key)
}

// Invalidate removes key from the cache.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.accessOrder = c.accessOrder[:0]
}

// Stats returns cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	hitRate := 0.0
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return CacheStats{
		Hits:       c.hits,
		Misses:     c.misses,
		EntryCount: len(c.entries),
		HitRate:    hitRate,
	}
}

func (c *Cache) removeLocked(key string) {
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	for i, k := range c.accessOrder {
		if k == key {
			c.accessOrder = append(c.accessOrder[:i], c.accessOrder[i+1:]...)
			break
		}
	}
}

func (c *Cache) touchLocked(key string) {
	for i, k := range c.accessOrder {
		if k == key {
			c.accessOrder = append(c.accessOrder[:i], c.accessOrder[i+1:]...)
			break
		}
	}
	c.accessOrder = append(c.accessOrder, key)
}
