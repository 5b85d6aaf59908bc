package rendercache

import (
	"sync"

	"github.com/wilbur182/pixelterm/internal/catalog"
)

// MemoryRadius is how far from the cursor an entry may sit and still be held
// in memory.
const MemoryRadius = 1

// MemoryCache maps catalog entries to rendered text. Residency is bounded by
// EvictOutsideWindow rather than by a capacity.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[catalog.Key]string
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[catalog.Key]string)}
}

// Get returns the rendered text for key.
func (c *MemoryCache) Get(key catalog.Key) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	text, ok := c.entries[key]
	return text, ok
}

// Set stores rendered text for key.
func (c *MemoryCache) Set(key catalog.Key, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = text
}

// Delete removes key from the cache.
func (c *MemoryCache) Delete(key catalog.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear drops every entry.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[catalog.Key]string)
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// EvictOutsideWindow removes every entry whose catalog index is more than
// MemoryRadius away from cursor. Entries no longer in the catalog are removed
// too. It returns the number of evicted entries.
func (c *MemoryCache) EvictOutsideWindow(cat *catalog.Catalog, cursor int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for key := range c.entries {
		i, ok := cat.IndexOf(key)
		if ok && catalog.Within(i, cursor, MemoryRadius) {
			continue
		}
		delete(c.entries, key)
		evicted++
	}
	return evicted
}
