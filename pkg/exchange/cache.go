package exchange

import (
	"sync"
	"time"

	"github.com/raykavin/screener/pkg/core"
)

// DefaultCacheTTL matches the evaluation cycle so each symbol is fetched once per cycle
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	change   core.Change
	storedAt time.Time
}

// Cache keeps computed changes per (symbol, timeframe) for a fixed TTL.
// Writers replace single keys; the last write wins.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a cache, now may be nil to use the wall clock
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}

	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     now,
	}
}

func cacheKey(symbol, timeframe string) string {
	return symbol + "--" + timeframe
}

// Get returns the cached change while it is inside the TTL window
func (c *Cache) Get(symbol, timeframe string) (core.Change, bool) {
	c.mu.RLock()
	entry, ok := c.entries[cacheKey(symbol, timeframe)]
	c.mu.RUnlock()

	if !ok || c.now().Sub(entry.storedAt) >= c.ttl {
		return core.Change{}, false
	}

	return entry.change, true
}

// Set stores a change stamped with the current time
func (c *Cache) Set(symbol, timeframe string, change core.Change) {
	c.mu.Lock()
	c.entries[cacheKey(symbol, timeframe)] = cacheEntry{change: change, storedAt: c.now()}
	c.mu.Unlock()
}

// Purge drops expired entries and returns how many were removed
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.storedAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}

	return removed
}

// Len returns the number of stored entries, expired ones included
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
