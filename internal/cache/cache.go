package cache

import (
	"strings"
	"sync"
	"time"
)

type entry struct {
	value     interface{}
	storedAt  time.Time
	expiresAt time.Time
}

// Cache is a TTL key/value store bounded by maxEntries. When the table
// overflows, the oldest-inserted key is evicted (insertion order, not LRU —
// a Get does not refresh a key's position). Expired entries act as misses
// and are purged lazily on read.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	entries    map[string]entry
	order      []string

	now func() time.Time
}

func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 500
	}
	return &Cache{
		maxEntries: maxEntries,
		entries:    make(map[string]entry),
		now:        time.Now,
	}
}

// Key builds a cache key namespaced by store and platform, so adapter
// instances for different stores can never read each other's entries.
func Key(storeID, platform string, parts ...string) string {
	all := append([]string{storeID, platform}, parts...)
	return strings.Join(all, ":")
}

func (c *Cache) Get(key string) (interface{}, bool) {
	return c.GetFresh(key, 0)
}

// GetFresh is Get with a per-read freshness bound: an entry stored longer
// ago than maxAge is a miss for this read. The entry is not purged — it is
// still valid for readers with a laxer bound. Zero maxAge means any
// unexpired entry qualifies.
func (c *Cache) GetFresh(key string, maxAge time.Duration) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	now := c.now()
	if now.After(e.expiresAt) {
		c.deleteLocked(key)
		return nil, false
	}
	if maxAge > 0 && now.Sub(e.storedAt) > maxAge {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		if len(c.entries) >= c.maxEntries && len(c.order) > 0 {
			c.deleteLocked(c.order[0])
		}
		c.order = append(c.order, key)
	}
	now := c.now()
	c.entries[key] = entry{value: value, storedAt: now, expiresAt: now.Add(ttl)}
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteLocked(key)
}

// DeletePrefix removes every entry whose key starts with prefix. Used for
// webhook-driven invalidation of a store's product or customer reads.
func (c *Cache) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.deleteLocked(key)
			removed++
		}
	}
	return removed
}

func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
	c.order = nil
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) deleteLocked(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
