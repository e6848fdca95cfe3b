package schema

import (
	"sync"
	"time"

	"github.com/mesh-intelligence/facet/pkg/types"
)

// DefaultTTL is how long a cached requisite set stays valid.
const DefaultTTL = 60 * time.Second

type cacheKey struct {
	db     string
	typeID int64
}

type cacheEntry struct {
	requisites []types.Requisite
	expires    time.Time
}

// Cache memoizes parsed requisite sets per (tenant, type). Entries
// expire after the TTL; writes through the schema service invalidate
// the affected type eagerly so the TTL only covers out-of-band edits.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[cacheKey]cacheEntry
}

// NewCache builds a cache with the given TTL; non-positive falls back
// to DefaultTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[cacheKey]cacheEntry),
	}
}

// Get returns the cached requisite set, or false on a miss or a stale
// entry.
func (c *Cache) Get(db string, typeID int64) ([]types.Requisite, bool) {
	c.mu.RLock()
	entry, ok := c.entries[cacheKey{db, typeID}]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.expires) {
		return nil, false
	}
	return entry.requisites, true
}

// Put stores a requisite set for the type.
func (c *Cache) Put(db string, typeID int64, requisites []types.Requisite) {
	c.mu.Lock()
	c.entries[cacheKey{db, typeID}] = cacheEntry{
		requisites: requisites,
		expires:    c.now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// Invalidate drops the entry for one type.
func (c *Cache) Invalidate(db string, typeID int64) {
	c.mu.Lock()
	delete(c.entries, cacheKey{db, typeID})
	c.mu.Unlock()
}

// Reset drops every entry.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = make(map[cacheKey]cacheEntry)
	c.mu.Unlock()
}
