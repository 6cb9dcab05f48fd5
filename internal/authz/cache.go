package authz

import (
	"sync"
	"time"
)

// DefaultCacheTTL bounds how long a resolved user snapshot may be served
// without refetching.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	snap     *UserSnapshot
	cachedAt time.Time
}

// snapshotCache is the only shared mutable state in the engine. An entry
// older than the TTL is treated exactly like a miss; an explicit
// invalidation always wins over a concurrent repopulation, so a revoke is
// effective the moment the administrative call returns.
type snapshotCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	clock Clock

	entries map[string]cacheEntry
	// generations rise on every invalidation (per user) and on every
	// clear (epoch). A put is dropped when the generation observed
	// before the load no longer matches, so stale data is never
	// resurrected across an invalidate boundary.
	gens  map[string]uint64
	epoch uint64
}

func newSnapshotCache(ttl time.Duration, clock Clock) *snapshotCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &snapshotCache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]cacheEntry),
		gens:    make(map[string]uint64),
	}
}

// get returns the cached snapshot, or nil on miss or expiry.
func (c *snapshotCache) get(userID string) *UserSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[userID]
	if !ok {
		return nil
	}
	if c.clock().Sub(entry.cachedAt) >= c.ttl {
		delete(c.entries, userID)
		return nil
	}
	return entry.snap
}

// generation reads the invalidation generation for a user. Callers record
// it before loading from storage and hand it back to put.
func (c *snapshotCache) generation(userID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch + c.gens[userID]
}

// put stores a freshly loaded snapshot unless an invalidation happened
// since gen was observed.
func (c *snapshotCache) put(userID string, snap *UserSnapshot, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch+c.gens[userID] != gen {
		return
	}
	c.entries[userID] = cacheEntry{snap: snap, cachedAt: c.clock()}
}

// invalidate drops a user's entry and bumps its generation. Must be called
// synchronously by every administrative mutation to that user's role or
// custom permissions.
func (c *snapshotCache) invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	c.gens[userID]++
}

// clear drops every entry. Role and binding changes are rare, so a full
// flush is the conservative invalidation for catalog mutations.
func (c *snapshotCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	c.epoch++
}
