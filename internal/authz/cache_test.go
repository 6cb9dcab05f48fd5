package authz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCache(ttl time.Duration) (*snapshotCache, *manualClock) {
	clock := &manualClock{now: time.Date(2025, time.March, 4, 10, 0, 0, 0, time.UTC)}
	return newSnapshotCache(ttl, clock.Now), clock
}

func TestCachePutAndGet(t *testing.T) {
	cache, _ := newTestCache(time.Minute)
	snap := &UserSnapshot{ID: "u1", IsActive: true}

	gen := cache.generation("u1")
	cache.put("u1", snap, gen)

	require.Same(t, snap, cache.get("u1"))
}

func TestCacheExpiryBehavesLikeMiss(t *testing.T) {
	cache, clock := newTestCache(time.Minute)
	gen := cache.generation("u1")
	cache.put("u1", &UserSnapshot{ID: "u1"}, gen)

	clock.Advance(59 * time.Second)
	require.NotNil(t, cache.get("u1"))

	clock.Advance(time.Second)
	require.Nil(t, cache.get("u1"))
}

func TestCacheDefaultTTL(t *testing.T) {
	cache, clock := newTestCache(0)
	gen := cache.generation("u1")
	cache.put("u1", &UserSnapshot{ID: "u1"}, gen)

	clock.Advance(DefaultCacheTTL - time.Second)
	require.NotNil(t, cache.get("u1"))
	clock.Advance(2 * time.Second)
	require.Nil(t, cache.get("u1"))
}

func TestCacheInvalidateDropsEntry(t *testing.T) {
	cache, _ := newTestCache(time.Minute)
	gen := cache.generation("u1")
	cache.put("u1", &UserSnapshot{ID: "u1"}, gen)

	cache.invalidate("u1")
	require.Nil(t, cache.get("u1"))
}

func TestCacheInvalidationWinsOverStalePut(t *testing.T) {
	// A load that started before an invalidate must not repopulate the
	// cache with pre-invalidate data.
	cache, _ := newTestCache(time.Minute)

	gen := cache.generation("u1")
	cache.invalidate("u1")
	cache.put("u1", &UserSnapshot{ID: "u1", CustomPermissions: map[string]bool{"p": true}}, gen)

	require.Nil(t, cache.get("u1"))

	// A put with the post-invalidate generation lands normally.
	gen = cache.generation("u1")
	fresh := &UserSnapshot{ID: "u1"}
	cache.put("u1", fresh, gen)
	require.Same(t, fresh, cache.get("u1"))
}

func TestCacheClearBumpsEpoch(t *testing.T) {
	cache, _ := newTestCache(time.Minute)
	genA := cache.generation("a")
	genB := cache.generation("b")
	cache.put("a", &UserSnapshot{ID: "a"}, genA)
	cache.put("b", &UserSnapshot{ID: "b"}, genB)

	cache.clear()

	require.Nil(t, cache.get("a"))
	require.Nil(t, cache.get("b"))

	// Pre-clear generations are stale after the epoch bump.
	cache.put("a", &UserSnapshot{ID: "a"}, genA)
	require.Nil(t, cache.get("a"))
}
