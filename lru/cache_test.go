package lru

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPut(t *testing.T) {
	c := New[string, int](2)

	c.Put("a", 1)
	c.Put("b", 2)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = c.Get("b")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](2)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a") // promote "a", leaving "b" least recently used

	key, val, evicted := c.Put("c", 3)
	require.True(t, evicted)
	assert.Equal(t, "b", key)
	assert.Equal(t, 2, val)

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestUpdateDoesNotEvict(t *testing.T) {
	c := New[string, int](2)

	c.Put("a", 1)
	c.Put("b", 2)

	_, _, evicted := c.Put("a", 10)
	assert.False(t, evicted)

	v, _ := c.Get("a")
	assert.Equal(t, 10, v)
	assert.Equal(t, 2, c.Len())
}

func TestDelete(t *testing.T) {
	c := New[string, int](2)

	c.Put("a", 1)
	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	assert.Equal(t, 0, c.Len())
}

func TestPeekDoesNotPromote(t *testing.T) {
	c := New[string, int](2)

	c.Put("a", 1)
	c.Put("b", 2)

	v, ok := c.Peek("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	// "a" stays least recently used, so the next insert drops it.
	c.Put("c", 3)
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestKeysOrderedByRecency(t *testing.T) {
	c := New[string, int](3)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)
	c.Get("a")

	assert.Equal(t, []string{"a", "c", "b"}, c.Keys())
}

func TestClear(t *testing.T) {
	c := New[string, int](3)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Clear()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCapacityOne(t *testing.T) {
	c := New[string, int](1)

	c.Put("a", 1)
	c.Put("b", 2)

	_, ok := c.Get("a")
	assert.False(t, ok)
	v, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestZeroCapacityPanics(t *testing.T) {
	assert.Panics(t, func() { New[string, int](0) })
}

func TestDefaultTTLExpiresEntries(t *testing.T) {
	now := time.Now()
	c := New[string, int](10, WithTTL[string, int](100*time.Millisecond))
	c.now = func() time.Time { return now }

	c.Put("a", 1)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.now = func() time.Time { return now.Add(200 * time.Millisecond) }
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestPerEntryTTL(t *testing.T) {
	now := time.Now()
	c := New[string, int](10)
	c.now = func() time.Time { return now }

	c.PutWithTTL("short", 1, 50*time.Millisecond)
	c.PutWithTTL("long", 2, 500*time.Millisecond)
	c.Put("forever", 3)

	c.now = func() time.Time { return now.Add(100 * time.Millisecond) }

	_, ok := c.Get("short")
	assert.False(t, ok)
	v, ok := c.Get("long")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	v, ok = c.Get("forever")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestUpdateResetsDeadline(t *testing.T) {
	now := time.Now()
	c := New[string, int](10, WithTTL[string, int](100*time.Millisecond))
	c.now = func() time.Time { return now }

	c.Put("a", 1)

	c.now = func() time.Time { return now.Add(80 * time.Millisecond) }
	c.Put("a", 2)

	// 150ms after the first Put the original deadline has passed, but the
	// update moved it.
	c.now = func() time.Time { return now.Add(150 * time.Millisecond) }
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestPeekDropsExpired(t *testing.T) {
	now := time.Now()
	c := New[string, int](10, WithTTL[string, int](100*time.Millisecond))
	c.now = func() time.Time { return now }

	c.Put("a", 1)
	c.now = func() time.Time { return now.Add(200 * time.Millisecond) }

	_, ok := c.Peek("a")
	assert.False(t, ok)
}

func TestKeysSkipExpired(t *testing.T) {
	now := time.Now()
	c := New[string, int](10)
	c.now = func() time.Time { return now }

	c.PutWithTTL("stale", 1, 50*time.Millisecond)
	c.Put("alive", 2)

	c.now = func() time.Time { return now.Add(100 * time.Millisecond) }
	assert.Equal(t, []string{"alive"}, c.Keys())
}

func TestOnEvictFiresOnCapacityEviction(t *testing.T) {
	var gotKey string
	var gotVal int
	c := New[string, int](2, WithOnEvict[string, int](func(k string, v int) {
		gotKey, gotVal = k, v
	}))

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	assert.Equal(t, "a", gotKey)
	assert.Equal(t, 1, gotVal)
}

func TestOnEvictFiresOnExpiry(t *testing.T) {
	now := time.Now()
	var gotKey string
	c := New[string, int](10,
		WithTTL[string, int](100*time.Millisecond),
		WithOnEvict[string, int](func(k string, v int) { gotKey = k }),
	)
	c.now = func() time.Time { return now }

	c.Put("a", 1)
	c.now = func() time.Time { return now.Add(200 * time.Millisecond) }
	c.Get("a")

	assert.Equal(t, "a", gotKey)
}

func TestMetricsCounters(t *testing.T) {
	c := New[string, int](2)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a")
	c.Get("b")
	c.Get("missing")
	c.Put("c", 3)

	m := c.Metrics()
	assert.Equal(t, uint64(2), m.Hits)
	assert.Equal(t, uint64(1), m.Misses)
	assert.Equal(t, uint64(1), m.Evictions)
	assert.InDelta(t, 2.0/3.0, m.HitRate(), 1e-9)
}

func TestMetricsExpirationCountsAsMiss(t *testing.T) {
	now := time.Now()
	c := New[string, int](10, WithTTL[string, int](100*time.Millisecond))
	c.now = func() time.Time { return now }

	c.Put("a", 1)
	c.now = func() time.Time { return now.Add(200 * time.Millisecond) }
	c.Get("a")

	m := c.Metrics()
	assert.Equal(t, uint64(1), m.Expirations)
	assert.Equal(t, uint64(1), m.Misses)
}

func TestHitRateEmptyCache(t *testing.T) {
	c := New[string, int](2)
	assert.Zero(t, c.Metrics().HitRate())
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int, int](100)
	var wg sync.WaitGroup

	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				c.Put(offset*1000+i, i)
				c.Get(offset*1000 + i)
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 100)
}

func BenchmarkPut(b *testing.B) {
	c := New[int, int](1000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Put(i, i)
	}
}

func BenchmarkGetHit(b *testing.B) {
	c := New[int, int](1000)
	for i := 0; i < 1000; i++ {
		c.Put(i, i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(i % 1000)
	}
}
