package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/bi-assistant/internal/domain"
)

func newTestCache(t *testing.T, capacity int) (*ResultCache[string], *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	c, err := New[string](capacity, time.Hour, clock)
	require.NoError(t, err)
	return c, clock
}

func TestNew_InvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		c, err := New[string](capacity, 0, nil)
		assert.ErrorIs(t, err, ErrInvalidCapacity)
		assert.Nil(t, c)
	}
}

func TestResultCache_BoundedSize(t *testing.T) {
	c, _ := newTestCache(t, 3)

	for i := 0; i < 20; i++ {
		c.Set(fmt.Sprintf("key_%d", i), "v")
		assert.LessOrEqual(t, c.Len(), 3)
	}
	assert.Equal(t, uint64(17), c.Stats().Evictions)
}

func TestResultCache_LRUEviction(t *testing.T) {
	t.Run("oldest insert is evicted", func(t *testing.T) {
		c, _ := newTestCache(t, 3)
		c.Set("a", "1")
		c.Set("b", "2")
		c.Set("c", "3")
		c.Set("d", "4")

		_, ok := c.Get("a")
		assert.False(t, ok)
		for _, k := range []string{"b", "c", "d"} {
			_, ok := c.Get(k)
			assert.True(t, ok, k)
		}
	})

	t.Run("get refreshes recency", func(t *testing.T) {
		c, _ := newTestCache(t, 3)
		c.Set("a", "1")
		c.Set("b", "2")
		c.Set("c", "3")

		_, ok := c.Get("a")
		require.True(t, ok)
		c.Set("d", "4")

		_, ok = c.Get("b")
		assert.False(t, ok, "b should be the least recently used")
		v, ok := c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, "1", v)
	})

	t.Run("overwrite refreshes recency without eviction", func(t *testing.T) {
		c, _ := newTestCache(t, 2)
		c.Set("a", "1")
		c.Set("b", "2")
		c.Set("a", "updated")
		c.Set("c", "3")

		_, ok := c.Peek("b")
		assert.False(t, ok)
		v, ok := c.Peek("a")
		assert.True(t, ok)
		assert.Equal(t, "updated", v)
		assert.Equal(t, uint64(1), c.Stats().Evictions)
	})
}

func TestResultCache_TTLExpiry(t *testing.T) {
	c, clock := newTestCache(t, 10)
	c.SetWithTTL("short", "value", time.Second)

	v, ok := c.Get("short")
	require.True(t, ok)
	assert.Equal(t, "value", v)

	clock.Advance(1100 * time.Millisecond)

	_, ok = c.Get("short")
	assert.False(t, ok)
	_, ok = c.Get("short")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Expirations)
	assert.Equal(t, 0, stats.Size)
}

func TestResultCache_NonPositiveTTLNeverExpires(t *testing.T) {
	c, clock := newTestCache(t, 10)
	c.SetWithTTL("zero", "z", 0)
	c.SetWithTTL("negative", "n", -time.Second)

	clock.Advance(365 * 24 * time.Hour)

	_, ok := c.Get("zero")
	assert.True(t, ok)
	_, ok = c.Get("negative")
	assert.True(t, ok)
	assert.Equal(t, 0, c.CleanupExpired())
}

func TestResultCache_Invalidate(t *testing.T) {
	c, _ := newTestCache(t, 10)
	c.Set("inv_1", "a")
	c.Set("inv_2", "b")
	c.Set("ord_1", "c")

	assert.Equal(t, 2, c.Invalidate("inv"))
	assert.Equal(t, 0, c.Invalidate(""))

	v, ok := c.Get("ord_1")
	assert.True(t, ok)
	assert.Equal(t, "c", v)
	assert.Equal(t, 1, c.Len())
}

func TestResultCache_InvalidateByPersona(t *testing.T) {
	c, _ := newTestCache(t, 10)
	wm := GenerateKey("show low stock", domain.PersonaWarehouseManager, nil)
	fe := GenerateKey("show low stock", domain.PersonaFieldEngineer, nil)
	c.Set(wm, "wm")
	c.Set(fe, "fe")

	assert.Equal(t, 1, c.Invalidate(KeyPrefix(domain.PersonaWarehouseManager)))
	_, ok := c.Peek(fe)
	assert.True(t, ok)
}

func TestResultCache_ClearKeepsCounters(t *testing.T) {
	c, _ := newTestCache(t, 10)
	c.Set("a", "1")
	c.Get("a")
	c.Get("missing")

	c.Clear()

	stats := c.Stats()
	assert.Equal(t, 0, stats.Size)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)

	c.ResetStats()
	stats = c.Stats()
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
	assert.Zero(t, stats.HitRate)
}

func TestResultCache_CleanupExpired(t *testing.T) {
	c, clock := newTestCache(t, 10)
	c.SetWithTTL("a", "1", time.Second)
	c.SetWithTTL("b", "2", time.Second)
	c.SetWithTTL("c", "3", time.Minute)
	c.SetWithTTL("d", "4", 0)

	clock.Advance(2 * time.Second)

	assert.Equal(t, 2, c.CleanupExpired())
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, uint64(2), c.Stats().Expirations)
	assert.Zero(t, c.Stats().Misses, "sweeping is not read traffic")
}

func TestResultCache_PeekHasNoSideEffects(t *testing.T) {
	c, _ := newTestCache(t, 2)
	c.Set("a", "1")
	c.Set("b", "2")

	_, ok := c.Peek("a")
	require.True(t, ok)
	c.Set("c", "3")

	_, ok = c.Peek("a")
	assert.False(t, ok, "peek must not refresh recency")
	assert.Zero(t, c.Stats().TotalRequests)
}

func TestResultCache_Delete(t *testing.T) {
	c, _ := newTestCache(t, 2)
	c.Set("a", "1")

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
}

func TestResultCache_Stats(t *testing.T) {
	c, _ := newTestCache(t, 4)
	assert.Zero(t, c.Stats().HitRate)

	c.Set("a", "1")
	c.Get("a")
	c.Get("a")
	c.Get("a")
	c.Get("b")

	stats := c.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 4, stats.Capacity)
	assert.Equal(t, uint64(3), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(4), stats.TotalRequests)
	assert.InDelta(t, 75.0, stats.HitRate, 0.001)
}

func TestResultCache_LowStockScenario(t *testing.T) {
	c, _ := newTestCache(t, 10)
	key := GenerateKey("show low stock", domain.PersonaWarehouseManager, nil)

	_, ok := c.Get(key)
	require.False(t, ok)
	c.Set(key, "Widget A: 5 units")

	v, ok := c.Get(GenerateKey("show low stock", domain.PersonaWarehouseManager, nil))
	require.True(t, ok)
	assert.Equal(t, "Widget A: 5 units", v)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 50.0, stats.HitRate)
}

func TestResultCache_ConcurrentAccess(t *testing.T) {
	c, _ := newTestCache(t, 50)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("w%d_%d", w, i%75)
				c.Set(key, key)
				if v, ok := c.Get(key); ok {
					assert.Equal(t, key, v)
				}
				if i%50 == 0 {
					c.CleanupExpired()
					c.Invalidate(fmt.Sprintf("w%d_1", w))
				}
			}
		}(w)
	}
	wg.Wait()

	stats := c.Stats()
	assert.LessOrEqual(t, stats.Size, 50)
	assert.Equal(t, uint64(8*200), stats.TotalRequests)
}
