// ABOUTME: Tests for the geocode memo cache.
// ABOUTME: Validates exact-key lookups, eviction, failed loads and concurrency safety.

package geocache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetMiss(t *testing.T) {
	cache := New[string](10)

	_, ok := cache.Get("Tokyo")
	assert.False(t, ok)
}

func TestCache_ExactKeysOnly(t *testing.T) {
	cache := New[string](10)
	cache.Put("Tokyo", "tokyo-result")

	v, ok := cache.Get("Tokyo")
	require.True(t, ok)
	assert.Equal(t, "tokyo-result", v)

	// Variations are distinct keys
	_, ok = cache.Get("tokyo")
	assert.False(t, ok)
	_, ok = cache.Get(" Tokyo")
	assert.False(t, ok)
}

func TestCache_FirstWriterWins(t *testing.T) {
	cache := New[int](10)

	assert.Equal(t, 1, cache.Put("k", 1))
	assert.Equal(t, 1, cache.Put("k", 2))

	v, _ := cache.Get("k")
	assert.Equal(t, 1, v)
}

func TestCache_EvictsOldest(t *testing.T) {
	cache := New[int](3)
	cache.Put("a", 1)
	cache.Put("b", 2)
	cache.Put("c", 3)
	cache.Put("d", 4)

	assert.Equal(t, 3, cache.Len())
	_, ok := cache.Get("a")
	assert.False(t, ok, "oldest entry should be evicted")
	_, ok = cache.Get("d")
	assert.True(t, ok)
}

func TestCache_DefaultSize(t *testing.T) {
	cache := New[int](0)
	assert.Equal(t, DefaultMaxSize, cache.maxSize)
}

func TestCache_GetOrLoad(t *testing.T) {
	cache := New[string](10)
	var calls int

	load := func() (string, error) {
		calls++
		return "loaded", nil
	}

	v, err := cache.GetOrLoad("Paris", load)
	require.NoError(t, err)
	assert.Equal(t, "loaded", v)

	v, err = cache.GetOrLoad("Paris", load)
	require.NoError(t, err)
	assert.Equal(t, "loaded", v)
	assert.Equal(t, 1, calls)

	hits, misses := cache.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestCache_GetOrLoadDoesNotCacheErrors(t *testing.T) {
	cache := New[string](10)
	boom := errors.New("boom")

	_, err := cache.GetOrLoad("Nowhere", func() (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, cache.Len())
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache := New[int](50)
	var loads atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("city-%d", n%20)
			_, err := cache.GetOrLoad(key, func() (int, error) {
				loads.Add(1)
				return n % 20, nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, cache.Len())
	assert.GreaterOrEqual(t, loads.Load(), int64(20))
	for i := 0; i < 20; i++ {
		v, ok := cache.Get(fmt.Sprintf("city-%d", i))
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
}
