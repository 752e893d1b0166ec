package weights

import (
	"errors"
	"sync"
	"testing"

	"github.com/couchcryptid/climate-ecs-etl/internal/domain"
	"github.com/couchcryptid/climate-ecs-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- counting weight function for cache tests ---

type countingWeights struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingWeights) compute(lat []float64) ([]float64, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return domain.LatitudeWeights(lat)
}

// --- Cache tests ---

func TestCache_HitSkipsCompute(t *testing.T) {
	inner := &countingWeights{}
	metrics := observability.NewMetricsForTesting()
	cache := NewCache(inner.compute, 10, metrics)
	lat := []float64{-60, 0, 60}

	w1, err := cache.Weights(lat)
	require.NoError(t, err)
	w2, err := cache.Weights([]float64{-60, 0, 60})
	require.NoError(t, err)

	assert.Equal(t, w1, w2)
	assert.Equal(t, 1, inner.calls, "should only compute once")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WeightCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WeightCache.WithLabelValues("miss")))
}

func TestCache_DifferentGridsMiss(t *testing.T) {
	inner := &countingWeights{}
	cache := NewCache(inner.compute, 10, nil)

	_, _ = cache.Weights([]float64{-45, 45})
	_, _ = cache.Weights([]float64{-45, 0, 45})

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 2, cache.Len())
}

func TestCache_ReturnsCopies(t *testing.T) {
	cache := NewCache(nil, 10, nil)
	lat := []float64{-30, 10, 70}

	w1, err := cache.Weights(lat)
	require.NoError(t, err)
	w1[0] = 1000

	w2, err := cache.Weights(lat)
	require.NoError(t, err)
	assert.NotEqual(t, 1000.0, w2[0], "caller mutation must not leak into the cache")
}

func TestCache_ErrorsNotCached(t *testing.T) {
	inner := &countingWeights{err: errors.New("boom")}
	cache := NewCache(inner.compute, 10, nil)

	_, err := cache.Weights([]float64{0})
	require.Error(t, err)
	_, err = cache.Weights([]float64{0})
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 0, cache.Len())
}

func TestCache_AsReducerWeights(t *testing.T) {
	cache := NewCache(nil, 4, nil)
	f, err := domain.NewField("tas", []domain.Axis{
		{Name: "time", Coords: []float64{0}},
		{Name: "lat", Coords: []float64{-60, 0, 60}},
	}, []float64{1, 2, 3})
	require.NoError(t, err)

	cached, err := domain.Reducer{Weights: cache.Weights}.Reduce(f)
	require.NoError(t, err)
	plain, err := domain.GlobalMean(f, "time")
	require.NoError(t, err)

	assert.Equal(t, plain.Values, cached.Values)
	assert.Equal(t, 1, cache.Len())
}

func TestCache_Concurrent(t *testing.T) {
	cache := NewCache(nil, 2, nil)
	grids := [][]float64{{-10, 10}, {-20, 20, 40}, {0, 30, 60, 89}}

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Weights(grids[i%len(grids)])
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, cache.Len(), 2)
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3)

	c.put("a", []float64{1})
	c.put("b", []float64{2})

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, []float64{1}, result)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", []float64{1})
	c.put("b", []float64{2})
	c.put("c", []float64{3}) // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	result, ok := c.get("b")
	assert.True(t, ok)
	assert.Equal(t, []float64{2}, result)

	result, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, []float64{3}, result)
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", []float64{1})
	c.put("b", []float64{2})

	// Access "a" to promote it
	c.get("a")

	// Insert "c": evicts "b" (LRU), not "a"
	c.put("c", []float64{3})

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", []float64{1})
	c.put("a", []float64{2})

	result, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, []float64{2}, result)
}

func TestGridKey(t *testing.T) {
	assert.Equal(t, gridKey([]float64{1, 2}), gridKey([]float64{1, 2}))
	assert.NotEqual(t, gridKey([]float64{1, 2}), gridKey([]float64{2, 1}))
	assert.NotEqual(t, gridKey([]float64{0}), gridKey([]float64{0, 0}))
}
