package weights

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"slices"
	"sync"

	"github.com/couchcryptid/climate-ecs-etl/internal/domain"
	"github.com/couchcryptid/climate-ecs-etl/internal/observability"
)

// Cache memoizes normalized latitude weights per grid. Every message for a
// model arrives on the same grid, so the cosine weights are computed once
// per model instead of once per message.
type Cache struct {
	compute domain.WeightFunc
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCache creates a cache around a weight function. A nil compute uses
// domain.LatitudeWeights; metrics may be nil.
func NewCache(compute domain.WeightFunc, maxEntries int, metrics *observability.Metrics) *Cache {
	if compute == nil {
		compute = domain.LatitudeWeights
	}
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Cache{
		compute: compute,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

// Weights returns the weights for lat, computing and storing them on a miss.
// Callers get their own copy. Errors are not cached.
func (c *Cache) Weights(lat []float64) ([]float64, error) {
	key := gridKey(lat)
	if w, ok := c.cache.get(key); ok {
		c.observe("hit")
		return slices.Clone(w), nil
	}
	c.observe("miss")

	w, err := c.compute(lat)
	if err != nil {
		return nil, err
	}
	c.cache.put(key, slices.Clone(w))
	return w, nil
}

// Len returns the number of cached grids.
func (c *Cache) Len() int {
	return c.cache.len()
}

func (c *Cache) observe(result string) {
	if c.metrics != nil {
		c.metrics.WeightCache.WithLabelValues(result).Inc()
	}
}

// gridKey hashes the exact bit patterns of the coordinates, so grids that
// differ in the last ulp get separate entries.
func gridKey(lat []float64) string {
	h := sha256.New()
	var buf [8]byte
	for _, v := range lat {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// lruCache is a simple thread-safe LRU cache for weight vectors.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value []float64
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
