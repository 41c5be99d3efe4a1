package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// QueryCache keeps recently embedded query vectors so repeated searches do
// not call the provider again. Entries expire after ttl; the least recently
// used entry is evicted once maxSize is reached.
type QueryCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List // front is most recently used
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	key       string
	vector    []float32
	timestamp time.Time
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*list.Element, maxSize),
		lru:     list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(model, query string) string {
	data := make([]byte, 0, len(model)+len(query)+1)
	data = append(data, model...)
	data = append(data, 0)
	data = append(data, query...)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

// Get returns the cached vector for query under model. A nil cache never hits.
func (c *QueryCache) Get(model, query string) ([]float32, bool) {
	if c == nil {
		return nil, false
	}

	key := cacheKey(model, query)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if c.now().Sub(entry.timestamp) > c.ttl {
		c.lru.Remove(elem)
		delete(c.entries, key)
		return nil, false
	}

	c.lru.MoveToFront(elem)
	return entry.vector, true
}

func (c *QueryCache) Put(model, query string, vector []float32) {
	if c == nil {
		return
	}

	key := cacheKey(model, query)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.vector = vector
		entry.timestamp = c.now()
		c.lru.MoveToFront(elem)
		return
	}

	if c.lru.Len() >= c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}

	c.entries[key] = c.lru.PushFront(&cacheEntry{
		key:       key,
		vector:    vector,
		timestamp: c.now(),
	})
}

func (c *QueryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
