package internal

import (
	"time"

	"github.com/coocood/freecache"
)

// Cache stores small upstream responses that are expensive in API quota
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
}

// FreeCache is a Cache backed by a fixed-size freecache arena
type FreeCache struct {
	cache   *freecache.Cache
	metrics Metrics
}

// NewCache returns a freecache-backed Cache, or a noop cache when sizeMB is not positive
func NewCache(sizeMB int, metrics Metrics) Cache {
	if sizeMB <= 0 {
		return noopCache{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &FreeCache{
		cache:   freecache.NewCache(sizeMB * 1024 * 1024),
		metrics: metrics,
	}
}

func (c *FreeCache) Get(key string) ([]byte, bool) {
	val, err := c.cache.Get([]byte(key))
	if err != nil {
		c.metrics.IncCacheMiss()
		return nil, false
	}
	c.metrics.IncCacheHit()
	return val, true
}

func (c *FreeCache) Set(key string, value []byte, ttl time.Duration) {
	_ = c.cache.Set([]byte(key), value, max(int(ttl.Seconds()), 1))
}

type noopCache struct{}

func (noopCache) Get(string) ([]byte, bool)         { return nil, false }
func (noopCache) Set(string, []byte, time.Duration) {}
