package providers

import "juju/internal/structures"

// instrumentedCache counts aggregate hits, misses and invalidations.
type instrumentedCache struct {
	CacheProviderInterface
	metrics MetricsProviderInterface
}

func (c *instrumentedCache) Get(key string) ([]byte, bool) {
	val, ok := c.CacheProviderInterface.Get(key)
	if ok {
		c.metrics.IncCacheHits()
	} else {
		c.metrics.IncCacheMisses()
	}
	return val, ok
}

func (c *instrumentedCache) Del(key string) {
	c.metrics.IncCacheInvalidations()
	c.CacheProviderInterface.Del(key)
}

func (c *instrumentedCache) Clear() {
	c.metrics.IncCacheInvalidations()
	c.CacheProviderInterface.Clear()
}

// NewInstrumentedCacheProvider wraps the aggregate cache with metrics. A
// disabled cache is returned bare so it does not report a miss per read.
func NewInstrumentedCacheProvider(conf *structures.Config, logger Logger, metrics MetricsProviderInterface) CacheProviderInterface {
	inner := NewCacheProvider(conf, logger)
	if _, disabled := inner.(*noopCache); disabled {
		return inner
	}
	return &instrumentedCache{CacheProviderInterface: inner, metrics: metrics}
}
