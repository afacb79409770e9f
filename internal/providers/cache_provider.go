package providers

import (
	"math"

	"github.com/coocood/freecache"

	"juju/internal/structures"
)

// CacheProviderInterface is the byte store behind the statistics cache.
type CacheProviderInterface interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Del(key string)
	Clear()
}

// CacheProvider keeps encoded aggregates in a freecache segment store.
// Entries expire after the configured TTL rounded up to whole seconds.
type CacheProvider struct {
	cache  *freecache.Cache
	ttl    int
	logger Logger
}

func NewCacheProvider(conf *structures.Config, logger Logger) CacheProviderInterface {
	if !conf.Cache.Enabled || conf.Cache.Size <= 0 {
		logger.Infof(TypeCache, "Aggregate cache disabled, every read recomputes")
		return &noopCache{}
	}

	ttl := max(int(math.Ceil(conf.CacheTTL().Seconds())), 1)
	logger.Infof(TypeCache, "Aggregate cache: %dMB, entries expire after %ds", conf.Cache.Size, ttl)

	return &CacheProvider{
		cache:  freecache.NewCache(conf.Cache.Size * 1024 * 1024),
		ttl:    ttl,
		logger: logger,
	}
}

func (c *CacheProvider) Get(key string) ([]byte, bool) {
	val, err := c.cache.Get([]byte(key))
	if err != nil {
		return nil, false
	}
	return val, true
}

func (c *CacheProvider) Set(key string, value []byte) {
	if err := c.cache.Set([]byte(key), value, c.ttl); err != nil {
		c.logger.Warnf(TypeCache, "Unable to cache %s (%d bytes): %v", key, len(value), err)
	}
}

func (c *CacheProvider) Del(key string) {
	c.cache.Del([]byte(key))
}

func (c *CacheProvider) Clear() {
	c.cache.Clear()
}

type noopCache struct{}

func (n *noopCache) Get(_ string) ([]byte, bool) { return nil, false }
func (n *noopCache) Set(_ string, _ []byte)      {}
func (n *noopCache) Del(_ string)                {}
func (n *noopCache) Clear()                      {}
