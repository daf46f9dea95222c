package cache

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

type ttlCacheEntry[T any] struct {
	data  T
	valid bool
}

type ttlCache[T any] struct {
	cache *ttlcache.Cache[string, ttlCacheEntry[T]]
}

func (c *ttlCache[T]) getOrClaim(key string) hitResult[T] {
	invalid := ttlCacheEntry[T]{valid: false}
	item, existed := c.cache.GetOrSet(key, invalid)

	return hitResult[T]{
		data:    item.Value().data,
		valid:   item.Value().valid,
		claimed: !existed,
	}
}

func (c *ttlCache[T]) set(key string, data T) {
	c.cache.Set(key, ttlCacheEntry[T]{data: data, valid: true}, ttlcache.DefaultTTL)
}

func (c *ttlCache[T]) delete(key string) {
	c.cache.Delete(key)
}

func (c *ttlCache[T]) wait() {
	time.Sleep(50 * time.Millisecond)
}

// NewTTLCache returns a cache whose entries expire ttl after being set, and a
// function stopping the expiry loop.
func NewTTLCache[T any](ttl time.Duration) (Cache[T], func()) {
	cache := ttlcache.New[string, ttlCacheEntry[T]](
		ttlcache.WithTTL[string, ttlCacheEntry[T]](ttl),
		ttlcache.WithDisableTouchOnHit[string, ttlCacheEntry[T]](),
	)
	go cache.Start()
	return &ttlCache[T]{cache: cache}, cache.Stop
}
