// Package cachemanager memoises chain resolutions on top of go-cache.
package cachemanager

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/maptel/internal/log"
	"github.com/zjrosen/maptel/internal/registry/domain"
)

const DefaultExpiration = 10 * time.Minute
const DefaultCleanupInterval = 30 * time.Minute

// Key identifies one memoised resolution. Generation pins the entry to a
// single version of the table, so a mutated table can never serve a
// stale result.
type Key struct {
	Handle     domain.Handle
	Generation uint64
	Source     domain.Number
}

func (k Key) String() string {
	return tablePrefix(k.Handle) + strconv.FormatUint(k.Generation, 10) + ":" + k.Source.String()
}

func tablePrefix(h domain.Handle) string {
	return h.String() + ":"
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Hits   uint64
	Misses uint64
	Items  int
}

// ResolutionCache stores domain.Resolution values keyed by Key.
type ResolutionCache struct {
	cache  *gocache.Cache
	ttl    time.Duration
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewResolutionCache creates a cache whose entries live for expiration and
// are swept every cleanupInterval.
func NewResolutionCache(expiration, cleanupInterval time.Duration) *ResolutionCache {
	return &ResolutionCache{
		cache: gocache.New(expiration, cleanupInterval),
		ttl:   expiration,
	}
}

// Get returns the cached resolution for key.
func (c *ResolutionCache) Get(key Key) (domain.Resolution, bool) {
	value, found := c.cache.Get(key.String())
	if !found {
		c.misses.Add(1)
		return domain.Resolution{}, false
	}

	res, ok := value.(domain.Resolution)
	if !ok {
		log.Error(log.CatCache, "wrong type assertion when getting value", "key", key)
		c.cache.Delete(key.String())
		c.misses.Add(1)
		return domain.Resolution{}, false
	}

	c.hits.Add(1)
	log.Debug(log.CatCache, "cache hit", "key", key)
	return res, true
}

// Set stores res under key with the default expiration.
func (c *ResolutionCache) Set(key Key, res domain.Resolution) {
	c.cache.Set(key.String(), res, c.ttl)
}

// GetOrResolve returns the cached resolution for key, or calls resolve and
// caches its result. hit reports whether resolve was skipped.
func (c *ResolutionCache) GetOrResolve(key Key, resolve func() domain.Resolution) (res domain.Resolution, hit bool) {
	if res, ok := c.Get(key); ok {
		return res, true
	}
	res = resolve()
	c.Set(key, res)
	return res, false
}

// DropTable removes every entry that belongs to handle h.
func (c *ResolutionCache) DropTable(h domain.Handle) int {
	prefix := tablePrefix(h)
	dropped := 0
	for k := range c.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			c.cache.Delete(k)
			dropped++
		}
	}
	if dropped > 0 {
		log.Debug(log.CatCache, "dropped table entries", "handle", h, "count", dropped)
	}
	return dropped
}

// Stats reports hit/miss counters and the current item count.
func (c *ResolutionCache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Items:  c.cache.ItemCount(),
	}
}
