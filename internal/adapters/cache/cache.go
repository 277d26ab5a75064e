package cache

import (
	"strings"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Recorder receives cache lookup observations
type Recorder interface {
	RecordCache(hit bool)
}

// TTLCache is a process-local TTL cache with prefix invalidation and
// hit/miss counters. Expired entries are swept every 60 seconds.
type TTLCache struct {
	store    *gocache.Cache
	hits     atomic.Int64
	misses   atomic.Int64
	recorder Recorder
}

// New creates a cache with the given default TTL
func New(defaultTTL time.Duration) *TTLCache {
	return &TTLCache{
		store: gocache.New(defaultTTL, 60*time.Second),
	}
}

// Set stores a value under the key for ttl (0 uses the default TTL)
func (c *TTLCache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.store.Set(key, value, ttl)
}

// SetRecorder attaches a lookup recorder (metrics)
func (c *TTLCache) SetRecorder(r Recorder) {
	c.recorder = r
}

// Get returns the value for the key and whether it was present
func (c *TTLCache) Get(key string) (interface{}, bool) {
	value, ok := c.store.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	if c.recorder != nil {
		c.recorder.RecordCache(ok)
	}
	return value, ok
}

// Delete removes the key
func (c *TTLCache) Delete(key string) {
	c.store.Delete(key)
}

// DeleteByPrefix removes every key with the prefix
func (c *TTLCache) DeleteByPrefix(prefix string) {
	for key := range c.store.Items() {
		if strings.HasPrefix(key, prefix) {
			c.store.Delete(key)
		}
	}
}

// Stats returns cumulative hit and miss counts
func (c *TTLCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Len returns the number of live entries
func (c *TTLCache) Len() int {
	return c.store.ItemCount()
}
