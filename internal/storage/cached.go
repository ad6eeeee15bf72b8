package storage

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"fintrack/internal/cache"
)

type cachedEntry struct {
	value []byte
	found bool
}

// Cached is a read-through, write-through cache in front of a KV.
// Concurrent misses for the same key share one backend read. A read that
// overlaps a write to its key is returned but never cached.
type Cached struct {
	next  KV
	cache *cache.LRUCache[cachedEntry]
	group singleflight.Group

	mu   sync.Mutex
	gens map[string]uint64
}

// NewCached wraps next with an LRU of maxSize entries living for ttl.
func NewCached(next KV, maxSize int, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: cache.NewLRUCache[cachedEntry](maxSize, ttl),
		gens:  make(map[string]uint64),
	}
}

// Cleaner exposes the underlying cache for a cache.Manager.
func (c *Cached) Cleaner() cache.Cleaner {
	return c.cache
}

// Get implements KV
func (c *Cached) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if e, ok := c.cache.Get(key); ok {
		return clone(e.value), e.found, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		gen := c.generation(key)
		value, found, err := c.next.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		e := cachedEntry{value: clone(value), found: found}
		c.mu.Lock()
		if c.gens[key] == gen {
			c.cache.Set(key, e)
		}
		c.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return nil, false, err
	}
	e := v.(cachedEntry)
	return clone(e.value), e.found, nil
}

// Set implements KV
func (c *Cached) Set(ctx context.Context, key string, value []byte) error {
	c.invalidate(key)
	err := c.next.Set(ctx, key, value)

	// Bump again so reads that began during the write are not cached.
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[key]++
	if err != nil {
		c.cache.Delete(key)
		return err
	}
	c.cache.Set(key, cachedEntry{value: clone(value), found: true})
	return nil
}

// Delete implements KV
func (c *Cached) Delete(ctx context.Context, key string) error {
	c.invalidate(key)
	err := c.next.Delete(ctx, key)
	c.invalidate(key)
	return err
}

func (c *Cached) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key]
}

// invalidate drops key from the cache and from any in-flight read.
func (c *Cached) invalidate(key string) {
	c.group.Forget(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[key]++
	c.cache.Delete(key)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
