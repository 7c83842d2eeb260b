package systems

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/framegraph/engine/core"
	"golang.org/x/sync/singleflight"
)

// Cache maps keys to expensive GPU objects created on first use. Concurrent
// misses on the same key block on a single creation. Caches are explicit
// instances so independent renderers never share them.
type Cache[K comparable, V any] struct {
	name   string
	key    func(K) string
	create func(K) (V, error)

	mu      sync.RWMutex
	entries map[K]V
	group   singleflight.Group
	created uint64
}

func NewCache[K comparable, V any](name string, key func(K) string, create func(K) (V, error)) *Cache[K, V] {
	core.Assert(key != nil && create != nil, "cache `%s` needs a key and a create function", name)
	return &Cache[K, V]{
		name:    name,
		key:     key,
		create:  create,
		entries: make(map[K]V),
	}
}

/**
 * @brief Returns the entry for k, creating it if missing.
 * @returns the cached value or the creation error. Failed creations are not
 * cached.
 */
func (c *Cache[K, V]) Get(k K) (V, error) {
	if v, ok := c.Peek(k); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(c.key(k), func() (interface{}, error) {
		if v, ok := c.Peek(k); ok {
			return v, nil
		}
		v, err := c.create(k)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[k] = v
		c.created++
		c.mu.Unlock()
		core.LogDebug("%s cache: created `%s`", c.name, c.key(k))
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, fmt.Errorf("%s cache `%s`: %w", c.name, c.key(k), err)
	}
	return v.(V), nil
}

// Peek returns the entry for k without creating it.
func (c *Cache[K, V]) Peek(k K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[k]
	return v, ok
}

// Evict removes k and returns what was cached for it.
func (c *Cache[K, V]) Evict(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[k]
	delete(c.entries, k)
	return v, ok
}

func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Created returns how many entries were ever created.
func (c *Cache[K, V]) Created() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.created
}

// Drain empties the cache and returns what it held.
func (c *Cache[K, V]) Drain() []V {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]V, 0, len(c.entries))
	for k, v := range c.entries {
		out = append(out, v)
		delete(c.entries, k)
	}
	return out
}
