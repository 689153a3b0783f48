// Package catalog is the cached, typed view over the persisted books and tags.
package catalog

import (
	"cmp"
	"context"
	"sync"

	"github.com/tidwall/btree"
)

// Cache is a fully materialised, ordered snapshot of one table.
//
// The snapshot is rebuilt lazily on the first read after Invalidate. Reads
// hand out clones, so callers never share state with the cache.
type Cache[K cmp.Ordered, V any] struct {
	mu    sync.Mutex
	items *btree.Map[K, V]
	dirty bool

	load  func(ctx context.Context) ([]V, error)
	key   func(V) K
	clone func(V) V
}

// NewCache creates an empty, dirty cache.
func NewCache[K cmp.Ordered, V any](
	load func(ctx context.Context) ([]V, error),
	key func(V) K,
	clone func(V) V,
) *Cache[K, V] {
	return &Cache[K, V]{
		items: btree.NewMap[K, V](0),
		dirty: true,
		load:  load,
		key:   key,
		clone: clone,
	}
}

// refresh rebuilds the snapshot when dirty. Caller holds mu.
func (c *Cache[K, V]) refresh(ctx context.Context) error {
	if !c.dirty {
		return nil
	}
	values, err := c.load(ctx)
	if err != nil {
		return err
	}
	items := btree.NewMap[K, V](0)
	for _, v := range values {
		items.Set(c.key(v), v)
	}
	c.items = items
	c.dirty = false
	return nil
}

// All returns every value in key order.
func (c *Cache[K, V]) All(ctx context.Context) ([]V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.refresh(ctx); err != nil {
		return nil, err
	}
	out := make([]V, 0, c.items.Len())
	c.items.Scan(func(_ K, v V) bool {
		out = append(out, c.clone(v))
		return true
	})
	return out, nil
}

// Get returns the value stored under k.
func (c *Cache[K, V]) Get(ctx context.Context, k K) (V, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	if err := c.refresh(ctx); err != nil {
		return zero, false, err
	}
	v, ok := c.items.Get(k)
	if !ok {
		return zero, false, nil
	}
	return c.clone(v), true, nil
}

// Invalidate marks the snapshot stale.
func (c *Cache[K, V]) Invalidate() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
}
