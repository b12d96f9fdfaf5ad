package community

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nfrund/chorus/internal/pubsub"
)

// cache holds fetched values until an invalidation marks them stale. A
// stale entry is refetched on next use. Every invalidation bumps a
// generation, and a fetch that overlapped one is returned but not stored.
type cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
	gens    map[string]uint64
	epoch   uint64 // bumped when everything is dropped
}

func newCache[V any]() *cache[V] {
	return &cache[V]{entries: make(map[string]V), gens: make(map[string]uint64)}
}

func (c *cache[V]) get(key string) (V, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, c.epoch + c.gens[key], ok
}

// put stores v unless key was invalidated since generation gen was read.
func (c *cache[V]) put(key string, gen uint64, v V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch+c.gens[key] != gen {
		return false
	}
	c.entries[key] = v
	return true
}

func (c *cache[V]) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if key == "" {
		c.epoch++
		clear(c.entries)
		return
	}
	c.gens[key]++
	delete(c.entries, key)
}

// getOrFetch returns the cached value for key or fetches and stores it.
func (c *cache[V]) getOrFetch(ctx context.Context, key string, fetch func(context.Context) (V, error)) (V, error) {
	v, gen, ok := c.get(key)
	if ok {
		return v, nil
	}
	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}
	c.put(key, gen, v)
	return v, nil
}

// invalidateOn drops the entry keyOf picks out of every invalidation
// published on event. An empty key drops everything.
func (c *cache[V]) invalidateOn(ctx context.Context, sub pubsub.Subscriber, event pubsub.Event[Invalidation], logger *slog.Logger, keyOf func(Invalidation) string) error {
	return pubsub.On(ctx, sub, event, func(ctx context.Context, inv Invalidation, _ pubsub.Message) error {
		key := keyOf(inv)
		logger.DebugContext(ctx, "Cache invalidated", "topic", event.Name(), "key", key, "reason", inv.Reason)
		c.invalidate(key)
		return nil
	})
}

// notify publishes an invalidation, logging instead of failing the
// mutation that triggered it.
func notify(ctx context.Context, pub pubsub.Publisher, logger *slog.Logger, event pubsub.Event[Invalidation], inv Invalidation) {
	if pub == nil {
		return
	}
	var meta map[string]string
	if inv.ServerID != "" {
		meta = map[string]string{MetaServerID: inv.ServerID}
	}
	if err := pubsub.Publish(ctx, pub, event, inv, meta); err != nil {
		logger.WarnContext(ctx, "Failed to publish invalidation", "topic", event.Name(), "error", err)
	}
}
