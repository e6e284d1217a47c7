package observers

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/desertthunder/crux/internal/events"
)

// CacheWarmer keeps recently seen entities in a ristretto cache.
//
// Every entity passed to EachEntity, by reads and writes alike, is stored under key(entity).
// Entities seen during a write are only stored once the write commits. A delete evicts the
// entity, and the EachEntity that follows it in the same delete is skipped so the entity is
// not cached again.
type CacheWarmer[E, In, ID any] struct {
	events.Nop[E, In, ID]

	cache   *ristretto.Cache[string, E]
	key     func(E) string
	removed sync.Map
}

// removal identifies one delete: the entity key within the settlement of its transaction.
type removal struct {
	settlement *events.Settlement
	key        string
}

// NewCacheWarmer creates a cache holding up to maxCost entities.
func NewCacheWarmer[E, In, ID any](maxCost int64, key func(E) string) (*CacheWarmer[E, In, ID], error) {
	if maxCost <= 0 {
		return nil, fmt.Errorf("cache max cost must be positive, got %d", maxCost)
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, E]{
		NumCounters: maxCost * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	return &CacheWarmer[E, In, ID]{cache: cache, key: key}, nil
}

func (c *CacheWarmer[E, In, ID]) EachEntity(ctx context.Context, e E) error {
	k := c.key(e)
	if _, gone := c.removed.LoadAndDelete(removal{events.SettlementFrom(ctx), k}); gone {
		return nil
	}
	events.AfterCommit(ctx, func() { c.cache.Set(k, e, 1) })
	return nil
}

func (c *CacheWarmer[E, In, ID]) OnAfterDelete(ctx context.Context, e E) error {
	k := c.key(e)
	mark := removal{events.SettlementFrom(ctx), k}
	c.removed.Store(mark, struct{}{})
	c.cache.Del(k)
	events.OnRollback(ctx, func() { c.removed.Delete(mark) })
	events.AfterCommit(ctx, func() { c.cache.Del(k) })
	return nil
}

// Get returns the cached entity stored under key.
func (c *CacheWarmer[E, In, ID]) Get(key string) (E, bool) {
	return c.cache.Get(key)
}

// Wait blocks until buffered writes have been applied.
func (c *CacheWarmer[E, In, ID]) Wait() { c.cache.Wait() }

// Close stops the cache's background goroutines.
func (c *CacheWarmer[E, In, ID]) Close() { c.cache.Close() }
