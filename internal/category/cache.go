package category

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fjod/go_storefront/internal/domain"
)

// Source lists the flat category records the forest is built from.
// Consumers define this interface, not the sqlite implementation.
type Source interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// DefaultTTL is how long a built forest is served before a rebuild.
const DefaultTTL = 15 * time.Minute

// Cache serves a time-bounded category forest, rebuilding it from the
// source at most once per expiry regardless of concurrent readers.
type Cache struct {
	source Source
	ttl    time.Duration

	mu      sync.RWMutex
	forest  []*domain.CategoryNode
	builtAt time.Time

	sfg singleflight.Group // prevents rebuild stampede on expiry
}

func NewCache(source Source, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{source: source, ttl: ttl}
}

// Forest returns the current category forest, rebuilding it when the
// cached one has expired. Callers must not mutate the returned nodes.
func (c *Cache) Forest(ctx context.Context) ([]*domain.CategoryNode, error) {
	c.mu.RLock()
	if c.forest != nil && time.Since(c.builtAt) < c.ttl {
		forest := c.forest
		c.mu.RUnlock()
		return forest, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.sfg.Do("forest", func() (interface{}, error) {
		// Another caller may have refreshed while we queued.
		c.mu.RLock()
		if c.forest != nil && time.Since(c.builtAt) < c.ttl {
			forest := c.forest
			c.mu.RUnlock()
			return forest, nil
		}
		c.mu.RUnlock()

		records, err := c.source.ListCategories(ctx)
		if err != nil {
			return nil, err
		}
		forest := BuildForest(records)

		c.mu.Lock()
		c.forest = forest
		c.builtAt = time.Now()
		c.mu.Unlock()
		return forest, nil
	})
	if err != nil {
		// Serve the stale forest if we have one: navigation should
		// survive a degraded catalog.
		c.mu.RLock()
		defer c.mu.RUnlock()
		if c.forest != nil {
			return c.forest, nil
		}
		return nil, err
	}

	return v.([]*domain.CategoryNode), nil
}

// Invalidate drops the cached forest so the next read rebuilds it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forest = nil
	c.builtAt = time.Time{}
}
