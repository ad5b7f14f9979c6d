// Package narrativecache decorates a domain.Annotator with caches keyed by
// test ID. Tests are immutable, so a narrative never goes stale.
package narrativecache

import (
	"context"
	"fmt"

	"github.com/couchcryptid/groundwater-etl/internal/domain"
	"github.com/couchcryptid/groundwater-etl/internal/observability"
	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU keeps recent narratives in process memory.
type LRU struct {
	inner   domain.Annotator
	cache   *lru.Cache[string, domain.Narrative]
	metrics *observability.Metrics
}

// NewLRU wraps inner with a cache of at most size narratives.
func NewLRU(inner domain.Annotator, size int, metrics *observability.Metrics) (*LRU, error) {
	cache, err := lru.New[string, domain.Narrative](size)
	if err != nil {
		return nil, fmt.Errorf("create narrative lru: %w", err)
	}
	return &LRU{inner: inner, cache: cache, metrics: metrics}, nil
}

func (c *LRU) Annotate(ctx context.Context, site domain.SiteSummary, test domain.TestRecord) (domain.Narrative, error) {
	if n, ok := c.cache.Get(test.ID); ok {
		c.metrics.AnnotatorCache.WithLabelValues("lru", "hit").Inc()
		n.Cached = true
		return n, nil
	}
	c.metrics.AnnotatorCache.WithLabelValues("lru", "miss").Inc()

	n, err := c.inner.Annotate(ctx, site, test)
	if err != nil {
		return n, err
	}
	if n.Cacheable() {
		c.cache.Add(test.ID, n)
	}
	return n, nil
}

// Len reports the number of cached narratives.
func (c *LRU) Len() int {
	return c.cache.Len()
}
