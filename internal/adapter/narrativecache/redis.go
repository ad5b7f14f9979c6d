package narrativecache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/groundwater-etl/internal/domain"
	"github.com/couchcryptid/groundwater-etl/internal/observability"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "narrative:"

// Redis shares narratives between service replicas. Redis failures are
// logged and bypassed; the inner annotator is still consulted.
type Redis struct {
	inner   domain.Annotator
	client  *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewRedis wraps inner with a Redis cache whose entries expire after ttl.
func NewRedis(inner domain.Annotator, client *redis.Client, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Redis {
	return &Redis{inner: inner, client: client, ttl: ttl, metrics: metrics, logger: logger}
}

func (c *Redis) Annotate(ctx context.Context, site domain.SiteSummary, test domain.TestRecord) (domain.Narrative, error) {
	key := keyPrefix + test.ID

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var n domain.Narrative
		if jsonErr := json.Unmarshal(data, &n); jsonErr == nil {
			c.metrics.AnnotatorCache.WithLabelValues("redis", "hit").Inc()
			n.Cached = true
			return n, nil
		}
		c.logger.Warn("discarding undecodable cached narrative", "test_id", test.ID)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("redis narrative lookup failed", "test_id", test.ID, "error", err)
	}
	c.metrics.AnnotatorCache.WithLabelValues("redis", "miss").Inc()

	n, err := c.inner.Annotate(ctx, site, test)
	if err != nil || !n.Cacheable() {
		return n, err
	}

	data, err = json.Marshal(n)
	if err != nil {
		return n, nil
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("redis narrative store failed", "test_id", test.ID, "error", err)
	}
	return n, nil
}
