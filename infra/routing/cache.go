package routing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/courierflow/dispatch/core/model"
	"github.com/courierflow/dispatch/core/timewindow"
	"github.com/courierflow/dispatch/infra/logger"
)

// DefaultCacheTTL bounds how long a cached road distance stays fresh.
const DefaultCacheTTL = 24 * time.Hour

// CachedProvider decorates a RouteProvider with a Redis cache. Coordinates
// are rounded to four decimals (roughly 11 m) so nearby lookups share entries.
type CachedProvider struct {
	inner timewindow.RouteProvider
	redis *redis.Client
	ttl   time.Duration
	log   logger.Logger
}

// NewCachedProvider wraps the provider with a Redis distance cache.
func NewCachedProvider(inner timewindow.RouteProvider, client *redis.Client, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedProvider{inner: inner, redis: client, ttl: ttl, log: logger.New("routing_cache")}
}

func (c *CachedProvider) GetDistance(ctx context.Context, from, to model.LatLng) (float64, error) {
	key := cacheKey(from, to)
	val, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		if meters, perr := strconv.ParseFloat(val, 64); perr == nil {
			return meters, nil
		}
	} else if err != redis.Nil {
		c.log.Warnf("distance cache read failed: %v", err)
	}

	meters, err := c.inner.GetDistance(ctx, from, to)
	if err != nil {
		return 0, err
	}
	if serr := c.redis.Set(ctx, key, strconv.FormatFloat(meters, 'f', -1, 64), c.ttl).Err(); serr != nil {
		c.log.Warnf("distance cache write failed: %v", serr)
	}
	return meters, nil
}

func cacheKey(from, to model.LatLng) string {
	return fmt.Sprintf("dispatch:route:%.4f,%.4f:%.4f,%.4f", from.Lat, from.Lng, to.Lat, to.Lng)
}
