package status

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/monitoring/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const defaultCacheTTL = 24 * time.Hour

// Cache keeps the most recent check per endpoint in redis so status reads
// skip the database on the hot path. A nil client disables caching; every
// method degrades to a no-op or a miss.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

func latestKey(endpointID int64) string {
	return fmt.Sprintf("endpoint:latest:%d", endpointID)
}

// HandleResult records the check as the endpoint's latest. Cache writes are
// best effort; a failed write just means the next read falls through to the
// database.
func (c *Cache) HandleResult(ctx context.Context, ep model.Endpoint, hc *model.HealthCheck) {
	if c == nil || c.rdb == nil {
		return
	}
	b, err := json.Marshal(hc)
	if err != nil {
		log.Warn().Err(err).Int64("endpoint_id", ep.ID).Msg("marshal latest check failed")
		return
	}
	if err := c.rdb.Set(ctx, latestKey(ep.ID), b, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Int64("endpoint_id", ep.ID).Msg("cache latest check failed")
	}
}

// LatestCheck returns the cached latest check, or a miss.
func (c *Cache) LatestCheck(ctx context.Context, endpointID int64) (*model.HealthCheck, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, latestKey(endpointID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Int64("endpoint_id", endpointID).Msg("cache read failed")
		}
		return nil, false
	}
	var hc model.HealthCheck
	if err := json.Unmarshal(raw, &hc); err != nil {
		log.Warn().Err(err).Int64("endpoint_id", endpointID).Msg("corrupt cache entry, dropping")
		c.rdb.Del(ctx, latestKey(endpointID))
		return nil, false
	}
	return &hc, true
}

// Forget drops the cached entry for an endpoint that left the active set.
func (c *Cache) Forget(endpointID int64) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(context.Background(), latestKey(endpointID)).Err(); err != nil {
		log.Warn().Err(err).Int64("endpoint_id", endpointID).Msg("cache delete failed")
	}
}
