// README: Redis read-through cache of active zones per hub.
package coverage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"knx/internal/metrics"
)

const zoneKeyPrefix = "knx:zones:hub:%d"

type CachedZoneStore struct {
	next  ZoneReader
	redis *redis.Client
	ttl   time.Duration
	log   *zap.Logger
}

func NewCachedZoneStore(next ZoneReader, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *CachedZoneStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedZoneStore{next: next, redis: rdb, ttl: ttl, log: log}
}

func zoneKey(hubID int64) string {
	return fmt.Sprintf(zoneKeyPrefix, hubID)
}

// ActiveZones serves from Redis when possible. Redis failures fall through to
// the underlying store.
func (c *CachedZoneStore) ActiveZones(ctx context.Context, hubID int64) ([]Zone, error) {
	val, err := c.redis.Get(ctx, zoneKey(hubID)).Bytes()
	if err == nil {
		var zones []Zone
		if jerr := json.Unmarshal(val, &zones); jerr == nil {
			metrics.ZoneCacheHits.Inc()
			return zones, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("zone cache read", zap.Int64("hub_id", hubID), zap.Error(err))
	}
	metrics.ZoneCacheMisses.Inc()

	zones, err := c.next.ActiveZones(ctx, hubID)
	if err != nil {
		return nil, err
	}
	if raw, jerr := json.Marshal(zones); jerr == nil {
		if serr := c.redis.Set(ctx, zoneKey(hubID), raw, c.ttl).Err(); serr != nil {
			c.log.Warn("zone cache write", zap.Int64("hub_id", hubID), zap.Error(serr))
		}
	}
	return zones, nil
}

// Invalidate drops the cached zones of a hub after an edit.
func (c *CachedZoneStore) Invalidate(ctx context.Context, hubID int64) error {
	return c.redis.Del(ctx, zoneKey(hubID)).Err()
}
