// README: Hub locator index backed by Redis GEO.
package locator

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"knx/internal/types"
)

const (
	hubGeoKey  = "knx:locator:hubs"
	builtAtKey = "knx:locator:built_at"
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

func (s *Store) AddHub(ctx context.Context, hubID int64, p types.Point) error {
	return s.redis.GeoAdd(ctx, hubGeoKey, &redis.GeoLocation{
		Name:      strconv.FormatInt(hubID, 10),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	}).Err()
}

func (s *Store) RemoveHub(ctx context.Context, hubID int64) error {
	return s.redis.ZRem(ctx, hubGeoKey, strconv.FormatInt(hubID, 10)).Err()
}

// Replace swaps the whole index for locs in one pipeline.
func (s *Store) Replace(ctx context.Context, locs map[int64]types.Point) error {
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, hubGeoKey)
	if len(locs) > 0 {
		members := make([]*redis.GeoLocation, 0, len(locs))
		for id, p := range locs {
			members = append(members, &redis.GeoLocation{
				Name:      strconv.FormatInt(id, 10),
				Longitude: p.Lng,
				Latitude:  p.Lat,
			})
		}
		pipe.GeoAdd(ctx, hubGeoKey, members...)
	}
	pipe.Set(ctx, builtAtKey, time.Now().UTC().Format(time.RFC3339), 0)
	_, err := pipe.Exec(ctx)
	return err
}

// NearbyHubs returns hub ids within radiusKm of p, nearest first.
func (s *Store) NearbyHubs(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]int64, error) {
	results, err := s.redis.GeoSearch(ctx, hubGeoKey, &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
		Count:      limit,
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(results))
	for _, r := range results {
		id, err := strconv.ParseInt(r, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// BuiltAt reports when the index was last rebuilt.
func (s *Store) BuiltAt(ctx context.Context) (time.Time, bool, error) {
	val, err := s.redis.Get(ctx, builtAtKey).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}
