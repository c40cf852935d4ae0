// README: Locator service; finds hubs near a customer and keeps the Redis index in sync.
package locator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"knx/internal/modules/geo"
	"knx/internal/modules/hub"
	"knx/internal/types"
)

const (
	DefaultRadiusKm = 15.0
	DefaultLimit    = 20
	MaxLimit        = 100
)

var ErrBadRequest = errors.New("bad request")

type HubSource interface {
	Hub(ctx context.Context, id int64) (*hub.Hub, error)
	ListActive(ctx context.Context) ([]*hub.Hub, error)
}

type Index interface {
	Replace(ctx context.Context, locs map[int64]types.Point) error
	AddHub(ctx context.Context, hubID int64, p types.Point) error
	RemoveHub(ctx context.Context, hubID int64) error
	NearbyHubs(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]int64, error)
}

type Nearby struct {
	HubID      int64   `json:"hub_id"`
	Name       string  `json:"name"`
	CityID     int64   `json:"city_id"`
	DistanceKm float64 `json:"distance_km"`
	DistanceMi float64 `json:"distance_mi"`
}

type Service struct {
	hubs  HubSource
	index Index
	log   *zap.Logger
}

func NewService(hubs HubSource, index Index, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{hubs: hubs, index: index, log: log}
}

// Rebuild re-indexes every active hub with coordinates.
func (s *Service) Rebuild(ctx context.Context) (int, error) {
	hubs, err := s.hubs.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	locs := make(map[int64]types.Point, len(hubs))
	for _, h := range hubs {
		if p, ok := h.Location(); ok {
			locs[h.ID] = p
		}
	}
	if err := s.index.Replace(ctx, locs); err != nil {
		return 0, err
	}
	return len(locs), nil
}

// Sync refreshes a single hub after an edit.
func (s *Service) Sync(ctx context.Context, hubID int64) error {
	h, err := s.hubs.Hub(ctx, hubID)
	if errors.Is(err, hub.ErrNotFound) {
		return s.index.RemoveHub(ctx, hubID)
	}
	if err != nil {
		return err
	}
	p, ok := h.Location()
	if !ok || !h.Active() {
		return s.index.RemoveHub(ctx, hubID)
	}
	return s.index.AddHub(ctx, hubID, p)
}

// Near lists hubs around p, nearest first. Distances are recomputed with
// haversine so they agree with the coverage and distance engines.
func (s *Service) Near(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]Nearby, error) {
	if p.Missing() || !p.InRange() {
		return nil, ErrBadRequest
	}
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	ids, err := s.index.NearbyHubs(ctx, p, radiusKm, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Nearby, 0, len(ids))
	for _, id := range ids {
		h, err := s.hubs.Hub(ctx, id)
		if errors.Is(err, hub.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		loc, ok := h.Location()
		if !ok || !h.Active() {
			continue
		}
		km := geo.HaversineKm(p.Lat, p.Lng, loc.Lat, loc.Lng)
		out = append(out, Nearby{
			HubID:      h.ID,
			Name:       h.Name,
			CityID:     h.CityID,
			DistanceKm: geo.Round2(km),
			DistanceMi: geo.Round2(geo.Haversine(p.Lat, p.Lng, loc.Lat, loc.Lng, geo.UnitMi)),
		})
	}
	geo.SortByDistance(out, func(n Nearby) float64 { return n.DistanceKm })
	return out, nil
}

// RunRefresher rebuilds the index on every tick until ctx ends.
func (s *Service) RunRefresher(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Rebuild(ctx)
			if err != nil {
				s.log.Warn("locator rebuild", zap.Error(err))
				continue
			}
			s.log.Debug("locator rebuilt", zap.Int("hubs", n))
		}
	}
}
