// README: Coverage engine; zones first, then hub radius, then reject.
package coverage

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"knx/internal/metrics"
	"knx/internal/modules/geo"
	"knx/internal/modules/hub"
	"knx/internal/types"
)

const engineName = "coverage"

type HubReader interface {
	Hub(ctx context.Context, id int64) (*hub.Hub, error)
}

// ZoneReader returns the active zones of a hub in any order.
type ZoneReader interface {
	ActiveZones(ctx context.Context, hubID int64) ([]Zone, error)
}

type Service struct {
	hubs  HubReader
	zones ZoneReader
	order ZoneOrder
	log   *zap.Logger
}

func NewService(hubs HubReader, zones ZoneReader, order ZoneOrder, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if order == "" {
		order = OrderInsertion
	}
	return &Service{hubs: hubs, zones: zones, order: order, log: log}
}

// Check resolves whether p is deliverable from hubID. It never panics or
// returns an error to the caller.
func (s *Service) Check(ctx context.Context, hubID int64, p types.Point) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			metrics.Panic(engineName)
			s.log.Error("coverage panic", zap.Int64("hub_id", hubID), zap.Any("panic", r))
			res = Result{Reason: ReasonHubConfigurationError}
		}
		metrics.Decision(engineName, string(res.Reason))
	}()

	if hubID <= 0 {
		return Result{Reason: ReasonInvalidHubID}
	}
	if p.Missing() {
		return Result{Reason: ReasonMissingCoords}
	}

	h, err := s.hubs.Hub(ctx, hubID)
	if errors.Is(err, hub.ErrNotFound) {
		return Result{Reason: ReasonHubNotFound}
	}
	if err != nil {
		s.log.Error("coverage hub lookup", zap.Int64("hub_id", hubID), zap.Error(err))
		return Result{Reason: ReasonHubConfigurationError}
	}

	zones, err := s.zones.ActiveZones(ctx, hubID)
	if err != nil {
		s.log.Error("coverage zone lookup", zap.Int64("hub_id", hubID), zap.Error(err))
		return Result{Reason: ReasonHubConfigurationError}
	}
	res = Evaluate(h, zones, p, s.order)
	for _, sk := range res.Skipped {
		s.log.Debug("coverage zone skipped",
			zap.Int64("hub_id", hubID), zap.Int64("zone_id", sk.ZoneID),
			zap.String("reason", string(sk.Reason)), zap.String("detail", sk.Detail))
	}
	return res
}

// Evaluate is the pure zone/radius decision over already-loaded rows.
func Evaluate(h *hub.Hub, zones []Zone, p types.Point, order ZoneOrder) Result {
	active := make([]Zone, 0, len(zones))
	for _, z := range zones {
		if z.IsActive {
			active = append(active, z)
		}
	}
	if len(active) == 0 {
		return radiusCheck(h, p, ReasonNoActiveZone)
	}
	order.Sort(active)

	var skipped []SkippedZone
	valid := 0
	for _, z := range active {
		if z.Type == ZoneTypeRadius {
			skipped = append(skipped, SkippedZone{ZoneID: z.ID, Reason: ReasonZoneTypeNotImplemented})
			continue
		}
		ring, err := zoneRing(z)
		if err != nil {
			skipped = append(skipped, SkippedZone{ZoneID: z.ID, Reason: ReasonZoneUnparseable, Detail: err.Error()})
			continue
		}
		valid++
		if geo.PointInPolygon(p, ring) {
			id, name := z.ID, z.Name
			return Result{OK: true, ZoneID: &id, ZoneName: &name, Reason: ReasonDeliverable, Skipped: skipped}
		}
	}

	if valid > 0 {
		return Result{Reason: ReasonOutOfCoverage, Skipped: skipped}
	}
	res := radiusCheck(h, p, ReasonOutOfCoverage)
	if !res.OK {
		res.Reason = ReasonOutOfCoverage
	}
	res.Skipped = skipped
	return res
}

// zoneRing parses polygon_geojson, falling back to the legacy polygon_points.
func zoneRing(z Zone) (geo.Ring, error) {
	ring, err := geo.ParsePolygonString(z.PolygonGeoJSON)
	if err == nil {
		return ring, nil
	}
	if z.PolygonPoints == "" {
		return nil, err
	}
	return geo.ParsePolygonString(z.PolygonPoints)
}

// radiusCheck tests p against the hub's delivery radius. unconfigured is the
// reason returned when the hub has no coordinates or radius.
func radiusCheck(h *hub.Hub, p types.Point, unconfigured Reason) Result {
	loc, okLoc := h.Location()
	radius, okRadius := h.RadiusMiles()
	if !okLoc || !okRadius {
		return Result{Reason: unconfigured}
	}
	dist := geo.Round2(geo.Haversine(p.Lat, p.Lng, loc.Lat, loc.Lng, geo.UnitMi))
	res := Result{DistanceMi: &dist, RadiusMi: &radius}
	if dist <= radius {
		res.OK = true
		res.Reason = ReasonRadiusFallback
		return res
	}
	res.Reason = ReasonOutOfRadius
	return res
}
