// README: Hub-to-customer distance and delivery ETA.
package distance

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"knx/internal/metrics"
	"knx/internal/modules/geo"
	"knx/internal/modules/hub"
	"knx/internal/types"
)

const engineName = "distance"

type Reason string

const (
	ReasonOK                    Reason = "OK"
	ReasonInvalidHubID          Reason = "INVALID_HUB_ID"
	ReasonMissingCustomerCoords Reason = "MISSING_CUSTOMER_COORDS"
	ReasonHubNotFound           Reason = "HUB_NOT_FOUND"
	ReasonMissingHubCoords      Reason = "MISSING_HUB_COORDS"
	ReasonLookupFailed          Reason = "HUB_LOOKUP_FAILED"
	ReasonInternalError         Reason = "INTERNAL_ERROR"
)

type Result struct {
	OK         bool    `json:"ok"`
	DistanceKm float64 `json:"distance_km"`
	DistanceMi float64 `json:"distance_mi"`
	ETAMinutes int     `json:"eta_minutes"`
	Reason     Reason  `json:"reason"`
}

// ETAPolicy holds the business constants behind delivery time estimates.
type ETAPolicy struct {
	PrepMinutes   float64
	SpeedKmh      float64
	TrafficFactor float64
	RoundTo       int
}

func DefaultETAPolicy() ETAPolicy {
	return ETAPolicy{PrepMinutes: 15, SpeedKmh: 30, TrafficFactor: 1.2, RoundTo: 5}
}

// Estimate returns ceil((prep + km/speed*60*traffic) / roundTo) * roundTo.
func (p ETAPolicy) Estimate(distanceKm float64) int {
	return p.EstimateWithTraffic(distanceKm, p.TrafficFactor)
}

func (p ETAPolicy) EstimateWithTraffic(distanceKm, trafficFactor float64) int {
	if distanceKm < 0 {
		distanceKm = 0
	}
	speed := p.SpeedKmh
	if speed <= 0 {
		speed = DefaultETAPolicy().SpeedKmh
	}
	roundTo := p.RoundTo
	if roundTo <= 0 {
		roundTo = 1
	}
	minutes := p.PrepMinutes + distanceKm/speed*60*trafficFactor
	return int(math.Ceil(minutes/float64(roundTo))) * roundTo
}

// EstimateETA applies the default policy with the given traffic factor.
func EstimateETA(distanceKm, trafficFactor float64) int {
	return DefaultETAPolicy().EstimateWithTraffic(distanceKm, trafficFactor)
}

type HubReader interface {
	Hub(ctx context.Context, id int64) (*hub.Hub, error)
}

type Service struct {
	hubs HubReader
	eta  ETAPolicy
	log  *zap.Logger
}

func NewService(hubs HubReader, eta ETAPolicy, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{hubs: hubs, eta: eta, log: log}
}

func (s *Service) Policy() ETAPolicy { return s.eta }

// Calculate computes the hub to customer distance in both units, rounded to
// two decimals, plus the ETA.
func (s *Service) Calculate(ctx context.Context, hubID int64, customer types.Point) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			metrics.Panic(engineName)
			s.log.Error("distance panic", zap.Int64("hub_id", hubID), zap.Any("panic", r))
			res = Result{Reason: ReasonInternalError}
		}
		metrics.Decision(engineName, string(res.Reason))
	}()

	if hubID <= 0 {
		return Result{Reason: ReasonInvalidHubID}
	}
	if customer.Missing() {
		return Result{Reason: ReasonMissingCustomerCoords}
	}
	h, err := s.hubs.Hub(ctx, hubID)
	if errors.Is(err, hub.ErrNotFound) {
		return Result{Reason: ReasonHubNotFound}
	}
	if err != nil {
		s.log.Error("distance hub lookup", zap.Int64("hub_id", hubID), zap.Error(err))
		return Result{Reason: ReasonLookupFailed}
	}
	return Between(h, customer, s.eta)
}

// Between is the pure computation over a loaded hub.
func Between(h *hub.Hub, customer types.Point, eta ETAPolicy) Result {
	origin, ok := h.Location()
	if !ok {
		return Result{Reason: ReasonMissingHubCoords}
	}
	km := geo.Haversine(origin.Lat, origin.Lng, customer.Lat, customer.Lng, geo.UnitKm)
	mi := geo.Haversine(origin.Lat, origin.Lng, customer.Lat, customer.Lng, geo.UnitMi)
	return Result{
		OK:         true,
		DistanceKm: geo.Round2(km),
		DistanceMi: geo.Round2(mi),
		ETAMinutes: eta.Estimate(km),
		Reason:     ReasonOK,
	}
}
