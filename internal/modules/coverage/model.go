// README: Delivery zone rows, zone ordering policies and the coverage result contract.
package coverage

import (
	"fmt"
	"sort"
)

type Reason string

const (
	ReasonInvalidHubID           Reason = "INVALID_HUB_ID"
	ReasonMissingCoords          Reason = "MISSING_COORDS"
	ReasonHubNotFound            Reason = "HUB_NOT_FOUND"
	ReasonNoActiveZone           Reason = "NO_ACTIVE_ZONE"
	ReasonRadiusFallback         Reason = "RADIUS_FALLBACK"
	ReasonOutOfRadius            Reason = "OUT_OF_RADIUS"
	ReasonDeliverable            Reason = "DELIVERABLE"
	ReasonOutOfCoverage          Reason = "OUT_OF_COVERAGE"
	ReasonZoneTypeNotImplemented Reason = "ZONE_TYPE_NOT_IMPLEMENTED"
	ReasonZoneUnparseable        Reason = "ZONE_UNPARSEABLE"
	ReasonHubConfigurationError  Reason = "HUB_CONFIGURATION_ERROR"
)

const (
	ZoneTypePolygon = "polygon"
	ZoneTypeRadius  = "radius"
)

type Zone struct {
	ID             int64  `json:"id"`
	HubID          int64  `json:"hub_id"`
	Name           string `json:"zone_name"`
	Type           string `json:"zone_type"`
	IsActive       bool   `json:"is_active"`
	PolygonGeoJSON string `json:"polygon_geojson,omitempty"`
	PolygonPoints  string `json:"polygon_points,omitempty"`
	Priority       int    `json:"priority"`
}

// Result keeps the public keys ok, zone_id, reason, zone_name, distance_mi and radius_mi.
type Result struct {
	OK         bool     `json:"ok"`
	ZoneID     *int64   `json:"zone_id"`
	Reason     Reason   `json:"reason"`
	ZoneName   *string  `json:"zone_name"`
	DistanceMi *float64 `json:"distance_mi,omitempty"`
	RadiusMi   *float64 `json:"radius_mi,omitempty"`

	// Skipped lists zones that were not evaluated and why.
	Skipped []SkippedZone `json:"-"`
}

// PricedZone is the zone whose fee rules apply to this point: the matched
// zone of a deliverable result, otherwise 0.
func (r Result) PricedZone() int64 {
	if !r.OK || r.ZoneID == nil {
		return 0
	}
	return *r.ZoneID
}

type SkippedZone struct {
	ZoneID int64
	Reason Reason
	Detail string
}

// ZoneOrder decides which zone wins when several contain the point.
type ZoneOrder string

const (
	// OrderInsertion evaluates zones by id ascending.
	OrderInsertion ZoneOrder = "insertion"
	// OrderPriority evaluates zones by priority descending, then id ascending.
	OrderPriority ZoneOrder = "priority"
)

func ParseZoneOrder(s string) (ZoneOrder, error) {
	switch ZoneOrder(s) {
	case "", OrderInsertion:
		return OrderInsertion, nil
	case OrderPriority:
		return OrderPriority, nil
	default:
		return "", fmt.Errorf("unknown zone order %q", s)
	}
}

// Sort orders zones in place.
func (o ZoneOrder) Sort(zones []Zone) {
	sort.SliceStable(zones, func(i, j int) bool {
		if o == OrderPriority && zones[i].Priority != zones[j].Priority {
			return zones[i].Priority > zones[j].Priority
		}
		return zones[i].ID < zones[j].ID
	})
}
