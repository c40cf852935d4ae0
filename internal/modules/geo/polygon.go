package geo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"knx/internal/types"
)

// RayEpsilon replaces a zero denominator on horizontal edges.
const RayEpsilon = 1e-12

// MinRingPoints is the fewest distinct vertices a usable ring can have.
const MinRingPoints = 3

// Ring is an outer polygon boundary in {lat,lng} order. It is stored open
// (without repeating the first vertex); PointInPolygon closes it.
type Ring []types.Point

// ParseReason is a stable reason code for a polygon that could not be used.
type ParseReason string

const (
	ReasonEmptyPolygon         ParseReason = "EMPTY_POLYGON"
	ReasonInvalidJSON          ParseReason = "INVALID_JSON"
	ReasonUnsupportedGeometry  ParseReason = "UNSUPPORTED_GEOMETRY"
	ReasonMalformedCoordinate  ParseReason = "MALFORMED_COORDINATE"
	ReasonCoordinateOutOfRange ParseReason = "COORDINATE_OUT_OF_RANGE"
	ReasonTooFewPoints         ParseReason = "TOO_FEW_POINTS"
)

type ParseError struct {
	Reason ParseReason
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return "polygon: " + string(e.Reason)
	}
	return fmt.Sprintf("polygon: %s: %s", e.Reason, e.Detail)
}

func parseErr(reason ParseReason, format string, args ...any) error {
	return &ParseError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// PointInPolygon reports whether p lies inside ring using ray casting
// (x = lng, y = lat). Rings with fewer than 3 vertices contain nothing.
func PointInPolygon(p types.Point, ring Ring) bool {
	pts := closeRing(ring)
	if len(pts)-1 < MinRingPoints {
		return false
	}
	x, y := p.Lng, p.Lat
	inside := false
	for i, j := 0, len(pts)-1; i < len(pts); j, i = i, i+1 {
		xi, yi := pts[i].Lng, pts[i].Lat
		xj, yj := pts[j].Lng, pts[j].Lat
		if (yi > y) == (yj > y) {
			continue
		}
		denom := yj - yi
		if math.Abs(denom) < RayEpsilon {
			denom = RayEpsilon
		}
		xCross := (xj-xi)*(y-yi)/denom + xi
		if x < xCross {
			inside = !inside
		}
	}
	return inside
}

func closeRing(ring Ring) Ring {
	if len(ring) == 0 {
		return nil
	}
	out := make(Ring, len(ring), len(ring)+1)
	copy(out, ring)
	if out[0] != out[len(out)-1] {
		out = append(out, out[0])
	}
	return out
}

// ParsePolygon accepts:
//   - GeoJSON Polygon (coordinates[0] is the outer ring, [lng,lat] per RFC 7946)
//   - GeoJSON MultiPolygon (first polygon, first ring only)
//   - GeoJSON Feature wrapping either of the above
//   - legacy [{"lat":..,"lng":..}, ...]
//   - legacy [[lat,lng], ...]
//
// The returned ring is always {lat,lng} and open.
func ParsePolygon(raw []byte) (Ring, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, &ParseError{Reason: ReasonEmptyPolygon}
	}
	var ring Ring
	var err error
	switch raw[0] {
	case '{':
		ring, err = parseGeoJSON(raw)
	case '[':
		ring, err = parseLegacy(raw)
	default:
		return nil, parseErr(ReasonInvalidJSON, "unexpected leading byte %q", raw[0])
	}
	if err != nil {
		return nil, err
	}
	return finishRing(ring)
}

// ParsePolygonString is ParsePolygon for string columns.
func ParsePolygonString(raw string) (Ring, error) {
	return ParsePolygon([]byte(raw))
}

type geoJSONObject struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
	Geometry    json.RawMessage `json:"geometry"`
}

func parseGeoJSON(raw []byte) (Ring, error) {
	var obj geoJSONObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, parseErr(ReasonInvalidJSON, "%v", err)
	}
	switch obj.Type {
	case "Feature":
		if len(obj.Geometry) == 0 {
			return nil, parseErr(ReasonUnsupportedGeometry, "feature without geometry")
		}
		return parseGeoJSON(obj.Geometry)
	case "Polygon":
		var rings [][]json.RawMessage
		if err := json.Unmarshal(obj.Coordinates, &rings); err != nil {
			return nil, parseErr(ReasonMalformedCoordinate, "polygon coordinates: %v", err)
		}
		if len(rings) == 0 {
			return nil, &ParseError{Reason: ReasonEmptyPolygon}
		}
		return positionsLngLat(rings[0])
	case "MultiPolygon":
		var polys [][][]json.RawMessage
		if err := json.Unmarshal(obj.Coordinates, &polys); err != nil {
			return nil, parseErr(ReasonMalformedCoordinate, "multipolygon coordinates: %v", err)
		}
		if len(polys) == 0 || len(polys[0]) == 0 {
			return nil, &ParseError{Reason: ReasonEmptyPolygon}
		}
		return positionsLngLat(polys[0][0])
	default:
		return nil, parseErr(ReasonUnsupportedGeometry, "type %q", obj.Type)
	}
}

// positionsLngLat converts GeoJSON positions ([lng,lat,...]) into {lat,lng}.
func positionsLngLat(positions []json.RawMessage) (Ring, error) {
	ring := make(Ring, 0, len(positions))
	for i, pos := range positions {
		var vals []any
		if err := json.Unmarshal(pos, &vals); err != nil || len(vals) < 2 {
			return nil, parseErr(ReasonMalformedCoordinate, "position %d", i)
		}
		lng, okLng := toFloat(vals[0])
		lat, okLat := toFloat(vals[1])
		if !okLng || !okLat {
			return nil, parseErr(ReasonMalformedCoordinate, "position %d is not numeric", i)
		}
		ring = append(ring, types.Point{Lat: lat, Lng: lng})
	}
	return ring, nil
}

func parseLegacy(raw []byte) (Ring, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, parseErr(ReasonInvalidJSON, "%v", err)
	}
	ring := make(Ring, 0, len(items))
	for i, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 {
			return nil, parseErr(ReasonMalformedCoordinate, "point %d", i)
		}
		switch item[0] {
		case '{':
			var obj map[string]any
			if err := json.Unmarshal(item, &obj); err != nil {
				return nil, parseErr(ReasonMalformedCoordinate, "point %d: %v", i, err)
			}
			lat, okLat := toFloat(obj["lat"])
			lngRaw, has := obj["lng"]
			if !has {
				lngRaw = obj["lon"]
			}
			lng, okLng := toFloat(lngRaw)
			if !okLat || !okLng {
				return nil, parseErr(ReasonMalformedCoordinate, "point %d is not numeric", i)
			}
			ring = append(ring, types.Point{Lat: lat, Lng: lng})
		case '[':
			// Legacy pairs are [lat,lng]; GeoJSON is the other way round.
			var vals []any
			if err := json.Unmarshal(item, &vals); err != nil || len(vals) < 2 {
				return nil, parseErr(ReasonMalformedCoordinate, "point %d", i)
			}
			lat, okLat := toFloat(vals[0])
			lng, okLng := toFloat(vals[1])
			if !okLat || !okLng {
				return nil, parseErr(ReasonMalformedCoordinate, "point %d is not numeric", i)
			}
			ring = append(ring, types.Point{Lat: lat, Lng: lng})
		default:
			return nil, parseErr(ReasonMalformedCoordinate, "point %d", i)
		}
	}
	return ring, nil
}

func finishRing(ring Ring) (Ring, error) {
	for i, p := range ring {
		if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
			return nil, parseErr(ReasonMalformedCoordinate, "point %d", i)
		}
		if !p.InRange() {
			return nil, parseErr(ReasonCoordinateOutOfRange, "point %d (%f,%f)", i, p.Lat, p.Lng)
		}
	}
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		ring = ring[:len(ring)-1]
	}
	if len(ring) < MinRingPoints {
		return nil, parseErr(ReasonTooFewPoints, "%d", len(ring))
	}
	return ring, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Centroid is the vertex average of the ring.
func Centroid(ring Ring) types.Point {
	if len(ring) == 0 {
		return types.Point{}
	}
	var lat, lng float64
	for _, p := range ring {
		lat += p.Lat
		lng += p.Lng
	}
	n := float64(len(ring))
	return types.Point{Lat: lat / n, Lng: lng / n}
}
