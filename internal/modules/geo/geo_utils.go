// Package geo contains pure geographic computation helpers: great-circle
// distance, ray-casting point-in-polygon and polygon parsing.
package geo

import "math"

type Unit string

const (
	UnitKm Unit = "km"
	UnitMi Unit = "mi"
)

const (
	EarthRadiusKm = 6371.0
	EarthRadiusMi = 3959.0
)

// ParseUnit maps the legacy unit names ("mile", "miles", "kilometer") onto Unit.
// Anything unrecognised is kilometres.
func ParseUnit(s string) Unit {
	switch s {
	case "mi", "mile", "miles", "M":
		return UnitMi
	default:
		return UnitKm
	}
}

func radiusFor(unit Unit) float64 {
	if unit == UnitMi {
		return EarthRadiusMi
	}
	return EarthRadiusKm
}

// Haversine returns the great-circle distance between two points specified in
// decimal degrees, in the requested unit.
func Haversine(lat1, lng1, lat2, lng2 float64, unit Unit) float64 {
	if lat1 == lat2 && lng1 == lng2 {
		return 0
	}
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return radiusFor(unit) * c
}

// HaversineKm is Haversine in kilometres.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	return Haversine(lat1, lng1, lat2, lng2, UnitKm)
}

// CalculateDistance is the entry point older call sites used. Those sites
// historically ran the spherical law of cosines; it now routes to Haversine so
// there is a single distance implementation. Results differ from the old
// formula by small amounts at short range.
func CalculateDistance(lat1, lng1, lat2, lng2 float64, unit string) float64 {
	return Haversine(lat1, lng1, lat2, lng2, ParseUnit(unit))
}

// lawOfCosines is kept only so tests can measure how far the retired formula
// drifts from Haversine.
func lawOfCosines(lat1, lng1, lat2, lng2 float64, unit Unit) float64 {
	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)
	dLng := degreesToRadians(lng2 - lng1)
	cos := math.Sin(rLat1)*math.Sin(rLat2) + math.Cos(rLat1)*math.Cos(rLat2)*math.Cos(dLng)
	cos = math.Max(-1, math.Min(1, cos))
	return radiusFor(unit) * math.Acos(cos)
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Round2 rounds to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SortByDistance performs an insertion sort (fine for small N) on any slice
// where each element exposes a distance via the accessor function. Stable.
func SortByDistance[T any](items []T, dist func(T) float64) {
	for i := 1; i < len(items); i++ {
		key := items[i]
		j := i - 1
		for j >= 0 && dist(items[j]) > dist(key) {
			items[j+1] = items[j]
			j--
		}
		items[j+1] = key
	}
}
