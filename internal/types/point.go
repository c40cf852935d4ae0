// README: Geographic point value object ({lat,lng} order, always).
package types

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Missing reports whether the pair cannot be a real address. A zero in either
// component is treated as "not provided".
func (p Point) Missing() bool {
	return p.Lat == 0 || p.Lng == 0
}

// InRange reports whether lat is within [-90,90] and lng within [-180,180].
func (p Point) InRange() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
