// README: City and Hub rows as the decision engines read them.
package hub

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"knx/internal/types"
)

var (
	ErrNotFound   = errors.New("hub not found")
	ErrBadRequest = errors.New("bad request")
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

const (
	ZoneTypeRadius  = "radius"
	ZoneTypePolygon = "polygon"
)

type City struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Status        string `json:"status"`
	IsOperational bool   `json:"is_operational"`
}

func (c *City) Active() bool { return c != nil && c.Status == StatusActive }

// WeekHours holds the raw JSON interval column for each weekday, indexed by
// time.Weekday (Sunday = 0).
type WeekHours [7]string

func (w WeekHours) Day(d time.Weekday) string { return w[d] }

// Columns maps each weekday to its hours_* column name.
var Columns = [7]string{
	time.Sunday:    "hours_sunday",
	time.Monday:    "hours_monday",
	time.Tuesday:   "hours_tuesday",
	time.Wednesday: "hours_wednesday",
	time.Thursday:  "hours_thursday",
	time.Friday:    "hours_friday",
	time.Saturday:  "hours_saturday",
}

type Hub struct {
	ID            int64     `json:"id"`
	CityID        int64     `json:"city_id"`
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	Timezone      string    `json:"timezone"`
	ClosureUntil  string    `json:"closure_until,omitempty"`
	ClosureReason string    `json:"closure_reason,omitempty"`
	Hours         WeekHours `json:"-"`
	Lat           *float64  `json:"latitude,omitempty"`
	Lng           *float64  `json:"longitude,omitempty"`
	// DeliveryRadius is in miles.
	DeliveryRadius   decimal.Decimal `json:"delivery_radius"`
	DeliveryZoneType string          `json:"delivery_zone_type"`
	TaxRate          decimal.Decimal `json:"tax_rate"`
	MinOrder         decimal.Decimal `json:"min_order"`
}

func (h *Hub) Active() bool { return h != nil && h.Status == StatusActive }

// Location returns the hub coordinates; ok is false when either is unset or zero.
func (h *Hub) Location() (types.Point, bool) {
	if h == nil || h.Lat == nil || h.Lng == nil {
		return types.Point{}, false
	}
	p := types.Point{Lat: *h.Lat, Lng: *h.Lng}
	if p.Missing() {
		return types.Point{}, false
	}
	return p, true
}

// RadiusMiles returns the configured delivery radius; ok is false when unset.
func (h *Hub) RadiusMiles() (float64, bool) {
	if h == nil || !h.DeliveryRadius.IsPositive() {
		return 0, false
	}
	return h.DeliveryRadius.InexactFloat64(), true
}
