// README: Quote parameters, totals and the versioned snapshot frozen into orders.
package totals

import (
	"time"

	"github.com/shopspring/decimal"

	"knx/internal/modules/coupon"
	"knx/internal/modules/pricing"
	"knx/internal/modules/tax"
	"knx/internal/types"
)

// SnapshotVersion is bumped whenever keys are added. Keys are never removed.
const SnapshotVersion = 1

const (
	FulfillmentDelivery = "delivery"
	FulfillmentPickup   = "pickup"
)

// Quote error codes.
const (
	ErrInvalidParams       = "invalid_params"
	ErrHubNotFound         = "hub_not_found"
	ErrHubLookupFailed     = "hub_lookup_failed"
	ErrMinOrderNotMet      = "min_order_not_met"
	ErrDeliveryUnavailable = "delivery_unavailable"
	ErrDeliveryFee         = "delivery_fee_unavailable"
	ErrCouponInvalid       = "coupon_invalid"
	ErrInternal            = "internal_error"
)

type QuoteParams struct {
	HubID           int64           `json:"hub_id" validate:"gt=0"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tip             decimal.Decimal `json:"tip"`
	FulfillmentType string          `json:"fulfillment_type" validate:"oneof=delivery pickup"`
	Customer        types.Point     `json:"customer"`
	CouponCode      string          `json:"coupon_code" validate:"max=64"`

	// ZoneID is the zone coverage matched for Customer. Callers set it from
	// coverage.Result.PricedZone; it is never read from a request body.
	ZoneID int64 `json:"-" validate:"gte=0"`
}

type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	Tax         decimal.Decimal `json:"tax"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	SoftwareFee decimal.Decimal `json:"software_fee"`
	Tip         decimal.Decimal `json:"tip"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
}

// DeliveryBreakdown records every input and derived value of the delivery fee.
type DeliveryBreakdown struct {
	Customer   types.Point      `json:"customer"`
	ZoneID     *int64           `json:"zone_id"`
	DistanceKm float64          `json:"distance_km"`
	DistanceMi float64          `json:"distance_mi"`
	ETAMinutes int              `json:"eta_minutes"`
	Fee        decimal.Decimal  `json:"fee"`
	IsFree     bool             `json:"is_free"`
	Reason     pricing.Reason   `json:"reason"`
	RuleID     *int64           `json:"rule_id"`
	RuleName   *string          `json:"rule_name"`
	RuleScope  string           `json:"rule_scope,omitempty"`
	FeeType    pricing.FeeType  `json:"fee_type,omitempty"`
	FlatFee    *decimal.Decimal `json:"flat_fee,omitempty"`
	BaseFee    *decimal.Decimal `json:"base_fee,omitempty"`
	PerKmRate  *decimal.Decimal `json:"per_km_rate,omitempty"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"`
	MinFee     *decimal.Decimal `json:"min_fee,omitempty"`
	MaxFee     *decimal.Decimal `json:"max_fee,omitempty"`
}

// Snapshot is persisted verbatim into orders.totals_snapshot.
type Snapshot struct {
	Version          int       `json:"version"`
	QuoteID          string    `json:"quote_id"`
	IsSnapshotLocked bool      `json:"is_snapshot_locked"`
	IsCartDetached   bool      `json:"is_cart_detached"`
	CreatedAt        time.Time `json:"created_at"`

	HubID           int64  `json:"hub_id"`
	CityID          int64  `json:"city_id"`
	FulfillmentType string `json:"fulfillment_type"`
	Currency        string `json:"currency"`

	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	Tax         decimal.Decimal `json:"tax"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	SoftwareFee decimal.Decimal `json:"software_fee"`
	Tip         decimal.Decimal `json:"tip"`
	Total       decimal.Decimal `json:"total"`

	TaxDetail         tax.Result         `json:"tax_detail"`
	SoftwareFeeDetail SoftwareFee        `json:"software_fee_detail"`
	Coupon            *coupon.Snapshot   `json:"coupon"`
	Delivery          *DeliveryBreakdown `json:"delivery,omitempty"`
}

// Freeze returns a copy marked as locked and detached from the cart.
func (s Snapshot) Freeze() Snapshot {
	s.IsSnapshotLocked = true
	s.IsCartDetached = true
	return s
}

// Totals returns the money fields of the snapshot.
func (s Snapshot) Totals() Totals {
	return Totals{
		Subtotal:    s.Subtotal,
		Discount:    s.Discount,
		Tax:         s.Tax,
		DeliveryFee: s.DeliveryFee,
		SoftwareFee: s.SoftwareFee,
		Tip:         s.Tip,
		Total:       s.Total,
		Currency:    s.Currency,
	}
}

type QuoteResult struct {
	Success  bool           `json:"success"`
	Error    string         `json:"error,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Totals   *Totals        `json:"totals,omitempty"`
	Snapshot *Snapshot      `json:"snapshot,omitempty"`
	Coupon   *coupon.Result `json:"coupon,omitempty"`
}

func fail(code, reason string) QuoteResult {
	return QuoteResult{Error: code, Reason: reason}
}
