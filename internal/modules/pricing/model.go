// README: Delivery fee rule definition and fee result contract.
package pricing

import "github.com/shopspring/decimal"

type FeeType string

const (
	FeeFlat          FeeType = "flat"
	FeeDistanceBased FeeType = "distance_based"
	FeeSubtotalBased FeeType = "subtotal_based"
	// FeeTiered is evaluated exactly like FeeDistanceBased.
	FeeTiered FeeType = "tiered"
)

type Reason string

const (
	ReasonFeeCalculated        Reason = "FEE_CALCULATED"
	ReasonFreeDeliverySubtotal Reason = "FREE_DELIVERY_SUBTOTAL"
	ReasonFreeDeliveryDistance Reason = "FREE_DELIVERY_DISTANCE"
	ReasonInvalidInput         Reason = "INVALID_INPUT"
	ReasonNoRuleFound          Reason = "NO_RULE_FOUND"
	ReasonMaxDistanceExceeded  Reason = "MAX_DISTANCE_EXCEEDED"
	ReasonUnknownFeeType       Reason = "UNKNOWN_FEE_TYPE"
	ReasonLookupFailed         Reason = "RULE_LOOKUP_FAILED"
	ReasonInternalError        Reason = "INTERNAL_ERROR"
)

// Rule is one delivery_fee_rules row. Scope is implied by which of ZoneID,
// HubID and CityID is set; zero-valued bounds and thresholds are unset.
type Rule struct {
	ID                      int64           `json:"id"`
	Name                    string          `json:"rule_name"`
	CityID                  *int64          `json:"city_id"`
	HubID                   *int64          `json:"hub_id"`
	ZoneID                  *int64          `json:"zone_id"`
	FeeType                 FeeType         `json:"fee_type"`
	FlatFee                 decimal.Decimal `json:"flat_fee"`
	BaseFee                 decimal.Decimal `json:"base_fee"`
	PerKmRate               decimal.Decimal `json:"per_km_rate"`
	Percentage              decimal.Decimal `json:"percentage"`
	MinFee                  decimal.Decimal `json:"min_fee"`
	MaxFee                  decimal.Decimal `json:"max_fee"`
	MaxDistanceKm           decimal.Decimal `json:"max_distance_km"`
	MinSubtotalFreeDelivery decimal.Decimal `json:"min_subtotal_free_delivery"`
	FreeDeliveryDistance    decimal.Decimal `json:"free_delivery_distance"`
	IsActive                bool            `json:"is_active"`
	Priority                int             `json:"priority"`
}

// Scope names the level a rule was defined at.
func (r *Rule) Scope() string {
	switch {
	case r.ZoneID != nil:
		return "zone"
	case r.HubID != nil:
		return "hub"
	default:
		return "city"
	}
}

type FeeRequest struct {
	HubID      int64
	ZoneID     int64
	CityID     int64
	DistanceKm float64
	Subtotal   decimal.Decimal
}

// FeeResult keeps the public keys ok, fee, rule_id, rule_name, reason and is_free.
type FeeResult struct {
	OK       bool            `json:"ok"`
	Fee      decimal.Decimal `json:"fee"`
	RuleID   *int64          `json:"rule_id"`
	RuleName *string         `json:"rule_name"`
	Reason   Reason          `json:"reason"`
	IsFree   bool            `json:"is_free"`

	Rule *Rule `json:"-"`
}
