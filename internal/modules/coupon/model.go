// README: Coupon rows, validation reasons and the snapshot embedded into orders.
package coupon

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("coupon not found")
	ErrLockWithoutTx = errors.New("coupon row lock requested outside a transaction")
	ErrLimitReached  = errors.New("coupon usage limit reached")
	ErrLookupFailed  = errors.New("coupon lookup failed")
)

const (
	TypePercent = "percent"
	TypeFixed   = "fixed"

	StatusActive   = "active"
	StatusInactive = "inactive"
)

type Reason string

const (
	ReasonValid        Reason = "valid"
	ReasonInvalid      Reason = "invalid"
	ReasonInactive     Reason = "inactive"
	ReasonNotStarted   Reason = "not_started"
	ReasonExpired      Reason = "expired"
	ReasonLimitReached Reason = "limit_reached"
	ReasonMinSubtotal  Reason = "min_subtotal"
	ReasonInvalidType  Reason = "invalid_type"
	ReasonLookupFailed Reason = "lookup_failed"
)

var messages = map[Reason]string{
	ReasonValid:        "Coupon applied.",
	ReasonInvalid:      "This coupon code is not valid.",
	ReasonInactive:     "This coupon is no longer active.",
	ReasonNotStarted:   "This coupon is not active yet.",
	ReasonExpired:      "This coupon has expired.",
	ReasonLimitReached: "This coupon has reached its usage limit.",
	ReasonMinSubtotal:  "Your order does not meet this coupon's minimum.",
	ReasonInvalidType:  "This coupon is misconfigured.",
	ReasonLookupFailed: "Coupons are unavailable right now.",
}

type Coupon struct {
	ID          int64               `json:"id"`
	Code        string              `json:"code"`
	Type        string              `json:"type"`
	Value       decimal.Decimal     `json:"value"`
	MinSubtotal decimal.NullDecimal `json:"min_subtotal"`
	Status      string              `json:"status"`
	StartsAt    *time.Time          `json:"starts_at"`
	ExpiresAt   *time.Time          `json:"expires_at"`
	// UsageLimit of nil or <= 0 means unlimited.
	UsageLimit *int `json:"usage_limit"`
	UsedCount  int  `json:"used_count"`
}

// Snapshot is embedded in the order totals when a coupon is applied.
type Snapshot struct {
	CouponID  int64           `json:"coupon_id"`
	Code      string          `json:"code"`
	Type      string          `json:"type"`
	Value     decimal.Decimal `json:"value"`
	Amount    decimal.Decimal `json:"amount"`
	AppliedAt time.Time       `json:"applied_at"`
}

type Result struct {
	Valid          bool            `json:"valid"`
	Reason         Reason          `json:"reason"`
	Message        string          `json:"message"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Snapshot       *Snapshot       `json:"snapshot"`
}

func reject(reason Reason) Result {
	return Result{Reason: reason, Message: messages[reason], DiscountAmount: decimal.Zero}
}
