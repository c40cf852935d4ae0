package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"knx/internal/events"
	"knx/internal/infra"
	"knx/internal/modules/availability"
	"knx/internal/modules/cart"
	"knx/internal/modules/coupon"
	"knx/internal/modules/coverage"
	"knx/internal/modules/totals"
	"knx/internal/types"
)

type CoverageChecker interface {
	Check(ctx context.Context, hubID int64, p types.Point) coverage.Result
}

type AvailabilityDecider interface {
	Decide(ctx context.Context, hubID int64) availability.Decision
}

type Quoter interface {
	Quote(ctx context.Context, p totals.QuoteParams) totals.QuoteResult
}

type CouponRedeemer interface {
	Redeem(ctx context.Context, repo coupon.Repository, code string, subtotal decimal.Decimal) (coupon.Result, error)
}

type CheckoutDeps struct {
	Coverage     CoverageChecker
	Availability AvailabilityDecider
	Quotes       Quoter
	Coupons      CouponRedeemer
}

// Checkout failure codes.
const (
	CheckoutCartNotFound      = "cart_not_found"
	CheckoutCartEmpty         = "cart_empty"
	CheckoutOutOfCoverage     = "out_of_coverage"
	CheckoutAvailabilityBlock = availability.BlockError
	CheckoutQuoteFailed       = "quote_failed"
	CheckoutCouponRejected    = "coupon_rejected"
	CheckoutCartChanged       = "cart_changed"
	CheckoutQuoteStale        = "quote_stale"
)

var checkoutValidate = validator.New()

type CheckoutCommand struct {
	SessionToken    string          `json:"session_token" validate:"required,max=128"`
	CustomerID      *string         `json:"-"`
	FulfillmentType string          `json:"fulfillment_type" validate:"oneof=delivery pickup"`
	Customer        types.Point     `json:"customer"`
	CouponCode      string          `json:"coupon_code" validate:"max=64"`
	Tip             decimal.Decimal `json:"tip"`
}

type CheckoutResult struct {
	Success      bool                   `json:"success"`
	Error        string                 `json:"error,omitempty"`
	Reason       string                 `json:"reason,omitempty"`
	OrderID      int64                  `json:"order_id,omitempty"`
	Status       Status                 `json:"status,omitempty"`
	Totals       *totals.Totals         `json:"totals,omitempty"`
	Availability *availability.Decision `json:"availability,omitempty"`
	Coverage     *coverage.Result       `json:"coverage,omitempty"`
	Coupon       *coupon.Result         `json:"coupon,omitempty"`
}

func checkoutFail(code, reason string) CheckoutResult {
	return CheckoutResult{Error: code, Reason: reason}
}

var (
	errCartChanged    = errors.New("cart changed during checkout")
	errCouponRejected = errors.New("coupon rejected at redemption")
	errQuoteStale     = errors.New("coupon discount changed since quote")
)

// Create places an order from the session's active cart. Business refusals
// come back as a CheckoutResult; the error is reserved for storage faults.
func (s *Service) Create(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error) {
	if err := checkoutValidate.Struct(cmd); err != nil {
		return CheckoutResult{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if cmd.Tip.IsNegative() {
		return CheckoutResult{}, fmt.Errorf("%w: negative tip", ErrBadRequest)
	}

	c, err := s.carts.Active(ctx, cmd.SessionToken, false)
	if errors.Is(err, cart.ErrNotFound) {
		return checkoutFail(CheckoutCartNotFound, ""), nil
	}
	if err != nil {
		return CheckoutResult{}, err
	}
	if len(c.Items) == 0 {
		return checkoutFail(CheckoutCartEmpty, ""), nil
	}

	var zoneID int64
	if cmd.FulfillmentType == totals.FulfillmentDelivery {
		cov := s.checkout.Coverage.Check(ctx, c.HubID, cmd.Customer)
		if !cov.OK {
			out := checkoutFail(CheckoutOutOfCoverage, string(cov.Reason))
			out.Coverage = &cov
			return out, nil
		}
		zoneID = cov.PricedZone()
	}

	decision := s.checkout.Availability.Decide(ctx, c.HubID)
	if !decision.CanOrder {
		out := checkoutFail(CheckoutAvailabilityBlock, string(decision.Reason))
		out.Availability = &decision
		return out, nil
	}

	quote := s.checkout.Quotes.Quote(ctx, totals.QuoteParams{
		HubID:           c.HubID,
		Subtotal:        c.Subtotal,
		Tip:             cmd.Tip,
		FulfillmentType: cmd.FulfillmentType,
		Customer:        cmd.Customer,
		ZoneID:          zoneID,
		CouponCode:      cmd.CouponCode,
	})
	if !quote.Success {
		out := checkoutFail(CheckoutQuoteFailed, quote.Error)
		out.Coupon = quote.Coupon
		return out, nil
	}
	frozen := quote.Snapshot.Freeze()

	var (
		o        *Order
		redeemed *coupon.Result
	)
	err = infra.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		carts := cart.NewStore(tx)
		locked, err := carts.Active(ctx, cmd.SessionToken, true)
		if errors.Is(err, cart.ErrNotFound) {
			return errCartChanged
		}
		if err != nil {
			return err
		}
		if locked.ID != c.ID || !locked.Subtotal.Equal(c.Subtotal) {
			return errCartChanged
		}

		if cmd.CouponCode != "" {
			res, err := s.checkout.Coupons.Redeem(ctx, coupon.NewStore(tx), cmd.CouponCode, frozen.Subtotal)
			if err != nil {
				return err
			}
			redeemed = &res
			if !res.Valid {
				return errCouponRejected
			}
			if !res.DiscountAmount.Equal(frozen.Discount) {
				return errQuoteStale
			}
		}

		totalsRaw, err := json.Marshal(frozen)
		if err != nil {
			return err
		}
		cartRaw, err := json.Marshal(CartSnapshot{
			CartID:       locked.ID,
			SessionToken: locked.SessionToken,
			HubID:        locked.HubID,
			Items:        locked.Items,
			Subtotal:     locked.Subtotal,
			DetachedAt:   s.now().UTC(),
		})
		if err != nil {
			return err
		}
		ts, cs := string(totalsRaw), string(cartRaw)
		customer := cmd.CustomerID
		if customer == nil {
			customer = locked.CustomerID
		}
		o = &Order{
			HubID:           locked.HubID,
			CustomerID:      customer,
			SessionToken:    locked.SessionToken,
			CartID:          &locked.ID,
			Status:          StatusPlaced,
			FulfillmentType: cmd.FulfillmentType,
			TotalsSnapshot:  &ts,
			CartSnapshot:    &cs,
			Total:           frozen.Total,
		}
		store := NewStore(tx)
		if err := store.Create(ctx, o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if err := carts.MarkConverted(ctx, locked.ID); err != nil {
			return err
		}
		return store.AppendEvent(ctx, &Event{
			OrderID:    o.ID,
			FromStatus: StatusNone,
			ToStatus:   StatusPlaced,
			ActorType:  ActorCustomer,
			ActorID:    customer,
			CreatedAt:  s.now(),
		})
	})
	switch {
	case errors.Is(err, errCartChanged), errors.Is(err, cart.ErrConverted):
		return checkoutFail(CheckoutCartChanged, ""), nil
	case errors.Is(err, errCouponRejected):
		out := checkoutFail(CheckoutCouponRejected, string(redeemed.Reason))
		out.Coupon = redeemed
		return out, nil
	case errors.Is(err, errQuoteStale):
		return checkoutFail(CheckoutQuoteStale, ""), nil
	case err != nil:
		return CheckoutResult{}, err
	}

	s.log.Info("order placed",
		zap.Int64("order_id", o.ID),
		zap.Int64("hub_id", o.HubID),
		zap.String("total", o.Total.StringFixed(2)),
	)
	t := frozen.Totals()
	s.publish(ctx, events.New(events.TypeOrderPlaced, o.ID, map[string]any{
		"order_id":         o.ID,
		"hub_id":           o.HubID,
		"fulfillment_type": o.FulfillmentType,
		"total":            t.Total,
		"currency":         t.Currency,
		"quote_id":         frozen.QuoteID,
	}))
	return CheckoutResult{Success: true, OrderID: o.ID, Status: o.Status, Totals: &t, Coupon: redeemed}, nil
}
