// README: Totals engine; composes tax, delivery, software fee and coupon into a quote and snapshot.
package totals

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"knx/internal/metrics"
	"knx/internal/modules/coupon"
	"knx/internal/modules/distance"
	"knx/internal/modules/hub"
	"knx/internal/modules/pricing"
	"knx/internal/modules/tax"
	"knx/internal/types"
)

const engineName = "totals"

var validate = validator.New()

type HubReader interface {
	Hub(ctx context.Context, id int64) (*hub.Hub, error)
}

type FeeCalculator interface {
	Calculate(ctx context.Context, req pricing.FeeRequest) pricing.FeeResult
}

type CouponResolver interface {
	Resolve(ctx context.Context, code string, subtotal decimal.Decimal, lock bool) coupon.Result
}

type Service struct {
	hubs     HubReader
	fees     FeeCalculator
	software SoftwareFeeReader
	coupons  CouponResolver
	eta      distance.ETAPolicy
	currency string
	now      func() time.Time
	log      *zap.Logger
}

type Deps struct {
	Hubs         HubReader
	Fees         FeeCalculator
	SoftwareFees SoftwareFeeReader
	Coupons      CouponResolver
	ETA          distance.ETAPolicy
	Currency     string
	Log          *zap.Logger
}

func NewService(d Deps) *Service {
	s := &Service{
		hubs:     d.Hubs,
		fees:     d.Fees,
		software: d.SoftwareFees,
		coupons:  d.Coupons,
		eta:      d.ETA,
		currency: d.Currency,
		now:      time.Now,
		log:      d.Log,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.currency == "" {
		s.currency = types.DefaultCurrency
	}
	if s.eta == (distance.ETAPolicy{}) {
		s.eta = distance.DefaultETAPolicy()
	}
	return s
}

// ResolveSoftwareFee never fails; lookup errors resolve to no fee.
func (s *Service) ResolveSoftwareFee(ctx context.Context, cityID int64, subtotal decimal.Decimal, hubID int64) SoftwareFee {
	if s.software == nil || cityID <= 0 {
		return SoftwareFee{CityID: cityID, HubID: hubID, FeeAmount: decimal.Zero}
	}
	rows, err := s.software.ActiveSoftwareFees(ctx, cityID, hubID)
	if err != nil {
		s.log.Error("software fee lookup", zap.Int64("city_id", cityID), zap.Error(err))
		return SoftwareFee{CityID: cityID, HubID: hubID, FeeAmount: decimal.Zero}
	}
	return PickSoftwareFee(rows, cityID, hubID)
}

// Quote prices an order. The returned snapshot holds every value needed to
// freeze the order without recomputation.
func (s *Service) Quote(ctx context.Context, p QuoteParams) (res QuoteResult) {
	defer func() {
		if r := recover(); r != nil {
			metrics.Panic(engineName)
			s.log.Error("quote panic", zap.Int64("hub_id", p.HubID), zap.Any("panic", r))
			res = fail(ErrInternal, "")
		}
		reason := "success"
		if !res.Success {
			reason = res.Error
		}
		metrics.Decision(engineName, reason)
	}()

	if err := validate.Struct(p); err != nil {
		return fail(ErrInvalidParams, err.Error())
	}
	if p.Subtotal.IsNegative() || p.Tip.IsNegative() {
		return fail(ErrInvalidParams, "subtotal and tip must be non-negative")
	}

	h, err := s.hubs.Hub(ctx, p.HubID)
	if errors.Is(err, hub.ErrNotFound) {
		return fail(ErrHubNotFound, "")
	}
	if err != nil {
		s.log.Error("quote hub lookup", zap.Int64("hub_id", p.HubID), zap.Error(err))
		return fail(ErrHubLookupFailed, "")
	}
	subtotal := types.Round2(p.Subtotal)
	tip := types.Round2(p.Tip)
	if subtotal.LessThan(h.MinOrder) {
		return fail(ErrMinOrderNotMet, h.MinOrder.StringFixed(2))
	}

	snap := Snapshot{
		Version:         SnapshotVersion,
		QuoteID:         uuid.NewString(),
		CreatedAt:       s.now().UTC(),
		HubID:           h.ID,
		CityID:          h.CityID,
		FulfillmentType: p.FulfillmentType,
		Currency:        s.currency,
		Subtotal:        subtotal,
		Tip:             tip,
		Discount:        decimal.Zero,
		DeliveryFee:     decimal.Zero,
	}

	snap.TaxDetail = tax.Compute(subtotal, h)
	snap.Tax = snap.TaxDetail.Amount

	if p.FulfillmentType == FulfillmentDelivery {
		if p.Customer.Missing() {
			return fail(ErrDeliveryUnavailable, string(distance.ReasonMissingCustomerCoords))
		}
		dist := distance.Between(h, p.Customer, s.eta)
		if !dist.OK {
			return fail(ErrDeliveryUnavailable, string(dist.Reason))
		}
		fee := s.fees.Calculate(ctx, pricing.FeeRequest{
			HubID:      h.ID,
			ZoneID:     p.ZoneID,
			CityID:     h.CityID,
			DistanceKm: dist.DistanceKm,
			Subtotal:   subtotal,
		})
		if !fee.OK {
			return fail(ErrDeliveryFee, string(fee.Reason))
		}
		snap.DeliveryFee = fee.Fee
		snap.Delivery = breakdown(p, dist, fee)
	}

	snap.SoftwareFeeDetail = s.ResolveSoftwareFee(ctx, h.CityID, subtotal, h.ID)
	snap.SoftwareFee = snap.SoftwareFeeDetail.FeeAmount

	var couponRes *coupon.Result
	if p.CouponCode != "" && s.coupons != nil {
		cr := s.coupons.Resolve(ctx, p.CouponCode, subtotal, false)
		couponRes = &cr
		if !cr.Valid {
			out := fail(ErrCouponInvalid, string(cr.Reason))
			out.Coupon = couponRes
			return out
		}
		snap.Discount = cr.DiscountAmount
		snap.Coupon = cr.Snapshot
	}

	snap.Total = Sum(snap.Subtotal, snap.Discount, snap.Tax, snap.DeliveryFee, snap.SoftwareFee, snap.Tip)
	t := snap.Totals()
	return QuoteResult{Success: true, Totals: &t, Snapshot: &snap, Coupon: couponRes}
}

// Sum is subtotal - discount + tax + delivery + software + tip, floored at zero.
func Sum(subtotal, discount, taxAmt, delivery, software, tip decimal.Decimal) decimal.Decimal {
	total := subtotal.Sub(discount).Add(taxAmt).Add(delivery).Add(software).Add(tip)
	return types.FloorZero(types.Round2(total))
}

func breakdown(p QuoteParams, dist distance.Result, fee pricing.FeeResult) *DeliveryBreakdown {
	b := &DeliveryBreakdown{
		Customer:   p.Customer,
		DistanceKm: dist.DistanceKm,
		DistanceMi: dist.DistanceMi,
		ETAMinutes: dist.ETAMinutes,
		Fee:        fee.Fee,
		IsFree:     fee.IsFree,
		Reason:     fee.Reason,
		RuleID:     fee.RuleID,
		RuleName:   fee.RuleName,
	}
	if p.ZoneID > 0 {
		z := p.ZoneID
		b.ZoneID = &z
	}
	if r := fee.Rule; r != nil {
		b.RuleScope = r.Scope()
		b.FeeType = r.FeeType
		b.FlatFee = decPtr(r.FlatFee)
		b.BaseFee = decPtr(r.BaseFee)
		b.PerKmRate = decPtr(r.PerKmRate)
		b.Percentage = decPtr(r.Percentage)
		b.MinFee = decPtr(r.MinFee)
		b.MaxFee = decPtr(r.MaxFee)
	}
	return b
}

func decPtr(d decimal.Decimal) *decimal.Decimal { return &d }
