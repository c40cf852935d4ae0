// README: Fee engine resolves the applicable rule and computes the delivery fee.
package pricing

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"knx/internal/metrics"
	"knx/internal/modules/hub"
	"knx/internal/types"
)

const engineName = "fee"

type RuleResolver interface {
	ResolveRule(ctx context.Context, hubID, zoneID, cityID int64) (*Rule, error)
}

type HubReader interface {
	Hub(ctx context.Context, id int64) (*hub.Hub, error)
}

type Service struct {
	rules RuleResolver
	hubs  HubReader
	log   *zap.Logger
}

func NewService(rules RuleResolver, hubs HubReader, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{rules: rules, hubs: hubs, log: log}
}

// ResolveRule fills in the hub's city when cityID is 0.
func (s *Service) ResolveRule(ctx context.Context, hubID, zoneID, cityID int64) (*Rule, error) {
	if cityID <= 0 && s.hubs != nil {
		h, err := s.hubs.Hub(ctx, hubID)
		switch {
		case err == nil:
			cityID = h.CityID
		case !errors.Is(err, hub.ErrNotFound):
			return nil, err
		}
	}
	return s.rules.ResolveRule(ctx, hubID, zoneID, cityID)
}

func (s *Service) Calculate(ctx context.Context, req FeeRequest) (res FeeResult) {
	defer func() {
		if r := recover(); r != nil {
			metrics.Panic(engineName)
			s.log.Error("fee panic", zap.Int64("hub_id", req.HubID), zap.Any("panic", r))
			res = FeeResult{Reason: ReasonInternalError}
		}
		metrics.Decision(engineName, string(res.Reason))
	}()

	if req.HubID <= 0 || req.DistanceKm < 0 || req.Subtotal.IsNegative() {
		return FeeResult{Reason: ReasonInvalidInput}
	}
	rule, err := s.ResolveRule(ctx, req.HubID, req.ZoneID, req.CityID)
	if err != nil {
		s.log.Error("fee rule lookup", zap.Int64("hub_id", req.HubID), zap.Error(err))
		return FeeResult{Reason: ReasonLookupFailed}
	}
	return Compute(rule, req.DistanceKm, req.Subtotal)
}

// Compute applies rule to the inputs: max distance, free by subtotal, free by
// distance, then the fee formula clamped to [min_fee, max_fee].
func Compute(rule *Rule, distanceKm float64, subtotal decimal.Decimal) FeeResult {
	if distanceKm < 0 || subtotal.IsNegative() {
		return FeeResult{Reason: ReasonInvalidInput}
	}
	if rule == nil {
		return FeeResult{Reason: ReasonNoRuleFound}
	}
	id, name := rule.ID, rule.Name
	res := FeeResult{RuleID: &id, RuleName: &name, Rule: rule, Fee: decimal.Zero}
	dist := decimal.NewFromFloat(distanceKm)

	if rule.MaxDistanceKm.IsPositive() && dist.GreaterThan(rule.MaxDistanceKm) {
		res.Reason = ReasonMaxDistanceExceeded
		return res
	}
	if rule.MinSubtotalFreeDelivery.IsPositive() && subtotal.GreaterThanOrEqual(rule.MinSubtotalFreeDelivery) {
		res.OK, res.IsFree, res.Reason = true, true, ReasonFreeDeliverySubtotal
		return res
	}
	if rule.FreeDeliveryDistance.IsPositive() && dist.LessThanOrEqual(rule.FreeDeliveryDistance) {
		res.OK, res.IsFree, res.Reason = true, true, ReasonFreeDeliveryDistance
		return res
	}

	var fee decimal.Decimal
	switch rule.FeeType {
	case FeeFlat:
		fee = rule.FlatFee
	case FeeDistanceBased, FeeTiered:
		fee = rule.BaseFee.Add(dist.Mul(rule.PerKmRate))
	case FeeSubtotalBased:
		fee = subtotal.Mul(rule.Percentage).Div(decimal.NewFromInt(100))
	default:
		res.Reason = ReasonUnknownFeeType
		return res
	}

	if rule.MinFee.IsPositive() && fee.LessThan(rule.MinFee) {
		fee = rule.MinFee
	}
	if rule.MaxFee.IsPositive() && fee.GreaterThan(rule.MaxFee) {
		fee = rule.MaxFee
	}
	res.Fee = types.FloorZero(types.Round2(fee))
	res.OK = true
	res.Reason = ReasonFeeCalculated
	return res
}
