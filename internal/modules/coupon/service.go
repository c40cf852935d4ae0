// README: Coupon engine; validation cascade, discount calculation and locked redemption.
package coupon

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"knx/internal/metrics"
	"knx/internal/types"
)

const engineName = "coupon"

type Finder interface {
	FindByCode(ctx context.Context, code string, lock bool) (*Coupon, error)
}

// Repository is a transaction-bound store used for redemption.
type Repository interface {
	Finder
	IncrementUsage(ctx context.Context, id int64) error
}

type Service struct {
	store Finder
	now   func() time.Time
	log   *zap.Logger
}

func NewService(store Finder, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, now: time.Now, log: log}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Resolve validates code against subtotal. lock is forwarded to the store,
// which rejects it outside a transaction.
func (s *Service) Resolve(ctx context.Context, code string, subtotal decimal.Decimal, lock bool) Result {
	return s.resolveWith(ctx, s.store, code, subtotal, lock)
}

func (s *Service) resolveWith(ctx context.Context, f Finder, code string, subtotal decimal.Decimal, lock bool) (res Result) {
	defer func() { metrics.Decision(engineName, string(res.Reason)) }()

	code = strings.TrimSpace(code)
	if code == "" {
		return reject(ReasonInvalid)
	}
	c, err := f.FindByCode(ctx, code, lock)
	if errors.Is(err, ErrNotFound) {
		return reject(ReasonInvalid)
	}
	if err != nil {
		s.log.Error("coupon lookup", zap.String("code", code), zap.Error(err))
		return reject(ReasonLookupFailed)
	}
	return Evaluate(c, subtotal, s.now())
}

// Redeem re-validates code under a row lock and increments its usage. repo
// must be bound to the caller's transaction. A rejected coupon is returned as
// a Result, not an error.
func (s *Service) Redeem(ctx context.Context, repo Repository, code string, subtotal decimal.Decimal) (Result, error) {
	res := s.resolveWith(ctx, repo, code, subtotal, true)
	if res.Reason == ReasonLookupFailed {
		return res, ErrLookupFailed
	}
	if !res.Valid {
		return res, nil
	}
	if err := repo.IncrementUsage(ctx, res.Snapshot.CouponID); err != nil {
		if errors.Is(err, ErrLimitReached) {
			return reject(ReasonLimitReached), nil
		}
		return res, err
	}
	return res, nil
}

// Evaluate runs the validation cascade on a loaded coupon.
func Evaluate(c *Coupon, subtotal decimal.Decimal, now time.Time) Result {
	if c == nil {
		return reject(ReasonInvalid)
	}
	if c.Status != StatusActive {
		return reject(ReasonInactive)
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return reject(ReasonNotStarted)
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return reject(ReasonExpired)
	}
	if c.UsageLimit != nil && *c.UsageLimit > 0 && c.UsedCount >= *c.UsageLimit {
		return reject(ReasonLimitReached)
	}
	if c.MinSubtotal.Valid && subtotal.LessThan(c.MinSubtotal.Decimal) {
		return reject(ReasonMinSubtotal)
	}
	amount, ok := Discount(c.Type, c.Value, subtotal)
	if !ok {
		return reject(ReasonInvalidType)
	}
	return Result{
		Valid:          true,
		Reason:         ReasonValid,
		Message:        messages[ReasonValid],
		DiscountAmount: amount,
		Snapshot: &Snapshot{
			CouponID:  c.ID,
			Code:      c.Code,
			Type:      c.Type,
			Value:     c.Value,
			Amount:    amount,
			AppliedAt: now.UTC(),
		},
	}
}

var hundred = decimal.NewFromInt(100)

// Discount computes the discount for a coupon type, clamped to [0, subtotal].
// Percent values are clamped to [0, 100] first.
func Discount(couponType string, value, subtotal decimal.Decimal) (decimal.Decimal, bool) {
	value = decimal.Max(value, decimal.Zero)
	subtotal = decimal.Max(subtotal, decimal.Zero)
	var amount decimal.Decimal
	switch couponType {
	case TypePercent:
		pct := decimal.Min(value, hundred)
		amount = subtotal.Mul(pct).Div(hundred)
	case TypeFixed:
		amount = value
	default:
		return decimal.Zero, false
	}
	return types.Round2(types.Clamp(amount, decimal.Zero, subtotal)), true
}
