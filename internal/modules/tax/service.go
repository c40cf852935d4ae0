// README: Tax engine; applies the hub's tax_rate to a caller-supplied base.
package tax

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"knx/internal/metrics"
	"knx/internal/modules/hub"
	"knx/internal/types"
)

const SourceHubSetting = "hub_setting"

type Result struct {
	Applied bool            `json:"applied"`
	Amount  decimal.Decimal `json:"amount"`
	Rate    decimal.Decimal `json:"rate"`
	Source  string          `json:"source"`
	HubID   int64           `json:"hub_id"`
}

type HubReader interface {
	Hub(ctx context.Context, id int64) (*hub.Hub, error)
}

type Service struct {
	hubs HubReader
	log  *zap.Logger
}

func NewService(hubs HubReader, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{hubs: hubs, log: log}
}

// Resolve never fails: a missing or inactive hub, or a non-positive base,
// yields zero tax.
func (s *Service) Resolve(ctx context.Context, base decimal.Decimal, hubID int64) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			metrics.Panic("tax")
			s.log.Error("tax panic", zap.Int64("hub_id", hubID), zap.Any("panic", r))
			res = record(notApplied(hubID))
		}
	}()

	if !base.IsPositive() || hubID <= 0 {
		return record(notApplied(hubID))
	}
	h, err := s.hubs.Hub(ctx, hubID)
	if err != nil {
		if !errors.Is(err, hub.ErrNotFound) {
			s.log.Error("tax hub lookup", zap.Int64("hub_id", hubID), zap.Error(err))
		}
		return record(notApplied(hubID))
	}
	return record(Compute(base, h))
}

// Compute is round(base * rate / 100, 2) floored at zero.
func Compute(base decimal.Decimal, h *hub.Hub) Result {
	if h == nil {
		return notApplied(0)
	}
	if !base.IsPositive() || !h.Active() || !h.TaxRate.IsPositive() {
		return notApplied(h.ID)
	}
	amount := types.FloorZero(types.Round2(base.Mul(h.TaxRate).Div(decimal.NewFromInt(100))))
	return Result{
		Applied: amount.IsPositive(),
		Amount:  amount,
		Rate:    h.TaxRate,
		Source:  SourceHubSetting,
		HubID:   h.ID,
	}
}

func notApplied(hubID int64) Result {
	return Result{Amount: decimal.Zero, Rate: decimal.Zero, Source: SourceHubSetting, HubID: hubID}
}

func record(r Result) Result {
	reason := "not_applied"
	if r.Applied {
		reason = "applied"
	}
	metrics.Decision("tax", reason)
	return r
}
