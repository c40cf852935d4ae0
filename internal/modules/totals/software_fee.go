package totals

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"knx/internal/infra"
)

const (
	ScopeCity = "city"
	ScopeHub  = "hub"
)

// SoftwareFee is the resolved platform fee for an order.
type SoftwareFee struct {
	Applied   bool            `json:"applied"`
	Scope     string          `json:"scope"`
	CityID    int64           `json:"city_id"`
	HubID     int64           `json:"hub_id"`
	FeeAmount decimal.Decimal `json:"fee_amount"`
	Label     string          `json:"label"`
}

type SoftwareFeeRow struct {
	ID        int64
	Scope     string
	CityID    int64
	HubID     int64
	FeeAmount decimal.Decimal
	Label     string
}

type SoftwareFeeReader interface {
	// ActiveSoftwareFees returns active rows for the city, both city-scoped
	// (hub_id = 0) and scoped to hubID.
	ActiveSoftwareFees(ctx context.Context, cityID, hubID int64) ([]SoftwareFeeRow, error)
}

// PickSoftwareFee prefers a hub-scoped row over the city-scoped one; no row
// means no fee.
func PickSoftwareFee(rows []SoftwareFeeRow, cityID, hubID int64) SoftwareFee {
	var cityRow, hubRow *SoftwareFeeRow
	for i := range rows {
		r := &rows[i]
		if r.CityID != cityID {
			continue
		}
		switch {
		case hubID > 0 && r.HubID == hubID && hubRow == nil:
			hubRow = r
		case r.HubID == 0 && cityRow == nil:
			cityRow = r
		}
	}
	pick, scope := hubRow, ScopeHub
	if pick == nil {
		pick, scope = cityRow, ScopeCity
	}
	if pick == nil || pick.FeeAmount.IsNegative() {
		return SoftwareFee{CityID: cityID, HubID: hubID, FeeAmount: decimal.Zero}
	}
	return SoftwareFee{
		Applied:   pick.FeeAmount.IsPositive(),
		Scope:     scope,
		CityID:    cityID,
		HubID:     hubID,
		FeeAmount: pick.FeeAmount.Round(2),
		Label:     pick.Label,
	}
}

type SoftwareFeeStore struct {
	db infra.DBTX
}

func NewSoftwareFeeStore(db infra.DBTX) *SoftwareFeeStore {
	return &SoftwareFeeStore{db: db}
}

func (s *SoftwareFeeStore) ActiveSoftwareFees(ctx context.Context, cityID, hubID int64) ([]SoftwareFeeRow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, scope, city_id, hub_id, fee_amount, label
		FROM software_fees
		WHERE status = 'active' AND city_id = $1 AND (hub_id = 0 OR hub_id = $2)
		ORDER BY hub_id DESC, id DESC`, cityID, hubID)
	if err != nil {
		return nil, fmt.Errorf("load software fees for city %d: %w", cityID, err)
	}
	defer rows.Close()

	var out []SoftwareFeeRow
	for rows.Next() {
		var r SoftwareFeeRow
		if err := rows.Scan(&r.ID, &r.Scope, &r.CityID, &r.HubID, &r.FeeAmount, &r.Label); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
