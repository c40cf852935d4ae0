// README: Fee rule store; one query ranks zone > hub > city, then priority and id.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"knx/internal/infra"
	"knx/internal/schema"
)

type Store struct {
	db         infra.DBTX
	strategies schema.Strategies
}

func NewStore(db infra.DBTX, strategies schema.Strategies) *Store {
	return &Store{db: db, strategies: strategies}
}

// ResolveRule returns the winning active rule, or nil when none applies.
// zoneID and cityID of 0 disable those scopes. A zone rule only applies when
// the zone belongs to hubID.
func (s *Store) ResolveRule(ctx context.Context, hubID, zoneID, cityID int64) (*Rule, error) {
	row := s.db.QueryRow(ctx, `
		SELECT r.id, r.rule_name, r.city_id, r.hub_id, r.zone_id, r.fee_type,
		       r.flat_fee, r.base_fee, r.per_km_rate, r.percentage, r.min_fee, r.max_fee,
		       r.max_distance_km, r.min_subtotal_free_delivery, r.free_delivery_distance,
		       r.is_active, r.priority
		FROM delivery_fee_rules r
		WHERE r.is_active = TRUE
		  AND `+s.strategies.For("delivery_fee_rules").LivePredicate("r")+`
		  AND (
		        ($2::bigint > 0 AND r.zone_id = $2::bigint AND EXISTS (
		            SELECT 1 FROM delivery_zones z WHERE z.id = r.zone_id AND z.hub_id = $1::bigint))
		     OR (r.zone_id IS NULL AND r.hub_id = $1::bigint)
		     OR ($3::bigint > 0 AND r.zone_id IS NULL AND r.hub_id IS NULL AND r.city_id = $3::bigint)
		  )
		ORDER BY
		  CASE
		    WHEN $2::bigint > 0 AND r.zone_id = $2::bigint THEN 3
		    WHEN r.zone_id IS NULL AND r.hub_id = $1::bigint THEN 2
		    ELSE 1
		  END DESC,
		  r.priority DESC,
		  r.id DESC
		LIMIT 1`, hubID, zoneID, cityID)

	var r Rule
	var feeType string
	var nums [9]decimal.NullDecimal
	err := row.Scan(
		&r.ID, &r.Name, &r.CityID, &r.HubID, &r.ZoneID, &feeType,
		&nums[0], &nums[1], &nums[2], &nums[3], &nums[4], &nums[5],
		&nums[6], &nums[7], &nums[8],
		&r.IsActive, &r.Priority,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve fee rule for hub %d: %w", hubID, err)
	}
	r.FeeType = FeeType(feeType)
	r.FlatFee = nums[0].Decimal
	r.BaseFee = nums[1].Decimal
	r.PerKmRate = nums[2].Decimal
	r.Percentage = nums[3].Decimal
	r.MinFee = nums[4].Decimal
	r.MaxFee = nums[5].Decimal
	r.MaxDistanceKm = nums[6].Decimal
	r.MinSubtotalFreeDelivery = nums[7].Decimal
	r.FreeDeliveryDistance = nums[8].Decimal
	return &r, nil
}
