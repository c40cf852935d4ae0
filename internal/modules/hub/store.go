// README: Hub/City store backed by PostgreSQL; soft-deleted rows are filtered per resolved schema strategy.
package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"knx/internal/infra"
	"knx/internal/schema"
)

type Store struct {
	db         infra.DBTX
	strategies schema.Strategies
}

// NewStore builds a store; strategies may be nil, in which case no row is
// treated as soft-deleted.
func NewStore(db infra.DBTX, strategies schema.Strategies) *Store {
	return &Store{db: db, strategies: strategies}
}

const hubColumns = `h.id, h.city_id, COALESCE(h.name, ''), COALESCE(h.status, ''), COALESCE(h.timezone, ''),
	COALESCE(h.closure_until, ''), COALESCE(h.closure_reason, ''),
	COALESCE(h.hours_sunday, ''), COALESCE(h.hours_monday, ''), COALESCE(h.hours_tuesday, ''),
	COALESCE(h.hours_wednesday, ''), COALESCE(h.hours_thursday, ''), COALESCE(h.hours_friday, ''),
	COALESCE(h.hours_saturday, ''),
	h.latitude, h.longitude, h.delivery_radius, COALESCE(h.delivery_zone_type, 'radius'),
	h.tax_rate, h.min_order`

func scanHub(row pgx.Row) (*Hub, error) {
	var h Hub
	var radius, taxRate, minOrder decimal.NullDecimal
	err := row.Scan(
		&h.ID, &h.CityID, &h.Name, &h.Status, &h.Timezone,
		&h.ClosureUntil, &h.ClosureReason,
		&h.Hours[0], &h.Hours[1], &h.Hours[2], &h.Hours[3], &h.Hours[4], &h.Hours[5], &h.Hours[6],
		&h.Lat, &h.Lng, &radius, &h.DeliveryZoneType,
		&taxRate, &minOrder,
	)
	if err != nil {
		return nil, err
	}
	h.DeliveryRadius = radius.Decimal
	h.TaxRate = taxRate.Decimal
	h.MinOrder = minOrder.Decimal
	return &h, nil
}

func (s *Store) Hub(ctx context.Context, id int64) (*Hub, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+hubColumns+`
		FROM hubs h
		WHERE h.id = $1 AND `+s.strategies.For("hubs").LivePredicate("h"), id)
	h, err := scanHub(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load hub %d: %w", id, err)
	}
	return h, nil
}

func (s *Store) City(ctx context.Context, id int64) (*City, error) {
	var c City
	err := s.db.QueryRow(ctx, `
		SELECT c.id, COALESCE(c.name, ''), COALESCE(c.status, ''), COALESCE(c.is_operational, FALSE)
		FROM cities c
		WHERE c.id = $1 AND `+s.strategies.For("cities").LivePredicate("c"), id,
	).Scan(&c.ID, &c.Name, &c.Status, &c.IsOperational)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load city %d: %w", id, err)
	}
	return &c, nil
}

func (s *Store) ListByCity(ctx context.Context, cityID int64) ([]*Hub, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+hubColumns+`
		FROM hubs h
		WHERE h.city_id = $1 AND `+s.strategies.For("hubs").LivePredicate("h")+`
		ORDER BY h.id ASC`, cityID)
	if err != nil {
		return nil, fmt.Errorf("list hubs for city %d: %w", cityID, err)
	}
	defer rows.Close()

	var out []*Hub
	for rows.Next() {
		h, err := scanHub(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ListActive returns live active hubs that have coordinates.
func (s *Store) ListActive(ctx context.Context) ([]*Hub, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+hubColumns+`
		FROM hubs h
		WHERE h.status = 'active'
		  AND h.latitude IS NOT NULL AND h.longitude IS NOT NULL
		  AND `+s.strategies.For("hubs").LivePredicate("h")+`
		ORDER BY h.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active hubs: %w", err)
	}
	defer rows.Close()

	var out []*Hub
	for rows.Next() {
		h, err := scanHub(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// UpdateHours overwrites all seven hours_* columns at once.
func (s *Store) UpdateHours(ctx context.Context, id int64, week WeekHours) error {
	sets := make([]string, 0, len(Columns))
	args := make([]any, 0, len(Columns)+1)
	for day, col := range Columns {
		args = append(args, week[day])
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	args = append(args, id)
	tag, err := s.db.Exec(ctx,
		`UPDATE hubs SET `+strings.Join(sets, ", ")+fmt.Sprintf(` WHERE id = $%d`, len(args)),
		args...)
	if err != nil {
		return fmt.Errorf("update hours for hub %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetClosure records or clears a temporary closure.
func (s *Store) SetClosure(ctx context.Context, id int64, until, reason string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE hubs
		SET closure_until = NULLIF($1, ''), closure_reason = NULLIF($2, '')
		WHERE id = $3`, until, reason, id)
	if err != nil {
		return fmt.Errorf("set closure for hub %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
