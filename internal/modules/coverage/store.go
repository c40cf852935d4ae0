// README: Delivery zone store backed by PostgreSQL.
package coverage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"knx/internal/infra"
	"knx/internal/schema"
)

var ErrZoneNotFound = errors.New("zone not found")

type Store struct {
	db         infra.DBTX
	strategies schema.Strategies
}

func NewStore(db infra.DBTX, strategies schema.Strategies) *Store {
	return &Store{db: db, strategies: strategies}
}

// ActiveZones returns active zones by id ascending.
func (s *Store) ActiveZones(ctx context.Context, hubID int64) ([]Zone, error) {
	rows, err := s.db.Query(ctx, `
		SELECT z.id, z.hub_id, z.zone_name, z.zone_type, z.is_active,
		       COALESCE(z.polygon_geojson, ''), COALESCE(z.polygon_points, ''), z.priority
		FROM delivery_zones z
		WHERE z.hub_id = $1 AND z.is_active = TRUE AND `+s.strategies.For("delivery_zones").LivePredicate("z")+`
		ORDER BY z.id ASC`, hubID)
	if err != nil {
		return nil, fmt.Errorf("load zones for hub %d: %w", hubID, err)
	}
	defer rows.Close()

	var out []Zone
	for rows.Next() {
		var z Zone
		if err := rows.Scan(&z.ID, &z.HubID, &z.Name, &z.Type, &z.IsActive, &z.PolygonGeoJSON, &z.PolygonPoints, &z.Priority); err != nil {
			return nil, err
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

// SetPolygon replaces a zone's GeoJSON and returns the owning hub id.
func (s *Store) SetPolygon(ctx context.Context, zoneID int64, geojson string) (int64, error) {
	var hubID int64
	err := s.db.QueryRow(ctx, `
		UPDATE delivery_zones SET polygon_geojson = $1, polygon_points = NULL
		WHERE id = $2
		RETURNING hub_id`, geojson, zoneID).Scan(&hubID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrZoneNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("update zone %d: %w", zoneID, err)
	}
	return hubID, nil
}
