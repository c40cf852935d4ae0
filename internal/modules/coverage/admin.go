package coverage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"knx/internal/modules/geo"
)

// Invalidator drops cached zones for a hub.
type Invalidator interface {
	Invalidate(ctx context.Context, hubID int64) error
}

// Admin edits zone geometry. Polygons are validated with the same parser
// the engine uses, so a stored polygon is always evaluable.
type Admin struct {
	store *Store
	cache Invalidator
	log   *zap.Logger
}

func NewAdmin(store *Store, cache Invalidator, log *zap.Logger) *Admin {
	if log == nil {
		log = zap.NewNop()
	}
	return &Admin{store: store, cache: cache, log: log}
}

func (a *Admin) UpdatePolygon(ctx context.Context, zoneID int64, raw []byte) error {
	if _, err := geo.ParsePolygon(raw); err != nil {
		return fmt.Errorf("zone %d: %w", zoneID, err)
	}
	hubID, err := a.store.SetPolygon(ctx, zoneID, string(raw))
	if err != nil {
		return err
	}
	if a.cache != nil {
		if err := a.cache.Invalidate(ctx, hubID); err != nil {
			a.log.Warn("zone cache invalidate", zap.Int64("hub_id", hubID), zap.Error(err))
		}
	}
	return nil
}
