// README: Service graph shared by the API server and the operator CLI.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"knx/internal/config"
	"knx/internal/events"
	"knx/internal/infra"
	"knx/internal/maps"
	"knx/internal/modules/address"
	"knx/internal/modules/availability"
	"knx/internal/modules/cart"
	"knx/internal/modules/coupon"
	"knx/internal/modules/coverage"
	"knx/internal/modules/distance"
	"knx/internal/modules/hub"
	"knx/internal/modules/locator"
	"knx/internal/modules/order"
	"knx/internal/modules/payment"
	"knx/internal/modules/pricing"
	"knx/internal/modules/tax"
	"knx/internal/modules/totals"
	"knx/internal/schema"
)

// softDeleteTables are probed once at startup for their soft-delete column.
var softDeleteTables = []string{"cities", "hubs", "delivery_zones", "delivery_fee_rules"}

type App struct {
	DB    *pgxpool.Pool
	Redis *redis.Client

	Hubs         *hub.Store
	Availability *availability.Service
	Coverage     *coverage.Service
	Zones        *coverage.Admin
	Distance     *distance.Service
	Pricing      *pricing.Service
	Tax          *tax.Service
	Coupons      *coupon.Service
	Totals       *totals.Service
	Carts        *cart.Service
	Orders       *order.Service
	Payments     *payment.Service
	Addresses    *address.Service
	Locator      *locator.Service
	Geocoder     maps.Geocoder
	Events       events.Publisher
}

// Build connects to Postgres and Redis and wires every service. Callers own
// the returned App and must Close it.
func Build(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if cfg.DB.AutoMigrate {
		if err := infra.Migrate(cfg.DB.DSN, cfg.DB.Migrations, log); err != nil {
			return nil, err
		}
	}
	db, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	columns := schema.NewColumnCache(schema.NewPGIntrospector(db), cfg.Schema.CacheTTL)
	strategies, err := schema.ResolveAll(ctx, columns, softDeleteTables...)
	if err != nil {
		db.Close()
		return nil, err
	}
	for table, st := range strategies {
		log.Info("soft delete strategy", zap.String("table", table), zap.String("strategy", st.Name()))
	}

	rdb := infra.NewRedis(cfg.Redis.Addr)
	eng := cfg.Engine
	zoneOrder, err := coverage.ParseZoneOrder(eng.ZoneOrder)
	if err != nil {
		db.Close()
		_ = rdb.Close()
		return nil, err
	}
	eta := distance.ETAPolicy{
		PrepMinutes:   eng.ETAPrepMinutes,
		SpeedKmh:      eng.ETASpeedKmh,
		TrafficFactor: eng.ETATrafficFactor,
		RoundTo:       eng.ETARoundTo,
	}

	a := &App{DB: db, Redis: rdb}
	a.Hubs = hub.NewStore(db, strategies)
	a.Availability = availability.NewService(a.Hubs,
		availability.WithCutoff(eng.ClosingSoonCutoff),
		availability.WithLogger(log.Named("availability")),
	)

	zoneStore := coverage.NewStore(db, strategies)
	zones := coverage.NewCachedZoneStore(zoneStore, rdb, cfg.Redis.ZoneCacheTTL, log.Named("zones"))
	a.Coverage = coverage.NewService(a.Hubs, zones, zoneOrder, log.Named("coverage"))
	a.Zones = coverage.NewAdmin(zoneStore, zones, log.Named("zones"))

	a.Distance = distance.NewService(a.Hubs, eta, log.Named("distance"))
	a.Pricing = pricing.NewService(pricing.NewStore(db, strategies), a.Hubs, log.Named("pricing"))
	a.Tax = tax.NewService(a.Hubs, log.Named("tax"))
	a.Coupons = coupon.NewService(coupon.NewStore(db), log.Named("coupon"))
	a.Totals = totals.NewService(totals.Deps{
		Hubs:         a.Hubs,
		Fees:         a.Pricing,
		SoftwareFees: totals.NewSoftwareFeeStore(db),
		Coupons:      a.Coupons,
		ETA:          eta,
		Currency:     eng.Currency,
		Log:          log.Named("totals"),
	})

	a.Events = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log.Named("events"))
	a.Carts = cart.NewService(cart.NewStore(db))
	a.Orders = order.NewService(db, order.CheckoutDeps{
		Coverage:     a.Coverage,
		Availability: a.Availability,
		Quotes:       a.Totals,
		Coupons:      a.Coupons,
	}, a.Events, log.Named("order"))
	a.Payments = payment.NewService(db, a.Events, log.Named("payment"))
	a.Addresses = address.NewService(db)
	a.Locator = locator.NewService(a.Hubs, locator.NewStore(rdb), log.Named("locator"))

	a.Geocoder = maps.Disabled{}
	if cfg.Maps.APIKey != "" {
		g, err := maps.NewGeocodeService(cfg.Maps.APIKey, cfg.Maps.Region)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Geocoder = g
	}
	return a, nil
}

func (a *App) Close() {
	if c, ok := a.Events.(io.Closer); ok {
		_ = c.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
