// README: Entry point; loads config, wires services, starts HTTP server and background refreshers.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"knx/internal/app"
	"knx/internal/config"
	httptransport "knx/internal/http"
	"knx/internal/http/handlers"
	"knx/internal/infra"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := infra.NewLogger(cfg.Log.Level, cfg.Log.Dev)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		logger.Fatal("KNX_FIREBASE_PROJECT_ID is required")
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		logger.Fatal("firebase init", zap.Error(err))
	}

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("wire services", zap.Error(err))
	}
	defer a.Close()

	if n, err := a.Locator.Rebuild(ctx); err != nil {
		logger.Warn("initial locator build", zap.Error(err))
	} else {
		logger.Info("locator built", zap.Int("hubs", n))
	}
	go a.Locator.RunRefresher(ctx, cfg.Locator.RefreshEvery)

	if !cfg.Log.Dev {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httptransport.NewRouter(httptransport.Handlers{
		Hubs: handlers.NewHubHandler(a.Hubs, a.Availability, a.Locator, logger.Named("hubs")),
		Delivery: handlers.NewDeliveryHandler(handlers.DeliveryDeps{
			Coverage: a.Coverage,
			Distance: a.Distance,
			Fees:     a.Pricing,
			Quotes:   a.Totals,
			Zones:    a.Zones,
			Geocoder: a.Geocoder,
		}, logger.Named("delivery")),
		Orders:    handlers.NewOrderHandler(a.Carts, a.Orders),
		Payments:  handlers.NewPaymentHandler(a.Payments, a.Orders, cfg.Payments.WebhookSecret, logger.Named("payments")),
		Addresses: handlers.NewAddressHandler(a.Addresses, a.Geocoder),
	}, verifier, logger.Named("http"))

	if err := httptransport.NewServer(cfg.HTTP.Addr, router, logger).Run(ctx); err != nil {
		logger.Fatal("http server", zap.Error(err))
	}
}
