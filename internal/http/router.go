// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"knx/internal/http/handlers"
	"knx/internal/http/middleware"
	"knx/internal/infra"
)

type Handlers struct {
	Hubs      *handlers.HubHandler
	Delivery  *handlers.DeliveryHandler
	Orders    *handlers.OrderHandler
	Payments  *handlers.PaymentHandler
	Addresses *handlers.AddressHandler
}

// NewRouter registers public read routes, customer routes behind Firebase
// auth, and admin routes behind the admin role.
func NewRouter(h Handlers, verifier infra.TokenVerifier, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.Logging(log))

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := r.Group("/api")
	public.GET("/hubs/nearby", h.Hubs.Nearby)
	public.GET("/hubs/:id/availability", h.Hubs.Availability)
	public.GET("/hubs/:id/status", h.Hubs.Status)
	public.GET("/cities/:id/hubs", h.Hubs.ListByCity)

	public.POST("/coverage/check", h.Delivery.CheckCoverage)
	public.GET("/distance", h.Delivery.Distance)
	public.POST("/delivery-fee", h.Delivery.DeliveryFee)
	public.POST("/quote", h.Delivery.Quote)

	public.POST("/carts", h.Orders.NewCart)
	public.GET("/carts/:token", h.Orders.GetCart)
	public.PUT("/carts/:token", h.Orders.PutCart)

	public.POST("/payments/webhook", h.Payments.Webhook)

	authed := r.Group("/api", middleware.Auth(verifier))
	authed.POST("/orders", h.Orders.Create)
	authed.GET("/orders", h.Orders.List)
	authed.GET("/orders/:id", h.Orders.Get)
	authed.GET("/orders/:id/events", h.Orders.Events)
	authed.GET("/orders/:id/canonical", h.Orders.Canonical)
	authed.GET("/orders/:id/can-modify", h.Orders.CanModify)
	authed.POST("/orders/:id/cancel", h.Orders.Cancel)
	authed.GET("/orders/:id/can-pay", h.Payments.CanCreate)
	authed.GET("/orders/:id/payments", h.Payments.ListByOrder)

	authed.POST("/payments", h.Payments.Create)
	authed.GET("/payments/:id", h.Payments.Get)
	authed.PUT("/payments/:id/intent", h.Payments.AttachIntent)

	authed.GET("/customers/:id/addresses", h.Addresses.List)
	authed.POST("/customers/:id/addresses", h.Addresses.Create)
	authed.PUT("/customers/:id/addresses/:aid/default", h.Addresses.SetDefault)

	admin := r.Group("/api/admin", middleware.Auth(verifier), middleware.RequireRole(infra.RoleAdmin))
	admin.PUT("/hubs/:id/hours", h.Hubs.UpdateHours)
	admin.PUT("/hubs/:id/closure", h.Hubs.SetClosure)
	admin.POST("/hubs/:id/reindex", h.Hubs.Reindex)
	admin.PUT("/zones/:id/polygon", h.Delivery.UpdateZonePolygon)
	admin.POST("/orders/:id/status", h.Orders.Transition)
	admin.POST("/payments/:id/status", h.Payments.UpdateStatus)

	return r
}
