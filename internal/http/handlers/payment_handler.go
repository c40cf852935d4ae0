// README: Payment handlers: guarded creation, status updates and provider webhooks.
package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	httpmiddleware "knx/internal/http/middleware"
	"knx/internal/modules/order"
	"knx/internal/modules/payment"
)

type PaymentService interface {
	CanCreatePaymentForOrder(ctx context.Context, orderID int64) payment.Guard
	Create(ctx context.Context, cmd payment.CreateCommand) (*payment.Payment, payment.Guard, error)
	Get(ctx context.Context, id int64) (*payment.Payment, error)
	ListByOrder(ctx context.Context, orderID int64) ([]payment.Payment, error)
	AttachIntent(ctx context.Context, paymentID int64, intentID string) error
	UpdateStatus(ctx context.Context, paymentID int64, to payment.Status) (*payment.Payment, error)
	RecordWebhook(ctx context.Context, e payment.WebhookEvent) (payment.WebhookOutcome, error)
}

type OrderReader interface {
	Get(ctx context.Context, id int64) (*order.Order, error)
}

type PaymentHandler struct {
	payments      PaymentService
	orders        OrderReader
	webhookSecret string
	log           *zap.Logger
}

func NewPaymentHandler(payments PaymentService, orders OrderReader, webhookSecret string, log *zap.Logger) *PaymentHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentHandler{payments: payments, orders: orders, webhookSecret: webhookSecret, log: log}
}

// ownsOrder writes a 404 unless the caller placed the order or is an admin.
func (h *PaymentHandler) ownsOrder(c *gin.Context, orderID int64) bool {
	if httpmiddleware.IsAdmin(c) {
		return true
	}
	o, err := h.orders.Get(c.Request.Context(), orderID)
	if err != nil {
		writeOrderError(c, err)
		return false
	}
	if o.CustomerID == nil || *o.CustomerID != httpmiddleware.CallerUID(c) {
		writeError(c, http.StatusNotFound, order.ErrNotFound.Error())
		return false
	}
	return true
}

func (h *PaymentHandler) CanCreate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok || !h.ownsOrder(c, id) {
		return
	}
	writeJSON(c, http.StatusOK, h.payments.CanCreatePaymentForOrder(c.Request.Context(), id))
}

type createPaymentReq struct {
	OrderID          int64  `json:"order_id" binding:"required,gt=0"`
	Provider         string `json:"provider" binding:"required"`
	ProviderIntentID string `json:"provider_intent_id"`
}

func (h *PaymentHandler) Create(c *gin.Context) {
	var req createPaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !h.ownsOrder(c, req.OrderID) {
		return
	}
	p, guard, err := h.payments.Create(c.Request.Context(), payment.CreateCommand{
		OrderID:          req.OrderID,
		Provider:         req.Provider,
		ProviderIntentID: req.ProviderIntentID,
	})
	if err != nil {
		writePaymentError(c, err)
		return
	}
	if !guard.Allowed {
		writeJSON(c, http.StatusConflict, guard)
		return
	}
	writeJSON(c, http.StatusCreated, p)
}

// loadOwned fetches a payment whose order the caller may see.
func (h *PaymentHandler) loadOwned(c *gin.Context) (*payment.Payment, bool) {
	id, ok := pathID(c, "id")
	if !ok {
		return nil, false
	}
	p, err := h.payments.Get(c.Request.Context(), id)
	if err != nil {
		writePaymentError(c, err)
		return nil, false
	}
	if !h.ownsOrder(c, p.OrderID) {
		return nil, false
	}
	return p, true
}

func (h *PaymentHandler) Get(c *gin.Context) {
	p, ok := h.loadOwned(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (h *PaymentHandler) ListByOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok || !h.ownsOrder(c, id) {
		return
	}
	out, err := h.payments.ListByOrder(c.Request.Context(), id)
	if err != nil {
		writePaymentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"payments": out})
}

type intentReq struct {
	ProviderIntentID string `json:"provider_intent_id" binding:"required,max=255"`
}

func (h *PaymentHandler) AttachIntent(c *gin.Context) {
	p, ok := h.loadOwned(c)
	if !ok {
		return
	}
	var req intentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.payments.AttachIntent(c.Request.Context(), p.ID, req.ProviderIntentID); err != nil {
		writePaymentError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type paymentStatusReq struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus is the admin override for a payment's state.
func (h *PaymentHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req paymentStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	p, err := h.payments.UpdateStatus(c.Request.Context(), id, payment.Status(req.Status))
	if err != nil {
		writePaymentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

type webhookReq struct {
	Provider         string `json:"provider" binding:"required"`
	EventID          string `json:"event_id" binding:"required"`
	Type             string `json:"type"`
	ProviderIntentID string `json:"provider_intent_id" binding:"required"`
	Status           string `json:"status"`
}

// Webhook accepts provider notifications. It is authenticated by a shared
// secret header instead of a user token.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	if h.webhookSecret == "" ||
		subtle.ConstantTimeCompare([]byte(c.GetHeader("X-Webhook-Secret")), []byte(h.webhookSecret)) != 1 {
		writeError(c, http.StatusUnauthorized, "invalid webhook secret")
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		writeError(c, http.StatusBadRequest, "unreadable body")
		return
	}
	var req webhookReq
	if err := binding.JSON.BindBody(raw, &req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	status := payment.Status(req.Status)
	if status == "" {
		mapped, known := payment.ProviderEventStatus[req.Type]
		if !known {
			// Unmapped event types are acknowledged so the provider stops retrying.
			h.log.Info("webhook ignored", zap.String("type", req.Type), zap.String("event_id", req.EventID))
			writeJSON(c, http.StatusOK, gin.H{"outcome": "ignored"})
			return
		}
		status = mapped
	}
	outcome, err := h.payments.RecordWebhook(c.Request.Context(), payment.WebhookEvent{
		Provider:         req.Provider,
		EventID:          req.EventID,
		ProviderIntentID: req.ProviderIntentID,
		Status:           status,
		Payload:          string(raw),
	})
	if err != nil {
		writePaymentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"outcome": outcome})
}
