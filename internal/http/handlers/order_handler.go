// README: Cart and order handlers: cart edits, checkout, guards and status changes.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	httpmiddleware "knx/internal/http/middleware"
	"knx/internal/modules/availability"
	"knx/internal/modules/cart"
	"knx/internal/modules/order"
	"knx/internal/types"
)

type CartService interface {
	SetItems(ctx context.Context, token string, hubID int64, customerID *string, items []cart.Item) (*cart.Cart, error)
	Get(ctx context.Context, token string) (*cart.Cart, error)
}

type OrderService interface {
	Create(ctx context.Context, cmd order.CheckoutCommand) (order.CheckoutResult, error)
	Get(ctx context.Context, id int64) (*order.Order, error)
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]order.Order, error)
	Events(ctx context.Context, id int64) ([]order.Event, error)
	Transition(ctx context.Context, cmd order.TransitionCommand) error
	Cancel(ctx context.Context, id int64, actorType string, actorID *string) error
	ValidateCanonicalState(ctx context.Context, id int64) order.CanonicalState
	CanModifyOrder(ctx context.Context, id int64) order.ModifyDecision
}

type OrderHandler struct {
	carts  CartService
	orders OrderService
}

func NewOrderHandler(carts CartService, orders OrderService) *OrderHandler {
	return &OrderHandler{carts: carts, orders: orders}
}

type cartReq struct {
	HubID int64       `json:"hub_id" binding:"required,gt=0"`
	Items []cart.Item `json:"items"`
}

func optionalUID(c *gin.Context) *string {
	if uid := httpmiddleware.CallerUID(c); uid != "" {
		return &uid
	}
	return nil
}

// NewCart opens a cart under a fresh session token.
func (h *OrderHandler) NewCart(c *gin.Context) {
	h.putCart(c, cart.NewSessionToken(), http.StatusCreated)
}

func (h *OrderHandler) PutCart(c *gin.Context) {
	h.putCart(c, c.Param("token"), http.StatusOK)
}

func (h *OrderHandler) putCart(c *gin.Context, token string, status int) {
	var req cartReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	ct, err := h.carts.SetItems(c.Request.Context(), token, req.HubID, optionalUID(c), req.Items)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, status, gin.H{"session_token": ct.SessionToken, "cart": ct})
}

func (h *OrderHandler) GetCart(c *gin.Context) {
	ct, err := h.carts.Get(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, ct)
}

type checkoutReq struct {
	SessionToken    string          `json:"session_token" binding:"required"`
	FulfillmentType string          `json:"fulfillment_type" binding:"required"`
	Customer        types.Point     `json:"customer"`
	CouponCode      string          `json:"coupon_code"`
	Tip             decimal.Decimal `json:"tip"`
}

// Create runs checkout. A blocked hub answers 409 with the availability
// envelope; other business refusals carry the checkout result.
func (h *OrderHandler) Create(c *gin.Context) {
	var req checkoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	res, err := h.orders.Create(c.Request.Context(), order.CheckoutCommand{
		SessionToken:    req.SessionToken,
		CustomerID:      optionalUID(c),
		FulfillmentType: req.FulfillmentType,
		Customer:        req.Customer,
		CouponCode:      req.CouponCode,
		Tip:             req.Tip,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	if res.Success {
		writeJSON(c, http.StatusCreated, res)
		return
	}
	switch res.Error {
	case order.CheckoutAvailabilityBlock:
		writeJSON(c, http.StatusConflict, availability.BuildBlockResponse(*res.Availability))
	case order.CheckoutCartNotFound:
		writeJSON(c, http.StatusNotFound, res)
	case order.CheckoutCartChanged, order.CheckoutQuoteStale, order.CheckoutCouponRejected:
		writeJSON(c, http.StatusConflict, res)
	default:
		writeJSON(c, http.StatusUnprocessableEntity, res)
	}
}

// loadOwned fetches an order the caller may see: their own, or any for admins.
func (h *OrderHandler) loadOwned(c *gin.Context) (*order.Order, bool) {
	id, ok := pathID(c, "id")
	if !ok {
		return nil, false
	}
	o, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		writeOrderError(c, err)
		return nil, false
	}
	if httpmiddleware.IsAdmin(c) {
		return o, true
	}
	if o.CustomerID == nil || *o.CustomerID != httpmiddleware.CallerUID(c) {
		// Do not reveal other customers' orders.
		writeError(c, http.StatusNotFound, order.ErrNotFound.Error())
		return nil, false
	}
	return o, true
}

func (h *OrderHandler) Get(c *gin.Context) {
	o, ok := h.loadOwned(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, o)
}

func (h *OrderHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	out, err := h.orders.ListByCustomer(c.Request.Context(), httpmiddleware.CallerUID(c), limit)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": out})
}

func (h *OrderHandler) Events(c *gin.Context) {
	o, ok := h.loadOwned(c)
	if !ok {
		return
	}
	evs, err := h.orders.Events(c.Request.Context(), o.ID)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"events": evs})
}

func (h *OrderHandler) Canonical(c *gin.Context) {
	o, ok := h.loadOwned(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, h.orders.ValidateCanonicalState(c.Request.Context(), o.ID))
}

func (h *OrderHandler) CanModify(c *gin.Context) {
	o, ok := h.loadOwned(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, h.orders.CanModifyOrder(c.Request.Context(), o.ID))
}

type transitionReq struct {
	Status string `json:"status" binding:"required"`
}

// Transition is the admin/hub route for moving an order forward.
func (h *OrderHandler) Transition(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req transitionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.orders.Transition(c.Request.Context(), order.TransitionCommand{
		OrderID:   id,
		To:        order.Status(req.Status),
		ActorType: order.ActorAdmin,
		ActorID:   optionalUID(c),
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": id, "status": req.Status})
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	o, ok := h.loadOwned(c)
	if !ok {
		return
	}
	actor := order.ActorCustomer
	if httpmiddleware.IsAdmin(c) {
		actor = order.ActorAdmin
	}
	if err := h.orders.Cancel(c.Request.Context(), o.ID, actor, optionalUID(c)); err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": o.ID, "status": order.StatusCancelled})
}
