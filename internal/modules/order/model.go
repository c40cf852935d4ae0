// README: Order aggregate, status definitions and frozen snapshot shapes.
package order

import (
	"time"

	"github.com/shopspring/decimal"

	"knx/internal/modules/cart"
)

type Status string

const (
	StatusNone           Status = "none"
	StatusPlaced         Status = "placed"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

type Order struct {
	ID              int64           `json:"id"`
	HubID           int64           `json:"hub_id"`
	CustomerID      *string         `json:"customer_id"`
	SessionToken    string          `json:"-"`
	CartID          *int64          `json:"cart_id"`
	Status          Status          `json:"status"`
	StatusVersion   int             `json:"status_version"`
	FulfillmentType string          `json:"fulfillment_type"`
	TotalsSnapshot  *string         `json:"-"`
	CartSnapshot    *string         `json:"-"`
	Total           decimal.Decimal `json:"total"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type Event struct {
	ID         int64
	OrderID    int64
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *string
	CreatedAt  time.Time
}

const (
	ActorCustomer = "customer"
	ActorHub      = "hub"
	ActorAdmin    = "admin"
	ActorSystem   = "system"
)

// CartSnapshot is the cart as it was when the order was placed.
type CartSnapshot struct {
	CartID       int64           `json:"cart_id"`
	SessionToken string          `json:"session_token"`
	HubID        int64           `json:"hub_id"`
	Items        []cart.Item     `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	DetachedAt   time.Time       `json:"detached_at"`
}

// AllowedTransitions represents the order state flow (diagram) as code.
var AllowedTransitions = map[Status][]Status{
	StatusPlaced:         {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusOutForDelivery},
	StatusOutForDelivery: {StatusDelivered},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
