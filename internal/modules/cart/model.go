// README: Session cart; converted carts are never read again by order logic.
package cart

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"knx/internal/types"
)

var (
	ErrNotFound      = errors.New("cart not found")
	ErrConverted     = errors.New("cart already converted")
	ErrLockWithoutTx = errors.New("cart row lock requested outside a transaction")
	ErrBadRequest    = errors.New("bad request")
)

const (
	StatusActive    = "active"
	StatusConverted = "converted"
)

type Item struct {
	ProductID int64           `json:"product_id" validate:"gt=0"`
	Name      string          `json:"name" validate:"required,max=200"`
	Quantity  int             `json:"quantity" validate:"gt=0,lte=99"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Notes     string          `json:"notes,omitempty" validate:"max=500"`
}

func (i Item) LineTotal() decimal.Decimal {
	return types.Round2(i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity))))
}

type Cart struct {
	ID           int64           `json:"id"`
	SessionToken string          `json:"session_token"`
	HubID        int64           `json:"hub_id"`
	CustomerID   *string         `json:"customer_id"`
	Status       string          `json:"status"`
	Items        []Item          `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (c *Cart) Converted() bool { return c != nil && c.Status == StatusConverted }

// Subtotal sums line totals.
func Subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal())
	}
	return types.Round2(sum)
}
