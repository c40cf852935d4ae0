// README: Cart service; item edits on the session's active cart.
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// NewSessionToken issues an opaque cart session token.
func NewSessionToken() string {
	return uuid.NewString()
}

// SetItems replaces the items of the session's active cart, creating the cart
// on first use.
func (s *Service) SetItems(ctx context.Context, token string, hubID int64, customerID *string, items []Item) (*Cart, error) {
	if token == "" || hubID <= 0 {
		return nil, ErrBadRequest
	}
	for i, it := range items {
		if err := validate.Struct(it); err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrBadRequest, i, err)
		}
		if it.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: item %d: negative price", ErrBadRequest, i)
		}
	}

	c, err := s.store.Active(ctx, token, false)
	if errors.Is(err, ErrNotFound) {
		c = &Cart{SessionToken: token, HubID: hubID, CustomerID: customerID, Items: items, Subtotal: Subtotal(items)}
		if err := s.store.Create(ctx, c); err != nil {
			return nil, err
		}
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	if c.HubID != hubID {
		return nil, fmt.Errorf("%w: cart belongs to hub %d", ErrBadRequest, c.HubID)
	}
	if err := s.store.ReplaceItems(ctx, c.ID, items); err != nil {
		return nil, err
	}
	c.Items = items
	c.Subtotal = Subtotal(items)
	return c, nil
}

// Get returns the active cart for a session.
func (s *Service) Get(ctx context.Context, token string) (*Cart, error) {
	return s.store.Active(ctx, token, false)
}
