// README: Order service implements state transitions, read-only guards and checkout.
package order

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"knx/internal/events"
	"knx/internal/infra"
	"knx/internal/modules/cart"
)

// Pool is satisfied by *pgxpool.Pool.
type Pool interface {
	infra.DBTX
	infra.TxBeginner
}

type Service struct {
	db       Pool
	store    *Store
	carts    *cart.Store
	checkout CheckoutDeps
	events   events.Publisher
	now      func() time.Time
	log      *zap.Logger
}

func NewService(db Pool, checkout CheckoutDeps, pub events.Publisher, log *zap.Logger) *Service {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		db:       db,
		store:    NewStore(db),
		carts:    cart.NewStore(db),
		checkout: checkout,
		events:   pub,
		now:      time.Now,
		log:      log,
	}
}

var (
	ErrInvalidState = errors.New("invalid state transition")
	ErrNotFound     = errors.New("order not found")
	ErrConflict     = errors.New("order state conflict")
	ErrBadRequest   = errors.New("bad request")
)

type TransitionCommand struct {
	OrderID   int64
	To        Status
	ActorType string
	ActorID   *string
}

// Transition moves an order along AllowedTransitions using the row's
// status_version as an optimistic lock.
func (s *Service) Transition(ctx context.Context, cmd TransitionCommand) error {
	if cmd.OrderID <= 0 || cmd.To == "" {
		return ErrBadRequest
	}
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, cmd.To) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, o.ID, o.Status, cmd.To, o.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	now := s.now()
	if err := s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: o.Status,
		ToStatus:   cmd.To,
		ActorType:  cmd.ActorType,
		ActorID:    cmd.ActorID,
		CreatedAt:  now,
	}); err != nil {
		s.log.Warn("append order event", zap.Int64("order_id", o.ID), zap.Error(err))
	}
	s.publish(ctx, events.New(events.TypeOrderStatusChanged, o.ID, map[string]any{
		"order_id": o.ID,
		"from":     o.Status,
		"to":       cmd.To,
		"actor":    cmd.ActorType,
	}))
	return nil
}

func (s *Service) Confirm(ctx context.Context, id int64, actorID *string) error {
	return s.Transition(ctx, TransitionCommand{OrderID: id, To: StatusConfirmed, ActorType: ActorHub, ActorID: actorID})
}

func (s *Service) Cancel(ctx context.Context, id int64, actorType string, actorID *string) error {
	return s.Transition(ctx, TransitionCommand{OrderID: id, To: StatusCancelled, ActorType: actorType, ActorID: actorID})
}

func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.store.Get(ctx, id)
}

// ListByCustomer returns the customer's most recent orders first.
func (s *Service) ListByCustomer(ctx context.Context, customerID string, limit int) ([]Order, error) {
	if customerID == "" {
		return nil, ErrBadRequest
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListByCustomer(ctx, customerID, limit)
}

func (s *Service) Events(ctx context.Context, id int64) ([]Event, error) {
	return s.store.Events(ctx, id)
}

// ValidateCanonicalState loads the order and its cart and reports the first
// deviation from the frozen form.
func (s *Service) ValidateCanonicalState(ctx context.Context, id int64) CanonicalState {
	o, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return notCanonical(ReasonOrderNotFound)
	}
	if err != nil {
		s.log.Error("canonical state order lookup", zap.Int64("order_id", id), zap.Error(err))
		return notCanonical(ReasonOrderLookupFailed)
	}
	var c *cart.Cart
	if o.CartID != nil {
		c, err = s.carts.ByID(ctx, *o.CartID)
	} else {
		c, err = s.carts.Latest(ctx, o.SessionToken)
	}
	if errors.Is(err, cart.ErrNotFound) {
		c, err = nil, nil
	}
	if err != nil {
		s.log.Error("canonical state cart lookup", zap.Int64("order_id", id), zap.Error(err))
		return notCanonical(ReasonCartLookupFailed)
	}
	return EvaluateCanonicalState(o, c)
}

// CanModifyOrder reports whether the order is still editable.
func (s *Service) CanModifyOrder(ctx context.Context, id int64) ModifyDecision {
	o, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return ModifyDecision{Reason: ReasonOrderNotFound}
	}
	if err != nil {
		s.log.Error("modify guard lookup", zap.Int64("order_id", id), zap.Error(err))
		return ModifyDecision{Reason: ReasonOrderLookupFailed}
	}
	return CanModify(o)
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn("publish", zap.String("type", e.Type), zap.Error(err))
	}
}
