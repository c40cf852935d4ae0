// README: Payment service; every write takes a row lock before re-checking its guard.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"knx/internal/events"
	"knx/internal/infra"
	"knx/internal/modules/order"
	"knx/internal/types"
)

// Pool is satisfied by *pgxpool.Pool.
type Pool interface {
	infra.DBTX
	infra.TxBeginner
}

var validate = validator.New()

type Service struct {
	db     Pool
	store  *Store
	orders *order.Store
	events events.Publisher
	log    *zap.Logger
}

func NewService(db Pool, pub events.Publisher, log *zap.Logger) *Service {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, store: NewStore(db), orders: order.NewStore(db), events: pub, log: log}
}

// EvaluateCreate decides whether o may receive a new payment.
func EvaluateCreate(o *order.Order, hasActive bool) Guard {
	if o == nil {
		return Guard{Reason: GuardOrderNotFound}
	}
	if o.Status != order.StatusPlaced {
		return Guard{Reason: GuardOrderNotPlaced}
	}
	snap, err := order.TotalsFromSnapshot(o)
	if err != nil || !snap.IsSnapshotLocked {
		return Guard{Reason: GuardSnapshotNotLocked}
	}
	if hasActive {
		return Guard{Reason: GuardActivePaymentExists}
	}
	amount := types.ToCents(snap.Total)
	if amount <= 0 {
		return Guard{Reason: GuardInvalidTotal}
	}
	currency := snap.Currency
	if currency == "" {
		currency = types.DefaultCurrency
	}
	return Guard{Allowed: true, Reason: GuardAllowed, Amount: amount, Currency: currency}
}

// CanCreatePaymentForOrder is a lock-free preview of the creation guard.
func (s *Service) CanCreatePaymentForOrder(ctx context.Context, orderID int64) Guard {
	return s.guard(ctx, s.orders, s.store, orderID, false)
}

func (s *Service) guard(ctx context.Context, orders *order.Store, payments *Store, orderID int64, lock bool) Guard {
	var (
		o   *order.Order
		err error
	)
	if lock {
		o, err = orders.GetForUpdate(ctx, orderID)
	} else {
		o, err = orders.Get(ctx, orderID)
	}
	if errors.Is(err, order.ErrNotFound) {
		return Guard{Reason: GuardOrderNotFound}
	}
	if err != nil {
		s.log.Error("payment guard order lookup", zap.Int64("order_id", orderID), zap.Error(err))
		return Guard{Reason: GuardOrderLookupFailed}
	}
	active, err := payments.HasActiveForOrder(ctx, orderID)
	if err != nil {
		s.log.Error("payment guard lookup", zap.Int64("order_id", orderID), zap.Error(err))
		return Guard{Reason: GuardOrderLookupFailed}
	}
	return EvaluateCreate(o, active)
}

type CreateCommand struct {
	OrderID          int64  `validate:"gt=0"`
	Provider         string `validate:"required,max=32"`
	ProviderIntentID string `validate:"max=255"`
}

// Create inserts a payment for a placed order. The order row is locked before
// the active-payment check so concurrent callers serialize.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Payment, Guard, error) {
	if err := validate.Struct(cmd); err != nil {
		return nil, Guard{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	var (
		p *Payment
		g Guard
	)
	err := infra.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		payments := NewStore(tx)
		g = s.guard(ctx, order.NewStore(tx), payments, cmd.OrderID, true)
		if !g.Allowed {
			return nil
		}
		p = &Payment{
			OrderID:        cmd.OrderID,
			Provider:       cmd.Provider,
			Amount:         g.Amount,
			Currency:       g.Currency,
			Status:         StatusIntentCreated,
			IdempotencyKey: uuid.NewString(),
		}
		if cmd.ProviderIntentID != "" {
			p.ProviderIntentID = &cmd.ProviderIntentID
		}
		return payments.Create(ctx, p)
	})
	if err != nil {
		return nil, g, err
	}
	if p == nil {
		return nil, g, nil
	}
	s.log.Info("payment created", zap.Int64("payment_id", p.ID), zap.Int64("order_id", p.OrderID), zap.Int64("amount", p.Amount))
	if p.ProviderIntentID != nil {
		if _, err := s.ReconcileDeferredWebhookForIntent(ctx, *p.ProviderIntentID); err != nil {
			s.log.Warn("reconcile after create", zap.Int64("payment_id", p.ID), zap.Error(err))
		}
	}
	return p, g, nil
}

// AttachIntent records the provider intent id and replays webhooks that
// arrived before it.
func (s *Service) AttachIntent(ctx context.Context, paymentID int64, intentID string) error {
	if intentID == "" {
		return ErrBadRequest
	}
	if err := s.store.SetIntent(ctx, paymentID, intentID); err != nil {
		return err
	}
	_, err := s.ReconcileDeferredWebhookForIntent(ctx, intentID)
	return err
}

func (s *Service) Get(ctx context.Context, id int64) (*Payment, error) {
	return s.store.Get(ctx, id, false)
}

func (s *Service) ListByOrder(ctx context.Context, orderID int64) ([]Payment, error) {
	return s.store.ListByOrder(ctx, orderID)
}

// UpdateStatus moves a payment to status to. Repeating the current status is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, paymentID int64, to Status) (*Payment, error) {
	if !to.Valid() {
		return nil, ErrBadRequest
	}
	var (
		p    *Payment
		from Status
	)
	err := infra.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		p, err = NewStore(tx).Get(ctx, paymentID, true)
		if err != nil {
			return err
		}
		from = p.Status
		return applyStatus(ctx, NewStore(tx), p, to)
	})
	if err != nil {
		return nil, err
	}
	if from != p.Status {
		s.publishStatus(ctx, p, from)
	}
	return p, nil
}

func applyStatus(ctx context.Context, store *Store, p *Payment, to Status) error {
	if p.Status == to {
		return nil
	}
	if p.Status.Terminal() {
		return ErrTerminal
	}
	if !CanTransition(p.Status, to) {
		return ErrInvalidState
	}
	if err := store.UpdateStatus(ctx, p.ID, to); err != nil {
		return err
	}
	p.Status = to
	return nil
}

// RecordWebhook stores a provider event and applies it when the payment is
// known. Events for unknown intents stay deferred until reconciliation.
func (s *Service) RecordWebhook(ctx context.Context, e WebhookEvent) (WebhookOutcome, error) {
	if err := validate.Struct(e); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if !e.Status.Valid() {
		return "", fmt.Errorf("%w: status %q", ErrBadRequest, e.Status)
	}
	if e.Payload == "" {
		e.Payload = "{}"
	}
	inserted, err := s.store.InsertWebhook(ctx, &e)
	if err != nil {
		return "", fmt.Errorf("store webhook: %w", err)
	}
	if !inserted {
		return WebhookDuplicate, nil
	}
	applied, err := s.ReconcileDeferredWebhookForIntent(ctx, e.ProviderIntentID)
	if err != nil {
		return "", err
	}
	if applied == 0 {
		return WebhookDeferred, nil
	}
	return WebhookApplied, nil
}

// ReconcileDeferredWebhookForIntent applies unprocessed events for intentID
// in arrival order. Only rows still unprocessed are touched, so replays are
// safe. It returns the number of events consumed.
func (s *Service) ReconcileDeferredWebhookForIntent(ctx context.Context, intentID string) (int, error) {
	var (
		p     *Payment
		from  Status
		count int
	)
	err := infra.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		store := NewStore(tx)
		var err error
		p, err = store.ByIntent(ctx, intentID, true)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		from = p.Status
		pending, err := store.PendingWebhooks(ctx, intentID)
		if err != nil {
			return err
		}
		for _, e := range pending {
			if err := applyStatus(ctx, store, p, e.Status); err != nil {
				if !errors.Is(err, ErrTerminal) && !errors.Is(err, ErrInvalidState) {
					return err
				}
				s.log.Info("webhook ignored",
					zap.String("event_id", e.EventID),
					zap.String("payment_status", string(p.Status)),
					zap.String("event_status", string(e.Status)),
				)
			}
			if err := store.MarkWebhookProcessed(ctx, e.ID); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reconcile intent %s: %w", intentID, err)
	}
	if p != nil && from != p.Status {
		s.publishStatus(ctx, p, from)
	}
	return count, nil
}

func (s *Service) publishStatus(ctx context.Context, p *Payment, from Status) {
	err := s.events.Publish(ctx, events.New(events.TypePaymentStatusChanged, p.OrderID, map[string]any{
		"payment_id": p.ID,
		"order_id":   p.OrderID,
		"from":       from,
		"to":         p.Status,
		"amount":     p.Amount,
		"currency":   p.Currency,
	}))
	if err != nil {
		s.log.Warn("publish payment status", zap.Int64("payment_id", p.ID), zap.Error(err))
	}
}
