// README: Payment aggregate, state machine and provider webhook shapes.
package payment

import (
	"errors"
	"time"
)

type Status string

const (
	StatusIntentCreated Status = "intent_created"
	StatusAuthorized    Status = "authorized"
	StatusPaid          Status = "paid"
	StatusFailed        Status = "failed"
	StatusCancelled     Status = "cancelled"
)

var (
	ErrNotFound      = errors.New("payment not found")
	ErrTerminal      = errors.New("payment is in a terminal state")
	ErrInvalidState  = errors.New("invalid payment transition")
	ErrBadRequest    = errors.New("bad request")
	ErrLockWithoutTx = errors.New("payment row lock requested outside a transaction")
)

// Terminal states accept no further updates.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// Active payments block a second payment for the same order.
func (s Status) Active() bool {
	return s != StatusFailed && s != StatusCancelled
}

func (s Status) Valid() bool {
	switch s {
	case StatusIntentCreated, StatusAuthorized, StatusPaid, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// AllowedTransitions has no entry for failed: a retry is a new payment row,
// never a change to the failed one.
var AllowedTransitions = map[Status][]Status{
	StatusIntentCreated: {StatusAuthorized, StatusPaid, StatusFailed, StatusCancelled},
	StatusAuthorized:    {StatusPaid, StatusFailed, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Payment struct {
	ID               int64     `json:"id"`
	OrderID          int64     `json:"order_id"`
	Provider         string    `json:"provider"`
	ProviderIntentID *string   `json:"provider_intent_id"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	Status           Status    `json:"status"`
	IdempotencyKey   string    `json:"idempotency_key"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type GuardReason string

const (
	GuardAllowed             GuardReason = "ALLOWED"
	GuardOrderNotFound       GuardReason = "ORDER_NOT_FOUND"
	GuardOrderLookupFailed   GuardReason = "ORDER_LOOKUP_FAILED"
	GuardOrderNotPlaced      GuardReason = "ORDER_NOT_PLACED"
	GuardSnapshotNotLocked   GuardReason = "SNAPSHOT_NOT_LOCKED"
	GuardActivePaymentExists GuardReason = "ACTIVE_PAYMENT_EXISTS"
	GuardInvalidTotal        GuardReason = "INVALID_TOTAL"
)

type Guard struct {
	Allowed  bool        `json:"allowed"`
	Reason   GuardReason `json:"reason"`
	Amount   int64       `json:"amount,omitempty"`
	Currency string      `json:"currency,omitempty"`
}

// WebhookEvent is a provider notification already mapped to a payment status.
type WebhookEvent struct {
	ID               int64      `json:"id"`
	Provider         string     `json:"provider" validate:"required"`
	EventID          string     `json:"event_id" validate:"required"`
	ProviderIntentID string     `json:"provider_intent_id" validate:"required"`
	Status           Status     `json:"status" validate:"required"`
	Payload          string     `json:"-"`
	ReceivedAt       time.Time  `json:"received_at"`
	ProcessedAt      *time.Time `json:"processed_at"`
}

type WebhookOutcome string

const (
	WebhookApplied   WebhookOutcome = "applied"
	WebhookDeferred  WebhookOutcome = "deferred"
	WebhookDuplicate WebhookOutcome = "duplicate"
)

// ProviderEventStatus maps provider event types onto payment states.
var ProviderEventStatus = map[string]Status{
	"payment_intent.created":                   StatusIntentCreated,
	"payment_intent.amount_capturable_updated": StatusAuthorized,
	"payment_intent.succeeded":                 StatusPaid,
	"payment_intent.payment_failed":            StatusFailed,
	"payment_intent.canceled":                  StatusCancelled,
}
