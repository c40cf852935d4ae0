// README: Payment and webhook store backed by PostgreSQL.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"knx/internal/infra"
)

type Store struct {
	db   infra.DBTX
	inTx bool
}

func NewStore(db infra.DBTX) *Store {
	return &Store{db: db, inTx: infra.InTx(db)}
}

const paymentColumns = `id, order_id, provider, provider_intent_id, amount, currency, status, idempotency_key, created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Provider, &p.ProviderIntentID, &p.Amount, &p.Currency,
		&p.Status, &p.IdempotencyKey, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) Create(ctx context.Context, p *Payment) error {
	return s.db.QueryRow(ctx, `
		INSERT INTO payments (order_id, provider, provider_intent_id, amount, currency, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		p.OrderID, p.Provider, p.ProviderIntentID, p.Amount, p.Currency, string(p.Status), p.IdempotencyKey,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (s *Store) Get(ctx context.Context, id int64, lock bool) (*Payment, error) {
	if lock && !s.inTx {
		return nil, ErrLockWithoutTx
	}
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	if lock {
		q += ` FOR UPDATE`
	}
	return scanPayment(s.db.QueryRow(ctx, q, id))
}

// ByIntent returns the newest payment carrying the provider intent id.
func (s *Store) ByIntent(ctx context.Context, intentID string, lock bool) (*Payment, error) {
	if lock && !s.inTx {
		return nil, ErrLockWithoutTx
	}
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE provider_intent_id = $1 ORDER BY id DESC LIMIT 1`
	if lock {
		q += ` FOR UPDATE`
	}
	return scanPayment(s.db.QueryRow(ctx, q, intentID))
}

func (s *Store) ListByOrder(ctx context.Context, orderID int64) ([]Payment, error) {
	rows, err := s.db.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) HasActiveForOrder(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payments
			WHERE order_id = $1
			  AND status NOT IN ('failed','cancelled')
		)`, orderID,
	).Scan(&exists)
	return exists, err
}

func (s *Store) UpdateStatus(ctx context.Context, id int64, to Status) error {
	_, err := s.db.Exec(ctx, `UPDATE payments SET status = $1, updated_at = NOW() WHERE id = $2`, string(to), id)
	if err != nil {
		return fmt.Errorf("update payment %d: %w", id, err)
	}
	return nil
}

func (s *Store) SetIntent(ctx context.Context, id int64, intentID string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE payments SET provider_intent_id = $1, updated_at = NOW()
		WHERE id = $2 AND (provider_intent_id IS NULL OR provider_intent_id = $1)`, intentID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// InsertWebhook stores an event once; inserted is false for a replayed event id.
func (s *Store) InsertWebhook(ctx context.Context, e *WebhookEvent) (inserted bool, err error) {
	err = s.db.QueryRow(ctx, `
		INSERT INTO payment_webhook_events (provider, event_id, provider_intent_id, status, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING id, received_at`,
		e.Provider, e.EventID, e.ProviderIntentID, string(e.Status), e.Payload,
	).Scan(&e.ID, &e.ReceivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PendingWebhooks locks the unprocessed events for an intent in arrival order.
func (s *Store) PendingWebhooks(ctx context.Context, intentID string) ([]WebhookEvent, error) {
	if !s.inTx {
		return nil, ErrLockWithoutTx
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, provider, event_id, provider_intent_id, status, payload, received_at, processed_at
		FROM payment_webhook_events
		WHERE provider_intent_id = $1 AND processed_at IS NULL
		ORDER BY received_at ASC, id ASC
		FOR UPDATE`, intentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WebhookEvent
	for rows.Next() {
		var e WebhookEvent
		if err := rows.Scan(&e.ID, &e.Provider, &e.EventID, &e.ProviderIntentID, &e.Status, &e.Payload, &e.ReceivedAt, &e.ProcessedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) MarkWebhookProcessed(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx, `UPDATE payment_webhook_events SET processed_at = NOW() WHERE id = $1 AND processed_at IS NULL`, id)
	return err
}
