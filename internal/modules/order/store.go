// README: Order store backed by PostgreSQL.
package order

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

var ErrLockWithoutTx = errors.New("order row lock requested outside a transaction")

const orderColumns = `id, hub_id, customer_id, session_token, cart_id, status, status_version,
	fulfillment_type, totals_snapshot, cart_snapshot, total, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.HubID, &o.CustomerID, &o.SessionToken, &o.CartID, &o.Status, &o.StatusVersion,
		&o.FulfillmentType, &o.TotalsSnapshot, &o.CartSnapshot, &o.Total, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) Create(ctx context.Context, o *Order) error {
	return s.db.QueryRow(ctx, `
		INSERT INTO orders (
			hub_id, customer_id, session_token, cart_id, status, status_version,
			fulfillment_type, totals_snapshot, cart_snapshot, total
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		o.HubID, o.CustomerID, o.SessionToken, o.CartID, string(o.Status), o.StatusVersion,
		o.FulfillmentType, o.TotalsSnapshot, o.CartSnapshot, o.Total,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

func (s *Store) Get(ctx context.Context, id int64) (*Order, error) {
	return scanOrder(s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

// GetForUpdate locks the order row for the rest of the transaction.
func (s *Store) GetForUpdate(ctx context.Context, id int64) (*Order, error) {
	if !s.inTx {
		return nil, ErrLockWithoutTx
	}
	return scanOrder(s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
}

func (s *Store) ListByCustomer(ctx context.Context, customerID string, limit int) ([]Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE customer_id = $1
		ORDER BY id DESC
		LIMIT $2`, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// UpdateStatus applies a transition only if the row is still at (from, version).
func (s *Store) UpdateStatus(ctx context.Context, id int64, from, to Status, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    status_version = status_version + 1,
		    updated_at = NOW()
		WHERE id = $2 AND status = $3 AND status_version = $4`,
		string(to), id, string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO order_state_events (
			order_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		e.OrderID,
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		e.ActorID,
		e.CreatedAt,
	)
	return err
}

func (s *Store) Events(ctx context.Context, orderID int64) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, from_status, to_status, actor_type, actor_id, created_at
		FROM order_state_events
		WHERE order_id = $1
		ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.OrderID, &e.FromStatus, &e.ToStatus, &e.ActorType, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
