// README: Cart store backed by PostgreSQL.
package cart

import (
	"context"
	"encoding/json"
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

func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{db: tx, inTx: true}
}

const cartColumns = `id, session_token, hub_id, customer_id, status, items, subtotal, updated_at`

func scanCart(row pgx.Row) (*Cart, error) {
	var c Cart
	var items string
	if err := row.Scan(&c.ID, &c.SessionToken, &c.HubID, &c.CustomerID, &c.Status, &items, &c.Subtotal, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(items), &c.Items); err != nil {
		return nil, fmt.Errorf("cart %d items: %w", c.ID, err)
	}
	return &c, nil
}

func (s *Store) ByID(ctx context.Context, id int64) (*Cart, error) {
	c, err := scanCart(s.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// Latest returns the most recent cart for a session in any status.
func (s *Store) Latest(ctx context.Context, token string) (*Cart, error) {
	c, err := scanCart(s.db.QueryRow(ctx, `
		SELECT `+cartColumns+`
		FROM carts
		WHERE session_token = $1
		ORDER BY id DESC
		LIMIT 1`, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// Active returns the session's active cart; lock takes a row lock and
// requires a transaction-bound store.
func (s *Store) Active(ctx context.Context, token string, lock bool) (*Cart, error) {
	if lock && !s.inTx {
		return nil, ErrLockWithoutTx
	}
	q := `
		SELECT ` + cartColumns + `
		FROM carts
		WHERE session_token = $1 AND status = 'active'
		ORDER BY id DESC
		LIMIT 1`
	if lock {
		q += ` FOR UPDATE`
	}
	c, err := scanCart(s.db.QueryRow(ctx, q, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (s *Store) Create(ctx context.Context, c *Cart) error {
	items, err := json.Marshal(c.Items)
	if err != nil {
		return err
	}
	if c.Status == "" {
		c.Status = StatusActive
	}
	return s.db.QueryRow(ctx, `
		INSERT INTO carts (session_token, hub_id, customer_id, status, items, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, updated_at`,
		c.SessionToken, c.HubID, c.CustomerID, c.Status, string(items), c.Subtotal,
	).Scan(&c.ID, &c.UpdatedAt)
}

// ReplaceItems overwrites items of an active cart.
func (s *Store) ReplaceItems(ctx context.Context, id int64, items []Item) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE carts SET items = $1, subtotal = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'active'`, string(raw), Subtotal(items), id)
	if err != nil {
		return fmt.Errorf("replace cart %d items: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConverted
	}
	return nil
}

// MarkConverted moves an active cart to converted.
func (s *Store) MarkConverted(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE carts SET status = 'converted', updated_at = NOW()
		WHERE id = $1 AND status = 'active'`, id)
	if err != nil {
		return fmt.Errorf("convert cart %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConverted
	}
	return nil
}
