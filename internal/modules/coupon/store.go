// README: Coupon store; row locks are only legal on a transaction-bound store.
package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

// WithTx returns a store bound to tx; only such a store may lock rows.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{db: tx, inTx: true}
}

// FindByCode looks a coupon up case-insensitively. lock takes a FOR UPDATE
// row lock and requires a transaction-bound store.
func (s *Store) FindByCode(ctx context.Context, code string, lock bool) (*Coupon, error) {
	if lock && !s.inTx {
		return nil, ErrLockWithoutTx
	}
	q := `
		SELECT id, code, type, value, min_subtotal, status, starts_at, expires_at, usage_limit, used_count
		FROM coupons
		WHERE LOWER(code) = LOWER($1)`
	if lock {
		q += ` FOR UPDATE`
	}
	var c Coupon
	err := s.db.QueryRow(ctx, q, strings.TrimSpace(code)).Scan(
		&c.ID, &c.Code, &c.Type, &c.Value, &c.MinSubtotal, &c.Status,
		&c.StartsAt, &c.ExpiresAt, &c.UsageLimit, &c.UsedCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find coupon: %w", err)
	}
	return &c, nil
}

// IncrementUsage bumps used_count unless the limit is already reached.
func (s *Store) IncrementUsage(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE coupons
		SET used_count = used_count + 1
		WHERE id = $1 AND (usage_limit IS NULL OR usage_limit <= 0 OR used_count < usage_limit)`, id)
	if err != nil {
		return fmt.Errorf("increment coupon %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLimitReached
	}
	return nil
}
