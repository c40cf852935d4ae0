// README: Customer delivery addresses; default reassignment is clear-then-set under a per-customer lock.
package address

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"

	"knx/internal/infra"
	"knx/internal/types"
)

var (
	ErrNotFound   = errors.New("address not found")
	ErrBadRequest = errors.New("bad request")
)

var validate = validator.New()

type Address struct {
	ID         int64       `json:"id"`
	CustomerID string      `json:"customer_id"`
	Label      string      `json:"label" validate:"max=64"`
	Line1      string      `json:"line1" validate:"required,max=255"`
	Location   types.Point `json:"location"`
	IsDefault  bool        `json:"is_default"`
}

// Pool is satisfied by *pgxpool.Pool.
type Pool interface {
	infra.DBTX
	infra.TxBeginner
}

type Service struct {
	db Pool
}

func NewService(db Pool) *Service {
	return &Service{db: db}
}

func (s *Service) Create(ctx context.Context, a *Address) error {
	if a.CustomerID == "" {
		return ErrBadRequest
	}
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if !a.Location.Missing() && !a.Location.InRange() {
		return fmt.Errorf("%w: coordinates out of range", ErrBadRequest)
	}
	return s.db.QueryRow(ctx, `
		INSERT INTO customer_addresses (customer_id, label, line1, latitude, longitude, is_default)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		RETURNING id`,
		a.CustomerID, a.Label, a.Line1, a.Location.Lat, a.Location.Lng,
	).Scan(&a.ID)
}

func (s *Service) List(ctx context.Context, customerID string) ([]Address, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, customer_id, label, line1, COALESCE(latitude, 0), COALESCE(longitude, 0), is_default
		FROM customer_addresses
		WHERE customer_id = $1
		ORDER BY is_default DESC, id ASC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Address
	for rows.Next() {
		var a Address
		if err := rows.Scan(&a.ID, &a.CustomerID, &a.Label, &a.Line1, &a.Location.Lat, &a.Location.Lng, &a.IsDefault); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetDefault makes addressID the customer's only default address. All of the
// customer's rows are locked before the flag moves so concurrent calls
// serialize and exactly one default remains.
func (s *Service) SetDefault(ctx context.Context, customerID string, addressID int64) error {
	if customerID == "" || addressID <= 0 {
		return ErrBadRequest
	}
	return infra.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id FROM customer_addresses
			WHERE customer_id = $1
			ORDER BY id
			FOR UPDATE`, customerID)
		if err != nil {
			return fmt.Errorf("lock addresses: %w", err)
		}
		owned := false
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			if id == addressID {
				owned = true
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if !owned {
			return ErrNotFound
		}

		if _, err := tx.Exec(ctx, `
			UPDATE customer_addresses SET is_default = FALSE
			WHERE customer_id = $1 AND is_default`, customerID); err != nil {
			return fmt.Errorf("clear default: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE customer_addresses SET is_default = TRUE
			WHERE id = $1 AND customer_id = $2`, addressID, customerID); err != nil {
			return fmt.Errorf("set default: %w", err)
		}
		return nil
	})
}

// Default returns the customer's default address.
func (s *Service) Default(ctx context.Context, customerID string) (*Address, error) {
	var a Address
	err := s.db.QueryRow(ctx, `
		SELECT id, customer_id, label, line1, COALESCE(latitude, 0), COALESCE(longitude, 0), is_default
		FROM customer_addresses
		WHERE customer_id = $1 AND is_default
		LIMIT 1`, customerID,
	).Scan(&a.ID, &a.CustomerID, &a.Label, &a.Line1, &a.Location.Lat, &a.Location.Lng, &a.IsDefault)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
