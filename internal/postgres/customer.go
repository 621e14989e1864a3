package postgres

import (
	"context"
	"errors"

	"github.com/dukerupert/gjall/internal/domain"
	"github.com/jackc/pgx/v5"
)

const customerColumns = `id, user_id, stripe_customer_id, email, name, metadata, created_at, updated_at`

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.StripeCustomerID,
		&c.Email,
		&c.Name,
		&c.Metadata,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCustomerByStripeID returns the customer owning the given provider customer id.
func (s *Store) GetCustomerByStripeID(ctx context.Context, stripeCustomerID string) (*domain.Customer, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE stripe_customer_id = $1`,
		stripeCustomerID,
	)
	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("customer.get_by_stripe_id", "customer", stripeCustomerID)
		}
		return nil, domain.Internal(err, "customer.get_by_stripe_id", "failed to query customer")
	}
	return c, nil
}

// GetCustomerByUserID returns the customer for a local user.
func (s *Store) GetCustomerByUserID(ctx context.Context, userID int64) (*domain.Customer, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE user_id = $1`,
		userID,
	)
	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.Errorf(domain.ENOTFOUND, "customer.get_by_user_id", "customer not found for user %d", userID)
		}
		return nil, domain.Internal(err, "customer.get_by_user_id", "failed to query customer")
	}
	return c, nil
}

// CreateCustomer inserts a Customer row and returns it.
func (s *Store) CreateCustomer(ctx context.Context, params domain.CreateCustomerParams) (*domain.Customer, error) {
	metadata := params.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	row := s.db.QueryRow(ctx,
		`INSERT INTO customers (user_id, stripe_customer_id, email, name, metadata)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+customerColumns,
		params.UserID,
		params.StripeCustomerID,
		params.Email,
		params.Name,
		metadata,
	)
	c, err := scanCustomer(row)
	if err != nil {
		return nil, domain.Internal(err, "customer.create", "failed to insert customer")
	}
	return c, nil
}
