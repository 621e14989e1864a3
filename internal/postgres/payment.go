package postgres

import (
	"context"
	"errors"

	"github.com/dukerupert/gjall/internal/domain"
	"github.com/jackc/pgx/v5"
)

const paymentColumns = `id, customer_id, stripe_payment_intent_id, stripe_checkout_session_id,
	amount, currency, status, description, metadata, created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID,
		&p.CustomerID,
		&p.StripePaymentIntentID,
		&p.StripeCheckoutSessionID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.Description,
		&p.Metadata,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPaymentByIntentID returns the payment holding the given provider
// payment intent id.
func (s *Store) GetPaymentByIntentID(ctx context.Context, stripePaymentIntentID string) (*domain.Payment, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE stripe_payment_intent_id = $1`,
		stripePaymentIntentID,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("payment.get_by_intent_id", "payment", stripePaymentIntentID)
		}
		return nil, domain.Internal(err, "payment.get_by_intent_id", "failed to query payment")
	}
	return p, nil
}

// ListPayments returns all payments for a customer, newest first.
func (s *Store) ListPayments(ctx context.Context, customerID int64) ([]domain.Payment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE customer_id = $1
		 ORDER BY created_at DESC`,
		customerID,
	)
	if err != nil {
		return nil, domain.Internal(err, "payment.list", "failed to query payments")
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, domain.Internal(err, "payment.list", "failed to scan payment")
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "payment.list", "failed to read payments")
	}
	return payments, nil
}

// CreatePayment inserts a Payment row and returns it.
func (s *Store) CreatePayment(ctx context.Context, params domain.CreatePaymentParams) (*domain.Payment, error) {
	metadata := params.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	currency := params.Currency
	if currency == "" {
		currency = "usd"
	}

	row := s.db.QueryRow(ctx,
		`INSERT INTO payments (customer_id, stripe_payment_intent_id, stripe_checkout_session_id,
			amount, currency, status, description, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+paymentColumns,
		params.CustomerID,
		params.StripePaymentIntentID,
		params.StripeCheckoutSessionID,
		params.Amount,
		currency,
		params.Status,
		params.Description,
		metadata,
	)
	p, err := scanPayment(row)
	if err != nil {
		return nil, domain.Internal(err, "payment.create", "failed to insert payment")
	}
	return p, nil
}

// UpdatePaymentStatusByIntentID sets the status of the payment holding the
// given payment intent id. A missing row affects zero rows and returns nil.
func (s *Store) UpdatePaymentStatusByIntentID(ctx context.Context, stripePaymentIntentID string, status domain.PaymentStatus) error {
	_, err := s.db.Exec(ctx,
		`UPDATE payments SET status = $1, updated_at = now() WHERE stripe_payment_intent_id = $2`,
		status,
		stripePaymentIntentID,
	)
	if err != nil {
		return domain.Internal(err, "payment.update_status", "failed to update payment")
	}
	return nil
}
