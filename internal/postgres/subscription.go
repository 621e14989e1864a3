package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/gjall/internal/domain"
	"github.com/jackc/pgx/v5"
)

const subscriptionColumns = `id, customer_id, stripe_subscription_id, stripe_price_id, status,
	current_period_start, current_period_end, cancel_at_period_end,
	canceled_at, ended_at, trial_start, trial_end, metadata, created_at, updated_at`

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := row.Scan(
		&sub.ID,
		&sub.CustomerID,
		&sub.StripeSubscriptionID,
		&sub.StripePriceID,
		&sub.Status,
		&sub.CurrentPeriodStart,
		&sub.CurrentPeriodEnd,
		&sub.CancelAtPeriodEnd,
		&sub.CanceledAt,
		&sub.EndedAt,
		&sub.TrialStart,
		&sub.TrialEnd,
		&sub.Metadata,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetSubscriptionByStripeID returns the subscription mirroring the given
// provider subscription id.
func (s *Store) GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE stripe_subscription_id = $1`,
		stripeSubscriptionID,
	)
	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("subscription.get_by_stripe_id", "subscription", stripeSubscriptionID)
		}
		return nil, domain.Internal(err, "subscription.get_by_stripe_id", "failed to query subscription")
	}
	return sub, nil
}

// GetCurrentSubscription returns the newest active or trialing subscription
// for a customer.
func (s *Store) GetCurrentSubscription(ctx context.Context, customerID int64) (*domain.Subscription, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE customer_id = $1 AND status IN ('active', 'trialing')
		 ORDER BY created_at DESC
		 LIMIT 1`,
		customerID,
	)
	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.Errorf(domain.ENOTFOUND, "subscription.get_current", "no active subscription for customer %d", customerID)
		}
		return nil, domain.Internal(err, "subscription.get_current", "failed to query subscription")
	}
	return sub, nil
}

// ListSubscriptions returns all subscriptions for a customer, newest first.
func (s *Store) ListSubscriptions(ctx context.Context, customerID int64) ([]domain.Subscription, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE customer_id = $1
		 ORDER BY created_at DESC`,
		customerID,
	)
	if err != nil {
		return nil, domain.Internal(err, "subscription.list", "failed to query subscriptions")
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, domain.Internal(err, "subscription.list", "failed to scan subscription")
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "subscription.list", "failed to read subscriptions")
	}
	return subs, nil
}

// CreateSubscription inserts a Subscription row and returns it.
func (s *Store) CreateSubscription(ctx context.Context, params domain.CreateSubscriptionParams) (*domain.Subscription, error) {
	metadata := params.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	row := s.db.QueryRow(ctx,
		`INSERT INTO subscriptions (customer_id, stripe_subscription_id, stripe_price_id, status,
			current_period_start, current_period_end, cancel_at_period_end, trial_start, trial_end, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+subscriptionColumns,
		params.CustomerID,
		params.StripeSubscriptionID,
		params.StripePriceID,
		params.Status,
		params.CurrentPeriodStart,
		params.CurrentPeriodEnd,
		params.CancelAtPeriodEnd,
		params.TrialStart,
		params.TrialEnd,
		metadata,
	)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, domain.Internal(err, "subscription.create", "failed to insert subscription")
	}
	return sub, nil
}

// UpdateSubscriptionByStripeID applies a partial update keyed by the
// provider's subscription id. Updating a missing row affects zero rows and
// returns nil: an update may legitimately arrive before the create.
func (s *Store) UpdateSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string, params domain.UpdateSubscriptionParams) error {
	sets := []string{"updated_at = now()"}
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.StripePriceID != nil {
		add("stripe_price_id", *params.StripePriceID)
	}
	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.CurrentPeriodStart != nil {
		add("current_period_start", *params.CurrentPeriodStart)
	}
	if params.CurrentPeriodEnd != nil {
		add("current_period_end", *params.CurrentPeriodEnd)
	}
	if params.CancelAtPeriodEnd != nil {
		add("cancel_at_period_end", *params.CancelAtPeriodEnd)
	}
	if params.CanceledAt != nil {
		add("canceled_at", *params.CanceledAt)
	}
	if params.EndedAt != nil {
		add("ended_at", *params.EndedAt)
	}
	if params.TrialStart != nil {
		add("trial_start", *params.TrialStart)
	}
	if params.TrialEnd != nil {
		add("trial_end", *params.TrialEnd)
	}

	args = append(args, stripeSubscriptionID)
	query := fmt.Sprintf(
		"UPDATE subscriptions SET %s WHERE stripe_subscription_id = $%d",
		strings.Join(sets, ", "), len(args),
	)

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return domain.Internal(err, "subscription.update", "failed to update subscription")
	}
	return nil
}
