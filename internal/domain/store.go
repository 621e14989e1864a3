package domain

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// CreateCustomerParams contains fields for inserting a Customer row.
type CreateCustomerParams struct {
	UserID           int64
	StripeCustomerID string
	Email            string
	Name             pgtype.Text
	Metadata         map[string]string
}

// CreateSubscriptionParams contains fields for inserting a Subscription row.
type CreateSubscriptionParams struct {
	CustomerID           int64
	StripeSubscriptionID string
	StripePriceID        string
	Status               SubscriptionStatus
	CurrentPeriodStart   pgtype.Timestamptz
	CurrentPeriodEnd     pgtype.Timestamptz
	CancelAtPeriodEnd    bool
	TrialStart           pgtype.Timestamptz
	TrialEnd             pgtype.Timestamptz
	Metadata             map[string]string
}

// UpdateSubscriptionParams is a partial update keyed by the provider's
// subscription id. Nil pointer fields are left unchanged; a pointer to an
// invalid pgtype value writes NULL (the provider's nullable fields pass
// through as-is, last write wins).
type UpdateSubscriptionParams struct {
	StripePriceID      *string
	Status             *SubscriptionStatus
	CurrentPeriodStart *pgtype.Timestamptz
	CurrentPeriodEnd   *pgtype.Timestamptz
	CancelAtPeriodEnd  *bool
	CanceledAt         *pgtype.Timestamptz
	EndedAt            *pgtype.Timestamptz
	TrialStart         *pgtype.Timestamptz
	TrialEnd           *pgtype.Timestamptz
}

// CreateInvoiceParams contains fields for inserting an Invoice row.
type CreateInvoiceParams struct {
	CustomerID       int64
	SubscriptionID   pgtype.Int8
	StripeInvoiceID  string
	AmountDue        int64
	AmountPaid       int64
	Currency         string
	Status           InvoiceStatus
	HostedInvoiceURL pgtype.Text
	InvoicePDF       pgtype.Text
	PeriodStart      pgtype.Timestamptz
	PeriodEnd        pgtype.Timestamptz
}

// UpdateInvoiceParams is a partial update keyed by the provider's invoice id.
type UpdateInvoiceParams struct {
	Status           *InvoiceStatus
	AmountPaid       *int64
	HostedInvoiceURL *pgtype.Text
	InvoicePDF       *pgtype.Text
}

// CreatePaymentParams contains fields for inserting a Payment row.
type CreatePaymentParams struct {
	CustomerID              int64
	StripePaymentIntentID   pgtype.Text
	StripeCheckoutSessionID pgtype.Text
	Amount                  int64
	Currency                string
	Status                  PaymentStatus
	Description             pgtype.Text
	Metadata                map[string]string
}

// CustomerStore persists Customer rows.
type CustomerStore interface {
	// GetCustomerByStripeID returns the customer owning the given provider
	// customer id, or an ENOTFOUND error.
	GetCustomerByStripeID(ctx context.Context, stripeCustomerID string) (*Customer, error)

	// GetCustomerByUserID returns the customer for a local user, or an
	// ENOTFOUND error.
	GetCustomerByUserID(ctx context.Context, userID int64) (*Customer, error)

	CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error)
}

// SubscriptionStore persists Subscription rows.
type SubscriptionStore interface {
	GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*Subscription, error)

	// GetCurrentSubscription returns the newest active-like (active or
	// trialing) subscription for a customer, or an ENOTFOUND error.
	GetCurrentSubscription(ctx context.Context, customerID int64) (*Subscription, error)

	ListSubscriptions(ctx context.Context, customerID int64) ([]Subscription, error)

	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error)

	// UpdateSubscriptionByStripeID applies a partial update. Updating a row
	// that does not exist is a no-op, not an error: webhook delivery order
	// is not guaranteed and an update may arrive before the create.
	UpdateSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string, params UpdateSubscriptionParams) error
}

// InvoiceStore persists Invoice rows.
type InvoiceStore interface {
	GetInvoiceByStripeID(ctx context.Context, stripeInvoiceID string) (*Invoice, error)

	ListInvoices(ctx context.Context, customerID int64) ([]Invoice, error)

	CreateInvoice(ctx context.Context, params CreateInvoiceParams) (*Invoice, error)

	// UpdateInvoiceByStripeID applies a partial update; a missing row is a
	// no-op as with subscriptions.
	UpdateInvoiceByStripeID(ctx context.Context, stripeInvoiceID string, params UpdateInvoiceParams) error
}

// PaymentStore persists Payment rows.
type PaymentStore interface {
	GetPaymentByIntentID(ctx context.Context, stripePaymentIntentID string) (*Payment, error)

	ListPayments(ctx context.Context, customerID int64) ([]Payment, error)

	CreatePayment(ctx context.Context, params CreatePaymentParams) (*Payment, error)

	// UpdatePaymentStatusByIntentID sets the status of the payment holding
	// the given payment intent id; a missing row is a no-op.
	UpdatePaymentStatusByIntentID(ctx context.Context, stripePaymentIntentID string, status PaymentStatus) error
}

// BillingStore aggregates the per-entity stores and adds transaction
// support. Reconciliation handlers wrap their read-then-write sequence in
// InTx so a concurrent delivery of the same external id cannot observe a
// half-applied state.
type BillingStore interface {
	CustomerStore
	SubscriptionStore
	InvoiceStore
	PaymentStore

	// InTx runs fn against a store bound to a single transaction,
	// committing on nil and rolling back on error. Implementations without
	// transaction support may run fn against the receiver directly.
	InTx(ctx context.Context, fn func(BillingStore) error) error
}
