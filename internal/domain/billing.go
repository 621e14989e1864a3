package domain

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// SubscriptionStatus mirrors the provider's subscription lifecycle states.
type SubscriptionStatus string

const (
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusPaused            SubscriptionStatus = "paused"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
)

// IsActiveLike reports whether the status counts as a live subscription.
// Read endpoints treat the newest active-like subscription as *the*
// current subscription for a customer.
func (s SubscriptionStatus) IsActiveLike() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// InvoiceStatus mirrors the provider's invoice states.
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusOpen          InvoiceStatus = "open"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusUncollectible InvoiceStatus = "uncollectible"
	InvoiceStatusVoid          InvoiceStatus = "void"
)

// PaymentStatus mirrors the provider's payment intent states.
type PaymentStatus string

const (
	PaymentStatusSucceeded             PaymentStatus = "succeeded"
	PaymentStatusPending               PaymentStatus = "pending"
	PaymentStatusFailed                PaymentStatus = "failed"
	PaymentStatusCanceled              PaymentStatus = "canceled"
	PaymentStatusProcessing            PaymentStatus = "processing"
	PaymentStatusRequiresAction        PaymentStatus = "requires_action"
	PaymentStatusRequiresCapture       PaymentStatus = "requires_capture"
	PaymentStatusRequiresConfirmation  PaymentStatus = "requires_confirmation"
	PaymentStatusRequiresPaymentMethod PaymentStatus = "requires_payment_method"
)

// Customer links a local user to the provider's customer record.
// At most one Customer exists per user; the provider's customer id is
// globally unique and is the join key for all webhook attribution.
type Customer struct {
	ID               int64
	UserID           int64
	StripeCustomerID string
	Email            string
	Name             pgtype.Text
	Metadata         map[string]string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Subscription is the local mirror of a provider subscription.
// Rows are never deleted; cancellation and expiry are status transitions.
type Subscription struct {
	ID                   int64
	CustomerID           int64
	StripeSubscriptionID string
	StripePriceID        string
	Status               SubscriptionStatus
	CurrentPeriodStart   pgtype.Timestamptz
	CurrentPeriodEnd     pgtype.Timestamptz
	CancelAtPeriodEnd    bool
	CanceledAt           pgtype.Timestamptz
	EndedAt              pgtype.Timestamptz
	TrialStart           pgtype.Timestamptz
	TrialEnd             pgtype.Timestamptz
	Metadata             map[string]string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Invoice is the local mirror of a provider invoice. SubscriptionID is
// unset when the invoice could not be linked to a local subscription.
type Invoice struct {
	ID               int64
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
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Payment records a one-time charge, created from a completed checkout
// session and updated by later payment-intent events.
type Payment struct {
	ID                      int64
	CustomerID              int64
	StripePaymentIntentID   pgtype.Text
	StripeCheckoutSessionID pgtype.Text
	Amount                  int64
	Currency                string
	Status                  PaymentStatus
	Description             pgtype.Text
	Metadata                map[string]string
	CreatedAt               time.Time
	UpdatedAt               time.Time
}
