package billing

import (
	"context"
	"time"
)

// Provider defines the interface for the hosted payment provider.
// The reconciliation core never calls outbound provider APIs; this
// interface serves the checkout/portal/cancel endpoints and webhook
// signature verification.
type Provider interface {
	// CreateCustomer creates a customer record in the billing provider.
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error)

	// CreateCheckoutSession creates a hosted checkout session for a
	// one-time payment or a subscription. The local customer id is stamped
	// into session metadata so webhook reconciliation can attribute the
	// resulting events.
	CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error)

	// CreatePortalSession creates a billing portal session where the
	// customer manages payment methods and subscriptions.
	CreatePortalSession(ctx context.Context, params CreatePortalSessionParams) (*PortalSession, error)

	// CancelSubscription cancels a subscription, either at period end or
	// immediately. Local state converges via the resulting webhooks.
	CancelSubscription(ctx context.Context, params CancelSubscriptionParams) error

	// ResumeSubscription clears a pending at-period-end cancellation.
	ResumeSubscription(ctx context.Context, subscriptionID string) error

	// VerifyWebhookSignature verifies that a webhook request is authentic.
	VerifyWebhookSignature(payload []byte, signature string, secret string) error
}

// CheckoutMode selects what a checkout session purchases.
type CheckoutMode string

const (
	CheckoutModePayment      CheckoutMode = "payment"
	CheckoutModeSubscription CheckoutMode = "subscription"
)

// CreateCustomerParams contains parameters for creating a customer.
type CreateCustomerParams struct {
	Email    string
	Name     string
	Metadata map[string]string
}

// Customer represents a billing provider customer.
type Customer struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}

// CreateCheckoutSessionParams contains parameters for a hosted checkout session.
type CreateCheckoutSessionParams struct {
	// Mode is "payment" for one-time charges or "subscription".
	Mode CheckoutMode

	// CustomerID is the provider's customer id (cus_...).
	CustomerID string

	// PriceID is the provider's price id (price_...).
	PriceID string

	// Quantity of the line item (default 1).
	Quantity int64

	// SuccessURL and CancelURL are the post-checkout redirects.
	SuccessURL string
	CancelURL  string

	// Metadata is copied onto the session. Must include the local
	// customer id under "customerId" for webhook attribution.
	Metadata map[string]string
}

// CheckoutSession represents a hosted checkout session.
type CheckoutSession struct {
	ID  string
	URL string
}

// CreatePortalSessionParams contains parameters for a billing portal session.
type CreatePortalSessionParams struct {
	CustomerID string
	ReturnURL  string
}

// PortalSession represents a billing portal session.
type PortalSession struct {
	ID  string
	URL string
}

// CancelSubscriptionParams contains parameters for canceling a subscription.
type CancelSubscriptionParams struct {
	SubscriptionID string

	// CancelAtPeriodEnd controls cancellation timing:
	// true cancels at the end of the current period, false immediately.
	CancelAtPeriodEnd bool
}
