package billing

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeProvider implements Provider using the Stripe Go SDK.
//
// The API client is constructed here and owned by the caller, not by a
// package-level key: two providers with different keys can coexist, and
// tests can build one without touching global state.
type StripeProvider struct {
	api    *client.API
	config StripeConfig
}

// Compile-time check to ensure StripeProvider implements Provider.
var _ Provider = (*StripeProvider)(nil)

// NewStripeProvider creates a new Stripe billing provider.
func NewStripeProvider(config StripeConfig) (*StripeProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &StripeProvider{
		api:    client.New(config.APIKey, nil),
		config: config,
	}, nil
}

// CreateCustomer creates a Stripe customer.
func (s *StripeProvider) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	cp := &stripe.CustomerParams{
		Email: stripe.String(params.Email),
	}
	cp.Context = ctx
	if params.Name != "" {
		cp.Name = stripe.String(params.Name)
	}
	for k, v := range params.Metadata {
		cp.AddMetadata(k, v)
	}

	cust, err := s.api.Customers.New(cp)
	if err != nil {
		return nil, wrapStripeError(err, "failed to create customer")
	}

	return &Customer{
		ID:        cust.ID,
		Email:     cust.Email,
		Name:      cust.Name,
		CreatedAt: time.Unix(cust.Created, 0),
	}, nil
}

// CreateCheckoutSession creates a hosted checkout session.
func (s *StripeProvider) CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error) {
	quantity := params.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	sp := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(params.Mode)),
		Customer:   stripe.String(params.CustomerID),
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(params.PriceID),
				Quantity: stripe.Int64(quantity),
			},
		},
	}
	sp.Context = ctx
	for k, v := range params.Metadata {
		sp.AddMetadata(k, v)
	}

	sess, err := s.api.CheckoutSessions.New(sp)
	if err != nil {
		return nil, wrapStripeError(err, "failed to create checkout session")
	}

	return &CheckoutSession{
		ID:  sess.ID,
		URL: sess.URL,
	}, nil
}

// CreatePortalSession creates a Stripe billing portal session.
func (s *StripeProvider) CreatePortalSession(ctx context.Context, params CreatePortalSessionParams) (*PortalSession, error) {
	pp := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(params.CustomerID),
		ReturnURL: stripe.String(params.ReturnURL),
	}
	pp.Context = ctx

	sess, err := s.api.BillingPortalSessions.New(pp)
	if err != nil {
		return nil, wrapStripeError(err, "failed to create portal session")
	}

	return &PortalSession{
		ID:  sess.ID,
		URL: sess.URL,
	}, nil
}

// CancelSubscription cancels a Stripe subscription.
func (s *StripeProvider) CancelSubscription(ctx context.Context, params CancelSubscriptionParams) error {
	if params.CancelAtPeriodEnd {
		up := &stripe.SubscriptionParams{
			CancelAtPeriodEnd: stripe.Bool(true),
		}
		up.Context = ctx
		if _, err := s.api.Subscriptions.Update(params.SubscriptionID, up); err != nil {
			return wrapStripeError(err, "failed to schedule subscription cancellation")
		}
		return nil
	}

	cp := &stripe.SubscriptionCancelParams{}
	cp.Context = ctx
	if _, err := s.api.Subscriptions.Cancel(params.SubscriptionID, cp); err != nil {
		return wrapStripeError(err, "failed to cancel subscription")
	}
	return nil
}

// ResumeSubscription clears a pending at-period-end cancellation.
func (s *StripeProvider) ResumeSubscription(ctx context.Context, subscriptionID string) error {
	up := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(false),
	}
	up.Context = ctx
	if _, err := s.api.Subscriptions.Update(subscriptionID, up); err != nil {
		return wrapStripeError(err, "failed to resume subscription")
	}
	return nil
}

// VerifyWebhookSignature verifies a Stripe webhook signature.
func (s *StripeProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	_, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return ErrInvalidWebhookSignature
	}
	return nil
}

// wrapStripeError converts a Stripe SDK error into a StripeError,
// preserving the provider's error code and request id for debugging.
func wrapStripeError(err error, message string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &StripeError{
			Message:       message,
			Code:          string(stripeErr.Code),
			RequestID:     stripeErr.RequestID,
			OriginalError: err,
		}
	}
	return &StripeError{
		Message:       message,
		OriginalError: err,
	}
}
