package billing

import (
	"context"
)

// MockProvider is a test double for Provider. Each method delegates to the
// corresponding function field when set and returns a zero value otherwise.
type MockProvider struct {
	CreateCustomerFunc         func(ctx context.Context, params CreateCustomerParams) (*Customer, error)
	CreateCheckoutSessionFunc  func(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error)
	CreatePortalSessionFunc    func(ctx context.Context, params CreatePortalSessionParams) (*PortalSession, error)
	CancelSubscriptionFunc     func(ctx context.Context, params CancelSubscriptionParams) error
	ResumeSubscriptionFunc     func(ctx context.Context, subscriptionID string) error
	VerifyWebhookSignatureFunc func(payload []byte, signature string, secret string) error
}

var _ Provider = (*MockProvider)(nil)

func (m *MockProvider) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	if m.CreateCustomerFunc != nil {
		return m.CreateCustomerFunc(ctx, params)
	}
	return &Customer{ID: "cus_mock", Email: params.Email, Name: params.Name}, nil
}

func (m *MockProvider) CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error) {
	if m.CreateCheckoutSessionFunc != nil {
		return m.CreateCheckoutSessionFunc(ctx, params)
	}
	return &CheckoutSession{ID: "cs_mock", URL: "https://checkout.example.com/cs_mock"}, nil
}

func (m *MockProvider) CreatePortalSession(ctx context.Context, params CreatePortalSessionParams) (*PortalSession, error) {
	if m.CreatePortalSessionFunc != nil {
		return m.CreatePortalSessionFunc(ctx, params)
	}
	return &PortalSession{ID: "bps_mock", URL: "https://portal.example.com/bps_mock"}, nil
}

func (m *MockProvider) CancelSubscription(ctx context.Context, params CancelSubscriptionParams) error {
	if m.CancelSubscriptionFunc != nil {
		return m.CancelSubscriptionFunc(ctx, params)
	}
	return nil
}

func (m *MockProvider) ResumeSubscription(ctx context.Context, subscriptionID string) error {
	if m.ResumeSubscriptionFunc != nil {
		return m.ResumeSubscriptionFunc(ctx, subscriptionID)
	}
	return nil
}

func (m *MockProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	if m.VerifyWebhookSignatureFunc != nil {
		return m.VerifyWebhookSignatureFunc(payload, signature, secret)
	}
	return nil
}
