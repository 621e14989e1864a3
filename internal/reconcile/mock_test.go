package reconcile

import (
	"context"
	"io"
	"log/slog"

	"github.com/dukerupert/gjall/internal/domain"
)

// mockStore is a function-field test double for domain.BillingStore.
// Unset lookup fields report not-found; unset write fields succeed.
// Write calls are counted so tests can assert create-vs-update behavior.
type mockStore struct {
	getCustomerByStripeIDFunc        func(ctx context.Context, stripeCustomerID string) (*domain.Customer, error)
	getCustomerByUserIDFunc          func(ctx context.Context, userID int64) (*domain.Customer, error)
	createCustomerFunc               func(ctx context.Context, params domain.CreateCustomerParams) (*domain.Customer, error)
	getSubscriptionByStripeIDFunc    func(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error)
	getCurrentSubscriptionFunc       func(ctx context.Context, customerID int64) (*domain.Subscription, error)
	listSubscriptionsFunc            func(ctx context.Context, customerID int64) ([]domain.Subscription, error)
	createSubscriptionFunc           func(ctx context.Context, params domain.CreateSubscriptionParams) (*domain.Subscription, error)
	updateSubscriptionByStripeIDFunc func(ctx context.Context, stripeSubscriptionID string, params domain.UpdateSubscriptionParams) error
	getInvoiceByStripeIDFunc         func(ctx context.Context, stripeInvoiceID string) (*domain.Invoice, error)
	listInvoicesFunc                 func(ctx context.Context, customerID int64) ([]domain.Invoice, error)
	createInvoiceFunc                func(ctx context.Context, params domain.CreateInvoiceParams) (*domain.Invoice, error)
	updateInvoiceByStripeIDFunc      func(ctx context.Context, stripeInvoiceID string, params domain.UpdateInvoiceParams) error
	getPaymentByIntentIDFunc         func(ctx context.Context, stripePaymentIntentID string) (*domain.Payment, error)
	listPaymentsFunc                 func(ctx context.Context, customerID int64) ([]domain.Payment, error)
	createPaymentFunc                func(ctx context.Context, params domain.CreatePaymentParams) (*domain.Payment, error)
	updatePaymentStatusFunc          func(ctx context.Context, stripePaymentIntentID string, status domain.PaymentStatus) error

	createSubscriptionCalls int
	updateSubscriptionCalls int
	createInvoiceCalls      int
	updateInvoiceCalls      int
	createPaymentCalls      int
	updatePaymentCalls      int

	lastCreateSubscription domain.CreateSubscriptionParams
	lastUpdateSubscription domain.UpdateSubscriptionParams
	lastCreateInvoice      domain.CreateInvoiceParams
	lastUpdateInvoice      domain.UpdateInvoiceParams
	lastCreatePayment      domain.CreatePaymentParams
	lastPaymentStatus      domain.PaymentStatus
}

var _ domain.BillingStore = (*mockStore)(nil)

func (m *mockStore) GetCustomerByStripeID(ctx context.Context, stripeCustomerID string) (*domain.Customer, error) {
	if m.getCustomerByStripeIDFunc != nil {
		return m.getCustomerByStripeIDFunc(ctx, stripeCustomerID)
	}
	return nil, domain.NotFound("test", "customer", stripeCustomerID)
}

func (m *mockStore) GetCustomerByUserID(ctx context.Context, userID int64) (*domain.Customer, error) {
	if m.getCustomerByUserIDFunc != nil {
		return m.getCustomerByUserIDFunc(ctx, userID)
	}
	return nil, domain.NotFound("test", "customer", "user")
}

func (m *mockStore) CreateCustomer(ctx context.Context, params domain.CreateCustomerParams) (*domain.Customer, error) {
	if m.createCustomerFunc != nil {
		return m.createCustomerFunc(ctx, params)
	}
	return &domain.Customer{ID: 1, UserID: params.UserID, StripeCustomerID: params.StripeCustomerID}, nil
}

func (m *mockStore) GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error) {
	if m.getSubscriptionByStripeIDFunc != nil {
		return m.getSubscriptionByStripeIDFunc(ctx, stripeSubscriptionID)
	}
	return nil, domain.NotFound("test", "subscription", stripeSubscriptionID)
}

func (m *mockStore) GetCurrentSubscription(ctx context.Context, customerID int64) (*domain.Subscription, error) {
	if m.getCurrentSubscriptionFunc != nil {
		return m.getCurrentSubscriptionFunc(ctx, customerID)
	}
	return nil, domain.NotFound("test", "subscription", "current")
}

func (m *mockStore) ListSubscriptions(ctx context.Context, customerID int64) ([]domain.Subscription, error) {
	if m.listSubscriptionsFunc != nil {
		return m.listSubscriptionsFunc(ctx, customerID)
	}
	return nil, nil
}

func (m *mockStore) CreateSubscription(ctx context.Context, params domain.CreateSubscriptionParams) (*domain.Subscription, error) {
	m.createSubscriptionCalls++
	m.lastCreateSubscription = params
	if m.createSubscriptionFunc != nil {
		return m.createSubscriptionFunc(ctx, params)
	}
	return &domain.Subscription{ID: 1, CustomerID: params.CustomerID, StripeSubscriptionID: params.StripeSubscriptionID}, nil
}

func (m *mockStore) UpdateSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string, params domain.UpdateSubscriptionParams) error {
	m.updateSubscriptionCalls++
	m.lastUpdateSubscription = params
	if m.updateSubscriptionByStripeIDFunc != nil {
		return m.updateSubscriptionByStripeIDFunc(ctx, stripeSubscriptionID, params)
	}
	return nil
}

func (m *mockStore) GetInvoiceByStripeID(ctx context.Context, stripeInvoiceID string) (*domain.Invoice, error) {
	if m.getInvoiceByStripeIDFunc != nil {
		return m.getInvoiceByStripeIDFunc(ctx, stripeInvoiceID)
	}
	return nil, domain.NotFound("test", "invoice", stripeInvoiceID)
}

func (m *mockStore) ListInvoices(ctx context.Context, customerID int64) ([]domain.Invoice, error) {
	if m.listInvoicesFunc != nil {
		return m.listInvoicesFunc(ctx, customerID)
	}
	return nil, nil
}

func (m *mockStore) CreateInvoice(ctx context.Context, params domain.CreateInvoiceParams) (*domain.Invoice, error) {
	m.createInvoiceCalls++
	m.lastCreateInvoice = params
	if m.createInvoiceFunc != nil {
		return m.createInvoiceFunc(ctx, params)
	}
	return &domain.Invoice{ID: 1, CustomerID: params.CustomerID, StripeInvoiceID: params.StripeInvoiceID}, nil
}

func (m *mockStore) UpdateInvoiceByStripeID(ctx context.Context, stripeInvoiceID string, params domain.UpdateInvoiceParams) error {
	m.updateInvoiceCalls++
	m.lastUpdateInvoice = params
	if m.updateInvoiceByStripeIDFunc != nil {
		return m.updateInvoiceByStripeIDFunc(ctx, stripeInvoiceID, params)
	}
	return nil
}

func (m *mockStore) GetPaymentByIntentID(ctx context.Context, stripePaymentIntentID string) (*domain.Payment, error) {
	if m.getPaymentByIntentIDFunc != nil {
		return m.getPaymentByIntentIDFunc(ctx, stripePaymentIntentID)
	}
	return nil, domain.NotFound("test", "payment", stripePaymentIntentID)
}

func (m *mockStore) ListPayments(ctx context.Context, customerID int64) ([]domain.Payment, error) {
	if m.listPaymentsFunc != nil {
		return m.listPaymentsFunc(ctx, customerID)
	}
	return nil, nil
}

func (m *mockStore) CreatePayment(ctx context.Context, params domain.CreatePaymentParams) (*domain.Payment, error) {
	m.createPaymentCalls++
	m.lastCreatePayment = params
	if m.createPaymentFunc != nil {
		return m.createPaymentFunc(ctx, params)
	}
	return &domain.Payment{ID: 1, CustomerID: params.CustomerID}, nil
}

func (m *mockStore) UpdatePaymentStatusByIntentID(ctx context.Context, stripePaymentIntentID string, status domain.PaymentStatus) error {
	m.updatePaymentCalls++
	m.lastPaymentStatus = status
	if m.updatePaymentStatusFunc != nil {
		return m.updatePaymentStatusFunc(ctx, stripePaymentIntentID, status)
	}
	return nil
}

func (m *mockStore) InTx(ctx context.Context, fn func(domain.BillingStore) error) error {
	return fn(m)
}

// recordingSink captures emitted business events.
type recordingSink struct {
	events []recordedEvent
}

type recordedEvent struct {
	eventType string
	data      map[string]any
}

func (s *recordingSink) RecordBusinessEvent(_ context.Context, eventType string, data map[string]any) {
	s.events = append(s.events, recordedEvent{eventType: eventType, data: data})
}

func newTestHandlers(store *mockStore, sink *recordingSink) *Handlers {
	return NewHandlers(store, sink, slog.New(slog.NewTextHandler(io.Discard, nil)))
}
