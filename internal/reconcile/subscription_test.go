package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/gjall/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func customerLookup(localID int64, stripeID string) func(ctx context.Context, id string) (*domain.Customer, error) {
	return func(_ context.Context, id string) (*domain.Customer, error) {
		if id == stripeID {
			return &domain.Customer{ID: localID, StripeCustomerID: stripeID}, nil
		}
		return nil, domain.NotFound("test", "customer", id)
	}
}

func TestSubscriptionCreated(t *testing.T) {
	store := &mockStore{
		getCustomerByStripeIDFunc: customerLookup(7, "cus_1"),
	}
	sink := &recordingSink{}
	h := newTestHandlers(store, sink)

	raw := `{
		"id": "sub_1",
		"customer": "cus_1",
		"status": "trialing",
		"items": {"data": [{"price": {"id": "price_pro_month"}}]},
		"current_period_start": 1000,
		"current_period_end": 2000,
		"trial_end": 1500
	}`
	err := h.Dispatch(context.Background(), testEvent("customer.subscription.created", raw))

	require.NoError(t, err)
	require.Equal(t, 1, store.createSubscriptionCalls)
	assert.Zero(t, store.updateSubscriptionCalls)

	created := store.lastCreateSubscription
	assert.Equal(t, int64(7), created.CustomerID)
	assert.Equal(t, "sub_1", created.StripeSubscriptionID)
	assert.Equal(t, "price_pro_month", created.StripePriceID)
	assert.Equal(t, domain.SubscriptionStatusTrialing, created.Status)
	assert.Equal(t, time.Unix(1000, 0).UTC(), created.CurrentPeriodStart.Time)
	assert.Equal(t, time.Unix(2000, 0).UTC(), created.CurrentPeriodEnd.Time)
	require.True(t, created.TrialEnd.Valid)
	assert.Equal(t, time.Unix(1500, 0).UTC(), created.TrialEnd.Time)
	assert.False(t, created.TrialStart.Valid)

	require.Len(t, sink.events, 1)
	assert.Equal(t, domain.EventSubscriptionCreated, sink.events[0].eventType)
}

func TestSubscriptionCreatedDuplicateUpdatesInstead(t *testing.T) {
	store := &mockStore{
		getCustomerByStripeIDFunc: customerLookup(7, "cus_1"),
		getSubscriptionByStripeIDFunc: func(_ context.Context, id string) (*domain.Subscription, error) {
			return &domain.Subscription{ID: 3, CustomerID: 7, StripeSubscriptionID: id}, nil
		},
	}
	sink := &recordingSink{}
	h := newTestHandlers(store, sink)

	raw := `{
		"id": "sub_1",
		"customer": "cus_1",
		"status": "active",
		"items": {"data": [{"price": {"id": "price_pro_month"}}]}
	}`
	err := h.Dispatch(context.Background(), testEvent("customer.subscription.created", raw))

	require.NoError(t, err)
	assert.Zero(t, store.createSubscriptionCalls)
	require.Equal(t, 1, store.updateSubscriptionCalls)
	require.NotNil(t, store.lastUpdateSubscription.Status)
	assert.Equal(t, domain.SubscriptionStatusActive, *store.lastUpdateSubscription.Status)

	// Converging an existing row is not a creation.
	assert.Empty(t, sink.events)
}

func TestSubscriptionCreatedUnknownCustomer(t *testing.T) {
	store := &mockStore{}
	h := newTestHandlers(store, &recordingSink{})

	raw := `{"id":"sub_2","customer":"cus_missing","status":"active","items":{"data":[{"price":{"id":"price_1"}}]}}`
	err := h.Dispatch(context.Background(), testEvent("customer.subscription.created", raw))

	require.NoError(t, err)
	assert.Zero(t, store.createSubscriptionCalls)
	assert.Zero(t, store.updateSubscriptionCalls)
}

func TestSubscriptionCreatedMissingPriceID(t *testing.T) {
	store := &mockStore{
		getCustomerByStripeIDFunc: customerLookup(7, "cus_1"),
	}
	h := newTestHandlers(store, &recordingSink{})

	raw := `{"id":"sub_3","customer":"cus_1","status":"active","items":{"data":[]}}`
	err := h.Dispatch(context.Background(), testEvent("customer.subscription.created", raw))

	require.NoError(t, err)
	assert.Zero(t, store.createSubscriptionCalls)
}

func TestSubscriptionUpdated(t *testing.T) {
	store := &mockStore{}
	sink := &recordingSink{}
	h := newTestHandlers(store, sink)

	raw := `{
		"id": "sub_1",
		"status": "past_due",
		"cancel_at_period_end": true,
		"current_period_start": 1000,
		"current_period_end": 2000,
		"items": {"data": [{"price": {"id": "price_team_month"}}]}
	}`
	err := h.Dispatch(context.Background(), testEvent("customer.subscription.updated", raw))

	require.NoError(t, err)
	require.Equal(t, 1, store.updateSubscriptionCalls)

	params := store.lastUpdateSubscription
	require.NotNil(t, params.Status)
	assert.Equal(t, domain.SubscriptionStatusPastDue, *params.Status)
	require.NotNil(t, params.StripePriceID)
	assert.Equal(t, "price_team_month", *params.StripePriceID)
	require.NotNil(t, params.CancelAtPeriodEnd)
	assert.True(t, *params.CancelAtPeriodEnd)
	// Absent nullable fields write NULL rather than being skipped.
	require.NotNil(t, params.CanceledAt)
	assert.False(t, params.CanceledAt.Valid)

	require.Len(t, sink.events, 1)
	assert.Equal(t, domain.EventSubscriptionUpdated, sink.events[0].eventType)
}

func TestSubscriptionUpdatedStoreFailureSwallowed(t *testing.T) {
	store := &mockStore{
		updateSubscriptionByStripeIDFunc: func(_ context.Context, _ string, _ domain.UpdateSubscriptionParams) error {
			return errors.New("connection reset")
		},
	}
	sink := &recordingSink{}
	h := newTestHandlers(store, sink)

	raw := `{"id":"sub_1","status":"active"}`
	err := h.Dispatch(context.Background(), testEvent("customer.subscription.updated", raw))

	require.NoError(t, err)
	assert.Empty(t, sink.events)
}

func TestSubscriptionDeleted(t *testing.T) {
	store := &mockStore{}
	sink := &recordingSink{}
	h := newTestHandlers(store, sink)

	raw := `{"id":"sub_1","status":"canceled","canceled_at":3000,"ended_at":3000}`
	err := h.Dispatch(context.Background(), testEvent("customer.subscription.deleted", raw))

	require.NoError(t, err)
	require.Equal(t, 1, store.updateSubscriptionCalls)

	params := store.lastUpdateSubscription
	require.NotNil(t, params.Status)
	assert.Equal(t, domain.SubscriptionStatusCanceled, *params.Status)
	require.NotNil(t, params.CanceledAt)
	assert.Equal(t, time.Unix(3000, 0).UTC(), params.CanceledAt.Time)
	require.NotNil(t, params.EndedAt)
	assert.Equal(t, time.Unix(3000, 0).UTC(), params.EndedAt.Time)

	require.Len(t, sink.events, 1)
	assert.Equal(t, domain.EventSubscriptionEnded, sink.events[0].eventType)
}

func TestSubscriptionDeletedMissingTimestampsUseClock(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &mockStore{}
	h := newTestHandlers(store, &recordingSink{})
	h.now = func() time.Time { return fixed }

	raw := `{"id":"sub_1","status":"canceled"}`
	err := h.Dispatch(context.Background(), testEvent("customer.subscription.deleted", raw))

	require.NoError(t, err)
	require.Equal(t, 1, store.updateSubscriptionCalls)
	params := store.lastUpdateSubscription
	require.NotNil(t, params.CanceledAt)
	assert.Equal(t, fixed, params.CanceledAt.Time)
	require.NotNil(t, params.EndedAt)
	assert.Equal(t, fixed, params.EndedAt.Time)
}

func TestSubscriptionDeletedStoreFailureSwallowed(t *testing.T) {
	store := &mockStore{
		updateSubscriptionByStripeIDFunc: func(_ context.Context, _ string, _ domain.UpdateSubscriptionParams) error {
			return errors.New("connection reset")
		},
	}
	sink := &recordingSink{}
	h := newTestHandlers(store, sink)

	raw := `{"id":"sub_1","status":"canceled"}`
	err := h.Dispatch(context.Background(), testEvent("customer.subscription.deleted", raw))

	require.NoError(t, err)
	assert.Empty(t, sink.events)
}

func TestSubscriptionCreatedIdempotentRedelivery(t *testing.T) {
	var stored *domain.Subscription
	store := &mockStore{
		getCustomerByStripeIDFunc: customerLookup(7, "cus_1"),
	}
	store.getSubscriptionByStripeIDFunc = func(_ context.Context, id string) (*domain.Subscription, error) {
		if stored != nil && stored.StripeSubscriptionID == id {
			return stored, nil
		}
		return nil, domain.NotFound("test", "subscription", id)
	}
	store.createSubscriptionFunc = func(_ context.Context, params domain.CreateSubscriptionParams) (*domain.Subscription, error) {
		stored = &domain.Subscription{
			ID:                   1,
			CustomerID:           params.CustomerID,
			StripeSubscriptionID: params.StripeSubscriptionID,
			Status:               params.Status,
		}
		return stored, nil
	}
	h := newTestHandlers(store, &recordingSink{})

	raw := `{"id":"sub_1","customer":"cus_1","status":"trialing","items":{"data":[{"price":{"id":"price_pro_month"}}]}}`
	event := testEvent("customer.subscription.created", raw)

	require.NoError(t, h.Dispatch(context.Background(), event))
	require.NoError(t, h.Dispatch(context.Background(), event))

	// One create, then the redelivery converges via update.
	assert.Equal(t, 1, store.createSubscriptionCalls)
	assert.Equal(t, 1, store.updateSubscriptionCalls)
}
