package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/gjall/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentIntentStatusTransitions(t *testing.T) {
	tests := []struct {
		name       string
		eventType  string
		wantStatus domain.PaymentStatus
	}{
		{
			name:       "succeeded",
			eventType:  "payment_intent.succeeded",
			wantStatus: domain.PaymentStatusSucceeded,
		},
		{
			name:       "failed",
			eventType:  "payment_intent.payment_failed",
			wantStatus: domain.PaymentStatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{
				getPaymentByIntentIDFunc: func(_ context.Context, id string) (*domain.Payment, error) {
					return &domain.Payment{ID: 1, CustomerID: 7}, nil
				},
			}
			h := newTestHandlers(store, &recordingSink{})

			err := h.Dispatch(context.Background(), testEvent(tt.eventType, `{"id":"pi_1"}`))

			require.NoError(t, err)
			require.Equal(t, 1, store.updatePaymentCalls)
			assert.Equal(t, tt.wantStatus, store.lastPaymentStatus)
		})
	}
}

func TestPaymentIntentNoLocalRowSkipsUpdate(t *testing.T) {
	store := &mockStore{}
	h := newTestHandlers(store, &recordingSink{})

	err := h.Dispatch(context.Background(), testEvent("payment_intent.succeeded", `{"id":"pi_missing"}`))

	require.NoError(t, err)
	assert.Zero(t, store.updatePaymentCalls)
}

func TestPaymentIntentStoreFailureSwallowed(t *testing.T) {
	store := &mockStore{
		getPaymentByIntentIDFunc: func(_ context.Context, id string) (*domain.Payment, error) {
			return &domain.Payment{ID: 1}, nil
		},
		updatePaymentStatusFunc: func(_ context.Context, _ string, _ domain.PaymentStatus) error {
			return errors.New("connection reset")
		},
	}
	h := newTestHandlers(store, &recordingSink{})

	err := h.Dispatch(context.Background(), testEvent("payment_intent.payment_failed", `{"id":"pi_1"}`))

	require.NoError(t, err)
}
