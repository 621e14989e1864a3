package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/gjall/internal/billing"
	"github.com/dukerupert/gjall/internal/domain"
	"github.com/dukerupert/gjall/internal/reconcile"
	"github.com/dukerupert/gjall/internal/telemetry"
)

// Registered once: promauto metrics use the default registry.
var testMetrics = telemetry.NewBusinessMetrics("gjall_webhook_test")

// stubStore overrides only the store methods the tested events touch;
// anything else panics through the nil embedded interface.
type stubStore struct {
	domain.BillingStore
	createPaymentErr   error
	createPaymentCalls int
}

func (s *stubStore) CreatePayment(ctx context.Context, params domain.CreatePaymentParams) (*domain.Payment, error) {
	s.createPaymentCalls++
	if s.createPaymentErr != nil {
		return nil, s.createPaymentErr
	}
	return &domain.Payment{ID: 1, CustomerID: params.CustomerID}, nil
}

func (s *stubStore) InTx(ctx context.Context, fn func(domain.BillingStore) error) error {
	return fn(s)
}

type noopSink struct{}

func (noopSink) RecordBusinessEvent(context.Context, string, map[string]any) {}

func newTestHandler(store *stubStore, provider billing.Provider) *StripeHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatcher := reconcile.NewHandlers(store, noopSink{}, logger)
	return NewStripeHandler(provider, dispatcher, testMetrics, logger, "whsec_test")
}

func doWebhookRequest(h *StripeHandler, body, signature string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	_ = h.HandleWebhook(e.NewContext(req, rec))
	return rec
}

func TestHandleWebhookMissingSignature(t *testing.T) {
	h := newTestHandler(&stubStore{}, &billing.MockProvider{})

	rec := doWebhookRequest(h, `{}`, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleWebhookInvalidSignature(t *testing.T) {
	provider := &billing.MockProvider{
		VerifyWebhookSignatureFunc: func(_ []byte, _, _ string) error {
			return billing.ErrInvalidWebhookSignature
		},
	}
	store := &stubStore{}
	h := newTestHandler(store, provider)

	rec := doWebhookRequest(h, `{"id":"evt_1","type":"checkout.session.completed"}`, "t=1,v1=bad")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, store.createPaymentCalls)
}

func TestHandleWebhookUnknownEventAcknowledged(t *testing.T) {
	h := newTestHandler(&stubStore{}, &billing.MockProvider{})

	body := `{"id":"evt_1","type":"charge.refunded","data":{"object":{"id":"ch_1"}}}`
	rec := doWebhookRequest(h, body, "t=1,v1=ok")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"received":true`)
}

func TestHandleWebhookDispatchesEvent(t *testing.T) {
	store := &stubStore{}
	h := newTestHandler(store, &billing.MockProvider{})

	body := `{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"mode": "payment",
			"amount_total": 2500,
			"currency": "usd",
			"metadata": {"customerId": "7"}
		}}
	}`
	rec := doWebhookRequest(h, body, "t=1,v1=ok")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, store.createPaymentCalls)
}

func TestHandleWebhookStoreFailureReturns500(t *testing.T) {
	store := &stubStore{createPaymentErr: errors.New("connection reset")}
	h := newTestHandler(store, &billing.MockProvider{})

	body := `{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"mode": "payment",
			"metadata": {"customerId": "7"}
		}}
	}`
	rec := doWebhookRequest(h, body, "t=1,v1=ok")

	// Non-2xx makes the provider redeliver later.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleWebhookMalformedJSON(t *testing.T) {
	h := newTestHandler(&stubStore{}, &billing.MockProvider{})

	rec := doWebhookRequest(h, `{not json`, "t=1,v1=ok")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
