// Package webhook receives provider webhook callbacks.
//
// Webhook routes carry no authentication middleware; each handler verifies
// the request signature itself.
package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v82"

	"github.com/dukerupert/gjall/internal/billing"
	"github.com/dukerupert/gjall/internal/reconcile"
	"github.com/dukerupert/gjall/internal/telemetry"
)

// maxBodyBytes bounds the webhook payload; Stripe events are far smaller.
const maxBodyBytes = 1 << 20

// StripeHandler verifies and dispatches Stripe webhook events.
type StripeHandler struct {
	provider      billing.Provider
	dispatcher    *reconcile.Handlers
	metrics       *telemetry.BusinessMetrics
	logger        *slog.Logger
	webhookSecret string
}

// NewStripeHandler creates a Stripe webhook handler.
func NewStripeHandler(provider billing.Provider, dispatcher *reconcile.Handlers, metrics *telemetry.BusinessMetrics, logger *slog.Logger, webhookSecret string) *StripeHandler {
	return &StripeHandler{
		provider:      provider,
		dispatcher:    dispatcher,
		metrics:       metrics,
		logger:        logger,
		webhookSecret: webhookSecret,
	}
}

// HandleWebhook processes an incoming Stripe event. Any recognized,
// verified event is acknowledged with 200 unless its handler reports a
// failure, in which case a 500 tells Stripe to redeliver later.
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:3000/webhooks/stripe
//	stripe trigger payment_intent.succeeded
func (h *StripeHandler) HandleWebhook(c echo.Context) error {
	start := time.Now()
	ctx := c.Request().Context()

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read webhook body", slog.String("error", err.Error()))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "error reading request body"})
	}

	signature := c.Request().Header.Get("Stripe-Signature")
	if signature == "" {
		h.metrics.WebhookFailed.WithLabelValues("unknown", "invalid_signature").Inc()
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing signature"})
	}

	if err := h.provider.VerifyWebhookSignature(payload, signature, h.webhookSecret); err != nil {
		h.logger.WarnContext(ctx, "webhook signature verification failed", slog.String("error", err.Error()))
		h.metrics.WebhookFailed.WithLabelValues("unknown", "invalid_signature").Inc()
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid signature"})
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.ErrorContext(ctx, "failed to parse webhook event", slog.String("error", err.Error()))
		h.metrics.WebhookFailed.WithLabelValues("unknown", "bad_payload").Inc()
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid JSON"})
	}

	eventType := string(event.Type)
	h.metrics.WebhookReceived.WithLabelValues(eventType).Inc()
	h.logger.InfoContext(ctx, "received webhook event",
		slog.String("event_type", eventType),
		slog.String("event_id", event.ID))

	defer func() {
		h.metrics.WebhookLatency.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}()

	if err := h.dispatcher.Dispatch(ctx, event); err != nil {
		h.logger.ErrorContext(ctx, "webhook processing failed",
			slog.String("event_type", eventType),
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()))
		h.metrics.WebhookFailed.WithLabelValues(eventType, "store_error").Inc()
		// Non-2xx asks Stripe to redeliver the event later.
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "event processing failed"})
	}

	h.metrics.WebhookProcessed.WithLabelValues(eventType).Inc()
	h.countBusinessEvent(eventType)
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

// countBusinessEvent bumps the coarse business counters for events that
// represent money or subscription movement.
func (h *StripeHandler) countBusinessEvent(eventType string) {
	switch eventType {
	case "invoice.paid":
		h.metrics.PaymentSucceeded.WithLabelValues("subscription").Inc()
	case "invoice.payment_failed":
		h.metrics.PaymentFailed.WithLabelValues("subscription").Inc()
	case "payment_intent.succeeded":
		h.metrics.PaymentSucceeded.WithLabelValues("one_time").Inc()
	case "payment_intent.payment_failed":
		h.metrics.PaymentFailed.WithLabelValues("one_time").Inc()
	case "customer.subscription.created":
		h.metrics.SubscriptionsCreated.WithLabelValues().Inc()
	case "customer.subscription.deleted":
		h.metrics.SubscriptionsCanceled.WithLabelValues().Inc()
	}
}
