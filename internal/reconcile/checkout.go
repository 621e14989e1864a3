package reconcile

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/stripe/stripe-go/v82"

	"github.com/dukerupert/gjall/internal/domain"
)

// handleCheckoutSessionCompleted records a one-time payment for a completed
// checkout. Subscription-mode sessions write nothing: the subscription row
// is created by the subscription-created event, so two events never race to
// insert the same entity.
//
// A store failure here propagates so the provider redelivers the event.
func (h *Handlers) handleCheckoutSessionCompleted(ctx context.Context, event stripe.Event) error {
	var session checkoutSessionEvent
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		h.logger.ErrorContext(ctx, "malformed checkout session payload",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()))
		return nil
	}

	rawCustomerID, ok := session.Metadata["customerId"]
	if !ok || rawCustomerID == "" {
		h.logger.WarnContext(ctx, "checkout session has no customerId metadata, skipping",
			slog.String("session_id", session.ID))
		return nil
	}
	customerID, err := strconv.ParseInt(rawCustomerID, 10, 64)
	if err != nil {
		h.logger.ErrorContext(ctx, "checkout session customerId metadata is not numeric",
			slog.String("session_id", session.ID),
			slog.String("customer_id", rawCustomerID))
		return nil
	}

	if session.Mode != "payment" {
		h.logger.DebugContext(ctx, "checkout session handled by subscription events",
			slog.String("session_id", session.ID),
			slog.String("mode", session.Mode))
		return nil
	}

	var amount int64
	if session.AmountTotal != nil {
		amount = *session.AmountTotal
	}

	err = h.store.InTx(ctx, func(tx domain.BillingStore) error {
		_, err := tx.CreatePayment(ctx, domain.CreatePaymentParams{
			CustomerID:              customerID,
			StripePaymentIntentID:   textOrNull(session.PaymentIntent),
			StripeCheckoutSessionID: textOrNull(session.ID),
			Amount:                  amount,
			Currency:                session.Currency,
			Status:                  domain.PaymentStatusSucceeded,
			Description:             textOrNull("Checkout payment"),
			Metadata:                session.Metadata,
		})
		return err
	})
	if err != nil {
		return err
	}

	h.sink.RecordBusinessEvent(ctx, domain.EventPaymentSucceeded, map[string]any{
		"customer_id": customerID,
		"session_id":  session.ID,
		"amount":      amount,
		"currency":    session.Currency,
		"type":        "one_time",
	})
	return nil
}
