package reconcile

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/stripe/stripe-go/v82"

	"github.com/dukerupert/gjall/internal/domain"
)

// handlePaymentIntentStatus transitions an existing Payment row to the
// given terminal status. The row is created by the checkout-completed
// handler, so a missing row here is not an error. Store failures are
// logged and swallowed: a transient local fault must not trigger endless
// provider redelivery of a status flip.
func (h *Handlers) handlePaymentIntentStatus(ctx context.Context, event stripe.Event, status domain.PaymentStatus) error {
	var intent paymentIntentEvent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		h.logger.ErrorContext(ctx, "malformed payment intent payload",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()))
		return nil
	}

	_, err := h.store.GetPaymentByIntentID(ctx, intent.ID)
	if err != nil {
		if domain.IsNotFound(err) {
			h.logger.DebugContext(ctx, "payment intent has no local payment row, skipping",
				slog.String("stripe_payment_intent_id", intent.ID))
			return nil
		}
		h.logger.ErrorContext(ctx, "failed to look up payment",
			slog.String("stripe_payment_intent_id", intent.ID),
			slog.String("error", err.Error()))
		return nil
	}

	if err := h.store.UpdatePaymentStatusByIntentID(ctx, intent.ID, status); err != nil {
		h.logger.ErrorContext(ctx, "failed to update payment status",
			slog.String("stripe_payment_intent_id", intent.ID),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return nil
	}
	return nil
}
