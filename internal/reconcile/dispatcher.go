// Package reconcile maps asynchronous payment-provider webhook events onto
// local customer, subscription, invoice and payment rows.
//
// Every handler is an idempotent find-or-create/update: events may be
// delivered more than once and out of order, so the provider is treated as
// the source of truth and later events overwrite earlier state (last write
// wins). A handler error means the webhook endpoint should answer non-2xx
// and let the provider redeliver; a nil return acknowledges the event even
// when nothing was written.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/dukerupert/gjall/internal/domain"
)

// Supported event types. Anything else is acknowledged without processing.
const (
	eventCheckoutSessionCompleted = "checkout.session.completed"
	eventCustomerCreated          = "customer.created"
	eventSubscriptionCreated      = "customer.subscription.created"
	eventSubscriptionUpdated      = "customer.subscription.updated"
	eventSubscriptionDeleted      = "customer.subscription.deleted"
	eventInvoicePaid              = "invoice.paid"
	eventInvoicePaymentFailed     = "invoice.payment_failed"
	eventPaymentIntentSucceeded   = "payment_intent.succeeded"
	eventPaymentIntentFailed      = "payment_intent.payment_failed"
)

// Handlers reconciles provider events against the billing store and emits
// business events for successful state changes.
type Handlers struct {
	store  domain.BillingStore
	sink   domain.NotificationSink
	logger *slog.Logger

	// now is injectable so tests can pin the clock used when a deleted
	// event omits its timestamps.
	now func() time.Time
}

// NewHandlers wires a reconciliation handler set.
func NewHandlers(store domain.BillingStore, sink domain.NotificationSink, logger *slog.Logger) *Handlers {
	return &Handlers{
		store:  store,
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
}

// Dispatch routes an event by its type. Unregistered types complete
// successfully without side effects: the provider requires a 2xx
// acknowledgment for every event type, recognized or not.
func (h *Handlers) Dispatch(ctx context.Context, event stripe.Event) error {
	switch string(event.Type) {
	case eventCheckoutSessionCompleted:
		return h.handleCheckoutSessionCompleted(ctx, event)
	case eventCustomerCreated:
		return h.handleCustomerCreated(ctx, event)
	case eventSubscriptionCreated:
		return h.handleSubscriptionCreated(ctx, event)
	case eventSubscriptionUpdated:
		return h.handleSubscriptionUpdated(ctx, event)
	case eventSubscriptionDeleted:
		return h.handleSubscriptionDeleted(ctx, event)
	case eventInvoicePaid:
		return h.handleInvoicePaid(ctx, event)
	case eventInvoicePaymentFailed:
		return h.handleInvoicePaymentFailed(ctx, event)
	case eventPaymentIntentSucceeded:
		return h.handlePaymentIntentStatus(ctx, event, domain.PaymentStatusSucceeded)
	case eventPaymentIntentFailed:
		return h.handlePaymentIntentStatus(ctx, event, domain.PaymentStatusFailed)
	default:
		h.logger.DebugContext(ctx, "ignoring unhandled webhook event",
			slog.String("event_type", string(event.Type)),
			slog.String("event_id", event.ID))
		return nil
	}
}
