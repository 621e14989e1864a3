package domain

import "context"

// Business event types recorded by reconciliation handlers after a
// successful state change.
const (
	EventPaymentSucceeded    = "billing.payment_succeeded"
	EventPaymentFailed       = "billing.payment_failed"
	EventSubscriptionCreated = "billing.subscription_created"
	EventSubscriptionUpdated = "billing.subscription_updated"
	EventSubscriptionEnded   = "billing.subscription_ended"
)

// NotificationSink records business events for analytics and alerting.
//
// Calls are best-effort: implementations must log delivery failures
// themselves and never surface them to the caller, so a broken sink can
// never fail webhook processing.
type NotificationSink interface {
	RecordBusinessEvent(ctx context.Context, eventType string, data map[string]any)
}
