package reconcile

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stripe/stripe-go/v82"

	"github.com/dukerupert/gjall/internal/domain"
)

// handleSubscriptionCreated creates the local Subscription row. When the
// row already exists the event is a redelivery (or arrived after an update
// for the same subscription), so it is applied as an update instead of a
// duplicate insert.
func (h *Handlers) handleSubscriptionCreated(ctx context.Context, event stripe.Event) error {
	var sub subscriptionEvent
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.ErrorContext(ctx, "malformed subscription payload",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()))
		return nil
	}

	customer, err := h.store.GetCustomerByStripeID(ctx, sub.Customer)
	if err != nil {
		if domain.IsNotFound(err) {
			h.logger.WarnContext(ctx, "subscription created for unknown customer, skipping",
				slog.String("stripe_subscription_id", sub.ID),
				slog.String("stripe_customer_id", sub.Customer))
			return nil
		}
		return err
	}

	var created bool
	err = h.store.InTx(ctx, func(tx domain.BillingStore) error {
		_, err := tx.GetSubscriptionByStripeID(ctx, sub.ID)
		if err == nil {
			// Duplicate delivery: converge on the event's state.
			return tx.UpdateSubscriptionByStripeID(ctx, sub.ID, subscriptionUpdateParams(&sub))
		}
		if !domain.IsNotFound(err) {
			return err
		}

		priceID := sub.priceID()
		if priceID == "" {
			h.logger.ErrorContext(ctx, "subscription event has no price id",
				slog.String("stripe_subscription_id", sub.ID))
			return nil
		}

		_, err = tx.CreateSubscription(ctx, domain.CreateSubscriptionParams{
			CustomerID:           customer.ID,
			StripeSubscriptionID: sub.ID,
			StripePriceID:        priceID,
			Status:               domain.SubscriptionStatus(sub.Status),
			CurrentPeriodStart:   epochToTimestamptz(sub.CurrentPeriodStart),
			CurrentPeriodEnd:     epochToTimestamptz(sub.CurrentPeriodEnd),
			CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
			TrialStart:           epochToTimestamptz(sub.TrialStart),
			TrialEnd:             epochToTimestamptz(sub.TrialEnd),
			Metadata:             sub.Metadata,
		})
		created = err == nil
		return err
	})
	if err != nil {
		return err
	}

	if created {
		h.sink.RecordBusinessEvent(ctx, domain.EventSubscriptionCreated, map[string]any{
			"customer_id":     customer.ID,
			"subscription_id": sub.ID,
			"status":          sub.Status,
		})
	}
	return nil
}

// handleSubscriptionUpdated blindly applies the event's state to the local
// row. A missing row is tolerated as a no-op (delivery order is not
// guaranteed), and a store failure is logged and swallowed so the provider
// does not redeliver indefinitely on a transient local fault.
func (h *Handlers) handleSubscriptionUpdated(ctx context.Context, event stripe.Event) error {
	var sub subscriptionEvent
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.ErrorContext(ctx, "malformed subscription payload",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()))
		return nil
	}

	err := h.store.UpdateSubscriptionByStripeID(ctx, sub.ID, subscriptionUpdateParams(&sub))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to update subscription",
			slog.String("stripe_subscription_id", sub.ID),
			slog.String("error", err.Error()))
		return nil
	}

	h.sink.RecordBusinessEvent(ctx, domain.EventSubscriptionUpdated, map[string]any{
		"subscription_id":      sub.ID,
		"status":               sub.Status,
		"cancel_at_period_end": sub.CancelAtPeriodEnd,
	})
	return nil
}

// handleSubscriptionDeleted marks the subscription canceled. Timestamps
// come from the payload when present and fall back to the current time,
// since deleted events sometimes arrive with partial data. Failures are
// logged and swallowed as in handleSubscriptionUpdated.
func (h *Handlers) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub subscriptionEvent
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.ErrorContext(ctx, "malformed subscription payload",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()))
		return nil
	}

	canceledAt := epochToTimestamptz(sub.CanceledAt)
	if !canceledAt.Valid {
		canceledAt = pgtype.Timestamptz{Time: h.now().UTC(), Valid: true}
	}
	endedAt := epochToTimestamptz(sub.EndedAt)
	if !endedAt.Valid {
		endedAt = pgtype.Timestamptz{Time: h.now().UTC(), Valid: true}
	}

	status := domain.SubscriptionStatusCanceled
	err := h.store.UpdateSubscriptionByStripeID(ctx, sub.ID, domain.UpdateSubscriptionParams{
		Status:     &status,
		CanceledAt: &canceledAt,
		EndedAt:    &endedAt,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to mark subscription canceled",
			slog.String("stripe_subscription_id", sub.ID),
			slog.String("error", err.Error()))
		return nil
	}

	h.sink.RecordBusinessEvent(ctx, domain.EventSubscriptionEnded, map[string]any{
		"subscription_id": sub.ID,
	})
	return nil
}

// subscriptionUpdateParams maps an event payload onto a partial update.
// Nullable provider fields pass through as-is, including explicit NULLs:
// the provider is the source of truth and the last write wins.
func subscriptionUpdateParams(sub *subscriptionEvent) domain.UpdateSubscriptionParams {
	status := domain.SubscriptionStatus(sub.Status)
	currentPeriodStart := epochToTimestamptz(sub.CurrentPeriodStart)
	currentPeriodEnd := epochToTimestamptz(sub.CurrentPeriodEnd)
	canceledAt := epochToTimestamptz(sub.CanceledAt)
	endedAt := epochToTimestamptz(sub.EndedAt)
	trialStart := epochToTimestamptz(sub.TrialStart)
	trialEnd := epochToTimestamptz(sub.TrialEnd)

	params := domain.UpdateSubscriptionParams{
		Status:             &status,
		CurrentPeriodStart: &currentPeriodStart,
		CurrentPeriodEnd:   &currentPeriodEnd,
		CancelAtPeriodEnd:  &sub.CancelAtPeriodEnd,
		CanceledAt:         &canceledAt,
		EndedAt:            &endedAt,
		TrialStart:         &trialStart,
		TrialEnd:           &trialEnd,
	}
	if priceID := sub.priceID(); priceID != "" {
		params.StripePriceID = &priceID
	}
	return params
}
