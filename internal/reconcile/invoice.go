package reconcile

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stripe/stripe-go/v82"

	"github.com/dukerupert/gjall/internal/domain"
)

func (h *Handlers) handleInvoicePaid(ctx context.Context, event stripe.Event) error {
	return h.reconcileInvoice(ctx, event, domain.InvoiceStatusPaid)
}

func (h *Handlers) handleInvoicePaymentFailed(ctx context.Context, event stripe.Event) error {
	return h.reconcileInvoice(ctx, event, domain.InvoiceStatusOpen)
}

// reconcileInvoice upserts the local Invoice row for a paid or failed
// invoice event. An existing row (same provider invoice id) is updated,
// otherwise a new row is created; a failed payment leaves the invoice open
// with nothing paid. Store failures propagate so the provider redelivers.
func (h *Handlers) reconcileInvoice(ctx context.Context, event stripe.Event, status domain.InvoiceStatus) error {
	var inv invoiceEvent
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		h.logger.ErrorContext(ctx, "malformed invoice payload",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()))
		return nil
	}

	customer, err := h.store.GetCustomerByStripeID(ctx, inv.Customer)
	if err != nil {
		if domain.IsNotFound(err) {
			h.logger.WarnContext(ctx, "invoice event for unknown customer, skipping",
				slog.String("stripe_invoice_id", inv.ID),
				slog.String("stripe_customer_id", inv.Customer))
			return nil
		}
		return err
	}

	// An unresolvable subscription id is tolerated: the invoice is simply
	// stored unlinked.
	var subscriptionID pgtype.Int8
	if inv.Subscription != "" {
		sub, err := h.store.GetSubscriptionByStripeID(ctx, inv.Subscription)
		if err == nil {
			subscriptionID = pgtype.Int8{Int64: sub.ID, Valid: true}
		} else if !domain.IsNotFound(err) {
			return err
		}
	}

	amountPaid := inv.AmountPaid
	if status != domain.InvoiceStatusPaid {
		amountPaid = 0
	}

	err = h.store.InTx(ctx, func(tx domain.BillingStore) error {
		_, err := tx.GetInvoiceByStripeID(ctx, inv.ID)
		if err == nil {
			return tx.UpdateInvoiceByStripeID(ctx, inv.ID, domain.UpdateInvoiceParams{
				Status:           &status,
				AmountPaid:       &amountPaid,
				HostedInvoiceURL: ptrText(inv.HostedInvoiceURL),
				InvoicePDF:       ptrText(inv.InvoicePDF),
			})
		}
		if !domain.IsNotFound(err) {
			return err
		}

		_, err = tx.CreateInvoice(ctx, domain.CreateInvoiceParams{
			CustomerID:       customer.ID,
			SubscriptionID:   subscriptionID,
			StripeInvoiceID:  inv.ID,
			AmountDue:        inv.AmountDue,
			AmountPaid:       amountPaid,
			Currency:         inv.Currency,
			Status:           status,
			HostedInvoiceURL: textOrNull(inv.HostedInvoiceURL),
			InvoicePDF:       textOrNull(inv.InvoicePDF),
			PeriodStart:      epochToTimestamptz(inv.PeriodStart),
			PeriodEnd:        epochToTimestamptz(inv.PeriodEnd),
		})
		return err
	})
	if err != nil {
		return err
	}

	eventType := domain.EventPaymentFailed
	if status == domain.InvoiceStatusPaid {
		eventType = domain.EventPaymentSucceeded
	}
	h.sink.RecordBusinessEvent(ctx, eventType, map[string]any{
		"customer_id":         customer.ID,
		"invoice_id":          inv.ID,
		"amount":              inv.AmountDue,
		"currency":            inv.Currency,
		"subscription_linked": subscriptionID.Valid,
		"type":                "subscription",
	})
	return nil
}

// ptrText wraps a provider URL for a partial update; an empty string writes
// NULL rather than being skipped, keeping last-write-wins semantics.
func ptrText(s string) *pgtype.Text {
	t := textOrNull(s)
	return &t
}
