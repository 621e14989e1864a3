package reconcile

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Typed views of provider event payloads. Each handler decodes the event's
// raw object into the struct below holding exactly the fields it uses;
// nullable provider fields are pointers so "absent" and "zero" stay
// distinguishable.

type checkoutSessionEvent struct {
	ID            string            `json:"id"`
	Mode          string            `json:"mode"`
	AmountTotal   *int64            `json:"amount_total"`
	Currency      string            `json:"currency"`
	Customer      string            `json:"customer"`
	PaymentIntent string            `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

type customerEvent struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type subscriptionEvent struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CurrentPeriodStart *int64 `json:"current_period_start"`
	CurrentPeriodEnd   *int64 `json:"current_period_end"`
	CanceledAt         *int64 `json:"canceled_at"`
	EndedAt            *int64 `json:"ended_at"`
	TrialStart         *int64 `json:"trial_start"`
	TrialEnd           *int64 `json:"trial_end"`
	Items              struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

// priceID returns the price id of the first line item, or "" when the
// payload carries no items.
func (e *subscriptionEvent) priceID() string {
	if len(e.Items.Data) == 0 {
		return ""
	}
	return e.Items.Data[0].Price.ID
}

type invoiceEvent struct {
	ID               string `json:"id"`
	Customer         string `json:"customer"`
	Subscription     string `json:"subscription"`
	AmountDue        int64  `json:"amount_due"`
	AmountPaid       int64  `json:"amount_paid"`
	Currency         string `json:"currency"`
	HostedInvoiceURL string `json:"hosted_invoice_url"`
	InvoicePDF       string `json:"invoice_pdf"`
	PeriodStart      *int64 `json:"period_start"`
	PeriodEnd        *int64 `json:"period_end"`
}

type paymentIntentEvent struct {
	ID string `json:"id"`
}

// epochToTimestamptz converts provider epoch seconds to a timestamptz,
// mapping a nil epoch to SQL NULL.
func epochToTimestamptz(sec *int64) pgtype.Timestamptz {
	if sec == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: time.Unix(*sec, 0).UTC(), Valid: true}
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
