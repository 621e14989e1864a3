package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/gjall/internal/domain"
	"github.com/jackc/pgx/v5"
)

const invoiceColumns = `id, customer_id, subscription_id, stripe_invoice_id, amount_due, amount_paid,
	currency, status, hosted_invoice_url, invoice_pdf, period_start, period_end, created_at, updated_at`

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := row.Scan(
		&inv.ID,
		&inv.CustomerID,
		&inv.SubscriptionID,
		&inv.StripeInvoiceID,
		&inv.AmountDue,
		&inv.AmountPaid,
		&inv.Currency,
		&inv.Status,
		&inv.HostedInvoiceURL,
		&inv.InvoicePDF,
		&inv.PeriodStart,
		&inv.PeriodEnd,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetInvoiceByStripeID returns the invoice mirroring the given provider invoice id.
func (s *Store) GetInvoiceByStripeID(ctx context.Context, stripeInvoiceID string) (*domain.Invoice, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE stripe_invoice_id = $1`,
		stripeInvoiceID,
	)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("invoice.get_by_stripe_id", "invoice", stripeInvoiceID)
		}
		return nil, domain.Internal(err, "invoice.get_by_stripe_id", "failed to query invoice")
	}
	return inv, nil
}

// ListInvoices returns all invoices for a customer, newest first.
func (s *Store) ListInvoices(ctx context.Context, customerID int64) ([]domain.Invoice, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE customer_id = $1
		 ORDER BY created_at DESC`,
		customerID,
	)
	if err != nil {
		return nil, domain.Internal(err, "invoice.list", "failed to query invoices")
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, domain.Internal(err, "invoice.list", "failed to scan invoice")
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "invoice.list", "failed to read invoices")
	}
	return invoices, nil
}

// CreateInvoice inserts an Invoice row and returns it.
func (s *Store) CreateInvoice(ctx context.Context, params domain.CreateInvoiceParams) (*domain.Invoice, error) {
	currency := params.Currency
	if currency == "" {
		currency = "usd"
	}

	row := s.db.QueryRow(ctx,
		`INSERT INTO invoices (customer_id, subscription_id, stripe_invoice_id, amount_due, amount_paid,
			currency, status, hosted_invoice_url, invoice_pdf, period_start, period_end)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING `+invoiceColumns,
		params.CustomerID,
		params.SubscriptionID,
		params.StripeInvoiceID,
		params.AmountDue,
		params.AmountPaid,
		currency,
		params.Status,
		params.HostedInvoiceURL,
		params.InvoicePDF,
		params.PeriodStart,
		params.PeriodEnd,
	)
	inv, err := scanInvoice(row)
	if err != nil {
		return nil, domain.Internal(err, "invoice.create", "failed to insert invoice")
	}
	return inv, nil
}

// UpdateInvoiceByStripeID applies a partial update keyed by the provider's
// invoice id. A missing row affects zero rows and returns nil.
func (s *Store) UpdateInvoiceByStripeID(ctx context.Context, stripeInvoiceID string, params domain.UpdateInvoiceParams) error {
	sets := []string{"updated_at = now()"}
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.AmountPaid != nil {
		add("amount_paid", *params.AmountPaid)
	}
	if params.HostedInvoiceURL != nil {
		add("hosted_invoice_url", *params.HostedInvoiceURL)
	}
	if params.InvoicePDF != nil {
		add("invoice_pdf", *params.InvoicePDF)
	}

	args = append(args, stripeInvoiceID)
	query := fmt.Sprintf(
		"UPDATE invoices SET %s WHERE stripe_invoice_id = $%d",
		strings.Join(sets, ", "), len(args),
	)

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return domain.Internal(err, "invoice.update", "failed to update invoice")
	}
	return nil
}
