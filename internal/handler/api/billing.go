// Package api exposes the authenticated billing REST endpoints.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"

	"github.com/dukerupert/gjall/internal/billing"
	"github.com/dukerupert/gjall/internal/domain"
	"github.com/dukerupert/gjall/internal/handler"
	"github.com/dukerupert/gjall/internal/middleware"
	"github.com/dukerupert/gjall/internal/telemetry"
)

// BillingConfig holds the redirect URLs handed to the provider's hosted
// pages.
type BillingConfig struct {
	CheckoutSuccessURL string
	CheckoutCancelURL  string
	PortalReturnURL    string
}

// BillingHandler serves checkout, portal and subscription management for
// the authenticated user. All state it reads was written by webhook
// reconciliation; its writes go to the provider and come back as events.
type BillingHandler struct {
	store    domain.BillingStore
	provider billing.Provider
	metrics  *telemetry.BusinessMetrics
	logger   *slog.Logger
	config   BillingConfig
}

// NewBillingHandler creates the billing API handler.
func NewBillingHandler(store domain.BillingStore, provider billing.Provider, metrics *telemetry.BusinessMetrics, logger *slog.Logger, config BillingConfig) *BillingHandler {
	return &BillingHandler{
		store:    store,
		provider: provider,
		metrics:  metrics,
		logger:   logger,
		config:   config,
	}
}

type createCheckoutRequest struct {
	PriceID  string `json:"price_id" validate:"required"`
	Mode     string `json:"mode" validate:"required,oneof=payment subscription"`
	Quantity int64  `json:"quantity" validate:"omitempty,min=1"`
}

// CreateCheckout starts a hosted checkout session for the current user,
// creating the provider customer and local row on first use.
func (h *BillingHandler) CreateCheckout(c echo.Context) error {
	user, ok := middleware.UserFrom(c)
	if !ok {
		return handler.ErrorResponse(c, domain.Errorf(domain.EUNAUTHORIZED, "billing.checkout", "Authentication required"))
	}

	var req createCheckoutRequest
	if err := c.Bind(&req); err != nil {
		return handler.ErrorResponse(c, domain.Errorf(domain.EINVALID, "billing.checkout", "Invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	customer, err := h.ensureCustomer(c, user)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to resolve billing customer",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()))
		return handler.ErrorResponse(c, err)
	}

	session, err := h.provider.CreateCheckoutSession(ctx, billing.CreateCheckoutSessionParams{
		Mode:       billing.CheckoutMode(req.Mode),
		CustomerID: customer.StripeCustomerID,
		PriceID:    req.PriceID,
		Quantity:   req.Quantity,
		SuccessURL: h.config.CheckoutSuccessURL,
		CancelURL:  h.config.CheckoutCancelURL,
		Metadata: map[string]string{
			// Webhook reconciliation attributes the session through this.
			"customerId": strconv.FormatInt(customer.ID, 10),
		},
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create checkout session",
			slog.Int64("customer_id", customer.ID),
			slog.String("error", err.Error()))
		return handler.ErrorResponse(c, domain.WrapError(err, domain.EPAYMENT, "billing.checkout", "Could not start checkout"))
	}

	h.metrics.CheckoutSessionsCreated.WithLabelValues(req.Mode).Inc()
	return c.JSON(http.StatusOK, echo.Map{"url": session.URL})
}

// CreatePortal starts a billing portal session for the current user.
func (h *BillingHandler) CreatePortal(c echo.Context) error {
	user, ok := middleware.UserFrom(c)
	if !ok {
		return handler.ErrorResponse(c, domain.Errorf(domain.EUNAUTHORIZED, "billing.portal", "Authentication required"))
	}

	ctx := c.Request().Context()
	customer, err := h.store.GetCustomerByUserID(ctx, user.ID)
	if err != nil {
		return handler.ErrorResponse(c, err)
	}

	session, err := h.provider.CreatePortalSession(ctx, billing.CreatePortalSessionParams{
		CustomerID: customer.StripeCustomerID,
		ReturnURL:  h.config.PortalReturnURL,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create portal session",
			slog.Int64("customer_id", customer.ID),
			slog.String("error", err.Error()))
		return handler.ErrorResponse(c, domain.WrapError(err, domain.EPAYMENT, "billing.portal", "Could not open billing portal"))
	}

	h.metrics.PortalSessionsCreated.WithLabelValues().Inc()
	return c.JSON(http.StatusOK, echo.Map{"url": session.URL})
}

// GetSubscription returns the current (active or trialing) subscription.
func (h *BillingHandler) GetSubscription(c echo.Context) error {
	user, ok := middleware.UserFrom(c)
	if !ok {
		return handler.ErrorResponse(c, domain.Errorf(domain.EUNAUTHORIZED, "billing.subscription", "Authentication required"))
	}

	sub, err := h.currentSubscription(c, user)
	if err != nil {
		return handler.ErrorResponse(c, err)
	}

	return c.JSON(http.StatusOK, subscriptionResponseFrom(sub))
}

// ListInvoices returns the user's invoices, newest first.
func (h *BillingHandler) ListInvoices(c echo.Context) error {
	user, ok := middleware.UserFrom(c)
	if !ok {
		return handler.ErrorResponse(c, domain.Errorf(domain.EUNAUTHORIZED, "billing.invoices", "Authentication required"))
	}

	ctx := c.Request().Context()
	customer, err := h.store.GetCustomerByUserID(ctx, user.ID)
	if err != nil {
		if domain.IsNotFound(err) {
			return c.JSON(http.StatusOK, echo.Map{"invoices": []invoiceResponse{}})
		}
		return handler.ErrorResponse(c, err)
	}

	invoices, err := h.store.ListInvoices(ctx, customer.ID)
	if err != nil {
		return handler.ErrorResponse(c, err)
	}

	out := make([]invoiceResponse, 0, len(invoices))
	for i := range invoices {
		out = append(out, invoiceResponseFrom(&invoices[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"invoices": out})
}

// ListPayments returns the user's one-time payments, newest first.
func (h *BillingHandler) ListPayments(c echo.Context) error {
	user, ok := middleware.UserFrom(c)
	if !ok {
		return handler.ErrorResponse(c, domain.Errorf(domain.EUNAUTHORIZED, "billing.payments", "Authentication required"))
	}

	ctx := c.Request().Context()
	customer, err := h.store.GetCustomerByUserID(ctx, user.ID)
	if err != nil {
		if domain.IsNotFound(err) {
			return c.JSON(http.StatusOK, echo.Map{"payments": []paymentResponse{}})
		}
		return handler.ErrorResponse(c, err)
	}

	payments, err := h.store.ListPayments(ctx, customer.ID)
	if err != nil {
		return handler.ErrorResponse(c, err)
	}

	out := make([]paymentResponse, 0, len(payments))
	for i := range payments {
		out = append(out, paymentResponseFrom(&payments[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"payments": out})
}

type cancelSubscriptionRequest struct {
	// Immediately cancels now instead of at period end.
	Immediately bool `json:"immediately"`
}

// CancelSubscription cancels the current subscription at the provider.
// Local state converges when the resulting webhook arrives.
func (h *BillingHandler) CancelSubscription(c echo.Context) error {
	user, ok := middleware.UserFrom(c)
	if !ok {
		return handler.ErrorResponse(c, domain.Errorf(domain.EUNAUTHORIZED, "billing.cancel", "Authentication required"))
	}

	var req cancelSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return handler.ErrorResponse(c, domain.Errorf(domain.EINVALID, "billing.cancel", "Invalid request body"))
	}

	sub, err := h.currentSubscription(c, user)
	if err != nil {
		return handler.ErrorResponse(c, err)
	}

	ctx := c.Request().Context()
	err = h.provider.CancelSubscription(ctx, billing.CancelSubscriptionParams{
		SubscriptionID:    sub.StripeSubscriptionID,
		CancelAtPeriodEnd: !req.Immediately,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to cancel subscription",
			slog.String("stripe_subscription_id", sub.StripeSubscriptionID),
			slog.String("error", err.Error()))
		return handler.ErrorResponse(c, domain.WrapError(err, domain.EPAYMENT, "billing.cancel", "Could not cancel subscription"))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"canceled":             true,
		"cancel_at_period_end": !req.Immediately,
	})
}

// ResumeSubscription clears a pending at-period-end cancellation.
func (h *BillingHandler) ResumeSubscription(c echo.Context) error {
	user, ok := middleware.UserFrom(c)
	if !ok {
		return handler.ErrorResponse(c, domain.Errorf(domain.EUNAUTHORIZED, "billing.resume", "Authentication required"))
	}

	sub, err := h.currentSubscription(c, user)
	if err != nil {
		return handler.ErrorResponse(c, err)
	}
	if !sub.CancelAtPeriodEnd {
		return handler.ErrorResponse(c, domain.Errorf(domain.EINVALID, "billing.resume", "Subscription is not scheduled for cancellation"))
	}

	ctx := c.Request().Context()
	if err := h.provider.ResumeSubscription(ctx, sub.StripeSubscriptionID); err != nil {
		h.logger.ErrorContext(ctx, "failed to resume subscription",
			slog.String("stripe_subscription_id", sub.StripeSubscriptionID),
			slog.String("error", err.Error()))
		return handler.ErrorResponse(c, domain.WrapError(err, domain.EPAYMENT, "billing.resume", "Could not resume subscription"))
	}

	return c.JSON(http.StatusOK, echo.Map{"resumed": true})
}

// ensureCustomer finds the user's billing customer, creating the provider
// record and local row on first use.
func (h *BillingHandler) ensureCustomer(c echo.Context, user *middleware.User) (*domain.Customer, error) {
	ctx := c.Request().Context()

	customer, err := h.store.GetCustomerByUserID(ctx, user.ID)
	if err == nil {
		return customer, nil
	}
	if !domain.IsNotFound(err) {
		return nil, err
	}

	providerCustomer, err := h.provider.CreateCustomer(ctx, billing.CreateCustomerParams{
		Email: user.Email,
		Name:  user.Name,
		Metadata: map[string]string{
			"userId": strconv.FormatInt(user.ID, 10),
		},
	})
	if err != nil {
		return nil, domain.WrapError(err, domain.EPAYMENT, "billing.ensure_customer", "Could not create billing customer")
	}

	name := pgtype.Text{}
	if user.Name != "" {
		name = pgtype.Text{String: user.Name, Valid: true}
	}
	return h.store.CreateCustomer(ctx, domain.CreateCustomerParams{
		UserID:           user.ID,
		StripeCustomerID: providerCustomer.ID,
		Email:            user.Email,
		Name:             name,
	})
}

func (h *BillingHandler) currentSubscription(c echo.Context, user *middleware.User) (*domain.Subscription, error) {
	ctx := c.Request().Context()
	customer, err := h.store.GetCustomerByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return h.store.GetCurrentSubscription(ctx, customer.ID)
}

// Response shapes. Nullable timestamps surface as absent fields rather
// than zero times.

type subscriptionResponse struct {
	ID                 int64      `json:"id"`
	Status             string     `json:"status"`
	PriceID            string     `json:"price_id"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`
	TrialEnd           *time.Time `json:"trial_end,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

type invoiceResponse struct {
	ID               int64      `json:"id"`
	Status           string     `json:"status"`
	AmountDue        int64      `json:"amount_due"`
	AmountPaid       int64      `json:"amount_paid"`
	Currency         string     `json:"currency"`
	HostedInvoiceURL string     `json:"hosted_invoice_url,omitempty"`
	InvoicePDF       string     `json:"invoice_pdf,omitempty"`
	PeriodStart      *time.Time `json:"period_start,omitempty"`
	PeriodEnd        *time.Time `json:"period_end,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

type paymentResponse struct {
	ID          int64     `json:"id"`
	Status      string    `json:"status"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func subscriptionResponseFrom(sub *domain.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		PriceID:            sub.StripePriceID,
		CurrentPeriodStart: timePtr(sub.CurrentPeriodStart),
		CurrentPeriodEnd:   timePtr(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CanceledAt:         timePtr(sub.CanceledAt),
		TrialEnd:           timePtr(sub.TrialEnd),
		CreatedAt:          sub.CreatedAt,
	}
}

func invoiceResponseFrom(inv *domain.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:               inv.ID,
		Status:           string(inv.Status),
		AmountDue:        inv.AmountDue,
		AmountPaid:       inv.AmountPaid,
		Currency:         inv.Currency,
		HostedInvoiceURL: inv.HostedInvoiceURL.String,
		InvoicePDF:       inv.InvoicePDF.String,
		PeriodStart:      timePtr(inv.PeriodStart),
		PeriodEnd:        timePtr(inv.PeriodEnd),
		CreatedAt:        inv.CreatedAt,
	}
}

func paymentResponseFrom(p *domain.Payment) paymentResponse {
	return paymentResponse{
		ID:          p.ID,
		Status:      string(p.Status),
		Amount:      p.Amount,
		Currency:    p.Currency,
		Description: p.Description.String,
		CreatedAt:   p.CreatedAt,
	}
}
