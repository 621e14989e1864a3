// Package routes wires handlers onto the HTTP router.
package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/gjall/internal/handler/api"
	"github.com/dukerupert/gjall/internal/handler/webhook"
	"github.com/dukerupert/gjall/internal/middleware"
)

// Deps contains the handlers and middleware dependencies for all routes.
type Deps struct {
	Billing       *api.BillingHandler
	StripeWebhook *webhook.StripeHandler

	// ResolveUser authenticates requests on the /api group. The scheme
	// itself lives outside this module.
	ResolveUser middleware.UserResolver
}

// Register mounts all routes.
//
// Webhook routes carry no authentication middleware; the handler verifies
// the provider signature itself.
func Register(e *echo.Echo, deps Deps) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/webhooks/stripe", deps.StripeWebhook.HandleWebhook)

	billing := e.Group("/api/billing", middleware.RequireUser(deps.ResolveUser))
	billing.POST("/checkout", deps.Billing.CreateCheckout)
	billing.POST("/portal", deps.Billing.CreatePortal)
	billing.GET("/subscription", deps.Billing.GetSubscription)
	billing.POST("/subscription/cancel", deps.Billing.CancelSubscription)
	billing.POST("/subscription/resume", deps.Billing.ResumeSubscription)
	billing.GET("/invoices", deps.Billing.ListInvoices)
	billing.GET("/payments", deps.Billing.ListPayments)
}
