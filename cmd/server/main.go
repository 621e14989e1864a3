package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/dukerupert/gjall/internal"
	"github.com/dukerupert/gjall/internal/billing"
	"github.com/dukerupert/gjall/internal/domain"
	"github.com/dukerupert/gjall/internal/handler"
	"github.com/dukerupert/gjall/internal/handler/api"
	"github.com/dukerupert/gjall/internal/handler/webhook"
	"github.com/dukerupert/gjall/internal/middleware"
	"github.com/dukerupert/gjall/internal/notify"
	"github.com/dukerupert/gjall/internal/postgres"
	"github.com/dukerupert/gjall/internal/reconcile"
	"github.com/dukerupert/gjall/internal/routes"
	"github.com/dukerupert/gjall/internal/telemetry"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	store := postgres.NewStore(pool)

	// Initialize Stripe billing provider
	logger.Info("Initializing Stripe billing provider...")
	stripeConfig := billing.StripeConfig{
		APIKey:        cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	}
	billingProvider, err := billing.NewStripeProvider(stripeConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize Stripe provider: %w", err)
	}
	logger.Info("Stripe billing provider initialized", "test_mode", stripeConfig.IsTestMode())

	// Initialize notification sink
	var sink domain.NotificationSink
	if cfg.Nats.URL != "" {
		logger.Info("Connecting to NATS...", "url", cfg.Nats.URL)
		natsSink, err := notify.NewNATSSink(cfg.Nats.URL, cfg.Nats.SubjectPrefix, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsSink.Close()
		sink = natsSink
	} else {
		logger.Info("NATS_URL not set, business events will be logged only")
		sink = notify.NewNoopSink(logger)
	}

	metrics := telemetry.NewBusinessMetrics("gjall")
	dispatcher := reconcile.NewHandlers(store, sink, logger)

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())

	routes.Register(e, routes.Deps{
		Billing: api.NewBillingHandler(store, billingProvider, metrics, logger, api.BillingConfig{
			CheckoutSuccessURL: cfg.Stripe.CheckoutSuccessURL,
			CheckoutCancelURL:  cfg.Stripe.CheckoutCancelURL,
			PortalReturnURL:    cfg.Stripe.PortalReturnURL,
		}),
		StripeWebhook: webhook.NewStripeHandler(billingProvider, dispatcher, metrics, logger, cfg.Stripe.WebhookSecret),
		ResolveUser:   resolveUserFromHeaders,
	})

	// Start server and shut down cleanly on SIGINT/SIGTERM
	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("Starting server", "address", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		logger.Info("Shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// resolveUserFromHeaders trusts identity headers set by the upstream
// gateway, which terminates authentication before requests reach this
// service. Swap the resolver here to change schemes.
func resolveUserFromHeaders(c echo.Context) (*middleware.User, error) {
	rawID := c.Request().Header.Get("X-User-Id")
	if rawID == "" {
		return nil, errors.New("missing identity header")
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid identity header: %w", err)
	}
	return &middleware.User{
		ID:    id,
		Email: c.Request().Header.Get("X-User-Email"),
		Name:  c.Request().Header.Get("X-User-Name"),
	}, nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
