package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goldenlife/careconnect/cmd/mainconfig"
	"github.com/goldenlife/careconnect/internal/api/router"
	"github.com/goldenlife/careconnect/internal/app/bootstrap"
	"github.com/goldenlife/careconnect/internal/chat"
	appconfig "github.com/goldenlife/careconnect/internal/config"
	"github.com/goldenlife/careconnect/internal/events"
	"github.com/goldenlife/careconnect/internal/http/handlers"
	httpmiddleware "github.com/goldenlife/careconnect/internal/http/middleware"
	"github.com/goldenlife/careconnect/internal/notify"
	"github.com/goldenlife/careconnect/internal/observability/metrics"
	"github.com/goldenlife/careconnect/pkg/logging"
)

const devAuthSecret = "careconnect-dev-secret"

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting careconnect API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	secret, err := authSecret(cfg)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := bootstrap.BuildStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
		store.Checks["redis"] = bootstrap.RedisCheck(redisClient)
	}

	registry, metricsHandler := setupMetrics()
	svcs, err := bootstrap.BuildServices(cfg, store, redisClient, registry, logger)
	if err != nil {
		logger.Error("failed to build services", "error", err)
		os.Exit(1)
	}

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.RunEviction(ctx, time.Minute)

	// With the in-memory store there is no separate worker process that can
	// see the outbox, so deliver it in-process.
	if store.Backend == "memory" {
		startInlineDelivery(ctx, cfg, store, registry, logger)
	}

	r := router.New(&router.Config{
		Logger:             logger,
		Accounts:           handlers.NewAccountsHandler(svcs.Users, secret, 24*time.Hour, logger),
		Providers:          handlers.NewProvidersHandler(svcs.Providers, svcs.Slots, svcs.Reviews, logger),
		Appointments:       newAppointmentsHandler(svcs, logger),
		Wallet:             handlers.NewWalletHandler(svcs.Wallet, svcs.Chat, logger),
		Records:            handlers.NewRecordsHandler(svcs.Records, logger),
		Admin:              handlers.NewAdminHandler(svcs.Pricing, svcs.Payments, logger),
		LiveChat:           chat.NewLiveHandler(svcs.Chat, logger),
		AuthSecret:         secret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
		Checks:             store.Checks,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "store", store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// authSecret returns the token signing secret. Outside production a fixed
// development secret stands in when none is configured.
func authSecret(cfg *appconfig.Config) (string, error) {
	if cfg.AuthJWTSecret != "" {
		return cfg.AuthJWTSecret, nil
	}
	if cfg.Env == "production" {
		return "", errors.New("AUTH_JWT_SECRET is required in production")
	}
	return devAuthSecret, nil
}

func setupMetrics() (*prometheus.Registry, http.Handler) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

func newAppointmentsHandler(svcs *bootstrap.Services, logger *logging.Logger) *handlers.AppointmentsHandler {
	return handlers.NewAppointmentsHandler(handlers.AppointmentsConfig{
		Booking:  svcs.Booking,
		Pricing:  svcs.Pricing,
		Payments: svcs.Payments,
		Reviews:  svcs.Reviews,
		Logger:   logger,
	})
}

func startInlineDelivery(ctx context.Context, cfg *appconfig.Config, store *bootstrap.Store, reg prometheus.Registerer, logger *logging.Logger) {
	var awsCfg *aws.Config
	if mainconfig.NeedsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Warn("inline outbox delivery disabled; AWS config failed", "error", err)
			return
		}
		awsCfg = &loaded
	}
	sender, provider, err := bootstrap.BuildEmailSender(cfg, awsCfg, logger)
	if err != nil {
		logger.Warn("inline outbox delivery disabled", "error", err)
		return
	}
	notifier := notify.NewNotifier(sender, store, cfg.Currency, logger)
	deliverer := events.NewDeliverer(store.Repos().Outbox, bootstrap.BuildOutboxHandler(cfg, awsCfg, notifier, logger), logger).
		WithInterval(cfg.OutboxInterval).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithMetrics(metrics.NewOutboxMetrics(reg))
	go deliverer.Start(ctx)
	logger.Info("inline outbox delivery started", "email_provider", provider)
}
