package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/goldenlife/careconnect/internal/chat"
	"github.com/goldenlife/careconnect/internal/http/handlers"
	httpmiddleware "github.com/goldenlife/careconnect/internal/http/middleware"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/pkg/logging"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Accounts           *handlers.AccountsHandler
	Providers          *handlers.ProvidersHandler
	Appointments       *handlers.AppointmentsHandler
	Wallet             *handlers.WalletHandler
	Records            *handlers.RecordsHandler
	Admin              *handlers.AdminHandler
	LiveChat           *chat.LiveHandler
	AuthSecret         string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RateLimiter        *httpmiddleware.RateLimiter

	// Readiness checks reported by /health, keyed by name.
	Checks map[string]Pinger
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.Get("/health", healthHandler(cfg.Checks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		if cfg.RateLimiter != nil {
			api.Use(cfg.RateLimiter.Middleware)
		}
		api.Use(middleware.Compress(5, "application/json"))

		// Public
		api.Group(func(public chi.Router) {
			public.Post("/users/register", cfg.Accounts.Register)
			public.Post("/auth/login", cfg.Accounts.Login)
			public.Get("/providers", cfg.Providers.Search)
			public.Get("/providers/{providerID}", cfg.Providers.Profile)
			public.Get("/providers/{providerID}/availability", cfg.Providers.Availability)
			public.Get("/providers/{providerID}/reviews", cfg.Providers.Reviews)
			public.Post("/quotes", cfg.Appointments.Quote)
		})

		api.Group(func(authed chi.Router) {
			authed.Use(httpmiddleware.Authenticate(cfg.AuthSecret))

			authed.Get("/me", cfg.Accounts.Me)

			authed.Route("/appointments", func(r chi.Router) {
				r.Post("/", cfg.Appointments.Book)
				r.Get("/", cfg.Appointments.List)
				r.Route("/{appointmentID}", func(r chi.Router) {
					r.Get("/", cfg.Appointments.Get)
					r.Post("/transitions", cfg.Appointments.Transition)
					r.With(httpmiddleware.RequireRole(models.RolePatient)).Post("/payments", cfg.Appointments.Pay)
					r.With(httpmiddleware.RequireRole(models.RolePatient)).Post("/reviews", cfg.Appointments.Review)
				})
			})

			authed.Route("/wallet", func(r chi.Router) {
				r.Get("/", cfg.Wallet.Balance)
				r.Post("/topup", cfg.Wallet.TopUp)
				r.Get("/transactions", cfg.Wallet.Transactions)
			})

			authed.Route("/health-records", func(r chi.Router) {
				r.Use(httpmiddleware.RequireRole(models.RolePatient))
				r.Get("/", cfg.Records.List)
				r.Post("/", cfg.Records.Create)
				r.Get("/{recordID}", cfg.Records.Get)
				r.Delete("/{recordID}", cfg.Records.Delete)
			})

			authed.Route("/chat", func(r chi.Router) {
				r.Get("/", cfg.Wallet.ChatHistory)
				r.Post("/", cfg.Wallet.ChatSend)
				if cfg.LiveChat != nil {
					r.Handle("/ws", cfg.LiveChat)
				}
			})

			authed.Route("/provider", func(r chi.Router) {
				r.Use(httpmiddleware.RequireRole(models.RoleProvider, models.RoleAdmin))
				r.Use(requireProviderProfile)
				r.Get("/profile", cfg.Providers.Own)
				r.Put("/profile", cfg.Providers.UpdateOwn)
				r.Post("/offerings", cfg.Providers.AddOffering)
				r.Patch("/offerings/{offeringID}", cfg.Providers.UpdateOffering)
				r.Post("/slots", cfg.Providers.CreateSlots)
				r.Post("/slots/generate", cfg.Providers.GenerateSlots)
				r.Post("/slots/{slotID}/block", cfg.Providers.Block)
				r.Post("/slots/{slotID}/unblock", cfg.Providers.Unblock)
			})

			authed.Route("/admin", func(r chi.Router) {
				r.Use(httpmiddleware.RequireRole(models.RoleAdmin))
				r.Get("/users", cfg.Accounts.ListUsers)
				r.Patch("/users/{userID}/role", cfg.Accounts.SetRole)

				r.Post("/providers", cfg.Providers.AdminCreate)
				r.Post("/providers/{providerID}/verify", cfg.Providers.Verify)
				r.Post("/providers/{providerID}/active", cfg.Providers.SetActive)

				r.Route("/promo-codes", func(r chi.Router) {
					r.Get("/", cfg.Admin.ListPromos)
					r.Post("/", cfg.Admin.CreatePromo)
					r.Patch("/{promoID}", cfg.Admin.UpdatePromo)
					r.Delete("/{promoID}", cfg.Admin.DeletePromo)
				})
				r.Route("/pricing-overrides", func(r chi.Router) {
					r.Get("/", cfg.Admin.ListOverrides)
					r.Post("/", cfg.Admin.CreateOverride)
					r.Patch("/{overrideID}", cfg.Admin.UpdateOverride)
					r.Delete("/{overrideID}", cfg.Admin.DeleteOverride)
				})

				r.Post("/payments/{paymentID}/status", cfg.Admin.SettlePayment)
			})
		})
	})

	return r
}

func healthHandler(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, c := range checks {
			if err := c.Ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
				continue
			}
			body[name] = "ok"
		}
		writeJSON(w, status, body)
	}
}
