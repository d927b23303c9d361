package bootstrap

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/goldenlife/careconnect/internal/booking"
	"github.com/goldenlife/careconnect/internal/cache"
	"github.com/goldenlife/careconnect/internal/chat"
	appconfig "github.com/goldenlife/careconnect/internal/config"
	"github.com/goldenlife/careconnect/internal/observability/metrics"
	"github.com/goldenlife/careconnect/internal/payments"
	"github.com/goldenlife/careconnect/internal/pricing"
	"github.com/goldenlife/careconnect/internal/providers"
	"github.com/goldenlife/careconnect/internal/records"
	"github.com/goldenlife/careconnect/internal/reviews"
	"github.com/goldenlife/careconnect/internal/slots"
	"github.com/goldenlife/careconnect/internal/storage"
	"github.com/goldenlife/careconnect/internal/users"
	"github.com/goldenlife/careconnect/internal/wallet"
	"github.com/goldenlife/careconnect/pkg/logging"
)

// Services is the full set of domain services over one unit of work.
type Services struct {
	Cache     *cache.Cache
	Metrics   *metrics.BookingMetrics
	Users     *users.Service
	Providers *providers.Service
	Slots     *slots.Allocator
	Pricing   *pricing.Service
	Booking   *booking.Service
	Payments  *payments.Service
	Wallet    *wallet.Service
	Reviews   *reviews.Service
	Records   *records.Service
	Chat      *chat.Service
}

// BuildServices wires every domain service. redisClient may be nil, in which
// case reads go straight to storage. Metrics register on reg when it is set.
func BuildServices(cfg *appconfig.Config, uow storage.UnitOfWork, redisClient *redis.Client, reg prometheus.Registerer, logger *logging.Logger) (*Services, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if uow == nil {
		return nil, fmt.Errorf("bootstrap: unit of work is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var c *cache.Cache
	if redisClient != nil {
		c = cache.New(redisClient, cfg.CacheTTL, logger)
	}
	var m *metrics.BookingMetrics
	if reg != nil {
		m = metrics.NewBookingMetrics(reg)
	}

	ps := pricing.NewService(pricing.ServiceConfig{
		UnitOfWork: uow,
		Currency:   cfg.Currency,
		Metrics:    m,
		Logger:     logger,
	})
	return &Services{
		Cache:     c,
		Metrics:   m,
		Users:     users.NewService(uow, logger),
		Providers: providers.NewService(uow, c, logger),
		Slots:     slots.NewAllocator(uow, c, logger),
		Pricing:   ps,
		Booking: booking.NewService(booking.Config{
			UnitOfWork: uow,
			Pricing:    ps,
			Cache:      c,
			Metrics:    m,
			Logger:     logger,
			Currency:   cfg.Currency,
		}),
		Payments: payments.NewService(payments.Config{UnitOfWork: uow, Currency: cfg.Currency, Logger: logger}),
		Wallet:   wallet.NewService(uow, cfg.WalletMaxTopUp, cfg.Currency, logger),
		Reviews:  reviews.NewService(uow, c, logger),
		Records:  records.NewService(uow, logger),
		Chat:     chat.NewService(uow, chat.NewFAQResponder(), logger),
	}, nil
}
