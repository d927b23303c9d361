package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/goldenlife/careconnect/internal/api/router"
	appconfig "github.com/goldenlife/careconnect/internal/config"
	"github.com/goldenlife/careconnect/internal/storage"
	"github.com/goldenlife/careconnect/internal/storage/memory"
	"github.com/goldenlife/careconnect/internal/storage/postgres"
	"github.com/goldenlife/careconnect/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// Store is the selected storage backend plus what the process needs to
// report on it and release it.
type Store struct {
	storage.UnitOfWork
	Backend string
	Checks  map[string]router.Pinger
	close   func()
}

func (s *Store) Close() {
	if s != nil && s.close != nil {
		s.close()
	}
}

// BuildStore opens Postgres when DATABASE_URL is set, and falls back to the
// in-memory backend when USE_MEMORY_STORE is true or no database is
// configured outside production.
func BuildStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	url := strings.TrimSpace(cfg.DatabaseURL)
	if cfg.UseMemoryStore || url == "" {
		if url == "" && !cfg.UseMemoryStore && cfg.Env == "production" {
			return nil, fmt.Errorf("bootstrap: DATABASE_URL is required in production")
		}
		logger.Warn("using in-memory store; data is lost on restart")
		return &Store{UnitOfWork: memory.New(), Backend: "memory", Checks: map[string]router.Pinger{}}, nil
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("connected to postgres")
	return &Store{
		UnitOfWork: postgres.New(pool, logger),
		Backend:    "postgres",
		Checks:     map[string]router.Pinger{"database": pool},
		close:      pool.Close,
	}, nil
}

// RedisCheck exposes a Redis client as a readiness check.
func RedisCheck(client *redis.Client) router.Pinger {
	return router.PingFunc(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}
