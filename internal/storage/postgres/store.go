// Package postgres implements the storage contracts on pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/storage"
	"github.com/goldenlife/careconnect/pkg/logging"
)

// DB is the query surface shared by pgxpool.Pool, pgx.Tx and pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxDB can also open transactions.
type TxDB interface {
	DB
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the Postgres unit of work.
type Store struct {
	db     TxDB
	logger *logging.Logger
}

var _ storage.UnitOfWork = (*Store)(nil)

// New creates a store backed by a pgx pool.
func New(pool *pgxpool.Pool, logger *logging.Logger) *Store {
	if pool == nil {
		panic("postgres: pgx pool required")
	}
	return NewWithDB(pool, logger)
}

// NewWithDB allows injecting mocks for tests.
func NewWithDB(db TxDB, logger *logging.Logger) *Store {
	if db == nil {
		panic("postgres: db required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{db: db, logger: logger}
}

// Repos returns stores that run each statement on its own.
func (s *Store) Repos() storage.Repos {
	return reposFor(s.db)
}

// Do runs fn in a transaction, committing only when fn returns nil.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, r storage.Repos) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("transaction rollback failed", "error", rbErr)
		}
	}()

	if err := fn(ctx, reposFor(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func reposFor(db DB) storage.Repos {
	return storage.Repos{
		Users:        &userRepo{db: db},
		Providers:    &providerRepo{db: db},
		Offerings:    &offeringRepo{db: db},
		Slots:        &slotRepo{db: db},
		Promos:       &promoRepo{db: db},
		Overrides:    &overrideRepo{db: db},
		Appointments: &appointmentRepo{db: db},
		Payments:     &paymentRepo{db: db},
		Wallets:      &walletRepo{db: db},
		Reviews:      &reviewRepo{db: db},
		Records:      &recordRepo{db: db},
		Chat:         &chatRepo{db: db},
		Outbox:       &outboxRepo{db: db},
		Processed:    &processedRepo{db: db},
	}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// wrap maps pgx.ErrNoRows to a NotFound error and prefixes everything else.
func wrap(op, entity, id string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(entity, id)
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}
