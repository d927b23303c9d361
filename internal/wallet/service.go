// Package wallet exposes the patient wallet balance, top-ups and the
// transaction ledger.
package wallet

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/identity"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/money"
	"github.com/goldenlife/careconnect/internal/storage"
	"github.com/goldenlife/careconnect/pkg/logging"
)

// DefaultMaxTopUp caps a single top-up when no limit is configured.
var DefaultMaxTopUp = decimal.NewFromInt(10000)

const DefaultHistory = 50

type Summary struct {
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

type TopUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type Service struct {
	uow      storage.UnitOfWork
	maxTopUp decimal.Decimal
	currency string
	logger   *logging.Logger
}

func NewService(uow storage.UnitOfWork, maxTopUp decimal.Decimal, currency string, logger *logging.Logger) *Service {
	if uow == nil {
		panic("wallet: unit of work required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if !maxTopUp.IsPositive() {
		maxTopUp = DefaultMaxTopUp
	}
	if currency == "" {
		currency = "USD"
	}
	return &Service{uow: uow, maxTopUp: maxTopUp, currency: currency, logger: logger}
}

func (s *Service) Balance(ctx context.Context, actor identity.Actor) (*Summary, error) {
	u, err := s.uow.Repos().Users.Get(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return &Summary{Balance: u.WalletBalance, Currency: s.currency}, nil
}

// TopUp credits the caller's wallet and records the ledger entry.
func (s *Service) TopUp(ctx context.Context, actor identity.Actor, req TopUpRequest) (*Summary, error) {
	amount := money.Round(req.Amount)
	if !amount.IsPositive() {
		return nil, apperr.Validation("amount must be positive")
	}
	if amount.GreaterThan(s.maxTopUp) {
		return nil, apperr.Validation("amount must not exceed %s", money.String(s.maxTopUp))
	}
	var balance decimal.Decimal
	err := s.uow.Do(ctx, func(ctx context.Context, r storage.Repos) error {
		next, err := r.Users.AdjustWallet(ctx, actor.UserID, amount)
		if err != nil {
			return err
		}
		balance = next
		return r.Wallets.Record(ctx, &models.WalletTransaction{
			UserID: actor.UserID,
			Amount: amount,
			Kind:   models.WalletTopUp,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("wallet topped up", "user_id", actor.UserID, "amount", money.String(amount))
	return &Summary{Balance: balance, Currency: s.currency}, nil
}

// History lists the caller's ledger, newest first.
func (s *Service) History(ctx context.Context, actor identity.Actor, limit int) ([]models.WalletTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = DefaultHistory
	}
	return s.uow.Repos().Wallets.List(ctx, actor.UserID, limit)
}
