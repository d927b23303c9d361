package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/goldenlife/careconnect/internal/models"
)

type walletRepo struct {
	db DB
}

func (r *walletRepo) Record(ctx context.Context, tx *models.WalletTransaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	query := `
		INSERT INTO wallet_transactions (id, user_id, amount, kind, reference)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	if err := r.db.QueryRow(ctx, query, tx.ID, tx.UserID, tx.Amount, string(tx.Kind), tx.Reference).Scan(&tx.CreatedAt); err != nil {
		return fmt.Errorf("postgres: insert wallet transaction: %w", err)
	}
	return nil
}

func (r *walletRepo) List(ctx context.Context, userID uuid.UUID, limit int) ([]models.WalletTransaction, error) {
	query := `
		SELECT id, user_id, amount, kind, reference, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("postgres: list wallet transactions: %w", err)
	}
	defer rows.Close()

	out := []models.WalletTransaction{}
	for rows.Next() {
		var (
			tx   models.WalletTransaction
			kind string
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &kind, &tx.Reference, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan wallet transaction: %w", err)
		}
		tx.Kind = models.WalletTxKind(kind)
		out = append(out, tx)
	}
	return out, rows.Err()
}
