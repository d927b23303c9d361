package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/storage"
)

type userRepo struct {
	db DB
}

const userColumns = `id, email, password_hash, first_name, last_name, phone, role, address, city, wallet_balance, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone,
		&role, &u.Address, &u.City, &u.WalletBalance, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

func (r *userRepo) Create(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, phone, role, address, city)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING wallet_balance, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName,
		u.Phone, string(u.Role), u.Address, u.City).Scan(&u.WalletBalance, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("email %s is already registered", u.Email)
		}
		return fmt.Errorf("postgres: insert user: %w", err)
	}
	return nil
}

func (r *userRepo) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, wrap("get user", "user", id.String(), err)
	}
	return u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, wrap("get user by email", "user", email, err)
	}
	return u, nil
}

func (r *userRepo) List(ctx context.Context, f storage.UserFilter) ([]models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE ($1 = '' OR role = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, string(f.Role), limitOrDefault(f.Limit), f.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list users: %w", err)
	}
	defer rows.Close()

	out := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan user: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *userRepo) SetRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error) {
	query := `UPDATE users SET role = $2, updated_at = now() WHERE id = $1 RETURNING ` + userColumns
	u, err := scanUser(r.db.QueryRow(ctx, query, id, string(role)))
	if err != nil {
		return nil, wrap("set role", "user", id.String(), err)
	}
	return u, nil
}

func (r *userRepo) AdjustWallet(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	query := `
		UPDATE users
		SET wallet_balance = wallet_balance + $2, updated_at = now()
		WHERE id = $1 AND wallet_balance + $2 >= 0
		RETURNING wallet_balance
	`
	var balance decimal.Decimal
	err := r.db.QueryRow(ctx, query, id, delta).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("postgres: adjust wallet: %w", err)
	}
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return decimal.Zero, getErr
	}
	return decimal.Zero, storage.ErrInsufficientFunds
}

func limitOrDefault(limit int) int {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}
