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

type promoRepo struct {
	db DB
}

const promoColumns = `id, code, description, discount_type, discount_value, max_uses, used_count,
	valid_from, valid_until, is_active, applicable_providers, min_amount, created_at`

func scanPromo(row pgx.Row) (*models.PromoCode, error) {
	var (
		p         models.PromoCode
		dtype     string
		minAmount decimal.NullDecimal
	)
	if err := row.Scan(&p.ID, &p.Code, &p.Description, &dtype, &p.DiscountValue, &p.MaxUses,
		&p.UsedCount, &p.ValidFrom, &p.ValidUntil, &p.Active, &p.ApplicableProviders,
		&minAmount, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.DiscountType = models.DiscountType(dtype)
	p.MinAmount = nullToPtr(minAmount)
	if p.ApplicableProviders == nil {
		p.ApplicableProviders = []uuid.UUID{}
	}
	return &p, nil
}

func (r *promoRepo) Create(ctx context.Context, p *models.PromoCode) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `
		INSERT INTO promo_codes (id, code, description, discount_type, discount_value, max_uses,
			valid_from, valid_until, is_active, applicable_providers, min_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING used_count, created_at
	`
	err := r.db.QueryRow(ctx, query, p.ID, p.Code, p.Description, string(p.DiscountType),
		p.DiscountValue, p.MaxUses, p.ValidFrom, p.ValidUntil, p.Active,
		uuidsOrEmpty(p.ApplicableProviders), p.MinAmount).Scan(&p.UsedCount, &p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("promo code %s already exists", p.Code)
		}
		return fmt.Errorf("postgres: insert promo: %w", err)
	}
	return nil
}

func (r *promoRepo) Get(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	p, err := scanPromo(r.db.QueryRow(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE id = $1`, id))
	if err != nil {
		return nil, wrap("get promo", "promo code", id.String(), err)
	}
	return p, nil
}

func (r *promoRepo) GetByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	p, err := scanPromo(r.db.QueryRow(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE code = $1`, code))
	if err != nil {
		return nil, wrap("get promo by code", "promo code", code, err)
	}
	return p, nil
}

func (r *promoRepo) List(ctx context.Context) ([]models.PromoCode, error) {
	rows, err := r.db.Query(ctx, `SELECT `+promoColumns+` FROM promo_codes ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list promos: %w", err)
	}
	defer rows.Close()

	out := []models.PromoCode{}
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan promo: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *promoRepo) Update(ctx context.Context, p *models.PromoCode) error {
	query := `
		UPDATE promo_codes
		SET description = $2, discount_type = $3, discount_value = $4, max_uses = $5,
		    valid_from = $6, valid_until = $7, is_active = $8, applicable_providers = $9,
		    min_amount = $10
		WHERE id = $1
		RETURNING used_count
	`
	err := r.db.QueryRow(ctx, query, p.ID, p.Description, string(p.DiscountType), p.DiscountValue,
		p.MaxUses, p.ValidFrom, p.ValidUntil, p.Active, uuidsOrEmpty(p.ApplicableProviders),
		p.MinAmount).Scan(&p.UsedCount)
	if err != nil {
		return wrap("update promo", "promo code", p.ID.String(), err)
	}
	return nil
}

func (r *promoRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM promo_codes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete promo: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("promo code", id.String())
	}
	return nil
}

func (r *promoRepo) Redeem(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE promo_codes
		SET used_count = used_count + 1
		WHERE id = $1 AND is_active AND (max_uses IS NULL OR used_count < max_uses)
	`
	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("postgres: redeem promo: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		return fmt.Errorf("postgres: redeem promo: %w", err)
	}
	return storage.ErrPromoExhausted
}

func uuidsOrEmpty(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
