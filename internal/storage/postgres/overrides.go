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
)

type overrideRepo struct {
	db DB
}

const overrideColumns = `id, provider_id, consultation_fee, home_visit_fee, discount_percentage, notes, is_active, created_at, updated_at`

func scanOverride(row pgx.Row) (*models.PricingOverride, error) {
	var (
		o                       models.PricingOverride
		consult, home, discount decimal.NullDecimal
	)
	if err := row.Scan(&o.ID, &o.ProviderID, &consult, &home, &discount, &o.Notes, &o.Active,
		&o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.ConsultationFee = nullToPtr(consult)
	o.HomeVisitFee = nullToPtr(home)
	o.DiscountPercentage = nullToPtr(discount)
	return &o, nil
}

func activeOverrideConflict(providerID uuid.UUID) error {
	return apperr.Conflict("provider %s already has an active pricing override", providerID)
}

func (r *overrideRepo) Create(ctx context.Context, o *models.PricingOverride) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	query := `
		INSERT INTO provider_pricing_overrides (id, provider_id, consultation_fee, home_visit_fee,
			discount_percentage, notes, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, o.ID, o.ProviderID, o.ConsultationFee, o.HomeVisitFee,
		o.DiscountPercentage, o.Notes, o.Active).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return activeOverrideConflict(o.ProviderID)
		}
		return fmt.Errorf("postgres: insert override: %w", err)
	}
	return nil
}

func (r *overrideRepo) Get(ctx context.Context, id uuid.UUID) (*models.PricingOverride, error) {
	o, err := scanOverride(r.db.QueryRow(ctx, `SELECT `+overrideColumns+` FROM provider_pricing_overrides WHERE id = $1`, id))
	if err != nil {
		return nil, wrap("get override", "pricing override", id.String(), err)
	}
	return o, nil
}

func (r *overrideRepo) List(ctx context.Context) ([]models.PricingOverride, error) {
	rows, err := r.db.Query(ctx, `SELECT `+overrideColumns+` FROM provider_pricing_overrides ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list overrides: %w", err)
	}
	defer rows.Close()

	out := []models.PricingOverride{}
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan override: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *overrideRepo) Update(ctx context.Context, o *models.PricingOverride) error {
	query := `
		UPDATE provider_pricing_overrides
		SET consultation_fee = $2, home_visit_fee = $3, discount_percentage = $4, notes = $5,
		    is_active = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query, o.ID, o.ConsultationFee, o.HomeVisitFee, o.DiscountPercentage,
		o.Notes, o.Active).Scan(&o.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return activeOverrideConflict(o.ProviderID)
		}
		return wrap("update override", "pricing override", o.ID.String(), err)
	}
	return nil
}

func (r *overrideRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM provider_pricing_overrides WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete override: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("pricing override", id.String())
	}
	return nil
}

func (r *overrideRepo) ActiveForProvider(ctx context.Context, providerID uuid.UUID) (*models.PricingOverride, error) {
	query := `SELECT ` + overrideColumns + ` FROM provider_pricing_overrides WHERE provider_id = $1 AND is_active`
	o, err := scanOverride(r.db.QueryRow(ctx, query, providerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: active override: %w", err)
	}
	return o, nil
}
