package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/goldenlife/careconnect/internal/models"
)

type offeringRepo struct {
	db DB
}

const offeringColumns = `id, provider_id, name, description, duration_minutes, price, is_active, created_at`

func scanOffering(row pgx.Row) (*models.Offering, error) {
	var o models.Offering
	if err := row.Scan(&o.ID, &o.ProviderID, &o.Name, &o.Description, &o.DurationMinutes,
		&o.Price, &o.Active, &o.CreatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *offeringRepo) Create(ctx context.Context, o *models.Offering) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	query := `
		INSERT INTO services (id, provider_id, name, description, duration_minutes, price, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	if err := r.db.QueryRow(ctx, query, o.ID, o.ProviderID, o.Name, o.Description,
		o.DurationMinutes, o.Price, o.Active).Scan(&o.CreatedAt); err != nil {
		return fmt.Errorf("postgres: insert offering: %w", err)
	}
	return nil
}

func (r *offeringRepo) Get(ctx context.Context, id uuid.UUID) (*models.Offering, error) {
	o, err := scanOffering(r.db.QueryRow(ctx, `SELECT `+offeringColumns+` FROM services WHERE id = $1`, id))
	if err != nil {
		return nil, wrap("get offering", "service", id.String(), err)
	}
	return o, nil
}

func (r *offeringRepo) ListByProvider(ctx context.Context, providerID uuid.UUID, activeOnly bool) ([]models.Offering, error) {
	query := `
		SELECT ` + offeringColumns + `
		FROM services
		WHERE provider_id = $1 AND (NOT $2 OR is_active)
		ORDER BY name
	`
	rows, err := r.db.Query(ctx, query, providerID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("postgres: list offerings: %w", err)
	}
	defer rows.Close()

	out := []models.Offering{}
	for rows.Next() {
		o, err := scanOffering(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan offering: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *offeringRepo) Update(ctx context.Context, o *models.Offering) error {
	query := `
		UPDATE services
		SET name = $2, description = $3, duration_minutes = $4, price = $5, is_active = $6
		WHERE id = $1
	`
	ct, err := r.db.Exec(ctx, query, o.ID, o.Name, o.Description, o.DurationMinutes, o.Price, o.Active)
	if err != nil {
		return fmt.Errorf("postgres: update offering: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return wrap("update offering", "service", o.ID.String(), pgx.ErrNoRows)
	}
	return nil
}
