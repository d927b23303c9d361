package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/models"
)

type reviewRepo struct {
	db DB
}

func (r *reviewRepo) Create(ctx context.Context, rv *models.Review) error {
	if rv.ID == uuid.Nil {
		rv.ID = uuid.New()
	}
	query := `
		INSERT INTO reviews (id, appointment_id, patient_id, provider_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query, rv.ID, rv.AppointmentID, rv.PatientID, rv.ProviderID,
		rv.Rating, rv.Comment).Scan(&rv.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("appointment %s already has a review", rv.AppointmentID)
		}
		return fmt.Errorf("postgres: insert review: %w", err)
	}
	return nil
}

func (r *reviewRepo) ListByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]models.Review, error) {
	query := `
		SELECT id, appointment_id, patient_id, provider_id, rating, comment, created_at
		FROM reviews
		WHERE provider_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, providerID, limitOrDefault(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list reviews: %w", err)
	}
	defer rows.Close()

	out := []models.Review{}
	for rows.Next() {
		var rv models.Review
		if err := rows.Scan(&rv.ID, &rv.AppointmentID, &rv.PatientID, &rv.ProviderID, &rv.Rating,
			&rv.Comment, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan review: %w", err)
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *reviewRepo) Aggregate(ctx context.Context, providerID uuid.UUID) (decimal.Decimal, int, error) {
	query := `SELECT COALESCE(AVG(rating), 0), COUNT(*) FROM reviews WHERE provider_id = $1`
	var (
		avg   decimal.Decimal
		count int
	)
	if err := r.db.QueryRow(ctx, query, providerID).Scan(&avg, &count); err != nil {
		return decimal.Zero, 0, fmt.Errorf("postgres: aggregate reviews: %w", err)
	}
	return avg, count, nil
}
