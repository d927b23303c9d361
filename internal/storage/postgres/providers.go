package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/storage"
)

type providerRepo struct {
	db DB
}

const providerSelect = `
	SELECT p.id, p.user_id, p.type, p.specialization, p.bio, p.years_experience, p.education,
	       p.certifications, p.languages, p.consultation_fee, p.home_visit_fee, p.is_verified,
	       p.is_active, p.rating, p.total_reviews, p.available_days, p.working_hours_start,
	       p.working_hours_end, p.timezone, u.city, p.created_at, p.updated_at
	FROM providers p
	JOIN users u ON u.id = p.user_id
`

func scanProvider(row pgx.Row) (*models.Provider, error) {
	var (
		p                          models.Provider
		ptype                      string
		languages, days            []string
		consultation, homeVisitFee decimal.NullDecimal
	)
	if err := row.Scan(&p.ID, &p.UserID, &ptype, &p.Specialization, &p.Bio, &p.YearsExperience,
		&p.Education, &p.Certifications, &languages, &consultation, &homeVisitFee, &p.Verified,
		&p.Active, &p.Rating, &p.TotalReviews, &days, &p.WorkingHoursStart, &p.WorkingHoursEnd,
		&p.Timezone, &p.City, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Type = models.ProviderType(ptype)
	p.Languages = make(models.Languages, len(languages))
	for i, l := range languages {
		p.Languages[i] = models.Language(l)
	}
	p.AvailableDays = make(models.Weekdays, len(days))
	for i, d := range days {
		p.AvailableDays[i] = models.Weekday(d)
	}
	p.ConsultationFee = nullToPtr(consultation)
	p.HomeVisitFee = nullToPtr(homeVisitFee)
	if p.Certifications == nil {
		p.Certifications = []string{}
	}
	return &p, nil
}

func (r *providerRepo) Create(ctx context.Context, p *models.Provider) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Timezone == "" {
		p.Timezone = "UTC"
	}
	query := `
		INSERT INTO providers (id, user_id, type, specialization, bio, years_experience, education,
			certifications, languages, consultation_fee, home_visit_fee, is_verified, is_active,
			available_days, working_hours_start, working_hours_end, timezone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING rating, total_reviews, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, p.ID, p.UserID, string(p.Type), p.Specialization, p.Bio,
		p.YearsExperience, p.Education, nonNil(p.Certifications), p.Languages.Strings(),
		p.ConsultationFee, p.HomeVisitFee, p.Verified, p.Active, p.AvailableDays.Strings(),
		p.WorkingHoursStart, p.WorkingHoursEnd, p.Timezone).
		Scan(&p.Rating, &p.TotalReviews, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("user %s already has a provider profile", p.UserID)
		}
		return fmt.Errorf("postgres: insert provider: %w", err)
	}
	return nil
}

func (r *providerRepo) Get(ctx context.Context, id uuid.UUID) (*models.Provider, error) {
	p, err := scanProvider(r.db.QueryRow(ctx, providerSelect+` WHERE p.id = $1`, id))
	if err != nil {
		return nil, wrap("get provider", "provider", id.String(), err)
	}
	return p, nil
}

func (r *providerRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Provider, error) {
	p, err := scanProvider(r.db.QueryRow(ctx, providerSelect+` WHERE p.user_id = $1`, userID))
	if err != nil {
		return nil, wrap("get provider by user", "provider for user", userID.String(), err)
	}
	return p, nil
}

func (r *providerRepo) Search(ctx context.Context, f storage.ProviderFilter) ([]models.Provider, error) {
	query := providerSelect + `
		WHERE ($1 = '' OR p.type = $1)
		  AND ($2 = '' OR lower(u.city) = lower($2))
		  AND ($3 = '' OR $3 = ANY(p.languages))
		  AND (NOT $4 OR p.is_verified)
		  AND (NOT $5 OR p.is_active)
		  AND p.rating >= $6
		ORDER BY p.rating DESC, p.total_reviews DESC, p.created_at
		LIMIT $7 OFFSET $8
	`
	rows, err := r.db.Query(ctx, query, string(f.Type), f.City, string(f.Language),
		f.VerifiedOnly, f.ActiveOnly, f.MinRating, limitOrDefault(f.Limit), f.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: search providers: %w", err)
	}
	defer rows.Close()

	out := []models.Provider{}
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan provider: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *providerRepo) Update(ctx context.Context, p *models.Provider) error {
	query := `
		UPDATE providers
		SET type = $2, specialization = $3, bio = $4, years_experience = $5, education = $6,
		    certifications = $7, languages = $8, consultation_fee = $9, home_visit_fee = $10,
		    available_days = $11, working_hours_start = $12, working_hours_end = $13,
		    timezone = $14, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query, p.ID, string(p.Type), p.Specialization, p.Bio, p.YearsExperience,
		p.Education, nonNil(p.Certifications), p.Languages.Strings(), p.ConsultationFee, p.HomeVisitFee,
		p.AvailableDays.Strings(), p.WorkingHoursStart, p.WorkingHoursEnd, p.Timezone).Scan(&p.UpdatedAt)
	if err != nil {
		return wrap("update provider", "provider", p.ID.String(), err)
	}
	return nil
}

func (r *providerRepo) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	return r.setFlag(ctx, `UPDATE providers SET is_verified = $2, updated_at = now() WHERE id = $1`, id, verified)
}

func (r *providerRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.setFlag(ctx, `UPDATE providers SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
}

func (r *providerRepo) setFlag(ctx context.Context, query string, id uuid.UUID, value bool) error {
	ct, err := r.db.Exec(ctx, query, id, value)
	if err != nil {
		return fmt.Errorf("postgres: update provider flag: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("provider", id.String())
	}
	return nil
}

func (r *providerRepo) SetRating(ctx context.Context, id uuid.UUID, rating decimal.Decimal, total int) error {
	query := `UPDATE providers SET rating = $2, total_reviews = $3, updated_at = now() WHERE id = $1`
	ct, err := r.db.Exec(ctx, query, id, rating, total)
	if err != nil {
		return fmt.Errorf("postgres: set rating: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("provider", id.String())
	}
	return nil
}

func nullToPtr(n decimal.NullDecimal) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	d := n.Decimal
	return &d
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
