package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/models"
)

type recordRepo struct {
	db DB
}

const recordColumns = `id, patient_id, title, description, file_url, details, created_at, updated_at`

func scanRecord(row pgx.Row) (*models.HealthRecord, error) {
	var (
		rec     models.HealthRecord
		details []byte
	)
	if err := row.Scan(&rec.ID, &rec.PatientID, &rec.Title, &rec.Description, &rec.FileURL,
		&details, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Details = details
	return &rec, nil
}

func (r *recordRepo) Create(ctx context.Context, rec *models.HealthRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	details := []byte(rec.Details)
	if len(details) == 0 {
		details = []byte(`{}`)
	}
	query := `
		INSERT INTO health_records (id, patient_id, title, description, file_url, details)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	if err := r.db.QueryRow(ctx, query, rec.ID, rec.PatientID, rec.Title, rec.Description,
		rec.FileURL, details).Scan(&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return fmt.Errorf("postgres: insert health record: %w", err)
	}
	return nil
}

func (r *recordRepo) Get(ctx context.Context, id uuid.UUID) (*models.HealthRecord, error) {
	rec, err := scanRecord(r.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM health_records WHERE id = $1`, id))
	if err != nil {
		return nil, wrap("get health record", "health record", id.String(), err)
	}
	return rec, nil
}

func (r *recordRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]models.HealthRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM health_records
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, patientID, limitOrDefault(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list health records: %w", err)
	}
	defer rows.Close()

	out := []models.HealthRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan health record: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *recordRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM health_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete health record: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("health record", id.String())
	}
	return nil
}
