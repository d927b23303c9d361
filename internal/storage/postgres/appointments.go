package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/storage"
)

type appointmentRepo struct {
	db DB
}

const appointmentColumns = `id, patient_id, provider_id, service_id, time_slot_id, appointment_date,
	start_time, end_time, visit_type, status, notes, patient_address, total_amount, promo_code_id,
	rescheduled_from_id, created_at, updated_at`

func scanAppointment(row pgx.Row) (*models.Appointment, error) {
	var (
		a                 models.Appointment
		visitType, status string
	)
	if err := row.Scan(&a.ID, &a.PatientID, &a.ProviderID, &a.OfferingID, &a.SlotID, &a.Date,
		&a.StartTime, &a.EndTime, &visitType, &status, &a.Notes, &a.PatientAddress, &a.TotalAmount,
		&a.PromoCodeID, &a.RescheduledFromID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.VisitType = models.VisitType(visitType)
	a.Status = models.AppointmentStatus(status)
	return &a, nil
}

func (r *appointmentRepo) Create(ctx context.Context, a *models.Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	query := `
		INSERT INTO appointments (id, patient_id, provider_id, service_id, time_slot_id,
			appointment_date, start_time, end_time, visit_type, status, notes, patient_address,
			total_amount, promo_code_id, rescheduled_from_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, a.ID, a.PatientID, a.ProviderID, a.OfferingID, a.SlotID,
		a.Date, a.StartTime, a.EndTime, string(a.VisitType), string(a.Status), a.Notes,
		a.PatientAddress, a.TotalAmount, a.PromoCodeID, a.RescheduledFromID).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepo) Get(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if err != nil {
		return nil, wrap("get appointment", "appointment", id.String(), err)
	}
	return a, nil
}

func (r *appointmentRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, wrap("lock appointment", "appointment", id.String(), err)
	}
	return a, nil
}

func (r *appointmentRepo) List(ctx context.Context, f storage.AppointmentFilter) ([]models.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE ($1::uuid IS NULL OR patient_id = $1)
		  AND ($2::uuid IS NULL OR provider_id = $2)
		  AND ($3 = '' OR status = $3)
		  AND ($4 = '' OR appointment_date >= $4)
		  AND ($5 = '' OR appointment_date <= $5)
		ORDER BY appointment_date, start_time
		LIMIT $6
	`
	rows, err := r.db.Query(ctx, query, nullUUID(f.PatientID), nullUUID(f.ProviderID),
		string(f.Status), f.FromDate, f.ToDate, listLimit(f.Limit))
	if err != nil {
		return nil, fmt.Errorf("postgres: list appointments: %w", err)
	}
	defer rows.Close()

	out := []models.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan appointment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *appointmentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.AppointmentStatus) (*models.Appointment, error) {
	query := `
		UPDATE appointments
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING ` + appointmentColumns
	a, err := scanAppointment(r.db.QueryRow(ctx, query, id, string(from), string(to)))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres: update appointment status: %w", err)
	}
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, storage.ErrStaleStatus
}

func nullUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func listLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 200
	}
	return limit
}
