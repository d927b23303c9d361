package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/storage"
)

type paymentRepo struct {
	db DB
}

const paymentColumns = `id, appointment_id, patient_id, amount, currency, payment_method, status, gateway_ref, created_at, updated_at`

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var (
		p              models.Payment
		method, status string
	)
	if err := row.Scan(&p.ID, &p.AppointmentID, &p.PatientID, &p.Amount, &p.Currency, &method,
		&status, &p.GatewayRef, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Method = models.PaymentMethod(method)
	p.Status = models.PaymentStatus(status)
	return &p, nil
}

func (r *paymentRepo) Create(ctx context.Context, p *models.Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `
		INSERT INTO payments (id, appointment_id, patient_id, amount, currency, payment_method, status, gateway_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	if err := r.db.QueryRow(ctx, query, p.ID, p.AppointmentID, p.PatientID, p.Amount, p.Currency,
		string(p.Method), string(p.Status), p.GatewayRef).Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("appointment %s already has a payment", p.AppointmentID)
		}
		return fmt.Errorf("postgres: insert payment: %w", err)
	}
	return nil
}

func (r *paymentRepo) Get(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err != nil {
		return nil, wrap("get payment", "payment", id.String(), err)
	}
	return p, nil
}

func (r *paymentRepo) ActiveForAppointment(ctx context.Context, appointmentID uuid.UUID) (*models.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE appointment_id = $1 AND status <> 'failed'
		ORDER BY created_at DESC
		LIMIT 1
	`
	p, err := scanPayment(r.db.QueryRow(ctx, query, appointmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: payment for appointment: %w", err)
	}
	return p, nil
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.PaymentStatus) (*models.Payment, error) {
	query := `
		UPDATE payments
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING ` + paymentColumns
	p, err := scanPayment(r.db.QueryRow(ctx, query, id, string(from), string(to)))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres: update payment status: %w", err)
	}
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, storage.ErrStaleStatus
}

func (r *paymentRepo) MoveToAppointment(ctx context.Context, id, appointmentID uuid.UUID) error {
	ct, err := r.db.Exec(ctx, `UPDATE payments SET appointment_id = $2, updated_at = now() WHERE id = $1`, id, appointmentID)
	if err != nil {
		return fmt.Errorf("postgres: move payment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("payment", id.String())
	}
	return nil
}
