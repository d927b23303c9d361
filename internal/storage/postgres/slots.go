package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/models"
)

type slotRepo struct {
	db DB
}

const slotColumns = `id, provider_id, date, start_time, end_time, is_booked, is_blocked, created_at`

func scanSlot(row pgx.Row) (*models.TimeSlot, error) {
	var s models.TimeSlot
	if err := row.Scan(&s.ID, &s.ProviderID, &s.Date, &s.StartTime, &s.EndTime,
		&s.Booked, &s.Blocked, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *slotRepo) LockDay(ctx context.Context, providerID uuid.UUID, date string) error {
	if _, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, providerID.String()+"/"+date); err != nil {
		return fmt.Errorf("postgres: lock slot day: %w", err)
	}
	return nil
}

func (r *slotRepo) CreateBatch(ctx context.Context, slots []models.TimeSlot) error {
	query := `
		INSERT INTO time_slots (id, provider_id, date, start_time, end_time, is_booked, is_blocked)
		VALUES ($1, $2, $3, $4, $5, false, false)
		RETURNING created_at
	`
	for i := range slots {
		s := &slots[i]
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		if err := r.db.QueryRow(ctx, query, s.ID, s.ProviderID, s.Date, s.StartTime, s.EndTime).Scan(&s.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return apperr.InvalidWindow("slot %s %s already exists", s.Date, s.StartTime)
			}
			return fmt.Errorf("postgres: insert slot: %w", err)
		}
	}
	return nil
}

func (r *slotRepo) Get(ctx context.Context, id uuid.UUID) (*models.TimeSlot, error) {
	s, err := scanSlot(r.db.QueryRow(ctx, `SELECT `+slotColumns+` FROM time_slots WHERE id = $1`, id))
	if err != nil {
		return nil, wrap("get slot", "time slot", id.String(), err)
	}
	return s, nil
}

func (r *slotRepo) ListByProviderDate(ctx context.Context, providerID uuid.UUID, date string) ([]models.TimeSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM time_slots
		WHERE provider_id = $1 AND date = $2
		ORDER BY start_time
	`
	return r.list(ctx, query, providerID, date)
}

func (r *slotRepo) ListBookable(ctx context.Context, providerID uuid.UUID, from, to string) ([]models.TimeSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM time_slots
		WHERE provider_id = $1 AND date BETWEEN $2 AND $3
		  AND NOT is_booked AND NOT is_blocked
		ORDER BY date, start_time
	`
	return r.list(ctx, query, providerID, from, to)
}

func (r *slotRepo) list(ctx context.Context, query string, args ...any) ([]models.TimeSlot, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list slots: %w", err)
	}
	defer rows.Close()

	out := []models.TimeSlot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan slot: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Reserve is a single conditional update; of two concurrent callers only one
// sees a returned row.
func (r *slotRepo) Reserve(ctx context.Context, id uuid.UUID) (*models.TimeSlot, error) {
	query := `
		UPDATE time_slots
		SET is_booked = true
		WHERE id = $1 AND NOT is_booked AND NOT is_blocked
		RETURNING ` + slotColumns
	s, err := scanSlot(r.db.QueryRow(ctx, query, id))
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres: reserve slot: %w", err)
	}
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, apperr.SlotUnavailable(id.String())
}

func (r *slotRepo) Release(ctx context.Context, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx, `UPDATE time_slots SET is_booked = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: release slot: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("time slot", id.String())
	}
	return nil
}

func (r *slotRepo) SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) (*models.TimeSlot, error) {
	query := `UPDATE time_slots SET is_blocked = $2 WHERE id = $1 RETURNING ` + slotColumns
	s, err := scanSlot(r.db.QueryRow(ctx, query, id, blocked))
	if err != nil {
		return nil, wrap("set slot blocked", "time slot", id.String(), err)
	}
	return s, nil
}
