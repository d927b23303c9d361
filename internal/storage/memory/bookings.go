package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/storage"
)

type appointmentRepo struct{ run runner }

func (r *appointmentRepo) Create(_ context.Context, a *models.Appointment) error {
	return r.run(func(st *state) error {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		now := time.Now().UTC()
		a.CreatedAt, a.UpdatedAt = now, now
		st.appointments[a.ID] = *a
		return nil
	})
}

func (r *appointmentRepo) Get(_ context.Context, id uuid.UUID) (*models.Appointment, error) {
	var out models.Appointment
	err := r.run(func(st *state) error {
		a, ok := st.appointments[id]
		if !ok {
			return apperr.NotFound("appointment", id.String())
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *appointmentRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	return r.Get(ctx, id)
}

func (r *appointmentRepo) List(_ context.Context, f storage.AppointmentFilter) ([]models.Appointment, error) {
	out := []models.Appointment{}
	err := r.run(func(st *state) error {
		for _, a := range st.appointments {
			if f.PatientID != uuid.Nil && a.PatientID != f.PatientID {
				continue
			}
			if f.ProviderID != uuid.Nil && a.ProviderID != f.ProviderID {
				continue
			}
			if f.Status != "" && a.Status != f.Status {
				continue
			}
			if f.FromDate != "" && a.Date < f.FromDate {
				continue
			}
			if f.ToDate != "" && a.Date > f.ToDate {
				continue
			}
			out = append(out, a)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartTime < out[j].StartTime
	})
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *appointmentRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to models.AppointmentStatus) (*models.Appointment, error) {
	var out models.Appointment
	err := r.run(func(st *state) error {
		a, ok := st.appointments[id]
		if !ok {
			return apperr.NotFound("appointment", id.String())
		}
		if a.Status != from {
			return storage.ErrStaleStatus
		}
		a.Status = to
		a.UpdatedAt = time.Now().UTC()
		st.appointments[id] = a
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type paymentRepo struct{ run runner }

func (r *paymentRepo) Create(_ context.Context, p *models.Payment) error {
	return r.run(func(st *state) error {
		if p.Status != models.PaymentFailed {
			for _, existing := range st.payments {
				if existing.AppointmentID == p.AppointmentID && existing.Status != models.PaymentFailed {
					return duplicatePayment(p.AppointmentID)
				}
			}
		}
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		now := time.Now().UTC()
		p.CreatedAt, p.UpdatedAt = now, now
		st.payments[p.ID] = *p
		return nil
	})
}

func duplicatePayment(appointmentID uuid.UUID) error {
	return apperr.Conflict("appointment %s already has a payment", appointmentID)
}

func (r *paymentRepo) Get(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	var out models.Payment
	err := r.run(func(st *state) error {
		p, ok := st.payments[id]
		if !ok {
			return apperr.NotFound("payment", id.String())
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *paymentRepo) ActiveForAppointment(_ context.Context, appointmentID uuid.UUID) (*models.Payment, error) {
	var out *models.Payment
	err := r.run(func(st *state) error {
		for _, p := range st.payments {
			if p.AppointmentID != appointmentID || p.Status == models.PaymentFailed {
				continue
			}
			if out == nil || p.CreatedAt.After(out.CreatedAt) {
				out = &p
			}
		}
		return nil
	})
	return out, err
}

func (r *paymentRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to models.PaymentStatus) (*models.Payment, error) {
	var out models.Payment
	err := r.run(func(st *state) error {
		p, ok := st.payments[id]
		if !ok {
			return apperr.NotFound("payment", id.String())
		}
		if p.Status != from {
			return storage.ErrStaleStatus
		}
		p.Status = to
		p.UpdatedAt = time.Now().UTC()
		st.payments[id] = p
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *paymentRepo) MoveToAppointment(_ context.Context, id, appointmentID uuid.UUID) error {
	return r.run(func(st *state) error {
		p, ok := st.payments[id]
		if !ok {
			return apperr.NotFound("payment", id.String())
		}
		p.AppointmentID = appointmentID
		p.UpdatedAt = time.Now().UTC()
		st.payments[id] = p
		return nil
	})
}
