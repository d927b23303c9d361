package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/models"
)

type slotRepo struct{ run runner }

// LockDay is a no-op: Do already holds the store lock.
func (r *slotRepo) LockDay(context.Context, uuid.UUID, string) error { return nil }

func (r *slotRepo) CreateBatch(_ context.Context, slots []models.TimeSlot) error {
	return r.run(func(st *state) error {
		for _, existing := range st.slots {
			for _, s := range slots {
				if existing.ProviderID == s.ProviderID && existing.Date == s.Date && existing.StartTime == s.StartTime {
					return apperr.InvalidWindow("slot %s %s already exists", s.Date, s.StartTime)
				}
			}
		}
		now := time.Now().UTC()
		for i := range slots {
			if slots[i].ID == uuid.Nil {
				slots[i].ID = uuid.New()
			}
			slots[i].Booked, slots[i].Blocked = false, false
			slots[i].CreatedAt = now
			st.slots[slots[i].ID] = slots[i]
		}
		return nil
	})
}

func (r *slotRepo) Get(_ context.Context, id uuid.UUID) (*models.TimeSlot, error) {
	var out models.TimeSlot
	err := r.run(func(st *state) error {
		s, ok := st.slots[id]
		if !ok {
			return apperr.NotFound("time slot", id.String())
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *slotRepo) ListByProviderDate(_ context.Context, providerID uuid.UUID, date string) ([]models.TimeSlot, error) {
	return r.filter(func(s models.TimeSlot) bool {
		return s.ProviderID == providerID && s.Date == date
	})
}

func (r *slotRepo) ListBookable(_ context.Context, providerID uuid.UUID, from, to string) ([]models.TimeSlot, error) {
	return r.filter(func(s models.TimeSlot) bool {
		return s.ProviderID == providerID && s.Date >= from && s.Date <= to && s.Bookable()
	})
}

func (r *slotRepo) filter(keep func(models.TimeSlot) bool) ([]models.TimeSlot, error) {
	out := []models.TimeSlot{}
	err := r.run(func(st *state) error {
		for _, s := range st.slots {
			if keep(s) {
				out = append(out, s)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, err
}

func (r *slotRepo) Reserve(_ context.Context, id uuid.UUID) (*models.TimeSlot, error) {
	var out models.TimeSlot
	err := r.run(func(st *state) error {
		s, ok := st.slots[id]
		if !ok {
			return apperr.NotFound("time slot", id.String())
		}
		if !s.Bookable() {
			return apperr.SlotUnavailable(id.String())
		}
		s.Booked = true
		st.slots[id] = s
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *slotRepo) Release(_ context.Context, id uuid.UUID) error {
	return r.run(func(st *state) error {
		s, ok := st.slots[id]
		if !ok {
			return apperr.NotFound("time slot", id.String())
		}
		s.Booked = false
		st.slots[id] = s
		return nil
	})
}

func (r *slotRepo) SetBlocked(_ context.Context, id uuid.UUID, blocked bool) (*models.TimeSlot, error) {
	var out models.TimeSlot
	err := r.run(func(st *state) error {
		s, ok := st.slots[id]
		if !ok {
			return apperr.NotFound("time slot", id.String())
		}
		s.Blocked = blocked
		st.slots[id] = s
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
