package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/models"
)

type recordRepo struct{ run runner }

func (r *recordRepo) Create(_ context.Context, rec *models.HealthRecord) error {
	return r.run(func(st *state) error {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		now := time.Now().UTC()
		rec.CreatedAt, rec.UpdatedAt = now, now
		st.records[rec.ID] = *rec
		return nil
	})
}

func (r *recordRepo) Get(_ context.Context, id uuid.UUID) (*models.HealthRecord, error) {
	var out models.HealthRecord
	err := r.run(func(st *state) error {
		rec, ok := st.records[id]
		if !ok {
			return apperr.NotFound("health record", id.String())
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *recordRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]models.HealthRecord, error) {
	out := []models.HealthRecord{}
	err := r.run(func(st *state) error {
		for _, rec := range st.records {
			if rec.PatientID == patientID {
				out = append(out, rec)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), err
}

func (r *recordRepo) Delete(_ context.Context, id uuid.UUID) error {
	return r.run(func(st *state) error {
		if _, ok := st.records[id]; !ok {
			return apperr.NotFound("health record", id.String())
		}
		delete(st.records, id)
		return nil
	})
}
