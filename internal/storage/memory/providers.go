package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/storage"
)

type providerRepo struct{ run runner }

// withCity fills the city from the owning user, as the SQL join does.
func withCity(st *state, p models.Provider) models.Provider {
	if u, ok := st.users[p.UserID]; ok {
		p.City = u.City
	}
	return p
}

func (r *providerRepo) Create(_ context.Context, p *models.Provider) error {
	return r.run(func(st *state) error {
		for _, existing := range st.providers {
			if existing.UserID == p.UserID {
				return apperr.Conflict("user %s already has a provider profile", p.UserID)
			}
		}
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if p.Timezone == "" {
			p.Timezone = "UTC"
		}
		if p.Certifications == nil {
			p.Certifications = []string{}
		}
		now := time.Now().UTC()
		p.CreatedAt, p.UpdatedAt = now, now
		st.providers[p.ID] = *p
		return nil
	})
}

func (r *providerRepo) Get(_ context.Context, id uuid.UUID) (*models.Provider, error) {
	var out models.Provider
	err := r.run(func(st *state) error {
		p, ok := st.providers[id]
		if !ok {
			return apperr.NotFound("provider", id.String())
		}
		out = withCity(st, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *providerRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*models.Provider, error) {
	var out *models.Provider
	err := r.run(func(st *state) error {
		for _, p := range st.providers {
			if p.UserID == userID {
				p = withCity(st, p)
				out = &p
				return nil
			}
		}
		return apperr.NotFound("provider for user", userID.String())
	})
	return out, err
}

func (r *providerRepo) Search(_ context.Context, f storage.ProviderFilter) ([]models.Provider, error) {
	out := []models.Provider{}
	err := r.run(func(st *state) error {
		for _, p := range st.providers {
			p = withCity(st, p)
			if f.Type != "" && p.Type != f.Type {
				continue
			}
			if f.City != "" && !strings.EqualFold(p.City, f.City) {
				continue
			}
			if f.Language != "" && !p.Languages.Contains(f.Language) {
				continue
			}
			if f.VerifiedOnly && !p.Verified {
				continue
			}
			if f.ActiveOnly && !p.Active {
				continue
			}
			if p.Rating.LessThan(f.MinRating) {
				continue
			}
			out = append(out, p)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Rating.Equal(out[j].Rating) {
			return out[i].Rating.GreaterThan(out[j].Rating)
		}
		if out[i].TotalReviews != out[j].TotalReviews {
			return out[i].TotalReviews > out[j].TotalReviews
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return page(out, f.Limit, f.Offset), err
}

func (r *providerRepo) Update(_ context.Context, p *models.Provider) error {
	return r.run(func(st *state) error {
		cur, ok := st.providers[p.ID]
		if !ok {
			return apperr.NotFound("provider", p.ID.String())
		}
		cur.Type = p.Type
		cur.Specialization = p.Specialization
		cur.Bio = p.Bio
		cur.YearsExperience = p.YearsExperience
		cur.Education = p.Education
		cur.Certifications = p.Certifications
		cur.Languages = p.Languages
		cur.ConsultationFee = p.ConsultationFee
		cur.HomeVisitFee = p.HomeVisitFee
		cur.AvailableDays = p.AvailableDays
		cur.WorkingHoursStart = p.WorkingHoursStart
		cur.WorkingHoursEnd = p.WorkingHoursEnd
		cur.Timezone = p.Timezone
		cur.UpdatedAt = time.Now().UTC()
		st.providers[p.ID] = cur
		p.UpdatedAt = cur.UpdatedAt
		return nil
	})
}

func (r *providerRepo) SetVerified(_ context.Context, id uuid.UUID, verified bool) error {
	return r.mutate(id, func(p *models.Provider) { p.Verified = verified })
}

func (r *providerRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	return r.mutate(id, func(p *models.Provider) { p.Active = active })
}

func (r *providerRepo) SetRating(_ context.Context, id uuid.UUID, rating decimal.Decimal, total int) error {
	return r.mutate(id, func(p *models.Provider) {
		p.Rating = rating
		p.TotalReviews = total
	})
}

func (r *providerRepo) mutate(id uuid.UUID, fn func(*models.Provider)) error {
	return r.run(func(st *state) error {
		p, ok := st.providers[id]
		if !ok {
			return apperr.NotFound("provider", id.String())
		}
		fn(&p)
		p.UpdatedAt = time.Now().UTC()
		st.providers[id] = p
		return nil
	})
}

type offeringRepo struct{ run runner }

func (r *offeringRepo) Create(_ context.Context, o *models.Offering) error {
	return r.run(func(st *state) error {
		if o.ID == uuid.Nil {
			o.ID = uuid.New()
		}
		o.CreatedAt = time.Now().UTC()
		st.offerings[o.ID] = *o
		return nil
	})
}

func (r *offeringRepo) Get(_ context.Context, id uuid.UUID) (*models.Offering, error) {
	var out models.Offering
	err := r.run(func(st *state) error {
		o, ok := st.offerings[id]
		if !ok {
			return apperr.NotFound("service", id.String())
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *offeringRepo) ListByProvider(_ context.Context, providerID uuid.UUID, activeOnly bool) ([]models.Offering, error) {
	out := []models.Offering{}
	err := r.run(func(st *state) error {
		for _, o := range st.offerings {
			if o.ProviderID != providerID || (activeOnly && !o.Active) {
				continue
			}
			out = append(out, o)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (r *offeringRepo) Update(_ context.Context, o *models.Offering) error {
	return r.run(func(st *state) error {
		cur, ok := st.offerings[o.ID]
		if !ok {
			return apperr.NotFound("service", o.ID.String())
		}
		cur.Name = o.Name
		cur.Description = o.Description
		cur.DurationMinutes = o.DurationMinutes
		cur.Price = o.Price
		cur.Active = o.Active
		st.offerings[o.ID] = cur
		return nil
	})
}
