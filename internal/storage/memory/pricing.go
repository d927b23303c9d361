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

type promoRepo struct{ run runner }

func (r *promoRepo) Create(_ context.Context, p *models.PromoCode) error {
	return r.run(func(st *state) error {
		for _, existing := range st.promos {
			if existing.Code == p.Code {
				return apperr.Conflict("promo code %s already exists", p.Code)
			}
		}
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if p.ApplicableProviders == nil {
			p.ApplicableProviders = []uuid.UUID{}
		}
		p.UsedCount = 0
		p.CreatedAt = time.Now().UTC()
		st.promos[p.ID] = *p
		return nil
	})
}

func (r *promoRepo) Get(_ context.Context, id uuid.UUID) (*models.PromoCode, error) {
	var out models.PromoCode
	err := r.run(func(st *state) error {
		p, ok := st.promos[id]
		if !ok {
			return apperr.NotFound("promo code", id.String())
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *promoRepo) GetByCode(_ context.Context, code string) (*models.PromoCode, error) {
	var out *models.PromoCode
	err := r.run(func(st *state) error {
		for _, p := range st.promos {
			if p.Code == code {
				out = &p
				return nil
			}
		}
		return apperr.NotFound("promo code", code)
	})
	return out, err
}

func (r *promoRepo) List(_ context.Context) ([]models.PromoCode, error) {
	out := []models.PromoCode{}
	err := r.run(func(st *state) error {
		for _, p := range st.promos {
			out = append(out, p)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (r *promoRepo) Update(_ context.Context, p *models.PromoCode) error {
	return r.run(func(st *state) error {
		cur, ok := st.promos[p.ID]
		if !ok {
			return apperr.NotFound("promo code", p.ID.String())
		}
		cur.Description = p.Description
		cur.DiscountType = p.DiscountType
		cur.DiscountValue = p.DiscountValue
		cur.MaxUses = p.MaxUses
		cur.ValidFrom = p.ValidFrom
		cur.ValidUntil = p.ValidUntil
		cur.Active = p.Active
		cur.ApplicableProviders = p.ApplicableProviders
		cur.MinAmount = p.MinAmount
		st.promos[p.ID] = cur
		p.UsedCount = cur.UsedCount
		return nil
	})
}

func (r *promoRepo) Delete(_ context.Context, id uuid.UUID) error {
	return r.run(func(st *state) error {
		if _, ok := st.promos[id]; !ok {
			return apperr.NotFound("promo code", id.String())
		}
		delete(st.promos, id)
		return nil
	})
}

func (r *promoRepo) Redeem(_ context.Context, id uuid.UUID) error {
	return r.run(func(st *state) error {
		p, ok := st.promos[id]
		if !ok {
			return apperr.NotFound("promo code", id.String())
		}
		if !p.Active || !p.HasRemainingUses() {
			return storage.ErrPromoExhausted
		}
		p.UsedCount++
		st.promos[id] = p
		return nil
	})
}

type overrideRepo struct{ run runner }

func activeConflict(st *state, o *models.PricingOverride) error {
	if !o.Active {
		return nil
	}
	for _, existing := range st.overrides {
		if existing.ID != o.ID && existing.ProviderID == o.ProviderID && existing.Active {
			return apperr.Conflict("provider %s already has an active pricing override", o.ProviderID)
		}
	}
	return nil
}

func (r *overrideRepo) Create(_ context.Context, o *models.PricingOverride) error {
	return r.run(func(st *state) error {
		if o.ID == uuid.Nil {
			o.ID = uuid.New()
		}
		if err := activeConflict(st, o); err != nil {
			return err
		}
		now := time.Now().UTC()
		o.CreatedAt, o.UpdatedAt = now, now
		st.overrides[o.ID] = *o
		return nil
	})
}

func (r *overrideRepo) Get(_ context.Context, id uuid.UUID) (*models.PricingOverride, error) {
	var out models.PricingOverride
	err := r.run(func(st *state) error {
		o, ok := st.overrides[id]
		if !ok {
			return apperr.NotFound("pricing override", id.String())
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *overrideRepo) List(_ context.Context) ([]models.PricingOverride, error) {
	out := []models.PricingOverride{}
	err := r.run(func(st *state) error {
		for _, o := range st.overrides {
			out = append(out, o)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (r *overrideRepo) Update(_ context.Context, o *models.PricingOverride) error {
	return r.run(func(st *state) error {
		cur, ok := st.overrides[o.ID]
		if !ok {
			return apperr.NotFound("pricing override", o.ID.String())
		}
		if err := activeConflict(st, &models.PricingOverride{ID: o.ID, ProviderID: cur.ProviderID, Active: o.Active}); err != nil {
			return err
		}
		cur.ConsultationFee = o.ConsultationFee
		cur.HomeVisitFee = o.HomeVisitFee
		cur.DiscountPercentage = o.DiscountPercentage
		cur.Notes = o.Notes
		cur.Active = o.Active
		cur.UpdatedAt = time.Now().UTC()
		st.overrides[o.ID] = cur
		o.UpdatedAt = cur.UpdatedAt
		return nil
	})
}

func (r *overrideRepo) Delete(_ context.Context, id uuid.UUID) error {
	return r.run(func(st *state) error {
		if _, ok := st.overrides[id]; !ok {
			return apperr.NotFound("pricing override", id.String())
		}
		delete(st.overrides, id)
		return nil
	})
}

func (r *overrideRepo) ActiveForProvider(_ context.Context, providerID uuid.UUID) (*models.PricingOverride, error) {
	var out *models.PricingOverride
	err := r.run(func(st *state) error {
		for _, o := range st.overrides {
			if o.ProviderID == providerID && o.Active {
				out = &o
				return nil
			}
		}
		return nil
	})
	return out, err
}
