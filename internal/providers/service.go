// Package providers serves provider search and profiles, provider
// self-service edits and admin provider management.
package providers

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/cache"
	"github.com/goldenlife/careconnect/internal/identity"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/storage"
	"github.com/goldenlife/careconnect/internal/users"
	"github.com/goldenlife/careconnect/pkg/logging"
)

// Profile is the public view of a provider.
type Profile struct {
	Provider  models.Provider   `json:"provider"`
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Offerings []models.Offering `json:"services"`
}

// ProfilePatch edits the fields that are set.
type ProfilePatch struct {
	Specialization    *string          `json:"specialization"`
	Bio               *string          `json:"bio"`
	YearsExperience   *int             `json:"years_experience"`
	Education         *string          `json:"education"`
	Certifications    *[]string        `json:"certifications"`
	Languages         *[]string        `json:"languages"`
	ConsultationFee   *decimal.Decimal `json:"consultation_fee"`
	HomeVisitFee      *decimal.Decimal `json:"home_visit_fee"`
	AvailableDays     *[]string        `json:"available_days"`
	WorkingHoursStart *string          `json:"working_hours_start"`
	WorkingHoursEnd   *string          `json:"working_hours_end"`
	Timezone          *string          `json:"timezone"`
}

// AdminCreateInput creates the provider's user account and profile together.
type AdminCreateInput struct {
	users.RegisterInput
	ProfilePatch
	Type models.ProviderType `json:"type"`
}

type OfferingInput struct {
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	DurationMinutes int             `json:"duration_minutes"`
	Price           decimal.Decimal `json:"price"`
	Active          *bool           `json:"is_active"`
}

type OfferingPatch struct {
	Name            *string          `json:"name"`
	Description     *string          `json:"description"`
	DurationMinutes *int             `json:"duration_minutes"`
	Price           *decimal.Decimal `json:"price"`
	Active          *bool            `json:"is_active"`
}

type Service struct {
	uow    storage.UnitOfWork
	cache  *cache.Cache
	logger *logging.Logger
}

func NewService(uow storage.UnitOfWork, c *cache.Cache, logger *logging.Logger) *Service {
	if uow == nil {
		panic("providers: unit of work required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{uow: uow, cache: c, logger: logger}
}

// Search lists providers. Public callers only ever see active providers.
func (s *Service) Search(ctx context.Context, f storage.ProviderFilter) ([]models.Provider, error) {
	if f.Type != "" && !f.Type.Valid() {
		return nil, apperr.Validation("invalid provider type %q", f.Type)
	}
	if f.Language != "" && !f.Language.Valid() {
		return nil, apperr.Validation("unsupported language %q", f.Language)
	}
	if f.MinRating.IsNegative() || f.MinRating.GreaterThan(decimal.NewFromInt(5)) {
		return nil, apperr.Validation("min_rating must be between 0 and 5")
	}
	f.ActiveOnly = true
	return s.uow.Repos().Providers.Search(ctx, f)
}

// Profile returns the provider with its active offerings, read through the
// cache.
func (s *Service) Profile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	var cached Profile
	if s.cache.GetProvider(ctx, id, &cached) {
		return &cached, nil
	}
	repos := s.uow.Repos()
	p, err := repos.Providers.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	u, err := repos.Users.Get(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	offerings, err := repos.Offerings.ListByProvider(ctx, id, true)
	if err != nil {
		return nil, err
	}
	out := &Profile{Provider: *p, FirstName: u.FirstName, LastName: u.LastName, Offerings: offerings}
	s.cache.SetProvider(ctx, id, out)
	return out, nil
}

// ForUser resolves the provider profile owned by a user account.
func (s *Service) ForUser(ctx context.Context, userID uuid.UUID) (*models.Provider, error) {
	return s.uow.Repos().Providers.GetByUserID(ctx, userID)
}

// UpdateOwn applies a provider's edits to their own profile.
func (s *Service) UpdateOwn(ctx context.Context, actor identity.Actor, patch ProfilePatch) (*models.Provider, error) {
	if actor.Role != models.RoleProvider || actor.ProviderID == uuid.Nil {
		return nil, apperr.Forbidden("provider account required")
	}
	var out *models.Provider
	err := s.uow.Do(ctx, func(ctx context.Context, r storage.Repos) error {
		p, err := r.Providers.Get(ctx, actor.ProviderID)
		if err != nil {
			return err
		}
		if err := applyPatch(p, patch); err != nil {
			return err
		}
		if err := r.Providers.Update(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, out.ID)
	s.logger.Info("provider profile updated", "provider_id", out.ID)
	return out, nil
}

func (s *Service) AddOffering(ctx context.Context, actor identity.Actor, in OfferingInput) (*models.Offering, error) {
	if actor.Role != models.RoleProvider || actor.ProviderID == uuid.Nil {
		return nil, apperr.Forbidden("provider account required")
	}
	o := &models.Offering{
		ProviderID:      actor.ProviderID,
		Name:            strings.TrimSpace(in.Name),
		Description:     strings.TrimSpace(in.Description),
		DurationMinutes: in.DurationMinutes,
		Price:           in.Price,
		Active:          in.Active == nil || *in.Active,
	}
	if err := validateOffering(o); err != nil {
		return nil, err
	}
	if err := s.uow.Repos().Offerings.Create(ctx, o); err != nil {
		return nil, err
	}
	s.invalidate(ctx, o.ProviderID)
	return o, nil
}

func (s *Service) UpdateOffering(ctx context.Context, actor identity.Actor, id uuid.UUID, patch OfferingPatch) (*models.Offering, error) {
	var out *models.Offering
	err := s.uow.Do(ctx, func(ctx context.Context, r storage.Repos) error {
		o, err := r.Offerings.Get(ctx, id)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && !actor.OwnsProvider(o.ProviderID) {
			return apperr.Forbidden("service %s belongs to another provider", id)
		}
		if patch.Name != nil {
			o.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Description != nil {
			o.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.DurationMinutes != nil {
			o.DurationMinutes = *patch.DurationMinutes
		}
		if patch.Price != nil {
			o.Price = *patch.Price
		}
		if patch.Active != nil {
			o.Active = *patch.Active
		}
		if err := validateOffering(o); err != nil {
			return err
		}
		out = o
		return r.Offerings.Update(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, out.ProviderID)
	return out, nil
}

// AdminCreate registers a provider user and their profile in one transaction.
func (s *Service) AdminCreate(ctx context.Context, in AdminCreateInput) (*Profile, error) {
	u, err := users.NewUser(in.RegisterInput, models.RoleProvider)
	if err != nil {
		return nil, err
	}
	p := &models.Provider{
		UserID:            uuid.Nil,
		Type:              in.Type,
		Active:            true,
		Rating:            decimal.Zero,
		WorkingHoursStart: "09:00",
		WorkingHoursEnd:   "17:00",
		Timezone:          "UTC",
		Certifications:    []string{},
		Languages:         models.Languages{},
		AvailableDays:     models.Weekdays{},
	}
	if err := applyPatch(p, in.ProfilePatch); err != nil {
		return nil, err
	}
	err = s.uow.Do(ctx, func(ctx context.Context, r storage.Repos) error {
		if err := r.Users.Create(ctx, u); err != nil {
			return err
		}
		p.UserID = u.ID
		return r.Providers.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	p.City = u.City
	s.logger.Info("provider created", "provider_id", p.ID, "user_id", u.ID, "type", p.Type)
	return &Profile{Provider: *p, FirstName: u.FirstName, LastName: u.LastName, Offerings: []models.Offering{}}, nil
}

func (s *Service) SetVerified(ctx context.Context, id uuid.UUID, verified bool) (*models.Provider, error) {
	repos := s.uow.Repos()
	if err := repos.Providers.SetVerified(ctx, id, verified); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	s.logger.Info("provider verification changed", "provider_id", id, "verified", verified)
	return repos.Providers.Get(ctx, id)
}

func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Provider, error) {
	repos := s.uow.Repos()
	if err := repos.Providers.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	s.logger.Info("provider activation changed", "provider_id", id, "active", active)
	return repos.Providers.Get(ctx, id)
}

func (s *Service) invalidate(ctx context.Context, providerID uuid.UUID) {
	s.cache.InvalidateProvider(ctx, providerID)
	s.cache.InvalidateAvailability(ctx, providerID)
}

func applyPatch(p *models.Provider, patch ProfilePatch) error {
	if patch.Specialization != nil {
		p.Specialization = strings.TrimSpace(*patch.Specialization)
	}
	if patch.Bio != nil {
		p.Bio = strings.TrimSpace(*patch.Bio)
	}
	if patch.YearsExperience != nil {
		if *patch.YearsExperience < 0 {
			return apperr.Validation("years_experience must not be negative")
		}
		p.YearsExperience = *patch.YearsExperience
	}
	if patch.Education != nil {
		p.Education = strings.TrimSpace(*patch.Education)
	}
	if patch.Certifications != nil {
		certs := make([]string, 0, len(*patch.Certifications))
		for _, c := range *patch.Certifications {
			if c = strings.TrimSpace(c); c != "" {
				certs = append(certs, c)
			}
		}
		p.Certifications = certs
	}
	if patch.Languages != nil {
		langs, err := models.ParseLanguages(*patch.Languages)
		if err != nil {
			return apperr.Validation("%v", err)
		}
		p.Languages = langs
	}
	if patch.AvailableDays != nil {
		days, err := models.ParseWeekdays(*patch.AvailableDays)
		if err != nil {
			return apperr.Validation("%v", err)
		}
		p.AvailableDays = days
	}
	if patch.ConsultationFee != nil {
		p.ConsultationFee = patch.ConsultationFee
	}
	if patch.HomeVisitFee != nil {
		p.HomeVisitFee = patch.HomeVisitFee
	}
	if patch.WorkingHoursStart != nil {
		p.WorkingHoursStart = strings.TrimSpace(*patch.WorkingHoursStart)
	}
	if patch.WorkingHoursEnd != nil {
		p.WorkingHoursEnd = strings.TrimSpace(*patch.WorkingHoursEnd)
	}
	if patch.Timezone != nil {
		p.Timezone = strings.TrimSpace(*patch.Timezone)
	}
	return validateProvider(p)
}

func validateProvider(p *models.Provider) error {
	if !p.Type.Valid() {
		return apperr.Validation("invalid provider type %q", p.Type)
	}
	start, err := models.ParseClock(p.WorkingHoursStart)
	if err != nil {
		return apperr.Validation("working_hours_start: %v", err)
	}
	end, err := models.ParseClock(p.WorkingHoursEnd)
	if err != nil {
		return apperr.Validation("working_hours_end: %v", err)
	}
	if start >= end {
		return apperr.Validation("working hours must start before they end")
	}
	for _, fee := range []*decimal.Decimal{p.ConsultationFee, p.HomeVisitFee} {
		if fee != nil && fee.IsNegative() {
			return apperr.Validation("fees must not be negative")
		}
	}
	if p.Timezone != "" {
		if _, err := time.LoadLocation(p.Timezone); err != nil {
			return apperr.Validation("unknown timezone %q", p.Timezone)
		}
	}
	return nil
}

func validateOffering(o *models.Offering) error {
	if o.Name == "" {
		return apperr.Validation("service name is required")
	}
	if o.DurationMinutes <= 0 {
		return apperr.Validation("duration_minutes must be positive")
	}
	if o.Price.IsNegative() {
		return apperr.Validation("price must not be negative")
	}
	return nil
}
