package pricing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/money"
	"github.com/goldenlife/careconnect/internal/observability/metrics"
	"github.com/goldenlife/careconnect/internal/storage"
	"github.com/goldenlife/careconnect/pkg/logging"
)

// QuoteRequest is the quotePrice input.
type QuoteRequest struct {
	ProviderID uuid.UUID        `json:"provider_id"`
	VisitType  models.VisitType `json:"visit_type"`
	PromoCode  string           `json:"promo_code,omitempty"`
}

// Service loads pricing inputs from storage and manages promo codes and
// pricing overrides.
type Service struct {
	uow      storage.UnitOfWork
	resolver *Resolver
	currency string
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
}

type ServiceConfig struct {
	UnitOfWork storage.UnitOfWork
	Now        func() time.Time
	Currency   string
	Metrics    *metrics.BookingMetrics
	Logger     *logging.Logger
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.UnitOfWork == nil {
		panic("pricing: unit of work required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &Service{
		uow:      cfg.UnitOfWork,
		resolver: NewResolver(cfg.Now),
		currency: cfg.Currency,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
}

// Quote prices a request without writing anything.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	q, err := s.QuoteWith(ctx, s.uow.Repos(), req)
	outcome := "ok"
	if err != nil {
		outcome = string(apperr.KindOf(err))
	}
	s.metrics.ObserveQuote(outcome)
	return q, err
}

// QuoteWith prices a request using the given repos, so booking can price
// inside its own transaction.
func (s *Service) QuoteWith(ctx context.Context, r storage.Repos, req QuoteRequest) (*Quote, error) {
	if req.ProviderID == uuid.Nil {
		return nil, apperr.Validation("provider_id is required")
	}
	provider, err := r.Providers.Get(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}
	override, err := r.Overrides.ActiveForProvider(ctx, provider.ID)
	if err != nil {
		return nil, err
	}
	code := NormalizeCode(req.PromoCode)
	var promo *models.PromoCode
	if code != "" {
		promo, err = r.Promos.GetByCode(ctx, code)
		if errors.Is(err, apperr.ErrNotFound) {
			promo, err = nil, nil
		}
		if err != nil {
			return nil, err
		}
	}
	q, err := s.resolver.Quote(ctx, Input{
		Provider:  provider,
		Override:  override,
		Promo:     promo,
		PromoCode: code,
		VisitType: req.VisitType,
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindPromoInvalid {
			s.logger.Info("promo code rejected", "code", code, "provider_id", provider.ID, "reason", apperr.ReasonOf(err))
		}
		return nil, err
	}
	q.Currency = s.currency
	return q, nil
}

// NormalizeCode upper-cases and trims a promo code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// PromoInput creates a promo code. Active defaults to true.
type PromoInput struct {
	Code                string              `json:"code"`
	Description         string              `json:"description"`
	DiscountType        models.DiscountType `json:"discount_type"`
	DiscountValue       decimal.Decimal     `json:"discount_value"`
	MaxUses             *int                `json:"max_uses"`
	ValidFrom           time.Time           `json:"valid_from"`
	ValidUntil          time.Time           `json:"valid_until"`
	Active              *bool               `json:"is_active"`
	ApplicableProviders []uuid.UUID         `json:"applicable_providers"`
	MinAmount           *decimal.Decimal    `json:"min_amount"`
}

// PromoPatch updates the fields that are set.
type PromoPatch struct {
	Description         *string              `json:"description"`
	DiscountType        *models.DiscountType `json:"discount_type"`
	DiscountValue       *decimal.Decimal     `json:"discount_value"`
	MaxUses             *int                 `json:"max_uses"`
	ValidFrom           *time.Time           `json:"valid_from"`
	ValidUntil          *time.Time           `json:"valid_until"`
	Active              *bool                `json:"is_active"`
	ApplicableProviders *[]uuid.UUID         `json:"applicable_providers"`
	MinAmount           *decimal.Decimal     `json:"min_amount"`
}

func (s *Service) CreatePromo(ctx context.Context, in PromoInput) (*models.PromoCode, error) {
	p := &models.PromoCode{
		Code:                NormalizeCode(in.Code),
		Description:         strings.TrimSpace(in.Description),
		DiscountType:        in.DiscountType,
		DiscountValue:       in.DiscountValue,
		MaxUses:             in.MaxUses,
		ValidFrom:           in.ValidFrom,
		ValidUntil:          in.ValidUntil,
		Active:              in.Active == nil || *in.Active,
		ApplicableProviders: in.ApplicableProviders,
		MinAmount:           in.MinAmount,
	}
	if err := validatePromo(p); err != nil {
		return nil, err
	}
	if err := s.uow.Repos().Promos.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("promo code created", "promo_id", p.ID, "code", p.Code)
	return p, nil
}

func (s *Service) UpdatePromo(ctx context.Context, id uuid.UUID, patch PromoPatch) (*models.PromoCode, error) {
	var out *models.PromoCode
	err := s.uow.Do(ctx, func(ctx context.Context, r storage.Repos) error {
		p, err := r.Promos.Get(ctx, id)
		if err != nil {
			return err
		}
		if patch.Description != nil {
			p.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.DiscountType != nil {
			p.DiscountType = *patch.DiscountType
		}
		if patch.DiscountValue != nil {
			p.DiscountValue = *patch.DiscountValue
		}
		if patch.MaxUses != nil {
			p.MaxUses = patch.MaxUses
		}
		if patch.ValidFrom != nil {
			p.ValidFrom = *patch.ValidFrom
		}
		if patch.ValidUntil != nil {
			p.ValidUntil = *patch.ValidUntil
		}
		if patch.Active != nil {
			p.Active = *patch.Active
		}
		if patch.ApplicableProviders != nil {
			p.ApplicableProviders = *patch.ApplicableProviders
		}
		if patch.MinAmount != nil {
			p.MinAmount = patch.MinAmount
		}
		if err := validatePromo(p); err != nil {
			return err
		}
		if p.MaxUses != nil && *p.MaxUses < p.UsedCount {
			return apperr.Validation("max_uses %d is below the %d redemptions already made", *p.MaxUses, p.UsedCount)
		}
		if err := r.Promos.Update(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

func (s *Service) ListPromos(ctx context.Context) ([]models.PromoCode, error) {
	return s.uow.Repos().Promos.List(ctx)
}

func (s *Service) DeletePromo(ctx context.Context, id uuid.UUID) error {
	if err := s.uow.Repos().Promos.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("promo code deleted", "promo_id", id)
	return nil
}

func validatePromo(p *models.PromoCode) error {
	if p.Code == "" {
		return apperr.Validation("code is required")
	}
	if !p.DiscountType.Valid() {
		return apperr.Validation("discount_type must be percentage or fixed")
	}
	if !p.DiscountValue.IsPositive() {
		return apperr.Validation("discount_value must be positive")
	}
	if p.DiscountType == models.DiscountPercentage && !money.ValidPercent(p.DiscountValue) {
		return apperr.Validation("percentage discount must be at most 100")
	}
	if p.ValidFrom.IsZero() || p.ValidUntil.IsZero() {
		return apperr.Validation("valid_from and valid_until are required")
	}
	if !p.ValidFrom.Before(p.ValidUntil) {
		return apperr.Validation("valid_from must be before valid_until")
	}
	if p.MaxUses != nil && *p.MaxUses < 1 {
		return apperr.Validation("max_uses must be at least 1")
	}
	if p.MinAmount != nil && p.MinAmount.IsNegative() {
		return apperr.Validation("min_amount must not be negative")
	}
	return nil
}

// OverrideInput creates a pricing override. Active defaults to true.
type OverrideInput struct {
	ProviderID         uuid.UUID        `json:"provider_id"`
	ConsultationFee    *decimal.Decimal `json:"consultation_fee"`
	HomeVisitFee       *decimal.Decimal `json:"home_visit_fee"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage"`
	Notes              string           `json:"notes"`
	Active             *bool            `json:"is_active"`
}

type OverridePatch struct {
	ConsultationFee    *decimal.Decimal `json:"consultation_fee"`
	HomeVisitFee       *decimal.Decimal `json:"home_visit_fee"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage"`
	Notes              *string          `json:"notes"`
	Active             *bool            `json:"is_active"`
}

// CreateOverride fails with a conflict when the provider already has an
// active override and the new one is active too.
func (s *Service) CreateOverride(ctx context.Context, in OverrideInput) (*models.PricingOverride, error) {
	o := &models.PricingOverride{
		ProviderID:         in.ProviderID,
		ConsultationFee:    in.ConsultationFee,
		HomeVisitFee:       in.HomeVisitFee,
		DiscountPercentage: in.DiscountPercentage,
		Notes:              strings.TrimSpace(in.Notes),
		Active:             in.Active == nil || *in.Active,
	}
	if err := validateOverride(o); err != nil {
		return nil, err
	}
	err := s.uow.Do(ctx, func(ctx context.Context, r storage.Repos) error {
		if _, err := r.Providers.Get(ctx, o.ProviderID); err != nil {
			return err
		}
		return r.Overrides.Create(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("pricing override created", "override_id", o.ID, "provider_id", o.ProviderID, "active", o.Active)
	return o, nil
}

func (s *Service) UpdateOverride(ctx context.Context, id uuid.UUID, patch OverridePatch) (*models.PricingOverride, error) {
	var out *models.PricingOverride
	err := s.uow.Do(ctx, func(ctx context.Context, r storage.Repos) error {
		o, err := r.Overrides.Get(ctx, id)
		if err != nil {
			return err
		}
		if patch.ConsultationFee != nil {
			o.ConsultationFee = patch.ConsultationFee
		}
		if patch.HomeVisitFee != nil {
			o.HomeVisitFee = patch.HomeVisitFee
		}
		if patch.DiscountPercentage != nil {
			o.DiscountPercentage = patch.DiscountPercentage
		}
		if patch.Notes != nil {
			o.Notes = strings.TrimSpace(*patch.Notes)
		}
		if patch.Active != nil {
			o.Active = *patch.Active
		}
		if err := validateOverride(o); err != nil {
			return err
		}
		if err := r.Overrides.Update(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	return out, err
}

func (s *Service) ListOverrides(ctx context.Context) ([]models.PricingOverride, error) {
	return s.uow.Repos().Overrides.List(ctx)
}

func (s *Service) DeleteOverride(ctx context.Context, id uuid.UUID) error {
	return s.uow.Repos().Overrides.Delete(ctx, id)
}

func validateOverride(o *models.PricingOverride) error {
	if o.ProviderID == uuid.Nil {
		return apperr.Validation("provider_id is required")
	}
	if o.ConsultationFee == nil && o.HomeVisitFee == nil && o.DiscountPercentage == nil {
		return apperr.Validation("override must set a fee or a discount percentage")
	}
	for _, fee := range []*decimal.Decimal{o.ConsultationFee, o.HomeVisitFee} {
		if fee != nil && fee.IsNegative() {
			return apperr.Validation("fees must not be negative")
		}
	}
	if o.DiscountPercentage != nil && !money.ValidPercent(*o.DiscountPercentage) {
		return apperr.Validation("discount_percentage must be between 0 and 100")
	}
	return nil
}
