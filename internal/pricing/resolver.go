// Package pricing resolves the chargeable amount for a booking from the
// provider's fees, an admin pricing override and an optional promo code.
package pricing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/money"
)

var resolverTracer = otel.Tracer("careconnect.internal.pricing.resolver")

// Input is everything the resolver reads. PromoCode is the code text the
// caller supplied; Promo is the stored code it resolved to, nil when unknown.
type Input struct {
	Provider  *models.Provider
	Override  *models.PricingOverride
	Promo     *models.PromoCode
	PromoCode string
	VisitType models.VisitType
}

// Quote is a priced booking request. Total is already rounded.
type Quote struct {
	ProviderID       uuid.UUID        `json:"provider_id"`
	VisitType        models.VisitType `json:"visit_type"`
	BaseFee          decimal.Decimal  `json:"base_fee"`
	OverrideID       *uuid.UUID       `json:"override_id,omitempty"`
	OverrideDiscount *decimal.Decimal `json:"override_discount_percentage,omitempty"`
	Subtotal         decimal.Decimal  `json:"subtotal"`
	PromoCode        string           `json:"promo_code,omitempty"`
	PromoCodeID      *uuid.UUID       `json:"promo_code_id,omitempty"`
	PromoDiscount    decimal.Decimal  `json:"promo_discount"`
	Total            decimal.Decimal  `json:"total"`
	Currency         string           `json:"currency,omitempty"`
}

// Resolver is a pure function of its Input and the injected clock.
type Resolver struct {
	now    func() time.Time
	tracer trace.Tracer
}

func NewResolver(now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{now: now, tracer: resolverTracer}
}

func (r *Resolver) Quote(ctx context.Context, in Input) (*Quote, error) {
	_, span := r.tracer.Start(ctx, "pricing.quote")
	defer span.End()

	q, err := r.resolve(in)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("provider_id", q.ProviderID.String()),
		attribute.String("visit_type", string(q.VisitType)),
		attribute.String("total", q.Total.StringFixed(money.MinorUnits)),
	)
	return q, nil
}

func (r *Resolver) resolve(in Input) (*Quote, error) {
	if in.Provider == nil {
		return nil, apperr.Validation("provider is required")
	}
	if !in.VisitType.Valid() {
		return nil, apperr.Validation("invalid visit type %q", in.VisitType)
	}

	base := baseFee(in.Provider, in.VisitType)
	if base == nil {
		return nil, apperr.FeeNotConfigured(in.Provider.ID.String(), string(in.VisitType))
	}
	q := &Quote{
		ProviderID: in.Provider.ID,
		VisitType:  in.VisitType,
		BaseFee:    *base,
	}

	amount := *base
	if o := in.Override; o != nil && o.Active && o.ProviderID == in.Provider.ID {
		id := o.ID
		q.OverrideID = &id
		if fee := overrideFee(o, in.VisitType); fee != nil {
			amount = *fee
		}
		if o.DiscountPercentage != nil {
			pct := *o.DiscountPercentage
			q.OverrideDiscount = &pct
			amount = money.ApplyPercentOff(amount, pct)
		}
	}
	q.Subtotal = money.Round(amount)

	code := strings.ToUpper(strings.TrimSpace(in.PromoCode))
	if code == "" && in.Promo != nil {
		code = in.Promo.Code
	}
	if code != "" {
		if err := r.validatePromo(in.Promo, code, in.Provider.ID, amount); err != nil {
			return nil, err
		}
		discounted := applyPromo(in.Promo, amount)
		q.PromoCode = in.Promo.Code
		id := in.Promo.ID
		q.PromoCodeID = &id
		q.PromoDiscount = money.Round(amount.Sub(discounted))
		amount = discounted
	}

	q.Total = money.Round(amount)
	return q, nil
}

// validatePromo checks the code in a fixed order so the reported reason is
// stable when several checks fail at once.
func (r *Resolver) validatePromo(p *models.PromoCode, code string, providerID uuid.UUID, amount decimal.Decimal) error {
	if p == nil {
		return apperr.PromoInvalid(apperr.ReasonUnknown, code)
	}
	if !p.Active {
		return apperr.PromoInvalid(apperr.ReasonInactive, code)
	}
	now := r.now()
	if now.Before(p.ValidFrom) {
		return apperr.PromoInvalid(apperr.ReasonNotStarted, code)
	}
	if now.After(p.ValidUntil) {
		return apperr.PromoInvalid(apperr.ReasonExpired, code)
	}
	if !p.HasRemainingUses() {
		return apperr.PromoInvalid(apperr.ReasonExhausted, code)
	}
	if !p.AppliesTo(providerID) {
		return apperr.PromoInvalid(apperr.ReasonNotApplicable, code)
	}
	if p.MinAmount != nil && amount.LessThan(*p.MinAmount) {
		return apperr.PromoInvalid(apperr.ReasonBelowMinimum, code)
	}
	return nil
}

func applyPromo(p *models.PromoCode, amount decimal.Decimal) decimal.Decimal {
	switch p.DiscountType {
	case models.DiscountPercentage:
		return money.ApplyPercentOff(amount, p.DiscountValue)
	default:
		return money.SubtractFloor(amount, p.DiscountValue)
	}
}

func baseFee(p *models.Provider, visit models.VisitType) *decimal.Decimal {
	if visit == models.VisitHome {
		return p.HomeVisitFee
	}
	return p.ConsultationFee
}

func overrideFee(o *models.PricingOverride, visit models.VisitType) *decimal.Decimal {
	if visit == models.VisitHome {
		return o.HomeVisitFee
	}
	return o.ConsultationFee
}
