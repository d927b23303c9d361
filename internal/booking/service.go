// Package booking runs the appointment lifecycle: booking a slot at a
// resolved price and moving appointments through their status table.
package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/cache"
	"github.com/goldenlife/careconnect/internal/events"
	"github.com/goldenlife/careconnect/internal/identity"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/observability/metrics"
	"github.com/goldenlife/careconnect/internal/pricing"
	"github.com/goldenlife/careconnect/internal/slots"
	"github.com/goldenlife/careconnect/internal/storage"
	"github.com/goldenlife/careconnect/pkg/logging"
)

// BookRequest is the bookAppointment input. PatientID comes from the caller's
// identity, never from the request body.
type BookRequest struct {
	PatientID      uuid.UUID        `json:"-"`
	ProviderID     uuid.UUID        `json:"provider_id"`
	SlotID         uuid.UUID        `json:"time_slot_id"`
	OfferingID     *uuid.UUID       `json:"service_id,omitempty"`
	VisitType      models.VisitType `json:"visit_type"`
	PromoCode      string           `json:"promo_code,omitempty"`
	Notes          string           `json:"notes,omitempty"`
	PatientAddress string           `json:"patient_address,omitempty"`
}

// TransitionRequest moves an appointment to To. NewSlotID is required when
// rescheduling.
type TransitionRequest struct {
	To        models.AppointmentStatus `json:"status"`
	NewSlotID *uuid.UUID               `json:"new_time_slot_id,omitempty"`
}

// TransitionResult carries the updated appointment and, for a reschedule,
// the pending appointment that replaces it.
type TransitionResult struct {
	Appointment *models.Appointment `json:"appointment"`
	Replacement *models.Appointment `json:"replacement,omitempty"`
}

// Booking is a created appointment with the quote it was priced at.
type Booking struct {
	Appointment *models.Appointment `json:"appointment"`
	Quote       *pricing.Quote      `json:"quote"`
}

type Service struct {
	uow      storage.UnitOfWork
	pricing  *pricing.Service
	cache    *cache.Cache
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
	tracer   trace.Tracer
	now      func() time.Time
	currency string
}

type Config struct {
	UnitOfWork storage.UnitOfWork
	Pricing    *pricing.Service
	Cache      *cache.Cache
	Metrics    *metrics.BookingMetrics
	Logger     *logging.Logger
	Now        func() time.Time
	Currency   string
}

func NewService(cfg Config) *Service {
	if cfg.UnitOfWork == nil {
		panic("booking: unit of work required")
	}
	if cfg.Pricing == nil {
		panic("booking: pricing service required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &Service{
		uow:      cfg.UnitOfWork,
		pricing:  cfg.Pricing,
		cache:    cfg.Cache,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		tracer:   otel.Tracer("careconnect.internal.booking"),
		now:      cfg.Now,
		currency: cfg.Currency,
	}
}

// Book reserves the slot, prices the request, redeems the promo code and
// records a pending appointment in one transaction. On any failure nothing
// is kept.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Booking, error) {
	ctx, span := s.tracer.Start(ctx, "booking.book")
	defer span.End()
	started := time.Now()

	out, err := s.book(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = string(apperr.KindOf(err))
		span.RecordError(err)
		s.logger.Warn("booking failed", "patient_id", req.PatientID, "provider_id", req.ProviderID,
			"slot_id", req.SlotID, "error", err)
	}
	s.metrics.ObserveBooking(outcome, time.Since(started).Seconds())
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("appointment_id", out.Appointment.ID.String()))
	s.cache.InvalidateAvailability(ctx, req.ProviderID)
	s.logger.Info("appointment booked", "appointment_id", out.Appointment.ID, "patient_id", req.PatientID,
		"provider_id", req.ProviderID, "slot_id", req.SlotID, "total", out.Quote.Total.StringFixed(2),
		"promo_code", out.Quote.PromoCode)
	return out, nil
}

func (s *Service) book(ctx context.Context, req BookRequest) (*Booking, error) {
	if req.PatientID == uuid.Nil {
		return nil, apperr.Validation("patient is required")
	}
	if req.ProviderID == uuid.Nil || req.SlotID == uuid.Nil {
		return nil, apperr.Validation("provider_id and time_slot_id are required")
	}
	if !req.VisitType.Valid() {
		return nil, apperr.Validation("invalid visit type %q", req.VisitType)
	}
	req.PatientAddress = strings.TrimSpace(req.PatientAddress)
	if req.VisitType == models.VisitHome && req.PatientAddress == "" {
		return nil, apperr.Validation("home visits require a patient address")
	}

	var out Booking
	err := s.uow.Do(ctx, func(ctx context.Context, r storage.Repos) error {
		if _, err := r.Users.Get(ctx, req.PatientID); err != nil {
			return err
		}
		provider, err := r.Providers.Get(ctx, req.ProviderID)
		if err != nil {
			return err
		}
		if !provider.Active {
			return apperr.Validation("provider %s is not accepting bookings", provider.ID)
		}
		slot, err := r.Slots.Get(ctx, req.SlotID)
		if err != nil {
			return err
		}
		if slot.ProviderID != provider.ID {
			return apperr.Validation("slot %s does not belong to provider %s", slot.ID, provider.ID)
		}
		if req.OfferingID != nil {
			offering, err := r.Offerings.Get(ctx, *req.OfferingID)
			if err != nil {
				return err
			}
			if offering.ProviderID != provider.ID || !offering.Active {
				return apperr.Validation("service %s is not offered by provider %s", offering.ID, provider.ID)
			}
		}

		reserved, err := slots.Reserve(ctx, r.Slots, slot.ID)
		if err != nil {
			return err
		}

		quote, err := s.pricing.QuoteWith(ctx, r, pricing.QuoteRequest{
			ProviderID: provider.ID,
			VisitType:  req.VisitType,
			PromoCode:  req.PromoCode,
		})
		if err != nil {
			return err
		}
		if quote.PromoCodeID != nil {
			if err := r.Promos.Redeem(ctx, *quote.PromoCodeID); err != nil {
				if errors.Is(err, storage.ErrPromoExhausted) {
					return apperr.PromoInvalid(apperr.ReasonExhausted, quote.PromoCode)
				}
				return err
			}
		}

		slotID := reserved.ID
		appt := &models.Appointment{
			PatientID:      req.PatientID,
			ProviderID:     provider.ID,
			OfferingID:     req.OfferingID,
			SlotID:         &slotID,
			Date:           reserved.Date,
			StartTime:      reserved.StartTime,
			EndTime:        reserved.EndTime,
			VisitType:      req.VisitType,
			Status:         models.StatusPending,
			Notes:          strings.TrimSpace(req.Notes),
			PatientAddress: req.PatientAddress,
			TotalAmount:    quote.Total,
			PromoCodeID:    quote.PromoCodeID,
		}
		if err := r.Appointments.Create(ctx, appt); err != nil {
			return err
		}
		if err := s.emitBooked(ctx, r, appt, quote.PromoCode); err != nil {
			return err
		}
		out = Booking{Appointment: appt, Quote: quote}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Transition applies one edge of the status table for actor.
func (s *Service) Transition(ctx context.Context, actor identity.Actor, id uuid.UUID, req TransitionRequest) (*TransitionResult, error) {
	ctx, span := s.tracer.Start(ctx, "booking.transition")
	defer span.End()
	span.SetAttributes(attribute.String("appointment_id", id.String()), attribute.String("to", string(req.To)))
	started := time.Now()

	to, err := models.ParseAppointmentStatus(string(req.To))
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}

	var (
		result     TransitionResult
		from       models.AppointmentStatus
		providerID uuid.UUID
	)
	err = s.uow.Do(ctx, func(ctx context.Context, r storage.Repos) error {
		appt, err := r.Appointments.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		party := PartyOf(actor, appt)
		if party == 0 {
			return apperr.Forbidden("appointment %s belongs to someone else", id)
		}
		from = appt.Status
		if err := CheckTransition(from, to, party); err != nil {
			return err
		}
		providerID = appt.ProviderID

		switch to {
		case models.StatusCancelled:
			return s.cancel(ctx, r, actor, appt, &result)
		case models.StatusRescheduled:
			return s.reschedule(ctx, r, actor, appt, req.NewSlotID, &result)
		default:
			updated, err := s.setStatus(ctx, r, actor, appt, to)
			if err != nil {
				return err
			}
			result.Appointment = updated
			return nil
		}
	})
	outcome := "ok"
	if err != nil {
		outcome = string(apperr.KindOf(err))
		span.RecordError(err)
	}
	s.metrics.ObserveTransition(string(to), outcome, time.Since(started).Seconds())
	if err != nil {
		s.logger.Warn("appointment transition failed", "appointment_id", id, "to", to, "actor_id", actor.UserID, "error", err)
		return nil, err
	}
	s.cache.InvalidateAvailability(ctx, providerID)
	s.logger.Info("appointment transitioned", "appointment_id", id, "from", from, "to", to, "actor_id", actor.UserID)
	return &result, nil
}

// setStatus performs the conditional status write. Losing a race to another
// transition surfaces as an invalid transition from the state we read.
func (s *Service) setStatus(ctx context.Context, r storage.Repos, actor identity.Actor, appt *models.Appointment, to models.AppointmentStatus) (*models.Appointment, error) {
	updated, err := r.Appointments.UpdateStatus(ctx, appt.ID, appt.Status, to)
	if errors.Is(err, storage.ErrStaleStatus) {
		return nil, apperr.InvalidTransition(string(appt.Status), string(to))
	}
	if err != nil {
		return nil, err
	}
	_, err = r.Outbox.Insert(ctx, events.TypeAppointmentStatusChanged, appt.ID.String(), events.AppointmentStatusChangedV1{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		ProviderID:    appt.ProviderID,
		From:          string(appt.Status),
		To:            string(to),
		ActorID:       actor.UserID,
		Date:          appt.Date,
		StartTime:     appt.StartTime,
		ChangedAt:     s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) cancel(ctx context.Context, r storage.Repos, actor identity.Actor, appt *models.Appointment, result *TransitionResult) error {
	updated, err := s.setStatus(ctx, r, actor, appt, models.StatusCancelled)
	if err != nil {
		return err
	}
	if appt.SlotID != nil {
		if err := slots.Release(ctx, r.Slots, *appt.SlotID); err != nil {
			return err
		}
	}
	if err := s.refund(ctx, r, appt); err != nil {
		return err
	}
	result.Appointment = updated
	return nil
}

// refund marks a settled payment refunded. Wallet payments are credited back
// here; card refunds are handed to the gateway through the outbox. A card
// payment still pending is left alone: payments.Settle refunds it if the
// gateway captures it later.
func (s *Service) refund(ctx context.Context, r storage.Repos, appt *models.Appointment) error {
	pay, err := r.Payments.ActiveForAppointment(ctx, appt.ID)
	if err != nil {
		return err
	}
	if pay == nil || pay.Status != models.PaymentCompleted {
		return nil
	}
	if _, err := r.Payments.UpdateStatus(ctx, pay.ID, models.PaymentCompleted, models.PaymentRefunded); err != nil {
		if errors.Is(err, storage.ErrStaleStatus) {
			return apperr.Conflict("payment %s changed while cancelling", pay.ID)
		}
		return err
	}
	if pay.Method == models.MethodWallet {
		if _, err := r.Users.AdjustWallet(ctx, pay.PatientID, pay.Amount); err != nil {
			return err
		}
		return r.Wallets.Record(ctx, &models.WalletTransaction{
			UserID:    pay.PatientID,
			Amount:    pay.Amount,
			Kind:      models.WalletRefund,
			Reference: appt.ID.String(),
		})
	}
	_, err = r.Outbox.Insert(ctx, events.TypePaymentRefundRequested, pay.ID.String(), events.PaymentRefundRequestedV1{
		PaymentID:     pay.ID,
		AppointmentID: appt.ID,
		PatientID:     pay.PatientID,
		Amount:        pay.Amount,
		Currency:      pay.Currency,
		GatewayRef:    pay.GatewayRef,
		RequestedAt:   s.now().UTC(),
	})
	return err
}

func (s *Service) reschedule(ctx context.Context, r storage.Repos, actor identity.Actor, appt *models.Appointment, newSlotID *uuid.UUID, result *TransitionResult) error {
	if newSlotID == nil || *newSlotID == uuid.Nil {
		return apperr.Validation("new_time_slot_id is required to reschedule")
	}
	if appt.SlotID != nil && *appt.SlotID == *newSlotID {
		return apperr.Validation("new slot must differ from the current slot")
	}
	target, err := r.Slots.Get(ctx, *newSlotID)
	if err != nil {
		return err
	}
	if target.ProviderID != appt.ProviderID {
		return apperr.Validation("slot %s belongs to a different provider", target.ID)
	}
	reserved, err := slots.Reserve(ctx, r.Slots, target.ID)
	if err != nil {
		return err
	}
	old, err := s.setStatus(ctx, r, actor, appt, models.StatusRescheduled)
	if err != nil {
		return err
	}
	if appt.SlotID != nil {
		if err := slots.Release(ctx, r.Slots, *appt.SlotID); err != nil {
			return err
		}
	}

	oldID := appt.ID
	slotID := reserved.ID
	next := &models.Appointment{
		PatientID:         appt.PatientID,
		ProviderID:        appt.ProviderID,
		OfferingID:        appt.OfferingID,
		SlotID:            &slotID,
		Date:              reserved.Date,
		StartTime:         reserved.StartTime,
		EndTime:           reserved.EndTime,
		VisitType:         appt.VisitType,
		Status:            models.StatusPending,
		Notes:             appt.Notes,
		PatientAddress:    appt.PatientAddress,
		TotalAmount:       appt.TotalAmount,
		PromoCodeID:       appt.PromoCodeID,
		RescheduledFromID: &oldID,
	}
	if err := r.Appointments.Create(ctx, next); err != nil {
		return err
	}
	pay, err := r.Payments.ActiveForAppointment(ctx, appt.ID)
	if err != nil {
		return err
	}
	if pay != nil {
		if err := r.Payments.MoveToAppointment(ctx, pay.ID, next.ID); err != nil {
			return err
		}
	}
	if err := s.emitBooked(ctx, r, next, ""); err != nil {
		return err
	}
	result.Appointment = old
	result.Replacement = next
	return nil
}

func (s *Service) emitBooked(ctx context.Context, r storage.Repos, a *models.Appointment, promoCode string) error {
	slotID := uuid.Nil
	if a.SlotID != nil {
		slotID = *a.SlotID
	}
	_, err := r.Outbox.Insert(ctx, events.TypeAppointmentBooked, a.ID.String(), events.AppointmentBookedV1{
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		ProviderID:    a.ProviderID,
		SlotID:        slotID,
		Date:          a.Date,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		VisitType:     string(a.VisitType),
		Total:         a.TotalAmount,
		PromoCode:     promoCode,
		RescheduledOf: a.RescheduledFromID,
		BookedAt:      s.now().UTC(),
	})
	return err
}

// Get returns an appointment the actor participates in.
func (s *Service) Get(ctx context.Context, actor identity.Actor, id uuid.UUID) (*models.Appointment, error) {
	appt, err := s.uow.Repos().Appointments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if PartyOf(actor, appt) == 0 {
		return nil, apperr.Forbidden("appointment %s belongs to someone else", id)
	}
	return appt, nil
}

// List scopes the filter to the actor: patients see their own bookings,
// providers their own calendar, admins anything.
func (s *Service) List(ctx context.Context, actor identity.Actor, f storage.AppointmentFilter) ([]models.Appointment, error) {
	switch actor.Role {
	case models.RolePatient:
		f.PatientID = actor.UserID
	case models.RoleProvider:
		if actor.ProviderID == uuid.Nil {
			return nil, apperr.Forbidden("provider profile required")
		}
		f.ProviderID = actor.ProviderID
	case models.RoleAdmin:
	default:
		return nil, apperr.Forbidden("unknown role %q", actor.Role)
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("invalid status %q", f.Status)
	}
	return s.uow.Repos().Appointments.List(ctx, f)
}
