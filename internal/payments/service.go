// Package payments charges appointments from the patient's wallet or records
// card payments for the external gateway to settle.
package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/events"
	"github.com/goldenlife/careconnect/internal/identity"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/storage"
	"github.com/goldenlife/careconnect/pkg/logging"
)

type PayRequest struct {
	Method models.PaymentMethod `json:"payment_method"`
}

// SettleRequest is the gateway callback stand-in.
type SettleRequest struct {
	Status models.PaymentStatus `json:"status"`
}

type Config struct {
	UnitOfWork storage.UnitOfWork
	Currency   string
	Now        func() time.Time
	Logger     *logging.Logger
}

type Service struct {
	uow      storage.UnitOfWork
	currency string
	now      func() time.Time
	logger   *logging.Logger
}

func NewService(cfg Config) *Service {
	if cfg.UnitOfWork == nil {
		panic("payments: unit of work required")
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
	return &Service{uow: cfg.UnitOfWork, currency: cfg.Currency, now: cfg.Now, logger: cfg.Logger}
}

// Pay charges the appointment total. Wallet payments complete immediately;
// card payments stay pending until the gateway settles them.
func (s *Service) Pay(ctx context.Context, actor identity.Actor, appointmentID uuid.UUID, req PayRequest) (*models.Payment, error) {
	if !req.Method.Valid() {
		return nil, apperr.Validation("payment_method must be card or wallet")
	}
	var out *models.Payment
	err := s.uow.Do(ctx, func(ctx context.Context, r storage.Repos) error {
		// Holding the appointment row orders this against a concurrent
		// cancel or a second payment for the same visit.
		appt, err := r.Appointments.GetForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if !actor.IsPatient(appt.PatientID) {
			return apperr.Forbidden("only the patient can pay for appointment %s", appt.ID)
		}
		if appt.Status != models.StatusPending && appt.Status != models.StatusConfirmed {
			return apperr.Validation("appointment is %s and cannot be paid", appt.Status)
		}
		existing, err := r.Payments.ActiveForAppointment(ctx, appt.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.Conflict("appointment %s already has a %s payment", appt.ID, existing.Status)
		}

		pay := &models.Payment{
			AppointmentID: appt.ID,
			PatientID:     appt.PatientID,
			Amount:        appt.TotalAmount,
			Currency:      s.currency,
			Method:        req.Method,
			Status:        models.PaymentPending,
		}
		if req.Method == models.MethodWallet {
			if _, err := r.Users.AdjustWallet(ctx, appt.PatientID, appt.TotalAmount.Neg()); err != nil {
				if errors.Is(err, storage.ErrInsufficientFunds) {
					return apperr.Validation("insufficient wallet balance")
				}
				return err
			}
			pay.Status = models.PaymentCompleted
			if err := r.Payments.Create(ctx, pay); err != nil {
				return err
			}
			if err := r.Wallets.Record(ctx, &models.WalletTransaction{
				UserID:    appt.PatientID,
				Amount:    appt.TotalAmount.Neg(),
				Kind:      models.WalletPayment,
				Reference: appt.ID.String(),
			}); err != nil {
				return err
			}
			out = pay
			return nil
		}

		if err := r.Payments.Create(ctx, pay); err != nil {
			return err
		}
		_, err = r.Outbox.Insert(ctx, events.TypePaymentRequested, pay.ID.String(), events.PaymentRequestedV1{
			PaymentID:     pay.ID,
			AppointmentID: appt.ID,
			PatientID:     appt.PatientID,
			Amount:        pay.Amount,
			Currency:      pay.Currency,
			RequestedAt:   s.now().UTC(),
		})
		out = pay
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("payment recorded", "payment_id", out.ID, "appointment_id", out.AppointmentID, "method", out.Method, "status", out.Status)
	return out, nil
}

// Settle moves a pending payment to completed or failed. A payment captured
// after its appointment was cancelled is refunded straight away.
func (s *Service) Settle(ctx context.Context, paymentID uuid.UUID, req SettleRequest) (*models.Payment, error) {
	if req.Status != models.PaymentCompleted && req.Status != models.PaymentFailed {
		return nil, apperr.Validation("status must be completed or failed")
	}
	var out *models.Payment
	err := s.uow.Do(ctx, func(ctx context.Context, r storage.Repos) error {
		current, err := r.Payments.Get(ctx, paymentID)
		if err != nil {
			return err
		}
		appt, err := r.Appointments.GetForUpdate(ctx, current.AppointmentID)
		if err != nil {
			return err
		}
		pay, err := r.Payments.UpdateStatus(ctx, paymentID, models.PaymentPending, req.Status)
		if err != nil {
			if errors.Is(err, storage.ErrStaleStatus) {
				return apperr.Conflict("payment %s is no longer pending", paymentID)
			}
			return err
		}
		now := s.now().UTC()
		if _, err := r.Outbox.Insert(ctx, events.TypePaymentSettled, pay.ID.String(), events.PaymentSettledV1{
			PaymentID:     pay.ID,
			AppointmentID: pay.AppointmentID,
			Status:        string(pay.Status),
			Amount:        pay.Amount,
			SettledAt:     now,
		}); err != nil {
			return err
		}
		if pay.Status == models.PaymentCompleted && appt.Status == models.StatusCancelled {
			pay, err = s.refundCaptured(ctx, r, pay, now)
			if err != nil {
				return err
			}
		}
		out = pay
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("payment settled", "payment_id", out.ID, "status", out.Status)
	return out, nil
}

func (s *Service) refundCaptured(ctx context.Context, r storage.Repos, pay *models.Payment, now time.Time) (*models.Payment, error) {
	refunded, err := r.Payments.UpdateStatus(ctx, pay.ID, models.PaymentCompleted, models.PaymentRefunded)
	if err != nil {
		return nil, err
	}
	if _, err := r.Outbox.Insert(ctx, events.TypePaymentRefundRequested, pay.ID.String(), events.PaymentRefundRequestedV1{
		PaymentID:     pay.ID,
		AppointmentID: pay.AppointmentID,
		PatientID:     pay.PatientID,
		Amount:        pay.Amount,
		Currency:      pay.Currency,
		GatewayRef:    pay.GatewayRef,
		RequestedAt:   now,
	}); err != nil {
		return nil, err
	}
	s.logger.Info("payment captured after cancellation; refund requested", "payment_id", pay.ID, "appointment_id", pay.AppointmentID)
	return refunded, nil
}

func (s *Service) Get(ctx context.Context, actor identity.Actor, id uuid.UUID) (*models.Payment, error) {
	pay, err := s.uow.Repos().Payments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.IsPatient(pay.PatientID) {
		return nil, apperr.Forbidden("payment %s belongs to another patient", id)
	}
	return pay, nil
}
