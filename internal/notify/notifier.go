package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/goldenlife/careconnect/internal/events"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/money"
	"github.com/goldenlife/careconnect/internal/storage"
	"github.com/goldenlife/careconnect/pkg/logging"
)

// Notifier turns outbox events into emails. It implements
// events.DeliveryHandler.
type Notifier struct {
	email    EmailSender
	uow      storage.UnitOfWork
	currency string
	logger   *logging.Logger
}

func NewNotifier(email EmailSender, uow storage.UnitOfWork, currency string, logger *logging.Logger) *Notifier {
	if uow == nil {
		panic("notify: unit of work required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if email == nil {
		email = NewStubEmailSender(logger)
	}
	if currency == "" {
		currency = "USD"
	}
	return &Notifier{email: email, uow: uow, currency: currency, logger: logger}
}

// Handle ignores event types it has nothing to say about.
func (n *Notifier) Handle(ctx context.Context, ev models.OutboxEvent) error {
	switch ev.Type {
	case events.TypeAppointmentBooked:
		var p events.AppointmentBookedV1
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return fmt.Errorf("notify: decode %s: %w", ev.Type, err)
		}
		return n.booked(ctx, p)
	case events.TypeAppointmentStatusChanged:
		var p events.AppointmentStatusChangedV1
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return fmt.Errorf("notify: decode %s: %w", ev.Type, err)
		}
		return n.statusChanged(ctx, p)
	case events.TypePaymentSettled:
		var p events.PaymentSettledV1
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return fmt.Errorf("notify: decode %s: %w", ev.Type, err)
		}
		return n.paymentSettled(ctx, p)
	}
	return nil
}

// Remind emails the patient about an upcoming confirmed appointment.
func (n *Notifier) Remind(ctx context.Context, appt models.Appointment) error {
	patient, providerName, err := n.parties(ctx, appt.PatientID, appt.ProviderID)
	if err != nil {
		return err
	}
	return n.send(ctx, patient, "Reminder: your appointment is coming up",
		fmt.Sprintf("Hi %s,\n\nThis is a reminder of your %s appointment with %s on %s at %s.\n\nSee you soon.",
			patient.FirstName, appt.VisitType, providerName, appt.Date, appt.StartTime))
}

func (n *Notifier) booked(ctx context.Context, p events.AppointmentBookedV1) error {
	patient, providerName, err := n.parties(ctx, p.PatientID, p.ProviderID)
	if err != nil {
		return err
	}
	providerUser, err := n.providerUser(ctx, p.ProviderID)
	if err != nil {
		return err
	}
	when := fmt.Sprintf("%s %s-%s", p.Date, p.StartTime, p.EndTime)
	subject := "Booking request received"
	if p.RescheduledOf != nil {
		subject = "Appointment rescheduled"
	}
	var errs []error
	errs = append(errs, n.send(ctx, patient, subject,
		fmt.Sprintf("Hi %s,\n\nYour %s appointment with %s on %s is waiting for confirmation.\nTotal: %s %s%s",
			patient.FirstName, p.VisitType, providerName, when, money.String(p.Total), n.currency, promoLine(p.PromoCode))))
	errs = append(errs, n.send(ctx, providerUser, "New booking request",
		fmt.Sprintf("Hi %s,\n\n%s %s requested a %s appointment on %s. Please confirm it from your dashboard.",
			providerUser.FirstName, patient.FirstName, patient.LastName, p.VisitType, when)))
	return errors.Join(errs...)
}

func (n *Notifier) statusChanged(ctx context.Context, p events.AppointmentStatusChangedV1) error {
	var subject string
	switch models.AppointmentStatus(p.To) {
	case models.StatusConfirmed:
		subject = "Your appointment is confirmed"
	case models.StatusCancelled:
		subject = "Your appointment was cancelled"
	case models.StatusCompleted:
		subject = "Thanks for your visit"
	default:
		return nil
	}
	patient, providerName, err := n.parties(ctx, p.PatientID, p.ProviderID)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("Hi %s,\n\nYour appointment with %s on %s at %s is now %s.", patient.FirstName, providerName, p.Date, p.StartTime, p.To)
	if models.AppointmentStatus(p.To) == models.StatusCompleted {
		body += "\nYou can now leave a review for your provider."
	}
	var errs []error
	errs = append(errs, n.send(ctx, patient, subject, body))

	if models.AppointmentStatus(p.To) == models.StatusCancelled && p.ActorID == p.PatientID {
		providerUser, err := n.providerUser(ctx, p.ProviderID)
		if err != nil {
			return errors.Join(append(errs, err)...)
		}
		errs = append(errs, n.send(ctx, providerUser, "Appointment cancelled by patient",
			fmt.Sprintf("Hi %s,\n\n%s %s cancelled the appointment on %s at %s. The slot is open again.",
				providerUser.FirstName, patient.FirstName, patient.LastName, p.Date, p.StartTime)))
	}
	return errors.Join(errs...)
}

func (n *Notifier) paymentSettled(ctx context.Context, p events.PaymentSettledV1) error {
	appt, err := n.uow.Repos().Appointments.Get(ctx, p.AppointmentID)
	if err != nil {
		return fmt.Errorf("notify: load appointment: %w", err)
	}
	patient, err := n.uow.Repos().Users.Get(ctx, appt.PatientID)
	if err != nil {
		return fmt.Errorf("notify: load patient: %w", err)
	}
	amount := money.String(p.Amount) + " " + n.currency
	if models.PaymentStatus(p.Status) == models.PaymentCompleted {
		return n.send(ctx, patient, "Payment received",
			fmt.Sprintf("Hi %s,\n\nWe received your payment of %s for the appointment on %s.", patient.FirstName, amount, appt.Date))
	}
	return n.send(ctx, patient, "Payment failed",
		fmt.Sprintf("Hi %s,\n\nYour card payment of %s for the appointment on %s did not go through. Please try again or pay from your wallet.", patient.FirstName, amount, appt.Date))
}

func (n *Notifier) parties(ctx context.Context, patientID, providerID uuid.UUID) (*models.User, string, error) {
	repos := n.uow.Repos()
	patient, err := repos.Users.Get(ctx, patientID)
	if err != nil {
		return nil, "", fmt.Errorf("notify: load patient: %w", err)
	}
	providerUser, err := n.providerUser(ctx, providerID)
	if err != nil {
		return nil, "", err
	}
	return patient, strings.TrimSpace(providerUser.FirstName + " " + providerUser.LastName), nil
}

func (n *Notifier) providerUser(ctx context.Context, providerID uuid.UUID) (*models.User, error) {
	repos := n.uow.Repos()
	provider, err := repos.Providers.Get(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("notify: load provider: %w", err)
	}
	u, err := repos.Users.Get(ctx, provider.UserID)
	if err != nil {
		return nil, fmt.Errorf("notify: load provider user: %w", err)
	}
	return u, nil
}

func (n *Notifier) send(ctx context.Context, to *models.User, subject, body string) error {
	msg := EmailMessage{
		To:      to.Email,
		ToName:  strings.TrimSpace(to.FirstName + " " + to.LastName),
		Subject: subject,
		Body:    body + "\n\n- " + DefaultFromName,
	}
	if err := n.email.Send(ctx, msg); err != nil {
		n.logger.Error("notify: email failed", "to", to.Email, "subject", subject, "error", err)
		return err
	}
	return nil
}

func promoLine(code string) string {
	if code == "" {
		return ""
	}
	return "\nPromo code applied: " + code
}
