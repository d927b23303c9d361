package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TypeAppointmentBooked        = "appointment.booked"
	TypeAppointmentStatusChanged = "appointment.status_changed"
	TypePaymentRequested         = "payment.requested"
	TypePaymentRefundRequested   = "payment.refund_requested"
	TypePaymentSettled           = "payment.settled"
)

type AppointmentBookedV1 struct {
	AppointmentID uuid.UUID       `json:"appointment_id"`
	PatientID     uuid.UUID       `json:"patient_id"`
	ProviderID    uuid.UUID       `json:"provider_id"`
	SlotID        uuid.UUID       `json:"slot_id"`
	Date          string          `json:"date"`
	StartTime     string          `json:"start_time"`
	EndTime       string          `json:"end_time"`
	VisitType     string          `json:"visit_type"`
	Total         decimal.Decimal `json:"total"`
	PromoCode     string          `json:"promo_code,omitempty"`
	RescheduledOf *uuid.UUID      `json:"rescheduled_of,omitempty"`
	BookedAt      time.Time       `json:"booked_at"`
}

type AppointmentStatusChangedV1 struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	ProviderID    uuid.UUID `json:"provider_id"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	ActorID       uuid.UUID `json:"actor_id"`
	Date          string    `json:"date"`
	StartTime     string    `json:"start_time"`
	ChangedAt     time.Time `json:"changed_at"`
}

// PaymentRequestedV1 asks the gateway integration to charge a card.
type PaymentRequestedV1 struct {
	PaymentID     uuid.UUID       `json:"payment_id"`
	AppointmentID uuid.UUID       `json:"appointment_id"`
	PatientID     uuid.UUID       `json:"patient_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	RequestedAt   time.Time       `json:"requested_at"`
}

type PaymentRefundRequestedV1 struct {
	PaymentID     uuid.UUID       `json:"payment_id"`
	AppointmentID uuid.UUID       `json:"appointment_id"`
	PatientID     uuid.UUID       `json:"patient_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	GatewayRef    string          `json:"gateway_ref,omitempty"`
	RequestedAt   time.Time       `json:"requested_at"`
}

type PaymentSettledV1 struct {
	PaymentID     uuid.UUID       `json:"payment_id"`
	AppointmentID uuid.UUID       `json:"appointment_id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	SettledAt     time.Time       `json:"settled_at"`
}
