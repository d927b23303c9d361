// Package models holds the marketplace entities shared by storage and services.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User is an account. PasswordHash never leaves the process.
type User struct {
	ID            uuid.UUID       `json:"id"`
	Email         string          `json:"email"`
	PasswordHash  string          `json:"-"`
	FirstName     string          `json:"first_name"`
	LastName      string          `json:"last_name"`
	Phone         string          `json:"phone,omitempty"`
	Role          Role            `json:"role"`
	Address       string          `json:"address,omitempty"`
	City          string          `json:"city,omitempty"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Provider is the bookable profile owned by a provider user.
type Provider struct {
	ID                uuid.UUID        `json:"id"`
	UserID            uuid.UUID        `json:"user_id"`
	Type              ProviderType     `json:"type"`
	Specialization    string           `json:"specialization"`
	Bio               string           `json:"bio,omitempty"`
	YearsExperience   int              `json:"years_experience"`
	Education         string           `json:"education,omitempty"`
	Certifications    []string         `json:"certifications"`
	Languages         Languages        `json:"languages"`
	ConsultationFee   *decimal.Decimal `json:"consultation_fee"`
	HomeVisitFee      *decimal.Decimal `json:"home_visit_fee"`
	Verified          bool             `json:"verified"`
	Active            bool             `json:"active"`
	Rating            decimal.Decimal  `json:"rating"`
	TotalReviews      int              `json:"total_reviews"`
	AvailableDays     Weekdays         `json:"available_days"`
	WorkingHoursStart string           `json:"working_hours_start"`
	WorkingHoursEnd   string           `json:"working_hours_end"`
	Timezone          string           `json:"timezone"`
	City              string           `json:"city,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// Location returns the provider's time zone, falling back to UTC.
func (p Provider) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Offering is a service a provider lists, such as a 60 minute assessment.
type Offering struct {
	ID              uuid.UUID       `json:"id"`
	ProviderID      uuid.UUID       `json:"provider_id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	DurationMinutes int             `json:"duration_minutes"`
	Price           decimal.Decimal `json:"price"`
	Active          bool            `json:"active"`
	CreatedAt       time.Time       `json:"created_at"`
}

// TimeSlot is one bookable interval. Date is YYYY-MM-DD and times are HH:MM.
type TimeSlot struct {
	ID         uuid.UUID `json:"id"`
	ProviderID uuid.UUID `json:"provider_id"`
	Date       string    `json:"date"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
	Booked     bool      `json:"is_booked"`
	Blocked    bool      `json:"is_blocked"`
	CreatedAt  time.Time `json:"created_at"`
}

// Bookable reports whether the slot can be reserved.
func (s TimeSlot) Bookable() bool {
	return !s.Booked && !s.Blocked
}

// Appointment is a booking of a slot by a patient.
type Appointment struct {
	ID                uuid.UUID         `json:"id"`
	PatientID         uuid.UUID         `json:"patient_id"`
	ProviderID        uuid.UUID         `json:"provider_id"`
	OfferingID        *uuid.UUID        `json:"offering_id,omitempty"`
	SlotID            *uuid.UUID        `json:"time_slot_id,omitempty"`
	Date              string            `json:"appointment_date"`
	StartTime         string            `json:"start_time"`
	EndTime           string            `json:"end_time"`
	VisitType         VisitType         `json:"visit_type"`
	Status            AppointmentStatus `json:"status"`
	Notes             string            `json:"notes,omitempty"`
	PatientAddress    string            `json:"patient_address,omitempty"`
	TotalAmount       decimal.Decimal   `json:"total_amount"`
	PromoCodeID       *uuid.UUID        `json:"promo_code_id,omitempty"`
	RescheduledFromID *uuid.UUID        `json:"rescheduled_from_id,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// PromoCode is a redeemable discount. Code is stored upper case.
type PromoCode struct {
	ID                  uuid.UUID        `json:"id"`
	Code                string           `json:"code"`
	Description         string           `json:"description,omitempty"`
	DiscountType        DiscountType     `json:"discount_type"`
	DiscountValue       decimal.Decimal  `json:"discount_value"`
	MaxUses             *int             `json:"max_uses,omitempty"`
	UsedCount           int              `json:"used_count"`
	ValidFrom           time.Time        `json:"valid_from"`
	ValidUntil          time.Time        `json:"valid_until"`
	Active              bool             `json:"is_active"`
	ApplicableProviders []uuid.UUID      `json:"applicable_providers"`
	MinAmount           *decimal.Decimal `json:"min_amount,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
}

// HasRemainingUses reports whether another redemption fits under MaxUses.
func (p PromoCode) HasRemainingUses() bool {
	return p.MaxUses == nil || p.UsedCount < *p.MaxUses
}

// AppliesTo reports whether the code is scoped to the provider.
// An empty scope means every provider.
func (p PromoCode) AppliesTo(providerID uuid.UUID) bool {
	if len(p.ApplicableProviders) == 0 {
		return true
	}
	for _, id := range p.ApplicableProviders {
		if id == providerID {
			return true
		}
	}
	return false
}

// PricingOverride is an admin-set fee replacement or discount for one provider.
type PricingOverride struct {
	ID                 uuid.UUID        `json:"id"`
	ProviderID         uuid.UUID        `json:"provider_id"`
	ConsultationFee    *decimal.Decimal `json:"consultation_fee,omitempty"`
	HomeVisitFee       *decimal.Decimal `json:"home_visit_fee,omitempty"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
	Notes              string           `json:"notes,omitempty"`
	Active             bool             `json:"is_active"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

type Review struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	ProviderID    uuid.UUID `json:"provider_id"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// HealthRecord is a document a patient keeps on file, such as a lab result or
// a discharge letter. Details holds structured fields as a JSON object.
type HealthRecord struct {
	ID          uuid.UUID       `json:"id"`
	PatientID   uuid.UUID       `json:"patient_id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	FileURL     string          `json:"file_url,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Payment struct {
	ID            uuid.UUID       `json:"id"`
	AppointmentID uuid.UUID       `json:"appointment_id"`
	PatientID     uuid.UUID       `json:"patient_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Method        PaymentMethod   `json:"payment_method"`
	Status        PaymentStatus   `json:"status"`
	GatewayRef    string          `json:"gateway_ref,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// WalletTransaction is a signed ledger entry against a user's balance.
type WalletTransaction struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Kind      WalletTxKind    `json:"kind"`
	Reference string          `json:"reference,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// OutboxEvent is a domain event persisted alongside the write that caused it.
type OutboxEvent struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	DeliveredAt *time.Time      `json:"delivered_at,omitempty"`
}
