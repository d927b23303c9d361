// Package storage declares the persistence contracts shared by the Postgres
// and in-memory backends.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/goldenlife/careconnect/internal/models"
)

// ErrStaleStatus is returned by conditional status updates when the row no
// longer holds the expected status.
var ErrStaleStatus = errors.New("storage: status changed concurrently")

// ErrInsufficientFunds is returned when a wallet debit would go negative.
var ErrInsufficientFunds = errors.New("storage: insufficient wallet balance")

// ErrPromoExhausted is returned when a redemption would exceed max uses or
// the code has been deactivated.
var ErrPromoExhausted = errors.New("storage: promo code exhausted")

type UserFilter struct {
	Role   models.Role
	Limit  int
	Offset int
}

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, f UserFilter) ([]models.User, error)
	SetRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error)
	// AdjustWallet adds delta to the balance and returns the new balance.
	// A debit that would leave a negative balance fails with ErrInsufficientFunds.
	AdjustWallet(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
}

type ProviderFilter struct {
	Type         models.ProviderType
	City         string
	Language     models.Language
	VerifiedOnly bool
	ActiveOnly   bool
	MinRating    decimal.Decimal
	Limit        int
	Offset       int
}

type ProviderStore interface {
	Create(ctx context.Context, p *models.Provider) error
	Get(ctx context.Context, id uuid.UUID) (*models.Provider, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Provider, error)
	Search(ctx context.Context, f ProviderFilter) ([]models.Provider, error)
	Update(ctx context.Context, p *models.Provider) error
	SetVerified(ctx context.Context, id uuid.UUID, verified bool) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	SetRating(ctx context.Context, id uuid.UUID, rating decimal.Decimal, total int) error
}

type OfferingStore interface {
	Create(ctx context.Context, o *models.Offering) error
	Get(ctx context.Context, id uuid.UUID) (*models.Offering, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, activeOnly bool) ([]models.Offering, error)
	Update(ctx context.Context, o *models.Offering) error
}

type SlotStore interface {
	// LockDay serializes slot creation for one provider and date until the
	// surrounding transaction ends.
	LockDay(ctx context.Context, providerID uuid.UUID, date string) error
	CreateBatch(ctx context.Context, slots []models.TimeSlot) error
	Get(ctx context.Context, id uuid.UUID) (*models.TimeSlot, error)
	ListByProviderDate(ctx context.Context, providerID uuid.UUID, date string) ([]models.TimeSlot, error)
	// ListBookable returns unbooked, unblocked slots with from <= date <= to,
	// ordered by date then start time.
	ListBookable(ctx context.Context, providerID uuid.UUID, from, to string) ([]models.TimeSlot, error)
	// Reserve flips a free slot to booked in one conditional write.
	Reserve(ctx context.Context, id uuid.UUID) (*models.TimeSlot, error)
	Release(ctx context.Context, id uuid.UUID) error
	SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) (*models.TimeSlot, error)
}

type PromoStore interface {
	Create(ctx context.Context, p *models.PromoCode) error
	Get(ctx context.Context, id uuid.UUID) (*models.PromoCode, error)
	GetByCode(ctx context.Context, code string) (*models.PromoCode, error)
	List(ctx context.Context) ([]models.PromoCode, error)
	Update(ctx context.Context, p *models.PromoCode) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Redeem increments used_count only while the code is active and under
	// max uses; otherwise it fails with ErrPromoExhausted.
	Redeem(ctx context.Context, id uuid.UUID) error
}

type OverrideStore interface {
	Create(ctx context.Context, o *models.PricingOverride) error
	Get(ctx context.Context, id uuid.UUID) (*models.PricingOverride, error)
	List(ctx context.Context) ([]models.PricingOverride, error)
	Update(ctx context.Context, o *models.PricingOverride) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ActiveForProvider returns the provider's active override or nil.
	ActiveForProvider(ctx context.Context, providerID uuid.UUID) (*models.PricingOverride, error)
}

type AppointmentFilter struct {
	PatientID  uuid.UUID
	ProviderID uuid.UUID
	Status     models.AppointmentStatus
	FromDate   string
	ToDate     string
	Limit      int
}

type AppointmentStore interface {
	Create(ctx context.Context, a *models.Appointment) error
	Get(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
	// GetForUpdate reads the row and holds it until the transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
	List(ctx context.Context, f AppointmentFilter) ([]models.Appointment, error)
	// UpdateStatus moves from -> to and fails with ErrStaleStatus when the
	// row is no longer in from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.AppointmentStatus) (*models.Appointment, error)
}

type PaymentStore interface {
	// Create fails with a Conflict when the appointment already has a
	// payment that is not failed.
	Create(ctx context.Context, p *models.Payment) error
	Get(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	// ActiveForAppointment returns the newest non-failed payment or nil.
	ActiveForAppointment(ctx context.Context, appointmentID uuid.UUID) (*models.Payment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.PaymentStatus) (*models.Payment, error)
	MoveToAppointment(ctx context.Context, id, appointmentID uuid.UUID) error
}

type WalletStore interface {
	Record(ctx context.Context, tx *models.WalletTransaction) error
	List(ctx context.Context, userID uuid.UUID, limit int) ([]models.WalletTransaction, error)
}

type ReviewStore interface {
	Create(ctx context.Context, r *models.Review) error
	ListByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]models.Review, error)
	// Aggregate returns the average rating and review count for a provider.
	Aggregate(ctx context.Context, providerID uuid.UUID) (decimal.Decimal, int, error)
}

type HealthRecordStore interface {
	Create(ctx context.Context, rec *models.HealthRecord) error
	Get(ctx context.Context, id uuid.UUID) (*models.HealthRecord, error)
	// ListByPatient returns the patient's records, newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]models.HealthRecord, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ChatStore interface {
	Append(ctx context.Context, m *models.ChatMessage) error
	// Recent returns the latest limit messages, oldest first.
	Recent(ctx context.Context, userID uuid.UUID, limit int) ([]models.ChatMessage, error)
}

type OutboxStore interface {
	Insert(ctx context.Context, eventType, aggregateID string, payload any) (uuid.UUID, error)
	FetchPending(ctx context.Context, limit int32) ([]models.OutboxEvent, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
}

type ProcessedStore interface {
	// MarkProcessed returns false when (consumer, key) was already recorded.
	MarkProcessed(ctx context.Context, consumer, key string) (bool, error)
}

// Repos bundles every store bound to one connection or transaction.
type Repos struct {
	Users        UserStore
	Providers    ProviderStore
	Offerings    OfferingStore
	Slots        SlotStore
	Promos       PromoStore
	Overrides    OverrideStore
	Appointments AppointmentStore
	Payments     PaymentStore
	Wallets      WalletStore
	Reviews      ReviewStore
	Records      HealthRecordStore
	Chat         ChatStore
	Outbox       OutboxStore
	Processed    ProcessedStore
}

// UnitOfWork runs fn inside one transaction. Any error from fn rolls back
// every write made through the Repos it received.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
	Repos() Repos
}
