package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/storage"
)

var slotCols = []string{"id", "provider_id", "date", "start_time", "end_time", "is_booked", "is_blocked", "created_at"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestReserveSlotSuccess(t *testing.T) {
	mock := newMock(t)
	store := NewWithDB(mock, nil)
	id, providerID := uuid.New(), uuid.New()

	mock.ExpectQuery("UPDATE time_slots").WithArgs(id).
		WillReturnRows(pgxmock.NewRows(slotCols).AddRow(id, providerID, "2026-11-02", "09:00", "09:30", true, false, time.Now()))

	slot, err := store.Repos().Slots.Reserve(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, slot.Booked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveSlotAlreadyBooked(t *testing.T) {
	mock := newMock(t)
	store := NewWithDB(mock, nil)
	id := uuid.New()

	mock.ExpectQuery("UPDATE time_slots").WithArgs(id).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT id, provider_id, date").WithArgs(id).
		WillReturnRows(pgxmock.NewRows(slotCols).AddRow(id, uuid.New(), "2026-11-02", "09:00", "09:30", true, false, time.Now()))

	_, err := store.Repos().Slots.Reserve(context.Background(), id)
	assert.ErrorIs(t, err, apperr.ErrSlotUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveSlotUnknown(t *testing.T) {
	mock := newMock(t)
	store := NewWithDB(mock, nil)
	id := uuid.New()

	mock.ExpectQuery("UPDATE time_slots").WithArgs(id).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT id, provider_id, date").WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err := store.Repos().Slots.Reserve(context.Background(), id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRedeemPromoExhausted(t *testing.T) {
	mock := newMock(t)
	store := NewWithDB(mock, nil)
	id := uuid.New()
	max := 1

	mock.ExpectExec("UPDATE promo_codes").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	cols := []string{"id", "code", "description", "discount_type", "discount_value", "max_uses", "used_count",
		"valid_from", "valid_until", "is_active", "applicable_providers", "min_amount", "created_at"}
	mock.ExpectQuery("SELECT id, code").WithArgs(id).WillReturnRows(pgxmock.NewRows(cols).AddRow(
		id, "ONCE", "", "fixed", decimal.NewFromInt(5), &max, 1, time.Now(), time.Now().Add(time.Hour),
		true, []uuid.UUID{}, decimal.NullDecimal{}, time.Now()))

	err := store.Repos().Promos.Redeem(context.Background(), id)
	assert.ErrorIs(t, err, storage.ErrPromoExhausted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedeemPromoIncrements(t *testing.T) {
	mock := newMock(t)
	store := NewWithDB(mock, nil)
	id := uuid.New()

	mock.ExpectExec("UPDATE promo_codes").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.Repos().Promos.Redeem(context.Background(), id))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDoCommitsTransaction(t *testing.T) {
	mock := newMock(t)
	store := NewWithDB(mock, nil)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE time_slots SET is_booked = false").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := store.Do(context.Background(), func(ctx context.Context, r storage.Repos) error {
		return r.Slots.Release(ctx, id)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDoRollsBackOnError(t *testing.T) {
	mock := newMock(t)
	store := NewWithDB(mock, nil)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.Do(context.Background(), func(ctx context.Context, r storage.Repos) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAppointmentStatusStale(t *testing.T) {
	mock := newMock(t)
	store := NewWithDB(mock, nil)
	id := uuid.New()

	mock.ExpectQuery("UPDATE appointments").WithArgs(id, "pending", "confirmed").WillReturnError(pgx.ErrNoRows)
	cols := []string{"id", "patient_id", "provider_id", "service_id", "time_slot_id", "appointment_date",
		"start_time", "end_time", "visit_type", "status", "notes", "patient_address", "total_amount",
		"promo_code_id", "rescheduled_from_id", "created_at", "updated_at"}
	mock.ExpectQuery("SELECT id, patient_id").WithArgs(id).WillReturnRows(pgxmock.NewRows(cols).AddRow(
		id, uuid.New(), uuid.New(), nil, nil, "2026-11-02", "09:00", "09:30", "clinic", "cancelled", "", "",
		decimal.NewFromInt(50), nil, nil, time.Now(), time.Now()))

	_, err := store.Repos().Appointments.UpdateStatus(context.Background(), id, models.StatusPending, models.StatusConfirmed)
	assert.ErrorIs(t, err, storage.ErrStaleStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustWalletInsufficient(t *testing.T) {
	mock := newMock(t)
	store := NewWithDB(mock, nil)
	id := uuid.New()
	delta := decimal.NewFromInt(-10)

	mock.ExpectQuery("UPDATE users").WithArgs(id, delta).WillReturnError(pgx.ErrNoRows)
	cols := []string{"id", "email", "password_hash", "first_name", "last_name", "phone", "role", "address", "city", "wallet_balance", "created_at", "updated_at"}
	mock.ExpectQuery("SELECT id, email").WithArgs(id).WillReturnRows(pgxmock.NewRows(cols).AddRow(
		id, "p@example.com", "hash", "Pat", "Ient", "", "patient", "", "", decimal.NewFromInt(5), time.Now(), time.Now()))

	_, err := store.Repos().Users.AdjustWallet(context.Background(), id, delta)
	assert.ErrorIs(t, err, storage.ErrInsufficientFunds)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOverrideConflict(t *testing.T) {
	mock := newMock(t)
	store := NewWithDB(mock, nil)
	providerID := uuid.New()

	mock.ExpectQuery("INSERT INTO provider_pricing_overrides").
		WithArgs(pgxmock.AnyArg(), providerID, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "", true).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := store.Repos().Overrides.Create(context.Background(), &models.PricingOverride{ProviderID: providerID, Active: true})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestActiveOverrideNone(t *testing.T) {
	mock := newMock(t)
	store := NewWithDB(mock, nil)
	providerID := uuid.New()

	mock.ExpectQuery("SELECT id, provider_id, consultation_fee").WithArgs(providerID).WillReturnError(pgx.ErrNoRows)

	o, err := store.Repos().Overrides.ActiveForProvider(context.Background(), providerID)
	require.NoError(t, err)
	assert.Nil(t, o)
}

func TestOutboxFlow(t *testing.T) {
	mock := newMock(t)
	repos := NewWithDB(mock, nil).Repos()
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO outbox").WithArgs(pgxmock.AnyArg(), "appointment.booked", "a-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	_, err := repos.Outbox.Insert(ctx, "appointment.booked", "a-1", map[string]string{"foo": "bar"})
	require.NoError(t, err)

	id := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "type", "aggregate_id", "payload", "created_at"}).
		AddRow(id, "appointment.booked", "a-1", []byte(`{"foo":"bar"}`), time.Now())
	mock.ExpectQuery("SELECT id, type").WithArgs(int32(10)).WillReturnRows(rows)
	events, err := repos.Outbox.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)

	mock.ExpectExec("UPDATE outbox").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := repos.Outbox.MarkDelivered(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkProcessed(t *testing.T) {
	mock := newMock(t)
	repos := NewWithDB(mock, nil).Repos()

	mock.ExpectExec("INSERT INTO processed_events").WithArgs("reminder", "a-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	inserted, err := repos.Processed.MarkProcessed(context.Background(), "reminder", "a-1")
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestCreatePaymentDuplicateIsConflict(t *testing.T) {
	mock := newMock(t)
	store := NewWithDB(mock, nil)
	appointmentID := uuid.New()

	mock.ExpectQuery("INSERT INTO payments").
		WithArgs(pgxmock.AnyArg(), appointmentID, pgxmock.AnyArg(), pgxmock.AnyArg(), "EUR", "wallet", "completed", "").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := store.Repos().Payments.Create(context.Background(), &models.Payment{
		AppointmentID: appointmentID,
		PatientID:     uuid.New(),
		Amount:        decimal.NewFromInt(40),
		Currency:      "EUR",
		Method:        models.MethodWallet,
		Status:        models.PaymentCompleted,
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAppointmentForUpdateLocksRow(t *testing.T) {
	mock := newMock(t)
	store := NewWithDB(mock, nil)
	id := uuid.New()

	mock.ExpectQuery("FROM appointments WHERE id = \\$1 FOR UPDATE").WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err := store.Repos().Appointments.GetForUpdate(context.Background(), id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockDayTakesAdvisoryLock(t *testing.T) {
	mock := newMock(t)
	store := NewWithDB(mock, nil)
	providerID := uuid.New()

	mock.ExpectExec("pg_advisory_xact_lock").WithArgs(providerID.String() + "/2026-11-02").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, store.Repos().Slots.LockDay(context.Background(), providerID, "2026-11-02"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateHealthRecordDefaultsDetails(t *testing.T) {
	mock := newMock(t)
	store := NewWithDB(mock, nil)
	patientID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("INSERT INTO health_records").
		WithArgs(pgxmock.AnyArg(), patientID, "Blood test", "", "", []byte(`{}`)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	rec := &models.HealthRecord{PatientID: patientID, Title: "Blood test"}
	require.NoError(t, store.Repos().Records.Create(context.Background(), rec))
	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.Equal(t, now, rec.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMissingHealthRecordIsNotFound(t *testing.T) {
	mock := newMock(t)
	store := NewWithDB(mock, nil)
	id := uuid.New()

	mock.ExpectExec("DELETE FROM health_records").WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := store.Repos().Records.Delete(context.Background(), id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
