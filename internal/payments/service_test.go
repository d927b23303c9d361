package payments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/events"
	"github.com/goldenlife/careconnect/internal/identity"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/storage/memory"
)

type fixture struct {
	store   *memory.Store
	svc     *Service
	patient *models.User
}

func newFixture(t *testing.T, balance int64) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	patient := &models.User{Email: "pat@example.com", FirstName: "Pat", Role: models.RolePatient}
	require.NoError(t, store.Repos().Users.Create(ctx, patient))
	if balance > 0 {
		_, err := store.Repos().Users.AdjustWallet(ctx, patient.ID, decimal.NewFromInt(balance))
		require.NoError(t, err)
	}
	now := func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	return &fixture{store: store, svc: NewService(Config{UnitOfWork: store, Now: now, Currency: "EUR"}), patient: patient}
}

func (f *fixture) appointment(t *testing.T, status models.AppointmentStatus, total string) *models.Appointment {
	t.Helper()
	a := &models.Appointment{
		PatientID:   f.patient.ID,
		ProviderID:  uuid.New(),
		Date:        "2025-03-03",
		StartTime:   "10:00",
		EndTime:     "10:30",
		VisitType:   models.VisitClinic,
		Status:      status,
		TotalAmount: decimal.RequireFromString(total),
	}
	require.NoError(t, f.store.Repos().Appointments.Create(context.Background(), a))
	return a
}

func (f *fixture) actor() identity.Actor {
	return identity.Actor{UserID: f.patient.ID, Role: models.RolePatient}
}

func (f *fixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	u, err := f.store.Repos().Users.Get(context.Background(), f.patient.ID)
	require.NoError(t, err)
	return u.WalletBalance
}

func TestPayFromWallet(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	a := f.appointment(t, models.StatusPending, "31.00")

	pay, err := f.svc.Pay(ctx, f.actor(), a.ID, PayRequest{Method: models.MethodWallet})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, pay.Status)
	assert.Equal(t, "EUR", pay.Currency)
	assert.True(t, decimal.RequireFromString("69").Equal(f.balance(t)))

	txs, err := f.store.Repos().Wallets.List(ctx, f.patient.ID, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.WalletPayment, txs[0].Kind)
	assert.True(t, decimal.RequireFromString("-31").Equal(txs[0].Amount))

	_, err = f.svc.Pay(ctx, f.actor(), a.ID, PayRequest{Method: models.MethodCard})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestPayInsufficientWalletLeavesNothing(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	a := f.appointment(t, models.StatusConfirmed, "31.00")

	_, err := f.svc.Pay(ctx, f.actor(), a.ID, PayRequest{Method: models.MethodWallet})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.True(t, decimal.NewFromInt(10).Equal(f.balance(t)))

	existing, err := f.store.Repos().Payments.ActiveForAppointment(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, existing)
}

func TestConcurrentWalletPaymentsNeverOverdraw(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()
	appts := make([]*models.Appointment, 5)
	for i := range appts {
		appts[i] = f.appointment(t, models.StatusPending, "20.00")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	paid := 0
	for _, a := range appts {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			if _, err := f.svc.Pay(ctx, f.actor(), id, PayRequest{Method: models.MethodWallet}); err == nil {
				mu.Lock()
				paid++
				mu.Unlock()
			}
		}(a.ID)
	}
	wg.Wait()

	assert.Equal(t, 2, paid)
	assert.True(t, decimal.NewFromInt(10).Equal(f.balance(t)))
}

func TestCardPaymentSettles(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	a := f.appointment(t, models.StatusPending, "45.50")

	pay, err := f.svc.Pay(ctx, f.actor(), a.ID, PayRequest{Method: models.MethodCard})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, pay.Status)

	settled, err := f.svc.Settle(ctx, pay.ID, SettleRequest{Status: models.PaymentCompleted})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, settled.Status)

	_, err = f.svc.Settle(ctx, pay.ID, SettleRequest{Status: models.PaymentFailed})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = f.svc.Settle(ctx, pay.ID, SettleRequest{Status: models.PaymentRefunded})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	pending, err := f.store.Repos().Outbox.FetchPending(ctx, 10)
	require.NoError(t, err)
	types := make([]string, 0, len(pending))
	for _, ev := range pending {
		types = append(types, ev.Type)
	}
	assert.ElementsMatch(t, []string{events.TypePaymentRequested, events.TypePaymentSettled}, types)
}

func TestCardCapturedAfterCancelIsRefunded(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	a := f.appointment(t, models.StatusConfirmed, "40.00")

	pay, err := f.svc.Pay(ctx, f.actor(), a.ID, PayRequest{Method: models.MethodCard})
	require.NoError(t, err)
	_, err = f.store.Repos().Appointments.UpdateStatus(ctx, a.ID, models.StatusConfirmed, models.StatusCancelled)
	require.NoError(t, err)

	settled, err := f.svc.Settle(ctx, pay.ID, SettleRequest{Status: models.PaymentCompleted})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, settled.Status)

	stored, err := f.store.Repos().Payments.Get(ctx, pay.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, stored.Status)

	pending, err := f.store.Repos().Outbox.FetchPending(ctx, 10)
	require.NoError(t, err)
	types := make([]string, 0, len(pending))
	for _, ev := range pending {
		types = append(types, ev.Type)
	}
	assert.ElementsMatch(t, []string{events.TypePaymentRequested, events.TypePaymentSettled, events.TypePaymentRefundRequested}, types)
}

func TestFailedCaptureAfterCancelStaysFailed(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	a := f.appointment(t, models.StatusPending, "40.00")

	pay, err := f.svc.Pay(ctx, f.actor(), a.ID, PayRequest{Method: models.MethodCard})
	require.NoError(t, err)
	_, err = f.store.Repos().Appointments.UpdateStatus(ctx, a.ID, models.StatusPending, models.StatusCancelled)
	require.NoError(t, err)

	settled, err := f.svc.Settle(ctx, pay.ID, SettleRequest{Status: models.PaymentFailed})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, settled.Status)
}

func TestSecondPaymentRowIsRejected(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	a := f.appointment(t, models.StatusPending, "40.00")
	repo := f.store.Repos().Payments

	first := &models.Payment{AppointmentID: a.ID, PatientID: f.patient.ID, Amount: a.TotalAmount, Method: models.MethodCard, Status: models.PaymentPending}
	require.NoError(t, repo.Create(ctx, first))

	second := &models.Payment{AppointmentID: a.ID, PatientID: f.patient.ID, Amount: a.TotalAmount, Method: models.MethodWallet, Status: models.PaymentCompleted}
	assert.ErrorIs(t, repo.Create(ctx, second), apperr.ErrConflict)

	_, err := repo.UpdateStatus(ctx, first.ID, models.PaymentPending, models.PaymentFailed)
	require.NoError(t, err)
	assert.NoError(t, repo.Create(ctx, second))
}

func TestFailedCardPaymentAllowsRetry(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	a := f.appointment(t, models.StatusPending, "30.00")

	pay, err := f.svc.Pay(ctx, f.actor(), a.ID, PayRequest{Method: models.MethodCard})
	require.NoError(t, err)
	_, err = f.svc.Settle(ctx, pay.ID, SettleRequest{Status: models.PaymentFailed})
	require.NoError(t, err)

	retry, err := f.svc.Pay(ctx, f.actor(), a.ID, PayRequest{Method: models.MethodWallet})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, retry.Status)
}

func TestPayRejections(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	cancelled := f.appointment(t, models.StatusCancelled, "10.00")
	pending := f.appointment(t, models.StatusPending, "10.00")

	_, err := f.svc.Pay(ctx, f.actor(), cancelled.ID, PayRequest{Method: models.MethodWallet})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Pay(ctx, f.actor(), pending.ID, PayRequest{Method: "cash"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	other := identity.Actor{UserID: uuid.New(), Role: models.RolePatient}
	_, err = f.svc.Pay(ctx, other, pending.ID, PayRequest{Method: models.MethodWallet})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.Get(ctx, other, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
