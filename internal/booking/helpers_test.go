package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/goldenlife/careconnect/internal/identity"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/money"
	"github.com/goldenlife/careconnect/internal/observability/metrics"
	"github.com/goldenlife/careconnect/internal/pricing"
	"github.com/goldenlife/careconnect/internal/slots"
	"github.com/goldenlife/careconnect/internal/storage/memory"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// 2025-03-03 is a Monday.
const testDate = "2025-03-03"

type fixture struct {
	store    *memory.Store
	svc      *Service
	pricing  *pricing.Service
	alloc    *slots.Allocator
	patient  *models.User
	provider *models.Provider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	repos := store.Repos()

	patient := &models.User{Email: "patient@example.com", FirstName: "Pat", Role: models.RolePatient}
	require.NoError(t, repos.Users.Create(ctx, patient))
	providerUser := &models.User{Email: "pt@example.com", FirstName: "Phil", Role: models.RoleProvider}
	require.NoError(t, repos.Users.Create(ctx, providerUser))

	provider := &models.Provider{
		UserID:            providerUser.ID,
		Type:              models.ProviderPhysiotherapist,
		ConsultationFee:   money.Ptr(decimal.NewFromInt(50)),
		HomeVisitFee:      money.Ptr(decimal.NewFromInt(75)),
		Active:            true,
		Verified:          true,
		AvailableDays:     models.Weekdays{models.Monday, models.Tuesday},
		WorkingHoursStart: "08:00",
		WorkingHoursEnd:   "20:00",
	}
	require.NoError(t, repos.Providers.Create(ctx, provider))

	reg := prometheus.NewRegistry()
	m := metrics.NewBookingMetrics(reg)
	now := func() time.Time { return testNow }
	ps := pricing.NewService(pricing.ServiceConfig{UnitOfWork: store, Now: now, Metrics: m})
	return &fixture{
		store:    store,
		svc:      NewService(Config{UnitOfWork: store, Pricing: ps, Metrics: m, Now: now}),
		pricing:  ps,
		alloc:    slots.NewAllocator(store, nil, nil),
		patient:  patient,
		provider: provider,
	}
}

func (f *fixture) makeSlots(t *testing.T, n int) []models.TimeSlot {
	t.Helper()
	windows := make([]slots.Window, 0, n)
	for i := 0; i < n; i++ {
		start := 8*60 + i*30
		windows = append(windows, slots.Window{Start: models.FormatClock(start), End: models.FormatClock(start + 30)})
	}
	created, err := f.alloc.CreateSlots(context.Background(), f.provider.ID, testDate, windows)
	require.NoError(t, err)
	return created
}

func (f *fixture) patientActor() identity.Actor {
	return identity.Actor{UserID: f.patient.ID, Role: models.RolePatient}
}

func (f *fixture) providerActor() identity.Actor {
	return identity.Actor{UserID: f.provider.UserID, Role: models.RoleProvider, ProviderID: f.provider.ID}
}

func adminActor() identity.Actor {
	return identity.Actor{UserID: uuid.New(), Role: models.RoleAdmin}
}

func (f *fixture) book(t *testing.T, slotID uuid.UUID) *models.Appointment {
	t.Helper()
	b, err := f.svc.Book(context.Background(), BookRequest{
		PatientID:  f.patient.ID,
		ProviderID: f.provider.ID,
		SlotID:     slotID,
		VisitType:  models.VisitClinic,
	})
	require.NoError(t, err)
	return b.Appointment
}

func (f *fixture) outboxTypes(t *testing.T) []string {
	t.Helper()
	pending, err := f.store.Repos().Outbox.FetchPending(context.Background(), 1000)
	require.NoError(t, err)
	out := make([]string, 0, len(pending))
	for _, ev := range pending {
		out = append(out, ev.Type)
	}
	return out
}
