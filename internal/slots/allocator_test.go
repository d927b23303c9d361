package slots

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/cache"
	"github.com/goldenlife/careconnect/internal/identity"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/storage"
	"github.com/goldenlife/careconnect/internal/storage/memory"
)

// 2025-03-03 is a Monday, 2025-03-09 a Sunday.
const (
	monday = "2025-03-03"
	sunday = "2025-03-09"
)

func newProvider(t *testing.T, store *memory.Store) *models.Provider {
	t.Helper()
	fee := decimal.NewFromInt(50)
	p := &models.Provider{
		UserID:            uuid.New(),
		Type:              models.ProviderPhysiotherapist,
		AvailableDays:     models.Weekdays{models.Monday, models.Tuesday},
		WorkingHoursStart: "09:00",
		WorkingHoursEnd:   "12:00",
		ConsultationFee:   &fee,
		Active:            true,
	}
	require.NoError(t, store.Repos().Providers.Create(context.Background(), p))
	return p
}

func TestCreateSlotsValidatesWindows(t *testing.T) {
	store := memory.New()
	p := newProvider(t, store)
	alloc := NewAllocator(store, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		date    string
		windows []Window
		want    error
	}{
		{"not an available day", sunday, []Window{{"09:00", "10:00"}}, apperr.ErrInvalidWindow},
		{"before working hours", monday, []Window{{"08:00", "09:30"}}, apperr.ErrInvalidWindow},
		{"after working hours", monday, []Window{{"11:30", "12:30"}}, apperr.ErrInvalidWindow},
		{"end before start", monday, []Window{{"10:00", "09:00"}}, apperr.ErrInvalidWindow},
		{"overlapping request", monday, []Window{{"09:00", "10:00"}, {"09:30", "10:30"}}, apperr.ErrInvalidWindow},
		{"bad clock", monday, []Window{{"9am", "10:00"}}, apperr.ErrInvalidWindow},
		{"bad date", "03/03/2025", []Window{{"09:00", "10:00"}}, apperr.ErrValidation},
		{"no windows", monday, nil, apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := alloc.CreateSlots(ctx, p.ID, tt.date, tt.windows)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	got, err := store.Repos().Slots.ListByProviderDate(ctx, p.ID, monday)
	require.NoError(t, err)
	assert.Empty(t, got, "failed requests must not leave slots behind")
}

func TestCreateSlotsAllOrNothingAgainstExisting(t *testing.T) {
	store := memory.New()
	p := newProvider(t, store)
	alloc := NewAllocator(store, nil, nil)
	ctx := context.Background()

	created, err := alloc.CreateSlots(ctx, p.ID, monday, []Window{{"10:00", "11:00"}, {"09:00", "10:00"}})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "09:00", created[0].StartTime)

	_, err = alloc.CreateSlots(ctx, p.ID, monday, []Window{{"11:00", "12:00"}, {"10:30", "11:00"}})
	assert.ErrorIs(t, err, apperr.ErrInvalidWindow)

	got, err := store.Repos().Slots.ListByProviderDate(ctx, p.ID, monday)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestCreateSlotsUnknownProvider(t *testing.T) {
	alloc := NewAllocator(memory.New(), nil, nil)
	_, err := alloc.CreateSlots(context.Background(), uuid.New(), monday, []Window{{"09:00", "10:00"}})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGenerateDaySkipsExisting(t *testing.T) {
	store := memory.New()
	p := newProvider(t, store)
	alloc := NewAllocator(store, nil, nil)
	ctx := context.Background()

	_, err := alloc.CreateSlots(ctx, p.ID, monday, []Window{{"10:00", "11:00"}})
	require.NoError(t, err)

	created, err := alloc.GenerateDay(ctx, p.ID, monday, 60)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "09:00", created[0].StartTime)
	assert.Equal(t, "11:00", created[1].StartTime)

	_, err = alloc.GenerateDay(ctx, p.ID, monday, 60)
	assert.ErrorIs(t, err, apperr.ErrInvalidWindow)

	_, err = alloc.GenerateDay(ctx, p.ID, monday, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = alloc.GenerateDay(ctx, p.ID, monday, 240)
	assert.ErrorIs(t, err, apperr.ErrInvalidWindow)
}

func TestReserveSlotSucceedsOnceBetweenReleases(t *testing.T) {
	store := memory.New()
	p := newProvider(t, store)
	alloc := NewAllocator(store, nil, nil)
	ctx := context.Background()
	created, err := alloc.CreateSlots(ctx, p.ID, monday, []Window{{"09:00", "10:00"}})
	require.NoError(t, err)
	slotID := created[0].ID

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := alloc.ReserveSlot(ctx, slotID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperr.KindOf(err) == apperr.KindSlotUnavailable:
				conflicts++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)

	require.NoError(t, alloc.ReleaseSlot(ctx, slotID))
	_, err = alloc.ReserveSlot(ctx, slotID)
	assert.NoError(t, err)

	_, err = alloc.ReserveSlot(ctx, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestBlockRequiresOwnerOrAdmin(t *testing.T) {
	store := memory.New()
	p := newProvider(t, store)
	alloc := NewAllocator(store, nil, nil)
	ctx := context.Background()
	created, err := alloc.CreateSlots(ctx, p.ID, monday, []Window{{"09:00", "10:00"}})
	require.NoError(t, err)
	slotID := created[0].ID

	stranger := identity.Actor{UserID: uuid.New(), Role: models.RoleProvider, ProviderID: uuid.New()}
	_, err = alloc.Block(ctx, stranger, slotID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	owner := identity.Actor{UserID: p.UserID, Role: models.RoleProvider, ProviderID: p.ID}
	slot, err := alloc.Block(ctx, owner, slotID)
	require.NoError(t, err)
	assert.True(t, slot.Blocked)

	_, err = alloc.ReserveSlot(ctx, slotID)
	assert.ErrorIs(t, err, apperr.ErrSlotUnavailable)

	admin := identity.Actor{UserID: uuid.New(), Role: models.RoleAdmin}
	slot, err = alloc.Unblock(ctx, admin, slotID)
	require.NoError(t, err)
	assert.False(t, slot.Blocked)
}

func TestAvailabilityOrderingAndCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := memory.New()
	p := newProvider(t, store)
	alloc := NewAllocator(store, cache.New(client, 0, nil), nil)
	ctx := context.Background()

	_, err := alloc.CreateSlots(ctx, p.ID, "2025-03-04", []Window{{"09:00", "10:00"}})
	require.NoError(t, err)
	created, err := alloc.CreateSlots(ctx, p.ID, monday, []Window{{"11:00", "12:00"}, {"09:00", "10:00"}})
	require.NoError(t, err)

	free, err := alloc.Availability(ctx, p.ID, monday, "2025-03-04")
	require.NoError(t, err)
	require.Len(t, free, 3)
	assert.Equal(t, []string{"09:00", "11:00", "09:00"}, []string{free[0].StartTime, free[1].StartTime, free[2].StartTime})
	assert.Equal(t, "2025-03-04", free[2].Date)

	// Reserving bumps the version so the cached page is not served again.
	_, err = alloc.ReserveSlot(ctx, created[0].ID)
	require.NoError(t, err)
	free, err = alloc.Availability(ctx, p.ID, monday, "2025-03-04")
	require.NoError(t, err)
	assert.Len(t, free, 2)
}

func TestAvailabilityValidatesRange(t *testing.T) {
	store := memory.New()
	p := newProvider(t, store)
	alloc := NewAllocator(store, nil, nil)
	ctx := context.Background()

	_, err := alloc.Availability(ctx, p.ID, "2025-03-05", monday)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = alloc.Availability(ctx, p.ID, "2025-01-01", "2025-06-01")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	// 62 calendar days inclusive is the widest range served
	_, err = alloc.Availability(ctx, p.ID, monday, "2025-05-03")
	assert.NoError(t, err)
	_, err = alloc.Availability(ctx, p.ID, monday, "2025-05-04")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = alloc.Availability(ctx, p.ID, "bad", monday)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = alloc.Availability(ctx, uuid.New(), monday, monday)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

// dayLockRecorder notes the order of day locks and existing-slot reads.
type dayLockRecorder struct {
	storage.SlotStore
	calls []string
}

func (d *dayLockRecorder) LockDay(ctx context.Context, providerID uuid.UUID, date string) error {
	d.calls = append(d.calls, "lock "+date)
	return d.SlotStore.LockDay(ctx, providerID, date)
}

func (d *dayLockRecorder) ListByProviderDate(ctx context.Context, providerID uuid.UUID, date string) ([]models.TimeSlot, error) {
	d.calls = append(d.calls, "list "+date)
	return d.SlotStore.ListByProviderDate(ctx, providerID, date)
}

type recordingUnitOfWork struct {
	*memory.Store
	slots *dayLockRecorder
}

func (u recordingUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, r storage.Repos) error) error {
	return u.Store.Do(ctx, func(ctx context.Context, r storage.Repos) error {
		u.slots.SlotStore = r.Slots
		r.Slots = u.slots
		return fn(ctx, r)
	})
}

func TestSlotCreationLocksDayBeforeOverlapCheck(t *testing.T) {
	store := memory.New()
	p := newProvider(t, store)
	rec := &dayLockRecorder{}
	alloc := NewAllocator(recordingUnitOfWork{Store: store, slots: rec}, nil, nil)
	ctx := context.Background()

	_, err := alloc.CreateSlots(ctx, p.ID, monday, []Window{{"09:00", "10:00"}})
	require.NoError(t, err)
	_, err = alloc.GenerateDay(ctx, p.ID, monday, 60)
	require.NoError(t, err)

	assert.Equal(t, []string{"lock " + monday, "list " + monday, "lock " + monday, "list " + monday}, rec.calls)
}
