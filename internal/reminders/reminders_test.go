package reminders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/storage/memory"
	"github.com/goldenlife/careconnect/pkg/logging"
)

type recorder struct {
	mu   sync.Mutex
	ids  []uuid.UUID
	fail bool
}

func (r *recorder) Remind(_ context.Context, appt models.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("smtp down")
	}
	r.ids = append(r.ids, appt.ID)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

var now = time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

func seed(t *testing.T, store *memory.Store, providerID uuid.UUID, date, start string, status models.AppointmentStatus) *models.Appointment {
	t.Helper()
	a := &models.Appointment{PatientID: uuid.New(), ProviderID: providerID, Date: date, StartTime: start, EndTime: start, Status: status}
	require.NoError(t, store.Repos().Appointments.Create(context.Background(), a))
	return a
}

func TestRunRemindsOncePerAppointment(t *testing.T) {
	store := memory.New()
	provider := &models.Provider{UserID: uuid.New(), Type: models.ProviderNurse, Timezone: "UTC", WorkingHoursStart: "08:00", WorkingHoursEnd: "20:00"}
	require.NoError(t, store.Repos().Providers.Create(context.Background(), provider))

	soon := seed(t, store, provider.ID, "2025-03-03", "14:00", models.StatusConfirmed)
	tomorrow := seed(t, store, provider.ID, "2025-03-04", "07:30", models.StatusConfirmed)
	seed(t, store, provider.ID, "2025-03-03", "07:00", models.StatusConfirmed)
	seed(t, store, provider.ID, "2025-03-05", "09:00", models.StatusConfirmed)
	seed(t, store, provider.ID, "2025-03-03", "15:00", models.StatusPending)

	rec := &recorder{}
	job := NewJob(store, rec, 24*time.Hour, logging.New("error")).WithClock(func() time.Time { return now })

	sent, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.ElementsMatch(t, []uuid.UUID{soon.ID, tomorrow.ID}, rec.ids)

	sent, err = job.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestRunSkipsFailedSends(t *testing.T) {
	store := memory.New()
	seed(t, store, uuid.New(), "2025-03-03", "10:00", models.StatusConfirmed)

	job := NewJob(store, &recorder{fail: true}, time.Hour*4, logging.New("error")).WithClock(func() time.Time { return now })
	sent, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestScheduleRunsOnCron(t *testing.T) {
	store := memory.New()
	seed(t, store, uuid.New(), "2025-03-03", "09:00", models.StatusConfirmed)
	rec := &recorder{}
	job := NewJob(store, rec, 2*time.Hour, logging.New("error")).WithClock(func() time.Time { return now })

	c := cron.New(cron.WithSeconds())
	_, err := job.Schedule(context.Background(), c, "* * * * * *")
	require.NoError(t, err)
	c.Start()
	defer c.Stop()

	assert.Eventually(t, func() bool { return rec.count() == 1 }, 3*time.Second, 20*time.Millisecond)

	_, err = job.Schedule(context.Background(), cron.New(), "not a spec")
	assert.Error(t, err)
}
