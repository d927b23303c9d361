// Package reminders emails patients ahead of confirmed appointments.
package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/storage"
	"github.com/goldenlife/careconnect/pkg/logging"
)

const consumer = "appointment-reminder"

// Reminder sends one reminder.
type Reminder interface {
	Remind(ctx context.Context, appt models.Appointment) error
}

type Job struct {
	uow      storage.UnitOfWork
	reminder Reminder
	lead     time.Duration
	now      func() time.Time
	logger   *logging.Logger
}

func NewJob(uow storage.UnitOfWork, reminder Reminder, lead time.Duration, logger *logging.Logger) *Job {
	if uow == nil || reminder == nil {
		panic("reminders: unit of work and reminder required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if lead <= 0 {
		lead = 24 * time.Hour
	}
	return &Job{uow: uow, reminder: reminder, lead: lead, now: time.Now, logger: logger}
}

// WithClock overrides the time source.
func (j *Job) WithClock(now func() time.Time) *Job {
	if now != nil {
		j.now = now
	}
	return j
}

// Schedule registers the job on c. Each tick runs with ctx.
func (j *Job) Schedule(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		if _, err := j.Run(ctx); err != nil {
			j.logger.Error("reminder run failed", "error", err)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("reminders: schedule %q: %w", spec, err)
	}
	return id, nil
}

// Run reminds every confirmed appointment that starts within the lead time
// and has not been reminded yet. It returns how many reminders were sent.
func (j *Job) Run(ctx context.Context) (int, error) {
	now := j.now().UTC()
	until := now.Add(j.lead)
	repos := j.uow.Repos()

	// Dates are provider-local, so widen the range by a day on each side.
	appts, err := repos.Appointments.List(ctx, storage.AppointmentFilter{
		Status:   models.StatusConfirmed,
		FromDate: now.AddDate(0, 0, -1).Format(models.DateLayout),
		ToDate:   until.AddDate(0, 0, 1).Format(models.DateLayout),
	})
	if err != nil {
		return 0, fmt.Errorf("reminders: list appointments: %w", err)
	}

	locations := make(map[uuid.UUID]*time.Location)
	sent := 0
	for _, appt := range appts {
		loc, ok := locations[appt.ProviderID]
		if !ok {
			loc = time.UTC
			if p, err := repos.Providers.Get(ctx, appt.ProviderID); err == nil {
				loc = p.Location()
			}
			locations[appt.ProviderID] = loc
		}
		start, err := time.ParseInLocation(models.DateLayout+" "+models.ClockLayout, appt.Date+" "+appt.StartTime, loc)
		if err != nil {
			j.logger.Warn("reminder skipped: bad start time", "appointment_id", appt.ID, "error", err)
			continue
		}
		if !start.After(now) || start.After(until) {
			continue
		}
		fresh, err := repos.Processed.MarkProcessed(ctx, consumer, appt.ID.String())
		if err != nil {
			return sent, fmt.Errorf("reminders: mark %s: %w", appt.ID, err)
		}
		if !fresh {
			continue
		}
		if err := j.reminder.Remind(ctx, appt); err != nil {
			j.logger.Error("reminder failed", "appointment_id", appt.ID, "error", err)
			continue
		}
		sent++
		j.logger.Info("reminder sent", "appointment_id", appt.ID, "starts_at", start)
	}
	return sent, nil
}
