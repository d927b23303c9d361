// Package slots owns provider availability: creating time slots inside
// working hours, reserving and releasing them for bookings, and serving the
// bookable calendar.
package slots

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/cache"
	"github.com/goldenlife/careconnect/internal/identity"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/storage"
	"github.com/goldenlife/careconnect/pkg/logging"
)

// MaxAvailabilityDays caps the inclusive range served by Availability.
const MaxAvailabilityDays = 62

// Window is a requested slot interval in the provider's local clock (HH:MM).
type Window struct {
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

type interval struct {
	start, end int
}

func (a interval) overlaps(b interval) bool {
	return a.start < b.end && b.start < a.end
}

// Allocator validates and mutates provider time slots.
type Allocator struct {
	uow    storage.UnitOfWork
	cache  *cache.Cache
	logger *logging.Logger
}

func NewAllocator(uow storage.UnitOfWork, c *cache.Cache, logger *logging.Logger) *Allocator {
	if uow == nil {
		panic("slots: unit of work required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Allocator{uow: uow, cache: c, logger: logger}
}

// CreateSlots inserts every window or none of them.
func (a *Allocator) CreateSlots(ctx context.Context, providerID uuid.UUID, date string, windows []Window) ([]models.TimeSlot, error) {
	if len(windows) == 0 {
		return nil, apperr.Validation("at least one window is required")
	}
	var created []models.TimeSlot
	err := a.uow.Do(ctx, func(ctx context.Context, r storage.Repos) error {
		provider, day, err := loadWorkingDay(ctx, r, providerID, date)
		if err != nil {
			return err
		}
		if err := r.Slots.LockDay(ctx, providerID, date); err != nil {
			return err
		}
		requested := make([]interval, 0, len(windows))
		for _, w := range windows {
			iv, err := parseWindow(w)
			if err != nil {
				return err
			}
			if iv.start < day.start || iv.end > day.end {
				return apperr.InvalidWindow("window %s-%s is outside working hours %s-%s",
					w.Start, w.End, provider.WorkingHoursStart, provider.WorkingHoursEnd)
			}
			requested = append(requested, iv)
		}
		sort.Slice(requested, func(i, j int) bool { return requested[i].start < requested[j].start })
		for i := 1; i < len(requested); i++ {
			if requested[i].overlaps(requested[i-1]) {
				return apperr.InvalidWindow("windows starting %s and %s overlap",
					models.FormatClock(requested[i-1].start), models.FormatClock(requested[i].start))
			}
		}
		existing, err := existingIntervals(ctx, r, providerID, date)
		if err != nil {
			return err
		}
		for _, iv := range requested {
			for _, ex := range existing {
				if iv.overlaps(ex) {
					return apperr.InvalidWindow("window %s-%s overlaps an existing slot",
						models.FormatClock(iv.start), models.FormatClock(iv.end))
				}
			}
		}
		created = buildSlots(providerID, date, requested)
		return r.Slots.CreateBatch(ctx, created)
	})
	if err != nil {
		return nil, err
	}
	a.cache.InvalidateAvailability(ctx, providerID)
	a.logger.Info("slots created", "provider_id", providerID, "date", date, "count", len(created))
	return created, nil
}

// GenerateDay fills the provider's working hours on date with consecutive
// slots of the given length, skipping windows that collide with slots that
// already exist.
func (a *Allocator) GenerateDay(ctx context.Context, providerID uuid.UUID, date string, durationMinutes int) ([]models.TimeSlot, error) {
	if durationMinutes <= 0 {
		return nil, apperr.Validation("duration_minutes must be positive")
	}
	var created []models.TimeSlot
	err := a.uow.Do(ctx, func(ctx context.Context, r storage.Repos) error {
		_, day, err := loadWorkingDay(ctx, r, providerID, date)
		if err != nil {
			return err
		}
		if durationMinutes > day.end-day.start {
			return apperr.InvalidWindow("duration %d exceeds working hours", durationMinutes)
		}
		if err := r.Slots.LockDay(ctx, providerID, date); err != nil {
			return err
		}
		existing, err := existingIntervals(ctx, r, providerID, date)
		if err != nil {
			return err
		}
		var free []interval
	next:
		for start := day.start; start+durationMinutes <= day.end; start += durationMinutes {
			iv := interval{start: start, end: start + durationMinutes}
			for _, ex := range existing {
				if iv.overlaps(ex) {
					continue next
				}
			}
			free = append(free, iv)
		}
		if len(free) == 0 {
			return apperr.InvalidWindow("no free windows left on %s", date)
		}
		created = buildSlots(providerID, date, free)
		return r.Slots.CreateBatch(ctx, created)
	})
	if err != nil {
		return nil, err
	}
	a.cache.InvalidateAvailability(ctx, providerID)
	a.logger.Info("slots generated", "provider_id", providerID, "date", date, "count", len(created))
	return created, nil
}

// ReserveSlot books a free slot outside any wider transaction.
func (a *Allocator) ReserveSlot(ctx context.Context, slotID uuid.UUID) (*models.TimeSlot, error) {
	slot, err := Reserve(ctx, a.uow.Repos().Slots, slotID)
	if err != nil {
		return nil, err
	}
	a.cache.InvalidateAvailability(ctx, slot.ProviderID)
	return slot, nil
}

// ReleaseSlot frees a booked slot outside any wider transaction.
func (a *Allocator) ReleaseSlot(ctx context.Context, slotID uuid.UUID) error {
	slots := a.uow.Repos().Slots
	slot, err := slots.Get(ctx, slotID)
	if err != nil {
		return err
	}
	if err := Release(ctx, slots, slotID); err != nil {
		return err
	}
	a.cache.InvalidateAvailability(ctx, slot.ProviderID)
	return nil
}

func (a *Allocator) Block(ctx context.Context, actor identity.Actor, slotID uuid.UUID) (*models.TimeSlot, error) {
	return a.setBlocked(ctx, actor, slotID, true)
}

func (a *Allocator) Unblock(ctx context.Context, actor identity.Actor, slotID uuid.UUID) (*models.TimeSlot, error) {
	return a.setBlocked(ctx, actor, slotID, false)
}

func (a *Allocator) setBlocked(ctx context.Context, actor identity.Actor, slotID uuid.UUID, blocked bool) (*models.TimeSlot, error) {
	var out *models.TimeSlot
	err := a.uow.Do(ctx, func(ctx context.Context, r storage.Repos) error {
		slot, err := r.Slots.Get(ctx, slotID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && !actor.OwnsProvider(slot.ProviderID) {
			return apperr.Forbidden("slot %s belongs to another provider", slotID)
		}
		out, err = r.Slots.SetBlocked(ctx, slotID, blocked)
		return err
	})
	if err != nil {
		return nil, err
	}
	a.cache.InvalidateAvailability(ctx, out.ProviderID)
	a.logger.Info("slot block changed", "slot_id", slotID, "blocked", blocked, "actor_id", actor.UserID)
	return out, nil
}

// Availability lists bookable slots with from <= date <= to, ordered by date
// then start time.
func (a *Allocator) Availability(ctx context.Context, providerID uuid.UUID, from, to string) ([]models.TimeSlot, error) {
	fromDate, err := models.ParseDate(from)
	if err != nil {
		return nil, apperr.Validation("from: %v", err)
	}
	toDate, err := models.ParseDate(to)
	if err != nil {
		return nil, apperr.Validation("to: %v", err)
	}
	if toDate.Before(fromDate) {
		return nil, apperr.Validation("from must not be after to")
	}
	if toDate.Sub(fromDate) >= MaxAvailabilityDays*24*time.Hour {
		return nil, apperr.Validation("range exceeds %d days", MaxAvailabilityDays)
	}
	cached, version, ok := a.cache.GetAvailability(ctx, providerID, from, to)
	if ok {
		return cached, nil
	}
	repos := a.uow.Repos()
	if _, err := repos.Providers.Get(ctx, providerID); err != nil {
		return nil, err
	}
	free, err := repos.Slots.ListBookable(ctx, providerID, from, to)
	if err != nil {
		return nil, err
	}
	a.cache.SetAvailability(ctx, providerID, version, from, to, free)
	return free, nil
}

// Reserve flips a free slot to booked using the store's conditional write.
// Callers pass the transaction-bound store when the reservation is part of a
// larger unit of work.
func Reserve(ctx context.Context, s storage.SlotStore, slotID uuid.UUID) (*models.TimeSlot, error) {
	return s.Reserve(ctx, slotID)
}

// Release returns a booked slot to the free pool. Blocked stays as it was.
func Release(ctx context.Context, s storage.SlotStore, slotID uuid.UUID) error {
	return s.Release(ctx, slotID)
}

func loadWorkingDay(ctx context.Context, r storage.Repos, providerID uuid.UUID, date string) (*models.Provider, interval, error) {
	provider, err := r.Providers.Get(ctx, providerID)
	if err != nil {
		return nil, interval{}, err
	}
	day, err := models.ParseDate(date)
	if err != nil {
		return nil, interval{}, apperr.Validation("date: %v", err)
	}
	if !provider.AvailableDays.Contains(models.WeekdayOf(day)) {
		return nil, interval{}, apperr.InvalidWindow("%s is not one of the provider's available days", models.WeekdayOf(day))
	}
	start, err := models.ParseClock(provider.WorkingHoursStart)
	if err != nil {
		return nil, interval{}, apperr.InvalidWindow("provider working hours start: %v", err)
	}
	end, err := models.ParseClock(provider.WorkingHoursEnd)
	if err != nil {
		return nil, interval{}, apperr.InvalidWindow("provider working hours end: %v", err)
	}
	return provider, interval{start: start, end: end}, nil
}

func parseWindow(w Window) (interval, error) {
	start, err := models.ParseClock(w.Start)
	if err != nil {
		return interval{}, apperr.InvalidWindow("start %q: %v", w.Start, err)
	}
	end, err := models.ParseClock(w.End)
	if err != nil {
		return interval{}, apperr.InvalidWindow("end %q: %v", w.End, err)
	}
	if start >= end {
		return interval{}, apperr.InvalidWindow("window %s-%s must start before it ends", w.Start, w.End)
	}
	return interval{start: start, end: end}, nil
}

func existingIntervals(ctx context.Context, r storage.Repos, providerID uuid.UUID, date string) ([]interval, error) {
	current, err := r.Slots.ListByProviderDate(ctx, providerID, date)
	if err != nil {
		return nil, err
	}
	out := make([]interval, 0, len(current))
	for _, s := range current {
		start, err1 := models.ParseClock(s.StartTime)
		end, err2 := models.ParseClock(s.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, interval{start: start, end: end})
	}
	return out, nil
}

func buildSlots(providerID uuid.UUID, date string, ivs []interval) []models.TimeSlot {
	out := make([]models.TimeSlot, 0, len(ivs))
	for _, iv := range ivs {
		out = append(out, models.TimeSlot{
			ID:         uuid.New(),
			ProviderID: providerID,
			Date:       date,
			StartTime:  models.FormatClock(iv.start),
			EndTime:    models.FormatClock(iv.end),
		})
	}
	return out
}
