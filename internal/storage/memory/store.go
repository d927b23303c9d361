// Package memory is an in-process storage backend used for local runs and
// service tests. Transactions serialize on one mutex and roll back by
// restoring a snapshot.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/storage"
)

type state struct {
	users        map[uuid.UUID]models.User
	providers    map[uuid.UUID]models.Provider
	offerings    map[uuid.UUID]models.Offering
	slots        map[uuid.UUID]models.TimeSlot
	promos       map[uuid.UUID]models.PromoCode
	overrides    map[uuid.UUID]models.PricingOverride
	appointments map[uuid.UUID]models.Appointment
	payments     map[uuid.UUID]models.Payment
	walletTxs    []models.WalletTransaction
	reviews      map[uuid.UUID]models.Review
	records      map[uuid.UUID]models.HealthRecord
	chat         []models.ChatMessage
	outbox       []models.OutboxEvent
	processed    map[string]bool
}

func newState() *state {
	return &state{
		users:        map[uuid.UUID]models.User{},
		providers:    map[uuid.UUID]models.Provider{},
		offerings:    map[uuid.UUID]models.Offering{},
		slots:        map[uuid.UUID]models.TimeSlot{},
		promos:       map[uuid.UUID]models.PromoCode{},
		overrides:    map[uuid.UUID]models.PricingOverride{},
		appointments: map[uuid.UUID]models.Appointment{},
		payments:     map[uuid.UUID]models.Payment{},
		reviews:      map[uuid.UUID]models.Review{},
		records:      map[uuid.UUID]models.HealthRecord{},
		processed:    map[string]bool{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// snapshot copies the containers. Entity values are replaced, never mutated
// in place, so a shallow copy of each map is enough to restore.
func (s *state) snapshot() *state {
	return &state{
		users:        cloneMap(s.users),
		providers:    cloneMap(s.providers),
		offerings:    cloneMap(s.offerings),
		slots:        cloneMap(s.slots),
		promos:       cloneMap(s.promos),
		overrides:    cloneMap(s.overrides),
		appointments: cloneMap(s.appointments),
		payments:     cloneMap(s.payments),
		walletTxs:    append([]models.WalletTransaction(nil), s.walletTxs...),
		reviews:      cloneMap(s.reviews),
		records:      cloneMap(s.records),
		chat:         append([]models.ChatMessage(nil), s.chat...),
		outbox:       append([]models.OutboxEvent(nil), s.outbox...),
		processed:    cloneMap(s.processed),
	}
}

// Store is the in-memory unit of work.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ storage.UnitOfWork = (*Store)(nil)

func New() *Store {
	return &Store{st: newState()}
}

// Repos returns stores that lock per call.
func (s *Store) Repos() storage.Repos {
	return s.repos(func(fn func(*state) error) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn(s.st)
	})
}

// Do holds the store lock for the whole of fn and restores the snapshot
// taken on entry when fn fails.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, r storage.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.st.snapshot()
	repos := s.repos(func(op func(*state) error) error {
		return op(s.st)
	})
	if err := fn(ctx, repos); err != nil {
		s.st = saved
		return err
	}
	if err := ctx.Err(); err != nil {
		s.st = saved
		return err
	}
	return nil
}

type runner func(func(*state) error) error

func (s *Store) repos(run runner) storage.Repos {
	return storage.Repos{
		Users:        &userRepo{run: run},
		Providers:    &providerRepo{run: run},
		Offerings:    &offeringRepo{run: run},
		Slots:        &slotRepo{run: run},
		Promos:       &promoRepo{run: run},
		Overrides:    &overrideRepo{run: run},
		Appointments: &appointmentRepo{run: run},
		Payments:     &paymentRepo{run: run},
		Wallets:      &walletRepo{run: run},
		Reviews:      &reviewRepo{run: run},
		Records:      &recordRepo{run: run},
		Chat:         &chatRepo{run: run},
		Outbox:       &outboxRepo{run: run},
		Processed:    &processedRepo{run: run},
	}
}

func marshalPayload(payload any) (json.RawMessage, error) {
	return json.Marshal(payload)
}
