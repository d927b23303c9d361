package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/models"
)

type walletRepo struct{ run runner }

func (r *walletRepo) Record(_ context.Context, tx *models.WalletTransaction) error {
	return r.run(func(st *state) error {
		if tx.ID == uuid.Nil {
			tx.ID = uuid.New()
		}
		tx.CreatedAt = time.Now().UTC()
		st.walletTxs = append(st.walletTxs, *tx)
		return nil
	})
}

func (r *walletRepo) List(_ context.Context, userID uuid.UUID, limit int) ([]models.WalletTransaction, error) {
	out := []models.WalletTransaction{}
	err := r.run(func(st *state) error {
		for i := len(st.walletTxs) - 1; i >= 0; i-- {
			if st.walletTxs[i].UserID == userID {
				out = append(out, st.walletTxs[i])
			}
		}
		return nil
	})
	return page(out, limit, 0), err
}

type reviewRepo struct{ run runner }

func (r *reviewRepo) Create(_ context.Context, rv *models.Review) error {
	return r.run(func(st *state) error {
		for _, existing := range st.reviews {
			if existing.AppointmentID == rv.AppointmentID {
				return apperr.Conflict("appointment %s already has a review", rv.AppointmentID)
			}
		}
		if rv.ID == uuid.Nil {
			rv.ID = uuid.New()
		}
		rv.CreatedAt = time.Now().UTC()
		st.reviews[rv.ID] = *rv
		return nil
	})
}

func (r *reviewRepo) ListByProvider(_ context.Context, providerID uuid.UUID, limit, offset int) ([]models.Review, error) {
	out := []models.Review{}
	err := r.run(func(st *state) error {
		for _, rv := range st.reviews {
			if rv.ProviderID == providerID {
				out = append(out, rv)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), err
}

func (r *reviewRepo) Aggregate(_ context.Context, providerID uuid.UUID) (decimal.Decimal, int, error) {
	var (
		sum   int64
		count int
	)
	err := r.run(func(st *state) error {
		for _, rv := range st.reviews {
			if rv.ProviderID == providerID {
				sum += int64(rv.Rating)
				count++
			}
		}
		return nil
	})
	if err != nil || count == 0 {
		return decimal.Zero, 0, err
	}
	return decimal.NewFromInt(sum).Div(decimal.NewFromInt(int64(count))), count, nil
}

type chatRepo struct{ run runner }

func (r *chatRepo) Append(_ context.Context, m *models.ChatMessage) error {
	return r.run(func(st *state) error {
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		m.CreatedAt = time.Now().UTC()
		st.chat = append(st.chat, *m)
		return nil
	})
}

func (r *chatRepo) Recent(_ context.Context, userID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out := []models.ChatMessage{}
	err := r.run(func(st *state) error {
		for _, m := range st.chat {
			if m.UserID == userID {
				out = append(out, m)
			}
		}
		return nil
	})
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, err
}

type outboxRepo struct{ run runner }

func (r *outboxRepo) Insert(_ context.Context, eventType, aggregateID string, payload any) (uuid.UUID, error) {
	data, err := marshalPayload(payload)
	if err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	err = r.run(func(st *state) error {
		st.outbox = append(st.outbox, models.OutboxEvent{
			ID:          id,
			Type:        eventType,
			AggregateID: aggregateID,
			Payload:     data,
			CreatedAt:   time.Now().UTC(),
		})
		return nil
	})
	return id, err
}

func (r *outboxRepo) FetchPending(_ context.Context, limit int32) ([]models.OutboxEvent, error) {
	out := []models.OutboxEvent{}
	err := r.run(func(st *state) error {
		for _, ev := range st.outbox {
			if ev.DeliveredAt != nil {
				continue
			}
			out = append(out, ev)
			if limit > 0 && int32(len(out)) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (r *outboxRepo) MarkDelivered(_ context.Context, id uuid.UUID) (bool, error) {
	var marked bool
	err := r.run(func(st *state) error {
		for i := range st.outbox {
			if st.outbox[i].ID == id && st.outbox[i].DeliveredAt == nil {
				now := time.Now().UTC()
				st.outbox[i].DeliveredAt = &now
				marked = true
				return nil
			}
		}
		return nil
	})
	return marked, err
}

type processedRepo struct{ run runner }

func (r *processedRepo) MarkProcessed(_ context.Context, consumer, key string) (bool, error) {
	var inserted bool
	err := r.run(func(st *state) error {
		k := consumer + "\x00" + key
		if st.processed[k] {
			return nil
		}
		st.processed[k] = true
		inserted = true
		return nil
	})
	return inserted, err
}
