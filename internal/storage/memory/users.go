package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/storage"
)

type userRepo struct{ run runner }

func (r *userRepo) Create(_ context.Context, u *models.User) error {
	return r.run(func(st *state) error {
		for _, existing := range st.users {
			if strings.EqualFold(existing.Email, u.Email) {
				return apperr.Conflict("email %s is already registered", u.Email)
			}
		}
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		now := time.Now().UTC()
		u.CreatedAt, u.UpdatedAt = now, now
		st.users[u.ID] = *u
		return nil
	})
}

func (r *userRepo) Get(_ context.Context, id uuid.UUID) (*models.User, error) {
	var out models.User
	err := r.run(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return apperr.NotFound("user", id.String())
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	var out *models.User
	err := r.run(func(st *state) error {
		for _, u := range st.users {
			if u.Email == email {
				u := u
				out = &u
				return nil
			}
		}
		return apperr.NotFound("user", email)
	})
	return out, err
}

func (r *userRepo) List(_ context.Context, f storage.UserFilter) ([]models.User, error) {
	out := []models.User{}
	err := r.run(func(st *state) error {
		for _, u := range st.users {
			if f.Role != "" && u.Role != f.Role {
				continue
			}
			out = append(out, u)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), err
}

func (r *userRepo) SetRole(_ context.Context, id uuid.UUID, role models.Role) (*models.User, error) {
	var out models.User
	err := r.run(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return apperr.NotFound("user", id.String())
		}
		u.Role = role
		u.UpdatedAt = time.Now().UTC()
		st.users[id] = u
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *userRepo) AdjustWallet(_ context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.run(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return apperr.NotFound("user", id.String())
		}
		next := u.WalletBalance.Add(delta)
		if next.IsNegative() {
			return storage.ErrInsufficientFunds
		}
		u.WalletBalance = next
		u.UpdatedAt = time.Now().UTC()
		st.users[id] = u
		balance = next
		return nil
	})
	return balance, err
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
