// Package users manages accounts: patient registration, the current user
// and admin role changes.
package users

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/identity"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/storage"
	"github.com/goldenlife/careconnect/pkg/logging"
)

// MinPasswordLength is enforced on registration.
const MinPasswordLength = 8

type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
}

type Service struct {
	uow    storage.UnitOfWork
	logger *logging.Logger
}

func NewService(uow storage.UnitOfWork, logger *logging.Logger) *Service {
	if uow == nil {
		panic("users: unit of work required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{uow: uow, logger: logger}
}

// Register creates a patient account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	u, err := NewUser(in, models.RolePatient)
	if err != nil {
		return nil, err
	}
	if err := s.uow.Repos().Users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// NewUser validates in and builds an unsaved user with a bcrypt hash.
func NewUser(in RegisterInput, role models.Role) (*models.User, error) {
	email := NormalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, apperr.Validation("a valid email is required")
	}
	if strings.TrimSpace(in.FirstName) == "" {
		return nil, apperr.Validation("first_name is required")
	}
	if !role.Valid() {
		return nil, apperr.Validation("invalid role %q", role)
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	return &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		Address:      strings.TrimSpace(in.Address),
		City:         strings.TrimSpace(in.City),
		Role:         role,
	}, nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", apperr.Validation("password must be at least %d characters", MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperr.Validation("password cannot be hashed: %v", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Login checks credentials and returns the user with the actor a token is
// issued for. Provider accounts carry their provider profile id.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, identity.Actor, error) {
	repos := s.uow.Repos()
	u, err := repos.Users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, identity.Actor{}, apperr.Unauthenticated("invalid email or password")
		}
		return nil, identity.Actor{}, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		s.logger.Warn("login rejected", "user_id", u.ID)
		return nil, identity.Actor{}, apperr.Unauthenticated("invalid email or password")
	}
	actor := identity.Actor{UserID: u.ID, Role: u.Role}
	if u.Role == models.RoleProvider {
		p, err := repos.Providers.GetByUserID(ctx, u.ID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, identity.Actor{}, err
		}
		if p != nil {
			actor.ProviderID = p.ID
		}
	}
	return u, actor, nil
}

func (s *Service) Me(ctx context.Context, actor identity.Actor) (*models.User, error) {
	return s.uow.Repos().Users.Get(ctx, actor.UserID)
}

func (s *Service) List(ctx context.Context, f storage.UserFilter) ([]models.User, error) {
	if f.Role != "" && !f.Role.Valid() {
		return nil, apperr.Validation("invalid role %q", f.Role)
	}
	return s.uow.Repos().Users.List(ctx, f)
}

// SetRole changes a user's role. Admins cannot demote themselves.
func (s *Service) SetRole(ctx context.Context, actor identity.Actor, id uuid.UUID, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, apperr.Validation("invalid role %q", role)
	}
	if id == actor.UserID && role != models.RoleAdmin {
		return nil, apperr.Validation("admins cannot change their own role")
	}
	u, err := s.uow.Repos().Users.SetRole(ctx, id, role)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user role changed", "user_id", id, "role", role, "actor_id", actor.UserID)
	return u, nil
}
