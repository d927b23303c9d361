package handlers

import (
	"net/http"
	"time"

	"github.com/goldenlife/careconnect/internal/http/middleware"
	"github.com/goldenlife/careconnect/internal/identity"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/storage"
	"github.com/goldenlife/careconnect/internal/users"
	"github.com/goldenlife/careconnect/pkg/logging"
)

// AccountsHandler serves registration, login and user administration.
type AccountsHandler struct {
	users    *users.Service
	secret   string
	tokenTTL time.Duration
	logger   *logging.Logger
}

func NewAccountsHandler(svc *users.Service, secret string, tokenTTL time.Duration, logger *logging.Logger) *AccountsHandler {
	if svc == nil {
		panic("handlers: users service required")
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AccountsHandler{users: svc, secret: secret, tokenTTL: tokenTTL, logger: mustLogger(logger)}
}

type TokenResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/users/register.
func (h *AccountsHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in users.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	u, err := h.users.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.issue(w, r, http.StatusCreated, u, identity.Actor{UserID: u.ID, Role: u.Role})
}

// Login handles POST /api/auth/login.
func (h *AccountsHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in LoginRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	u, actor, err := h.users.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.issue(w, r, http.StatusOK, u, actor)
}

func (h *AccountsHandler) issue(w http.ResponseWriter, r *http.Request, status int, u *models.User, actor identity.Actor) {
	token, expires, err := middleware.SignToken(h.secret, actor, h.tokenTTL)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, status, TokenResponse{Token: token, ExpiresAt: expires, User: u})
}

// Me handles GET /api/me.
func (h *AccountsHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	u, err := h.users.Me(r.Context(), actor)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// ListUsers handles GET /api/admin/users.
func (h *AccountsHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	list, err := h.users.List(r.Context(), storage.UserFilter{
		Role:   models.Role(r.URL.Query().Get("role")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": list})
}

// SetRole handles PATCH /api/admin/users/{userID}/role.
func (h *AccountsHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := pathUUID(r, "userID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var body struct {
		Role models.Role `json:"role"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	u, err := h.users.SetRole(r.Context(), actor, id, body.Role)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
