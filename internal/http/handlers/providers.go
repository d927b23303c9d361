package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/identity"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/providers"
	"github.com/goldenlife/careconnect/internal/reviews"
	"github.com/goldenlife/careconnect/internal/slots"
	"github.com/goldenlife/careconnect/internal/storage"
	"github.com/goldenlife/careconnect/pkg/logging"
)

// ProvidersHandler serves provider search and profiles, availability,
// provider self-service and provider administration.
type ProvidersHandler struct {
	providers *providers.Service
	slots     *slots.Allocator
	reviews   *reviews.Service
	logger    *logging.Logger
}

func NewProvidersHandler(p *providers.Service, a *slots.Allocator, rv *reviews.Service, logger *logging.Logger) *ProvidersHandler {
	if p == nil || a == nil || rv == nil {
		panic("handlers: providers, slots and reviews services required")
	}
	return &ProvidersHandler{providers: p, slots: a, reviews: rv, logger: mustLogger(logger)}
}

// Search handles GET /api/providers.
func (h *ProvidersHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := storage.ProviderFilter{
		Type:     models.ProviderType(q.Get("type")),
		City:     q.Get("city"),
		Language: models.Language(q.Get("language")),
	}
	if v := q.Get("verified"); v != "" {
		verified, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, h.logger, apperr.Validation("verified must be true or false"))
			return
		}
		f.VerifiedOnly = verified
	}
	if v := q.Get("min_rating"); v != "" {
		rating, err := decimal.NewFromString(v)
		if err != nil {
			writeError(w, r, h.logger, apperr.Validation("min_rating must be a number"))
			return
		}
		f.MinRating = rating
	}
	var err error
	if f.Limit, err = queryInt(r, "limit", 20); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if f.Offset, err = queryInt(r, "offset", 0); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	list, err := h.providers.Search(r.Context(), f)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": list})
}

// Profile handles GET /api/providers/{providerID}.
func (h *ProvidersHandler) Profile(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "providerID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	prof, err := h.providers.Profile(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}

// Availability handles GET /api/providers/{providerID}/availability?from=&to=.
func (h *ProvidersHandler) Availability(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "providerID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if to == "" {
		to = from
	}
	list, err := h.slots.Availability(r.Context(), id, from, to)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"provider_id": id, "from": from, "to": to, "slots": list})
}

// Reviews handles GET /api/providers/{providerID}/reviews.
func (h *ProvidersHandler) Reviews(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "providerID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	list, err := h.reviews.ListByProvider(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviews": list})
}

// Own handles GET /api/provider/profile.
func (h *ProvidersHandler) Own(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.providers.ForUser(r.Context(), actor.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateOwn handles PUT /api/provider/profile.
func (h *ProvidersHandler) UpdateOwn(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var patch providers.ProfilePatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.providers.UpdateOwn(r.Context(), actor, patch)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// AddOffering handles POST /api/provider/offerings.
func (h *ProvidersHandler) AddOffering(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in providers.OfferingInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	o, err := h.providers.AddOffering(r.Context(), actor, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// UpdateOffering handles PATCH /api/provider/offerings/{offeringID}.
func (h *ProvidersHandler) UpdateOffering(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := pathUUID(r, "offeringID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var patch providers.OfferingPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	o, err := h.providers.UpdateOffering(r.Context(), actor, id, patch)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type CreateSlotsRequest struct {
	ProviderID uuid.UUID      `json:"provider_id"`
	Date       string         `json:"date"`
	Windows    []slots.Window `json:"windows"`
}

type GenerateSlotsRequest struct {
	ProviderID      uuid.UUID `json:"provider_id"`
	Date            string    `json:"date"`
	DurationMinutes int       `json:"duration_minutes"`
}

// slotOwner resolves whose calendar a slot write targets: a provider always
// writes their own, an admin names the provider in the body.
func slotOwner(actor identity.Actor, requested uuid.UUID) (uuid.UUID, error) {
	switch {
	case actor.IsAdmin():
		if requested == uuid.Nil {
			return uuid.Nil, apperr.Validation("provider_id is required")
		}
		return requested, nil
	case actor.Role == models.RoleProvider && actor.ProviderID != uuid.Nil:
		if requested != uuid.Nil && requested != actor.ProviderID {
			return uuid.Nil, apperr.Forbidden("providers can only manage their own slots")
		}
		return actor.ProviderID, nil
	}
	return uuid.Nil, apperr.Forbidden("provider account required")
}

// CreateSlots handles POST /api/provider/slots.
func (h *ProvidersHandler) CreateSlots(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req CreateSlotsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	providerID, err := slotOwner(actor, req.ProviderID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	created, err := h.slots.CreateSlots(r.Context(), providerID, req.Date, req.Windows)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"slots": created})
}

// GenerateSlots handles POST /api/provider/slots/generate.
func (h *ProvidersHandler) GenerateSlots(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req GenerateSlotsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	providerID, err := slotOwner(actor, req.ProviderID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	created, err := h.slots.GenerateDay(r.Context(), providerID, req.Date, req.DurationMinutes)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"slots": created})
}

// Block handles POST /api/provider/slots/{slotID}/block.
func (h *ProvidersHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, true)
}

// Unblock handles POST /api/provider/slots/{slotID}/unblock.
func (h *ProvidersHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, false)
}

func (h *ProvidersHandler) setBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := pathUUID(r, "slotID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var slot *models.TimeSlot
	if blocked {
		slot, err = h.slots.Block(r.Context(), actor, id)
	} else {
		slot, err = h.slots.Unblock(r.Context(), actor, id)
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

// AdminCreate handles POST /api/admin/providers.
func (h *ProvidersHandler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	var in providers.AdminCreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	prof, err := h.providers.AdminCreate(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, prof)
}

// Verify handles POST /api/admin/providers/{providerID}/verify.
func (h *ProvidersHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "providerID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var body struct {
		Verified *bool `json:"verified"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if body.Verified == nil {
		writeError(w, r, h.logger, apperr.Validation("verified is required"))
		return
	}
	p, err := h.providers.SetVerified(r.Context(), id, *body.Verified)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// SetActive handles POST /api/admin/providers/{providerID}/active.
func (h *ProvidersHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "providerID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var body struct {
		Active *bool `json:"active"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if body.Active == nil {
		writeError(w, r, h.logger, apperr.Validation("active is required"))
		return
	}
	p, err := h.providers.SetActive(r.Context(), id, *body.Active)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
