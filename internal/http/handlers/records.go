package handlers

import (
	"net/http"

	"github.com/goldenlife/careconnect/internal/records"
	"github.com/goldenlife/careconnect/pkg/logging"
)

// RecordsHandler serves the calling patient's health records.
type RecordsHandler struct {
	records *records.Service
	logger  *logging.Logger
}

func NewRecordsHandler(svc *records.Service, logger *logging.Logger) *RecordsHandler {
	if svc == nil {
		panic("handlers: records service required")
	}
	return &RecordsHandler{records: svc, logger: mustLogger(logger)}
}

// List handles GET /api/health-records.
func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	limit, err := queryInt(r, "limit", records.DefaultPageSize)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	list, err := h.records.List(r.Context(), actor, limit, offset)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": list})
}

// Create handles POST /api/health-records.
func (h *RecordsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req records.CreateInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	rec, err := h.records.Create(r.Context(), actor, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// Get handles GET /api/health-records/{recordID}.
func (h *RecordsHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := pathUUID(r, "recordID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	rec, err := h.records.Get(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Delete handles DELETE /api/health-records/{recordID}.
func (h *RecordsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := pathUUID(r, "recordID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.records.Delete(r.Context(), actor, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
