package handlers

import (
	"net/http"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/booking"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/payments"
	"github.com/goldenlife/careconnect/internal/pricing"
	"github.com/goldenlife/careconnect/internal/reviews"
	"github.com/goldenlife/careconnect/internal/storage"
	"github.com/goldenlife/careconnect/pkg/logging"
)

// AppointmentsHandler serves quoting, booking, the appointment lifecycle and
// the per-appointment payment and review sub-resources.
type AppointmentsHandler struct {
	booking  *booking.Service
	pricing  *pricing.Service
	payments *payments.Service
	reviews  *reviews.Service
	logger   *logging.Logger
}

type AppointmentsConfig struct {
	Booking  *booking.Service
	Pricing  *pricing.Service
	Payments *payments.Service
	Reviews  *reviews.Service
	Logger   *logging.Logger
}

func NewAppointmentsHandler(cfg AppointmentsConfig) *AppointmentsHandler {
	if cfg.Booking == nil || cfg.Pricing == nil || cfg.Payments == nil || cfg.Reviews == nil {
		panic("handlers: booking, pricing, payments and reviews services required")
	}
	return &AppointmentsHandler{
		booking:  cfg.Booking,
		pricing:  cfg.Pricing,
		payments: cfg.Payments,
		reviews:  cfg.Reviews,
		logger:   mustLogger(cfg.Logger),
	}
}

// Quote handles POST /api/quotes.
func (h *AppointmentsHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req pricing.QuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	q, err := h.pricing.Quote(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// Book handles POST /api/appointments.
func (h *AppointmentsHandler) Book(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if actor.Role != models.RolePatient {
		writeError(w, r, h.logger, apperr.Forbidden("only patients can book appointments"))
		return
	}
	var req booking.BookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	req.PatientID = actor.UserID
	b, err := h.booking.Book(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// List handles GET /api/appointments?status=&from=&to=&limit=.
func (h *AppointmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	q := r.URL.Query()
	list, err := h.booking.List(r.Context(), actor, storage.AppointmentFilter{
		Status:   models.AppointmentStatus(q.Get("status")),
		FromDate: q.Get("from"),
		ToDate:   q.Get("to"),
		Limit:    limit,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": list})
}

// Get handles GET /api/appointments/{appointmentID}.
func (h *AppointmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := pathUUID(r, "appointmentID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	appt, err := h.booking.Get(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Transition handles POST /api/appointments/{appointmentID}/transitions.
func (h *AppointmentsHandler) Transition(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := pathUUID(r, "appointmentID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req booking.TransitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.booking.Transition(r.Context(), actor, id, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Pay handles POST /api/appointments/{appointmentID}/payments.
func (h *AppointmentsHandler) Pay(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := pathUUID(r, "appointmentID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req payments.PayRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.payments.Pay(r.Context(), actor, id, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	status := http.StatusCreated
	if p.Status == models.PaymentPending {
		status = http.StatusAccepted
	}
	writeJSON(w, status, p)
}

// Review handles POST /api/appointments/{appointmentID}/reviews.
func (h *AppointmentsHandler) Review(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, err := pathUUID(r, "appointmentID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var in reviews.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	rv, err := h.reviews.Create(r.Context(), actor, id, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}
