package handlers

import (
	"net/http"

	"github.com/goldenlife/careconnect/internal/payments"
	"github.com/goldenlife/careconnect/internal/pricing"
	"github.com/goldenlife/careconnect/pkg/logging"
)

// AdminHandler serves promo code and pricing override administration and the
// payment gateway callback.
type AdminHandler struct {
	pricing  *pricing.Service
	payments *payments.Service
	logger   *logging.Logger
}

func NewAdminHandler(ps *pricing.Service, pay *payments.Service, logger *logging.Logger) *AdminHandler {
	if ps == nil || pay == nil {
		panic("handlers: pricing and payments services required")
	}
	return &AdminHandler{pricing: ps, payments: pay, logger: mustLogger(logger)}
}

func (h *AdminHandler) ListPromos(w http.ResponseWriter, r *http.Request) {
	list, err := h.pricing.ListPromos(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"promo_codes": list})
}

func (h *AdminHandler) CreatePromo(w http.ResponseWriter, r *http.Request) {
	var in pricing.PromoInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.pricing.CreatePromo(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *AdminHandler) UpdatePromo(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "promoID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var patch pricing.PromoPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.pricing.UpdatePromo(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) DeletePromo(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "promoID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.pricing.DeletePromo(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	list, err := h.pricing.ListOverrides(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pricing_overrides": list})
}

func (h *AdminHandler) CreateOverride(w http.ResponseWriter, r *http.Request) {
	var in pricing.OverrideInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	o, err := h.pricing.CreateOverride(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *AdminHandler) UpdateOverride(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "overrideID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var patch pricing.OverridePatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	o, err := h.pricing.UpdateOverride(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *AdminHandler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "overrideID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.pricing.DeleteOverride(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SettlePayment handles POST /api/admin/payments/{paymentID}/status, the
// stand-in for a card gateway callback.
func (h *AdminHandler) SettlePayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "paymentID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req payments.SettleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := h.payments.Settle(r.Context(), id, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
