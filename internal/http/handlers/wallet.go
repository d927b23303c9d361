package handlers

import (
	"net/http"

	"github.com/goldenlife/careconnect/internal/chat"
	"github.com/goldenlife/careconnect/internal/wallet"
	"github.com/goldenlife/careconnect/pkg/logging"
)

// WalletHandler serves the caller's wallet and the chat assistant; both are
// scoped to the authenticated user and nothing else.
type WalletHandler struct {
	wallet *wallet.Service
	chat   *chat.Service
	logger *logging.Logger
}

func NewWalletHandler(ws *wallet.Service, cs *chat.Service, logger *logging.Logger) *WalletHandler {
	if ws == nil || cs == nil {
		panic("handlers: wallet and chat services required")
	}
	return &WalletHandler{wallet: ws, chat: cs, logger: mustLogger(logger)}
}

// Balance handles GET /api/wallet.
func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	sum, err := h.wallet.Balance(r.Context(), actor)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// TopUp handles POST /api/wallet/topup.
func (h *WalletHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req wallet.TopUpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	sum, err := h.wallet.TopUp(r.Context(), actor, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// Transactions handles GET /api/wallet/transactions.
func (h *WalletHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	limit, err := queryInt(r, "limit", wallet.DefaultHistory)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	list, err := h.wallet.History(r.Context(), actor, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": list})
}

type ChatRequest struct {
	Content string `json:"content"`
}

// ChatHistory handles GET /api/chat.
func (h *WalletHandler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	limit, err := queryInt(r, "limit", chat.DefaultHistory)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	msgs, err := h.chat.History(r.Context(), actor, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// ChatSend handles POST /api/chat.
func (h *WalletHandler) ChatSend(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	ex, err := h.chat.Send(r.Context(), actor, req.Content)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}
