package chat

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/goldenlife/careconnect/internal/identity"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/pkg/logging"
)

// InboundFrame is what the client sends.
type InboundFrame struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundFrame is what the server sends.
type OutboundFrame struct {
	Type      string          `json:"type"` // "history", "message", "typing", "pong", "error"
	Text      string          `json:"text,omitempty"`
	Role      models.ChatRole `json:"role,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Messages  []HistoryEntry  `json:"messages,omitempty"`
}

type HistoryEntry struct {
	Role      models.ChatRole `json:"role"`
	Text      string          `json:"text"`
	Timestamp string          `json:"timestamp"`
}

// LiveHandler serves the chat exchange over a websocket. A user may hold
// several connections; replies go to the one that asked.
type LiveHandler struct {
	svc    *Service
	logger *logging.Logger

	mu    sync.Mutex
	conns map[uuid.UUID]int
}

func NewLiveHandler(svc *Service, logger *logging.Logger) *LiveHandler {
	if svc == nil {
		panic("chat: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LiveHandler{svc: svc, logger: logger, conns: make(map[uuid.UUID]int)}
}

// ServeHTTP upgrades the request. The caller must already be authenticated.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	websocket.Handler(func(conn *websocket.Conn) {
		h.serve(conn, r, actor)
	}).ServeHTTP(w, r)
}

// Connections reports how many sockets the user has open.
func (h *LiveHandler) Connections(userID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns[userID]
}

func (h *LiveHandler) serve(conn *websocket.Conn, r *http.Request, actor identity.Actor) {
	ctx := r.Context()
	h.track(actor.UserID, 1)
	defer h.track(actor.UserID, -1)

	if msgs, err := h.svc.History(ctx, actor, DefaultHistory); err == nil {
		history := make([]HistoryEntry, 0, len(msgs))
		for _, m := range msgs {
			history = append(history, HistoryEntry{Role: m.Role, Text: m.Content, Timestamp: m.CreatedAt.Format(time.RFC3339)})
		}
		_ = websocket.JSON.Send(conn, OutboundFrame{Type: "history", Messages: history})
	} else {
		h.logger.Error("chat: failed to load history", "user_id", actor.UserID, "error", err)
	}

	h.logger.Info("chat: connection opened", "user_id", actor.UserID)
	for {
		var in InboundFrame
		if err := websocket.JSON.Receive(conn, &in); err != nil {
			h.logger.Debug("chat: connection closed", "user_id", actor.UserID, "error", err)
			return
		}
		if in.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundFrame{Type: "pong"})
			continue
		}
		if in.Type != "message" || strings.TrimSpace(in.Text) == "" {
			continue
		}

		_ = websocket.JSON.Send(conn, OutboundFrame{Type: "typing"})
		ex, err := h.svc.Send(ctx, actor, in.Text)
		if err != nil {
			h.logger.Warn("chat: message failed", "user_id", actor.UserID, "error", err)
			_ = websocket.JSON.Send(conn, OutboundFrame{Type: "error", Text: "Sorry, something went wrong. Please try again."})
			continue
		}
		_ = websocket.JSON.Send(conn, OutboundFrame{
			Type:      "message",
			Role:      ex.Reply.Role,
			Text:      ex.Reply.Content,
			Timestamp: ex.Reply.CreatedAt.Format(time.RFC3339),
		})
	}
}

func (h *LiveHandler) track(userID uuid.UUID, delta int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[userID] += delta
	if h.conns[userID] <= 0 {
		delete(h.conns, userID)
	}
}
