package chat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/identity"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/storage/memory"
	"github.com/goldenlife/careconnect/pkg/logging"
)

type recordingResponder struct {
	seen [][]models.ChatMessage
	err  error
}

func (r *recordingResponder) Reply(_ context.Context, history []models.ChatMessage, text string) (string, error) {
	r.seen = append(r.seen, history)
	if r.err != nil {
		return "", r.err
	}
	return "echo: " + text, nil
}

func TestFAQResponderMatchesKeywords(t *testing.T) {
	f := NewFAQResponder()
	ctx := context.Background()

	cases := map[string]string{
		"How do I BOOK a physio?":     "To book",
		"can I get a refund by card?": "Appointments can be paid",
		"where is my wallet balance":  "Your wallet balance",
		"what is the weather":         "I can help with",
	}
	for q, prefix := range cases {
		got, err := f.Reply(ctx, nil, q)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(got, prefix), "%q -> %q", q, got)
	}
}

func TestSendStoresBothSides(t *testing.T) {
	store := memory.New()
	resp := &recordingResponder{}
	svc := NewService(store, resp, logging.New("error"))
	ctx := context.Background()
	actor := identity.Actor{UserID: uuid.New(), Role: models.RolePatient}

	ex, err := svc.Send(ctx, actor, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", ex.Message.Content)
	assert.Equal(t, "echo: hello", ex.Reply.Content)
	assert.Equal(t, models.ChatAssistant, ex.Reply.Role)

	_, err = svc.Send(ctx, actor, "again")
	require.NoError(t, err)
	require.Len(t, resp.seen, 2)
	assert.Len(t, resp.seen[1], 3, "responder sees prior exchange plus the new message")

	hist, err := svc.History(ctx, actor, 0)
	require.NoError(t, err)
	require.Len(t, hist, 4)
	assert.Equal(t, models.ChatUser, hist[0].Role)
	assert.Equal(t, "echo: again", hist[3].Content)

	other, err := svc.History(ctx, identity.Actor{UserID: uuid.New()}, 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSendValidation(t *testing.T) {
	svc := NewService(memory.New(), nil, logging.New("error"))
	actor := identity.Actor{UserID: uuid.New()}

	_, err := svc.Send(context.Background(), actor, "   ")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Send(context.Background(), actor, strings.Repeat("x", maxMessageLength+1))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestResponderFailureKeepsUserMessage(t *testing.T) {
	store := memory.New()
	svc := NewService(store, &recordingResponder{err: errors.New("model offline")}, logging.New("error"))
	actor := identity.Actor{UserID: uuid.New()}

	_, err := svc.Send(context.Background(), actor, "hi")
	require.Error(t, err)
	hist, err := svc.History(context.Background(), actor, 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, models.ChatUser, hist[0].Role)
}

func TestLiveHandlerExchange(t *testing.T) {
	store := memory.New()
	svc := NewService(store, &recordingResponder{}, logging.New("error"))
	actor := identity.Actor{UserID: uuid.New(), Role: models.RolePatient}
	_, err := svc.Send(context.Background(), actor, "earlier")
	require.NoError(t, err)

	live := NewLiveHandler(svc, logging.New("error"))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		live.ServeHTTP(w, r.WithContext(identity.WithActor(r.Context(), actor)))
	}))
	defer srv.Close()

	conn, err := websocket.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), "", srv.URL)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	var frame OutboundFrame
	require.NoError(t, websocket.JSON.Receive(conn, &frame))
	assert.Equal(t, "history", frame.Type)
	require.Len(t, frame.Messages, 2)
	assert.Equal(t, "earlier", frame.Messages[0].Text)

	require.NoError(t, websocket.JSON.Send(conn, InboundFrame{Type: "ping"}))
	require.NoError(t, websocket.JSON.Receive(conn, &frame))
	assert.Equal(t, "pong", frame.Type)

	require.NoError(t, websocket.JSON.Send(conn, InboundFrame{Type: "message", Text: "live"}))
	require.NoError(t, websocket.JSON.Receive(conn, &frame))
	assert.Equal(t, "typing", frame.Type)
	frame = OutboundFrame{}
	require.NoError(t, websocket.JSON.Receive(conn, &frame))
	assert.Equal(t, "message", frame.Type)
	assert.Equal(t, models.ChatAssistant, frame.Role)
	assert.Equal(t, "echo: live", frame.Text)
	assert.Equal(t, 1, live.Connections(actor.UserID))
}

func TestLiveHandlerRequiresActor(t *testing.T) {
	live := NewLiveHandler(NewService(memory.New(), nil, nil), nil)
	rec := httptest.NewRecorder()
	live.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chat/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
