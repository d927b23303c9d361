// Package chat stores a user's conversation with the support assistant and
// serves it over HTTP and a websocket.
package chat

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/goldenlife/careconnect/internal/apperr"
	"github.com/goldenlife/careconnect/internal/identity"
	"github.com/goldenlife/careconnect/internal/models"
	"github.com/goldenlife/careconnect/internal/storage"
	"github.com/goldenlife/careconnect/pkg/logging"
)

const (
	maxMessageLength = 2000
	contextMessages  = 20
	DefaultHistory   = 50
)

// Exchange is one user message and the assistant's reply.
type Exchange struct {
	Message models.ChatMessage `json:"message"`
	Reply   models.ChatMessage `json:"reply"`
}

type Service struct {
	uow       storage.UnitOfWork
	responder Responder
	logger    *logging.Logger
}

func NewService(uow storage.UnitOfWork, responder Responder, logger *logging.Logger) *Service {
	if uow == nil {
		panic("chat: unit of work required")
	}
	if responder == nil {
		responder = NewFAQResponder()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{uow: uow, responder: responder, logger: logger}
}

// Send stores the user's message, asks the responder for a reply and stores
// that too.
func (s *Service) Send(ctx context.Context, actor identity.Actor, content string) (*Exchange, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Validation("content is required")
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, apperr.Validation("content must be at most %d characters", maxMessageLength)
	}
	repos := s.uow.Repos()

	msg := &models.ChatMessage{UserID: actor.UserID, Role: models.ChatUser, Content: content}
	if err := repos.Chat.Append(ctx, msg); err != nil {
		return nil, err
	}
	history, err := repos.Chat.Recent(ctx, actor.UserID, contextMessages)
	if err != nil {
		return nil, err
	}
	text, err := s.responder.Reply(ctx, history, content)
	if err != nil {
		s.logger.Error("chat responder failed", "user_id", actor.UserID, "message", preview(content), "error", err)
		return nil, err
	}
	reply := &models.ChatMessage{UserID: actor.UserID, Role: models.ChatAssistant, Content: text}
	if err := repos.Chat.Append(ctx, reply); err != nil {
		return nil, err
	}
	s.logger.Debug("chat exchange", "user_id", actor.UserID, "message", preview(content))
	return &Exchange{Message: *msg, Reply: *reply}, nil
}

// History returns the latest messages, oldest first.
func (s *Service) History(ctx context.Context, actor identity.Actor, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = DefaultHistory
	}
	return s.uow.Repos().Chat.Recent(ctx, actor.UserID, limit)
}
