package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/goldenlife/careconnect/internal/models"
)

type chatRepo struct {
	db DB
}

func (r *chatRepo) Append(ctx context.Context, m *models.ChatMessage) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	query := `
		INSERT INTO chat_messages (id, user_id, role, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	if err := r.db.QueryRow(ctx, query, m.ID, m.UserID, string(m.Role), m.Content).Scan(&m.CreatedAt); err != nil {
		return fmt.Errorf("postgres: insert chat message: %w", err)
	}
	return nil
}

func (r *chatRepo) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	query := `
		SELECT id, user_id, role, content, created_at FROM (
			SELECT id, user_id, role, content, created_at
			FROM chat_messages
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, userID, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("postgres: list chat messages: %w", err)
	}
	defer rows.Close()

	out := []models.ChatMessage{}
	for rows.Next() {
		var (
			m    models.ChatMessage
			role string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan chat message: %w", err)
		}
		m.Role = models.ChatRole(role)
		out = append(out, m)
	}
	return out, rows.Err()
}
