package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/goldenlife/careconnect/internal/models"
)

type outboxRepo struct {
	db DB
}

func (r *outboxRepo) Insert(ctx context.Context, eventType, aggregateID string, payload any) (uuid.UUID, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("postgres: marshal outbox payload: %w", err)
	}
	id := uuid.New()
	query := `
		INSERT INTO outbox (id, type, aggregate_id, payload)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.Exec(ctx, query, id, eventType, aggregateID, data); err != nil {
		return uuid.Nil, fmt.Errorf("postgres: insert outbox: %w", err)
	}
	return id, nil
}

func (r *outboxRepo) FetchPending(ctx context.Context, limit int32) ([]models.OutboxEvent, error) {
	query := `
		SELECT id, type, aggregate_id, payload, created_at
		FROM outbox
		WHERE delivered_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch pending outbox: %w", err)
	}
	defer rows.Close()

	var events []models.OutboxEvent
	for rows.Next() {
		var (
			ev      models.OutboxEvent
			payload []byte
		)
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.AggregateID, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan outbox: %w", err)
		}
		ev.Payload = append([]byte(nil), payload...)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *outboxRepo) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE outbox
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`
	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("postgres: mark outbox delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}
