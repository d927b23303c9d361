package postgres

import (
	"context"
	"fmt"
)

// processedRepo records work a consumer already did, keyed by (consumer, key).
type processedRepo struct {
	db DB
}

func (r *processedRepo) MarkProcessed(ctx context.Context, consumer, key string) (bool, error) {
	query := `
		INSERT INTO processed_events (consumer, event_key)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := r.db.Exec(ctx, query, consumer, key)
	if err != nil {
		return false, fmt.Errorf("postgres: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
