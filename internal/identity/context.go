// Package identity carries the authenticated caller through a request context.
package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/goldenlife/careconnect/internal/models"
)

type ctxKey string

const actorKey ctxKey = "careconnect.actor"

// Actor is the caller on whose behalf an operation runs.
// ProviderID is set only for provider accounts.
type Actor struct {
	UserID     uuid.UUID
	Role       models.Role
	ProviderID uuid.UUID
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// IsPatient reports whether the actor is the given patient.
func (a Actor) IsPatient(patientID uuid.UUID) bool {
	return a.Role == models.RolePatient && a.UserID == patientID
}

// OwnsProvider reports whether the actor is the account behind providerID.
func (a Actor) OwnsProvider(providerID uuid.UUID) bool {
	return a.Role == models.RoleProvider && a.ProviderID != uuid.Nil && a.ProviderID == providerID
}

// WithActor stores the actor in context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext extracts the actor if present.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok && actor.UserID != uuid.Nil
}
