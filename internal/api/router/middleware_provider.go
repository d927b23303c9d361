package router

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/goldenlife/careconnect/internal/identity"
)

// requireProviderProfile rejects provider tokens that carry no provider
// profile id. Admins pass through.
func requireProviderProfile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := identity.ActorFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated", "message": "authentication required"})
			return
		}
		if actor.IsAdmin() {
			next.ServeHTTP(w, r)
			return
		}
		if actor.ProviderID == uuid.Nil {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden", "message": "no provider profile is linked to this account"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
