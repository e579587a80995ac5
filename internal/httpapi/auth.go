package httpapi

import (
	"net/http"
	"strings"

	"fairq/queue-service/internal/store"
)

// actorFromRequest reads the identity triple forwarded by the auth
// layer. The service trusts these headers; authenticating them is the
// gateway's job.
func actorFromRequest(r *http.Request) store.Actor {
	actor := store.Actor{
		ID:           strings.TrimSpace(r.Header.Get("X-Actor-ID")),
		Role:         strings.TrimSpace(r.Header.Get("X-Actor-Role")),
		Organization: strings.TrimSpace(r.Header.Get("X-Actor-Org")),
		LocationName: strings.TrimSpace(r.Header.Get("X-Actor-Location")),
	}
	if actor.Role == "" {
		actor.Role = store.RoleCustomer
	}
	return actor
}

func requireActor(w http.ResponseWriter, r *http.Request) (store.Actor, bool) {
	actor := actorFromRequest(r)
	if actor.ID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing actor identity")
		return store.Actor{}, false
	}
	return actor, true
}

func requireStaff(w http.ResponseWriter, r *http.Request) (store.Actor, bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return store.Actor{}, false
	}
	if actor.Role != store.RoleStaff && actor.Role != store.RoleAdmin {
		writeError(w, http.StatusForbidden, "access_denied", "staff role required")
		return store.Actor{}, false
	}
	return actor, true
}
