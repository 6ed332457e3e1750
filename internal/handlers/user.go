package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/primepickle/courtside/internal/lobby"
)

// MeHandler returns the caller's profile, creating it on first use.
func MeHandler(svc *lobby.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		p, err := svc.Profile(r.Context(), id)
		if err != nil {
			serviceErrorResponse(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// HealthzHandler reports whether the store is reachable.
func HealthzHandler(svc *lobby.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := svc.Ping(ctx); err != nil {
			errorResponse(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
		writeJSON(w, http.StatusOK, jsonResponse{"status": "ok"})
	}
}
