// internal/handlers/lobby.go
package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/primepickle/courtside/internal/lobby"
	"github.com/primepickle/courtside/internal/models"
)

// CreateLobbyHandler opens a lobby owned by the calling organizer.
func CreateLobbyHandler(svc *lobby.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		l, err := svc.CreateLobby(r.Context(), id)
		if err != nil {
			serviceErrorResponse(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, jsonResponse{
			"id":     l.ID,
			"token":  l.Token,
			"status": l.Status,
		})
	}
}

type joinLobbyRequest struct {
	Token string `json:"token"`
}

// JoinLobbyHandler adds the caller to the lobby behind a join token.
func JoinLobbyHandler(svc *lobby.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		var req joinLobbyRequest
		if err := readJSON(w, r, &req); err != nil {
			errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		l, err := svc.JoinLobby(r.Context(), id, req.Token)
		if err != nil {
			serviceErrorResponse(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, jsonResponse{
			"lobby_id": l.ID,
			"message":  "joined lobby",
		})
	}
}

// ListLobbiesHandler returns the caller's lobbies, most recent first.
func ListLobbiesHandler(svc *lobby.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		views, err := svc.ListLobbies(r.Context(), id)
		if err != nil {
			serviceErrorResponse(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, jsonResponse{"lobbies": views})
	}
}

// GetLobbyHandler returns one lobby with its players in join order.
func GetLobbyHandler(svc *lobby.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		lobbyID, ok := lobbyIDParam(w, r)
		if !ok {
			return
		}
		writeLobbyDetail(w, r, svc, id, lobbyID)
	}
}

type claimCaptainRequest struct {
	Team models.Team `json:"team"`
}

// ClaimCaptainHandler records the caller as captain of a team.
func ClaimCaptainHandler(svc *lobby.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		lobbyID, ok := lobbyIDParam(w, r)
		if !ok {
			return
		}
		var req claimCaptainRequest
		if err := readJSON(w, r, &req); err != nil {
			errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		if _, err := svc.ClaimCaptain(r.Context(), id, lobbyID, req.Team); err != nil {
			serviceErrorResponse(w, r, err)
			return
		}
		writeLobbyDetail(w, r, svc, id, lobbyID)
	}
}

type setReadyRequest struct {
	Ready *bool `json:"ready"`
}

// SetReadyHandler toggles the caller's ready flag.
func SetReadyHandler(svc *lobby.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		lobbyID, ok := lobbyIDParam(w, r)
		if !ok {
			return
		}
		var req setReadyRequest
		if err := readJSON(w, r, &req); err != nil {
			errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Ready == nil {
			errorResponse(w, http.StatusBadRequest, "ready is required")
			return
		}
		if _, err := svc.SetReady(r.Context(), id, lobbyID, *req.Ready); err != nil {
			serviceErrorResponse(w, r, err)
			return
		}
		writeLobbyDetail(w, r, svc, id, lobbyID)
	}
}

type lobbySettingsRequest struct {
	PointGoal int `json:"point_goal"`
}

// UpdateSettingsHandler lets a captain change the point goal.
func UpdateSettingsHandler(svc *lobby.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		lobbyID, ok := lobbyIDParam(w, r)
		if !ok {
			return
		}
		var req lobbySettingsRequest
		if err := readJSON(w, r, &req); err != nil {
			errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		if _, err := svc.SetPointGoal(r.Context(), id, lobbyID, req.PointGoal); err != nil {
			serviceErrorResponse(w, r, err)
			return
		}
		writeLobbyDetail(w, r, svc, id, lobbyID)
	}
}

func writeLobbyDetail(w http.ResponseWriter, r *http.Request, svc *lobby.Service, id models.Identity, lobbyID uuid.UUID) {
	detail, err := svc.GetLobby(r.Context(), id, lobbyID)
	if err != nil {
		serviceErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
