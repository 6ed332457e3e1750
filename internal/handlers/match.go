package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/primepickle/courtside/internal/lobby"
	"github.com/primepickle/courtside/internal/models"
)

type completeMatchRequest struct {
	LobbyID    uuid.UUID   `json:"lobby_id"`
	WinnerTeam models.Team `json:"winner_team"`
	Score      string      `json:"score"`
}

// CompleteMatchHandler settles a lobby and applies the rating changes.
func CompleteMatchHandler(svc *lobby.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		var req completeMatchRequest
		if err := readJSON(w, r, &req); err != nil {
			errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.LobbyID == uuid.Nil {
			errorResponse(w, http.StatusBadRequest, "lobby_id is required")
			return
		}
		m, err := svc.CompleteMatch(r.Context(), id, req.LobbyID, req.WinnerTeam, req.Score)
		if err != nil {
			serviceErrorResponse(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, jsonResponse{
			"message": "match completed and ratings updated",
			"match":   m,
		})
	}
}

// GetMatchHandler returns the settlement record of a completed lobby.
func GetMatchHandler(svc *lobby.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := identity(w, r); !ok {
			return
		}
		lobbyID, ok := lobbyIDParam(w, r)
		if !ok {
			return
		}
		m, err := svc.GetMatch(r.Context(), lobbyID)
		if err != nil {
			serviceErrorResponse(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}
