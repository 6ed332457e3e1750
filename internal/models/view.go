// internal/models/view.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// PlayerView is one member of a lobby as shown to clients.
type PlayerView struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Rating      int       `json:"mmr"`
	Team        Team      `json:"team"`
	Ready       bool      `json:"is_ready"`
	JoinedAt    time.Time `json:"joined_at"`
}

// LobbyView is the projection of a lobby returned to clients. Token is only
// populated for the organizer who owns the lobby.
type LobbyView struct {
	ID             uuid.UUID    `json:"id"`
	OrganizerID    uuid.UUID    `json:"organizer_id"`
	Status         LobbyStatus  `json:"status"`
	Token          string       `json:"token,omitempty"`
	PlayerCount    int          `json:"player_count"`
	Players        []PlayerView `json:"players"`
	TeamACaptainID *uuid.UUID   `json:"team_a_captain_id"`
	TeamBCaptainID *uuid.UUID   `json:"team_b_captain_id"`
	PointGoal      int          `json:"match_goal"`
	CreatedAt      time.Time    `json:"created_at"`
	Version        int64        `json:"version"`
}

// LobbyDetail is the single-lobby response: the lobby plus its ordered players.
type LobbyDetail struct {
	Lobby   LobbyView    `json:"lobby"`
	Players []PlayerView `json:"players"`
}
