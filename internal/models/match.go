// internal/models/match.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Match is the immutable settlement record written when a lobby completes.
type Match struct {
	ID          uuid.UUID `json:"id"`
	LobbyID     uuid.UUID `json:"lobby_id"`
	WinningTeam Team      `json:"winner_team"`
	Score       string    `json:"score"`
	RatingDelta int       `json:"mmr_delta"`
	CreatedAt   time.Time `json:"created_at"`
}

// RatingChange is the adjustment applied to one profile by a settlement.
type RatingChange struct {
	ProfileID uuid.UUID `json:"profile_id"`
	Team      Team      `json:"team"`
	Delta     int       `json:"delta"`
}
