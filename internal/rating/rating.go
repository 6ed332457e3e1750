package rating

import (
	"github.com/google/uuid"
	"github.com/primepickle/courtside/internal/models"
)

const (
	// WinDelta is added to the rating of every member of the winning team.
	WinDelta = 20
	// LossDelta is added to the rating of every member of the losing team.
	LossDelta = -15
)

// Outcome is the fixed adjustment produced by settling a match.
type Outcome struct {
	Winner      models.Team
	WinnerDelta int
	LoserDelta  int
}

// Settle returns the rating adjustment for a match won by winner.
// The magnitude is fixed; prior ratings do not influence it and no floor or ceiling is applied.
func Settle(winner models.Team) Outcome {
	return Outcome{
		Winner:      winner,
		WinnerDelta: WinDelta,
		LoserDelta:  LossDelta,
	}
}

// DeltaFor returns the delta applied to a member of team t.
func (o Outcome) DeltaFor(t models.Team) int {
	if t == o.Winner {
		return o.WinnerDelta
	}
	return o.LoserDelta
}

// Changes builds one RatingChange per member of teamA and teamB.
// Teams with fewer than two members are settled as they are.
func (o Outcome) Changes(teamA, teamB []uuid.UUID) []models.RatingChange {
	changes := make([]models.RatingChange, 0, len(teamA)+len(teamB))
	for _, id := range teamA {
		changes = append(changes, models.RatingChange{ProfileID: id, Team: models.TeamA, Delta: o.DeltaFor(models.TeamA)})
	}
	for _, id := range teamB {
		changes = append(changes, models.RatingChange{ProfileID: id, Team: models.TeamB, Delta: o.DeltaFor(models.TeamB)})
	}
	return changes
}
