package lobby

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/primepickle/courtside/internal/models"
	"github.com/primepickle/courtside/internal/rating"
	"github.com/sirupsen/logrus"
)

// maxScoreLen bounds the free-form score string recorded with a match.
const maxScoreLen = 64

// CompleteMatch settles a lobby: every member's rating and match count are adjusted,
// the Match record is written and the lobby moves to completed, all in one store
// commit. The lobby need not have started; only an already completed lobby fails,
// with ErrInvalidState. A pending start countdown is cancelled.
//
// Teams are taken from join order. A team with fewer than two members is settled as
// it is; missing positions are skipped.
func (s *Service) CompleteMatch(ctx context.Context, id models.Identity, lobbyID uuid.UUID, winner models.Team, score string) (*models.Match, error) {
	if !id.IsOrganizer() {
		return nil, fmt.Errorf("%w: only organizers can complete matches", ErrForbidden)
	}
	if !winner.Valid() {
		return nil, fmt.Errorf("%w: winning team must be A or B", ErrInvalidInput)
	}
	score = strings.TrimSpace(score)
	if len(score) > maxScoreLen {
		return nil, fmt.Errorf("%w: score must be at most %d characters", ErrInvalidInput, maxScoreLen)
	}

	var (
		match   *models.Match
		settled *models.Lobby
		changes []models.RatingChange
	)
	err := s.withLock(lobbyID, func(ls *LobbyState) error {
		err := s.retryOnConflict(lobbyID, func() error {
			l, err := s.load(ctx, lobbyID)
			if err != nil {
				return err
			}
			if l.OrganizerID != id.ID {
				return fmt.Errorf("%w: lobby belongs to another organizer", ErrForbidden)
			}
			if l.Status == models.StatusCompleted {
				return fmt.Errorf("%w: match already completed", ErrInvalidState)
			}
			if !l.Status.CanTransition(models.StatusCompleted) {
				return fmt.Errorf("%w: lobby is %s", ErrInvalidState, l.Status)
			}

			outcome := rating.Settle(winner)
			changes = outcome.Changes(l.TeamMembers(models.TeamA), l.TeamMembers(models.TeamB))
			match = &models.Match{
				ID:          uuid.New(),
				LobbyID:     l.ID,
				WinningTeam: winner,
				Score:       score,
				RatingDelta: outcome.WinnerDelta,
				CreatedAt:   s.now(),
			}
			l.Status = models.StatusCompleted
			if err := s.store.CommitSettlement(ctx, l, match, changes); err != nil {
				return err
			}
			settled = l
			return nil
		})
		if err != nil {
			return err
		}
		s.manager.CancelCountdownUnsafe(ls)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.lobbyLog(settled).WithFields(logrus.Fields{
		"match_id": match.ID,
		"winner":   winner,
		"settled":  len(changes),
	}).Info("match settled")
	s.publish(ctx, models.EventMatchCompleted, settled, id.ID)
	return match, nil
}
