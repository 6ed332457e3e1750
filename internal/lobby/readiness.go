package lobby

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/primepickle/courtside/internal/models"
	"github.com/sirupsen/logrus"
)

// countdownTimeout bounds the store calls made when a countdown expires.
const countdownTimeout = 10 * time.Second

// ClaimCaptain records the caller as captain of team. Concurrent claims for the same
// team are serialized by the lobby guard; the first wins and the rest get ErrInvalidState.
func (s *Service) ClaimCaptain(ctx context.Context, id models.Identity, lobbyID uuid.UUID, team models.Team) (*models.Lobby, error) {
	if !team.Valid() {
		return nil, fmt.Errorf("%w: team must be A or B", ErrInvalidInput)
	}

	var out *models.Lobby
	err := s.withLock(lobbyID, func(ls *LobbyState) error {
		l, _, err := s.mutateLocked(ctx, lobbyID, func(l *models.Lobby) (bool, error) {
			if !l.AcceptsCoordination() {
				return false, fmt.Errorf("%w: lobby is %s", ErrInvalidState, l.Status)
			}
			if l.Captain(team) != nil {
				return false, fmt.Errorf("%w: team %s already has a captain", ErrInvalidState, team)
			}
			m, ok := l.Member(id.ID)
			if !ok || m.Team() != team {
				return false, fmt.Errorf("%w: not a member of team %s", ErrForbidden, team)
			}
			l.SetCaptain(team, id.ID)
			return true, nil
		})
		if err != nil {
			return err
		}
		out = l
		s.lobbyLog(l).WithFields(logrus.Fields{"team": team, "profile_id": id.ID}).Info("captain claimed")
		s.publish(ctx, models.EventCaptainClaimed, l, id.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetPointGoal changes the match point goal. Only a captain of either team may do so.
func (s *Service) SetPointGoal(ctx context.Context, id models.Identity, lobbyID uuid.UUID, points int) (*models.Lobby, error) {
	if !models.IsAllowedPointGoal(points) {
		return nil, fmt.Errorf("%w: point goal must be one of %v", ErrInvalidInput, models.AllowedPointGoals)
	}

	var out *models.Lobby
	err := s.withLock(lobbyID, func(ls *LobbyState) error {
		l, changed, err := s.mutateLocked(ctx, lobbyID, func(l *models.Lobby) (bool, error) {
			if !l.IsCaptain(id.ID) {
				return false, fmt.Errorf("%w: only captains can change the point goal", ErrForbidden)
			}
			if !l.AcceptsCoordination() {
				return false, fmt.Errorf("%w: lobby is %s", ErrInvalidState, l.Status)
			}
			if l.PointGoal == points {
				return false, nil
			}
			l.PointGoal = points
			return true, nil
		})
		if err != nil {
			return err
		}
		out = l
		if changed {
			s.lobbyLog(l).WithField("point_goal", points).Info("point goal changed")
			s.publish(ctx, models.EventGoalChanged, l, id.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetReady updates the caller's ready flag and arms or cancels the start countdown
// to match the all-ready condition.
func (s *Service) SetReady(ctx context.Context, id models.Identity, lobbyID uuid.UUID, ready bool) (*models.Lobby, error) {
	var out *models.Lobby
	err := s.withLock(lobbyID, func(ls *LobbyState) error {
		l, changed, err := s.mutateLocked(ctx, lobbyID, func(l *models.Lobby) (bool, error) {
			m, ok := l.Member(id.ID)
			if !ok {
				return false, fmt.Errorf("%w: not a member of this lobby", ErrForbidden)
			}
			if !l.AcceptsCoordination() {
				return false, fmt.Errorf("%w: lobby is %s", ErrInvalidState, l.Status)
			}
			if m.Ready == ready {
				return false, nil
			}
			l.SetReady(id.ID, ready)
			return true, nil
		})
		if err != nil {
			return err
		}
		out = l
		if changed {
			s.lobbyLog(l).WithFields(logrus.Fields{"profile_id": id.ID, "ready": ready}).Debug("ready changed")
			s.publish(ctx, models.EventReadyChanged, l, id.ID)
		}
		s.reconcileCountdownUnsafe(ctx, ls, l, id.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CountdownArmed reports whether a start countdown is pending for lobbyID in this process.
func (s *Service) CountdownArmed(lobbyID uuid.UUID) bool {
	var armed bool
	_ = s.withLock(lobbyID, func(ls *LobbyState) error {
		armed = ls.CountdownTimer != nil
		return nil
	})
	return armed
}

// reconcileCountdownUnsafe arms the countdown when l is all ready and cancels it otherwise.
// Assumes ls is locked.
func (s *Service) reconcileCountdownUnsafe(ctx context.Context, ls *LobbyState, l *models.Lobby, actor uuid.UUID) {
	if l.AllReady() && l.AcceptsCoordination() {
		s.armCountdownUnsafe(ctx, ls, l, actor)
		return
	}
	if s.manager.CancelCountdownUnsafe(ls) {
		s.lobbyLog(l).Info("countdown cancelled")
		s.publish(ctx, models.EventCountdownCancelled, l, actor)
	}
}

// armCountdownUnsafe arms the start countdown against the current version of l.
// Assumes ls is locked.
func (s *Service) armCountdownUnsafe(ctx context.Context, ls *LobbyState, l *models.Lobby, actor uuid.UUID) {
	if !s.manager.StartCountdownUnsafe(ls, s.countdown, s.onCountdownExpired) {
		return
	}
	ls.CountdownVersion = l.Version
	s.lobbyLog(l).WithField("countdown", s.countdown).Info("countdown armed")
	s.publish(ctx, models.EventCountdownArmed, l, actor)
}

// onCountdownExpired runs on the timer goroutine. It re-validates the all-ready
// condition against the stored lobby before moving it to playing.
//
// Timers are local to this process, so a lobby may have been un-readied and
// readied again through another instance while this one was counting. Any
// commit since arming shows up as a newer version; the countdown then restarts
// from the stored state instead of cutting the new one short.
func (s *Service) onCountdownExpired(ls *LobbyState, timer *time.Timer) {
	ls.mu.Lock()
	defer s.manager.Release(ls)

	if ls.CountdownTimer != timer {
		s.log.WithField("lobby_id", ls.LobbyID).Debug("stale countdown timer fired, ignoring")
		return
	}
	ls.CountdownTimer = nil
	armed := ls.CountdownVersion

	ctx, cancel := context.WithTimeout(context.Background(), countdownTimeout)
	defer cancel()

	var restart bool
	l, changed, err := s.mutateLocked(ctx, ls.LobbyID, func(l *models.Lobby) (bool, error) {
		if !l.AllReady() || !l.AcceptsCoordination() {
			return false, nil
		}
		if !l.Status.CanTransition(models.StatusPlaying) {
			return false, nil
		}
		if l.Version != armed {
			restart = true
			return false, nil
		}
		l.Status = models.StatusPlaying
		return true, nil
	})
	if err != nil {
		s.log.WithField("lobby_id", ls.LobbyID).Errorf("failed to start match after countdown: %v", err)
		return
	}
	if restart {
		s.lobbyLog(l).WithField("armed_version", armed).Info("lobby changed during countdown, restarting it")
		s.armCountdownUnsafe(ctx, ls, l, uuid.Nil)
		return
	}
	if !changed {
		s.lobbyLog(l).Info("countdown expired but lobby is no longer all ready")
		return
	}
	s.lobbyLog(l).Info("match started")
	s.publish(ctx, models.EventMatchStarted, l, uuid.Nil)
}
