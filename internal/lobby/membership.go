package lobby

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/primepickle/courtside/internal/models"
)

// CreateLobby opens a new lobby owned by the calling organizer.
func (s *Service) CreateLobby(ctx context.Context, id models.Identity) (*models.Lobby, error) {
	if !id.IsOrganizer() {
		return nil, fmt.Errorf("%w: only organizers can create lobbies", ErrForbidden)
	}
	if _, err := s.ensureProfile(ctx, id); err != nil {
		return nil, err
	}

	l := models.NewLobby(id.ID, s.now())
	if err := s.store.InsertLobby(ctx, l); err != nil {
		return nil, fmt.Errorf("insert lobby: %w", err)
	}
	s.lobbyLog(l).Info("lobby created")
	s.publish(ctx, models.EventLobbyCreated, l, id.ID)
	return l, nil
}

// JoinLobby adds the caller to the lobby identified by token.
//
// Joining is idempotent: a caller who is already a member gets the lobby back
// unchanged, whatever its status. The capacity check, the insert and the move to
// full happen under the lobby guard in one store write.
func (s *Service) JoinLobby(ctx context.Context, id models.Identity, token string) (*models.Lobby, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: join token is required", ErrInvalidInput)
	}
	if _, err := s.ensureProfile(ctx, id); err != nil {
		return nil, err
	}

	found, err := s.store.GetLobbyByToken(ctx, token)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: unknown join token", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve join token: %w", err)
	}

	var out *models.Lobby
	err = s.withLock(found.ID, func(ls *LobbyState) error {
		l, changed, err := s.mutateLocked(ctx, found.ID, func(l *models.Lobby) (bool, error) {
			if l.IsMember(id.ID) {
				return false, nil
			}
			// a full lobby reports ErrFull so the loser of a race for the last slot
			// sees the same error whether it lost before or after the transition
			if l.Status == models.StatusFull || (l.Status == models.StatusOpen && l.IsFull()) {
				return false, ErrFull
			}
			if l.Status != models.StatusOpen {
				return false, fmt.Errorf("%w: lobby is %s", ErrInvalidState, l.Status)
			}
			l.AddMember(id.ID, s.now())
			if l.IsFull() {
				l.Status = models.StatusFull
			}
			return true, nil
		})
		if err != nil {
			return err
		}
		out = l
		if !changed {
			return nil
		}

		// the player set changed, so every ready flag was cleared
		if s.manager.CancelCountdownUnsafe(ls) {
			s.lobbyLog(l).Info("countdown cancelled by join")
			s.publish(ctx, models.EventCountdownCancelled, l, id.ID)
		}
		entry := s.lobbyLog(l).WithField("profile_id", id.ID)
		if l.Status == models.StatusFull {
			entry.Info("lobby full")
		} else {
			entry.Info("member joined")
		}
		s.publish(ctx, models.EventMemberJoined, l, id.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
