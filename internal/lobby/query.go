package lobby

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/primepickle/courtside/internal/models"
)

// ListLobbies returns the lobbies visible to the caller: organizers see the lobbies
// they created, players see the lobbies they joined. Most recent first.
func (s *Service) ListLobbies(ctx context.Context, id models.Identity) ([]models.LobbyView, error) {
	var (
		snaps []*Snapshot
		err   error
	)
	if id.IsOrganizer() {
		snaps, err = s.store.ListLobbiesByOrganizer(ctx, id.ID)
	} else {
		snaps, err = s.store.ListLobbiesByMember(ctx, id.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("list lobbies: %w", err)
	}

	views := make([]models.LobbyView, 0, len(snaps))
	for _, snap := range snaps {
		views = append(views, project(snap.Lobby, id, snap.Profiles))
	}
	return views, nil
}

// GetLobby returns one lobby with its ordered players. Status and ratings come
// from the same store snapshot.
func (s *Service) GetLobby(ctx context.Context, id models.Identity, lobbyID uuid.UUID) (*models.LobbyDetail, error) {
	snap, err := s.store.GetLobbySnapshot(ctx, lobbyID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, lobbyID)
	}
	if err != nil {
		return nil, fmt.Errorf("load lobby %s: %w", lobbyID, err)
	}
	view := project(snap.Lobby, id, snap.Profiles)
	return &models.LobbyDetail{Lobby: view, Players: view.Players}, nil
}

// GetMatch returns the settlement record of a completed lobby.
func (s *Service) GetMatch(ctx context.Context, lobbyID uuid.UUID) (*models.Match, error) {
	m, err := s.store.GetMatchByLobby(ctx, lobbyID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no match recorded for lobby %s", ErrNotFound, lobbyID)
	}
	return m, err
}

// Profile returns the caller's profile, provisioning it on first use.
func (s *Service) Profile(ctx context.Context, id models.Identity) (*models.Profile, error) {
	return s.ensureProfile(ctx, id)
}

// project builds the client view of l for viewer. The join token is only
// exposed to the organizer who owns the lobby.
func project(l *models.Lobby, viewer models.Identity, profiles map[uuid.UUID]*models.Profile) models.LobbyView {
	v := models.LobbyView{
		ID:             l.ID,
		OrganizerID:    l.OrganizerID,
		Status:         l.Status,
		PlayerCount:    len(l.Members),
		Players:        make([]models.PlayerView, 0, len(l.Members)),
		TeamACaptainID: l.TeamACaptainID,
		TeamBCaptainID: l.TeamBCaptainID,
		PointGoal:      l.PointGoal,
		CreatedAt:      l.CreatedAt,
		Version:        l.Version,
	}
	if viewer.IsOrganizer() && viewer.ID == l.OrganizerID {
		v.Token = l.Token
	}
	for _, m := range l.Members {
		pv := models.PlayerView{
			ID:       m.ProfileID,
			Team:     m.Team(),
			Ready:    m.Ready,
			JoinedAt: m.JoinedAt,
			Rating:   models.DefaultRating,
		}
		if p, ok := profiles[m.ProfileID]; ok {
			pv.DisplayName = p.DisplayName
			pv.Rating = p.Rating
		}
		v.Players = append(v.Players, pv)
	}
	return v
}
