package lobby

import (
	"context"

	"github.com/google/uuid"
	"github.com/primepickle/courtside/internal/models"
)

// Store is the record store the engine persists lobbies, profiles and matches through.
//
// Reads return detached copies that reflect one consistent snapshot of a lobby.
// Writes of a lobby are compare-and-swap on Lobby.Version: the write succeeds only if
// the stored version still equals the version that was read, and on success the
// store increments Version on the passed lobby. A stale write returns ErrVersionConflict.
type Store interface {
	// EnsureProfile inserts p if no profile with its id exists and returns the stored profile.
	EnsureProfile(ctx context.Context, p *models.Profile) (*models.Profile, error)
	// GetProfiles returns the stored profiles for ids. Unknown ids are omitted.
	GetProfiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Profile, error)

	InsertLobby(ctx context.Context, l *models.Lobby) error
	GetLobby(ctx context.Context, id uuid.UUID) (*models.Lobby, error)
	GetLobbyByToken(ctx context.Context, token string) (*models.Lobby, error)
	// GetLobbySnapshot returns a lobby together with its members' profiles.
	GetLobbySnapshot(ctx context.Context, id uuid.UUID) (*Snapshot, error)
	// ListLobbiesByOrganizer returns lobbies created by organizerID, most recent first.
	ListLobbiesByOrganizer(ctx context.Context, organizerID uuid.UUID) ([]*Snapshot, error)
	// ListLobbiesByMember returns lobbies profileID has joined, most recent first.
	ListLobbiesByMember(ctx context.Context, profileID uuid.UUID) ([]*Snapshot, error)

	// UpdateLobby persists status, captains, point goal and memberships of l.
	UpdateLobby(ctx context.Context, l *models.Lobby) error

	// CommitSettlement applies every rating change, inserts m and persists l as one
	// atomic unit. Either all of it becomes visible or none of it does.
	CommitSettlement(ctx context.Context, l *models.Lobby, m *models.Match, changes []models.RatingChange) error
	GetMatchByLobby(ctx context.Context, lobbyID uuid.UUID) (*models.Match, error)

	Ping(ctx context.Context) error
}

// Snapshot is a lobby and the profiles of its members as of one instant, so a
// settlement is either fully visible in it (status and ratings) or not at all.
type Snapshot struct {
	Lobby    *models.Lobby
	Profiles map[uuid.UUID]*models.Profile
}

// MemberIDs returns the profile ids of the lobby's members in join order.
func (s *Snapshot) MemberIDs() []uuid.UUID {
	return memberIDs(s.Lobby)
}

func memberIDs(l *models.Lobby) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(l.Members))
	for _, m := range l.Members {
		ids = append(ids, m.ProfileID)
	}
	return ids
}

// Notifier receives an event after every committed lobby change.
type Notifier interface {
	Publish(ctx context.Context, ev models.LobbyEvent) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev models.LobbyEvent) error

func (f NotifierFunc) Publish(ctx context.Context, ev models.LobbyEvent) error { return f(ctx, ev) }
