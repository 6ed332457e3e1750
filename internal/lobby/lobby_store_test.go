package lobby

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/primepickle/courtside/internal/models"
	"github.com/primepickle/courtside/internal/rating"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLobby(t *testing.T, s *MemoryStore, members int) *models.Lobby {
	t.Helper()
	ctx := context.Background()
	l := models.NewLobby(uuid.New(), time.Now())
	for i := 0; i < members; i++ {
		p, err := s.EnsureProfile(ctx, models.NewProfile(models.Identity{ID: uuid.New(), Role: models.RolePlayer}, time.Now()))
		require.NoError(t, err)
		l.AddMember(p.ID, time.Now())
	}
	require.NoError(t, s.InsertLobby(ctx, l))
	return l
}

func TestMemoryStoreVersionCheck(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	l := seedLobby(t, s, 1)

	a, err := s.GetLobby(ctx, l.ID)
	require.NoError(t, err)
	b, err := s.GetLobby(ctx, l.ID)
	require.NoError(t, err)

	a.PointGoal = 15
	require.NoError(t, s.UpdateLobby(ctx, a))
	assert.Equal(t, int64(1), a.Version)

	b.PointGoal = 21
	assert.ErrorIs(t, s.UpdateLobby(ctx, b), ErrVersionConflict)

	got, err := s.GetLobby(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, got.PointGoal)

	assert.ErrorIs(t, s.UpdateLobby(ctx, models.NewLobby(uuid.New(), time.Now())), ErrRecordNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	l := seedLobby(t, s, 2)

	got, err := s.GetLobby(ctx, l.ID)
	require.NoError(t, err)
	got.Members[0].Ready = true
	got.Status = models.StatusPlaying

	again, err := s.GetLobby(ctx, l.ID)
	require.NoError(t, err)
	assert.False(t, again.Members[0].Ready)
	assert.Equal(t, models.StatusOpen, again.Status)
}

func TestMemoryStoreSettlementIsAtomic(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	l := seedLobby(t, s, 2)

	l.Status = models.StatusCompleted
	m := &models.Match{ID: uuid.New(), LobbyID: l.ID, WinningTeam: models.TeamA, RatingDelta: 20}
	changes := []models.RatingChange{
		{ProfileID: l.Members[0].ProfileID, Team: models.TeamA, Delta: 20},
		{ProfileID: uuid.New(), Team: models.TeamB, Delta: -15},
	}
	err := s.CommitSettlement(ctx, l, m, changes)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	p, err := s.GetProfiles(ctx, []uuid.UUID{l.Members[0].ProfileID})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultRating, p[l.Members[0].ProfileID].Rating)

	got, err := s.GetLobby(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, got.Status)
	_, err = s.GetMatchByLobby(ctx, l.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	// a valid commit applies everything, a repeat is refused
	require.NoError(t, s.CommitSettlement(ctx, l, m, changes[:1]))
	p, err = s.GetProfiles(ctx, []uuid.UUID{l.Members[0].ProfileID})
	require.NoError(t, err)
	assert.Equal(t, 1020, p[l.Members[0].ProfileID].Rating)
	assert.Equal(t, 1, p[l.Members[0].ProfileID].GamesPlayed)

	assert.ErrorIs(t, s.CommitSettlement(ctx, l, m, changes[:1]), ErrVersionConflict)
}

func TestMemoryStoreListsByOwnerAndMember(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	a := seedLobby(t, s, 1)
	b := seedLobby(t, s, 0)

	got, err := s.ListLobbiesByOrganizer(ctx, a.OrganizerID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].Lobby.ID)
	assert.Len(t, got[0].Profiles, 1)

	got, err = s.ListLobbiesByMember(ctx, a.Members[0].ProfileID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []uuid.UUID{a.Members[0].ProfileID}, got[0].MemberIDs())

	got, err = s.ListLobbiesByMember(ctx, b.OrganizerID)
	require.NoError(t, err)
	assert.Empty(t, got)

	byToken, err := s.GetLobbyByToken(ctx, b.Token)
	require.NoError(t, err)
	assert.Equal(t, b.ID, byToken.ID)
}

func TestEnsureProfileKeepsExisting(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id := models.Identity{ID: uuid.New(), Role: models.RolePlayer, DisplayName: "first"}

	_, err := s.EnsureProfile(ctx, models.NewProfile(id, time.Now()))
	require.NoError(t, err)

	id.DisplayName = "second"
	p, err := s.EnsureProfile(ctx, models.NewProfile(id, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "first", p.DisplayName)
}

func TestSnapshotSeesSettlementWhole(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	l := seedLobby(t, s, 2)

	snap, err := s.GetLobbySnapshot(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, snap.Lobby.Status)
	for _, id := range snap.MemberIDs() {
		assert.Equal(t, models.DefaultRating, snap.Profiles[id].Rating)
	}

	l.Status = models.StatusCompleted
	m := &models.Match{ID: uuid.New(), LobbyID: l.ID, WinningTeam: models.TeamA, RatingDelta: 20}
	changes := rating.Settle(models.TeamA).Changes(l.TeamMembers(models.TeamA), l.TeamMembers(models.TeamB))
	require.NoError(t, s.CommitSettlement(ctx, l, m, changes))

	// the earlier snapshot is a copy and stays as it was
	assert.Equal(t, models.StatusOpen, snap.Lobby.Status)
	assert.Equal(t, models.DefaultRating, snap.Profiles[l.Members[0].ProfileID].Rating)

	snap, err = s.GetLobbySnapshot(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, snap.Lobby.Status)
	for _, id := range snap.MemberIDs() {
		assert.Equal(t, 1020, snap.Profiles[id].Rating)
	}

	_, err = s.GetLobbySnapshot(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestMemoryStoreRejectsUnknownStatus(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	bad := models.NewLobby(uuid.New(), time.Now())
	bad.Status = models.LobbyStatus("archived")
	assert.Error(t, s.InsertLobby(ctx, bad))
	_, err := s.GetLobby(ctx, bad.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	l := seedLobby(t, s, 0)
	l.Status = models.LobbyStatus("archived")
	assert.Error(t, s.UpdateLobby(ctx, l))
	assert.Equal(t, int64(0), l.Version)

	got, err := s.GetLobby(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, got.Status)
}
