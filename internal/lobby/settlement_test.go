package lobby

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/primepickle/courtside/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) ratings(t *testing.T, ids ...models.Identity) map[uuid.UUID]*models.Profile {
	t.Helper()
	keys := make([]uuid.UUID, len(ids))
	for i, id := range ids {
		keys[i] = id.ID
	}
	out, err := e.store.GetProfiles(context.Background(), keys)
	require.NoError(t, err)
	return out
}

func TestCompleteMatchSettlesRatings(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	ctx := context.Background()
	org := organizer()
	ps := players(4)
	l := env.openLobby(t, org, ps...)
	env.startMatch(t, l.ID, ps)

	m, err := env.svc.CompleteMatch(ctx, org, l.ID, models.TeamA, " 11-7 ")
	require.NoError(t, err)
	assert.Equal(t, l.ID, m.LobbyID)
	assert.Equal(t, models.TeamA, m.WinningTeam)
	assert.Equal(t, "11-7", m.Score)
	assert.Equal(t, 20, m.RatingDelta)
	assert.Equal(t, models.StatusCompleted, env.status(t, l.ID))

	got := env.ratings(t, ps...)
	for _, p := range ps[:2] {
		assert.Equal(t, 1020, got[p.ID].Rating)
		assert.Equal(t, 1, got[p.ID].GamesPlayed)
	}
	for _, p := range ps[2:] {
		assert.Equal(t, 985, got[p.ID].Rating)
		assert.Equal(t, 1, got[p.ID].GamesPlayed)
	}

	stored, err := env.svc.GetMatch(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, stored.ID)

	types := env.events.types(l.ID)
	assert.Equal(t, models.EventMatchCompleted, types[len(types)-1])
}

func TestCompleteMatchTwiceIsRejected(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	ctx := context.Background()
	org := organizer()
	ps := players(4)
	l := env.openLobby(t, org, ps...)
	env.startMatch(t, l.ID, ps)

	_, err := env.svc.CompleteMatch(ctx, org, l.ID, models.TeamB, "")
	require.NoError(t, err)
	before := env.ratings(t, ps...)

	_, err = env.svc.CompleteMatch(ctx, org, l.ID, models.TeamA, "")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, before, env.ratings(t, ps...))
}

func TestCompleteMatchGuards(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	ctx := context.Background()
	org := organizer()
	ps := players(4)
	l := env.openLobby(t, org, ps...)
	env.startMatch(t, l.ID, ps)

	_, err := env.svc.CompleteMatch(ctx, ps[0], l.ID, models.TeamA, "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.svc.CompleteMatch(ctx, organizer(), l.ID, models.TeamA, "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.svc.CompleteMatch(ctx, org, l.ID, models.Team("X"), "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.svc.CompleteMatch(ctx, org, l.ID, models.TeamA, strings.Repeat("1", 65))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.svc.CompleteMatch(ctx, org, uuid.New(), models.TeamA, "")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, models.StatusPlaying, env.status(t, l.ID))
}

func TestCompleteMatchFromFullLobby(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	ctx := context.Background()
	org := organizer()
	ps := players(4)
	l := env.openLobby(t, org, ps...)
	require.Equal(t, models.StatusFull, env.status(t, l.ID))

	for _, p := range ps {
		_, err := env.svc.SetReady(ctx, p, l.ID, true)
		require.NoError(t, err)
	}
	require.True(t, env.svc.CountdownArmed(l.ID))

	m, err := env.svc.CompleteMatch(ctx, org, l.ID, models.TeamA, "11-7")
	require.NoError(t, err)
	assert.Equal(t, models.TeamA, m.WinningTeam)
	assert.Equal(t, models.StatusCompleted, env.status(t, l.ID))
	assert.False(t, env.svc.CountdownArmed(l.ID))
	assert.Equal(t, 0, env.svc.manager.Len())

	got := env.ratings(t, ps...)
	assert.Equal(t, 1020, got[ps[0].ID].Rating)
	assert.Equal(t, 1020, got[ps[1].ID].Rating)
	assert.Equal(t, 985, got[ps[2].ID].Rating)
	assert.Equal(t, 985, got[ps[3].ID].Rating)

	_, err = env.svc.CompleteMatch(ctx, org, l.ID, models.TeamA, "")
	assert.ErrorIs(t, err, ErrInvalidState)
}

// An open lobby can be settled too, as a forfeit by whoever is missing.
func TestCompleteMatchFromOpenLobby(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	org := organizer()
	ps := players(2)
	l := env.openLobby(t, org, ps...)

	_, err := env.svc.CompleteMatch(ctx, org, l.ID, models.TeamA, "")
	require.NoError(t, err)

	got := env.ratings(t, ps...)
	assert.Equal(t, 1020, got[ps[0].ID].Rating)
	assert.Equal(t, 1020, got[ps[1].ID].Rating)
	assert.Equal(t, models.StatusCompleted, env.status(t, l.ID))
}

func TestConcurrentCompleteMatchSettlesOnce(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	// a second engine on the same store stands in for another server process
	other := NewService(env.store, Options{Countdown: 10 * time.Millisecond})
	t.Cleanup(other.Close)

	ctx := context.Background()
	org := organizer()
	ps := players(4)
	l := env.openLobby(t, org, ps...)
	env.startMatch(t, l.ID, ps)

	engines := []*Service{env.svc, env.svc, other, other}
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		matches []*models.Match
		errs    []error
	)
	start := make(chan struct{})
	for _, svc := range engines {
		wg.Add(1)
		go func(svc *Service) {
			defer wg.Done()
			<-start
			m, err := svc.CompleteMatch(ctx, org, l.ID, models.TeamA, "")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			matches = append(matches, m)
		}(svc)
	}
	close(start)
	wg.Wait()

	require.Len(t, matches, 1)
	require.Len(t, errs, len(engines)-1)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrInvalidState)
	}

	stored, err := env.store.GetMatchByLobby(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, matches[0].ID, stored.ID)

	for _, p := range env.ratings(t, ps...) {
		assert.Equal(t, 1, p.GamesPlayed)
		assert.Contains(t, []int{1020, 985}, p.Rating)
	}
}

func TestCompleteMatchPartialTeams(t *testing.T) {
	env := newTestEnv(t, 10*time.Millisecond)
	ctx := context.Background()
	org := organizer()
	ps := players(3)
	l := env.openLobby(t, org, ps...)
	env.startMatch(t, l.ID, ps)

	_, err := env.svc.CompleteMatch(ctx, org, l.ID, models.TeamB, "")
	require.NoError(t, err)

	got := env.ratings(t, ps...)
	assert.Equal(t, 985, got[ps[0].ID].Rating)
	assert.Equal(t, 985, got[ps[1].ID].Rating)
	assert.Equal(t, 1020, got[ps[2].ID].Rating)
}

// failingSettlementStore refuses to commit settlements.
type failingSettlementStore struct {
	*MemoryStore
}

var errDiskFull = errors.New("disk full")

func (s failingSettlementStore) CommitSettlement(context.Context, *models.Lobby, *models.Match, []models.RatingChange) error {
	return errDiskFull
}

func TestFailedSettlementLeavesNoTrace(t *testing.T) {
	mem := NewMemoryStore()
	svc := NewService(failingSettlementStore{mem}, Options{Countdown: 10 * time.Millisecond})
	defer svc.Close()
	ctx := context.Background()

	org := organizer()
	ps := players(4)
	l, err := svc.CreateLobby(ctx, org)
	require.NoError(t, err)
	for _, p := range ps {
		_, err = svc.JoinLobby(ctx, p, l.Token)
		require.NoError(t, err)
	}
	for _, p := range ps {
		_, err = svc.SetReady(ctx, p, l.ID, true)
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool {
		got, err := mem.GetLobby(ctx, l.ID)
		return err == nil && got.Status == models.StatusPlaying
	}, 2*time.Second, 5*time.Millisecond)

	_, err = svc.CompleteMatch(ctx, org, l.ID, models.TeamA, "")
	assert.ErrorIs(t, err, errDiskFull)

	got, err := mem.GetLobby(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPlaying, got.Status)

	_, err = mem.GetMatchByLobby(ctx, l.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	ids := make([]uuid.UUID, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	profiles, err := mem.GetProfiles(ctx, ids)
	require.NoError(t, err)
	require.Len(t, profiles, len(ps))
	for _, p := range profiles {
		assert.Equal(t, models.DefaultRating, p.Rating)
		assert.Equal(t, 0, p.GamesPlayed)
	}
}
