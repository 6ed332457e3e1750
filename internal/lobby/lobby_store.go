// internal/lobby/lobby_store.go
package lobby

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/primepickle/courtside/internal/models"
)

// MemoryStore is an in-memory Store. Every method runs under one mutex, so each
// call observes and produces a single consistent snapshot.
type MemoryStore struct {
	mu       sync.RWMutex
	lobbies  map[uuid.UUID]*models.Lobby
	tokens   map[string]uuid.UUID
	profiles map[uuid.UUID]*models.Profile
	matches  map[uuid.UUID]*models.Match // keyed by lobby id
}

// NewMemoryStore initializes and returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lobbies:  make(map[uuid.UUID]*models.Lobby),
		tokens:   make(map[string]uuid.UUID),
		profiles: make(map[uuid.UUID]*models.Profile),
		matches:  make(map[uuid.UUID]*models.Match),
	}
}

func (s *MemoryStore) EnsureProfile(_ context.Context, p *models.Profile) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.profiles[p.ID]; ok {
		cp := *cur
		return &cp, nil
	}
	cp := *p
	s.profiles[p.ID] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryStore) GetProfiles(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profilesUnsafe(ids), nil
}

// profilesUnsafe copies the known profiles among ids. Assumes the lock is held.
func (s *MemoryStore) profilesUnsafe(ids []uuid.UUID) map[uuid.UUID]*models.Profile {
	out := make(map[uuid.UUID]*models.Profile, len(ids))
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out
}

// snapshotUnsafe copies l and its members' profiles. Assumes the lock is held.
func (s *MemoryStore) snapshotUnsafe(l *models.Lobby) *Snapshot {
	return &Snapshot{
		Lobby:    l.Clone(),
		Profiles: s.profilesUnsafe(memberIDs(l)),
	}
}

func (s *MemoryStore) InsertLobby(_ context.Context, l *models.Lobby) error {
	if !l.Status.Valid() {
		return fmt.Errorf("lobby %s has unknown status %q", l.ID, l.Status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.lobbies[l.ID]; exists {
		return fmt.Errorf("lobby %s already exists", l.ID)
	}
	if _, exists := s.tokens[l.Token]; exists {
		return fmt.Errorf("join token already in use")
	}
	s.lobbies[l.ID] = l.Clone()
	s.tokens[l.Token] = l.ID
	return nil
}

func (s *MemoryStore) GetLobby(_ context.Context, id uuid.UUID) (*models.Lobby, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lobbies[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return l.Clone(), nil
}

func (s *MemoryStore) GetLobbyByToken(_ context.Context, token string) (*models.Lobby, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.tokens[token]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return s.lobbies[id].Clone(), nil
}

func (s *MemoryStore) GetLobbySnapshot(_ context.Context, id uuid.UUID) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lobbies[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return s.snapshotUnsafe(l), nil
}

func (s *MemoryStore) ListLobbiesByOrganizer(_ context.Context, organizerID uuid.UUID) ([]*Snapshot, error) {
	return s.filter(func(l *models.Lobby) bool { return l.OrganizerID == organizerID }), nil
}

func (s *MemoryStore) ListLobbiesByMember(_ context.Context, profileID uuid.UUID) ([]*Snapshot, error) {
	return s.filter(func(l *models.Lobby) bool { return l.IsMember(profileID) }), nil
}

// filter returns snapshots of matching lobbies, most recent first.
func (s *MemoryStore) filter(keep func(*models.Lobby) bool) []*Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*Snapshot{}
	for _, l := range s.lobbies {
		if keep(l) {
			out = append(out, s.snapshotUnsafe(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Lobby, out[j].Lobby
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID.String() > b.ID.String()
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return out
}

func (s *MemoryStore) UpdateLobby(_ context.Context, l *models.Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkVersionUnsafe(l); err != nil {
		return err
	}
	s.storeLobbyUnsafe(l)
	return nil
}

func (s *MemoryStore) CommitSettlement(_ context.Context, l *models.Lobby, m *models.Match, changes []models.RatingChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkVersionUnsafe(l); err != nil {
		return err
	}
	if _, exists := s.matches[l.ID]; exists {
		return fmt.Errorf("match for lobby %s already recorded: %w", l.ID, ErrVersionConflict)
	}
	// validate everything before the first write so a failure leaves no trace
	for _, c := range changes {
		if _, ok := s.profiles[c.ProfileID]; !ok {
			return fmt.Errorf("profile %s: %w", c.ProfileID, ErrRecordNotFound)
		}
	}
	for _, c := range changes {
		p := s.profiles[c.ProfileID]
		p.Rating += c.Delta
		p.GamesPlayed++
	}
	cp := *m
	s.matches[l.ID] = &cp
	s.storeLobbyUnsafe(l)
	return nil
}

func (s *MemoryStore) GetMatchByLobby(_ context.Context, lobbyID uuid.UUID) (*models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[lobbyID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// checkVersionUnsafe also rejects statuses the Postgres schema would refuse.
// Assumes the lock is held.
func (s *MemoryStore) checkVersionUnsafe(l *models.Lobby) error {
	if !l.Status.Valid() {
		return fmt.Errorf("lobby %s has unknown status %q", l.ID, l.Status)
	}
	cur, ok := s.lobbies[l.ID]
	if !ok {
		return ErrRecordNotFound
	}
	if cur.Version != l.Version {
		return ErrVersionConflict
	}
	return nil
}

// storeLobbyUnsafe bumps the version and stores a copy. Assumes the lock is held.
func (s *MemoryStore) storeLobbyUnsafe(l *models.Lobby) {
	l.Version++
	s.lobbies[l.ID] = l.Clone()
}
