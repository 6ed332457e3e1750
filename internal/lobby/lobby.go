// internal/lobby/lobby.go
package lobby

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/primepickle/courtside/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultCountdown is how long all members must stay ready before the match starts.
const DefaultCountdown = 3 * time.Second

// DefaultStoreRetries bounds how often a mutation is reloaded after a version conflict.
const DefaultStoreRetries = 5

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	Countdown    time.Duration
	StoreRetries int
	Notifier     Notifier
	Logger       *logrus.Logger
	Now          func() time.Time
}

// Service is the lobby lifecycle and match settlement engine. It is safe for
// concurrent use by any number of request handlers.
type Service struct {
	store     Store
	manager   *LobbyManager
	notifier  Notifier
	log       *logrus.Logger
	countdown time.Duration
	retries   int
	now       func() time.Time
}

// NewService builds a Service on top of store.
func NewService(store Store, opts Options) *Service {
	s := &Service{
		store:     store,
		manager:   NewLobbyManager(),
		notifier:  opts.Notifier,
		log:       opts.Logger,
		countdown: opts.Countdown,
		retries:   opts.StoreRetries,
		now:       opts.Now,
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.countdown <= 0 {
		s.countdown = DefaultCountdown
	}
	if s.retries <= 0 {
		s.retries = DefaultStoreRetries
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Close cancels every armed countdown. The store is owned by the caller.
func (s *Service) Close() {
	s.manager.StopAll()
}

// Ping checks that the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// withLock runs fn while holding the guard of lobbyID.
func (s *Service) withLock(lobbyID uuid.UUID, fn func(ls *LobbyState) error) error {
	ls := s.manager.Acquire(lobbyID)
	defer s.manager.Release(ls)
	return fn(ls)
}

// retryOnConflict reruns attempt while the store reports a concurrent modification
// by another process. Within this process the lobby guard already serializes writers.
func (s *Service) retryOnConflict(lobbyID uuid.UUID, attempt func() error) error {
	var err error
	for i := 0; i < s.retries; i++ {
		if err = attempt(); !errors.Is(err, ErrVersionConflict) {
			return err
		}
		s.log.WithFields(logrus.Fields{"lobby_id": lobbyID, "attempt": i + 1}).Debug("version conflict, reloading lobby")
	}
	return err
}

// mutateLocked loads a fresh copy of the lobby, applies fn and persists the result
// if fn reports a change. Assumes the caller holds the lobby guard.
func (s *Service) mutateLocked(ctx context.Context, lobbyID uuid.UUID, fn func(l *models.Lobby) (bool, error)) (*models.Lobby, bool, error) {
	var (
		out     *models.Lobby
		changed bool
	)
	err := s.retryOnConflict(lobbyID, func() error {
		l, err := s.load(ctx, lobbyID)
		if err != nil {
			return err
		}
		changed, err = fn(l)
		if err != nil {
			return err
		}
		if changed {
			if err := s.store.UpdateLobby(ctx, l); err != nil {
				return err
			}
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, changed, nil
}

// load fetches a lobby, translating a missing record into ErrNotFound.
func (s *Service) load(ctx context.Context, lobbyID uuid.UUID) (*models.Lobby, error) {
	l, err := s.store.GetLobby(ctx, lobbyID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, lobbyID)
	}
	if err != nil {
		return nil, fmt.Errorf("load lobby %s: %w", lobbyID, err)
	}
	return l, nil
}

// ensureProfile provisions the caller's profile on first use.
func (s *Service) ensureProfile(ctx context.Context, id models.Identity) (*models.Profile, error) {
	if id.ID == uuid.Nil || !id.Role.Valid() {
		return nil, fmt.Errorf("%w: malformed identity", ErrForbidden)
	}
	p, err := s.store.EnsureProfile(ctx, models.NewProfile(id, s.now()))
	if err != nil {
		return nil, fmt.Errorf("ensure profile %s: %w", id.ID, err)
	}
	return p, nil
}

// publish notifies listeners of a committed change. Delivery failures are logged, never returned.
func (s *Service) publish(ctx context.Context, t models.EventType, l *models.Lobby, actor uuid.UUID) {
	if s.notifier == nil {
		return
	}
	ev := models.NewLobbyEvent(t, l, actor)
	if err := s.notifier.Publish(ctx, ev); err != nil {
		s.log.WithFields(logrus.Fields{"lobby_id": l.ID, "event": t}).Warnf("failed to publish lobby event: %v", err)
	}
}

func (s *Service) lobbyLog(l *models.Lobby) *logrus.Entry {
	return s.log.WithFields(logrus.Fields{
		"lobby_id": l.ID,
		"status":   l.Status,
		"members":  len(l.Members),
		"version":  l.Version,
	})
}
