// internal/hub/hub.go
package hub

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/primepickle/courtside/internal/models"
	"github.com/sirupsen/logrus"
)

// subscriberBuffer is how many events a slow subscriber may lag behind before
// further events are dropped for it.
const subscriberBuffer = 16

// Hub fans lobby events out to the in-process subscribers of each lobby.
// Events carry only the lobby id and version; subscribers re-read the lobby.
type Hub struct {
	mu   sync.Mutex
	subs map[uuid.UUID]map[chan models.LobbyEvent]struct{}
	log  *logrus.Logger
}

// New creates an empty Hub.
func New(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		subs: make(map[uuid.UUID]map[chan models.LobbyEvent]struct{}),
		log:  logger,
	}
}

// Subscribe registers interest in lobbyID. The returned cancel func must be called
// exactly once; it closes the channel.
func (h *Hub) Subscribe(lobbyID uuid.UUID) (<-chan models.LobbyEvent, func()) {
	ch := make(chan models.LobbyEvent, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[lobbyID]
	if !ok {
		set = make(map[chan models.LobbyEvent]struct{})
		h.subs[lobbyID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[lobbyID], ch)
			if len(h.subs[lobbyID]) == 0 {
				delete(h.subs, lobbyID)
			}
			close(ch)
		})
	}
}

// Publish delivers ev to every subscriber of its lobby without blocking.
func (h *Hub) Publish(_ context.Context, ev models.LobbyEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ev.LobbyID] {
		select {
		case ch <- ev:
		default:
			h.log.WithFields(logrus.Fields{"lobby_id": ev.LobbyID, "event": ev.Type}).Warn("subscriber lagging, dropping lobby event")
		}
	}
	return nil
}

// Subscribers reports how many subscribers lobbyID has.
func (h *Hub) Subscribers(lobbyID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[lobbyID])
}
