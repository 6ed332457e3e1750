// internal/lobby/lobby_manager.go

package lobby

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// LobbyManager hands out the per-lobby guard that serializes mutations of one lobby.
// Entries exist only while someone holds or waits for the guard or a countdown is armed.
type LobbyManager struct {
	mu      sync.Mutex
	lobbies map[uuid.UUID]*LobbyState
}

// LobbyState is the in-process runtime state of a single lobby.
type LobbyState struct {
	LobbyID uuid.UUID

	mu   sync.Mutex
	refs int // guarded by LobbyManager.mu

	// CountdownTimer is the armed start countdown, if any. Guarded by mu.
	CountdownTimer *time.Timer
	// CountdownVersion is the lobby version the countdown was armed against.
	CountdownVersion int64
}

// NewLobbyManager creates and returns a new LobbyManager.
func NewLobbyManager() *LobbyManager {
	return &LobbyManager{
		lobbies: make(map[uuid.UUID]*LobbyState),
	}
}

// Acquire locks the guard for lobbyID, creating the entry if needed.
// Every Acquire must be paired with a Release.
func (lm *LobbyManager) Acquire(lobbyID uuid.UUID) *LobbyState {
	lm.mu.Lock()
	ls, ok := lm.lobbies[lobbyID]
	if !ok {
		ls = &LobbyState{LobbyID: lobbyID}
		lm.lobbies[lobbyID] = ls
	}
	ls.refs++
	lm.mu.Unlock()

	ls.mu.Lock()
	return ls
}

// Release unlocks the guard and drops the entry once nothing references it.
func (lm *LobbyManager) Release(ls *LobbyState) {
	ls.mu.Unlock()
	lm.drop(ls)
}

// retain adds a reference held by an armed countdown.
func (lm *LobbyManager) retain(ls *LobbyState) {
	lm.mu.Lock()
	ls.refs++
	lm.mu.Unlock()
}

func (lm *LobbyManager) drop(ls *LobbyState) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	ls.refs--
	if ls.refs == 0 && lm.lobbies[ls.LobbyID] == ls {
		delete(lm.lobbies, ls.LobbyID)
	}
}

// Len reports how many lobbies currently have a live entry.
func (lm *LobbyManager) Len() int {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return len(lm.lobbies)
}

// StartCountdownUnsafe arms fn to run after d unless a countdown is already armed.
// fn receives the timer it was armed with so it can detect that it went stale.
// Assumes ls is locked. Returns true if a new countdown was armed.
func (lm *LobbyManager) StartCountdownUnsafe(ls *LobbyState, d time.Duration, fn func(ls *LobbyState, timer *time.Timer)) bool {
	if ls.CountdownTimer != nil {
		return false
	}
	lm.retain(ls)

	// Declare timer variable before AfterFunc to capture it correctly
	var timer *time.Timer
	ready := make(chan struct{})
	timer = time.AfterFunc(d, func() {
		<-ready
		fn(ls, timer)
	})
	ls.CountdownTimer = timer
	close(ready)
	return true
}

// CancelCountdownUnsafe stops the armed countdown, if any. Assumes ls is locked.
// Returns true if a countdown was armed.
func (lm *LobbyManager) CancelCountdownUnsafe(ls *LobbyState) bool {
	if ls.CountdownTimer == nil {
		return false
	}
	// Stop returns false if the timer already fired; the callback then sees
	// a different CountdownTimer and gives up its own reference.
	if ls.CountdownTimer.Stop() {
		lm.drop(ls)
	}
	ls.CountdownTimer = nil
	return true
}

// StopAll cancels every armed countdown. Used at shutdown.
func (lm *LobbyManager) StopAll() {
	lm.mu.Lock()
	states := make([]*LobbyState, 0, len(lm.lobbies))
	for _, ls := range lm.lobbies {
		states = append(states, ls)
	}
	lm.mu.Unlock()

	for _, ls := range states {
		ls.mu.Lock()
		lm.CancelCountdownUnsafe(ls)
		ls.mu.Unlock()
	}
}
