package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a committed lobby change.
type EventType string

const (
	EventLobbyCreated       EventType = "lobby_created"
	EventMemberJoined       EventType = "member_joined"
	EventCaptainClaimed     EventType = "captain_claimed"
	EventGoalChanged        EventType = "goal_changed"
	EventReadyChanged       EventType = "ready_changed"
	EventCountdownArmed     EventType = "countdown_armed"
	EventCountdownCancelled EventType = "countdown_cancelled"
	EventMatchStarted       EventType = "match_started"
	EventMatchCompleted     EventType = "match_completed"
)

// LobbyEvent tells interested readers that a lobby changed and which version to fetch.
type LobbyEvent struct {
	Type      EventType   `json:"type"`
	LobbyID   uuid.UUID   `json:"lobby_id"`
	Status    LobbyStatus `json:"status"`
	Version   int64       `json:"version"`
	ActorID   uuid.UUID   `json:"actor_id"`
	Timestamp int64       `json:"timestamp"`
}

// NewLobbyEvent stamps an event for l.
func NewLobbyEvent(t EventType, l *Lobby, actor uuid.UUID) LobbyEvent {
	return LobbyEvent{
		Type:      t,
		LobbyID:   l.ID,
		Status:    l.Status,
		Version:   l.Version,
		ActorID:   actor,
		Timestamp: time.Now().UnixMilli(),
	}
}
