// internal/models/lobby.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// LobbyStatus is the lifecycle stage of a lobby. Stages only ever move forward.
type LobbyStatus string

const (
	StatusOpen      LobbyStatus = "open"
	StatusFull      LobbyStatus = "full"
	StatusPlaying   LobbyStatus = "playing"
	StatusCompleted LobbyStatus = "completed"
)

// rank orders statuses so transitions can be checked for monotonicity.
func (s LobbyStatus) rank() int {
	switch s {
	case StatusOpen:
		return 0
	case StatusFull:
		return 1
	case StatusPlaying:
		return 2
	case StatusCompleted:
		return 3
	}
	return -1
}

// Valid reports whether s is a known status.
func (s LobbyStatus) Valid() bool { return s.rank() >= 0 }

// CanTransition reports whether moving from s to next is a legal forward step.
// Settlement may complete a lobby from any earlier stage; an organizer can record a
// result for a lobby that never started or a team that never filled.
// full -> open is only possible through membership removal, which is not exposed.
func (s LobbyStatus) CanTransition(next LobbyStatus) bool {
	switch s {
	case StatusOpen:
		return next == StatusFull || next == StatusPlaying || next == StatusCompleted
	case StatusFull:
		return next == StatusPlaying || next == StatusCompleted
	case StatusPlaying:
		return next == StatusCompleted
	}
	return false
}

// Team is the positional side of a member: the first two joiners are A, the next two are B.
type Team string

const (
	TeamA Team = "A"
	TeamB Team = "B"
)

// Valid reports whether t is A or B.
func (t Team) Valid() bool { return t == TeamA || t == TeamB }

// LobbyCapacity is the number of players in a doubles match.
const LobbyCapacity = 4

// TeamSize is the number of members on each side.
const TeamSize = 2

// DefaultPointGoal is the match point goal a lobby starts with.
const DefaultPointGoal = 11

// AllowedPointGoals lists the point goals captains may choose from.
var AllowedPointGoals = []int{11, 15, 21}

// IsAllowedPointGoal reports whether points is one of AllowedPointGoals.
func IsAllowedPointGoal(points int) bool {
	for _, p := range AllowedPointGoals {
		if p == points {
			return true
		}
	}
	return false
}

// Member is one membership record of a lobby, with the member's readiness flag.
// Position is the zero-based join order and is what team assignment is derived from.
type Member struct {
	ProfileID uuid.UUID `json:"profile_id"`
	Position  int       `json:"position"`
	JoinedAt  time.Time `json:"joined_at"`
	Ready     bool      `json:"is_ready"`
}

// Team returns the team the member is positioned on.
func (m Member) Team() Team {
	return TeamForPosition(m.Position)
}

// TeamForPosition maps a join position onto its team.
func TeamForPosition(pos int) Team {
	if pos < TeamSize {
		return TeamA
	}
	return TeamB
}

// Lobby is one matchmaking session for up to four players split into two teams.
// Members are kept in join order.
type Lobby struct {
	ID          uuid.UUID   `json:"id"`
	OrganizerID uuid.UUID   `json:"organizer_id"`
	Token       string      `json:"token"`
	Status      LobbyStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`

	Members []Member `json:"members"`

	TeamACaptainID *uuid.UUID `json:"team_a_captain_id"`
	TeamBCaptainID *uuid.UUID `json:"team_b_captain_id"`
	PointGoal      int        `json:"point_goal"`

	// Version increases on every committed mutation and guards compare-and-swap writes.
	Version int64 `json:"version"`
}

// NewLobby builds an open lobby owned by organizerID with a fresh id and join token.
func NewLobby(organizerID uuid.UUID, now time.Time) *Lobby {
	return &Lobby{
		ID:          uuid.New(),
		OrganizerID: organizerID,
		Token:       uuid.NewString(),
		Status:      StatusOpen,
		CreatedAt:   now,
		Members:     []Member{},
		PointGoal:   DefaultPointGoal,
	}
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (l *Lobby) Clone() *Lobby {
	cp := *l
	cp.Members = append([]Member(nil), l.Members...)
	if l.TeamACaptainID != nil {
		id := *l.TeamACaptainID
		cp.TeamACaptainID = &id
	}
	if l.TeamBCaptainID != nil {
		id := *l.TeamBCaptainID
		cp.TeamBCaptainID = &id
	}
	return &cp
}

// Member returns the membership record for profileID, if any.
func (l *Lobby) Member(profileID uuid.UUID) (Member, bool) {
	for _, m := range l.Members {
		if m.ProfileID == profileID {
			return m, true
		}
	}
	return Member{}, false
}

// IsMember reports whether profileID is currently in the lobby.
func (l *Lobby) IsMember(profileID uuid.UUID) bool {
	_, ok := l.Member(profileID)
	return ok
}

// TeamMembers returns the profile ids positioned on team t, in join order.
func (l *Lobby) TeamMembers(t Team) []uuid.UUID {
	var ids []uuid.UUID
	for _, m := range l.Members {
		if m.Team() == t {
			ids = append(ids, m.ProfileID)
		}
	}
	return ids
}

// Captain returns the captain id of team t, or nil.
func (l *Lobby) Captain(t Team) *uuid.UUID {
	if t == TeamA {
		return l.TeamACaptainID
	}
	return l.TeamBCaptainID
}

// SetCaptain records profileID as captain of team t.
func (l *Lobby) SetCaptain(t Team, profileID uuid.UUID) {
	id := profileID
	if t == TeamA {
		l.TeamACaptainID = &id
	} else {
		l.TeamBCaptainID = &id
	}
}

// IsCaptain reports whether profileID captains either team.
func (l *Lobby) IsCaptain(profileID uuid.UUID) bool {
	for _, c := range []*uuid.UUID{l.TeamACaptainID, l.TeamBCaptainID} {
		if c != nil && *c == profileID {
			return true
		}
	}
	return false
}

// AddMember appends profileID in the next join position and clears every ready flag.
func (l *Lobby) AddMember(profileID uuid.UUID, now time.Time) Member {
	for i := range l.Members {
		l.Members[i].Ready = false
	}
	m := Member{
		ProfileID: profileID,
		Position:  len(l.Members),
		JoinedAt:  now,
	}
	l.Members = append(l.Members, m)
	return m
}

// SetReady updates the ready flag of profileID. It returns false if the profile is not a member.
func (l *Lobby) SetReady(profileID uuid.UUID, ready bool) bool {
	for i := range l.Members {
		if l.Members[i].ProfileID == profileID {
			l.Members[i].Ready = ready
			return true
		}
	}
	return false
}

// AllReady reports the start precondition: at least two members and every member ready.
func (l *Lobby) AllReady() bool {
	if len(l.Members) < 2 {
		return false
	}
	for _, m := range l.Members {
		if !m.Ready {
			return false
		}
	}
	return true
}

// IsFull reports whether the lobby has reached capacity.
func (l *Lobby) IsFull() bool {
	return len(l.Members) >= LobbyCapacity
}

// AcceptsCoordination reports whether captaincy, goal and readiness changes are allowed.
func (l *Lobby) AcceptsCoordination() bool {
	return l.Status == StatusOpen || l.Status == StatusFull
}
