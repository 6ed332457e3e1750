package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the authorization role carried by a verified identity.
type Role string

const (
	RolePlayer    Role = "player"
	RoleOrganizer Role = "organizer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RolePlayer || r == RoleOrganizer }

// DefaultRating is the rating every new profile starts with.
const DefaultRating = 1000

// Identity is the authenticated (id, role) pair attached to every request.
// It is trusted as supplied; DisplayName is only used when provisioning a profile.
type Identity struct {
	ID          uuid.UUID `json:"id"`
	Role        Role      `json:"role"`
	DisplayName string    `json:"display_name"`
}

// IsOrganizer reports whether the identity may create and settle lobbies.
func (i Identity) IsOrganizer() bool { return i.Role == RoleOrganizer }

// Profile is a player or organizer account. The engine only reads it and
// increments Rating and GamesPlayed during settlement.
type Profile struct {
	ID          uuid.UUID `json:"id"`
	Role        Role      `json:"role"`
	DisplayName string    `json:"display_name"`
	Rating      int       `json:"rating"`
	GamesPlayed int       `json:"games_played"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewProfile builds a profile for a first-seen identity with the default rating.
func NewProfile(id Identity, now time.Time) *Profile {
	name := id.DisplayName
	if name == "" {
		name = "Player " + id.ID.String()[:4]
	}
	return &Profile{
		ID:          id.ID,
		Role:        id.Role,
		DisplayName: name,
		Rating:      DefaultRating,
		CreatedAt:   now,
	}
}
