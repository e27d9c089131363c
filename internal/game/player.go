package game

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ugaemi/geotag-server/internal/geo"
)

type Role int

const (
	RoleNone Role = iota
	RoleIt
	RoleRunner
)

func (r Role) String() string {
	switch r {
	case RoleIt:
		return "it"
	case RoleRunner:
		return "runner"
	default:
		return "none"
	}
}

// MarshalJSON serializes Role as a string.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON deserializes Role from a string.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "it":
		*r = RoleIt
	case "runner":
		*r = RoleRunner
	default:
		*r = RoleNone
	}
	return nil
}

type Player struct {
	ID          string       `json:"id"`
	Nickname    string       `json:"nickname"`
	Role        Role         `json:"role"`
	Position    geo.GeoPoint `json:"position"`
	Ready       bool         `json:"ready"`
	Tags        int          `json:"tags"`
	LastFixAt   time.Time    `json:"-"`
	ImmuneUntil time.Time    `json:"immune_until,omitzero"`
}

// NewPlayer creates a player. An empty id gets a fresh one; a client that wants its
// territories back across sessions passes the id it was given before.
func NewPlayer(id, nickname string) *Player {
	if id == "" {
		id = uuid.New().String()
	}
	return &Player{
		ID:       id,
		Nickname: nickname,
		Role:     RoleNone,
	}
}

func (p *Player) SetRole(role Role) {
	p.Role = role
}

// SetPosition records an accepted location fix.
func (p *Player) SetPosition(pos geo.GeoPoint, at time.Time) {
	p.Position = pos
	p.LastFixAt = at
}

// HasFix reports whether the player has reported a usable location.
func (p *Player) HasFix() bool {
	return !p.LastFixAt.IsZero() && p.Position.Valid()
}

// IsImmune reports whether the player cannot be tagged at now.
func (p *Player) IsImmune(now time.Time) bool {
	return now.Before(p.ImmuneUntil)
}

func (p *Player) Reset() {
	p.Ready = false
	p.Tags = 0
	p.Position = geo.GeoPoint{}
	p.LastFixAt = time.Time{}
	p.ImmuneUntil = time.Time{}
}
