package ambush

import (
	"errors"
	"time"

	"github.com/ugaemi/geotag-server/internal/geo"
)

var (
	ErrCapacityReached = errors.New("ambush capacity reached")
	ErrPointNotFound   = errors.New("ambush point not found")
	ErrInvalidLocation = errors.New("invalid location")
	ErrInvalidOptions  = errors.New("invalid ambush options")
)

// Config tunes ambush placement.
type Config struct {
	MaxPointsPerPlayer int
	Radius             float64       // meters
	TTL                time.Duration // lifetime of a placed point
	MaxRadius          float64       // largest radius a placement may ask for, 0 means Radius
	MaxTTL             time.Duration // longest lifetime a placement may ask for, 0 means TTL
	HistorySize        int           // triggers kept per owner
	SweepInterval      time.Duration // 0 disables the background sweeper
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		MaxPointsPerPlayer: 3,
		Radius:             15,
		TTL:                30 * time.Minute,
		MaxRadius:          50,
		MaxTTL:             2 * time.Hour,
		HistorySize:        50,
		SweepInterval:      time.Minute,
	}
}

// Options override defaults for a single placement.
type Options struct {
	Icon   string
	Radius float64
	TTL    time.Duration
}

// Point is a placed trap.
type Point struct {
	ID           string           `json:"id"`
	OwnerID      string           `json:"owner_id"`
	Zone         geo.CircularZone `json:"zone"`
	Icon         string           `json:"icon,omitempty"`
	PlacedAt     time.Time        `json:"placed_at"`
	ExpiresAt    time.Time        `json:"expires_at"`
	TriggerCount int              `json:"trigger_count"`
}

// Expired reports whether the point is past its lifetime at now.
func (p Point) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// Trigger records one hostile crossing.
type Trigger struct {
	PointID   string       `json:"point_id"`
	OwnerID   string       `json:"owner_id"`
	HostileID string       `json:"hostile_id"`
	Location  geo.GeoPoint `json:"location"`
	Distance  float64      `json:"distance"`
	At        time.Time    `json:"at"`
}
