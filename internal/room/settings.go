package room

import (
	"time"

	"github.com/ugaemi/geotag-server/internal/ambush"
	"github.com/ugaemi/geotag-server/internal/anticheat"
	"github.com/ugaemi/geotag-server/internal/game"
	"github.com/ugaemi/geotag-server/internal/geo"
	"github.com/ugaemi/geotag-server/internal/rules"
	"github.com/ugaemi/geotag-server/internal/territory"
)

// Settings configure one game.
type Settings struct {
	Zones     []geo.CircularZone
	Schedules []rules.TimeWindowRule
	TagRadius float64 // meters
	// StaleFixAfter drops runners whose last fix is older than this from tag targeting.
	StaleFixAfter time.Duration
	// Location is the time zone schedules are evaluated in.
	Location *time.Location

	Territory territory.Config
	Ambush    ambush.Config
	AntiCheat anticheat.Thresholds
	FixWindow int // accepted fixes kept per player for window analysis

	StoreTimeout time.Duration
	EventBuffer  int
}

// DefaultSettings returns the production tuning with no zones or schedules.
func DefaultSettings() Settings {
	return Settings{
		TagRadius:     game.DefaultTagRadius,
		StaleFixAfter: game.DefaultStaleFixAfter,
		Location:      time.UTC,
		Territory:     territory.DefaultConfig(),
		Ambush:        ambush.DefaultConfig(),
		AntiCheat:     anticheat.DefaultThresholds(),
		FixWindow:     10,
		StoreTimeout:  5 * time.Second,
		EventBuffer:   128,
	}
}

// Options are the per-room overrides a host may send when creating a room.
type Options struct {
	Zones     []geo.CircularZone     `json:"zones,omitempty"`
	Schedules []rules.TimeWindowRule `json:"schedules,omitempty"`
	TagRadius float64                `json:"tag_radius,omitempty"`
}

// Validate rejects malformed zones and schedules.
func (o Options) Validate() error {
	for _, z := range o.Zones {
		if !z.Center.Valid() || !(z.RadiusMeters > 0) {
			return ErrInvalidZone
		}
	}
	for _, s := range o.Schedules {
		if err := s.Validate(); err != nil {
			return ErrInvalidSchedule
		}
	}
	if o.TagRadius < 0 {
		return ErrInvalidTagRadius
	}
	return nil
}

// apply returns s with o's overrides.
func (s Settings) apply(o Options) Settings {
	if len(o.Zones) > 0 {
		s.Zones = append([]geo.CircularZone(nil), o.Zones...)
	}
	if len(o.Schedules) > 0 {
		s.Schedules = append([]rules.TimeWindowRule(nil), o.Schedules...)
	}
	if o.TagRadius > 0 {
		s.TagRadius = o.TagRadius
	}
	return s
}
