package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/ugaemi/geotag-server/internal/room"
	"github.com/ugaemi/geotag-server/internal/ws"
)

type Config struct {
	Port      int    `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	WSReadTimeout     time.Duration `env:"WS_READ_TIMEOUT" envDefault:"90s"`
	WSWriteWait       time.Duration `env:"WS_WRITE_WAIT" envDefault:"10s"`
	WSMaxMessageBytes int64         `env:"WS_MAX_MESSAGE_BYTES" envDefault:"32768"`

	// DatabaseURL selects the Postgres state store. Empty keeps owner state in memory.
	DatabaseURL string `env:"DATABASE_URL"`

	TagRadius     float64       `env:"TAG_RADIUS_METERS" envDefault:"25"`
	Timezone      string        `env:"GAME_TIMEZONE" envDefault:"UTC"`
	StaleFixAfter time.Duration `env:"STALE_FIX_AFTER" envDefault:"6m"`

	ClaimTime            time.Duration `env:"TERRITORY_CLAIM_TIME" envDefault:"5m"`
	TerritoryRadius      float64       `env:"TERRITORY_RADIUS_METERS" envDefault:"50"`
	WarningRadius        float64       `env:"TERRITORY_WARNING_RADIUS_METERS" envDefault:"150"`
	MaxTerritories       int           `env:"TERRITORY_MAX_PER_PLAYER" envDefault:"3"`
	MinTerritoryDistance float64       `env:"TERRITORY_MIN_DISTANCE_METERS" envDefault:"200"`
	TerritoryDecay       time.Duration `env:"TERRITORY_DECAY_TIME" envDefault:"72h"`
	ClaimStaleAfter      time.Duration `env:"TERRITORY_CLAIM_STALE_AFTER" envDefault:"0s"`

	MaxAmbushes     int           `env:"AMBUSH_MAX_PER_PLAYER" envDefault:"3"`
	AmbushRadius    float64       `env:"AMBUSH_RADIUS_METERS" envDefault:"15"`
	AmbushTTL       time.Duration `env:"AMBUSH_TTL" envDefault:"30m"`
	AmbushMaxRadius float64       `env:"AMBUSH_MAX_RADIUS_METERS" envDefault:"50"`
	AmbushMaxTTL    time.Duration `env:"AMBUSH_MAX_TTL" envDefault:"2h"`

	VehicleSpeed  float64 `env:"ANTICHEAT_VEHICLE_MPS" envDefault:"15"`
	SpeedLimit    float64 `env:"ANTICHEAT_SPEED_LIMIT_MPS" envDefault:"35"`
	TeleportSpeed float64 `env:"ANTICHEAT_TELEPORT_MPS" envDefault:"100"`
	FixWindow     int     `env:"ANTICHEAT_WINDOW" envDefault:"10"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}

// RoomSettings builds the defaults every new room starts from.
func (c *Config) RoomSettings() (room.Settings, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return room.Settings{}, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	if !(c.VehicleSpeed < c.SpeedLimit && c.SpeedLimit < c.TeleportSpeed) {
		return room.Settings{}, fmt.Errorf("anticheat speeds must increase: vehicle %v, limit %v, teleport %v",
			c.VehicleSpeed, c.SpeedLimit, c.TeleportSpeed)
	}

	s := room.DefaultSettings()
	s.Location = loc
	if c.TagRadius > 0 {
		s.TagRadius = c.TagRadius
	}
	if c.StaleFixAfter > 0 {
		s.StaleFixAfter = c.StaleFixAfter
	}

	s.Territory.ClaimTime = c.ClaimTime
	s.Territory.TerritoryRadius = c.TerritoryRadius
	s.Territory.WarningRadius = c.WarningRadius
	s.Territory.MaxTerritoriesPerPlayer = c.MaxTerritories
	s.Territory.MinTerritoryDistance = c.MinTerritoryDistance
	s.Territory.DecayTime = c.TerritoryDecay
	s.Territory.ClaimStaleAfter = c.ClaimStaleAfter

	s.Ambush.MaxPointsPerPlayer = c.MaxAmbushes
	s.Ambush.Radius = c.AmbushRadius
	s.Ambush.TTL = c.AmbushTTL
	s.Ambush.MaxRadius = c.AmbushMaxRadius
	s.Ambush.MaxTTL = c.AmbushMaxTTL

	s.AntiCheat.VehicleMps = c.VehicleSpeed
	s.AntiCheat.SpeedLimitMps = c.SpeedLimit
	s.AntiCheat.TeleportMps = c.TeleportSpeed
	s.FixWindow = c.FixWindow
	return s, nil
}

// WSLimits returns the websocket limits, keeping defaults for unset values.
func (c *Config) WSLimits() ws.Limits {
	l := ws.DefaultLimits()
	if c.WSReadTimeout > 0 {
		l.ReadTimeout = c.WSReadTimeout
	}
	if c.WSWriteWait > 0 {
		l.WriteWait = c.WSWriteWait
	}
	if c.WSMaxMessageBytes > 0 {
		l.MaxMessageSize = c.WSMaxMessageBytes
	}
	return l
}
