package anticheat

import (
	"encoding/json"
	"math"

	"github.com/ugaemi/geotag-server/internal/geo"
)

// MovementSample is one location fix attributed to a player.
type MovementSample struct {
	PlayerID string       `json:"player_id"`
	Point    geo.GeoPoint `json:"point"`
}

// Flag classifies suspicious movement.
type Flag int

const (
	FlagNone Flag = iota
	FlagPossiblyInVehicle
	FlagSpeedTooHigh
	FlagTeleport
	FlagInvalidCoordinates
)

func (f Flag) String() string {
	switch f {
	case FlagPossiblyInVehicle:
		return "POSSIBLY_IN_VEHICLE"
	case FlagSpeedTooHigh:
		return "SPEED_TOO_HIGH"
	case FlagTeleport:
		return "TELEPORT"
	case FlagInvalidCoordinates:
		return "INVALID_COORDINATES"
	default:
		return ""
	}
}

// MarshalJSON serializes Flag as a string, null for FlagNone.
func (f Flag) MarshalJSON() ([]byte, error) {
	if f == FlagNone {
		return []byte("null"), nil
	}
	return json.Marshal(f.String())
}

// Severity is part of the verdict contract, not just log detail.
type Severity string

const (
	SeverityNone     Severity = ""
	SeverityLow      Severity = "low"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Blocks reports whether the flag invalidates the movement.
func (f Flag) Blocks() bool {
	return f == FlagSpeedTooHigh || f == FlagTeleport || f == FlagInvalidCoordinates
}

func (f Flag) severity() Severity {
	switch f {
	case FlagPossiblyInVehicle:
		return SeverityLow
	case FlagSpeedTooHigh:
		return SeverityHigh
	case FlagTeleport, FlagInvalidCoordinates:
		return SeverityCritical
	default:
		return SeverityNone
	}
}

// Verdict is the classification of one movement step.
type Verdict struct {
	Valid          bool     `json:"valid"`
	Flag           Flag     `json:"reason"`
	Severity       Severity `json:"severity,omitempty"`
	SpeedMps       float64  `json:"speed_mps"`
	DistanceMeters float64  `json:"distance_meters"`
}

// Analysis aggregates verdicts over a window of samples.
type Analysis struct {
	Valid      bool      `json:"valid"`
	Violations []Verdict `json:"violations,omitempty"`
	Warnings   []Verdict `json:"warnings,omitempty"`
}

// Thresholds are speed bands in meters per second.
type Thresholds struct {
	VehicleMps    float64 // above this: possibly in a vehicle, still valid
	SpeedLimitMps float64 // above this: too fast
	TeleportMps   float64 // above this: teleport
}

// DefaultThresholds: 15 m/s sits just above an elite sprint plus GPS drift, 35 m/s
// covers ordinary vehicle travel, anything past 100 m/s is a teleport.
func DefaultThresholds() Thresholds {
	return Thresholds{
		VehicleMps:    15,
		SpeedLimitMps: 35,
		TeleportMps:   100,
	}
}

// Validator classifies movement. It holds no per-player state.
type Validator struct {
	th Thresholds
}

// NewValidator creates a validator with the given thresholds.
func NewValidator(th Thresholds) *Validator {
	return &Validator{th: th}
}

// QuickCheck classifies the step from previous to current.
func (v *Validator) QuickCheck(previous, current MovementSample) Verdict {
	if !previous.Point.Valid() || !current.Point.Valid() {
		return v.verdict(FlagInvalidCoordinates, 0, 0)
	}

	d := geo.DistanceMeters(previous.Point, current.Point)
	dt := current.Point.Timestamp.Sub(previous.Point.Timestamp).Seconds()
	if dt <= 0 {
		// Out-of-order or duplicate timestamps cannot be evaluated.
		return Verdict{Valid: true, DistanceMeters: d}
	}

	speed := d / dt
	if math.IsNaN(speed) || math.IsInf(speed, 0) {
		return v.verdict(FlagInvalidCoordinates, 0, d)
	}

	switch {
	case speed > v.th.TeleportMps:
		return v.verdict(FlagTeleport, speed, d)
	case speed > v.th.SpeedLimitMps:
		return v.verdict(FlagSpeedTooHigh, speed, d)
	case speed > v.th.VehicleMps:
		return v.verdict(FlagPossiblyInVehicle, speed, d)
	default:
		return v.verdict(FlagNone, speed, d)
	}
}

func (v *Validator) verdict(f Flag, speed, distance float64) Verdict {
	return Verdict{
		Valid:          !f.Blocks(),
		Flag:           f,
		Severity:       f.severity(),
		SpeedMps:       speed,
		DistanceMeters: distance,
	}
}

// AnalyzeWindow runs QuickCheck over each consecutive pair. Any blocking flag makes
// the whole window invalid; non-blocking flags are reported as warnings.
func (v *Validator) AnalyzeWindow(samples []MovementSample) Analysis {
	a := Analysis{Valid: true}
	for i := 1; i < len(samples); i++ {
		verdict := v.QuickCheck(samples[i-1], samples[i])
		switch {
		case !verdict.Valid:
			a.Valid = false
			a.Violations = append(a.Violations, verdict)
		case verdict.Flag != FlagNone:
			a.Warnings = append(a.Warnings, verdict)
		}
	}
	return a
}
