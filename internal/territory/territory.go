package territory

import (
	"errors"
	"time"

	"github.com/ugaemi/geotag-server/internal/geo"
)

var (
	ErrMaxTerritoriesReached = errors.New("max territories reached")
	ErrTooCloseToExisting    = errors.New("too close to existing territory")
	ErrClaimInProgress       = errors.New("claim already in progress")
	ErrClaimNotFound         = errors.New("claim not found")
	ErrTerritoryNotFound     = errors.New("territory not found")
	ErrInvalidLocation       = errors.New("invalid location")
)

// Config tunes claiming, warnings and decay.
type Config struct {
	ClaimTime               time.Duration // in-zone dwell needed to complete a claim
	TerritoryRadius         float64       // meters
	WarningRadius           float64       // meters, hostile proximity alert range
	MaxTerritoriesPerPlayer int
	MinTerritoryDistance    float64       // meters between an owner's territory centers
	DecayTime               time.Duration // unvisited territories older than this are dropped
	ClaimStaleAfter         time.Duration // 0 keeps unattended claims forever
	SweepInterval           time.Duration // 0 disables the background sweeper
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		ClaimTime:               5 * time.Minute,
		TerritoryRadius:         50,
		WarningRadius:           150,
		MaxTerritoriesPerPlayer: 3,
		MinTerritoryDistance:    200,
		DecayTime:               72 * time.Hour,
		SweepInterval:           time.Hour,
	}
}

// Territory is a completed claim.
type Territory struct {
	ID            string           `json:"id"`
	OwnerID       string           `json:"owner_id"`
	Zone          geo.CircularZone `json:"zone"`
	Icon          string           `json:"icon,omitempty"`
	WarningRadius float64          `json:"warning_radius"`
	CreatedAt     time.Time        `json:"created_at"`
	LastVisitedAt time.Time        `json:"last_visited_at"`
	VisitCount    int              `json:"visit_count"`
}

// ClaimProgress is an in-flight claim. Accumulated only grows while the owner is
// inside the claim radius; stepping out pauses it without losing progress.
type ClaimProgress struct {
	ID           string        `json:"id"`
	OwnerID      string        `json:"owner_id"`
	Center       geo.GeoPoint  `json:"center"`
	Name         string        `json:"name"`
	StartedAt    time.Time     `json:"started_at"`
	Accumulated  time.Duration `json:"accumulated"`
	Progress     float64       `json:"progress"`
	Paused       bool          `json:"paused"`
	LastUpdateAt time.Time     `json:"last_update_at"`
}

// Status is the claim state reported by UpdateProgress.
type Status string

const (
	StatusClaiming Status = "claiming"
	StatusPaused   Status = "paused"
	StatusComplete Status = "complete"
)

// Progress is an immutable snapshot returned from UpdateProgress.
type Progress struct {
	ClaimID       string        `json:"claim_id"`
	Status        Status        `json:"status"`
	Progress      float64       `json:"progress"`
	TimeRemaining time.Duration `json:"time_remaining"`
	Territory     *Territory    `json:"territory,omitempty"`
}

// Presence answers whether a point is inside one of an owner's territories.
type Presence struct {
	InTerritory bool       `json:"in_territory"`
	Territory   *Territory `json:"territory,omitempty"`
	Distance    float64    `json:"distance,omitempty"`
}

// Severity grades how close a hostile player is to a territory.
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Warning reports a hostile player near a territory.
type Warning struct {
	Territory Territory `json:"territory"`
	Distance  float64   `json:"distance"`
	Severity  Severity  `json:"severity"`
}

// DecayReport is the payload of a territories_decayed event.
type DecayReport struct {
	Count        int      `json:"count"`
	TerritoryIDs []string `json:"territory_ids"`
}

// Snapshot is the persisted state for one owner.
type Snapshot struct {
	Territories []Territory    `json:"territories"`
	Claim       *ClaimProgress `json:"claim,omitempty"`
}

// severityFor grades distance d against a territory. ok is false outside the warning radius.
func severityFor(t *Territory, d float64) (Severity, bool) {
	r := t.Zone.RadiusMeters
	switch {
	case d <= r:
		return SeverityCritical, true
	case d <= 1.5*r:
		return SeverityHigh, true
	case d <= t.WarningRadius:
		return SeverityMedium, true
	default:
		return "", false
	}
}
