package game

import "time"

// Player limits
const (
	MinPlayers = 2
	MaxPlayers = 8
	MaxIt      = 1
)

// Tagging
const (
	DefaultTagRadius = 25.0             // meters
	TagBackImmunity  = 10 * time.Second // a fresh runner cannot be tagged straight back
)

// DefaultStaleFixAfter is how old a runner's last fix may be before the runner is
// ignored when picking a tag target. Phones report every 1 to 5 minutes.
const DefaultStaleFixAfter = 6 * time.Minute
