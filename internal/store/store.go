package store

import (
	"context"

	"github.com/ugaemi/geotag-server/internal/ambush"
	"github.com/ugaemi/geotag-server/internal/territory"
)

// Kinds of per-owner state.
const (
	KindTerritories = "territories"
	KindAmbushes    = "ambushes"
)

// StateStore persists opaque per-owner game state. Loading an owner with nothing saved
// returns the zero value and no error.
type StateStore interface {
	// LoadTerritories returns the owner's territories and active claim.
	LoadTerritories(ctx context.Context, ownerID string) (territory.Snapshot, error)
	// SaveTerritories replaces the owner's territories and active claim.
	SaveTerritories(ctx context.Context, ownerID string, snap territory.Snapshot) error
	// LoadAmbushes returns the owner's placed ambush points.
	LoadAmbushes(ctx context.Context, ownerID string) ([]ambush.Point, error)
	// SaveAmbushes replaces the owner's placed ambush points.
	SaveAmbushes(ctx context.Context, ownerID string, points []ambush.Point) error
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
	// Close releases storage resources.
	Close() error
}

var (
	_ StateStore = (*PostgresStore)(nil)
	_ StateStore = (*MemoryStore)(nil)
)
