package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ugaemi/geotag-server/internal/ambush"
	"github.com/ugaemi/geotag-server/internal/territory"
)

const schema = `
CREATE TABLE IF NOT EXISTS owner_state (
    owner_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    data JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (owner_id, kind)
);
`

// PostgresStore implements StateStore using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to PostgreSQL and initializes the schema.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// LoadTerritories returns the owner's territories and active claim.
func (s *PostgresStore) LoadTerritories(ctx context.Context, ownerID string) (territory.Snapshot, error) {
	var snap territory.Snapshot
	err := s.load(ctx, ownerID, KindTerritories, &snap)
	return snap, err
}

// SaveTerritories replaces the owner's territories and active claim.
func (s *PostgresStore) SaveTerritories(ctx context.Context, ownerID string, snap territory.Snapshot) error {
	return s.save(ctx, ownerID, KindTerritories, snap)
}

// LoadAmbushes returns the owner's placed ambush points.
func (s *PostgresStore) LoadAmbushes(ctx context.Context, ownerID string) ([]ambush.Point, error) {
	var points []ambush.Point
	err := s.load(ctx, ownerID, KindAmbushes, &points)
	return points, err
}

// SaveAmbushes replaces the owner's placed ambush points.
func (s *PostgresStore) SaveAmbushes(ctx context.Context, ownerID string, points []ambush.Point) error {
	return s.save(ctx, ownerID, KindAmbushes, points)
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases database resources.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) load(ctx context.Context, ownerID, kind string, v any) error {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM owner_state WHERE owner_id = $1 AND kind = $2`,
		ownerID, kind).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s for %s: %w", kind, ownerID, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s for %s: %w", kind, ownerID, err)
	}
	return nil
}

func (s *PostgresStore) save(ctx context.Context, ownerID, kind string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s for %s: %w", kind, ownerID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO owner_state (owner_id, kind, data, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (owner_id, kind) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		ownerID, kind, data, time.Now())
	if err != nil {
		return fmt.Errorf("save %s for %s: %w", kind, ownerID, err)
	}
	return nil
}
