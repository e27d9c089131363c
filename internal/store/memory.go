package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ugaemi/geotag-server/internal/ambush"
	"github.com/ugaemi/geotag-server/internal/territory"
)

type key struct {
	owner string
	kind  string
}

// MemoryStore implements StateStore in process memory. Values are kept encoded so
// callers never share slices with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[key][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[key][]byte)}
}

func (s *MemoryStore) LoadTerritories(ctx context.Context, ownerID string) (territory.Snapshot, error) {
	var snap territory.Snapshot
	err := s.load(ownerID, KindTerritories, &snap)
	return snap, err
}

func (s *MemoryStore) SaveTerritories(ctx context.Context, ownerID string, snap territory.Snapshot) error {
	return s.save(ownerID, KindTerritories, snap)
}

func (s *MemoryStore) LoadAmbushes(ctx context.Context, ownerID string) ([]ambush.Point, error) {
	var points []ambush.Point
	err := s.load(ownerID, KindAmbushes, &points)
	return points, err
}

func (s *MemoryStore) SaveAmbushes(ctx context.Context, ownerID string, points []ambush.Point) error {
	return s.save(ownerID, KindAmbushes, points)
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) load(ownerID, kind string, v any) error {
	s.mu.RLock()
	data, ok := s.data[key{ownerID, kind}]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (s *MemoryStore) save(ownerID, kind string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[key{ownerID, kind}] = data
	s.mu.Unlock()
	return nil
}
