package room

import (
	"log/slog"
	"sync"

	"github.com/ugaemi/geotag-server/internal/store"
)

// Manager manages all active rooms.
type Manager struct {
	rooms    map[string]*Room // code -> room
	defaults Settings
	store    store.StateStore
	opts     []Option
	mu       sync.RWMutex
}

// NewManager creates a room manager. Every room it creates starts from defaults and
// persists owner state to st.
func NewManager(defaults Settings, st store.StateStore, opts ...Option) *Manager {
	return &Manager{
		rooms:    make(map[string]*Room),
		defaults: defaults,
		store:    st,
		opts:     opts,
	}
}

// CreateRoom creates and starts a new room with the host's overrides applied.
func (m *Manager) CreateRoom(o Options) (*Room, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	code := GenerateCode(func(code string) bool {
		_, taken := m.rooms[code]
		return taken
	})
	room := NewRoom(code, m.defaults.apply(o), m.store, m.opts...)
	room.Start()
	m.rooms[code] = room

	slog.Info("room created", "code", code, "zones", len(o.Zones), "schedules", len(o.Schedules))
	return room, nil
}

// GetRoom returns a room by its code.
func (m *Manager) GetRoom(code string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[code]
}

// RemoveRoom closes and removes a room by its code.
func (m *Manager) RemoveRoom(code string) {
	m.mu.Lock()
	room, ok := m.rooms[code]
	delete(m.rooms, code)
	m.mu.Unlock()

	if ok {
		room.Close()
		slog.Info("room removed", "code", code)
	}
}

// RoomCount returns the number of active rooms.
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// FindRoomByPlayerID finds the room containing a player.
func (m *Manager) FindRoomByPlayerID(playerID string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, room := range m.rooms {
		if room.HasPlayer(playerID) {
			return room
		}
	}
	return nil
}

// Close closes every room, persisting all owner state.
func (m *Manager) Close() {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for code, room := range m.rooms {
		rooms = append(rooms, room)
		delete(m.rooms, code)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, room := range rooms {
		wg.Add(1)
		go func() {
			defer wg.Done()
			room.Close()
		}()
	}
	wg.Wait()
	slog.Info("all rooms closed", "count", len(rooms))
}
