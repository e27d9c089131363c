package room

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ugaemi/geotag-server/internal/ambush"
	"github.com/ugaemi/geotag-server/internal/anticheat"
	"github.com/ugaemi/geotag-server/internal/event"
	"github.com/ugaemi/geotag-server/internal/game"
	"github.com/ugaemi/geotag-server/internal/geo"
	"github.com/ugaemi/geotag-server/internal/store"
	"github.com/ugaemi/geotag-server/internal/territory"
	"github.com/ugaemi/geotag-server/internal/ws"
)

var (
	ErrRoomFull         = errors.New("room is full")
	ErrPlayerNotFound   = errors.New("player not in room")
	ErrNotPlaying       = errors.New("game is not in progress")
	ErrAlreadyPlaying   = errors.New("game already in progress")
	ErrNotIt            = errors.New("only IT can tag")
	ErrNoTarget         = errors.New("no runner to tag")
	ErrNoFix            = errors.New("no location fix yet")
	ErrRoleTaken        = errors.New("role is taken")
	ErrInvalidZone      = errors.New("invalid zone")
	ErrInvalidSchedule  = errors.New("invalid schedule")
	ErrInvalidTagRadius = errors.New("invalid tag radius")
)

// Room is one game: its players and every rule service scoped to them. Services are
// never shared between rooms.
type Room struct {
	Code    string                  `json:"code"`
	State   game.RoomState          `json:"state"`
	Players map[string]*game.Player `json:"players"`
	HostID  string                  `json:"host_id"`

	// Client mapping: player ID -> ws client
	clients map[string]*ws.Client
	// Join order, so tie-breaks between equidistant runners are stable.
	order []string

	settings    Settings
	territories *territory.Service
	ambushes    *ambush.Service
	tracker     *anticheat.Tracker
	bus         *event.Bus
	store       store.StateStore
	now         func() time.Time

	pumpDone  chan struct{}
	closeOnce sync.Once

	mu sync.RWMutex
}

// Option configures a Room.
type Option func(*Room)

// WithClock overrides the time source for the room and its services.
func WithClock(now func() time.Time) Option {
	return func(r *Room) { r.now = now }
}

// NewRoom creates a room. A nil store keeps owner state in memory only.
func NewRoom(code string, settings Settings, st store.StateStore, opts ...Option) *Room {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if st == nil {
		st = store.NewMemoryStore()
	}

	r := &Room{
		Code:     code,
		State:    game.StateWaiting,
		Players:  make(map[string]*game.Player),
		clients:  make(map[string]*ws.Client),
		settings: settings,
		store:    st,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.bus = event.NewBus(settings.EventBuffer)
	r.territories = territory.NewService(settings.Territory, r.bus, territory.WithClock(r.now))
	r.ambushes = ambush.NewService(settings.Ambush, r.bus, ambush.WithClock(r.now))
	r.tracker = anticheat.NewTracker(anticheat.NewValidator(settings.AntiCheat), settings.FixWindow)
	return r
}

// Start launches the background sweepers and the event pump.
func (r *Room) Start() {
	events, _ := r.bus.Subscribe()
	done := make(chan struct{})

	r.mu.Lock()
	r.pumpDone = done
	r.mu.Unlock()

	go r.pump(events, done)
	r.territories.Start()
	r.ambushes.Start()
}

// Close persists every player's state and stops the room's goroutines. It is safe to
// call more than once.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		r.territories.Close()
		r.ambushes.Close()

		for _, p := range r.GetPlayerList() {
			r.persistTerritories(p.ID)
			r.persistAmbushes(p.ID)
		}

		r.bus.Close()
		r.mu.RLock()
		done := r.pumpDone
		r.mu.RUnlock()
		if done != nil {
			<-done
		}
		slog.Info("room closed", "room", r.Code)
	})
}

// AddPlayer adds a player to the room and restores what they own from the store.
func (r *Room) AddPlayer(player *game.Player, client *ws.Client) error {
	r.mu.Lock()
	if len(r.Players) >= game.MaxPlayers {
		r.mu.Unlock()
		return ErrRoomFull
	}
	if _, exists := r.Players[player.ID]; !exists {
		r.order = append(r.order, player.ID)
	}
	r.Players[player.ID] = player
	r.clients[player.ID] = client
	if len(r.Players) == 1 {
		r.HostID = player.ID
	}
	r.mu.Unlock()

	r.restore(player.ID)
	return nil
}

func (r *Room) restore(ownerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.settings.StoreTimeout)
	defer cancel()

	snap, err := r.store.LoadTerritories(ctx, ownerID)
	if err != nil {
		slog.Warn("failed to load territories", "room", r.Code, "owner", ownerID, "error", err)
	} else {
		r.territories.Restore(ownerID, snap)
	}

	points, err := r.store.LoadAmbushes(ctx, ownerID)
	if err != nil {
		slog.Warn("failed to load ambushes", "room", r.Code, "owner", ownerID, "error", err)
	} else {
		r.ambushes.Restore(ownerID, points)
	}
}

// RemovePlayer removes a player from the room after saving what they own. If the
// game can no longer continue it returns to waiting; if IT left, a new IT is drawn.
func (r *Room) RemovePlayer(playerID string) {
	if !r.HasPlayer(playerID) {
		return
	}
	r.persistTerritories(playerID)
	r.persistAmbushes(playerID)
	r.tracker.Forget(playerID)

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.Players[playerID]
	if !ok {
		return
	}
	delete(r.Players, playerID)
	delete(r.clients, playerID)
	r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == playerID })

	// Transfer host if the host left
	if r.HostID == playerID && len(r.order) > 0 {
		r.HostID = r.order[0]
	}

	if r.State != game.StatePlaying {
		return
	}
	remaining := r.playerListLocked()
	if len(remaining) < game.MinPlayers {
		r.State = game.StateWaiting
		for _, other := range remaining {
			other.Ready = false
		}
		slog.Info("game stopped, not enough players", "room", r.Code)
		return
	}
	if p.Role == game.RoleIt {
		it := game.AssignRoles(remaining)
		slog.Info("IT left, new IT drawn", "room", r.Code, "it", it.ID)
	}
}

// HasPlayer reports whether the player is in this room.
func (r *Room) HasPlayer(playerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.Players[playerID]
	return ok
}

// PlayerCount returns the number of players.
func (r *Room) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Players)
}

// SelectRole sets a player's role while the room is waiting. Only one player may
// pick IT.
func (r *Room) SelectRole(playerID string, role game.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State == game.StatePlaying {
		return ErrAlreadyPlaying
	}
	p, ok := r.Players[playerID]
	if !ok {
		return ErrPlayerNotFound
	}
	if role == game.RoleIt && p.Role != game.RoleIt && game.CountRole(r.playerListLocked(), game.RoleIt) >= game.MaxIt {
		return ErrRoleTaken
	}
	p.SetRole(role)
	return nil
}

// SetPlayerReady sets a player's ready status and returns whether all players are ready.
// This must be used instead of setting Ready directly to avoid race conditions.
func (r *Room) SetPlayerReady(playerID string, ready bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.Players[playerID]; ok {
		p.Ready = ready
	}
	return r.State == game.StateWaiting && game.AllReady(r.playerListLocked())
}

// StartGame assigns roles and moves the room to playing. It returns the player who
// starts as IT.
func (r *Room) StartGame() (*game.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State == game.StatePlaying {
		return nil, ErrAlreadyPlaying
	}
	players := r.playerListLocked()
	if len(players) < game.MinPlayers {
		return nil, ErrNotPlaying
	}
	it := game.AssignRoles(players)
	r.State = game.StatePlaying

	slog.Info("game started", "room", r.Code, "players", len(players), "it", it.ID)
	return it, nil
}

// GetPlayerList returns copies of all players in join order.
func (r *Room) GetPlayerList() []game.Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	players := make([]game.Player, 0, len(r.order))
	for _, p := range r.playerListLocked() {
		players = append(players, *p)
	}
	return players
}

// Caller must hold r.mu.
func (r *Room) playerListLocked() []*game.Player {
	players := make([]*game.Player, 0, len(r.order))
	for _, id := range r.order {
		if p, ok := r.Players[id]; ok {
			players = append(players, p)
		}
	}
	return players
}

// Info is a consistent snapshot for room_info pushes.
type Info struct {
	Code      string             `json:"code"`
	State     game.RoomState     `json:"state"`
	HostID    string             `json:"host_id"`
	Players   []game.Player      `json:"players"`
	Zones     []geo.CircularZone `json:"zones,omitempty"`
	TagRadius float64            `json:"tag_radius"`
}

// Info returns the room's public state.
func (r *Room) Info() Info {
	players := r.GetPlayerList()

	r.mu.RLock()
	defer r.mu.RUnlock()
	return Info{
		Code:      r.Code,
		State:     r.State,
		HostID:    r.HostID,
		Players:   players,
		Zones:     r.settings.Zones,
		TagRadius: r.settings.TagRadius,
	}
}

// BroadcastMessage sends a message to all players in the room.
func (r *Room) BroadcastMessage(msg ws.Message) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, client := range r.clients {
		client.SendMessage(msg)
	}
}

// SendToPlayer sends a message to a specific player.
func (r *Room) SendToPlayer(playerID string, msg ws.Message) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if client, ok := r.clients[playerID]; ok && client != nil {
		client.SendMessage(msg)
	}
}

func (r *Room) send(playerID, msgType string, payload any) {
	msg, err := ws.NewMessage(msgType, payload)
	if err != nil {
		slog.Error("failed to encode message", "type", msgType, "error", err)
		return
	}
	r.SendToPlayer(playerID, msg)
}

// IsEmpty returns true if the room has no players.
func (r *Room) IsEmpty() bool {
	return r.PlayerCount() == 0
}

// Reset returns the room to waiting, keeping players and their roles.
func (r *Room) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.State = game.StateWaiting
	for _, p := range r.Players {
		p.Reset()
	}
}

// pump forwards service notifications to the owner's connection. Player-driven
// changes are saved where they happen; sweeper changes are saved here first.
func (r *Room) pump(events <-chan event.Event, done chan struct{}) {
	defer close(done)
	for ev := range events {
		switch ev.Type {
		case event.TerritoriesDecayed, event.ClaimExpired:
			r.persistTerritories(ev.OwnerID)
		case event.AmbushExpired:
			r.persistAmbushes(ev.OwnerID)
		}
		r.send(ev.OwnerID, string(ev.Type), ev)
	}
}

func (r *Room) persistTerritories(ownerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.settings.StoreTimeout)
	defer cancel()
	if err := r.store.SaveTerritories(ctx, ownerID, r.territories.Snapshot(ownerID)); err != nil {
		slog.Error("failed to save territories", "room", r.Code, "owner", ownerID, "error", err)
	}
}

func (r *Room) persistAmbushes(ownerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.settings.StoreTimeout)
	defer cancel()
	if err := r.store.SaveAmbushes(ctx, ownerID, r.ambushes.Points(ownerID)); err != nil {
		slog.Error("failed to save ambushes", "room", r.Code, "owner", ownerID, "error", err)
	}
}
