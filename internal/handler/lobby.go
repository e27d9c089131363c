package handler

import (
	"encoding/json"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/ugaemi/geotag-server/internal/game"
	"github.com/ugaemi/geotag-server/internal/geo"
	"github.com/ugaemi/geotag-server/internal/room"
	"github.com/ugaemi/geotag-server/internal/rules"
	"github.com/ugaemi/geotag-server/internal/ws"
)

// LobbyHandler handles lobby-related messages.
type LobbyHandler struct {
	rm     *room.Manager
	router *Router
}

// NewLobbyHandler creates a new lobby handler.
func NewLobbyHandler(rm *room.Manager, router *Router) *LobbyHandler {
	return &LobbyHandler{
		rm:     rm,
		router: router,
	}
}

type zoneRequest struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Radius float64 `json:"radius"`
}

type scheduleRequest struct {
	ID    string         `json:"id"`
	Days  []time.Weekday `json:"days"` // 0 = Sunday
	Start string         `json:"start"` // "HH:MM"
	End   string         `json:"end"`
}

type createRoomRequest struct {
	Nickname  string            `json:"nickname"`
	PlayerID  string            `json:"player_id,omitempty"`
	Zones     []zoneRequest     `json:"zones,omitempty"`
	Schedules []scheduleRequest `json:"schedules,omitempty"`
	TagRadius float64           `json:"tag_radius,omitempty"`
}

// options converts the request into room overrides.
func (req createRoomRequest) options() (room.Options, error) {
	var o room.Options
	for _, z := range req.Zones {
		o.Zones = append(o.Zones, geo.CircularZone{
			ID:           z.ID,
			Name:         z.Name,
			Center:       geo.GeoPoint{Latitude: z.Lat, Longitude: z.Lng},
			RadiusMeters: z.Radius,
			Active:       true,
		})
	}
	for _, s := range req.Schedules {
		rule, err := rules.NewTimeWindowRule(s.ID, s.Days, s.Start, s.End)
		if err != nil {
			return room.Options{}, room.ErrInvalidSchedule
		}
		o.Schedules = append(o.Schedules, rule)
	}
	o.TagRadius = req.TagRadius
	return o, nil
}

type joinRoomResponse struct {
	Code     string `json:"code"`
	PlayerID string `json:"player_id"`
}

// HandleCreateRoom creates a room with the host's zones and schedules and seats the host in it.
func (h *LobbyHandler) HandleCreateRoom(client *ws.Client, msg ws.Message) {
	var req createRoomRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		client.SendMessage(ws.NewRequestError(CodeInvalidMessage, msg.Type))
		return
	}
	if req.Nickname == "" {
		client.SendMessage(ws.NewRequestError(CodeNicknameRequired, msg.Type))
		return
	}
	if utf8.RuneCountInString(req.Nickname) > maxNameLength {
		client.SendMessage(ws.NewRequestError(CodeTextTooLong, msg.Type))
		return
	}
	if !h.canJoin(client, msg.Type, req.PlayerID) {
		return
	}

	opts, err := req.options()
	if err != nil {
		sendError(client, msg.Type, err)
		return
	}
	r, err := h.rm.CreateRoom(opts)
	if err != nil {
		sendError(client, msg.Type, err)
		return
	}

	player := game.NewPlayer(req.PlayerID, req.Nickname)
	if err := r.AddPlayer(player, client); err != nil {
		h.rm.RemoveRoom(r.Code)
		sendError(client, msg.Type, err)
		return
	}
	h.seat(client, msg.Type, r, player)

	slog.Info("player created room", "player", player.Nickname, "room", r.Code)
}

type joinRoomRequest struct {
	Code     string `json:"code"`
	Nickname string `json:"nickname"`
	PlayerID string `json:"player_id,omitempty"`
}

// HandleJoinRoom handles joining an existing room.
func (h *LobbyHandler) HandleJoinRoom(client *ws.Client, msg ws.Message) {
	var req joinRoomRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.Code == "" {
		client.SendMessage(ws.NewRequestError(CodeInvalidMessage, msg.Type))
		return
	}
	if req.Nickname == "" {
		client.SendMessage(ws.NewRequestError(CodeNicknameRequired, msg.Type))
		return
	}
	if utf8.RuneCountInString(req.Nickname) > maxNameLength {
		client.SendMessage(ws.NewRequestError(CodeTextTooLong, msg.Type))
		return
	}
	if !h.canJoin(client, msg.Type, req.PlayerID) {
		return
	}

	r := h.rm.GetRoom(req.Code)
	if r == nil {
		client.SendMessage(ws.NewRequestError(CodeRoomNotFound, msg.Type))
		return
	}

	player := game.NewPlayer(req.PlayerID, req.Nickname)
	if err := r.AddPlayer(player, client); err != nil {
		sendError(client, msg.Type, err)
		return
	}
	h.seat(client, msg.Type, r, player)

	slog.Info("player joined room", "player", player.Nickname, "room", r.Code)
}

// canJoin rejects a client that already holds a seat, and a stable player ID that
// is seated on another connection.
func (h *LobbyHandler) canJoin(client *ws.Client, request, playerID string) bool {
	if h.router.GetPlayerID(client.ID) != "" ||
		(playerID != "" && h.rm.FindRoomByPlayerID(playerID) != nil) {
		client.SendMessage(ws.NewRequestError(CodeAlreadyInRoom, request))
		return false
	}
	return true
}

// seat confirms the join, sends the player what they own and refreshes everyone's lobby.
func (h *LobbyHandler) seat(client *ws.Client, request string, r *room.Room, player *game.Player) {
	h.router.RegisterPlayer(client.ID, player.ID)

	resp, _ := ws.NewMessage(request, joinRoomResponse{
		Code:     r.Code,
		PlayerID: player.ID,
	})
	client.SendMessage(resp)

	owned, _ := ws.NewMessage(ws.TypeOwnerState, r.OwnerState(player.ID))
	client.SendMessage(owned)

	h.broadcastRoomInfo(r)
}

type selectRoleRequest struct {
	Role string `json:"role"` // "it" or "runner"
}

// HandleSelectRole handles role selection.
func (h *LobbyHandler) HandleSelectRole(client *ws.Client, msg ws.Message) {
	var req selectRoleRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		client.SendMessage(ws.NewRequestError(CodeInvalidMessage, msg.Type))
		return
	}

	var role game.Role
	switch req.Role {
	case "it":
		role = game.RoleIt
	case "runner":
		role = game.RoleRunner
	default:
		client.SendMessage(ws.NewRequestError(CodeInvalidRole, msg.Type))
		return
	}

	r, playerID, ok := findSession(h.rm, h.router, client, msg.Type)
	if !ok {
		return
	}
	if err := r.SelectRole(playerID, role); err != nil {
		sendError(client, msg.Type, err)
		return
	}
	h.broadcastRoomInfo(r)

	slog.Info("player selected role", "player", playerID, "role", role.String())
}

// HandlePlayerReady marks the player ready and starts the game once everyone is.
func (h *LobbyHandler) HandlePlayerReady(client *ws.Client, msg ws.Message) {
	r, playerID, ok := findSession(h.rm, h.router, client, msg.Type)
	if !ok {
		return
	}

	allReady := r.SetPlayerReady(playerID, true)
	slog.Info("player ready", "player", playerID, "room", r.Code)

	if allReady && r.PlayerCount() >= game.MinPlayers {
		it, err := r.StartGame()
		if err != nil {
			// Another ready message won the race.
			slog.Debug("game start skipped", "room", r.Code, "error", err)
		} else {
			startMsg, _ := ws.NewMessage(ws.TypeGameStart, gameStartResponse{
				Players: r.GetPlayerList(),
				ItID:    it.ID,
			})
			r.BroadcastMessage(startMsg)
			slog.Info("all players ready, game starting", "room", r.Code)
		}
	}
	h.broadcastRoomInfo(r)
}

// HandleLeaveRoom handles a player leaving a room.
func (h *LobbyHandler) HandleLeaveRoom(client *ws.Client, _ ws.Message) {
	h.removePlayer(client)
}

// HandleDisconnect handles client disconnection.
func (h *LobbyHandler) HandleDisconnect(client *ws.Client) {
	h.removePlayer(client)
}

func (h *LobbyHandler) removePlayer(client *ws.Client) {
	playerID := h.router.GetPlayerID(client.ID)
	if playerID == "" {
		return
	}

	r := h.rm.FindRoomByPlayerID(playerID)
	if r != nil {
		r.RemovePlayer(playerID)
		if r.IsEmpty() {
			h.rm.RemoveRoom(r.Code)
		} else {
			h.broadcastRoomInfo(r)
		}
	}

	h.router.UnregisterPlayer(client.ID)
	slog.Info("player left", "player", playerID)
}

type gameStartResponse struct {
	Players []game.Player `json:"players"`
	ItID    string        `json:"it_id"`
}

func (h *LobbyHandler) broadcastRoomInfo(r *room.Room) {
	resp, _ := ws.NewMessage(ws.TypeRoomInfo, r.Info())
	r.BroadcastMessage(resp)
}

// findSession resolves the client's player and room, replying NOT_IN_ROOM when
// the client holds no seat.
func findSession(rm *room.Manager, router *Router, client *ws.Client, request string) (*room.Room, string, bool) {
	playerID := router.GetPlayerID(client.ID)
	if playerID == "" {
		client.SendMessage(ws.NewRequestError(CodeNotInRoom, request))
		return nil, "", false
	}
	r := rm.FindRoomByPlayerID(playerID)
	if r == nil {
		client.SendMessage(ws.NewRequestError(CodeNotInRoom, request))
		return nil, "", false
	}
	return r, playerID, true
}
