package handler

import (
	"encoding/json"
	"log/slog"
	"math"
	"time"
	"unicode/utf8"

	"github.com/ugaemi/geotag-server/internal/ambush"
	"github.com/ugaemi/geotag-server/internal/geo"
	"github.com/ugaemi/geotag-server/internal/room"
	"github.com/ugaemi/geotag-server/internal/territory"
	"github.com/ugaemi/geotag-server/internal/ws"
)

// GameplayHandler handles in-game messages.
type GameplayHandler struct {
	rm     *room.Manager
	router *Router
}

// NewGameplayHandler creates a new gameplay handler.
func NewGameplayHandler(rm *room.Manager, router *Router) *GameplayHandler {
	return &GameplayHandler{rm: rm, router: router}
}

func (h *GameplayHandler) session(client *ws.Client, request string) (*room.Room, string, bool) {
	return findSession(h.rm, h.router, client, request)
}

// decode unmarshals the request payload, replying INVALID_MESSAGE on failure.
func decode(client *ws.Client, msg ws.Message, v any) bool {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		client.SendMessage(ws.NewRequestError(CodeInvalidMessage, msg.Type))
		return false
	}
	return true
}

// Limits on client-supplied text that ends up in persisted owner state.
const (
	maxNameLength = 64
	maxIconLength = 32
)

// maxTTLSeconds is the largest ttl_seconds that still fits in a time.Duration.
const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

// checkLength replies TEXT_TOO_LONG when s has more than limit characters.
func checkLength(client *ws.Client, request, s string, limit int) bool {
	if utf8.RuneCountInString(s) > limit {
		client.SendMessage(ws.NewRequestError(CodeTextTooLong, request))
		return false
	}
	return true
}

func reply(client *ws.Client, msgType string, payload any) {
	resp, err := ws.NewMessage(msgType, payload)
	if err != nil {
		slog.Error("failed to encode response", "type", msgType, "error", err)
		return
	}
	client.SendMessage(resp)
}

type locationUpdateRequest struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// HandleLocationUpdate screens and applies a location fix.
func (h *GameplayHandler) HandleLocationUpdate(client *ws.Client, msg ws.Message) {
	var req locationUpdateRequest
	if !decode(client, msg, &req) {
		return
	}
	r, playerID, ok := h.session(client, msg.Type)
	if !ok {
		return
	}

	res, err := r.UpdateLocation(playerID, geo.GeoPoint{
		Latitude:  req.Lat,
		Longitude: req.Lng,
		Accuracy:  req.Accuracy,
		Timestamp: req.Timestamp,
	})
	if err != nil {
		sendError(client, msg.Type, err)
		return
	}
	reply(client, ws.TypeLocationResult, res)
}

// HandleTagAttempt lets IT try to tag the nearest runner.
func (h *GameplayHandler) HandleTagAttempt(client *ws.Client, msg ws.Message) {
	r, playerID, ok := h.session(client, msg.Type)
	if !ok {
		return
	}

	res, err := r.AttemptTag(playerID)
	if err != nil {
		sendError(client, msg.Type, err)
		return
	}
	reply(client, ws.TypeTagResult, res)
}

type claimStartRequest struct {
	Name string `json:"name"`
}

// HandleClaimStart starts a territory claim at the player's position.
func (h *GameplayHandler) HandleClaimStart(client *ws.Client, msg ws.Message) {
	var req claimStartRequest
	if len(msg.Data) > 0 && !decode(client, msg, &req) {
		return
	}
	if !checkLength(client, msg.Type, req.Name, maxNameLength) {
		return
	}
	r, playerID, ok := h.session(client, msg.Type)
	if !ok {
		return
	}

	claim, err := r.StartClaim(playerID, req.Name)
	if err != nil {
		sendError(client, msg.Type, err)
		return
	}
	reply(client, msg.Type, claim)
}

// HandleClaimCancel abandons the player's active claim.
func (h *GameplayHandler) HandleClaimCancel(client *ws.Client, msg ws.Message) {
	r, playerID, ok := h.session(client, msg.Type)
	if !ok {
		return
	}

	if err := r.CancelClaim(playerID); err != nil {
		sendError(client, msg.Type, err)
		return
	}
	reply(client, msg.Type, r.OwnerState(playerID))
}

type territoryRequest struct {
	TerritoryID string `json:"territory_id"`
	Name        string `json:"name,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// HandleTerritoryRename renames one of the player's territories.
func (h *GameplayHandler) HandleTerritoryRename(client *ws.Client, msg ws.Message) {
	h.editTerritory(client, msg, func(r *room.Room, playerID string, req territoryRequest) (territory.Territory, error) {
		return r.RenameTerritory(playerID, req.TerritoryID, req.Name)
	})
}

// HandleTerritoryIcon changes the icon of one of the player's territories.
func (h *GameplayHandler) HandleTerritoryIcon(client *ws.Client, msg ws.Message) {
	h.editTerritory(client, msg, func(r *room.Room, playerID string, req territoryRequest) (territory.Territory, error) {
		return r.SetTerritoryIcon(playerID, req.TerritoryID, req.Icon)
	})
}

func (h *GameplayHandler) editTerritory(client *ws.Client, msg ws.Message,
	edit func(*room.Room, string, territoryRequest) (territory.Territory, error)) {
	var req territoryRequest
	if !decode(client, msg, &req) {
		return
	}
	if !checkLength(client, msg.Type, req.Name, maxNameLength) ||
		!checkLength(client, msg.Type, req.Icon, maxIconLength) {
		return
	}
	r, playerID, ok := h.session(client, msg.Type)
	if !ok {
		return
	}

	t, err := edit(r, playerID, req)
	if err != nil {
		sendError(client, msg.Type, err)
		return
	}
	reply(client, msg.Type, t)
}

// HandleTerritoryRemove deletes one of the player's territories.
func (h *GameplayHandler) HandleTerritoryRemove(client *ws.Client, msg ws.Message) {
	var req territoryRequest
	if !decode(client, msg, &req) {
		return
	}
	r, playerID, ok := h.session(client, msg.Type)
	if !ok {
		return
	}

	if err := r.RemoveTerritory(playerID, req.TerritoryID); err != nil {
		sendError(client, msg.Type, err)
		return
	}
	reply(client, msg.Type, r.OwnerState(playerID))
}

type ambushPlaceRequest struct {
	Icon       string  `json:"icon,omitempty"`
	Radius     float64 `json:"radius,omitempty"`
	TTLSeconds int64   `json:"ttl_seconds,omitempty"`
}

type ambushPlaceResponse struct {
	Point     ambush.Point `json:"point"`
	Remaining int          `json:"remaining"`
}

// HandleAmbushPlace drops an ambush point at the player's position.
func (h *GameplayHandler) HandleAmbushPlace(client *ws.Client, msg ws.Message) {
	var req ambushPlaceRequest
	if len(msg.Data) > 0 && !decode(client, msg, &req) {
		return
	}
	if !checkLength(client, msg.Type, req.Icon, maxIconLength) {
		return
	}
	if req.TTLSeconds < 0 || req.TTLSeconds > maxTTLSeconds {
		client.SendMessage(ws.NewRequestError(CodeInvalidAmbushOptions, msg.Type))
		return
	}
	r, playerID, ok := h.session(client, msg.Type)
	if !ok {
		return
	}

	p, err := r.PlaceAmbush(playerID, ambush.Options{
		Icon:   req.Icon,
		Radius: req.Radius,
		TTL:    time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		sendError(client, msg.Type, err)
		return
	}
	reply(client, msg.Type, ambushPlaceResponse{
		Point:     p,
		Remaining: r.OwnerState(playerID).AmbushRemaining,
	})
}

type ambushRemoveRequest struct {
	AmbushID string `json:"ambush_id"`
}

// HandleAmbushRemove deletes one of the player's ambush points.
func (h *GameplayHandler) HandleAmbushRemove(client *ws.Client, msg ws.Message) {
	var req ambushRemoveRequest
	if !decode(client, msg, &req) {
		return
	}
	r, playerID, ok := h.session(client, msg.Type)
	if !ok {
		return
	}

	if err := r.RemoveAmbush(playerID, req.AmbushID); err != nil {
		sendError(client, msg.Type, err)
		return
	}
	reply(client, msg.Type, r.OwnerState(playerID))
}
