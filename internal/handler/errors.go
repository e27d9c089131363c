package handler

import (
	"errors"
	"log/slog"

	"github.com/ugaemi/geotag-server/internal/ambush"
	"github.com/ugaemi/geotag-server/internal/room"
	"github.com/ugaemi/geotag-server/internal/territory"
	"github.com/ugaemi/geotag-server/internal/ws"
)

// Error codes sent to clients. Clients localize them; the server never sends prose.
const (
	CodeInvalidMessage        = "INVALID_MESSAGE"
	CodeUnknownMessageType    = "UNKNOWN_MESSAGE_TYPE"
	CodeNicknameRequired      = "NICKNAME_REQUIRED"
	CodeRoomNotFound          = "ROOM_NOT_FOUND"
	CodeRoomFull              = "ROOM_FULL"
	CodeAlreadyInRoom         = "ALREADY_IN_ROOM"
	CodeNotInRoom             = "NOT_IN_ROOM"
	CodeInvalidRole           = "INVALID_ROLE"
	CodeRoleTaken             = "ROLE_TAKEN"
	CodeGameNotStarted        = "GAME_NOT_STARTED"
	CodeGameInProgress        = "GAME_IN_PROGRESS"
	CodeNotIt                 = "NOT_IT"
	CodeNoTarget              = "NO_TARGET"
	CodeNoLocation            = "NO_LOCATION"
	CodeInvalidLocation       = "INVALID_LOCATION"
	CodeInvalidZone           = "INVALID_ZONE"
	CodeInvalidSchedule       = "INVALID_SCHEDULE"
	CodeInvalidTagRadius      = "INVALID_TAG_RADIUS"
	CodeMaxTerritoriesReached = "MAX_TERRITORIES_REACHED"
	CodeTooCloseToExisting    = "TOO_CLOSE_TO_EXISTING"
	CodeClaimInProgress       = "CLAIM_IN_PROGRESS"
	CodeClaimNotFound         = "CLAIM_NOT_FOUND"
	CodeTerritoryNotFound     = "TERRITORY_NOT_FOUND"
	CodeAmbushCapacityReached = "AMBUSH_CAPACITY_REACHED"
	CodeAmbushNotFound        = "AMBUSH_NOT_FOUND"
	CodeInvalidAmbushOptions  = "INVALID_AMBUSH_OPTIONS"
	CodeTextTooLong           = "TEXT_TOO_LONG"
	CodeInternal              = "INTERNAL_ERROR"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{room.ErrRoomFull, CodeRoomFull},
	{room.ErrPlayerNotFound, CodeNotInRoom},
	{room.ErrNotPlaying, CodeGameNotStarted},
	{room.ErrAlreadyPlaying, CodeGameInProgress},
	{room.ErrNotIt, CodeNotIt},
	{room.ErrNoTarget, CodeNoTarget},
	{room.ErrNoFix, CodeNoLocation},
	{room.ErrRoleTaken, CodeRoleTaken},
	{room.ErrInvalidZone, CodeInvalidZone},
	{room.ErrInvalidSchedule, CodeInvalidSchedule},
	{room.ErrInvalidTagRadius, CodeInvalidTagRadius},
	{territory.ErrMaxTerritoriesReached, CodeMaxTerritoriesReached},
	{territory.ErrTooCloseToExisting, CodeTooCloseToExisting},
	{territory.ErrClaimInProgress, CodeClaimInProgress},
	{territory.ErrClaimNotFound, CodeClaimNotFound},
	{territory.ErrTerritoryNotFound, CodeTerritoryNotFound},
	{territory.ErrInvalidLocation, CodeInvalidLocation},
	{ambush.ErrCapacityReached, CodeAmbushCapacityReached},
	{ambush.ErrPointNotFound, CodeAmbushNotFound},
	{ambush.ErrInvalidLocation, CodeInvalidLocation},
	{ambush.ErrInvalidOptions, CodeInvalidAmbushOptions},
}

// ErrorCode maps a domain error to its client code.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}

// sendError reports a failed request to the client.
func sendError(client *ws.Client, request string, err error) {
	code := ErrorCode(err)
	if code == CodeInternal {
		slog.Error("request failed", "client", client.ID, "request", request, "error", err)
	} else {
		slog.Debug("request rejected", "client", client.ID, "request", request, "code", code)
	}
	client.SendMessage(ws.NewRequestError(code, request))
}
