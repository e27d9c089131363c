package ws

import "encoding/json"

// Message represents a WebSocket message with type-based routing.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Message types - Lobby
const (
	TypeCreateRoom  = "create_room"
	TypeJoinRoom    = "join_room"
	TypeLeaveRoom   = "leave_room"
	TypeSelectRole  = "select_role"
	TypePlayerReady = "player_ready"
	TypeGameStart   = "game_start"
)

// Message types - Gameplay requests
const (
	TypeLocationUpdate  = "location_update"
	TypeTagAttempt      = "tag_attempt"
	TypeClaimStart      = "claim_start"
	TypeClaimCancel     = "claim_cancel"
	TypeTerritoryRename = "territory_rename"
	TypeTerritoryIcon   = "territory_icon"
	TypeTerritoryRemove = "territory_remove"
	TypeAmbushPlace     = "ambush_place"
	TypeAmbushRemove    = "ambush_remove"
)

// Message types - Gameplay pushes. Territory and ambush notifications use the
// event type names directly.
const (
	TypeLocationResult   = "location_result"
	TypeTagResult        = "tag_result"
	TypePlayerTagged     = "player_tagged"
	TypeClaimProgress    = "claim_progress"
	TypeTerritoryWarning = "territory_warning"
	TypeOwnerState       = "owner_state"
)

// Message types - System
const (
	TypeError    = "error"
	TypeRoomInfo = "room_info"
)

// ErrorMessage is sent when a request fails. Code is machine readable; clients own
// the wording shown to players.
type ErrorMessage struct {
	Code    string `json:"code"`
	Request string `json:"request,omitempty"`
}

// NewErrorMessage creates a Message with an error payload.
func NewErrorMessage(code string) Message {
	data, _ := json.Marshal(ErrorMessage{Code: code})
	return Message{Type: TypeError, Data: data}
}

// NewRequestError creates an error Message naming the request type that failed.
func NewRequestError(code, request string) Message {
	data, _ := json.Marshal(ErrorMessage{Code: code, Request: request})
	return Message{Type: TypeError, Data: data}
}

// NewMessage creates a Message with a typed payload.
func NewMessage(msgType string, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: msgType, Data: data}, nil
}
