package game

import "encoding/json"

// RoomState is the lobby/game phase of a room. A tag game has no natural end, so a
// room only moves between waiting and playing.
type RoomState int

const (
	StateWaiting RoomState = iota
	StatePlaying
)

func (s RoomState) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// MarshalJSON serializes RoomState as a string.
func (s RoomState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON deserializes RoomState from a string.
func (s *RoomState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "playing":
		*s = StatePlaying
	default:
		*s = StateWaiting
	}
	return nil
}
