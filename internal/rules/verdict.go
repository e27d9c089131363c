package rules

import (
	"encoding/json"

	"github.com/ugaemi/geotag-server/internal/geo"
)

// DenyReason explains why a tag was refused.
type DenyReason int

const (
	ReasonNone DenyReason = iota
	ReasonTaggerInSafeZone
	ReasonTargetInSafeZone
	ReasonScheduleActive
	ReasonOutOfRange
)

func (r DenyReason) String() string {
	switch r {
	case ReasonTaggerInSafeZone:
		return "TAGGER_IN_SAFE_ZONE"
	case ReasonTargetInSafeZone:
		return "TARGET_IN_SAFE_ZONE"
	case ReasonScheduleActive:
		return "SCHEDULE_ACTIVE"
	case ReasonOutOfRange:
		return "OUT_OF_RANGE"
	default:
		return ""
	}
}

// MarshalJSON serializes DenyReason as a string, null when there is no reason.
func (r DenyReason) MarshalJSON() ([]byte, error) {
	if r == ReasonNone {
		return []byte("null"), nil
	}
	return json.Marshal(r.String())
}

// UnmarshalJSON deserializes DenyReason from a string.
func (r *DenyReason) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil {
		*r = ReasonNone
		return nil
	}
	switch *s {
	case "TAGGER_IN_SAFE_ZONE":
		*r = ReasonTaggerInSafeZone
	case "TARGET_IN_SAFE_ZONE":
		*r = ReasonTargetInSafeZone
	case "SCHEDULE_ACTIVE":
		*r = ReasonScheduleActive
	case "OUT_OF_RANGE":
		*r = ReasonOutOfRange
	default:
		*r = ReasonNone
	}
	return nil
}

// TagVerdict is the outcome of a tag check.
type TagVerdict struct {
	Allowed          bool              `json:"allowed"`
	Reason           DenyReason        `json:"reason"`
	BlockingZone     *geo.CircularZone `json:"blocking_zone,omitempty"`
	BlockingSchedule *TimeWindowRule   `json:"blocking_schedule,omitempty"`
	DistanceMeters   *float64          `json:"distance_meters,omitempty"`
}

func allow() TagVerdict {
	return TagVerdict{Allowed: true}
}

func deny(reason DenyReason) TagVerdict {
	return TagVerdict{Reason: reason}
}
