package rules

import (
	"math"
	"time"

	"github.com/ugaemi/geotag-server/internal/geo"
)

// CanTag decides whether tagger may tag target right now. It is a pure function of
// its arguments and safe to call concurrently; committing the tag is up to the caller.
func CanTag(tagger, target geo.GeoPoint, zones []geo.CircularZone, schedules []TimeWindowRule, tagRadiusMeters float64, at time.Time) TagVerdict {
	v := Evaluate(tagger, target, zones, schedules, at)
	if !v.Allowed {
		return v
	}

	d := geo.DistanceMeters(tagger, target)
	// NaN fails the comparison, so a broken fix is never in range.
	if !(d <= tagRadiusMeters) {
		v = deny(ReasonOutOfRange)
		if !math.IsNaN(d) {
			v.DistanceMeters = &d
		}
		return v
	}

	v.DistanceMeters = &d
	return v
}

// ShelterTarget applies zones that protect only the target, such as the target's own
// territories. They rank after the shared zones and ahead of schedule and range, so a
// verdict already denied by a shared zone is returned unchanged.
func ShelterTarget(v TagVerdict, target geo.GeoPoint, zones []geo.CircularZone) TagVerdict {
	if v.Reason == ReasonTaggerInSafeZone || v.Reason == ReasonTargetInSafeZone {
		return v
	}
	z, ok := BlockingZone(target, zones)
	if !ok {
		return v
	}
	out := deny(ReasonTargetInSafeZone)
	out.BlockingZone = &z
	out.DistanceMeters = v.DistanceMeters
	return out
}
