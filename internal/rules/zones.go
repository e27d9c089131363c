package rules

import (
	"time"

	"github.com/ugaemi/geotag-server/internal/geo"
)

// BlockingZone returns the first active zone, in input order, that contains p.
func BlockingZone(p geo.GeoPoint, zones []geo.CircularZone) (geo.CircularZone, bool) {
	for _, z := range zones {
		if z.Active && geo.IsWithin(p, z) {
			return z, true
		}
	}
	return geo.CircularZone{}, false
}

// Evaluate applies zone and schedule overrides without looking at range.
// Zone checks come before the schedule check so the more specific reason wins.
func Evaluate(tagger, target geo.GeoPoint, zones []geo.CircularZone, schedules []TimeWindowRule, at time.Time) TagVerdict {
	if z, ok := BlockingZone(tagger, zones); ok {
		v := deny(ReasonTaggerInSafeZone)
		v.BlockingZone = &z
		return v
	}
	if z, ok := BlockingZone(target, zones); ok {
		v := deny(ReasonTargetInSafeZone)
		v.BlockingZone = &z
		return v
	}
	if s, ok := FirstActive(schedules, at); ok {
		v := deny(ReasonScheduleActive)
		v.BlockingSchedule = &s
		return v
	}
	return allow()
}
