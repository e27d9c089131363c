package rules

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// TimeWindowRule suppresses tagging on the given weekdays between StartMinute and
// EndMinute (minutes after local midnight, both inclusive). A window whose end is
// before its start wraps past midnight.
type TimeWindowRule struct {
	ID          string         `json:"id"`
	Days        []time.Weekday `json:"days"`
	StartMinute int            `json:"start_minute"`
	EndMinute   int            `json:"end_minute"`
	Active      bool           `json:"active"`
}

// NewTimeWindowRule builds an active rule from "HH:MM" clock strings.
func NewTimeWindowRule(id string, days []time.Weekday, start, end string) (TimeWindowRule, error) {
	startMin, err := ParseClock(start)
	if err != nil {
		return TimeWindowRule{}, fmt.Errorf("start: %w", err)
	}
	endMin, err := ParseClock(end)
	if err != nil {
		return TimeWindowRule{}, fmt.Errorf("end: %w", err)
	}
	return TimeWindowRule{
		ID:          id,
		Days:        slices.Clone(days),
		StartMinute: startMin,
		EndMinute:   endMin,
		Active:      true,
	}, nil
}

// ParseClock converts "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// Wraps reports whether the window crosses midnight.
func (r TimeWindowRule) Wraps() bool {
	return r.EndMinute < r.StartMinute
}

// IsActive reports whether at falls inside the rule. Day of week and minute of day
// are taken in at's location; seconds are ignored.
func IsActive(rule TimeWindowRule, at time.Time) bool {
	if !rule.Active {
		return false
	}
	if !slices.Contains(rule.Days, at.Weekday()) {
		return false
	}

	minute := at.Hour()*60 + at.Minute()
	if !rule.Wraps() {
		return rule.StartMinute <= minute && minute <= rule.EndMinute
	}
	return minute >= rule.StartMinute || minute <= rule.EndMinute
}

// FirstActive returns the first rule, in input order, that is active at the given time.
func FirstActive(rules []TimeWindowRule, at time.Time) (TimeWindowRule, bool) {
	for _, r := range rules {
		if IsActive(r, at) {
			return r, true
		}
	}
	return TimeWindowRule{}, false
}

// Validate checks that the minute bounds fall inside a day.
func (r TimeWindowRule) Validate() error {
	if r.StartMinute < 0 || r.StartMinute >= minutesPerDay {
		return fmt.Errorf("rule %s: start minute %d out of range", r.ID, r.StartMinute)
	}
	if r.EndMinute < 0 || r.EndMinute >= minutesPerDay {
		return fmt.Errorf("rule %s: end minute %d out of range", r.ID, r.EndMinute)
	}
	for _, d := range r.Days {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("rule %s: invalid weekday %d", r.ID, d)
		}
	}
	return nil
}
