package rules

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ugaemi/geotag-server/internal/geo"
)

var origin = geo.GeoPoint{Latitude: 37.5665, Longitude: 126.9780}

func at(day time.Weekday, hour, minute int) time.Time {
	// 2024-06-02 is a Sunday.
	base := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, int(day)).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"06:30", 390, false},
		{"22:00", 1320, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"1200", 0, true},
		{"ab:cd", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsActive_Overnight(t *testing.T) {
	today := time.Wednesday
	rule, err := NewTimeWindowRule("night", []time.Weekday{today}, "22:00", "06:00")
	require.NoError(t, err)
	assert.True(t, rule.Wraps())

	assert.True(t, IsActive(rule, at(today, 23, 0)))
	assert.True(t, IsActive(rule, at(today, 3, 0)))
	assert.False(t, IsActive(rule, at(today, 12, 0)))
}

func TestIsActive(t *testing.T) {
	daytime, err := NewTimeWindowRule("school", []time.Weekday{time.Monday, time.Tuesday}, "09:00", "15:00")
	require.NoError(t, err)

	inactive := daytime
	inactive.Active = false

	tests := []struct {
		name string
		rule TimeWindowRule
		at   time.Time
		want bool
	}{
		{"inside window", daytime, at(time.Monday, 10, 0), true},
		{"start inclusive", daytime, at(time.Monday, 9, 0), true},
		{"end inclusive to the minute", daytime, at(time.Tuesday, 15, 0).Add(59 * time.Second), true},
		{"after end", daytime, at(time.Tuesday, 15, 1), false},
		{"wrong day", daytime, at(time.Wednesday, 10, 0), false},
		{"rule disabled", inactive, at(time.Monday, 10, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsActive(tt.rule, tt.at))
		})
	}
}

func TestIsActive_UsesLocation(t *testing.T) {
	rule, err := NewTimeWindowRule("evening", []time.Weekday{time.Monday}, "20:00", "21:00")
	require.NoError(t, err)

	seoul := time.FixedZone("KST", 9*60*60)
	// 11:30 UTC on Monday is 20:30 in Seoul.
	instant := at(time.Monday, 11, 30)
	assert.False(t, IsActive(rule, instant))
	assert.True(t, IsActive(rule, instant.In(seoul)))
}

func TestFirstActive_StableOrder(t *testing.T) {
	all := []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}
	a, _ := NewTimeWindowRule("a", all, "08:00", "09:00")
	b, _ := NewTimeWindowRule("b", all, "08:30", "10:00")
	c, _ := NewTimeWindowRule("c", all, "00:00", "23:59")

	got, ok := FirstActive([]TimeWindowRule{a, b, c}, at(time.Friday, 8, 45))
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)

	got, ok = FirstActive([]TimeWindowRule{a, b, c}, at(time.Friday, 9, 30))
	require.True(t, ok)
	assert.Equal(t, "b", got.ID)

	_, ok = FirstActive([]TimeWindowRule{a, b}, at(time.Friday, 12, 0))
	assert.False(t, ok)
}

func TestTimeWindowRule_Validate(t *testing.T) {
	assert.NoError(t, TimeWindowRule{ID: "ok", StartMinute: 0, EndMinute: 1439}.Validate())
	assert.Error(t, TimeWindowRule{ID: "bad", StartMinute: -1}.Validate())
	assert.Error(t, TimeWindowRule{ID: "bad", EndMinute: 1440}.Validate())
	assert.Error(t, TimeWindowRule{ID: "bad", Days: []time.Weekday{7}}.Validate())
}

func TestBlockingZone(t *testing.T) {
	inactive := geo.CircularZone{ID: "off", Center: origin, RadiusMeters: 500, Active: false}
	first := geo.CircularZone{ID: "first", Center: origin, RadiusMeters: 100, Active: true}
	second := geo.CircularZone{ID: "second", Center: origin, RadiusMeters: 200, Active: true}

	z, ok := BlockingZone(origin, []geo.CircularZone{inactive, first, second})
	require.True(t, ok)
	assert.Equal(t, "first", z.ID)

	_, ok = BlockingZone(geo.Offset(origin, 1000, 0), []geo.CircularZone{first, second})
	assert.False(t, ok)

	_, ok = BlockingZone(geo.GeoPoint{Latitude: math.NaN()}, []geo.CircularZone{second})
	assert.False(t, ok)
}

func TestEvaluate_Precedence(t *testing.T) {
	tagger := origin
	target := geo.Offset(origin, 0, 500)
	taggerZone := geo.CircularZone{ID: "tagger-zone", Center: tagger, RadiusMeters: 50, Active: true}
	targetZone := geo.CircularZone{ID: "target-zone", Center: target, RadiusMeters: 50, Active: true}
	always, _ := NewTimeWindowRule("always", []time.Weekday{time.Monday}, "00:00", "23:59")
	now := at(time.Monday, 12, 0)

	tests := []struct {
		name      string
		zones     []geo.CircularZone
		schedules []TimeWindowRule
		want      DenyReason
		allowed   bool
	}{
		{"tagger zone beats everything", []geo.CircularZone{targetZone, taggerZone}, []TimeWindowRule{always}, ReasonTaggerInSafeZone, false},
		{"target zone beats schedule", []geo.CircularZone{targetZone}, []TimeWindowRule{always}, ReasonTargetInSafeZone, false},
		{"schedule", nil, []TimeWindowRule{always}, ReasonScheduleActive, false},
		{"nothing blocks", nil, nil, ReasonNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Evaluate(tagger, target, tt.zones, tt.schedules, now)
			assert.Equal(t, tt.allowed, v.Allowed)
			assert.Equal(t, tt.want, v.Reason)
		})
	}

	v := Evaluate(tagger, target, []geo.CircularZone{taggerZone}, nil, now)
	require.NotNil(t, v.BlockingZone)
	assert.Equal(t, "tagger-zone", v.BlockingZone.ID)

	v = Evaluate(tagger, target, nil, []TimeWindowRule{always}, now)
	require.NotNil(t, v.BlockingSchedule)
	assert.Equal(t, "always", v.BlockingSchedule.ID)
}

func TestCanTag_TaggerInOwnZone(t *testing.T) {
	zone := geo.CircularZone{ID: "home", Center: origin, RadiusMeters: 50, Active: true}
	now := at(time.Monday, 12, 0)

	targets := []geo.GeoPoint{origin, geo.Offset(origin, 10, 0), geo.Offset(origin, 5000, 5000)}
	for _, target := range targets {
		v := CanTag(origin, target, []geo.CircularZone{zone}, nil, 30, now)
		assert.False(t, v.Allowed)
		assert.Equal(t, ReasonTaggerInSafeZone, v.Reason)
	}
}

func TestCanTag_Range(t *testing.T) {
	target := geo.Offset(origin, 25, 0)
	now := at(time.Monday, 12, 0)

	v := CanTag(origin, target, nil, nil, 20, now)
	assert.False(t, v.Allowed)
	assert.Equal(t, ReasonOutOfRange, v.Reason)
	require.NotNil(t, v.DistanceMeters)
	assert.InDelta(t, 25, *v.DistanceMeters, 0.5)

	v = CanTag(origin, target, nil, nil, 30, now)
	assert.True(t, v.Allowed)
	assert.Equal(t, ReasonNone, v.Reason)
}

func TestShelterTarget(t *testing.T) {
	target := geo.Offset(origin, 10, 0)
	home := geo.CircularZone{ID: "home", Center: target, RadiusMeters: 50, Active: true}
	shared := geo.CircularZone{ID: "shared", Center: origin, RadiusMeters: 5, Active: true}
	always, _ := NewTimeWindowRule("always", []time.Weekday{time.Monday}, "00:00", "23:59")
	now := at(time.Monday, 12, 0)
	own := []geo.CircularZone{home}

	t.Run("tagger inside the target's territory is not sheltered", func(t *testing.T) {
		v := ShelterTarget(CanTag(origin, target, nil, nil, 30, now), target, nil)
		assert.True(t, v.Allowed)
	})

	t.Run("beats range and schedule", func(t *testing.T) {
		for _, v := range []TagVerdict{
			CanTag(origin, target, nil, nil, 30, now),
			CanTag(origin, target, nil, nil, 1, now),
			CanTag(origin, target, nil, []TimeWindowRule{always}, 30, now),
		} {
			got := ShelterTarget(v, target, own)
			assert.False(t, got.Allowed)
			assert.Equal(t, ReasonTargetInSafeZone, got.Reason)
			require.NotNil(t, got.BlockingZone)
			assert.Equal(t, "home", got.BlockingZone.ID)
		}
	})

	t.Run("shared zone reason is kept", func(t *testing.T) {
		got := ShelterTarget(CanTag(origin, target, []geo.CircularZone{shared}, nil, 30, now), target, own)
		assert.Equal(t, ReasonTaggerInSafeZone, got.Reason)
		assert.Equal(t, "shared", got.BlockingZone.ID)
	})
}

func TestCanTag_NaNNeverInRange(t *testing.T) {
	bad := geo.GeoPoint{Latitude: math.NaN(), Longitude: math.NaN()}
	v := CanTag(origin, bad, nil, nil, 1e9, at(time.Monday, 12, 0))
	assert.False(t, v.Allowed)
	assert.Equal(t, ReasonOutOfRange, v.Reason)
	assert.Nil(t, v.DistanceMeters)

	_, err := json.Marshal(v)
	assert.NoError(t, err)
}

func TestDenyReason_JSON(t *testing.T) {
	data, err := json.Marshal(TagVerdict{Reason: ReasonScheduleActive})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"reason":"SCHEDULE_ACTIVE"`)

	data, err = json.Marshal(TagVerdict{Allowed: true})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"reason":null`)

	var v TagVerdict
	require.NoError(t, json.Unmarshal([]byte(`{"allowed":false,"reason":"OUT_OF_RANGE"}`), &v))
	assert.Equal(t, ReasonOutOfRange, v.Reason)
}
