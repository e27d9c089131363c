package anticheat

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ugaemi/geotag-server/internal/geo"
)

var (
	origin = geo.GeoPoint{Latitude: 37.5665, Longitude: 126.9780}
	t0     = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
)

// sample returns a fix northMeters north of origin, dt after t0.
func sample(player string, northMeters float64, dt time.Duration) MovementSample {
	p := geo.Offset(origin, northMeters, 0)
	p.Timestamp = t0.Add(dt)
	return MovementSample{PlayerID: player, Point: p}
}

func TestQuickCheck(t *testing.T) {
	v := NewValidator(DefaultThresholds())
	start := sample("p", 0, 0)

	tests := []struct {
		name     string
		meters   float64
		dt       time.Duration
		valid    bool
		flag     Flag
		severity Severity
	}{
		{"walking", 10, time.Second, true, FlagNone, SeverityNone},
		{"vehicle", 20, time.Second, true, FlagPossiblyInVehicle, SeverityLow},
		{"too fast", 50, time.Second, false, FlagSpeedTooHigh, SeverityHigh},
		{"teleport", 1000, time.Second, false, FlagTeleport, SeverityCritical},
		{"same timestamp", 1000, 0, true, FlagNone, SeverityNone},
		{"backwards in time", 1000, -time.Second, true, FlagNone, SeverityNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.QuickCheck(start, sample("p", tt.meters, tt.dt))
			assert.Equal(t, tt.valid, got.Valid)
			assert.Equal(t, tt.flag, got.Flag)
			assert.Equal(t, tt.severity, got.Severity)
			assert.InDelta(t, tt.meters, got.DistanceMeters, 0.5)
		})
	}
}

func TestQuickCheck_InvalidCoordinates(t *testing.T) {
	v := NewValidator(DefaultThresholds())
	start := sample("p", 0, 0)

	bad := []geo.GeoPoint{
		{Latitude: math.NaN(), Longitude: 0, Timestamp: t0.Add(time.Second)},
		{Latitude: 91, Longitude: 0, Timestamp: t0.Add(time.Second)},
		{Latitude: 0, Longitude: math.Inf(1), Timestamp: t0.Add(time.Second)},
	}
	for _, p := range bad {
		got := v.QuickCheck(start, MovementSample{PlayerID: "p", Point: p})
		assert.False(t, got.Valid)
		assert.Equal(t, FlagInvalidCoordinates, got.Flag)
	}
}

func TestAnalyzeWindow(t *testing.T) {
	v := NewValidator(DefaultThresholds())

	t.Run("empty and single", func(t *testing.T) {
		assert.True(t, v.AnalyzeWindow(nil).Valid)
		assert.True(t, v.AnalyzeWindow([]MovementSample{sample("p", 0, 0)}).Valid)
	})

	t.Run("mixed", func(t *testing.T) {
		a := v.AnalyzeWindow([]MovementSample{
			sample("p", 0, 0),
			sample("p", 5, time.Second),     // walking
			sample("p", 25, 2*time.Second),  // vehicle
			sample("p", 525, 3*time.Second), // teleport
			sample("p", 530, 4*time.Second),
		})
		assert.False(t, a.Valid)
		require.Len(t, a.Violations, 1)
		assert.Equal(t, FlagTeleport, a.Violations[0].Flag)
		require.Len(t, a.Warnings, 1)
		assert.Equal(t, FlagPossiblyInVehicle, a.Warnings[0].Flag)
	})
}

func TestVerdictJSON(t *testing.T) {
	v := NewValidator(DefaultThresholds())

	data, err := json.Marshal(v.QuickCheck(sample("p", 0, 0), sample("p", 1000, time.Second)))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"reason":"TELEPORT"`)
	assert.Contains(t, string(data), `"severity":"critical"`)

	data, err = json.Marshal(v.QuickCheck(sample("p", 0, 0), sample("p", 1, time.Second)))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"reason":null`)
}
