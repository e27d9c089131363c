package game

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ugaemi/geotag-server/internal/geo"
)

func TestRoleJSON(t *testing.T) {
	tests := []struct {
		role Role
		json string
	}{
		{RoleNone, `"none"`},
		{RoleIt, `"it"`},
		{RoleRunner, `"runner"`},
	}

	for _, tt := range tests {
		t.Run(tt.role.String(), func(t *testing.T) {
			data, err := json.Marshal(tt.role)
			require.NoError(t, err)
			assert.Equal(t, tt.json, string(data))

			var got Role
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, tt.role, got)
		})
	}
}

func TestNewPlayer(t *testing.T) {
	p := NewPlayer("", "alice")
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, RoleNone, p.Role)
	assert.False(t, p.HasFix())

	q := NewPlayer("stable-id", "bob")
	assert.Equal(t, "stable-id", q.ID)
}

func TestPlayerFixAndImmunity(t *testing.T) {
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	p := NewPlayer("", "alice")

	p.SetPosition(geo.GeoPoint{Latitude: 37.5, Longitude: 127}, now)
	assert.True(t, p.HasFix())

	p.ImmuneUntil = now.Add(time.Second)
	assert.True(t, p.IsImmune(now))
	assert.False(t, p.IsImmune(now.Add(time.Second)))

	p.Reset()
	assert.False(t, p.HasFix())
	assert.False(t, p.IsImmune(now))
}

func TestRoomStateJSON(t *testing.T) {
	data, err := json.Marshal(StatePlaying)
	require.NoError(t, err)
	assert.Equal(t, `"playing"`, string(data))

	var got RoomState
	require.NoError(t, json.Unmarshal([]byte(`"playing"`), &got))
	assert.Equal(t, StatePlaying, got)
	require.NoError(t, json.Unmarshal([]byte(`"bogus"`), &got))
	assert.Equal(t, StateWaiting, got)
}
