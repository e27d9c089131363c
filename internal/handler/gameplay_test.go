package handler

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ugaemi/geotag-server/internal/ambush"
	"github.com/ugaemi/geotag-server/internal/event"
	"github.com/ugaemi/geotag-server/internal/game"
	"github.com/ugaemi/geotag-server/internal/geo"
	"github.com/ugaemi/geotag-server/internal/room"
	"github.com/ugaemi/geotag-server/internal/territory"
	"github.com/ugaemi/geotag-server/internal/ws"
)

var origin = geo.GeoPoint{Latitude: 37.5665, Longitude: 126.9780}

type gameplayTest struct {
	*testServer
	room     *room.Room
	it       *ws.Client
	itCh     chan sentMessage
	runner   *ws.Client
	runnerCh chan sentMessage
}

// setupGameplayTest seats "it" and "runner" in a game in progress.
func setupGameplayTest(t *testing.T) *gameplayTest {
	t.Helper()
	s := setupTestServer(t)
	r, err := s.rm.CreateRoom(room.Options{})
	require.NoError(t, err)

	gt := &gameplayTest{testServer: s, room: r}
	gt.it, gt.itCh = newTestClient("c-it")
	gt.runner, gt.runnerCh = newTestClient("c-runner")

	for _, seat := range []struct {
		client *ws.Client
		id     string
		role   game.Role
	}{
		{gt.it, "it", game.RoleIt},
		{gt.runner, "runner", game.RoleRunner},
	} {
		p := game.NewPlayer(seat.id, seat.id)
		p.SetRole(seat.role)
		require.NoError(t, r.AddPlayer(p, seat.client))
		s.router.RegisterPlayer(seat.client.ID, p.ID)
	}
	it, err := r.StartGame()
	require.NoError(t, err)
	require.Equal(t, "it", it.ID)
	return gt
}

// moveTo reports a fix northMeters north of origin at the current clock time.
func (gt *gameplayTest) moveTo(t *testing.T, client *ws.Client, northMeters float64) {
	t.Helper()
	p := geo.Offset(origin, northMeters, 0)
	gt.send(t, client, ws.TypeLocationUpdate, locationUpdateRequest{Lat: p.Latitude, Lng: p.Longitude})
}

type locationResultView struct {
	Accepted bool `json:"accepted"`
	Movement struct {
		Reason *string `json:"reason"`
	} `json:"movement"`
	Claim    *territory.Progress `json:"claim"`
	Presence territory.Presence  `json:"presence"`
	Recent   *json.RawMessage    `json:"recent"`
}

func readLocationResult(t *testing.T, ch chan sentMessage) locationResultView {
	t.Helper()
	msg := readResponseOfType(t, ch, ws.TypeLocationResult)
	var res locationResultView
	require.NoError(t, json.Unmarshal(msg.Data, &res))
	return res
}

func TestHandleLocationUpdate(t *testing.T) {
	gt := setupGameplayTest(t)

	gt.moveTo(t, gt.it, 0)
	res := readLocationResult(t, gt.itCh)
	assert.True(t, res.Accepted)
	assert.Nil(t, res.Movement.Reason)

	gt.clock.Advance(time.Second)
	gt.moveTo(t, gt.it, 1000)
	res = readLocationResult(t, gt.itCh)
	assert.False(t, res.Accepted)
	require.NotNil(t, res.Movement.Reason)
	assert.Equal(t, "TELEPORT", *res.Movement.Reason)
	assert.NotNil(t, res.Recent)
}

func TestHandleLocationUpdate_BadPayload(t *testing.T) {
	gt := setupGameplayTest(t)

	gt.send(t, gt.it, ws.TypeLocationUpdate, "north")
	e := readError(t, gt.itCh)
	assert.Equal(t, CodeInvalidMessage, e.Code)
	assert.Equal(t, ws.TypeLocationUpdate, e.Request)
}

func TestHandleTagAttempt(t *testing.T) {
	gt := setupGameplayTest(t)

	gt.moveTo(t, gt.it, 0)
	gt.moveTo(t, gt.runner, 10)
	drainCh(gt.itCh)

	gt.send(t, gt.it, ws.TypeTagAttempt, nil)
	msg := readResponseOfType(t, gt.itCh, ws.TypeTagResult)
	var res room.TagResult
	require.NoError(t, json.Unmarshal(msg.Data, &res))
	assert.True(t, res.Verdict.Allowed)
	assert.Equal(t, "runner", res.TargetID)
	require.NotNil(t, res.Tag)
	assert.InDelta(t, 10.0, res.Tag.Distance, 0.5)

	tagged := readResponseOfType(t, gt.runnerCh, ws.TypePlayerTagged)
	assert.Contains(t, string(tagged.Data), `"target_id":"runner"`)
}

func TestHandleTagAttempt_OutOfRange(t *testing.T) {
	gt := setupGameplayTest(t)

	gt.moveTo(t, gt.it, 0)
	gt.moveTo(t, gt.runner, 500)

	gt.send(t, gt.it, ws.TypeTagAttempt, nil)
	msg := readResponseOfType(t, gt.itCh, ws.TypeTagResult)
	var res room.TagResult
	require.NoError(t, json.Unmarshal(msg.Data, &res))
	assert.False(t, res.Verdict.Allowed)
	assert.Contains(t, string(msg.Data), `"reason":"OUT_OF_RANGE"`)
	assert.Nil(t, res.Tag)
}

func TestHandleTagAttempt_Errors(t *testing.T) {
	gt := setupGameplayTest(t)

	gt.send(t, gt.it, ws.TypeTagAttempt, nil)
	assert.Equal(t, CodeNoLocation, readError(t, gt.itCh).Code)

	gt.send(t, gt.runner, ws.TypeTagAttempt, nil)
	assert.Equal(t, CodeNotIt, readError(t, gt.runnerCh).Code)

	gt.moveTo(t, gt.it, 0)
	gt.send(t, gt.it, ws.TypeTagAttempt, nil)
	assert.Equal(t, CodeNoTarget, readError(t, gt.itCh).Code)
}

func TestHandleClaim(t *testing.T) {
	gt := setupGameplayTest(t)

	gt.send(t, gt.runner, ws.TypeClaimStart, claimStartRequest{Name: "Base"})
	assert.Equal(t, CodeNoLocation, readError(t, gt.runnerCh).Code)

	gt.moveTo(t, gt.runner, 0)
	gt.send(t, gt.runner, ws.TypeClaimStart, claimStartRequest{Name: "Base"})
	msg := readResponseOfType(t, gt.runnerCh, ws.TypeClaimStart)
	var claim territory.ClaimProgress
	require.NoError(t, json.Unmarshal(msg.Data, &claim))
	assert.Equal(t, "Base", claim.Name)
	assert.Equal(t, "runner", claim.OwnerID)

	gt.send(t, gt.runner, ws.TypeClaimStart, claimStartRequest{Name: "Second"})
	assert.Equal(t, CodeClaimInProgress, readError(t, gt.runnerCh).Code)

	// Dwelling for the full claim time completes the territory.
	gt.clock.Advance(room.DefaultSettings().Territory.ClaimTime + time.Second)
	gt.moveTo(t, gt.runner, 0)
	res := readLocationResult(t, gt.runnerCh)
	require.NotNil(t, res.Claim)
	assert.Equal(t, territory.StatusComplete, res.Claim.Status)
	require.NotNil(t, res.Claim.Territory)
	terr := res.Claim.Territory

	gt.send(t, gt.runner, ws.TypeTerritoryRename, territoryRequest{TerritoryID: terr.ID, Name: "Home"})
	msg = readResponseOfType(t, gt.runnerCh, ws.TypeTerritoryRename)
	var renamed territory.Territory
	require.NoError(t, json.Unmarshal(msg.Data, &renamed))
	assert.Equal(t, "Home", renamed.Zone.Name)

	gt.send(t, gt.runner, ws.TypeTerritoryIcon, territoryRequest{TerritoryID: terr.ID, Icon: "castle"})
	msg = readResponseOfType(t, gt.runnerCh, ws.TypeTerritoryIcon)
	assert.Contains(t, string(msg.Data), `"icon":"castle"`)

	gt.send(t, gt.runner, ws.TypeTerritoryRemove, territoryRequest{TerritoryID: terr.ID})
	msg = readResponseOfType(t, gt.runnerCh, ws.TypeTerritoryRemove)
	var state room.OwnerState
	require.NoError(t, json.Unmarshal(msg.Data, &state))
	assert.Empty(t, state.Territories)

	gt.send(t, gt.runner, ws.TypeTerritoryRename, territoryRequest{TerritoryID: terr.ID, Name: "Gone"})
	assert.Equal(t, CodeTerritoryNotFound, readError(t, gt.runnerCh).Code)
}

func TestHandleClaimCancel(t *testing.T) {
	gt := setupGameplayTest(t)

	gt.send(t, gt.runner, ws.TypeClaimCancel, nil)
	assert.Equal(t, CodeClaimNotFound, readError(t, gt.runnerCh).Code)

	gt.moveTo(t, gt.runner, 0)
	gt.send(t, gt.runner, ws.TypeClaimStart, nil)
	readResponseOfType(t, gt.runnerCh, ws.TypeClaimStart)

	gt.send(t, gt.runner, ws.TypeClaimCancel, nil)
	msg := readResponseOfType(t, gt.runnerCh, ws.TypeClaimCancel)
	var state room.OwnerState
	require.NoError(t, json.Unmarshal(msg.Data, &state))
	assert.Nil(t, state.Claim)
}

func TestHandleAmbush(t *testing.T) {
	gt := setupGameplayTest(t)

	gt.moveTo(t, gt.it, 0)
	gt.send(t, gt.it, ws.TypeAmbushPlace, ambushPlaceRequest{Icon: "net", TTLSeconds: 60})
	msg := readResponseOfType(t, gt.itCh, ws.TypeAmbushPlace)
	var placed ambushPlaceResponse
	require.NoError(t, json.Unmarshal(msg.Data, &placed))
	assert.Equal(t, "net", placed.Point.Icon)
	assert.Equal(t, time.Minute, placed.Point.ExpiresAt.Sub(placed.Point.PlacedAt))
	assert.Equal(t, room.DefaultSettings().Ambush.MaxPointsPerPlayer-1, placed.Remaining)

	// The runner walks into it.
	gt.moveTo(t, gt.runner, 5)
	readResponseOfType(t, gt.itCh, string(event.AmbushTriggered))

	gt.send(t, gt.it, ws.TypeAmbushRemove, ambushRemoveRequest{AmbushID: placed.Point.ID})
	msg = readResponseOfType(t, gt.itCh, ws.TypeAmbushRemove)
	var state room.OwnerState
	require.NoError(t, json.Unmarshal(msg.Data, &state))
	assert.Empty(t, state.Ambushes)

	gt.send(t, gt.it, ws.TypeAmbushRemove, ambushRemoveRequest{AmbushID: placed.Point.ID})
	assert.Equal(t, CodeAmbushNotFound, readError(t, gt.itCh).Code)
}

func TestHandleAmbushPlace_RejectsOutOfBoundsOptions(t *testing.T) {
	gt := setupGameplayTest(t)
	gt.moveTo(t, gt.it, 0)

	tests := []struct {
		name string
		req  ambushPlaceRequest
	}{
		{"radius larger than a city", ambushPlaceRequest{Radius: 2e7}},
		{"ttl overflows a duration", ambushPlaceRequest{TTLSeconds: 1 << 62}},
		{"ttl past the maximum", ambushPlaceRequest{TTLSeconds: 2*60*60 + 1}},
		{"negative ttl", ambushPlaceRequest{TTLSeconds: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.send(t, gt.it, ws.TypeAmbushPlace, tt.req)
			e := readError(t, gt.itCh)
			assert.Equal(t, CodeInvalidAmbushOptions, e.Code)
			assert.Equal(t, ws.TypeAmbushPlace, e.Request)
		})
	}
	assert.Empty(t, gt.room.OwnerState("it").Ambushes)

	gt.send(t, gt.it, ws.TypeAmbushPlace, ambushPlaceRequest{Radius: 50, TTLSeconds: 2 * 60 * 60})
	readResponseOfType(t, gt.itCh, ws.TypeAmbushPlace)
}

func TestHandleGameplay_TextTooLong(t *testing.T) {
	gt := setupGameplayTest(t)
	gt.moveTo(t, gt.runner, 0)
	gt.moveTo(t, gt.it, 500)

	longName := strings.Repeat("n", maxNameLength+1)
	longIcon := strings.Repeat("i", maxIconLength+1)

	gt.send(t, gt.runner, ws.TypeClaimStart, claimStartRequest{Name: longName})
	assert.Equal(t, CodeTextTooLong, readError(t, gt.runnerCh).Code)
	assert.Nil(t, gt.room.OwnerState("runner").Claim)

	gt.send(t, gt.runner, ws.TypeTerritoryRename, territoryRequest{TerritoryID: "any", Name: longName})
	assert.Equal(t, CodeTextTooLong, readError(t, gt.runnerCh).Code)
	gt.send(t, gt.runner, ws.TypeTerritoryIcon, territoryRequest{TerritoryID: "any", Icon: longIcon})
	assert.Equal(t, CodeTextTooLong, readError(t, gt.runnerCh).Code)

	gt.send(t, gt.it, ws.TypeAmbushPlace, ambushPlaceRequest{Icon: longIcon})
	assert.Equal(t, CodeTextTooLong, readError(t, gt.itCh).Code)
	assert.Empty(t, gt.room.OwnerState("it").Ambushes)

	// Limits count characters, not bytes.
	name := strings.Repeat("공", maxNameLength)
	gt.send(t, gt.runner, ws.TypeClaimStart, claimStartRequest{Name: name})
	msg := readResponseOfType(t, gt.runnerCh, ws.TypeClaimStart)
	assert.Contains(t, string(msg.Data), name)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{room.ErrRoomFull, CodeRoomFull},
		{room.ErrNoFix, CodeNoLocation},
		{territory.ErrTooCloseToExisting, CodeTooCloseToExisting},
		{ambush.ErrInvalidOptions, CodeInvalidAmbushOptions},
		{assert.AnError, CodeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, ErrorCode(tt.err))
	}
}
