package room

import (
	"log/slog"

	"github.com/ugaemi/geotag-server/internal/ambush"
	"github.com/ugaemi/geotag-server/internal/anticheat"
	"github.com/ugaemi/geotag-server/internal/game"
	"github.com/ugaemi/geotag-server/internal/geo"
	"github.com/ugaemi/geotag-server/internal/rules"
	"github.com/ugaemi/geotag-server/internal/territory"
	"github.com/ugaemi/geotag-server/internal/ws"
)

// LocationResult is the outcome of one location report.
type LocationResult struct {
	Accepted bool                `json:"accepted"`
	Movement anticheat.Verdict   `json:"movement"`
	Claim    *territory.Progress `json:"claim,omitempty"`
	Presence territory.Presence  `json:"presence"`
	// Recent summarizes the player's accepted fixes when this one is rejected.
	Recent *anticheat.Analysis `json:"recent,omitempty"`
}

// TerritoryWarning tells an owner that a hostile player is near their territories.
type TerritoryWarning struct {
	HostileID string              `json:"hostile_id"`
	Warnings  []territory.Warning `json:"warnings"`
}

// UpdateLocation screens a location fix and, if it is plausible, applies it: the
// player's claim advances, their territory visits are recorded, and every opponent's
// territories and ambushes are checked against the new position.
func (r *Room) UpdateLocation(playerID string, p geo.GeoPoint) (LocationResult, error) {
	now := r.now()
	// Fixes stamped in the future are clamped to now.
	if p.Timestamp.IsZero() || p.Timestamp.After(now) {
		p.Timestamp = now
	}
	if !r.HasPlayer(playerID) {
		return LocationResult{}, ErrPlayerNotFound
	}

	verdict := r.tracker.Screen(anticheat.MovementSample{PlayerID: playerID, Point: p})
	res := LocationResult{Accepted: verdict.Valid, Movement: verdict}
	if !verdict.Valid {
		recent := r.tracker.Analyze(playerID)
		res.Recent = &recent
		return res, nil
	}

	r.mu.Lock()
	player, ok := r.Players[playerID]
	if !ok {
		r.mu.Unlock()
		return LocationResult{}, ErrPlayerNotFound
	}
	player.SetPosition(p, now)
	var owners []string
	for _, o := range game.Opponents(r.playerListLocked(), playerID, player.Role) {
		owners = append(owners, o.ID)
	}
	r.mu.Unlock()

	if claim, ok := r.territories.ActiveClaim(playerID); ok {
		progress, err := r.territories.UpdateProgress(claim.ID, p, now)
		if err == nil {
			res.Claim = &progress
			if progress.Status == territory.StatusComplete {
				r.persistTerritories(playerID)
			}
			r.send(playerID, ws.TypeClaimProgress, progress)
		}
	}
	r.territories.RecordVisit(playerID, p, now)
	res.Presence = r.territories.IsInTerritory(playerID, p)

	for _, owner := range owners {
		if warnings := r.territories.CheckWarnings(owner, p); len(warnings) > 0 {
			r.send(owner, ws.TypeTerritoryWarning, TerritoryWarning{HostileID: playerID, Warnings: warnings})
		}
		if fired := r.ambushes.CheckCrossing(owner, playerID, p); len(fired) > 0 {
			r.persistAmbushes(owner)
		}
	}

	slog.Debug("location updated", "room", r.Code, "player", playerID, "flag", verdict.Flag.String())
	return res, nil
}

// TagResult is the outcome of a tag attempt.
type TagResult struct {
	Verdict  rules.TagVerdict `json:"verdict"`
	TargetID string           `json:"target_id,omitempty"`
	Tag      *game.TagEvent   `json:"tag,omitempty"`
}

// AttemptTag lets IT try to tag the nearest runner. The whole check-and-commit runs
// under the room lock so two attempts can never both transfer IT. A runner standing
// in one of their own territories counts as being in a safe zone.
func (r *Room) AttemptTag(taggerID string) (TagResult, error) {
	now := r.now()

	r.mu.Lock()
	if r.State != game.StatePlaying {
		r.mu.Unlock()
		return TagResult{}, ErrNotPlaying
	}
	tagger, ok := r.Players[taggerID]
	if !ok {
		r.mu.Unlock()
		return TagResult{}, ErrPlayerNotFound
	}
	if tagger.Role != game.RoleIt {
		r.mu.Unlock()
		return TagResult{}, ErrNotIt
	}
	if !tagger.HasFix() {
		r.mu.Unlock()
		return TagResult{}, ErrNoFix
	}
	target, _ := game.NearestOpponent(r.playerListLocked(), tagger, now, r.settings.StaleFixAfter)
	if target == nil {
		r.mu.Unlock()
		return TagResult{}, ErrNoTarget
	}

	verdict := rules.CanTag(tagger.Position, target.Position, r.settings.Zones, r.settings.Schedules,
		r.settings.TagRadius, now.In(r.settings.Location))
	var sheltered []geo.CircularZone
	for _, t := range r.territories.Territories(target.ID) {
		sheltered = append(sheltered, t.Zone)
	}
	verdict = rules.ShelterTarget(verdict, target.Position, sheltered)

	res := TagResult{Verdict: verdict, TargetID: target.ID}
	if verdict.Allowed {
		ev := game.ApplyTag(tagger, target, *verdict.DistanceMeters, now)
		res.Tag = &ev
	}
	r.mu.Unlock()

	if res.Tag != nil {
		msg, _ := ws.NewMessage(ws.TypePlayerTagged, res.Tag)
		r.BroadcastMessage(msg)
		slog.Info("player tagged", "room", r.Code, "tagger", taggerID, "target", target.ID)
	} else {
		slog.Debug("tag denied", "room", r.Code, "tagger", taggerID, "target", target.ID, "reason", verdict.Reason.String())
	}
	return res, nil
}

func (r *Room) position(playerID string) (geo.GeoPoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.Players[playerID]
	if !ok {
		return geo.GeoPoint{}, ErrPlayerNotFound
	}
	if !p.HasFix() {
		return geo.GeoPoint{}, ErrNoFix
	}
	return p.Position, nil
}

// StartClaim begins claiming a territory around the player's current position.
func (r *Room) StartClaim(playerID, name string) (territory.ClaimProgress, error) {
	pos, err := r.position(playerID)
	if err != nil {
		return territory.ClaimProgress{}, err
	}
	claim, err := r.territories.StartClaim(playerID, pos, name)
	if err != nil {
		return territory.ClaimProgress{}, err
	}
	r.persistTerritories(playerID)
	return claim, nil
}

// CancelClaim abandons the player's active claim.
func (r *Room) CancelClaim(playerID string) error {
	if !r.HasPlayer(playerID) {
		return ErrPlayerNotFound
	}
	claim, ok := r.territories.ActiveClaim(playerID)
	if !ok {
		return territory.ErrClaimNotFound
	}
	if err := r.territories.CancelClaim(claim.ID); err != nil {
		return err
	}
	r.persistTerritories(playerID)
	return nil
}

// RenameTerritory renames one of the player's territories.
func (r *Room) RenameTerritory(playerID, territoryID, name string) (territory.Territory, error) {
	if !r.HasPlayer(playerID) {
		return territory.Territory{}, ErrPlayerNotFound
	}
	t, err := r.territories.Rename(playerID, territoryID, name)
	if err != nil {
		return territory.Territory{}, err
	}
	r.persistTerritories(playerID)
	return t, nil
}

// SetTerritoryIcon changes the icon of one of the player's territories.
func (r *Room) SetTerritoryIcon(playerID, territoryID, icon string) (territory.Territory, error) {
	if !r.HasPlayer(playerID) {
		return territory.Territory{}, ErrPlayerNotFound
	}
	t, err := r.territories.SetIcon(playerID, territoryID, icon)
	if err != nil {
		return territory.Territory{}, err
	}
	r.persistTerritories(playerID)
	return t, nil
}

// RemoveTerritory deletes one of the player's territories.
func (r *Room) RemoveTerritory(playerID, territoryID string) error {
	if !r.HasPlayer(playerID) {
		return ErrPlayerNotFound
	}
	if err := r.territories.Remove(playerID, territoryID); err != nil {
		return err
	}
	r.persistTerritories(playerID)
	return nil
}

// PlaceAmbush drops an ambush point at the player's current position.
func (r *Room) PlaceAmbush(playerID string, opts ambush.Options) (ambush.Point, error) {
	pos, err := r.position(playerID)
	if err != nil {
		return ambush.Point{}, err
	}
	p, err := r.ambushes.Place(playerID, pos, opts)
	if err != nil {
		return ambush.Point{}, err
	}
	r.persistAmbushes(playerID)
	return p, nil
}

// RemoveAmbush deletes one of the player's ambush points.
func (r *Room) RemoveAmbush(playerID, pointID string) error {
	if !r.HasPlayer(playerID) {
		return ErrPlayerNotFound
	}
	if err := r.ambushes.Remove(playerID, pointID); err != nil {
		return err
	}
	r.persistAmbushes(playerID)
	return nil
}

// OwnerState is everything a player owns in this room.
type OwnerState struct {
	Territories     []territory.Territory    `json:"territories"`
	Claim           *territory.ClaimProgress `json:"claim,omitempty"`
	Ambushes        []ambush.Point           `json:"ambushes"`
	AmbushRemaining int                      `json:"ambush_remaining"`
	Triggers        []ambush.Trigger         `json:"triggers,omitempty"`
}

// OwnerState returns the player's territories, claim and ambushes.
func (r *Room) OwnerState(playerID string) OwnerState {
	snap := r.territories.Snapshot(playerID)
	return OwnerState{
		Territories:     snap.Territories,
		Claim:           snap.Claim,
		Ambushes:        r.ambushes.Points(playerID),
		AmbushRemaining: r.ambushes.Remaining(playerID),
		Triggers:        r.ambushes.History(playerID),
	}
}
