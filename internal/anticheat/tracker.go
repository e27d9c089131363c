package anticheat

import (
	"log/slog"
	"slices"
	"sync"
)

const defaultWindow = 10

// Tracker screens each player's fixes against that player's last accepted fix and
// keeps a short rolling window of accepted samples for AnalyzeWindow.
type Tracker struct {
	v      *Validator
	size   int
	mu     sync.Mutex
	window map[string][]MovementSample
}

// NewTracker creates a tracker keeping up to size accepted samples per player.
func NewTracker(v *Validator, size int) *Tracker {
	if size < 2 {
		size = defaultWindow
	}
	return &Tracker{
		v:      v,
		size:   size,
		window: make(map[string][]MovementSample),
	}
}

// Screen classifies a new fix. Rejected fixes are not retained, so the next fix is
// measured against the last plausible one.
func (t *Tracker) Screen(s MovementSample) Verdict {
	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.window[s.PlayerID]
	if len(w) == 0 {
		if !s.Point.Valid() {
			return t.v.verdict(FlagInvalidCoordinates, 0, 0)
		}
		t.window[s.PlayerID] = append(w, s)
		return Verdict{Valid: true}
	}

	verdict := t.v.QuickCheck(w[len(w)-1], s)
	if !verdict.Valid {
		slog.Warn("movement rejected",
			"player", s.PlayerID,
			"reason", verdict.Flag.String(),
			"speed_mps", verdict.SpeedMps,
			"distance_m", verdict.DistanceMeters,
		)
		return verdict
	}
	if verdict.Flag != FlagNone {
		slog.Debug("movement flagged", "player", s.PlayerID, "reason", verdict.Flag.String(), "speed_mps", verdict.SpeedMps)
	}

	// Fixes older than the last accepted one are classified but not kept.
	if s.Point.Timestamp.After(w[len(w)-1].Point.Timestamp) {
		w = append(w, s)
		if len(w) > t.size {
			w = slices.Clone(w[len(w)-t.size:])
		}
		t.window[s.PlayerID] = w
	}
	return verdict
}

// Analyze runs AnalyzeWindow over the player's retained samples.
func (t *Tracker) Analyze(playerID string) Analysis {
	t.mu.Lock()
	w := slices.Clone(t.window[playerID])
	t.mu.Unlock()
	return t.v.AnalyzeWindow(w)
}

// Last returns the player's last accepted sample.
func (t *Tracker) Last(playerID string) (MovementSample, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w := t.window[playerID]
	if len(w) == 0 {
		return MovementSample{}, false
	}
	return w[len(w)-1], true
}

// Forget drops a player's history, e.g. when they leave the game.
func (t *Tracker) Forget(playerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.window, playerID)
}
