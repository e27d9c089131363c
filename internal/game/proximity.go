package game

import (
	"math"
	"time"

	"github.com/ugaemi/geotag-server/internal/geo"
)

// NearestOpponent returns the closest runner the tagger could reach and its distance in
// meters. Runners whose last fix is older than staleAfter (DefaultStaleFixAfter when
// zero) or who are still immune from a tag-back are skipped.
// Ties go to the earlier player in the slice.
func NearestOpponent(players []*Player, tagger *Player, now time.Time, staleAfter time.Duration) (*Player, float64) {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleFixAfter
	}
	if tagger == nil || !tagger.HasFix() {
		return nil, math.NaN()
	}

	var best *Player
	bestDist := math.Inf(1)
	for _, p := range players {
		if p.ID == tagger.ID || p.Role != RoleRunner {
			continue
		}
		if !p.HasFix() || now.Sub(p.LastFixAt) > staleAfter || p.IsImmune(now) {
			continue
		}
		d := geo.DistanceMeters(tagger.Position, p.Position)
		if d < bestDist {
			best, bestDist = p, d
		}
	}
	if best == nil {
		return nil, math.NaN()
	}
	return best, bestDist
}

// Opponents returns every player other than selfID whose role opposes role.
func Opponents(players []*Player, selfID string, role Role) []*Player {
	var out []*Player
	for _, p := range players {
		if p.ID != selfID && Opposed(role, p.Role) {
			out = append(out, p)
		}
	}
	return out
}

// Opposed reports whether a and b are on different sides of the chase.
func Opposed(a, b Role) bool {
	return (a == RoleIt && b == RoleRunner) || (a == RoleRunner && b == RoleIt)
}
