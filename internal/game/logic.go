package game

import "math/rand/v2"

// CountRole returns how many players hold role.
func CountRole(players []*Player, role Role) int {
	n := 0
	for _, p := range players {
		if p.Role == role {
			n++
		}
	}
	return n
}

// AllReady returns true if there are enough players and all of them are ready.
func AllReady(players []*Player) bool {
	if len(players) < MinPlayers {
		return false
	}
	for _, p := range players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// AssignRoles makes sure exactly one player is IT and everyone else runs. A player who
// picked IT keeps it; otherwise one is drawn at random.
func AssignRoles(players []*Player) *Player {
	if len(players) == 0 {
		return nil
	}
	var it *Player
	for _, p := range players {
		if p.Role == RoleIt && it == nil {
			it = p
			continue
		}
		p.SetRole(RoleRunner)
	}
	if it == nil {
		it = players[rand.IntN(len(players))]
		it.SetRole(RoleIt)
	}
	return it
}

// CurrentIt returns the player who is IT, or nil.
func CurrentIt(players []*Player) *Player {
	for _, p := range players {
		if p.Role == RoleIt {
			return p
		}
	}
	return nil
}
