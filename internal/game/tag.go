package game

import "time"

// TagEvent records a committed tag.
type TagEvent struct {
	TaggerID string    `json:"tagger_id"`
	TargetID string    `json:"target_id"`
	Distance float64   `json:"distance"`
	At       time.Time `json:"at"`
}

// ApplyTag transfers IT from tagger to target. The former IT becomes a runner that
// cannot be tagged straight back.
func ApplyTag(tagger, target *Player, distance float64, now time.Time) TagEvent {
	tagger.SetRole(RoleRunner)
	tagger.Tags++
	tagger.ImmuneUntil = now.Add(TagBackImmunity)

	target.SetRole(RoleIt)
	target.ImmuneUntil = time.Time{}

	return TagEvent{
		TaggerID: tagger.ID,
		TargetID: target.ID,
		Distance: distance,
		At:       now,
	}
}
