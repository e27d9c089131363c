package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignRoles_KeepsChosenIt(t *testing.T) {
	a := NewPlayer("a", "a")
	b := NewPlayer("b", "b")
	c := NewPlayer("c", "c")
	b.SetRole(RoleIt)
	c.SetRole(RoleIt)

	it := AssignRoles([]*Player{a, b, c})
	require.NotNil(t, it)
	assert.Equal(t, "b", it.ID)
	assert.Equal(t, RoleRunner, a.Role)
	assert.Equal(t, RoleRunner, c.Role)
	assert.Equal(t, MaxIt, CountRole([]*Player{a, b, c}, RoleIt))
}

func TestAssignRoles_DrawsIt(t *testing.T) {
	players := []*Player{NewPlayer("a", "a"), NewPlayer("b", "b"), NewPlayer("c", "c")}

	it := AssignRoles(players)
	require.NotNil(t, it)
	assert.Equal(t, 1, CountRole(players, RoleIt))
	assert.Equal(t, 2, CountRole(players, RoleRunner))
	assert.Same(t, it, CurrentIt(players))

	assert.Nil(t, AssignRoles(nil))
}

func TestAllReady(t *testing.T) {
	a := NewPlayer("a", "a")
	b := NewPlayer("b", "b")

	assert.False(t, AllReady([]*Player{a}))
	a.Ready = true
	assert.False(t, AllReady([]*Player{a, b}))
	b.Ready = true
	assert.True(t, AllReady([]*Player{a, b}))
}

func TestApplyTag(t *testing.T) {
	it := playerAt("it", RoleIt, 0)
	r := playerAt("r", RoleRunner, 5)

	ev := ApplyTag(it, r, 5, now)
	assert.Equal(t, "it", ev.TaggerID)
	assert.Equal(t, "r", ev.TargetID)
	assert.Equal(t, RoleRunner, it.Role)
	assert.Equal(t, RoleIt, r.Role)
	assert.Equal(t, 1, it.Tags)
	assert.True(t, it.IsImmune(now.Add(TagBackImmunity-time.Second)))
	assert.False(t, it.IsImmune(now.Add(TagBackImmunity)))

	// The new IT cannot immediately pick the old one.
	got, _ := NearestOpponent([]*Player{it, r}, r, now, 0)
	assert.Nil(t, got)
}
