package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younwookim/surftimer/internal/domain/geom"
)

var playerBounds = geom.BBox{Mins: geom.Vec(-16, -16, 0), Maxs: geom.Vec(16, 16, 72)}

func unitBox(half float64) geom.BBox {
	return geom.BBox{Mins: geom.Vec(-half, -half, -half), Maxs: geom.Vec(half, half, half)}
}

func TestNewWorld(t *testing.T) {
	w := NewWorld()

	assert.NotNil(t, w)
	assert.Equal(t, EntityID(1), w.nextID)
	assert.NotNil(t, w.Transform)
	assert.NotNil(t, w.IsTrigger)
}

func TestEntityIDNeverRecycled(t *testing.T) {
	w := NewWorld()

	id1 := w.CreateTarget("info_target", "a", geom.Zero, geom.QAngle{})
	w.DestroyEntity(id1)

	id2 := w.NewEntity()
	assert.NotEqual(t, id1, id2, "Entity IDs should never be recycled")
	assert.Equal(t, EntityID(2), id2)
	assert.False(t, w.Exists(id1))
	assert.False(t, w.Exists(0))
}

func TestSpawnTags(t *testing.T) {
	w := NewWorld()

	trig := w.CreateTrigger("trigger_multiple", "zone", geom.Zero, unitBox(8), map[string]string{"StartDisabled": "1"})
	solid := w.CreateSolid(geom.Zero, unitBox(8))
	target := w.CreateTarget("info_teleport_destination", "dest", geom.Vec(1, 2, 3), geom.QAngle{Yaw: 90})

	_, isTrigger := w.IsTrigger[trig]
	assert.True(t, isTrigger)
	assert.False(t, w.PassesTriggerFilters(trig), "StartDisabled trigger should fail filters")

	w.SetDisabled(trig, false)
	assert.True(t, w.PassesTriggerFilters(trig))

	_, isSolid := w.IsSolid[solid]
	assert.True(t, isSolid)
	assert.False(t, w.PassesTriggerFilters(target))
	assert.Equal(t, geom.Vec(1, 2, 3), w.Origin(target))
}

func TestFindByName(t *testing.T) {
	w := NewWorld()

	first := w.CreateTarget("info_target", "Dest", geom.Zero, geom.QAngle{})
	w.CreateTarget("info_target", "dest", geom.Zero, geom.QAngle{})

	assert.Equal(t, first, w.FindByName("DEST"), "lowest ID wins, case-insensitive")
	assert.Equal(t, EntityID(0), w.FindByName("missing"))
	assert.Equal(t, EntityID(0), w.FindByName(""))

	w.DestroyEntity(first)
	assert.NotEqual(t, first, w.FindByName("dest"))
}

func TestKeyvalues(t *testing.T) {
	kv := NewKeyvalues(map[string]string{
		"Timer_Trigger_Type": "3",
		"gravity":            "0.5",
		"flag":               "true",
		"dir":                "0 90 0",
		"junk":               "abc",
	})

	assert.Equal(t, 3, kv.Int("timer_trigger_type", -1))
	assert.Equal(t, 0.5, kv.Float("GRAVITY", 1))
	assert.True(t, kv.Bool("flag", false))
	assert.Equal(t, geom.Vec(0, 90, 0), kv.Vector("dir", geom.Zero))
	assert.Equal(t, 7, kv.Int("junk", 7))
	assert.Equal(t, 1.0, kv.Float("missing", 1))
	assert.False(t, kv.Has("missing"))
}

func TestTraceTriggers_ZeroLength(t *testing.T) {
	w := NewWorld()
	a := w.CreateTrigger("trigger_multiple", "a", geom.Vec(0, 0, 0), unitBox(32), nil)
	b := w.CreateTrigger("trigger_multiple", "b", geom.Vec(10, 0, 0), unitBox(32), nil)
	w.CreateTrigger("trigger_multiple", "far", geom.Vec(1000, 0, 0), unitBox(32), nil)

	hits := w.TraceTriggers(geom.Vec(5, 0, 0), geom.Vec(5, 0, 0), playerBounds)
	require.Len(t, hits, 2)
	assert.Equal(t, a, hits[0].Entity, "equal fractions break ties by ID")
	assert.Equal(t, b, hits[1].Entity)
	assert.True(t, hits[0].StartSolid)
}

func TestTraceTriggers_Path(t *testing.T) {
	w := NewWorld()
	near := w.CreateTrigger("trigger_multiple", "near", geom.Vec(200, 0, 36), unitBox(8), nil)
	far := w.CreateTrigger("trigger_multiple", "far", geom.Vec(600, 0, 36), unitBox(8), nil)

	hits := w.TraceTriggers(geom.Vec(0, 0, 0), geom.Vec(1000, 0, 0), playerBounds)
	require.Len(t, hits, 2)
	assert.Equal(t, near, hits[0].Entity)
	assert.Equal(t, far, hits[1].Entity)
	assert.Less(t, hits[0].Fraction, hits[1].Fraction)

	assert.Empty(t, w.TraceTriggers(geom.Vec(0, 500, 0), geom.Vec(1000, 500, 0), playerBounds))
}

func TestTraceSolid(t *testing.T) {
	w := NewWorld()
	floor := w.CreateSolid(geom.Vec(0, 0, -8), geom.BBox{Mins: geom.Vec(-512, -512, -8), Maxs: geom.Vec(512, 512, 8)})

	t.Run("falls onto floor", func(t *testing.T) {
		tr := w.TraceSolid(geom.Vec(0, 0, 100), geom.Vec(0, 0, -100), playerBounds)
		require.True(t, tr.Hit)
		assert.Equal(t, floor, tr.Entity)
		assert.Equal(t, geom.Vec(0, 0, 1), tr.Normal)
		assert.InDelta(t, DistEpsilon, tr.EndPos.Z, 1e-6)
	})

	t.Run("slides along floor surface", func(t *testing.T) {
		tr := w.TraceSolid(geom.Vec(0, 0, 0), geom.Vec(100, 0, 0), playerBounds)
		assert.False(t, tr.Hit)
		assert.Equal(t, 1.0, tr.Fraction)
	})

	t.Run("moving away from surface", func(t *testing.T) {
		tr := w.TraceSolid(geom.Vec(0, 0, 0), geom.Vec(0, 0, 50), playerBounds)
		assert.False(t, tr.Hit)
	})

	t.Run("start solid", func(t *testing.T) {
		tr := w.TraceSolid(geom.Vec(0, 0, -10), geom.Vec(0, 0, 50), playerBounds)
		require.True(t, tr.Hit)
		assert.True(t, tr.StartSolid)
		assert.Equal(t, 0.0, tr.Fraction)
	})
}
