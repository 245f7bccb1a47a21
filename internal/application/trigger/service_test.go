package trigger

import (
	"fmt"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younwookim/surftimer/internal/domain/entity"
	"github.com/younwookim/surftimer/internal/domain/geom"
	"github.com/younwookim/surftimer/internal/domain/mapping"
	"github.com/younwookim/surftimer/internal/ecs"
)

var box = geom.BBox{Mins: geom.Vec(-32, -32, 0), Maxs: geom.Vec(32, 32, 64)}

type zoneCall struct {
	name   string
	course string
	number int
}

type fakeZones struct {
	running bool
	paused  bool
	calls   []zoneCall
}

func (z *fakeZones) record(name string, c *mapping.Course, n int) {
	z.calls = append(z.calls, zoneCall{name: name, course: c.Name, number: n})
}

func (z *fakeZones) Running() bool                                { return z.running }
func (z *fakeZones) Paused() bool                                 { return z.paused }
func (z *fakeZones) StartZoneStartTouch(c *mapping.Course)        { z.record("start", c, 0) }
func (z *fakeZones) StartZoneEndTouch(c *mapping.Course)          { z.record("leave", c, 0) }
func (z *fakeZones) TimerEnd(c *mapping.Course) bool              { z.record("end", c, 0); return true }
func (z *fakeZones) SplitZoneStartTouch(c *mapping.Course, n int) { z.record("split", c, n) }
func (z *fakeZones) CheckpointZoneStartTouch(c *mapping.Course, n int) {
	z.record("checkpoint", c, n)
}
func (z *fakeZones) StageZoneStartTouch(c *mapping.Course, n int) { z.record("stage", c, n) }
func (z *fakeZones) StageZoneEndTouch(c *mapping.Course, n int)   { z.record("stageleave", c, n) }

type denyHooks struct{ deny map[ecs.EntityID]bool }

func (d denyHooks) OnTriggerStartTouch(id ecs.EntityID) bool { return !d.deny[id] }
func (d denyHooks) OnTriggerTouch(id ecs.EntityID) bool      { return true }
func (d denyHooks) OnTriggerEndTouch(id ecs.EntityID) bool   { return true }

type fakeHost struct {
	pawn        *entity.Pawn
	convars     *entity.ConVars
	baseline    map[string]float64
	zones       *fakeZones
	hooks       []Hooks
	landingTime float64
	jumped      bool
	processing  bool
	teleports   []geom.Vector
	checkpoints int
	resets      int
	chat        []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		pawn:    entity.NewPawn(geom.Vector{}),
		convars: entity.NewConVars(),
		baseline: map[string]float64{
			entity.CvarAirAccelerate:     150,
			entity.CvarStandableNormal:   0.7,
			entity.CvarWalkableNormal:    0.7,
			entity.CvarJumpSpamPenalty:   0,
			entity.CvarAutoBunnyhopping:  1,
			entity.CvarJumpImpulse:       301.993,
			entity.CvarStaminaJumpCost:   0.08,
		},
		zones: &fakeZones{},
	}
}

func (h *fakeHost) Pawn() *entity.Pawn                   { return h.pawn }
func (h *fakeHost) Alive() bool                          { return h.pawn.Alive }
func (h *fakeHost) ConVars() *entity.ConVars             { return h.convars }
func (h *fakeHost) ModeStyleValue(name string) float64   { return h.baseline[name] }
func (h *fakeHost) Origin() geom.Vector                  { return h.pawn.Origin }
func (h *fakeHost) SetOrigin(o geom.Vector)              { h.pawn.Origin = o }
func (h *fakeHost) Velocity() geom.Vector                { return h.pawn.Velocity }
func (h *fakeHost) SetVelocity(v geom.Vector)            { h.pawn.Velocity = v }
func (h *fakeHost) BaseVelocity() geom.Vector            { return h.pawn.BaseVelocity }
func (h *fakeHost) SetBaseVelocity(v geom.Vector)        { h.pawn.BaseVelocity = v }
func (h *fakeHost) Angles() geom.QAngle                  { return h.pawn.Angles }
func (h *fakeHost) SetAngles(a geom.QAngle)              { h.pawn.Angles = a }
func (h *fakeHost) LandingTime() float64                 { return h.landingTime }
func (h *fakeHost) Jumped() bool                         { return h.jumped }
func (h *fakeHost) ProcessingMovement() bool             { return h.processing }
func (h *fakeHost) Teleported(o geom.Vector)             { h.teleports = append(h.teleports, o) }
func (h *fakeHost) TouchHooks() []Hooks                  { return h.hooks }
func (h *fakeHost) Zones() Zones                         { return h.zones }
func (h *fakeHost) CheckpointCount() int                 { return h.checkpoints }
func (h *fakeHost) ResetCheckpoints()                    { h.resets++; h.checkpoints = 0 }
func (h *fakeHost) PrintChat(format string, args ...any) { h.chat = append(h.chat, fmt.Sprintf(format, args...)) }

type fixture struct {
	world   *ecs.World
	catalog *mapping.Catalog
	globals *entity.Globals
	host    *fakeHost
	svc     *Service
}

func newFixture(t *testing.T, build func(w *ecs.World)) *fixture {
	t.Helper()
	w := ecs.NewWorld()
	w.Worldspawn = ecs.NewKeyvalues(map[string]string{"timer_mapping_api_version": "2"})
	build(w)

	c := mapping.NewCatalog(w, log.New(io.Discard))
	ids := w.Entities()
	c.LoadSpawnGroup(w.Worldspawn, ids)
	c.RoundPreStart()
	c.OnSpawn(ids)
	c.RoundStart(nil)
	require.False(t, c.Fatal())

	g := entity.NewGlobals()
	h := newFakeHost()
	return &fixture{world: w, catalog: c, globals: g, host: h,
		svc: NewService(h, w, c, g, log.New(io.Discard))}
}

// tick runs one physics step with the player at origin
func (f *fixture) tick(origin geom.Vector) {
	f.globals.Advance()
	f.host.pawn.Origin = origin
	f.svc.OnPhysicsSimulate()
	f.svc.OnPhysicsSimulatePost()
}

func spawnTyped(w *ecs.World, typ mapping.TriggerType, origin geom.Vector, kv map[string]string) ecs.EntityID {
	all := map[string]string{"timer_trigger_type": fmt.Sprint(int(typ))}
	for k, v := range kv {
		all[k] = v
	}
	return w.CreateTrigger("trigger_multiple", "", origin, box, all)
}

var (
	outside = geom.Vec(5000, 5000, 0)
	origin0 = geom.Vec(0, 0, 0)
)

func TestModifierCountsBalance(t *testing.T) {
	var second ecs.EntityID
	f := newFixture(t, func(w *ecs.World) {
		spawnTyped(w, mapping.TriggerModifier, origin0, map[string]string{
			"timer_modifier_disable_pause":       "1",
			"timer_modifier_disable_checkpoints": "1",
			"timer_modifier_enable_slide":        "1",
		})
		second = spawnTyped(w, mapping.TriggerModifier, geom.Vec(16, 0, 0), map[string]string{
			"timer_modifier_disable_pause":     "1",
			"timer_modifier_disable_teleports": "1",
		})
	})

	f.tick(origin0)
	m := f.svc.Modifiers()
	assert.Equal(t, 2, m.DisablePausingCount)
	assert.Equal(t, 1, m.DisableCheckpointsCount)
	assert.Equal(t, 1, m.DisableTeleportsCount)
	assert.Equal(t, 1, m.EnableSlideCount)
	assert.True(t, f.svc.InAntiPauseArea())
	assert.True(t, f.svc.InAntiCpArea())
	assert.False(t, f.svc.CanTeleportToCheckpoints())

	t.Run("entering again doesn't double count", func(t *testing.T) {
		f.tick(origin0)
		assert.Equal(t, 2, f.svc.Modifiers().DisablePausingCount)
	})

	t.Run("vanished trigger releases its counts", func(t *testing.T) {
		f.world.DestroyEntity(second)
		f.tick(origin0)
		m := f.svc.Modifiers()
		assert.Equal(t, 1, m.DisablePausingCount)
		assert.Equal(t, 0, m.DisableTeleportsCount)
		assert.True(t, f.svc.CanTeleportToCheckpoints())
	})

	t.Run("leaving returns to zero", func(t *testing.T) {
		f.tick(outside)
		assert.True(t, f.svc.Modifiers().Zero())
		assert.False(t, f.svc.InAntiPauseArea())
	})
}

func TestModifierCountsSurviveToggling(t *testing.T) {
	build := func(id *ecs.EntityID) func(w *ecs.World) {
		return func(w *ecs.World) {
			*id = spawnTyped(w, mapping.TriggerModifier, origin0, map[string]string{"timer_modifier_disable_pause": "1"})
		}
	}

	t.Run("disabled while touched then left", func(t *testing.T) {
		var mod ecs.EntityID
		f := newFixture(t, build(&mod))
		f.tick(origin0)
		require.Equal(t, 1, f.svc.Modifiers().DisablePausingCount)

		f.world.SetDisabled(mod, true)
		f.tick(outside)
		assert.True(t, f.svc.Modifiers().Zero())
		assert.False(t, f.svc.InAntiPauseArea())
	})

	t.Run("disabled while standing inside", func(t *testing.T) {
		var mod ecs.EntityID
		f := newFixture(t, build(&mod))
		f.tick(origin0)
		require.True(t, f.svc.InAntiPauseArea())

		f.world.SetDisabled(mod, true)
		f.tick(origin0)
		assert.Equal(t, 0, f.svc.Modifiers().DisablePausingCount)
		f.tick(origin0)
		assert.Equal(t, 0, f.svc.Modifiers().DisablePausingCount)
		f.tick(outside)
		assert.True(t, f.svc.Modifiers().Zero())
	})

	t.Run("enabled while touched never ends what didn't start", func(t *testing.T) {
		var mod ecs.EntityID
		f := newFixture(t, build(&mod))
		f.world.SetDisabled(mod, true)
		f.tick(origin0)
		assert.Equal(t, 0, f.svc.Modifiers().DisablePausingCount)

		f.world.SetDisabled(mod, false)
		f.tick(origin0)
		f.tick(outside)
		assert.Equal(t, 0, f.svc.Modifiers().DisablePausingCount)
		assert.True(t, f.svc.Modifiers().Zero())
	})
}

// recordingHooks logs every pre-hook call as "<phase> <entity>"
type recordingHooks struct{ calls *[]string }

func (r recordingHooks) record(phase string, id ecs.EntityID) bool {
	*r.calls = append(*r.calls, fmt.Sprintf("%s %d", phase, id))
	return true
}

func (r recordingHooks) OnTriggerStartTouch(id ecs.EntityID) bool { return r.record("start", id) }
func (r recordingHooks) OnTriggerTouch(id ecs.EntityID) bool      { return r.record("touch", id) }
func (r recordingHooks) OnTriggerEndTouch(id ecs.EntityID) bool   { return r.record("end", id) }

func TestTouchTriggersAlongPath(t *testing.T) {
	var thin, disabled ecs.EntityID
	f := newFixture(t, func(w *ecs.World) {
		withDestination(0)(w)
		// A delayed teleport is touched on entry but never fires here
		thin = spawnTyped(w, mapping.TriggerTeleport, geom.Vec(500, 0, 0), map[string]string{
			"timer_teleport_destination": "dest",
			"timer_teleport_delay":       "10",
		})
		disabled = spawnTyped(w, mapping.TriggerModifier, geom.Vec(700, 0, 0), map[string]string{"timer_modifier_disable_pause": "1"})
	})
	f.world.SetDisabled(disabled, true)
	var calls []string
	f.host.hooks = []Hooks{recordingHooks{calls: &calls}}

	end := geom.Vec(1200, 0, 0)
	f.globals.Advance()
	f.svc.OnPhysicsSimulate()
	f.host.pawn.Origin = end
	f.svc.TouchTriggersAlongPath(origin0, end, box)
	f.svc.TouchTriggersAlongPath(origin0, end, box)
	f.svc.OnPhysicsSimulatePost()

	assert.Equal(t, []string{
		fmt.Sprintf("start %d", thin),
		fmt.Sprintf("touch %d", thin),
		fmt.Sprintf("end %d", thin),
	}, calls)
	assert.Equal(t, end, f.host.pawn.Origin)
	assert.False(t, f.svc.InAntiPauseArea())
	assert.Empty(t, f.svc.trackers)

	t.Run("dead players touch nothing", func(t *testing.T) {
		calls = nil
		f.host.pawn.Alive = false
		f.svc.TouchTriggersAlongPath(origin0, end, box)
		assert.Empty(t, calls)
		f.host.pawn.Alive = true
	})
}

func TestSlideReplicatesOnEdgesOnly(t *testing.T) {
	f := newFixture(t, func(w *ecs.World) {
		spawnTyped(w, mapping.TriggerModifier, origin0, map[string]string{"timer_modifier_enable_slide": "1"})
	})
	cv := f.host.convars

	f.tick(origin0)
	assert.Equal(t, 1, cv.ReplicateCount(entity.CvarStandableNormal))
	assert.InDelta(t, 600, cv.Float(entity.CvarAirAccelerate, 0), 1e-9)
	assert.InDelta(t, 2, cv.Float(entity.CvarWalkableNormal, 0), 1e-9)

	f.tick(origin0)
	f.tick(origin0)
	assert.Equal(t, 1, cv.ReplicateCount(entity.CvarStandableNormal))

	f.tick(outside)
	assert.Equal(t, 2, cv.ReplicateCount(entity.CvarStandableNormal))
	assert.InDelta(t, 150, cv.Float(entity.CvarAirAccelerate, 0), 1e-9)
	assert.InDelta(t, 0.7, cv.Float(entity.CvarStandableNormal, 0), 1e-9)
}

func TestModifierGravityAndJumpFactor(t *testing.T) {
	f := newFixture(t, func(w *ecs.World) {
		spawnTyped(w, mapping.TriggerModifier, origin0, map[string]string{
			"timer_modifier_gravity":      "0.5",
			"timer_modifier_jump_impulse": "2",
		})
	})

	f.tick(origin0)
	assert.Equal(t, 0.5, f.host.pawn.GravityScale)
	assert.InDelta(t, 301.993*2, f.host.convars.Float(entity.CvarJumpImpulse, 0), 1e-9)
	assert.InDelta(t, 0.04, f.host.convars.Float(entity.CvarStaminaJumpCost, 0), 1e-9)

	f.host.zones.paused = true
	f.tick(origin0)
	assert.Equal(t, 0.0, f.host.pawn.GravityScale)

	// The final touch on the way out still applies the modifier
	f.host.zones.paused = false
	f.tick(outside)
	assert.Equal(t, 0.5, f.host.pawn.GravityScale)
	f.tick(outside)
	assert.Equal(t, 1.0, f.host.pawn.GravityScale)
}

func TestForcedDuckAndUnduck(t *testing.T) {
	f := newFixture(t, func(w *ecs.World) {
		spawnTyped(w, mapping.TriggerModifier, origin0, map[string]string{"timer_modifier_force_duck": "1"})
		spawnTyped(w, mapping.TriggerModifier, geom.Vec(1000, 0, 0), map[string]string{"timer_modifier_force_unduck": "1"})
	})
	pawn := f.host.pawn

	f.tick(origin0)
	f.tick(origin0)
	assert.True(t, pawn.DuckOverride)
	f.tick(outside)
	f.tick(outside)
	assert.False(t, pawn.DuckOverride)

	pawn.SetFlag(entity.FlagDucking, true)
	f.tick(geom.Vec(1000, 0, 0))
	f.tick(geom.Vec(1000, 0, 0))
	assert.Equal(t, 100000.0, pawn.LastDuckTime)
	assert.Zero(t, pawn.Flags&entity.FlagDucking)
	f.tick(outside)
	f.tick(outside)
	assert.Equal(t, 0.0, pawn.LastDuckTime)
}

func TestAntiBhop(t *testing.T) {
	f := newFixture(t, func(w *ecs.World) {
		spawnTyped(w, mapping.TriggerAntiBhop, origin0, map[string]string{"timer_anti_bhop_time": "0.2"})
	})
	pawn := f.host.pawn
	pawn.SetFlag(entity.FlagOnGround, true)

	f.tick(origin0)
	f.host.landingTime = f.globals.CurTime
	f.tick(origin0)
	assert.True(t, f.svc.AntiBhopActive())
	assert.True(t, pawn.OldJumpPressed)
	assert.Equal(t, 0.0, f.host.convars.Float(entity.CvarAutoBunnyhopping, -1))
	assert.Equal(t, 0.0, f.host.convars.Float(entity.CvarJumpImpulse, -1))

	// Standing long enough lifts the restriction
	f.host.landingTime = f.globals.CurTime - 1
	f.tick(origin0)
	assert.False(t, f.svc.AntiBhopActive())
	assert.Equal(t, 1.0, f.host.convars.Float(entity.CvarAutoBunnyhopping, -1))
}

func TestTimerZoneDispatch(t *testing.T) {
	f := newFixture(t, func(w *ecs.World) {
		w.Spawn(ecs.SpawnInfo{
			Classname:  "info_target_server_only",
			Targetname: "main",
			HammerID:   1,
			Keyvalues: map[string]string{
				"timer_course_descriptor": "1",
				"timer_course_number":     "1",
				"timer_course_name":       "Main",
			},
		})
		zone := func(typ mapping.TriggerType, x float64, extra map[string]string) {
			kv := map[string]string{"timer_zone_course_descriptor": "main"}
			for k, v := range extra {
				kv[k] = v
			}
			spawnTyped(w, typ, geom.Vec(x, 0, 0), kv)
		}
		zone(mapping.TriggerZoneStart, 0, nil)
		zone(mapping.TriggerZoneCheckpoint, 200, map[string]string{"timer_zone_checkpoint_number": "1"})
		zone(mapping.TriggerZoneStage, 400, map[string]string{"timer_zone_stage_number": "2"})
		zone(mapping.TriggerZoneEnd, 600, nil)
	})

	f.host.checkpoints = 3
	f.tick(origin0)
	f.tick(geom.Vec(200, 0, 0))
	f.tick(geom.Vec(400, 0, 0))
	f.tick(geom.Vec(600, 0, 0))

	assert.Equal(t, []zoneCall{
		{"start", "Main", 0},
		{"leave", "Main", 0},
		{"checkpoint", "Main", 1},
		{"stage", "Main", 2},
		{"stageleave", "Main", 2},
		{"end", "Main", 0},
	}, f.host.zones.calls)
	assert.Equal(t, 2, f.host.resets)
}

func TestPreHooksBlockStartTouch(t *testing.T) {
	var mod ecs.EntityID
	f := newFixture(t, func(w *ecs.World) {
		mod = spawnTyped(w, mapping.TriggerModifier, origin0, map[string]string{"timer_modifier_disable_pause": "1"})
	})
	f.host.hooks = []Hooks{denyHooks{deny: map[ecs.EntityID]bool{mod: true}}}

	f.tick(origin0)
	assert.False(t, f.svc.InAntiPauseArea())

	f.host.hooks = nil
	f.tick(origin0)
	assert.True(t, f.svc.InAntiPauseArea())
}

func TestResetCheckpointsTrigger(t *testing.T) {
	f := newFixture(t, func(w *ecs.World) {
		spawnTyped(w, mapping.TriggerResetCheckpoints, origin0, nil)
	})
	f.host.zones.running = true
	f.host.checkpoints = 2

	f.tick(origin0)
	assert.Equal(t, 1, f.host.resets)
	require.Len(t, f.host.chat, 1)
	assert.Contains(t, f.host.chat[0], "Checkpoints cleared")
}

func TestDisabledTriggerFilteredOut(t *testing.T) {
	var mod ecs.EntityID
	f := newFixture(t, func(w *ecs.World) {
		mod = spawnTyped(w, mapping.TriggerModifier, origin0, map[string]string{"timer_modifier_disable_pause": "1"})
	})
	f.world.SetDisabled(mod, true)
	f.tick(origin0)
	assert.False(t, f.svc.InAntiPauseArea())
}

func TestNoclipEndsAllTouches(t *testing.T) {
	f := newFixture(t, func(w *ecs.World) {
		spawnTyped(w, mapping.TriggerModifier, origin0, map[string]string{"timer_modifier_disable_pause": "1"})
	})
	f.tick(origin0)
	require.True(t, f.svc.InAntiPauseArea())

	f.host.pawn.MoveType = entity.MoveTypeNoclip
	f.tick(origin0)
	assert.False(t, f.svc.InAntiPauseArea())
}
