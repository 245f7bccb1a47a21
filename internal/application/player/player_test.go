package player

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younwookim/surftimer/internal/application/style"
	"github.com/younwookim/surftimer/internal/application/system"
	"github.com/younwookim/surftimer/internal/domain/entity"
	"github.com/younwookim/surftimer/internal/domain/geom"
	"github.com/younwookim/surftimer/internal/domain/mapping"
	"github.com/younwookim/surftimer/internal/ecs"
)

// fastStyle tweaks the max speed convar
type fastStyle struct {
	style.Base
}

func (fastStyle) Name() string      { return "fast" }
func (fastStyle) ShortName() string { return "fs" }

func (fastStyle) TweakedConVar(name string) (float64, bool) {
	if name == entity.CvarMaxSpeed {
		return 400, true
	}
	return 0, false
}

func withFastStyle(o *Options) {
	r := style.NewDefaultRegistry()
	if err := r.Register("fs", "fast", func(style.Player) style.Service { return fastStyle{} }); err != nil {
		panic(err)
	}
	o.Styles = r
}

func TestConVarResolution(t *testing.T) {
	m := newTestManager(t, withFastStyle)
	p := m.connect(t, "alice")

	assert.Equal(t, 320.0, p.Cvar(entity.CvarMaxSpeed), "mode baseline")

	require.NoError(t, p.AddStyle("fast"))
	assert.Equal(t, 400.0, p.ModeStyleValue(entity.CvarMaxSpeed), "style tweak wins over the mode")
	assert.Equal(t, 400.0, p.Cvar(entity.CvarMaxSpeed))

	p.ConVars().Set(entity.CvarMaxSpeed, 250, false)
	assert.Equal(t, 250.0, p.Cvar(entity.CvarMaxSpeed), "override wins over everything")
	assert.Equal(t, 400.0, p.ModeStyleValue(entity.CvarMaxSpeed))
}

func TestStyleCommands(t *testing.T) {
	m := newTestManager(t, withFastStyle)
	p := m.connect(t, "alice")

	require.NoError(t, p.ToggleStyle("lg"))
	require.NoError(t, p.AddStyle("fs"))
	assert.Equal(t, 2, p.StyleCount())
	infos := p.StyleInfos()
	require.Len(t, infos, 2)
	assert.Equal(t, style.ShortNameLowGrav, infos[0].ShortName)
	assert.Equal(t, "fs", infos[1].ShortName)

	require.NoError(t, p.RemoveStyle("lg"))
	assert.Equal(t, 1, p.StyleCount())
	assert.ErrorIs(t, p.RemoveStyle("lg"), style.ErrNotActive)

	p.ClearStyles()
	assert.Zero(t, p.StyleCount())
}

func TestTouchHooksOrder(t *testing.T) {
	m := newTestManager(t, nil)
	p := m.connect(t, "alice")
	require.NoError(t, p.AddStyle("lg"))

	hooks := p.TouchHooks()
	require.Len(t, hooks, 2)
	assert.Equal(t, p.Mode(), hooks[0])
	assert.Equal(t, p.Styles().Services()[0], hooks[1])
}

func TestSetMode(t *testing.T) {
	m := newTestManager(t, nil)
	p := m.connect(t, "alice")
	p.ConVars().Set(entity.CvarGravity, 100, false)

	err := p.SetMode("nope")
	require.ErrorIs(t, err, ErrUnknownMode)
	assert.True(t, m.chat.contains(p.ID(), "Mode nope is not available."))

	require.NoError(t, p.SetMode("64t"))
	_, overridden := p.ConVars().Get(entity.CvarGravity)
	assert.True(t, overridden, "picking the active mode again changes nothing")
}

func TestKinematicsWriteThroughMove(t *testing.T) {
	m := newTestManager(t, nil)
	p := m.connect(t, "alice")

	p.move = system.NewMove(p.Pawn(), system.Command{})
	assert.True(t, p.ProcessingMovement())

	p.SetOrigin(geom.Vec(1, 2, 3))
	p.SetVelocity(geom.Vec(4, 5, 6))
	p.SetAngles(geom.QAngle{Yaw: 90})

	assert.Equal(t, geom.Vec(1, 2, 3), p.move.Origin)
	assert.Equal(t, geom.Vec(4, 5, 6), p.move.Velocity)
	assert.Equal(t, 90.0, p.move.Angles.Yaw)
	assert.Equal(t, p.move.Origin, p.Origin())
	assert.Equal(t, 3.0, p.GroundPosition())

	p.move = nil
	assert.False(t, p.ProcessingMovement())
	assert.Equal(t, geom.Vec(1, 2, 3), p.Origin())
}

func TestLandingIsRecorded(t *testing.T) {
	m := newTestManager(t, nil)
	p := m.connect(t, "alice")
	p.Pawn().Origin = geom.Vec(128, 0, 40)

	for range 64 {
		m.Tick(idle)
		if p.Pawn().OnGround() {
			break
		}
	}

	require.True(t, p.Pawn().OnGround())
	assert.Equal(t, m.Globals().CurTime, p.LandingTime())
	assert.InDelta(t, 0, p.LandingOrigin().Z, 1)
}

func TestJumpLeavesGround(t *testing.T) {
	m := newTestManager(t, nil)
	p := m.connect(t, "alice")
	m.run(16, idle)
	require.True(t, p.Pawn().OnGround())

	m.Tick(func(*Player) system.Command { return system.Command{Buttons: entity.ButtonJump} })

	assert.True(t, p.Jumped())
	assert.False(t, p.Pawn().OnGround())
	assert.False(t, p.InPerf(), "the jump came long after landing")
}

func TestTeleportNotifiesTimer(t *testing.T) {
	m := newTestManager(t, nil)
	p := m.connect(t, "alice")
	m.run(4, idle)

	target := geom.Vec(512, 0, 0)
	p.Teleport(&target, nil, nil)

	assert.Equal(t, target, p.Pawn().Origin)
	assert.True(t, p.JustTeleported())
	m.run(8, idle)
	assert.False(t, p.JustTeleported())
}

func TestCheckpoints(t *testing.T) {
	m := newTestManager(t, nil)
	p := m.connect(t, "alice")

	assert.ErrorIs(t, p.TeleportToCheckpoint(), ErrNoCheckpoints)

	m.run(8, idle)
	first := p.Pawn().Origin
	require.NoError(t, p.SaveCheckpoint())

	second := geom.Vec(600, 0, 0)
	p.Teleport(&second, nil, nil)
	require.NoError(t, p.SaveCheckpoint())
	assert.Equal(t, 2, p.CheckpointCount())

	require.NoError(t, p.PrevCheckpoint())
	assert.Equal(t, first, p.Pawn().Origin)
	require.NoError(t, p.PrevCheckpoint())
	assert.Equal(t, first, p.Pawn().Origin, "stays on the oldest")

	require.NoError(t, p.NextCheckpoint())
	assert.Equal(t, second, p.Pawn().Origin)

	p.ResetCheckpoints()
	assert.Zero(t, p.CheckpointCount())
}

func TestCheckpointRestoresDuck(t *testing.T) {
	m := newTestManager(t, nil)
	p := m.connect(t, "alice")
	m.run(8, idle)

	p.Pawn().SetFlag(entity.FlagDucking, true)
	require.NoError(t, p.SaveCheckpoint())
	p.Pawn().SetFlag(entity.FlagDucking, false)
	p.Pawn().Bounds = entity.DefaultBounds

	require.NoError(t, p.TeleportToCheckpoint())
	assert.NotZero(t, p.Pawn().Flags&entity.FlagDucking)
	assert.Equal(t, entity.DuckedBounds, p.Pawn().Bounds)
}

func TestCheckpointsRefusedWhenDead(t *testing.T) {
	m := newTestManager(t, nil)
	p := m.connect(t, "alice")
	p.Kill()

	assert.ErrorIs(t, p.SaveCheckpoint(), ErrCheckpoint)
	assert.False(t, p.Alive())

	p.Spawn(spawnPoint)
	assert.True(t, p.Alive())
	assert.NoError(t, p.SaveCheckpoint())
}

func TestCheckpointLimit(t *testing.T) {
	m := newTestManager(t, nil)
	p := m.connect(t, "alice")

	for range MaxCheckpoints + 5 {
		require.NoError(t, p.SaveCheckpoint())
	}
	assert.Equal(t, MaxCheckpoints, p.CheckpointCount())
}

func TestRestart(t *testing.T) {
	m := newTestManager(t, nil)
	p := m.connect(t, "alice")
	away := geom.Vec(2000, 0, 0)
	p.Teleport(&away, nil, nil)
	p.Pawn().Velocity = geom.Vec(300, 0, 0)

	require.NoError(t, p.Restart())

	course := m.Catalog().FirstCourse()
	assert.Equal(t, course.StartPosition, p.Pawn().Origin)
	assert.True(t, p.Pawn().Velocity.IsZero())
}

func TestRestartWithoutCourse(t *testing.T) {
	m := newTestManager(t, nil)
	p := m.connect(t, "alice")
	m.Catalog().ClearCourses()

	assert.ErrorIs(t, p.Restart(), ErrNoStart)
}

func TestNoclip(t *testing.T) {
	m := newTestManager(t, nil)
	p := m.connect(t, "alice")

	p.ToggleNoclip()
	m.Tick(idle)
	assert.Equal(t, entity.MoveTypeNoclip, p.Pawn().MoveType)
	assert.True(t, p.JustNoclipped())

	p.ToggleNoclip()
	m.Tick(idle)
	assert.Equal(t, entity.MoveTypeWalk, p.Pawn().MoveType)
	assert.True(t, p.JustNoclipped(), "leaving noclip keeps the grace period")

	m.run(8, idle)
	assert.False(t, p.JustNoclipped())
}

func TestJoinSpectator(t *testing.T) {
	m := newTestManager(t, nil)
	p := m.connect(t, "alice")

	p.JoinSpectator()

	assert.Equal(t, entity.MoveTypeObserver, p.Pawn().MoveType)
	assert.True(t, p.Timer().Paused())
}

func TestPause(t *testing.T) {
	m := newTestManager(t, nil)
	p := m.connect(t, "alice")
	m.run(8, idle)

	p.TogglePause()
	assert.True(t, p.Timer().Paused())
	m.Tick(idle)
	assert.Equal(t, entity.MoveTypeNone, p.Pawn().MoveType)

	p.TogglePause()
	assert.False(t, p.Timer().Paused())
	assert.Equal(t, entity.MoveTypeWalk, p.Pawn().MoveType)
}

func TestAntiPauseAreaVetoesPause(t *testing.T) {
	m := newTestManager(t, nil)
	id := m.world.Spawn(ecs.SpawnInfo{
		Classname: "trigger_multiple",
		HammerID:  30,
		Origin:    geom.Vec(-512, 0, 0),
		Bounds:    zoneBox,
		Keyvalues: map[string]string{
			"timer_trigger_type":           fmt.Sprint(int(mapping.TriggerModifier)),
			"timer_modifier_disable_pause": "1",
		},
	})
	m.StartRound(m.world.Entities())
	require.NotNil(t, m.Catalog().Trigger(id))

	p := m.connect(t, "alice")
	inside := geom.Vec(-512, 0, 0)
	p.Teleport(&inside, nil, nil)
	m.run(4, idle)
	require.True(t, p.Triggers().InAntiPauseArea())

	p.TogglePause()

	assert.False(t, p.Timer().Paused())
	assert.True(t, m.chat.contains(p.ID(), "You can't pause right now."))
}
