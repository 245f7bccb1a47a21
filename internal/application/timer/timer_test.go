package timer

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younwookim/surftimer/internal/application/state"
	"github.com/younwookim/surftimer/internal/domain/entity"
	"github.com/younwookim/surftimer/internal/domain/geom"
	"github.com/younwookim/surftimer/internal/domain/mapping"
	"github.com/younwookim/surftimer/internal/ecs"
)

type announced struct {
	guid uint32
	time float64
}

type fakeHost struct {
	pawn          *entity.Pawn
	landingTime   float64
	teleported    bool
	noclipped     bool
	perf          bool
	bot           bool
	modeName      string
	styles        int
	announcements []announced
}

func (h *fakeHost) Pawn() *entity.Pawn   { return h.pawn }
func (h *fakeHost) Alive() bool          { return h.pawn.Alive }
func (h *fakeHost) Bot() bool            { return h.bot }
func (h *fakeHost) LandingTime() float64 { return h.landingTime }
func (h *fakeHost) JustTeleported() bool { return h.teleported }
func (h *fakeHost) JustNoclipped() bool  { return h.noclipped }
func (h *fakeHost) InPerf() bool         { return h.perf }
func (h *fakeHost) ModeID() uint32       { return 1 }
func (h *fakeHost) ModeName() string     { return h.modeName }
func (h *fakeHost) StyleCount() int      { return h.styles }
func (h *fakeHost) AnnounceRecord(guid uint32, time float64) {
	h.announcements = append(h.announcements, announced{guid, time})
}

type chat struct{ lines []string }

func (c *chat) PrintChat(msg string) { c.lines = append(c.lines, msg) }

type sounds struct{ played []string }

func (s *sounds) PlaySound(name string) { s.played = append(s.played, name) }

type fixture struct {
	globals *entity.Globals
	catalog *mapping.Catalog
	course  *mapping.Course
	host    *fakeHost
	chat    *chat
	sounds  *sounds
	records *RecordCache
	timer   *Timer
}

// newFixture builds a timer for a grounded player on a course with the given
// zone counts. The clock starts a few seconds in so nothing counts as recent.
func newFixture(t *testing.T, splits, checkpoints, stages int) *fixture {
	t.Helper()
	c := mapping.NewCatalog(ecs.NewWorld(), log.New(io.Discard))
	require.True(t, c.CreateCourse(1, "Main", 1, "main", false))
	course := c.FirstCourse()
	course.SplitCount = splits
	course.CheckpointCount = checkpoints
	course.StageCount = stages

	g := entity.NewGlobals()
	for range 256 {
		g.Advance()
	}

	pawn := entity.NewPawn(geom.Vector{})
	pawn.SetFlag(entity.FlagOnGround, true)
	f := &fixture{
		globals: g,
		catalog: c,
		course:  course,
		host:    &fakeHost{pawn: pawn, modeName: "64t"},
		chat:    &chat{},
		sounds:  &sounds{},
		records: NewRecordCache(),
	}
	f.timer = New(f.host, Options{
		Globals: g,
		Catalog: c,
		Records: f.records,
		Printer: f.chat,
		Sounds:  f.sounds,
		Logger:  log.New(io.Discard),
	})
	return f
}

func (f *fixture) ticks(n int) {
	for range n {
		f.globals.Advance()
		f.timer.OnPhysicsSimulatePost()
	}
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	require.True(t, f.timer.TimerStart(f.course, true))
}

func TestTimerStartRefusals(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
	}{
		{"dead", func(f *fixture) { f.host.pawn.Alive = false }},
		{"just teleported", func(f *fixture) { f.host.teleported = true }},
		{"just noclipped", func(f *fixture) { f.host.noclipped = true }},
		{"in perf", func(f *fixture) { f.host.perf = true }},
		{"just landed", func(f *fixture) { f.host.landingTime = f.globals.CurTime - 0.01 }},
		{"noclip move type", func(f *fixture) { f.host.pawn.MoveType = entity.MoveTypeNoclip }},
		{"fly move type", func(f *fixture) { f.host.pawn.MoveType = entity.MoveTypeFly }},
		{"airborne without valid jump", func(f *fixture) { f.host.pawn.SetFlag(entity.FlagOnGround, false) }},
		{"mode name too long", func(f *fixture) {
			name := make([]byte, MaxModeNameLength+1)
			for i := range name {
				name[i] = 'x'
			}
			f.host.modeName = string(name)
		}},
		{"nil course", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 0, 0, 0)
			course := f.course
			if tt.setup == nil {
				course = nil
			} else {
				tt.setup(f)
			}

			assert.False(t, f.timer.TimerStart(course, true))
			assert.False(t, f.timer.Running())
		})
	}
}

func TestTimerStartBaseline(t *testing.T) {
	f := newFixture(t, 1, 2, 3)
	f.host.pawn.Velocity = geom.Vec(300, 400, 0)

	require.True(t, f.timer.TimerStart(f.course, true))
	assert.True(t, f.timer.Running())
	assert.Equal(t, 0.0, f.timer.Time())
	assert.Equal(t, f.course.GUID, f.timer.CourseGUID())
	assert.Equal(t, 1, f.timer.CurrentStage())
	assert.True(t, f.timer.ValidTime())
	assert.Equal(t, state.StateRunning, f.timer.State())
	assert.Equal(t, -1.0, f.timer.CheckpointTime(1))
	assert.Equal(t, -1.0, f.timer.StageTime(3))
	assert.Contains(t, f.sounds.played, SoundStart)
	assert.Contains(t, f.chat.lines, "{grey}Start speed: {default}500")

	// Restarting the same course in the same tick is refused
	assert.False(t, f.timer.TimerStart(f.course, true))
}

func TestTimerStartFromValidJump(t *testing.T) {
	f := newFixture(t, 0, 0, 0)
	f.timer.OnStopTouchGround()
	f.host.pawn.SetFlag(entity.FlagOnGround, false)

	assert.True(t, f.timer.ValidJump())
	assert.True(t, f.timer.TimerStart(f.course, false))
}

func TestStartZoneNeedsGround(t *testing.T) {
	f := newFixture(t, 0, 0, 0)
	f.host.pawn.SetFlag(entity.FlagOnGround, false)

	f.timer.StartZoneStartTouch(f.course)
	assert.True(t, f.timer.InStartZone())
	f.timer.StartZoneEndTouch(f.course)
	assert.False(t, f.timer.Running())
	assert.False(t, f.timer.InStartZone())

	f.timer.StartZoneStartTouch(f.course)
	f.timer.OnStartTouchGround()
	f.host.pawn.SetFlag(entity.FlagOnGround, true)
	f.timer.StartZoneEndTouch(f.course)
	assert.True(t, f.timer.Running())

	// Re-entering the start zone stops the run
	f.ticks(10)
	f.timer.StartZoneStartTouch(f.course)
	assert.False(t, f.timer.Running())
}

func TestCheckpointFirstTouchWins(t *testing.T) {
	f := newFixture(t, 0, 3, 0)
	f.start(t)

	f.ticks(64)
	f.timer.CheckpointZoneStartTouch(f.course, 2)
	first := f.timer.CheckpointTime(2)
	assert.InDelta(t, 1.0, first, 1e-9)

	f.ticks(64)
	f.timer.CheckpointZoneStartTouch(f.course, 2)
	assert.Equal(t, first, f.timer.CheckpointTime(2))
	assert.Equal(t, 1, f.timer.ReachedCheckpoints())

	// Out of range numbers and other courses are ignored
	f.timer.CheckpointZoneStartTouch(f.course, 4)
	f.timer.CheckpointZoneStartTouch(&mapping.Course{GUID: 99}, 1)
	assert.Equal(t, 1, f.timer.ReachedCheckpoints())
}

func TestSplitFirstTouchWins(t *testing.T) {
	f := newFixture(t, 2, 0, 0)
	f.start(t)

	f.ticks(32)
	f.timer.SplitZoneStartTouch(f.course, 1)
	f.ticks(32)
	f.timer.SplitZoneStartTouch(f.course, 1)

	assert.InDelta(t, 0.5, f.timer.SplitTime(1), 1e-9)
	assert.Equal(t, -1.0, f.timer.SplitTime(2))
}

func TestStageOrder(t *testing.T) {
	f := newFixture(t, 0, 0, 3)
	f.start(t)
	require.Equal(t, 1, f.timer.CurrentStage())

	f.ticks(64)
	f.timer.StageZoneStartTouch(f.course, 3)
	assert.Equal(t, 1, f.timer.CurrentStage())
	assert.Equal(t, -1.0, f.timer.StageTime(1))
	assert.Contains(t, f.sounds.played, SoundMissedZone)

	f.timer.StageZoneStartTouch(f.course, 2)
	assert.Equal(t, 2, f.timer.CurrentStage())
	assert.InDelta(t, 1.0, f.timer.StageTime(1), 1e-9)

	f.timer.StageZoneStartTouch(f.course, 2)
	assert.Equal(t, 2, f.timer.CurrentStage())

	// Stage 2's split is measured from leaving its zone
	f.ticks(32)
	f.timer.StageZoneEndTouch(f.course, 2)
	f.ticks(64)
	f.timer.StageZoneStartTouch(f.course, 3)
	assert.Equal(t, 3, f.timer.CurrentStage())
	assert.InDelta(t, 1.0, f.timer.StageTime(2), 1e-9)
}

func TestTimerEndNeedsEveryCheckpoint(t *testing.T) {
	f := newFixture(t, 0, 3, 0)
	f.start(t)

	f.timer.CheckpointZoneStartTouch(f.course, 1)
	f.timer.CheckpointZoneStartTouch(f.course, 2)
	assert.False(t, f.timer.TimerEnd(f.course))
	assert.True(t, f.timer.Running())

	f.timer.CheckpointZoneStartTouch(f.course, 3)
	assert.True(t, f.timer.TimerEnd(f.course))
	assert.False(t, f.timer.Running())
	require.Len(t, f.host.announcements, 1)
}

func TestTimerEndNeedsLastStage(t *testing.T) {
	f := newFixture(t, 0, 0, 2)
	f.start(t)

	f.timer.StageZoneStartTouch(f.course, 2)
	assert.False(t, f.timer.TimerEnd(f.course))

	f.timer.StageZoneStartTouch(f.course, 3)
	assert.True(t, f.timer.TimerEnd(f.course))
	assert.Equal(t, 0, f.timer.CurrentStage())
}

func TestTimerEndAddsFrameTime(t *testing.T) {
	f := newFixture(t, 0, 0, 0)
	f.start(t)
	f.ticks(128)
	require.InDelta(t, 2.0, f.timer.Time(), 1e-9)

	require.True(t, f.timer.TimerEnd(f.course))
	want := 2.0 + entity.TickInterval
	assert.InDelta(t, want, f.timer.Time(), 1e-9)
	require.Len(t, f.host.announcements, 1)
	assert.Equal(t, f.course.GUID, f.host.announcements[0].guid)
	assert.InDelta(t, want, f.host.announcements[0].time, 1e-9)
	assert.Contains(t, f.sounds.played, SoundEnd)
}

func TestTimerEndWithoutRun(t *testing.T) {
	f := newFixture(t, 0, 0, 0)

	assert.False(t, f.timer.TimerEnd(f.course))
	assert.Equal(t, f.globals.CurTime, f.timer.LastFalseEndTime())
	assert.Contains(t, f.sounds.played, SoundFalseEnd)
	assert.Empty(t, f.host.announcements)
}

func TestBotsAreNotAnnounced(t *testing.T) {
	f := newFixture(t, 0, 0, 0)
	f.host.bot = true
	f.start(t)

	require.True(t, f.timer.TimerEnd(f.course))
	assert.Empty(t, f.host.announcements)
}

func TestTimerStop(t *testing.T) {
	f := newFixture(t, 0, 0, 2)
	assert.False(t, f.timer.TimerStop(true))

	f.start(t)
	assert.True(t, f.timer.TimerStop(true))
	assert.False(t, f.timer.Running())
	assert.Equal(t, 0, f.timer.CurrentStage())
	assert.Contains(t, f.sounds.played, SoundStop)

	f.timer.ToggleTimerStopSound()
	f.sounds.played = nil
	f.start(t)
	f.timer.OnPlayerDeath()
	assert.False(t, f.timer.Running())
	assert.NotContains(t, f.sounds.played, SoundStop)
}

type recorder struct {
	BaseListener
	events    []string
	denyStart bool
	denyPause bool
}

func (r *recorder) OnTimerStart(*Timer, uint32) bool {
	r.events = append(r.events, "start")
	return !r.denyStart
}
func (r *recorder) OnTimerStartPost(*Timer, uint32) { r.events = append(r.events, "startPost") }
func (r *recorder) OnTimerEndPost(*Timer, uint32, float64) {
	r.events = append(r.events, "endPost")
}
func (r *recorder) OnTimerStopped(*Timer, uint32) { r.events = append(r.events, "stopped") }
func (r *recorder) OnTimerInvalidated(*Timer)     { r.events = append(r.events, "invalidated") }
func (r *recorder) OnPause(*Timer) bool {
	r.events = append(r.events, "pause")
	return !r.denyPause
}
func (r *recorder) OnPausePost(*Timer)  { r.events = append(r.events, "pausePost") }
func (r *recorder) OnResumePost(*Timer) { r.events = append(r.events, "resumePost") }

func TestListeners(t *testing.T) {
	f := newFixture(t, 0, 0, 0)
	ls := &Listeners{}
	first, second := &recorder{}, &recorder{}
	require.True(t, ls.Register(first))
	require.True(t, ls.Register(second))
	assert.False(t, ls.Register(first))
	f.timer.listeners = ls

	// A veto from the first listener still lets the second see the event
	first.denyStart = true
	assert.False(t, f.timer.TimerStart(f.course, false))
	assert.Equal(t, []string{"start"}, second.events)

	first.denyStart = false
	second.events = nil
	f.start(t)
	f.timer.InvalidateRun()
	f.timer.InvalidateRun()
	f.ticks(2)
	require.True(t, f.timer.TimerEnd(f.course))
	assert.Equal(t, []string{"start", "startPost", "invalidated", "endPost"}, second.events)
	assert.False(t, f.timer.ValidTime())

	assert.True(t, ls.Unregister(second))
	assert.False(t, ls.Unregister(second))
}

func TestPauseAndResume(t *testing.T) {
	f := newFixture(t, 0, 0, 0)
	pawn := f.host.pawn
	f.start(t)
	f.ticks(10)

	pawn.DuckAmount = 0.5
	pawn.Stamina = 20
	f.timer.Pause()
	require.True(t, f.timer.Paused())
	assert.Equal(t, state.StatePaused, f.timer.State())
	assert.Equal(t, entity.MoveTypeNone, pawn.MoveType)
	assert.Equal(t, 0.0, pawn.GravityScale)

	// Paused time doesn't count
	before := f.timer.Time()
	f.ticks(10)
	assert.Equal(t, before, f.timer.Time())

	// Too soon after pausing
	f.timer.Resume(false)
	assert.True(t, f.timer.Paused())

	pawn.DuckAmount = 0
	pawn.Stamina = 0
	f.ticks(64)
	f.timer.TogglePause()
	require.False(t, f.timer.Paused())
	assert.Equal(t, entity.MoveTypeWalk, pawn.MoveType)
	assert.Equal(t, 0.5, pawn.DuckAmount)
	assert.Equal(t, 20.0, pawn.Stamina)

	// Too soon after resuming
	f.timer.Pause()
	assert.False(t, f.timer.Paused())
}

func TestPauseRules(t *testing.T) {
	t.Run("midair during a run", func(t *testing.T) {
		f := newFixture(t, 0, 0, 0)
		f.start(t)
		f.host.pawn.SetFlag(entity.FlagOnGround, false)
		f.host.pawn.Velocity = geom.Vec(0, 0, -100)

		assert.False(t, f.timer.CanPause(true))
		assert.Contains(t, f.sounds.played, SoundError)
	})

	t.Run("midair without a run", func(t *testing.T) {
		f := newFixture(t, 0, 0, 0)
		f.host.pawn.SetFlag(entity.FlagOnGround, false)
		f.host.pawn.Velocity = geom.Vec(0, 0, -100)

		assert.True(t, f.timer.CanPause(false))
	})

	t.Run("listener veto", func(t *testing.T) {
		f := newFixture(t, 0, 0, 0)
		ls := &Listeners{}
		ls.Register(&recorder{denyPause: true})
		f.timer.listeners = ls

		f.timer.Pause()
		assert.False(t, f.timer.Paused())
	})

	t.Run("forced resume skips cooldown", func(t *testing.T) {
		f := newFixture(t, 0, 0, 0)
		f.start(t)
		f.timer.Pause()
		f.timer.Resume(true)
		assert.False(t, f.timer.Paused())
	})

	t.Run("ladder is restored", func(t *testing.T) {
		f := newFixture(t, 0, 0, 0)
		f.host.pawn.MoveType = entity.MoveTypeLadder
		f.timer.Pause()
		f.timer.Resume(false)
		assert.Equal(t, entity.MoveTypeLadder, f.host.pawn.MoveType)
	})
}

func TestEscapingPause(t *testing.T) {
	f := newFixture(t, 0, 0, 0)
	rec := &recorder{}
	ls := &Listeners{}
	ls.Register(rec)
	f.timer.listeners = ls

	f.timer.Pause()
	f.host.pawn.MoveType = entity.MoveTypeWalk
	f.timer.OnChangeMoveType(entity.MoveTypeNone)
	assert.False(t, f.timer.Paused())

	f.timer.OnJoinSpectator()
	assert.True(t, f.timer.Paused())
	f.timer.OnPlayerSpawn()
	assert.False(t, f.timer.Paused())

	assert.Equal(t, []string{"pause", "pausePost", "resumePost", "pausePost", "resumePost"}, rec.events)
}

func TestJumpValidity(t *testing.T) {
	f := newFixture(t, 0, 0, 0)

	f.timer.OnStopTouchGround()
	assert.True(t, f.timer.ValidJump())

	f.timer.OnTeleport(true)
	assert.False(t, f.timer.ValidJump())

	// Invalidated this tick, so leaving the ground doesn't count
	f.timer.OnStopTouchGround()
	assert.False(t, f.timer.ValidJump())

	f.globals.Advance()
	f.host.pawn.MoveType = entity.MoveTypeWalk
	f.timer.OnChangeMoveType(entity.MoveTypeLadder)
	assert.True(t, f.timer.ValidJump())

	f.host.pawn.MoveType = entity.MoveTypeNoclip
	f.timer.OnChangeMoveType(entity.MoveTypeWalk)
	assert.False(t, f.timer.ValidJump())
}

func TestCompareTierFallback(t *testing.T) {
	f := newFixture(t, 0, 0, 0)
	require.NoError(t, f.records.InsertRecord(60, f.course, 1, false, ""))
	f.timer.SetPreferences(CompareWR, true)

	f.timer.UpdateCurrentCompareType(NewPBKey(1, f.course.GUID))
	assert.Equal(t, CompareSR, f.timer.CompareType())

	require.NoError(t, f.records.InsertRecord(55, f.course, 1, true, ""))
	f.timer.UpdateCurrentCompareType(NewPBKey(1, f.course.GUID))
	assert.Equal(t, CompareWR, f.timer.CompareType())

	// Another mode has no data at all
	f.timer.UpdateCurrentCompareType(NewPBKey(2, f.course.GUID))
	assert.Equal(t, CompareNone, f.timer.CompareType())
}

func TestComparisonText(t *testing.T) {
	f := newFixture(t, 0, 2, 0)
	require.NoError(t, f.timer.InsertPBToCache(10, f.course, 1, true, `{"cpZoneTimes":[2,-1]}`, 0))
	f.start(t)
	require.Equal(t, CompareGPB, f.timer.CompareType())

	f.ticks(64)
	f.timer.CheckpointZoneStartTouch(f.course, 1)
	assert.Contains(t, f.chat.lines, "{grey}Checkpoint {default}1{grey}: {default}00:01.000 {grey}[Global PB {green}-00:01.000{grey}]")

	f.ticks(64 * 10)
	assert.Contains(t, f.chat.lines, "{grey}Missed Global PB {grey}({default}00:10.000{grey})")
	assert.Contains(t, f.sounds.played, SoundMissedTime)
}

func TestStyledRunsAreNotCompared(t *testing.T) {
	f := newFixture(t, 0, 1, 0)
	f.host.styles = 1
	require.NoError(t, f.timer.InsertPBToCache(10, f.course, 1, true, "", 0))
	f.start(t)
	f.chat.lines = nil

	f.timer.CheckpointZoneStartTouch(f.course, 1)
	assert.Empty(t, f.chat.lines)
}

func TestSetCompareTarget(t *testing.T) {
	f := newFixture(t, 0, 0, 0)

	f.timer.SetCompareTarget("sr")
	assert.Equal(t, CompareSR, f.timer.PreferredCompareType())

	f.timer.SetCompareTarget("bogus")
	assert.Equal(t, CompareSR, f.timer.PreferredCompareType())
	assert.Contains(t, f.chat.lines, "{grey}Usage: {default}!comparelevel <off|spb|gpb|sr|wr>")

	f.timer.SetPreferences(CompareType(42), false)
	assert.Equal(t, CompareGPB, f.timer.PreferredCompareType())
}

func TestRunMetadata(t *testing.T) {
	f := newFixture(t, 0, 2, 2)
	f.start(t)
	f.ticks(64)
	f.timer.CheckpointZoneStartTouch(f.course, 1)

	assert.JSONEq(t, `{"cpZoneTimes":[1,-1],"stageZoneTimes":[-1,-1]}`, f.timer.RunMetadata())
}

func TestRecordCacheClear(t *testing.T) {
	f := newFixture(t, 0, 0, 0)
	key := NewPBKey(1, f.course.GUID)
	require.NoError(t, f.records.InsertRecord(60, f.course, 1, false, ""))
	require.NoError(t, f.timer.InsertPBToCache(70, f.course, 1, false, "", 0))
	require.NoError(t, f.timer.InsertPBToCache(65, f.course, 1, true, "", 0))

	f.records.Clear()
	assert.Nil(t, f.records.ServerRecord(key))
	assert.Nil(t, f.timer.LocalCachedPB(f.course, 1))
	assert.NotNil(t, f.timer.GlobalCachedPB(f.course, 1))

	assert.Error(t, f.records.InsertRecord(60, f.course, 1, false, "{"))

	f.timer.Close()
	f.records.Clear()
}
