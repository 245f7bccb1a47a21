// Package timer is the per-player run timer. It is driven by zone touches
// from the trigger service and by the player's tick, and it owns the
// player's PB cache and comparison preferences.
package timer

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/younwookim/surftimer/internal/application/state"
	"github.com/younwookim/surftimer/internal/domain/entity"
	"github.com/younwookim/surftimer/internal/domain/mapping"
)

const (
	// MinGroundTime is how long a player has to stand before a start counts
	MinGroundTime = 0.05
	// PauseCooldown separates a pause from the next resume and vice versa
	PauseCooldown = 1.0
	// MaxModeNameLength bounds the mode name stored with a time
	MaxModeNameLength = 128

	epsilon = 1e-6
)

// Host is the player a Timer runs for
type Host interface {
	Pawn() *entity.Pawn
	Alive() bool
	Bot() bool
	LandingTime() float64
	JustTeleported() bool
	JustNoclipped() bool
	InPerf() bool

	ModeID() uint32
	ModeName() string
	StyleCount() int

	// AnnounceRecord hands a finished run over to persistence
	AnnounceRecord(courseGUID uint32, time float64)
}

// Options are the shared collaborators of every timer
type Options struct {
	Globals   *entity.Globals
	Catalog   *mapping.Catalog
	Records   *RecordCache
	Listeners *Listeners
	Printer   Printer
	Sounds    SoundSink
	Logger    *log.Logger
}

// Timer is one player's run timer
type Timer struct {
	host      Host
	globals   *entity.Globals
	catalog   *mapping.Catalog
	records   *RecordCache
	listeners *Listeners
	printer   Printer
	sounds    SoundSink
	logger    *log.Logger

	running           bool
	validTime         bool
	currentTime       float64
	currentCourseGUID uint32
	inStartZone       bool

	lastEndTime             float64
	lastFalseEndTime        float64
	lastStartSoundTime      float64
	lastMissedTimeSoundTime float64

	lastSplit      int
	splitZoneTimes []float64

	lastCheckpoint     int
	reachedCheckpoints int
	cpZoneTimes        []float64

	currentStage       int
	stageZoneTimes     []float64
	stageEndTouchTimes []float64

	localPBs  map[PBKey]*PBData
	globalPBs map[PBKey]*PBData

	preferredCompare   CompareType
	currentCompare     CompareType
	announceMissedTime bool

	validJump          bool
	lastInvalidateTime float64

	paused                      bool
	pausedOnLadder              bool
	lastPauseTime               float64
	hasPausedInThisRun          bool
	lastResumeTime              float64
	hasResumedInThisRun         bool
	lastDuckValue               float64
	lastStaminaValue            float64
	touchedGroundSinceStartZone bool
	playTimerStopSound          bool
}

// New creates a timer for host and registers it with the record cache
func New(host Host, opts Options) *Timer {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Printer == nil {
		opts.Printer = discardPrinter{}
	}
	if opts.Sounds == nil {
		opts.Sounds = silentSink{}
	}
	if opts.Records == nil {
		opts.Records = NewRecordCache()
	}
	t := &Timer{
		host:             host,
		globals:          opts.Globals,
		catalog:          opts.Catalog,
		records:          opts.Records,
		listeners:        opts.Listeners,
		printer:          opts.Printer,
		sounds:           opts.Sounds,
		logger:           opts.Logger.WithPrefix("timer"),
		localPBs:         make(map[PBKey]*PBData),
		globalPBs:        make(map[PBKey]*PBData),
		preferredCompare: CompareGPB,
		currentCompare:   CompareGPB,
	}
	t.Reset()
	t.records.register(t)
	return t
}

// Close detaches the timer from the record cache
func (t *Timer) Close() {
	t.records.unregister(t)
}

// Reset returns the timer to a fresh idle state. Caches and the compare
// preference survive.
func (t *Timer) Reset() {
	t.running = false
	t.validTime = false
	t.currentTime = 0
	t.currentCourseGUID = 0
	t.inStartZone = false
	t.lastEndTime = 0
	t.lastFalseEndTime = 0
	t.lastStartSoundTime = 0
	t.lastMissedTimeSoundTime = 0
	t.currentStage = 0
	t.paused = false
	t.pausedOnLadder = false
	t.lastPauseTime = 0
	t.hasPausedInThisRun = false
	t.lastResumeTime = 0
	t.hasResumedInThisRun = false
	t.lastDuckValue = 0
	t.lastStaminaValue = 0
	t.validJump = false
	t.lastInvalidateTime = 0
	t.touchedGroundSinceStartZone = false
	t.playTimerStopSound = true
}

// Host returns the player the timer runs for
func (t *Timer) Host() Host { return t.host }

// Running reports whether a run is in progress
func (t *Timer) Running() bool { return t.running }

// Paused reports whether the player is paused
func (t *Timer) Paused() bool { return t.paused }

// State returns the run state
func (t *Timer) State() state.RunState { return state.Of(t.running, t.paused) }

// Time returns the current run time in seconds
func (t *Timer) Time() float64 { return t.currentTime }

// ValidTime reports whether the run is still eligible for records
func (t *Timer) ValidTime() bool { return t.validTime }

// ValidJump reports whether the current airtime started from a valid state
func (t *Timer) ValidJump() bool { return t.validJump }

// InStartZone reports whether the player stands in a start zone
func (t *Timer) InStartZone() bool { return t.inStartZone }

// CurrentStage returns the stage the run is on, 0 without stages
func (t *Timer) CurrentStage() int { return t.currentStage }

// ReachedCheckpoints returns how many checkpoint zones the run has reached
func (t *Timer) ReachedCheckpoints() int { return t.reachedCheckpoints }

// CheckpointTime returns the recorded time of checkpoint n, or -1
func (t *Timer) CheckpointTime(n int) float64 { return timeAt(t.cpZoneTimes, n-1) }

// SplitTime returns the recorded time of split n, or -1
func (t *Timer) SplitTime(n int) float64 { return timeAt(t.splitZoneTimes, n-1) }

// StageTime returns the recorded split time of stage n, or -1
func (t *Timer) StageTime(n int) float64 { return timeAt(t.stageZoneTimes, n-1) }

// CompareType returns the tier the current run is compared against
func (t *Timer) CompareType() CompareType { return t.currentCompare }

// PreferredCompareType returns the player's comparison ceiling
func (t *Timer) PreferredCompareType() CompareType { return t.preferredCompare }

// LastFalseEndTime is when the player last touched an end zone without a
// matching run
func (t *Timer) LastFalseEndTime() float64 { return t.lastFalseEndTime }

// CourseGUID returns the GUID of the current or last course
func (t *Timer) CourseGUID() uint32 { return t.currentCourseGUID }

// Course resolves the current course, or nil once it's gone
func (t *Timer) Course() *mapping.Course {
	if t.catalog == nil || t.currentCourseGUID == 0 {
		return nil
	}
	return t.catalog.Course(t.currentCourseGUID)
}

func (t *Timer) printf(format string, args ...any) {
	t.printer.PrintChat(fmt.Sprintf(format, args...))
}

func validMoveType(m entity.MoveType) bool {
	switch m {
	case entity.MoveTypeWalk, entity.MoveTypeLadder, entity.MoveTypeNone, entity.MoveTypeObserver:
		return true
	}
	return false
}

func (t *Timer) hasValidMoveType() bool {
	return validMoveType(t.host.Pawn().MoveType)
}

func (t *Timer) justLanded() bool {
	return t.globals.CurTime-t.host.LandingTime() < MinGroundTime
}

func (t *Timer) justStartedTimer() bool {
	return t.running && t.currentTime < epsilon
}

// StartZoneStartTouch stops any run and arms the start
func (t *Timer) StartZoneStartTouch(course *mapping.Course) {
	t.touchedGroundSinceStartZone = t.host.Pawn().OnGround()
	t.TimerStop(false)
	t.inStartZone = true
}

// StartZoneEndTouch starts the run when the player leaves the start zone,
// provided they touched the ground inside it.
func (t *Timer) StartZoneEndTouch(course *mapping.Course) {
	if t.touchedGroundSinceStartZone {
		t.TimerStart(course, true)
	}
	t.inStartZone = false
}

func (t *Timer) onCourse(course *mapping.Course) bool {
	return t.running && course != nil && course.GUID == t.currentCourseGUID
}

// SplitZoneStartTouch records the first touch of split zone n
func (t *Timer) SplitZoneStartTouch(course *mapping.Course, n int) {
	if !t.onCourse(course) || n < 1 || n > len(t.splitZoneTimes) {
		return
	}
	if t.splitZoneTimes[n-1] >= 0 {
		return
	}
	t.sounds.PlaySound(SoundReachSplit)
	t.splitZoneTimes[n-1] = t.currentTime
	t.showSplitText(n)
	t.lastSplit = n
}

// CheckpointZoneStartTouch records the first touch of checkpoint zone n.
// Touching it again keeps the first time.
func (t *Timer) CheckpointZoneStartTouch(course *mapping.Course, n int) {
	if !t.onCourse(course) || n < 1 || n > len(t.cpZoneTimes) {
		return
	}
	if t.cpZoneTimes[n-1] >= 0 {
		return
	}
	t.sounds.PlaySound(SoundReachCheckpoint)
	t.cpZoneTimes[n-1] = t.currentTime
	t.showCheckpointText(n)
	t.lastCheckpoint = n
	t.reachedCheckpoints++
}

// StageZoneStartTouch advances the run to stage n if n is the next stage.
// Skipping ahead is refused and re-entering the current stage does nothing.
func (t *Timer) StageZoneStartTouch(course *mapping.Course, n int) {
	if !t.onCourse(course) || n < 1 {
		return
	}

	switch {
	case n > t.currentStage+1:
		t.sounds.PlaySound(SoundMissedZone)
		t.printf("{grey}You missed stage {default}%d{grey}!", t.currentStage+1)
	case n == t.currentStage+1:
		idx := t.currentStage - 1
		if idx < 0 || idx >= len(t.stageZoneTimes) {
			return
		}
		t.stageZoneTimes[idx] = t.currentTime - t.stageEndTouchTimes[idx]
		t.sounds.PlaySound(SoundReachStage)
		t.showStageText()
		t.currentStage++
	}
}

// StageZoneEndTouch marks when the player left the current stage's zone.
// The next stage's split is measured from here.
func (t *Timer) StageZoneEndTouch(course *mapping.Course, n int) {
	if !t.onCourse(course) {
		return
	}
	if idx := t.currentStage - 1; idx >= 0 && idx < len(t.stageEndTouchTimes) {
		t.stageEndTouchTimes[idx] = t.currentTime
	}
}

// TimerStart starts a run on course. It refuses when the start would be
// exploitable or a listener vetoes it.
func (t *Timer) TimerStart(course *mapping.Course, playSound bool) bool {
	pawn := t.host.Pawn()
	if pawn == nil || course == nil ||
		!t.host.Alive() ||
		t.justStartedTimer() ||
		t.host.JustTeleported() ||
		t.host.InPerf() ||
		t.host.JustNoclipped() ||
		!t.hasValidMoveType() ||
		t.justLanded() ||
		(t.running && course.GUID == t.currentCourseGUID) ||
		(!pawn.OnGround() && !t.validJump) {
		return false
	}
	if len(t.host.ModeName()) > MaxModeNameLength {
		t.logger.Warn("timer start failed, mode name is too long", "mode", t.host.ModeName())
		return false
	}
	if !t.listeners.allow(func(l Listener) bool { return l.OnTimerStart(t, course.GUID) }) {
		return false
	}

	t.currentTime = 0
	t.running = true
	t.reachedCheckpoints = 0
	t.lastCheckpoint = 0
	t.lastSplit = 0
	t.splitZoneTimes = filled(course.SplitCount)
	t.cpZoneTimes = filled(course.CheckpointCount)
	t.stageZoneTimes = filled(course.StageCount)
	t.stageEndTouchTimes = filled(course.StageCount)
	if course.StageCount > 0 {
		t.currentStage = 1
		t.stageEndTouchTimes[0] = t.currentTime
	} else {
		t.currentStage = 0
	}

	t.currentCourseGUID = course.GUID
	t.validTime = true
	t.announceMissedTime = true
	t.UpdateCurrentCompareType(t.currentKey())

	if playSound {
		t.playStartSound()
	}
	t.printer.PrintChat(t.StartSpeedText())

	t.listeners.each(func(l Listener) { l.OnTimerStartPost(t, course.GUID) })
	return true
}

// TimerEnd finishes the run on course. The run must have reached the last
// stage and every checkpoint. The final time includes the tick in which the
// end zone was touched.
func (t *Timer) TimerEnd(course *mapping.Course) bool {
	if !t.host.Alive() || course == nil {
		return false
	}

	if !t.onCourse(course) {
		t.sounds.PlaySound(SoundFalseEnd)
		t.lastFalseEndTime = t.globals.CurTime
		return false
	}

	if course.StageCount > 0 && t.currentStage-1 != course.StageCount {
		t.sounds.PlaySound(SoundMissedZone)
		t.printf("{grey}Can't finish the run, you missed stage {default}%d{grey}!", t.currentStage+1)
		return false
	}

	if t.reachedCheckpoints != course.CheckpointCount {
		t.sounds.PlaySound(SoundMissedZone)
		if missed := course.CheckpointCount - t.reachedCheckpoints; missed == 1 {
			t.printf("{grey}Can't finish the run, you missed a checkpoint zone!")
		} else {
			t.printf("{grey}Can't finish the run, you missed {default}%d{grey} checkpoint zones!", missed)
		}
		return false
	}

	time := t.currentTime + t.globals.FrameTime
	guid := t.currentCourseGUID
	if !t.listeners.allow(func(l Listener) bool { return l.OnTimerEnd(t, guid, time) }) {
		return false
	}

	t.currentTime = time
	t.running = false
	t.lastEndTime = t.globals.CurTime
	t.sounds.PlaySound(SoundEnd)

	if !t.host.Bot() {
		t.host.AnnounceRecord(guid, time)
	}

	t.listeners.each(func(l Listener) { l.OnTimerEndPost(t, guid, time) })
	t.currentStage = 0
	return true
}

// TimerStop abandons the run. It returns false if nothing was running.
func (t *Timer) TimerStop(playSound bool) bool {
	if !t.running {
		return false
	}
	t.running = false
	if playSound {
		t.playStopSound()
	}
	t.listeners.each(func(l Listener) { l.OnTimerStopped(t, t.currentCourseGUID) })
	t.currentStage = 0
	return true
}

// InvalidateRun marks the run as ineligible for records
func (t *Timer) InvalidateRun() {
	if !t.validTime {
		return
	}
	t.validTime = false
	t.listeners.each(func(l Listener) { l.OnTimerInvalidated(t) })
}

// InvalidateJump marks the current airtime as invalid for starting a run
func (t *Timer) InvalidateJump() {
	t.validJump = false
	t.lastInvalidateTime = t.globals.CurTime
}

// OnPhysicsSimulatePost advances the run by one tick
func (t *Timer) OnPhysicsSimulatePost() {
	if !t.host.Alive() || !t.running || t.paused {
		return
	}
	t.currentTime += entity.TickInterval
	t.CheckMissedTime()
}

// OnStartTouchGround arms the start zone
func (t *Timer) OnStartTouchGround() {
	t.touchedGroundSinceStartZone = true
}

// OnStopTouchGround validates the jump unless it was invalidated this tick
func (t *Timer) OnStopTouchGround() {
	if t.hasValidMoveType() && t.lastInvalidateTime != t.globals.CurTime {
		t.validJump = true
		return
	}
	t.InvalidateJump()
}

// OnChangeMoveType reacts to the pawn's move type changing from old. Only
// a ladder dismount keeps the jump valid. Leaving MOVETYPE_NONE while
// paused resumes.
func (t *Timer) OnChangeMoveType(old entity.MoveType) {
	current := t.host.Pawn().MoveType
	if old == entity.MoveTypeLadder && current == entity.MoveTypeWalk && t.lastInvalidateTime != t.globals.CurTime {
		t.validJump = true
	} else {
		t.InvalidateJump()
	}

	if !t.paused || current == entity.MoveTypeNone {
		return
	}
	t.paused = false
	t.markResumed()
	t.listeners.each(func(l Listener) { l.OnResumePost(t) })
}

// OnTeleport invalidates the jump when position or velocity changed
func (t *Timer) OnTeleport(moved bool) {
	if moved {
		t.InvalidateJump()
	}
}

// OnTeleportToStart stops the run
func (t *Timer) OnTeleportToStart() { t.TimerStop(true) }

// OnClientDisconnect stops the run
func (t *Timer) OnClientDisconnect() { t.TimerStop(true) }

// OnPlayerDeath stops the run
func (t *Timer) OnPlayerDeath() { t.TimerStop(true) }

// OnPlayerSpawn ends a pause the player left by respawning
func (t *Timer) OnPlayerSpawn() {
	if t.host.Pawn() == nil || !t.paused {
		return
	}
	t.paused = false
	t.markResumed()
	t.restoreMoveState()
	t.listeners.each(func(l Listener) { l.OnResumePost(t) })
}

// OnJoinSpectator pauses without the usual checks
func (t *Timer) OnJoinSpectator() {
	t.paused = true
	t.markPaused()
	t.listeners.each(func(l Listener) { l.OnPausePost(t) })
}

// SetCompareTarget parses a compare level and makes it the preferred
// ceiling. Unknown input prints usage.
func (t *Timer) SetCompareTarget(s string) {
	ct, ok := ParseCompareType(s)
	if !ok {
		t.printf("{grey}Usage: {default}!comparelevel <off|spb|gpb|sr|wr>")
		return
	}
	if ct == CompareNone {
		t.printf("{grey}Comparison disabled.")
	} else {
		t.printf("{grey}Now comparing against {default}%s{grey}.", ct)
	}
	t.preferredCompare = ct
	if t.Course() != nil {
		t.UpdateCurrentCompareType(t.currentKey())
	}
}

// SetPreferences applies stored preferences. Out of range compare types
// fall back to global PB.
func (t *Timer) SetPreferences(compare CompareType, stopSound bool) {
	if compare < CompareNone || compare >= compareTypeCount {
		compare = CompareGPB
	}
	t.preferredCompare = compare
	t.playTimerStopSound = stopSound
}

// ToggleTimerStopSound flips whether stopping the run plays a sound
func (t *Timer) ToggleTimerStopSound() bool {
	t.playTimerStopSound = !t.playTimerStopSound
	if t.playTimerStopSound {
		t.printf("{grey}Timer stop sound enabled.")
	} else {
		t.printf("{grey}Timer stop sound disabled.")
	}
	return t.playTimerStopSound
}
