// Package player ties one connected player's services together: the pawn,
// its mode and styles, the trigger service and the run timer. The Manager
// owns every player and drives them once per tick.
package player

import (
	"errors"
	"fmt"
	"math"

	"github.com/charmbracelet/log"

	"github.com/younwookim/surftimer/internal/application/mode"
	"github.com/younwookim/surftimer/internal/application/style"
	"github.com/younwookim/surftimer/internal/application/system"
	"github.com/younwookim/surftimer/internal/application/timer"
	"github.com/younwookim/surftimer/internal/application/trigger"
	"github.com/younwookim/surftimer/internal/domain/entity"
	"github.com/younwookim/surftimer/internal/domain/geom"
	"github.com/younwookim/surftimer/internal/ecs"
)

const (
	// teleportGrace and noclipGrace keep the start zone closed right after
	// a teleport or noclip
	teleportGrace = 0.05
	noclipGrace   = 0.05
	// perfWindow is how soon after landing a jump counts as a perfect bhop
	perfWindow = 0.02

	// MaxCheckpoints bounds the saved checkpoints per player
	MaxCheckpoints = 1000
)

var (
	ErrUnknownMode   = errors.New("unknown mode")
	ErrNoCheckpoints = errors.New("no checkpoints saved")
	ErrCheckpoint    = errors.New("checkpoints are not allowed here")
	ErrNoStart       = errors.New("no start position")
)

// Checkpoint is a saved practice position
type Checkpoint struct {
	Origin   geom.Vector
	Angles   geom.QAngle
	Velocity geom.Vector
	Ducked   bool
}

// Player is one connected client
type Player struct {
	id        int
	accountID uint64
	name      string
	manager   *Manager
	logger    *log.Logger

	pawn     *entity.Pawn
	convars  *entity.ConVars
	mode     mode.Service
	modeInfo mode.Info
	styles   *style.Stack
	timer    *timer.Timer
	triggers *trigger.Service

	// move is the movement being processed, nil outside ProcessMovement
	move *system.Move

	jumped          bool
	perf            bool
	landingTime     float64
	landingOrigin   geom.Vector
	landingVelocity geom.Vector

	lastTeleportTime float64
	lastNoclipTime   float64
	lastMoveType     entity.MoveType

	checkpoints []Checkpoint
	currentCP   int
}

func newPlayer(m *Manager, id int, name string, accountID uint64, origin geom.Vector) *Player {
	p := &Player{
		id:               id,
		accountID:        accountID,
		name:             name,
		manager:          m,
		logger:           m.logger.With("player", name),
		pawn:             entity.NewPawn(origin),
		convars:          entity.NewConVars(),
		lastTeleportTime: math.Inf(-1),
		lastNoclipTime:   math.Inf(-1),
		lastMoveType:     entity.MoveTypeWalk,
	}
	p.styles = style.NewStack(m.styles, p)
	p.triggers = trigger.NewService(p, m.world, m.catalog, m.globals, p.logger)
	p.timer = timer.New(p, timer.Options{
		Globals:   m.globals,
		Catalog:   m.catalog,
		Records:   m.records,
		Listeners: m.listeners,
		Printer:   printer{p},
		Sounds:    m.sounds,
		Logger:    p.logger,
	})
	return p
}

func (p *Player) ID() int                    { return p.id }
func (p *Player) AccountID() uint64          { return p.accountID }
func (p *Player) Name() string               { return p.name }
func (p *Player) Pawn() *entity.Pawn         { return p.pawn }
func (p *Player) Alive() bool                { return p.pawn.Alive }
func (p *Player) Bot() bool                  { return p.pawn.Bot }
func (p *Player) ConVars() *entity.ConVars   { return p.convars }
func (p *Player) Globals() *entity.Globals   { return p.manager.globals }
func (p *Player) Timer() *timer.Timer        { return p.timer }
func (p *Player) Triggers() *trigger.Service { return p.triggers }
func (p *Player) Styles() *style.Stack       { return p.styles }
func (p *Player) Mode() mode.Service         { return p.mode }
func (p *Player) CurrentMove() *system.Move  { return p.move }
func (p *Player) ProcessingMovement() bool   { return p.move != nil }

// ModeInfo returns the registry's current description of the active mode,
// so database IDs assigned after the mode was picked are seen.
func (p *Player) ModeInfo() mode.Info {
	if info, ok := p.manager.modes.InfoByID(p.modeInfo.ID); ok {
		return info
	}
	return p.modeInfo
}

// StyleInfos describes the active styles in order
func (p *Player) StyleInfos() []style.Info {
	out := make([]style.Info, 0, p.styles.Len())
	for _, s := range p.styles.Services() {
		if info, ok := p.manager.styles.Info(s.Name()); ok {
			out = append(out, info)
		}
	}
	return out
}

// ModeStyleValue is the value the mode and styles agree on for a convar.
// The last style that tweaks it wins over the mode.
func (p *Player) ModeStyleValue(name string) float64 {
	if v, ok := p.styles.TweakedConVar(name); ok {
		return v
	}
	return p.modeInfo.ConVars[name]
}

// Cvar resolves a convar for movement: trigger overrides first, then the
// mode and styles.
func (p *Player) Cvar(name string) float64 {
	if v, ok := p.convars.Get(name); ok {
		return v
	}
	return p.ModeStyleValue(name)
}

func (p *Player) Origin() geom.Vector {
	if p.move != nil {
		return p.move.Origin
	}
	return p.pawn.Origin
}

func (p *Player) SetOrigin(origin geom.Vector) {
	if p.move != nil {
		p.move.Origin = origin
	}
	p.pawn.Origin = origin
}

func (p *Player) Velocity() geom.Vector {
	if p.move != nil {
		return p.move.Velocity
	}
	return p.pawn.Velocity
}

func (p *Player) SetVelocity(velocity geom.Vector) {
	if p.move != nil {
		p.move.Velocity = velocity
	}
	p.pawn.Velocity = velocity
}

func (p *Player) BaseVelocity() geom.Vector { return p.pawn.BaseVelocity }

func (p *Player) SetBaseVelocity(velocity geom.Vector) { p.pawn.BaseVelocity = velocity }

func (p *Player) Angles() geom.QAngle {
	if p.move != nil {
		return p.move.Angles
	}
	return p.pawn.Angles
}

func (p *Player) SetAngles(angles geom.QAngle) {
	if p.move != nil {
		p.move.Angles = angles
	}
	p.pawn.Angles = angles
}

func (p *Player) LandingTime() float64             { return p.landingTime }
func (p *Player) LandingOrigin() geom.Vector       { return p.landingOrigin }
func (p *Player) LandingVelocity() geom.Vector     { return p.landingVelocity }
func (p *Player) SetLandingVelocity(v geom.Vector) { p.landingVelocity = v }
func (p *Player) Jumped() bool                     { return p.jumped }
func (p *Player) InPerf() bool                     { return p.perf }

// GroundPosition is the height the player stands at
func (p *Player) GroundPosition() float64 {
	return p.Origin().Z
}

func (p *Player) Trace(start, end geom.Vector, bounds geom.BBox) ecs.TraceResult {
	return p.manager.physics.Trace(start, end, bounds)
}

func (p *Player) IsTimerZone(id ecs.EntityID) bool {
	return p.manager.catalog.IsTimerZone(id)
}

func (p *Player) TouchTriggersAlongPath(start, end geom.Vector, bounds geom.BBox) {
	p.triggers.TouchTriggersAlongPath(start, end, bounds)
}

func (p *Player) UpdateTriggerTouchList() {
	p.triggers.UpdateTriggerTouchList()
}

// TouchHooks returns the mode followed by the styles
func (p *Player) TouchHooks() []trigger.Hooks {
	hooks := make([]trigger.Hooks, 0, 1+p.styles.Len())
	if p.mode != nil {
		hooks = append(hooks, p.mode)
	}
	for _, s := range p.styles.Services() {
		hooks = append(hooks, s)
	}
	return hooks
}

func (p *Player) movementHooks() system.HookList {
	hooks := make(system.HookList, 0, 2+p.styles.Len())
	if p.mode != nil {
		hooks = append(hooks, p.mode)
	}
	for _, s := range p.styles.Services() {
		hooks = append(hooks, s)
	}
	return append(hooks, jumpHook{player: p})
}

func (p *Player) Zones() trigger.Zones { return p.timer }

// Timer host

func (p *Player) JustTeleported() bool {
	return p.manager.globals.CurTime < p.lastTeleportTime+teleportGrace
}

func (p *Player) JustNoclipped() bool {
	return p.manager.globals.CurTime < p.lastNoclipTime+noclipGrace
}

func (p *Player) ModeID() uint32   { return p.modeInfo.ID }
func (p *Player) ModeName() string { return p.modeInfo.LongName }
func (p *Player) StyleCount() int  { return p.styles.Len() }

func (p *Player) AnnounceRecord(courseGUID uint32, time float64) {
	p.manager.announcer.Announce(p, courseGUID, time)
}

// TimerStop stops the run with the stop sound
func (p *Player) TimerStop() {
	p.timer.TimerStop(true)
}

// PrintChat shows a formatted chat line to the player
func (p *Player) PrintChat(format string, args ...any) {
	p.print(fmt.Sprintf(format, args...))
}

func (p *Player) print(msg string) {
	p.manager.chat.Chat(p, msg)
}

// printer hands the timer a plain line printer
type printer struct{ p *Player }

func (pr printer) PrintChat(msg string) { pr.p.print(msg) }

// jumpHook lets the trigger service set the jump convars right before the
// jump is checked
type jumpHook struct {
	system.BaseHooks
	player *Player
}

func (h jumpHook) OnCheckJumpButton(*system.Move) {
	h.player.triggers.OnCheckJumpButton()
}

// Checkpoints

func (p *Player) CheckpointCount() int { return len(p.checkpoints) }

func (p *Player) ResetCheckpoints() {
	p.checkpoints = nil
	p.currentCP = 0
}

// Teleport moves the player. Nil parts are left alone. The mode, styles,
// timer and triggers hear about it before it is applied.
func (p *Player) Teleport(origin *geom.Vector, angles *geom.QAngle, velocity *geom.Vector) {
	p.notifyTeleport(origin, velocity)
	if origin != nil {
		p.SetOrigin(*origin)
	}
	if angles != nil {
		p.SetAngles(*angles)
	}
	if velocity != nil {
		p.SetVelocity(*velocity)
	}
}

// Teleported is called by the trigger service after it moved the player
func (p *Player) Teleported(origin geom.Vector) {
	p.notifyTeleport(&origin, nil)
}

func (p *Player) notifyTeleport(origin, velocity *geom.Vector) {
	if p.mode != nil {
		p.mode.OnTeleport(origin, velocity)
	}
	for _, s := range p.styles.Services() {
		s.OnTeleport(origin, velocity)
	}
	p.timer.OnTeleport(origin != nil || velocity != nil)
	p.triggers.OnTeleport()
	p.lastTeleportTime = p.manager.globals.CurTime
}

// Tick runs one simulation tick of cmd
func (p *Player) Tick(cmd system.Command) {
	p.triggers.OnPhysicsSimulate()

	p.pawn.OldButtons = p.pawn.Buttons
	p.pawn.Buttons = cmd.Buttons
	if p.pawn.Alive {
		p.processMovement(cmd)
	}

	p.triggers.OnPhysicsSimulatePost()
	p.timer.OnPhysicsSimulatePost()
	p.checkMoveType()
}

func (p *Player) processMovement(cmd system.Command) {
	pawn := p.pawn
	wasOnGround := pawn.OnGround()

	p.move = system.NewMove(pawn, cmd)
	p.triggers.OnProcessMovement()
	p.manager.physics.ProcessMovement(pawn, p.move, p, p.movementHooks())
	p.jumped = p.move.Jumped

	if pawn.Flags&entity.FlagBaseVelocity != 0 {
		p.move.Velocity = p.move.Velocity.Add(pawn.BaseVelocity)
		pawn.BaseVelocity = geom.Vector{}
		pawn.SetFlag(entity.FlagBaseVelocity, false)
	}

	now := p.manager.globals.CurTime
	switch {
	case !wasOnGround && pawn.OnGround():
		p.landingTime = now
		p.landingOrigin = p.move.LandingOrigin
		p.landingVelocity = p.move.LandingVelocity
		if !p.move.Landed {
			p.landingOrigin = p.move.Origin
			p.landingVelocity = p.move.Velocity
		}
		p.perf = false
		p.mode.OnStartTouchGround()
		for _, s := range p.styles.Services() {
			s.OnStartTouchGround()
		}
		p.timer.OnStartTouchGround()

	case wasOnGround && !pawn.OnGround():
		p.perf = p.jumped && now-p.landingTime <= perfWindow
		p.triggers.OnStopTouchGround()
		p.mode.OnStopTouchGround()
		for _, s := range p.styles.Services() {
			s.OnStopTouchGround()
		}
		p.timer.OnStopTouchGround()
	}

	p.triggers.OnProcessMovementPost()
	p.move.Finish(pawn)
	p.move = nil
}

// checkMoveType reports move type changes to the timer and tracks noclip
func (p *Player) checkMoveType() {
	current := p.pawn.MoveType
	if current == entity.MoveTypeNoclip || p.lastMoveType == entity.MoveTypeNoclip {
		p.lastNoclipTime = p.manager.globals.CurTime
	}
	if current == p.lastMoveType {
		return
	}
	old := p.lastMoveType
	p.lastMoveType = current
	p.timer.OnChangeMoveType(old)
}

// SetMode switches to the named mode. The running timer is stopped and the
// convar overrides are dropped.
func (p *Player) SetMode(name string) error {
	svc, info, ok := p.manager.modes.Create(name, p)
	if !ok {
		p.PrintChat("Mode %s is not available.", name)
		return fmt.Errorf("failed to set mode %q: %w", name, ErrUnknownMode)
	}
	if p.mode != nil {
		if p.modeInfo.ID == info.ID {
			return nil
		}
		p.mode.Cleanup()
		p.timer.TimerStop(true)
	}
	p.mode = svc
	p.modeInfo = info
	p.convars.Reset()
	p.mode.Init()
	p.logger.Debug("mode set", "mode", info.ShortName)
	return nil
}

func (p *Player) AddStyle(name string) error    { return p.styles.Add(name, false) }
func (p *Player) RemoveStyle(name string) error { return p.styles.Remove(name, false) }
func (p *Player) ToggleStyle(name string) error { return p.styles.Toggle(name, false) }

// ClearStyles drops every style and stops the run
func (p *Player) ClearStyles() {
	if p.styles.Len() > 0 {
		p.timer.TimerStop(true)
	}
	p.styles.Clear(false)
}

// SaveCheckpoint stores the current position
func (p *Player) SaveCheckpoint() error {
	if !p.pawn.Alive {
		return ErrCheckpoint
	}
	if p.triggers.InAntiCpArea() {
		p.PrintChat("{grey}You can't save a checkpoint here.")
		return ErrCheckpoint
	}
	if course := p.timer.Course(); p.timer.Running() && course != nil && course.DisableCheckpoints {
		p.PrintChat("{grey}Checkpoints are disabled on this course.")
		return ErrCheckpoint
	}

	if len(p.checkpoints) >= MaxCheckpoints {
		p.checkpoints = p.checkpoints[1:]
	}
	p.checkpoints = append(p.checkpoints, Checkpoint{
		Origin:   p.pawn.Origin,
		Angles:   p.pawn.Angles,
		Velocity: p.pawn.Velocity,
		Ducked:   p.pawn.Flags&entity.FlagDucking != 0,
	})
	p.currentCP = len(p.checkpoints) - 1
	p.PrintChat("{grey}Checkpoint ({default}#%d{grey})", len(p.checkpoints))
	return nil
}

// TeleportToCheckpoint returns to the current checkpoint. Using checkpoints
// is practice, so the run is stopped.
func (p *Player) TeleportToCheckpoint() error {
	if len(p.checkpoints) == 0 {
		p.PrintChat("{grey}You have no checkpoints.")
		return ErrNoCheckpoints
	}
	if !p.pawn.Alive || !p.triggers.CanTeleportToCheckpoints() {
		p.PrintChat("{grey}You can't teleport to checkpoints here.")
		return ErrCheckpoint
	}

	p.timer.TimerStop(true)
	cp := p.checkpoints[p.currentCP]
	p.Teleport(&cp.Origin, &cp.Angles, &cp.Velocity)
	p.pawn.SetFlag(entity.FlagDucking, cp.Ducked)
	if cp.Ducked {
		p.pawn.Bounds = entity.DuckedBounds
		p.pawn.DuckAmount = 1
	} else {
		p.pawn.Bounds = entity.DefaultBounds
		p.pawn.DuckAmount = 0
	}
	return nil
}

// PrevCheckpoint steps back one checkpoint and teleports there
func (p *Player) PrevCheckpoint() error {
	if p.currentCP > 0 {
		p.currentCP--
	}
	return p.TeleportToCheckpoint()
}

// NextCheckpoint steps forward one checkpoint and teleports there
func (p *Player) NextCheckpoint() error {
	if p.currentCP < len(p.checkpoints)-1 {
		p.currentCP++
	}
	return p.TeleportToCheckpoint()
}

// Restart puts the player back at the start of their course, or of the
// first course when no run was started.
func (p *Player) Restart() error {
	course := p.timer.Course()
	if course == nil || !course.HasStartPosition {
		course = p.manager.catalog.FirstCourse()
	}
	if course == nil || !course.HasStartPosition {
		p.PrintChat("{grey}This map has no start position.")
		return ErrNoStart
	}

	p.timer.OnTeleportToStart()
	if p.timer.Paused() {
		p.timer.Resume(true)
	}
	if p.pawn.MoveType != entity.MoveTypeWalk {
		p.pawn.MoveType = entity.MoveTypeWalk
	}
	origin, angles := course.StartPosition, course.StartAngles
	var stop geom.Vector
	p.Teleport(&origin, &angles, &stop)
	return nil
}

// Spawn brings the player back to life at origin
func (p *Player) Spawn(origin geom.Vector) {
	p.pawn.Alive = true
	p.pawn.MoveType = entity.MoveTypeWalk
	p.pawn.Bounds = entity.DefaultBounds
	p.timer.OnPlayerSpawn()
	var stop geom.Vector
	p.Teleport(&origin, nil, &stop)
}

// Kill ends the player's life and every touch
func (p *Player) Kill() {
	p.timer.OnPlayerDeath()
	p.pawn.Alive = false
	p.triggers.EndTouchAll()
}

// JoinSpectator leaves the world as an observer
func (p *Player) JoinSpectator() {
	p.timer.OnJoinSpectator()
	p.pawn.MoveType = entity.MoveTypeObserver
	p.triggers.EndTouchAll()
}

// ToggleNoclip flies through walls. Noclipping ends the run.
func (p *Player) ToggleNoclip() {
	if p.pawn.MoveType == entity.MoveTypeNoclip {
		p.pawn.MoveType = entity.MoveTypeWalk
		return
	}
	p.timer.TimerStop(true)
	p.pawn.MoveType = entity.MoveTypeNoclip
	p.pawn.SetFlag(entity.FlagOnGround, false)
}

// TogglePause pauses or resumes the run
func (p *Player) TogglePause() {
	p.timer.TogglePause()
}

// pauseGuard refuses pauses inside anti-pause areas
type pauseGuard struct {
	timer.BaseListener
}

func (pauseGuard) OnPause(t *timer.Timer) bool {
	p, ok := t.Host().(*Player)
	if !ok {
		return true
	}
	return !p.triggers.InAntiPauseArea()
}
