// Package trigger tracks which trigger volumes a player touches and turns
// touch transitions into timer, modifier, teleport and push effects.
//
// Every phase (start touch, touch, end touch) runs the same protocol: the
// mode and style pre-hooks decide whether it happens, the native trigger
// behavior runs, and only then do classified triggers get their semantic
// handler. Accumulated effects are applied once per tick.
package trigger

import (
	"github.com/charmbracelet/log"

	"github.com/younwookim/surftimer/internal/domain/entity"
	"github.com/younwookim/surftimer/internal/domain/geom"
	"github.com/younwookim/surftimer/internal/domain/mapping"
	"github.com/younwookim/surftimer/internal/ecs"
)

// legacyBhopWindow is how long after start touch an unclassified
// teleporting trigger_multiple still counts as a bhop trigger
const legacyBhopWindow = 0.15

// Hooks is the pre-touch capability shared by modes and styles. Each method
// reports whether the phase may run.
type Hooks interface {
	OnTriggerStartTouch(trigger ecs.EntityID) bool
	OnTriggerTouch(trigger ecs.EntityID) bool
	OnTriggerEndTouch(trigger ecs.EntityID) bool
}

// Zones receives timer zone transitions
type Zones interface {
	Running() bool
	Paused() bool
	StartZoneStartTouch(course *mapping.Course)
	StartZoneEndTouch(course *mapping.Course)
	TimerEnd(course *mapping.Course) bool
	SplitZoneStartTouch(course *mapping.Course, number int)
	CheckpointZoneStartTouch(course *mapping.Course, number int)
	StageZoneStartTouch(course *mapping.Course, number int)
	StageZoneEndTouch(course *mapping.Course, number int)
}

// Host is the player a Service acts for. Kinematic setters write through to
// the in-flight move data while movement is being processed.
type Host interface {
	Pawn() *entity.Pawn
	Alive() bool
	ConVars() *entity.ConVars
	// ModeStyleValue returns the convar baseline the active mode and styles
	// agree on.
	ModeStyleValue(name string) float64

	Origin() geom.Vector
	SetOrigin(origin geom.Vector)
	Velocity() geom.Vector
	SetVelocity(velocity geom.Vector)
	BaseVelocity() geom.Vector
	SetBaseVelocity(velocity geom.Vector)
	Angles() geom.QAngle
	SetAngles(angles geom.QAngle)

	LandingTime() float64
	Jumped() bool
	ProcessingMovement() bool
	// Teleported notifies the mode and styles of a teleport the trigger
	// service performed itself.
	Teleported(origin geom.Vector)

	// TouchHooks returns the active mode first, then styles in order.
	TouchHooks() []Hooks
	Zones() Zones

	CheckpointCount() int
	ResetCheckpoints()
	PrintChat(format string, args ...any)
}

// Service is one player's trigger state
type Service struct {
	host    Host
	world   *ecs.World
	catalog *mapping.Catalog
	globals *entity.Globals
	logger  *log.Logger

	trackers []*tracker

	modifiers          Modifiers
	lastModifiers      Modifiers
	antiBhopActive     bool
	lastAntiBhopActive bool

	lastTouchedSingleBhop      ecs.EntityID
	lastTouchedSequentialBhops sequentialBuffer
	bhopTouchCount             int

	pushEvents []*PushEvent

	preTouchOrigin   geom.Vector
	preTouchVelocity geom.Vector
}

// NewService creates a trigger service for host
func NewService(host Host, world *ecs.World, catalog *mapping.Catalog, globals *entity.Globals, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{
		host:    host,
		world:   world,
		catalog: catalog,
		globals: globals,
		logger:  logger.WithPrefix("trigger"),
	}
	s.Reset()
	return s
}

// Reset drops all touch, modifier, bhop and push state
func (s *Service) Reset() {
	s.trackers = nil
	s.modifiers = newModifiers()
	s.lastModifiers = newModifiers()
	s.antiBhopActive = false
	s.lastAntiBhopActive = false
	s.lastTouchedSingleBhop = 0
	s.lastTouchedSequentialBhops = sequentialBuffer{}
	s.bhopTouchCount = 0
	s.pushEvents = nil
}

// Modifiers returns the accumulated modifier counts of the current tick
func (s *Service) Modifiers() Modifiers {
	return s.modifiers
}

// AntiBhopActive reports whether an antibhop trigger is active this tick
func (s *Service) AntiBhopActive() bool {
	return s.antiBhopActive
}

// OnPhysicsSimulate drops trackers whose trigger vanished, running the
// semantic end touch first, and opens a new touch window.
func (s *Service) OnPhysicsSimulate() {
	s.pruneTrackers(func(t *tracker) { t.touchedThisTick = false })
}

// OnPhysicsSimulatePost refreshes the touch list and applies the tick's
// accumulated effects once.
func (s *Service) OnPhysicsSimulatePost() {
	s.UpdateTriggerTouchList()
	s.TouchAll()

	if s.modifiers.EnableSlideCount > 0 {
		s.applySlide(s.lastModifiers.EnableSlideCount == 0)
	} else if s.lastModifiers.EnableSlideCount > 0 {
		s.cancelSlide(true)
	}

	if s.antiBhopActive {
		s.modifiers.JumpFactor = 0
		s.applyAntiBhop(!s.lastAntiBhopActive)
	} else if s.lastAntiBhopActive {
		s.cancelAntiBhop(true)
	}

	s.applyJumpFactor(s.modifiers.JumpFactor != s.lastModifiers.JumpFactor)
	// Last chance this tick for pushes gated on buttons read after movement
	s.ApplyPushes()
	s.CleanupPushEvents()

	s.lastModifiers = s.modifiers
	s.lastAntiBhopActive = s.antiBhopActive
}

// OnProcessMovement resets the per-tick jump factor before movement runs
func (s *Service) OnProcessMovement() {
	s.modifiers.JumpFactor = 1
}

// OnProcessMovementPost forgets bhop memory once the player stands outside
// any bhop trigger, and applies pushes due during movement.
func (s *Service) OnProcessMovementPost() {
	pawn := s.host.Pawn()
	if pawn != nil && (pawn.OnGround() || pawn.MoveType == entity.MoveTypeLadder) && s.bhopTouchCount == 0 {
		s.ResetBhopState()
	}

	s.antiBhopActive = false
	s.modifiers.JumpFactor = 1
	s.ApplyPushes()
	s.CleanupPushEvents()
}

// OnCheckJumpButton pushes the current jump factor to the convars the jump
// reads.
func (s *Service) OnCheckJumpButton() {
	s.applyJumpFactor(false)
}

// OnStopTouchGround remembers the bhop triggers the player left from and
// queues jump-event pushes.
func (s *Service) OnStopTouchGround() {
	for _, t := range s.trackers {
		st := t.trigger
		if st == nil {
			continue
		}
		if st.Type.IsBhop() {
			if st.Type == mapping.TriggerSequentialBhop {
				s.lastTouchedSequentialBhops.Write(st.Entity)
			}
			// Any bhop type counts, so hopping between a multi and a
			// single bhop still works.
			s.lastTouchedSingleBhop = st.Entity
		}
		if p, ok := st.Push(); ok && s.host.Jumped() && p.Has(mapping.PushJumpEvent) {
			s.AddPushEvent(st)
		}
	}
}

// OnTeleport drops pending pushes that don't survive a teleport
func (s *Service) OnTeleport() {
	kept := s.pushEvents[:0]
	for _, e := range s.pushEvents {
		if p, _ := e.Source.Push(); p.CancelOnTeleport {
			continue
		}
		kept = append(kept, e)
	}
	s.pushEvents = kept
}

// ResetBhopState forgets single and sequential bhop memory
func (s *Service) ResetBhopState() {
	s.lastTouchedSingleBhop = 0
	s.lastTouchedSequentialBhops = sequentialBuffer{}
}

// InAntiPauseArea reports whether a modifier disables pausing here
func (s *Service) InAntiPauseArea() bool {
	return s.modifiers.DisablePausingCount > 0
}

// InBhopTriggers reports whether the player stands in a bhop trigger,
// including unclassified teleporting triggers touched very recently.
func (s *Service) InBhopTriggers() bool {
	for _, t := range s.trackers {
		justTouched := s.globals.CurTime-t.startTouchTime < legacyBhopWindow
		if justTouched && t.possibleLegacyBhop {
			return true
		}
	}
	return s.bhopTouchCount > 0
}

// InAntiCpArea reports whether a modifier disables checkpoints here
func (s *Service) InAntiCpArea() bool {
	return s.modifiers.DisableCheckpointsCount > 0
}

// CanTeleportToCheckpoints reports whether checkpoint teleports are allowed
func (s *Service) CanTeleportToCheckpoints() bool {
	return s.modifiers.DisableTeleportsCount <= 0
}
