package mode

import (
	"math"

	"github.com/younwookim/surftimer/internal/application/system"
	"github.com/younwookim/surftimer/internal/domain/entity"
	"github.com/younwookim/surftimer/internal/domain/geom"
	"github.com/younwookim/surftimer/internal/ecs"
)

const (
	ShortName64t = "64t"
	LongName64t  = "64tick"
)

// Ramp bug fix tuning
const (
	maxBumps                 = 4
	rampPierceDistance       = 0.0625
	rampBugThreshold         = 0.98
	rampBugVelocityThreshold = 0.95
	newRampThreshold         = 0.95

	speedNormal = 260.0

	tickTolerance = 0.001

	// Smallest velocity and distance step the engine keeps
	quantum = 0.03125

	fltEpsilon = 1.1920929e-07
)

// ConVars64t is the convar baseline of the 64 tick mode
func ConVars64t() map[string]float64 {
	return map[string]float64{
		entity.CvarAccelerate:        10,
		entity.CvarAirAccelerate:     150,
		entity.CvarAirMaxWishSpeed:   30,
		entity.CvarAutoBunnyhopping:  1,
		entity.CvarFriction:          5.2,
		entity.CvarGravity:           800,
		entity.CvarJumpImpulse:       302,
		entity.CvarJumpSpamPenalty:   0,
		entity.CvarMaxSpeed:          320,
		entity.CvarMaxVelocity:       4096,
		entity.CvarStaminaJumpCost:   0,
		entity.CvarStaminaLandCost:   0,
		entity.CvarStaminaMax:        0,
		entity.CvarStaminaRecoveryRt: 9999,
		entity.CvarStandableNormal:   0.7,
		entity.CvarWalkableNormal:    0.7,
		entity.CvarTimeBetweenDucks:  0,
	}
}

// Mode64t recreates 64 tick movement: timer zones only react on whole
// ticks, and sweeps that clip into ramp seams are replayed so the player
// keeps their speed.
type Mode64t struct {
	system.BaseHooks
	player Player

	didTPM      bool
	overrideTPM bool
	tpmValid    bool
	tpmOrigin   geom.Vector
	tpmVelocity geom.Vector

	lastValidPlane geom.Vector

	// Path of the last TryPlayerMove, for touching triggers it skipped
	airMoving         bool
	triggerFixOrigins []geom.Vector
	postMoveZSpeed    float64
}

// New64t is the Factory of the 64 tick mode
func New64t(p Player) Service {
	m := &Mode64t{player: p}
	m.Reset()
	return m
}

func (m *Mode64t) Name() string                     { return LongName64t }
func (m *Mode64t) ShortName() string                { return ShortName64t }
func (m *Mode64t) ConVarValues() map[string]float64 { return ConVars64t() }
func (m *Mode64t) Init()                            {}
func (m *Mode64t) Cleanup()                         {}
func (m *Mode64t) OnStopTouchGround()               {}

// Reset forgets all movement correction state
func (m *Mode64t) Reset() {
	m.didTPM = false
	m.overrideTPM = false
	m.tpmValid = false
	m.tpmOrigin = geom.Vector{}
	m.tpmVelocity = geom.Vector{}
	m.lastValidPlane = geom.Vector{}
	m.airMoving = false
	m.triggerFixOrigins = m.triggerFixOrigins[:0]
	m.postMoveZSpeed = 0
}

func (m *Mode64t) OnProcessMovement(mv *system.Move) {
	m.didTPM = false
	m.checkVelocityQuantization(mv)
}

func (m *Mode64t) OnPlayerMove(mv *system.Move) {
	mv.MaxSpeed = speedNormal
}

func (m *Mode64t) OnProcessMovementPost(mv *system.Move) {
	m.player.UpdateTriggerTouchList()
	m.postMoveZSpeed = mv.Velocity.Z
	if !m.didTPM {
		m.lastValidPlane = geom.Vector{}
	}
}

func (m *Mode64t) OnAirMove(mv *system.Move) {
	m.airMoving = true
	mv.MaxSpeed = speedNormal
}

func (m *Mode64t) OnAirMovePost(mv *system.Move) {
	m.airMoving = false
	mv.MaxSpeed = speedNormal
}

// checkVelocityQuantization undoes the tiny vertical speed loss the engine
// quantization causes between ticks.
func (m *Mode64t) checkVelocityQuantization(mv *system.Move) {
	diff := m.postMoveZSpeed - mv.Velocity.Z
	// Colliding with a flat floor can leave +0.0078125u/s, which breaks ladders
	if diff > 0 && diff < quantum && math.Abs(mv.Velocity.Z) > quantum {
		mv.Velocity.Z = m.postMoveZSpeed
	}
}

// OnTeleport writes teleports made during movement into the move itself
func (m *Mode64t) OnTeleport(origin, velocity *geom.Vector) {
	mv := m.player.CurrentMove()
	if mv == nil {
		return
	}
	if origin != nil {
		mv.Origin = *origin
	}
	if velocity != nil {
		mv.Velocity = *velocity
	}
}

// OnStartTouchGround keeps speed on sloped landings and touches whatever
// the player landed into.
func (m *Mode64t) OnStartTouchGround() {
	m.slopeFix()

	mv := m.player.CurrentMove()
	if mv == nil {
		return
	}
	landing := m.player.LandingOrigin()
	ground := landing.With(2, m.player.GroundPosition()-quantum)
	m.player.TouchTriggersAlongPath(landing, ground, mv.Bounds)
}

func (m *Mode64t) slopeFix() {
	mv := m.player.CurrentMove()
	if mv == nil {
		return
	}
	ground := mv.Origin.Sub(geom.Vec(0, 0, 2))
	tr := m.player.Trace(mv.Origin, ground, mv.Bounds)
	if tr.StartSolid || !tr.Hit {
		return
	}

	standable := m.player.Cvar(entity.CvarStandableNormal)
	if tr.Normal.Z < standable || tr.Normal.Z >= 1 {
		return
	}

	landing := m.player.LandingVelocity()
	clipped := system.ClipVelocity(landing, tr.Normal, 1)
	// Only when going down the slope
	if clipped.Length2D() >= landing.Length2D() {
		mv.Velocity.X = clipped.X
		mv.Velocity.Y = clipped.Y
		landing.X = clipped.X
		landing.Y = clipped.Y
		m.player.SetLandingVelocity(landing)
	}
}

// Timer zones only react on whole ticks

func (m *Mode64t) OnTriggerStartTouch(id ecs.EntityID) bool { return m.onTick(id) }
func (m *Mode64t) OnTriggerTouch(id ecs.EntityID) bool      { return m.onTick(id) }
func (m *Mode64t) OnTriggerEndTouch(id ecs.EntityID) bool   { return m.onTick(id) }

func (m *Mode64t) onTick(id ecs.EntityID) bool {
	if !m.player.IsTimerZone(id) {
		return true
	}
	return m.player.Globals().SubtickFraction() < tickTolerance
}
