package system

import (
	"math"

	"github.com/younwookim/surftimer/internal/domain/entity"
	"github.com/younwookim/surftimer/internal/domain/geom"
	"github.com/younwookim/surftimer/internal/ecs"
)

const (
	maxBumps        = 4
	MaxClipPlanes   = 5
	stopSpeed       = 80.0
	duckSpeed       = 8.0
	duckSpeedScale  = 0.34
	noclipSpeed     = 2.0
	ladderSpeed     = 200.0
	stepSize        = 18.0
	groundCheckDist = 2.0
	// Moving up faster than this leaves the ground
	nonJumpVelocity = 140.0
)

// Settings resolves the effective value of a movement convar
type Settings interface {
	Cvar(name string) float64
}

// Move is the in-flight movement of one pawn for one tick. Hooks and the
// trigger service read and write it while the move is processed.
type Move struct {
	Origin   geom.Vector
	Velocity geom.Vector
	Angles   geom.QAngle
	Bounds   geom.BBox
	Command  Command
	MaxSpeed float64

	// Set by the solver
	Jumped          bool
	Landed          bool
	LandingOrigin   geom.Vector
	LandingVelocity geom.Vector
}

// NewMove snapshots pawn for one tick of cmd
func NewMove(pawn *entity.Pawn, cmd Command) *Move {
	angles := pawn.Angles
	angles.Yaw = cmd.Yaw
	return &Move{
		Origin:   pawn.Origin,
		Velocity: pawn.Velocity,
		Angles:   angles,
		Bounds:   pawn.Bounds,
		Command:  cmd,
	}
}

// Finish writes the move back into pawn
func (m *Move) Finish(pawn *entity.Pawn) {
	pawn.Origin = m.Origin
	pawn.Velocity = m.Velocity
	pawn.Angles = m.Angles
	pawn.Bounds = m.Bounds
}

// Hooks are the movement callbacks of the active mode and styles. The
// solver calls them around its own steps.
type Hooks interface {
	OnProcessMovement(m *Move)
	OnPlayerMove(m *Move)
	OnCheckJumpButton(m *Move)
	OnAirMove(m *Move)
	OnAirMovePost(m *Move)
	OnTryPlayerMove(m *Move)
	OnTryPlayerMovePost(m *Move)
	OnCategorizePosition(m *Move, stayOnGround bool)
	OnProcessMovementPost(m *Move)
}

// PhysicsSystem runs player movement against the solid geometry of a world
type PhysicsSystem struct {
	world   *ecs.World
	globals *entity.Globals
}

// NewPhysicsSystem creates a new physics system
func NewPhysicsSystem(world *ecs.World, globals *entity.Globals) *PhysicsSystem {
	return &PhysicsSystem{
		world:   world,
		globals: globals,
	}
}

// Trace sweeps a player hull against solid geometry
func (s *PhysicsSystem) Trace(start, end geom.Vector, bounds geom.BBox) ecs.TraceResult {
	return s.world.TraceSolid(start, end, bounds)
}

// ProcessMovement advances pawn by one tick of m
func (s *PhysicsSystem) ProcessMovement(pawn *entity.Pawn, m *Move, cv Settings, hooks Hooks) {
	hooks.OnProcessMovement(m)
	m.MaxSpeed = cv.Cvar(entity.CvarMaxSpeed)

	switch pawn.MoveType {
	case entity.MoveTypeNoclip:
		s.noclipMove(m)
	case entity.MoveTypeLadder:
		s.ladderMove(pawn, m)
	case entity.MoveTypeWalk, entity.MoveTypeFly:
		hooks.OnPlayerMove(m)
		s.duck(pawn, m)
		s.fullWalkMove(pawn, m, cv, hooks)
	}

	pawn.OldJumpPressed = m.Command.Has(entity.ButtonJump)
	hooks.OnProcessMovementPost(m)
}

// wishVelocity is the horizontal velocity the input asks for
func wishVelocity(m *Move) geom.Vector {
	forward := geom.Forward(m.Angles.Yaw)
	right := geom.Forward(m.Angles.Yaw - 90)
	return forward.Scale(m.Command.ForwardMove * m.MaxSpeed).Add(right.Scale(m.Command.SideMove * m.MaxSpeed))
}

func (s *PhysicsSystem) noclipMove(m *Move) {
	m.Velocity = wishVelocity(m).Scale(noclipSpeed)
	if m.Command.Has(entity.ButtonJump) {
		m.Velocity.Z = m.MaxSpeed * noclipSpeed
	} else if m.Command.Has(entity.ButtonDuck) {
		m.Velocity.Z = -m.MaxSpeed * noclipSpeed
	}
	m.Origin = m.Origin.Add(m.Velocity.Scale(s.globals.FrameTime))
}

// ladderMove climbs with forward input and lets go on jump
func (s *PhysicsSystem) ladderMove(pawn *entity.Pawn, m *Move) {
	if m.Command.Has(entity.ButtonJump) {
		pawn.MoveType = entity.MoveTypeWalk
		m.Velocity = geom.Forward(m.Angles.Yaw).Scale(ladderSpeed)
		return
	}
	m.Velocity = geom.Vec(0, 0, m.Command.ForwardMove*ladderSpeed)
	s.tryPlayerMove(pawn, m)
}

// duck moves DuckAmount toward the requested state and swaps hulls once
// fully crouched or fully standing.
func (s *PhysicsSystem) duck(pawn *entity.Pawn, m *Move) {
	canDuck := pawn.LastDuckTime <= s.globals.CurTime
	wantDuck := pawn.DuckOverride || (canDuck && m.Command.Has(entity.ButtonDuck))

	step := duckSpeed * s.globals.FrameTime
	if wantDuck {
		pawn.DuckAmount = math.Min(1, pawn.DuckAmount+step)
		if pawn.DuckAmount >= 1 && pawn.Flags&entity.FlagDucking == 0 {
			pawn.SetFlag(entity.FlagDucking, true)
			m.Bounds = entity.DuckedBounds
		}
		return
	}

	if pawn.Flags&entity.FlagDucking != 0 {
		// Stay crouched under low ceilings
		if tr := s.Trace(m.Origin, m.Origin, entity.DefaultBounds); tr.Hit {
			return
		}
		pawn.SetFlag(entity.FlagDucking, false)
		m.Bounds = entity.DefaultBounds
	}
	pawn.DuckAmount = math.Max(0, pawn.DuckAmount-step)
}

func (s *PhysicsSystem) fullWalkMove(pawn *entity.Pawn, m *Move, cv Settings, hooks Hooks) {
	s.startGravity(pawn, m, cv)

	hooks.OnCheckJumpButton(m)
	s.checkJumpButton(pawn, m, cv)

	if pawn.OnGround() {
		m.Velocity.Z = 0
		s.friction(m, cv)
		s.walkMove(pawn, m, cv, hooks)
	} else {
		hooks.OnAirMove(m)
		s.airMove(pawn, m, cv, hooks)
		hooks.OnAirMovePost(m)
	}

	s.categorizePosition(pawn, m, cv, hooks)
	s.finishGravity(pawn, m, cv)
	if pawn.OnGround() {
		m.Velocity.Z = 0
	}
	s.checkVelocity(m, cv)
}

func (s *PhysicsSystem) startGravity(pawn *entity.Pawn, m *Move, cv Settings) {
	if pawn.OnGround() {
		return
	}
	m.Velocity.Z -= cv.Cvar(entity.CvarGravity) * pawn.GravityScale * 0.5 * s.globals.FrameTime
}

func (s *PhysicsSystem) finishGravity(pawn *entity.Pawn, m *Move, cv Settings) {
	if pawn.OnGround() {
		return
	}
	m.Velocity.Z -= cv.Cvar(entity.CvarGravity) * pawn.GravityScale * 0.5 * s.globals.FrameTime
}

func (s *PhysicsSystem) checkJumpButton(pawn *entity.Pawn, m *Move, cv Settings) {
	if !m.Command.Has(entity.ButtonJump) || !pawn.OnGround() {
		return
	}
	if pawn.OldJumpPressed && cv.Cvar(entity.CvarAutoBunnyhopping) == 0 {
		return
	}
	if penalty := cv.Cvar(entity.CvarJumpSpamPenalty); penalty > 0 && s.globals.CurTime-pawn.LastJumpTime < penalty {
		return
	}

	m.Velocity.Z = cv.Cvar(entity.CvarJumpImpulse)
	pawn.Stamina = math.Max(0, pawn.Stamina-cv.Cvar(entity.CvarStaminaJumpCost))
	pawn.LastJumpTime = s.globals.CurTime
	pawn.SetFlag(entity.FlagOnGround, false)
	pawn.GroundNormal = geom.Vector{}
	m.Jumped = true
}

func (s *PhysicsSystem) friction(m *Move, cv Settings) {
	speed := m.Velocity.Length()
	if speed < 0.1 {
		return
	}
	control := math.Max(speed, stopSpeed)
	drop := control * cv.Cvar(entity.CvarFriction) * s.globals.FrameTime
	scale := math.Max(speed-drop, 0) / speed
	m.Velocity = m.Velocity.Scale(scale)
}

func (s *PhysicsSystem) accelerate(m *Move, wishDir geom.Vector, wishSpeed, accel float64) {
	addSpeed := wishSpeed - m.Velocity.Dot(wishDir)
	if addSpeed <= 0 {
		return
	}
	accelSpeed := math.Min(accel*s.globals.FrameTime*wishSpeed, addSpeed)
	m.Velocity = m.Velocity.Add(wishDir.Scale(accelSpeed))
}

// airAccelerate caps the speed gained along wishDir, not the acceleration,
// which is what makes strafing on ramps gain speed.
func (s *PhysicsSystem) airAccelerate(m *Move, wishDir geom.Vector, wishSpeed, accel, maxWishSpeed float64) {
	capped := math.Min(wishSpeed, maxWishSpeed)
	addSpeed := capped - m.Velocity.Dot(wishDir)
	if addSpeed <= 0 {
		return
	}
	accelSpeed := math.Min(accel*wishSpeed*s.globals.FrameTime, addSpeed)
	m.Velocity = m.Velocity.Add(wishDir.Scale(accelSpeed))
}

func (s *PhysicsSystem) wish(pawn *entity.Pawn, m *Move) (geom.Vector, float64) {
	wishVel := wishVelocity(m)
	wishVel.Z = 0
	wishSpeed := wishVel.Length()
	maxSpeed := m.MaxSpeed
	if pawn.Flags&entity.FlagDucking != 0 && pawn.OnGround() {
		maxSpeed *= duckSpeedScale
	}
	if wishSpeed > maxSpeed {
		wishSpeed = maxSpeed
	}
	return wishVel.Normalized(), wishSpeed
}

func (s *PhysicsSystem) walkMove(pawn *entity.Pawn, m *Move, cv Settings, hooks Hooks) {
	dir, speed := s.wish(pawn, m)
	s.accelerate(m, dir, speed, cv.Cvar(entity.CvarAccelerate))

	if pawn.Flags&entity.FlagBaseVelocity != 0 {
		m.Velocity = m.Velocity.Add(pawn.BaseVelocity)
		defer func() { m.Velocity = m.Velocity.Sub(pawn.BaseVelocity) }()
	}
	if m.Velocity.Length2D() < 1 {
		m.Velocity = geom.Vector{}
		return
	}

	hooks.OnTryPlayerMove(m)
	s.tryPlayerMove(pawn, m)
	hooks.OnTryPlayerMovePost(m)
	s.stayOnGround(m)
}

func (s *PhysicsSystem) airMove(pawn *entity.Pawn, m *Move, cv Settings, hooks Hooks) {
	dir, speed := s.wish(pawn, m)
	s.airAccelerate(m, dir, speed, cv.Cvar(entity.CvarAirAccelerate), cv.Cvar(entity.CvarAirMaxWishSpeed))

	if pawn.Flags&entity.FlagBaseVelocity != 0 {
		m.Velocity = m.Velocity.Add(pawn.BaseVelocity)
		defer func() { m.Velocity = m.Velocity.Sub(pawn.BaseVelocity) }()
	}

	hooks.OnTryPlayerMove(m)
	s.tryPlayerMove(pawn, m)
	hooks.OnTryPlayerMovePost(m)
}

// stayOnGround snaps a walking player down small steps
func (s *PhysicsSystem) stayOnGround(m *Move) {
	down := m.Origin.Sub(geom.Vec(0, 0, stepSize))
	tr := s.Trace(m.Origin, down, m.Bounds)
	if tr.Hit && !tr.StartSolid && tr.Fraction > 0 && tr.Fraction < 1 {
		m.Origin = tr.EndPos
	}
}

// ClipVelocity slides in along a plane with normal n
func ClipVelocity(in, n geom.Vector, overbounce float64) geom.Vector {
	backoff := in.Dot(n) * overbounce
	out := in.Sub(n.Scale(backoff))
	if adjust := out.Dot(n); adjust < 0 {
		out = out.Sub(n.Scale(adjust))
	}
	return out
}

// tryPlayerMove slides the hull along the surfaces it hits, at most
// maxBumps times per tick.
func (s *PhysicsSystem) tryPlayerMove(pawn *entity.Pawn, m *Move) {
	timeLeft := s.globals.FrameTime
	primal := m.Velocity
	var planes []geom.Vector

	for bump := 0; bump < maxBumps; bump++ {
		if m.Velocity.IsZero() {
			break
		}
		end := m.Origin.Add(m.Velocity.Scale(timeLeft))
		tr := s.Trace(m.Origin, end, m.Bounds)

		if tr.StartSolid {
			m.Velocity = geom.Vector{}
			return
		}
		if tr.Fraction > 0 {
			m.Origin = tr.EndPos
			planes = planes[:0]
		}
		if !tr.Hit {
			break
		}

		timeLeft -= timeLeft * tr.Fraction
		if len(planes) >= MaxClipPlanes {
			m.Velocity = geom.Vector{}
			break
		}
		planes = append(planes, tr.Normal)

		if len(planes) == 1 && pawn.MoveType == entity.MoveTypeWalk && !pawn.OnGround() {
			m.Velocity = ClipVelocity(m.Velocity, planes[0], 1)
			continue
		}

		clipped := false
		for i := range planes {
			v := ClipVelocity(m.Velocity, planes[i], 1)
			ok := true
			for j := range planes {
				if j != i && v.Dot(planes[j]) < 0 {
					ok = false
					break
				}
			}
			if ok {
				m.Velocity = v
				clipped = true
				break
			}
		}
		if clipped {
			continue
		}
		if len(planes) != 2 {
			m.Velocity = geom.Vector{}
			break
		}
		dir := planes[0].Cross(planes[1]).Normalized()
		m.Velocity = dir.Scale(dir.Dot(m.Velocity))
		if m.Velocity.Dot(primal) <= 0 {
			m.Velocity = geom.Vector{}
			break
		}
	}
}

// categorizePosition decides whether the pawn stands on something
func (s *PhysicsSystem) categorizePosition(pawn *entity.Pawn, m *Move, cv Settings, hooks Hooks) {
	stayOnGround := pawn.OnGround()
	hooks.OnCategorizePosition(m, stayOnGround)

	wasOnGround := pawn.OnGround()
	if m.Velocity.Z > nonJumpVelocity {
		pawn.SetFlag(entity.FlagOnGround, false)
		pawn.GroundNormal = geom.Vector{}
		return
	}

	down := m.Origin.Sub(geom.Vec(0, 0, groundCheckDist))
	tr := s.Trace(m.Origin, down, m.Bounds)
	if !tr.Hit || tr.Normal.Z < cv.Cvar(entity.CvarStandableNormal) {
		pawn.SetFlag(entity.FlagOnGround, false)
		pawn.GroundNormal = geom.Vector{}
		return
	}

	if !wasOnGround {
		m.Landed = true
		m.LandingOrigin = m.Origin
		m.LandingVelocity = m.Velocity
	}
	pawn.SetFlag(entity.FlagOnGround, true)
	pawn.GroundNormal = tr.Normal
	if !tr.StartSolid {
		m.Origin = tr.EndPos
	}
}

func (s *PhysicsSystem) checkVelocity(m *Move, cv Settings) {
	limit := cv.Cvar(entity.CvarMaxVelocity)
	if limit <= 0 {
		return
	}
	for axis := 0; axis < 3; axis++ {
		v := m.Velocity.At(axis)
		m.Velocity = m.Velocity.With(axis, math.Max(-limit, math.Min(limit, v)))
	}
}
