package entity

import (
	"github.com/younwookim/surftimer/internal/domain/geom"
)

// MoveType is the pawn's movement mode
type MoveType int

const (
	MoveTypeNone MoveType = iota
	MoveTypeWalk
	MoveTypeLadder
	MoveTypeNoclip
	MoveTypeFly
	MoveTypeObserver
)

// String returns the string representation of the move type
func (m MoveType) String() string {
	switch m {
	case MoveTypeNone:
		return "None"
	case MoveTypeWalk:
		return "Walk"
	case MoveTypeLadder:
		return "Ladder"
	case MoveTypeNoclip:
		return "Noclip"
	case MoveTypeFly:
		return "Fly"
	case MoveTypeObserver:
		return "Observer"
	default:
		return "Unknown"
	}
}

// CollisionGroup decides what the pawn collides with
type CollisionGroup int

const (
	CollisionGroupPlayer CollisionGroup = iota
	CollisionGroupDebris
)

// Flags is the pawn state bitmask
type Flags uint32

const (
	FlagOnGround Flags = 1 << iota
	FlagDucking
	FlagBaseVelocity
)

// Buttons is the input button bitmask
type Buttons uint32

const (
	ButtonJump Buttons = 1 << iota
	ButtonDuck
	ButtonAttack
	ButtonAttack2
	ButtonUse
	ButtonForward
	ButtonBack
	ButtonMoveLeft
	ButtonMoveRight
)

// DefaultBounds is the standing player hull
var DefaultBounds = geom.BBox{Mins: geom.Vec(-16, -16, 0), Maxs: geom.Vec(16, 16, 72)}

// DuckedBounds is the crouched player hull
var DuckedBounds = geom.BBox{Mins: geom.Vec(-16, -16, 0), Maxs: geom.Vec(16, 16, 54)}

// Pawn is the controllable body of a player. It carries exactly the state the
// trigger and timer services read and write.
type Pawn struct {
	Alive bool
	Bot   bool

	Origin       geom.Vector
	Velocity     geom.Vector
	BaseVelocity geom.Vector
	Angles       geom.QAngle
	Bounds       geom.BBox

	MoveType       MoveType
	CollisionGroup CollisionGroup
	Flags          Flags
	GroundNormal   geom.Vector
	GravityScale   float64

	// Move services
	DuckAmount     float64
	Stamina        float64
	LastDuckTime   float64
	LastJumpTime   float64
	DuckOverride   bool
	OldJumpPressed bool

	Buttons    Buttons
	OldButtons Buttons
}

// NewPawn returns a live pawn standing at origin
func NewPawn(origin geom.Vector) *Pawn {
	return &Pawn{
		Alive:        true,
		Origin:       origin,
		Bounds:       DefaultBounds,
		MoveType:     MoveTypeWalk,
		GravityScale: 1,
	}
}

// OnGround reports whether the ground flag is set
func (p *Pawn) OnGround() bool {
	return p.Flags&FlagOnGround != 0
}

// SetFlag sets or clears a flag
func (p *Pawn) SetFlag(f Flags, on bool) {
	if on {
		p.Flags |= f
		return
	}
	p.Flags &^= f
}

// IsButtonNewlyPressed reports whether b went down this tick
func (p *Pawn) IsButtonNewlyPressed(b Buttons) bool {
	return p.Buttons&b != 0 && p.OldButtons&b == 0
}

// IsButtonDown reports whether b is held
func (p *Pawn) IsButtonDown(b Buttons) bool {
	return p.Buttons&b != 0
}
