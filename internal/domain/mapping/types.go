// Package mapping classifies map entities into timer triggers and course
// descriptors. A Catalog is rebuilt every round; anything that has to survive
// a round boundary must hold a course GUID, never a *Course or *Trigger.
package mapping

import (
	"github.com/younwookim/surftimer/internal/domain/geom"
	"github.com/younwookim/surftimer/internal/ecs"
)

// Mapping API versions understood by the catalog
const (
	VersionNone    = 0
	VersionCurrent = 2
)

// Limits and defaults
const (
	MaxSplitZones      = 100
	MaxCheckpointZones = 100
	MaxStageZones      = 100
	MaxCourseCount     = 128
	MaxCourseNameLen   = 64
	MaxErrors          = 32

	DefaultCourseDescriptor = "Default"
	DefaultCourseName       = "Main"
)

// TriggerType is the semantic classification of a trigger volume
type TriggerType int

const (
	TriggerDisabled TriggerType = iota
	TriggerModifier
	TriggerResetCheckpoints
	TriggerSingleBhopReset
	TriggerAntiBhop
	TriggerZoneStart
	TriggerZoneEnd
	TriggerZoneBonusStart
	TriggerZoneBonusEnd
	TriggerZoneSplit
	TriggerZoneCheckpoint
	TriggerZoneStage
	TriggerTeleport
	TriggerMultiBhop
	TriggerSingleBhop
	TriggerSequentialBhop
	TriggerPush
	TriggerDestination

	// triggerMapperCount bounds the types a mapper may assign via keyvalues
	triggerMapperCount = TriggerDestination
)

// String returns the display name of the trigger type
func (t TriggerType) String() string {
	switch t {
	case TriggerDisabled:
		return "Disabled"
	case TriggerModifier:
		return "Modifier"
	case TriggerResetCheckpoints:
		return "Reset Checkpoints"
	case TriggerSingleBhopReset:
		return "Single Bhop Reset"
	case TriggerAntiBhop:
		return "Antibhop"
	case TriggerZoneStart:
		return "Start zone"
	case TriggerZoneEnd:
		return "End zone"
	case TriggerZoneBonusStart:
		return "Bonus start zone"
	case TriggerZoneBonusEnd:
		return "Bonus end zone"
	case TriggerZoneSplit:
		return "Split zone"
	case TriggerZoneCheckpoint:
		return "Checkpoint zone"
	case TriggerZoneStage:
		return "Stage zone"
	case TriggerTeleport:
		return "Teleport"
	case TriggerMultiBhop:
		return "Multi bhop"
	case TriggerSingleBhop:
		return "Single bhop"
	case TriggerSequentialBhop:
		return "Sequential bhop"
	case TriggerPush:
		return "Push"
	case TriggerDestination:
		return "Destination"
	default:
		return "Unknown"
	}
}

// IsTimerZone reports whether the type drives the run timer
func (t TriggerType) IsTimerZone() bool {
	return t >= TriggerZoneStart && t <= TriggerZoneStage
}

// IsBhop reports whether the type is one of the bhop teleport variants
func (t TriggerType) IsBhop() bool {
	return t == TriggerMultiBhop || t == TriggerSingleBhop || t == TriggerSequentialBhop
}

// IsTeleport reports whether the type belongs to the teleport family
func (t TriggerType) IsTeleport() bool {
	return t == TriggerTeleport || t.IsBhop()
}

// IsStartZone reports whether the type starts a run
func (t TriggerType) IsStartZone() bool {
	return t == TriggerZoneStart || t == TriggerZoneBonusStart
}

// IsEndZone reports whether the type ends a run
func (t TriggerType) IsEndZone() bool {
	return t == TriggerZoneEnd || t == TriggerZoneBonusEnd
}

// Payload is the type-specific data of a trigger. The set of
// implementations is closed.
type Payload interface {
	payload()
}

// ModifierPayload configures a Modifier trigger
type ModifierPayload struct {
	DisablePausing     bool
	DisableCheckpoints bool
	DisableTeleports   bool
	DisableJumpstats   bool
	EnableSlide        bool
	Gravity            float64
	JumpFactor         float64
	ForceDuck          bool
	ForceUnduck        bool
}

// AntiBhopPayload configures an AntiBhop trigger
type AntiBhopPayload struct {
	Time float64
}

// ZonePayload ties a timer zone to its course
type ZonePayload struct {
	CourseDescriptor string
	Number           int // split/checkpoint/stage number, unused on start/end
	Bonus            int // legacy bonus number
}

// TeleportPayload configures the teleport family
type TeleportPayload struct {
	Destination          string
	Delay                float64
	UseDestinationAngles bool
	ResetSpeed           bool
	ReorientPlayer       bool
	Relative             bool
}

// PushCondition is a bitmask of events that enqueue a push
type PushCondition uint32

const (
	PushStartTouch PushCondition = 1 << iota
	PushTouch
	PushEndTouch
	PushJumpEvent
	PushJumpButton
	PushAttack
	PushAttack2
	PushUse
	PushLegacy
)

// PushPayload configures a Push trigger
type PushPayload struct {
	Impulse          geom.Vector
	Conditions       PushCondition
	SetSpeed         [3]bool
	CancelOnTeleport bool
	Cooldown         float64
	Delay            float64
}

// Has reports whether the condition bit is set
func (p PushPayload) Has(c PushCondition) bool {
	return p.Conditions&c != 0
}

func (ModifierPayload) payload() {}
func (AntiBhopPayload) payload() {}
func (ZonePayload) payload()     {}
func (TeleportPayload) payload() {}
func (PushPayload) payload()     {}

// Trigger is a classified trigger volume
type Trigger struct {
	Type     TriggerType
	Entity   ecs.EntityID
	HammerID int
	Payload  Payload

	// Filled in at round start for zones and destinations
	Origin   geom.Vector
	Rotation geom.QAngle
	Mins     geom.Vector
	Maxs     geom.Vector
}

// Modifier returns the modifier payload if the trigger carries one
func (t *Trigger) Modifier() (ModifierPayload, bool) {
	p, ok := t.Payload.(ModifierPayload)
	return p, ok && t.Type == TriggerModifier
}

// AntiBhop returns the antibhop payload if the trigger carries one
func (t *Trigger) AntiBhop() (AntiBhopPayload, bool) {
	p, ok := t.Payload.(AntiBhopPayload)
	return p, ok && t.Type == TriggerAntiBhop
}

// Zone returns the zone payload if the trigger carries one
func (t *Trigger) Zone() (ZonePayload, bool) {
	p, ok := t.Payload.(ZonePayload)
	return p, ok && t.Type.IsTimerZone()
}

// Teleport returns the teleport payload if the trigger carries one
func (t *Trigger) Teleport() (TeleportPayload, bool) {
	p, ok := t.Payload.(TeleportPayload)
	return p, ok && t.Type.IsTeleport()
}

// Push returns the push payload if the trigger carries one
func (t *Trigger) Push() (PushPayload, bool) {
	p, ok := t.Payload.(PushPayload)
	return p, ok && t.Type == TriggerPush
}

// Course is a course descriptor. GUID is the only identifier that is stable
// for the whole round.
type Course struct {
	GUID               uint32
	ID                 int
	Name               string
	EntityTargetname   string
	HammerID           int
	DisableCheckpoints bool

	HasStartPosition bool
	StartPosition    geom.Vector
	StartAngles      geom.QAngle
	HasEndPosition   bool
	EndPosition      geom.Vector
	EndAngles        geom.QAngle

	SplitCount      int
	CheckpointCount int
	StageCount      int

	// Set asynchronously once persistence has seen the course; -1 until then
	LocalDatabaseID  int64
	GlobalDatabaseID int64
}

// SetStartPosition records where a player is placed at the start of the course
func (c *Course) SetStartPosition(origin geom.Vector, angles geom.QAngle) {
	c.HasStartPosition = true
	c.StartPosition = origin
	c.StartAngles = angles
}
