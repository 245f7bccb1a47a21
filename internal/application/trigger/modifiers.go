package trigger

import (
	"github.com/younwookim/surftimer/internal/domain/entity"
	"github.com/younwookim/surftimer/internal/domain/mapping"
)

const (
	antiBhopPenaltyTime = 999999.9
	slideNormal         = 2.0
	slideAirAccelScale  = 4.0
	unduckLockTime      = 100000.0
)

// Modifiers counts how many overlapping modifier triggers enable each
// effect. An effect is on while its count is positive.
type Modifiers struct {
	DisablePausingCount     int
	DisableCheckpointsCount int
	DisableTeleportsCount   int
	EnableSlideCount        int
	ForcedDuckCount         int
	ForcedUnduckCount       int

	// JumpFactor scales jump impulse for the current tick
	JumpFactor float64
}

func newModifiers() Modifiers {
	return Modifiers{JumpFactor: 1}
}

// Zero reports whether every counter is back at zero
func (m Modifiers) Zero() bool {
	return m.DisablePausingCount == 0 && m.DisableCheckpointsCount == 0 &&
		m.DisableTeleportsCount == 0 && m.EnableSlideCount == 0 &&
		m.ForcedDuckCount == 0 && m.ForcedUnduckCount == 0
}

func (m *Modifiers) add(p mapping.ModifierPayload, delta int) {
	count := func(c *int, on bool) {
		if on {
			*c += delta
		}
	}
	count(&m.DisablePausingCount, p.DisablePausing)
	count(&m.DisableCheckpointsCount, p.DisableCheckpoints)
	count(&m.DisableTeleportsCount, p.DisableTeleports)
	count(&m.EnableSlideCount, p.EnableSlide)
	count(&m.ForcedDuckCount, p.ForceDuck)
	count(&m.ForcedUnduckCount, p.ForceUnduck)
}

// clampNegative resets negative counters to zero and reports whether any
// was negative
func (m *Modifiers) clampNegative() bool {
	clamped := false
	for _, c := range []*int{
		&m.DisablePausingCount, &m.DisableCheckpointsCount, &m.DisableTeleportsCount,
		&m.EnableSlideCount, &m.ForcedDuckCount, &m.ForcedUnduckCount,
	} {
		if *c < 0 {
			*c = 0
			clamped = true
		}
	}
	return clamped
}

// updateModifiersInternal sets server-side values right after the touch
// list is rebuilt; replication happens at the end of the tick.
func (s *Service) updateModifiersInternal() {
	if s.modifiers.EnableSlideCount > 0 {
		s.applySlide(false)
	} else {
		s.cancelSlide(false)
	}

	if s.antiBhopActive {
		s.applyAntiBhop(false)
	} else {
		s.cancelAntiBhop(false)
	}

	if s.modifiers.ForcedDuckCount > 0 {
		s.applyForcedDuck()
	} else if s.lastModifiers.ForcedDuckCount > 0 {
		s.cancelForcedDuck()
	}

	if s.modifiers.ForcedUnduckCount > 0 {
		s.applyForcedUnduck()
	} else if s.lastModifiers.ForcedUnduckCount > 0 {
		s.cancelForcedUnduck()
	}
}

// applyModifierScalars applies the non-counted parts of a modifier
func (s *Service) applyModifierScalars(p mapping.ModifierPayload) {
	pawn := s.host.Pawn()
	if p.Gravity != 1 {
		if s.host.Zones().Paused() {
			pawn.GravityScale = 0
			return
		}
		pawn.GravityScale = p.Gravity
	}
	s.modifiers.JumpFactor = p.JumpFactor
}

func (s *Service) touchModifierTrigger(t *tracker) {
	mod, ok := t.trigger.Modifier()
	if !ok {
		return
	}
	s.applyModifierScalars(mod)
}

func (s *Service) touchAntiBhopTrigger(t *tracker) {
	ab, ok := t.trigger.AntiBhop()
	if !ok {
		return
	}
	timeOnGround := s.globals.CurTime - s.host.LandingTime()
	if ab.Time == 0 || timeOnGround <= ab.Time || !s.host.Pawn().OnGround() {
		s.antiBhopActive = true
	}
}

func (s *Service) applySlide(replicate bool) {
	cv := s.host.ConVars()
	aa := s.host.ModeStyleValue(entity.CvarAirAccelerate)
	cv.Set(entity.CvarStandableNormal, slideNormal, replicate)
	cv.Set(entity.CvarWalkableNormal, slideNormal, replicate)
	cv.Set(entity.CvarAirAccelerate, aa*slideAirAccelScale, replicate)
}

func (s *Service) cancelSlide(replicate bool) {
	cv := s.host.ConVars()
	for _, name := range []string{entity.CvarAirAccelerate, entity.CvarStandableNormal, entity.CvarWalkableNormal} {
		cv.Set(name, s.host.ModeStyleValue(name), replicate)
	}
}

func (s *Service) applyAntiBhop(replicate bool) {
	cv := s.host.ConVars()
	cv.Set(entity.CvarJumpSpamPenalty, antiBhopPenaltyTime, replicate)
	cv.SetBool(entity.CvarAutoBunnyhopping, false, replicate)
	s.host.Pawn().OldJumpPressed = true
}

func (s *Service) cancelAntiBhop(replicate bool) {
	cv := s.host.ConVars()
	for _, name := range []string{entity.CvarJumpSpamPenalty, entity.CvarAutoBunnyhopping} {
		cv.Set(name, s.host.ModeStyleValue(name), replicate)
	}
}

func (s *Service) applyForcedDuck() {
	s.host.Pawn().DuckOverride = true
}

func (s *Service) cancelForcedDuck() {
	s.host.Pawn().DuckOverride = false
}

// applyForcedUnduck runs every tick: crouch tunnels would otherwise re-duck
// the player.
func (s *Service) applyForcedUnduck() {
	pawn := s.host.Pawn()
	pawn.LastDuckTime = unduckLockTime
	pawn.SetFlag(entity.FlagDucking, false)
}

func (s *Service) cancelForcedUnduck() {
	s.host.Pawn().LastDuckTime = 0
}

func (s *Service) applyJumpFactor(replicate bool) {
	cv := s.host.ConVars()
	factor := s.modifiers.JumpFactor
	cv.Set(entity.CvarJumpImpulse, s.host.ModeStyleValue(entity.CvarJumpImpulse)*factor, replicate)

	cost := s.host.ModeStyleValue(entity.CvarStaminaJumpCost)
	if factor > 0 {
		cost /= factor
	}
	cv.Set(entity.CvarStaminaJumpCost, cost, replicate)
}
