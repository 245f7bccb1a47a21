package trigger

import (
	"github.com/younwookim/surftimer/internal/domain/entity"
	"github.com/younwookim/surftimer/internal/domain/geom"
	"github.com/younwookim/surftimer/internal/domain/mapping"
)

// PushEvent is a queued push. It fires once, in the tick that contains
// PushTime, and then blocks the same trigger until its cooldown passes.
type PushEvent struct {
	Source   *mapping.Trigger
	PushTime float64
	Applied  bool
}

// PushEvents returns the queued push events
func (s *Service) PushEvents() []PushEvent {
	out := make([]PushEvent, len(s.pushEvents))
	for i, e := range s.pushEvents {
		out[i] = *e
	}
	return out
}

// AddPushEvent queues a push from trigger. A trigger has at most one
// pending or cooling-down event.
func (s *Service) AddPushEvent(trigger *mapping.Trigger) {
	push, ok := trigger.Push()
	if !ok {
		return
	}
	for _, e := range s.pushEvents {
		if e.Source == trigger {
			return
		}
	}
	s.pushEvents = append(s.pushEvents, &PushEvent{
		Source:   trigger,
		PushTime: s.globals.CurTime + push.Delay,
	})
}

// CleanupPushEvents drops applied events whose cooldown has run out
func (s *Service) CleanupPushEvents() {
	frametime := s.globals.FrameTime
	if frametime == 0 {
		return
	}
	curtime := s.globals.CurTime
	kept := s.pushEvents[:0]
	for _, e := range s.pushEvents {
		push, _ := e.Source.Push()
		if e.Applied && curtime-frametime >= e.PushTime+push.Cooldown {
			continue
		}
		kept = append(kept, e)
	}
	s.pushEvents = kept
}

// ApplyPushes fires every event due in the current frame. A set-speed axis
// overrides the velocity and blocks additive pushes on that axis for the
// rest of the call. On the ground during movement the horizontal part goes
// through base velocity so ground friction doesn't eat it.
func (s *Service) ApplyPushes() {
	frametime := s.globals.FrameTime
	if frametime == 0 || len(s.pushEvents) == 0 {
		return
	}
	curtime := s.globals.CurTime
	pawn := s.host.Pawn()
	useBaseVelocity := pawn.OnGround() && s.host.ProcessingMovement()

	var setSpeed [3]bool
	for _, e := range s.pushEvents {
		if curtime-frametime >= e.PushTime || curtime < e.PushTime || e.Applied {
			continue
		}
		e.Applied = true
		push, _ := e.Source.Push()

		for axis := 0; axis < 3; axis++ {
			viaBase := useBaseVelocity && axis != 2
			var vel geom.Vector
			if viaBase {
				vel = s.host.BaseVelocity()
			} else {
				vel = s.host.Velocity()
			}

			impulse := push.Impulse.At(axis)
			switch {
			case push.SetSpeed[axis]:
				vel = vel.With(axis, impulse)
				setSpeed[axis] = true
			case !setSpeed[axis]:
				vel = vel.With(axis, vel.At(axis)+impulse)
			}

			if axis == 2 && vel.Z > 0 && useBaseVelocity {
				pawn.SetFlag(entity.FlagOnGround, false)
				pawn.GroundNormal = geom.Vector{}
			}

			if viaBase {
				s.host.SetBaseVelocity(vel)
				pawn.SetFlag(entity.FlagBaseVelocity, true)
			} else {
				s.host.SetVelocity(vel)
			}
		}
	}

	if useBaseVelocity {
		vel := s.host.Velocity()
		for axis := 0; axis < 2; axis++ {
			if setSpeed[axis] {
				vel = vel.With(axis, 0)
			}
		}
		s.host.SetVelocity(vel)
	}
}

func (s *Service) touchPushTrigger(t *tracker) {
	push, ok := t.trigger.Push()
	if !ok {
		return
	}
	pawn := s.host.Pawn()
	pressed := func(b entity.Buttons, c mapping.PushCondition) bool {
		return push.Has(c) && pawn.IsButtonNewlyPressed(b)
	}
	if push.Has(mapping.PushTouch) ||
		pressed(entity.ButtonAttack, mapping.PushAttack) ||
		pressed(entity.ButtonAttack2, mapping.PushAttack2) ||
		pressed(entity.ButtonJump, mapping.PushJumpButton) ||
		pressed(entity.ButtonUse, mapping.PushUse) {
		s.AddPushEvent(t.trigger)
	}
}
