package trigger

import (
	"math"

	"github.com/younwookim/surftimer/internal/domain/geom"
	"github.com/younwookim/surftimer/internal/domain/mapping"
	"github.com/younwookim/surftimer/internal/ecs"
)

const sequentialBhopCapacity = 64

// sequentialBuffer remembers the most recent sequential bhop triggers the
// player jumped from. When full, the oldest entry is overwritten.
type sequentialBuffer struct {
	entries [sequentialBhopCapacity]ecs.EntityID
	next    int
	size    int
}

// Write records id, evicting the oldest entry when full
func (b *sequentialBuffer) Write(id ecs.EntityID) {
	b.entries[b.next] = id
	b.next = (b.next + 1) % sequentialBhopCapacity
	if b.size < sequentialBhopCapacity {
		b.size++
	}
}

// Contains reports whether id is among the remembered entries
func (b *sequentialBuffer) Contains(id ecs.EntityID) bool {
	for i := 0; i < b.size; i++ {
		if b.entries[i] == id {
			return true
		}
	}
	return false
}

// Len returns the number of remembered entries
func (b *sequentialBuffer) Len() int {
	return b.size
}

// touchTeleportTrigger teleports the player once the trigger qualifies.
// Bhop triggers only act on grounded players; they fire after the delay, or
// at once when the player already jumped off the same trigger.
func (s *Service) touchTeleportTrigger(t *tracker) bool {
	st := t.trigger
	tp, ok := st.Teleport()
	if !ok {
		return false
	}
	pawn := s.host.Pawn()
	if st.Type.IsBhop() && !pawn.OnGround() {
		return false
	}

	dest := s.world.FindByName(tp.Destination)
	if dest == 0 {
		s.logger.Warn("invalid teleport destination", "destination", tp.Destination, "hammerId", st.HammerID)
		return false
	}
	destTransform := s.world.Transform[dest]
	if tp.Relative && !s.world.Exists(st.Entity) {
		return false
	}
	triggerOrigin := s.world.Origin(st.Entity)

	curtime := s.globals.CurTime
	shouldTeleport := false
	switch {
	case st.Type.IsBhop():
		touchingTime := curtime - math.Max(s.host.LandingTime(), t.startTouchTime)
		switch {
		case touchingTime > tp.Delay:
			shouldTeleport = true
		case st.Type == mapping.TriggerSingleBhop:
			shouldTeleport = s.lastTouchedSingleBhop == st.Entity
		case st.Type == mapping.TriggerSequentialBhop:
			shouldTeleport = s.lastTouchedSequentialBhops.Contains(st.Entity)
		}
	case st.Type == mapping.TriggerTeleport:
		touchingTime := curtime - t.startTouchTime
		shouldTeleport = touchingTime > tp.Delay || tp.Delay <= 0
	}
	if !shouldTeleport {
		return false
	}

	destYaw := destTransform.Angles.Yaw
	reorient := tp.ReorientPlayer && destYaw != 0
	finalOrigin := destTransform.Origin
	if tp.Relative {
		offset := s.host.Origin().Sub(triggerOrigin)
		if reorient {
			offset = geom.RotateYaw(offset, destYaw)
		}
		finalOrigin = finalOrigin.Add(offset)
	}

	velocity := s.host.Velocity()
	if reorient {
		velocity = geom.RotateYaw(velocity, destYaw)
		angles := s.host.Angles()
		angles.Yaw -= destYaw
		s.host.SetAngles(angles)
	} else if !tp.ReorientPlayer && tp.UseDestinationAngles {
		s.host.SetAngles(destTransform.Angles)
	}

	if tp.ResetSpeed {
		s.host.SetVelocity(geom.Vector{})
	} else {
		s.host.SetVelocity(velocity)
	}

	if s.host.ProcessingMovement() {
		s.host.Teleported(finalOrigin)
	}
	s.host.SetOrigin(finalOrigin)
	return true
}
