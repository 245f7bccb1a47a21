package mode

import (
	"math"

	"github.com/younwookim/surftimer/internal/application/system"
	"github.com/younwookim/surftimer/internal/domain/entity"
	"github.com/younwookim/surftimer/internal/domain/geom"
	"github.com/younwookim/surftimer/internal/ecs"
)

const (
	// Below this speed only direction changes count as heavily modified
	heavilyModifiedSpeed = 50.0
	pierceMinFraction    = 0.1

	// Fixed regardless of sv_standable_normal, so slide zones keep the fix
	standableNormal = 0.7
)

// OnTryPlayerMove replays the slide with the ramp bug fix applied. When a
// sweep stops on a seam between two nearly coplanar ramps, it is retried
// from slightly off the last good plane.
func (m *Mode64t) OnTryPlayerMove(mv *system.Move) {
	m.triggerFixOrigins = m.triggerFixOrigins[:0]
	m.overrideTPM = false
	m.didTPM = true

	pawn := m.player.Pawn()
	frametime := m.player.Globals().FrameTime

	start := mv.Origin
	velocity := mv.Velocity
	primal := velocity
	m.triggerFixOrigins = append(m.triggerFixOrigins, start)

	if velocity.IsZero() {
		return
	}

	var planes []geom.Vector
	var pm ecs.TraceResult
	potentiallyStuck := false
	allFraction := 0.0
	timeLeft := frametime

	for range maxBumps {
		end := start.Add(velocity.Scale(timeLeft))
		pm = m.player.Trace(start, end, mv.Bounds)
		if end == start {
			continue
		}

		if m.isValidMovementTrace(pm, mv.Bounds) && pm.Fraction == 1 {
			break
		}

		lvp := m.lastValidPlane
		if lvp.Length() > fltEpsilon &&
			(!m.isValidMovementTrace(pm, mv.Bounds) || pm.Normal.Dot(lvp) < rampBugThreshold ||
				(potentiallyStuck && pm.Fraction == 0)) {
			if fixed, ok := m.pierce(start, end, pm, mv.Bounds); ok {
				pm = fixed
				m.overrideTPM = true
			}
		}

		if pm.Normal.Length() > 0.99 {
			m.lastValidPlane = pm.Normal
		}
		potentiallyStuck = pm.Fraction == 0

		if pm.Fraction*velocity.Length() > quantum || pm.Fraction > quantum {
			allFraction += pm.Fraction
			start = pm.EndPos
			planes = planes[:0]
		}
		m.triggerFixOrigins = append(m.triggerFixOrigins, pm.EndPos)

		if allFraction == 1 {
			break
		}
		timeLeft -= frametime * pm.Fraction

		if len(planes) >= system.MaxClipPlanes || (pm.Normal.Z >= standableNormal && velocity.Length2D() < 1) {
			velocity = geom.Vector{}
			break
		}
		planes = append(planes, pm.Normal)

		if len(planes) == 1 && pawn.MoveType == entity.MoveTypeWalk && !pawn.OnGround() {
			velocity = clipVelocity(velocity, planes[0])
			continue
		}

		// Clip against each plane in turn until one works for all of them
		along := false
		for i := range planes {
			velocity = clipVelocity(velocity, planes[i])
			along = true
			for j := range planes {
				if j != i && velocity.Dot(planes[j]) < 0 {
					along = false
					break
				}
			}
			if along {
				break
			}
		}
		if along {
			continue
		}

		// Follow the crease
		if len(planes) != 2 {
			velocity = geom.Vector{}
			break
		}
		dir := planes[0].Cross(planes[1]).Normalized()
		velocity = dir.Scale(dir.Dot(velocity))
		if velocity.Dot(primal) <= 0 {
			velocity = geom.Vector{}
			break
		}
	}

	m.tpmOrigin = pm.EndPos
	m.tpmVelocity = velocity
	m.tpmValid = true
}

// pierce searches small offsets along the last valid plane for a trace that
// gets past the seam.
func (m *Mode64t) pierce(start, end geom.Vector, pm ecs.TraceResult, bounds geom.BBox) (ecs.TraceResult, bool) {
	lvp := m.lastValidPlane
	offsets := [3]float64{0, -1, 1}

	for _, i := range offsets {
		for _, j := range offsets {
			for _, k := range offsets {
				offset := geom.Vec(i, j, k)
				if offset.IsZero() {
					offset = lvp
				} else {
					if lvp.Dot(offset) <= 0 {
						continue
					}
					test := m.player.Trace(start.Add(offset.Scale(rampPierceDistance)), start, bounds)
					if !m.isValidMovementTrace(test, bounds) {
						continue
					}
				}

				var pierce ecs.TraceResult
				goodTrace, hitNewPlane := false, false
				for ratio := 0.25; ratio <= 1; ratio += 0.25 {
					shift := offset.Scale(rampPierceDistance * ratio)
					pierce = m.player.Trace(start.Add(shift), end.Add(shift), bounds)
					if !m.isValidMovementTrace(pierce, bounds) {
						continue
					}
					validPlane := pierce.Fraction < 1 && pierce.Fraction > pierceMinFraction &&
						pierce.Normal.Dot(lvp) >= rampBugThreshold
					hitNewPlane = pm.Normal.Dot(pierce.Normal) < newRampThreshold &&
						lvp.Dot(pierce.Normal) > newRampThreshold
					goodTrace = math.Abs(pierce.Fraction-1) < fltEpsilon || validPlane
					if goodTrace {
						break
					}
				}
				if !goodTrace && !hitNewPlane {
					continue
				}

				// Trace back to the original end point for its normal
				back := m.player.Trace(pierce.EndPos, end, bounds)
				fixed := pierce
				fixed.StartPos = start
				fixed.Fraction = clamp01(pierce.EndPos.Sub(pierce.StartPos).Length() / end.Sub(start).Length())
				fixed.EndPos = back.EndPos
				if pierce.Normal.IsZero() {
					fixed.Normal = back.Normal
				}
				m.lastValidPlane = fixed.Normal
				return fixed, true
			}
		}
	}
	return pm, false
}

// isValidMovementTrace rejects traces that start or end stuck, or whose
// normal is unusable.
func (m *Mode64t) isValidMovementTrace(tr ecs.TraceResult, bounds geom.BBox) bool {
	if tr.StartSolid {
		return false
	}
	if tr.Fraction < 1 && tr.Normal.IsZero() {
		return false
	}
	if math.Abs(tr.Normal.X) > 1 || math.Abs(tr.Normal.Y) > 1 || math.Abs(tr.Normal.Z) > 1 {
		return false
	}

	stuck := m.player.Trace(tr.EndPos, tr.EndPos, bounds)
	if stuck.StartSolid || stuck.Fraction < 1-fltEpsilon {
		return false
	}

	back := m.player.Trace(tr.EndPos, tr.StartPos, bounds)
	return !back.StartSolid
}

// OnTryPlayerMovePost replaces the solver's result with the corrected
// move when the two disagree noticeably, and touches the triggers the
// corrected path crossed.
func (m *Mode64t) OnTryPlayerMovePost(mv *system.Move) {
	if m.tpmValid && m.overrideTPM {
		velNorm := mv.Velocity.Normalized()
		tpmNorm := m.tpmVelocity.Normalized()
		tpmSpeed := m.tpmVelocity.Length()

		heavilyModified := velNorm.Dot(tpmNorm) < rampBugThreshold ||
			(tpmSpeed > heavilyModifiedSpeed && mv.Velocity.Length()/tpmSpeed < rampBugVelocityThreshold)
		if heavilyModified {
			mv.Origin = m.tpmOrigin
			mv.Velocity = m.tpmVelocity
		}
	}
	m.tpmValid = false

	if m.airMoving {
		for i := 1; i < len(m.triggerFixOrigins); i++ {
			m.player.TouchTriggersAlongPath(m.triggerFixOrigins[i-1], m.triggerFixOrigins[i], mv.Bounds)
		}
		m.player.UpdateTriggerTouchList()
	}
}

// OnCategorizePosition lifts a falling player that clipped the edge of a
// ramp back onto the last valid plane.
func (m *Mode64t) OnCategorizePosition(mv *system.Move, stayOnGround bool) {
	lvp := m.lastValidPlane
	if stayOnGround || lvp.Length() < fltEpsilon || lvp.Z > standableNormal || mv.Velocity.Z > -64 {
		return
	}

	ground := mv.Origin.Sub(geom.Vec(0, 0, 2))
	tr := m.player.Trace(mv.Origin, ground, mv.Bounds)
	if tr.Fraction == 1 {
		return
	}
	if tr.Fraction >= 0.95 || tr.Normal.Z <= standableNormal || tr.Normal.Dot(lvp) >= rampBugThreshold {
		return
	}

	origin := mv.Origin.Add(lvp.Scale(rampPierceDistance))
	tr2 := m.player.Trace(origin, origin.Sub(geom.Vec(0, 0, 2)), mv.Bounds)
	if tr2.StartSolid {
		return
	}
	if tr2.Fraction == 1 || lvp.Dot(tr2.Normal) >= rampBugThreshold {
		mv.Origin = origin
	}
}

// clipVelocity always pushes slightly off the plane so the next sweep
// doesn't start touching it.
func clipVelocity(in, n geom.Vector) geom.Vector {
	backoff := math.Max(-in.Dot(n), 0) + quantum
	return n.Scale(backoff).Add(in)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
