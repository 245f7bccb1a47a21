package trigger

import (
	"strings"

	"github.com/younwookim/surftimer/internal/domain/entity"
	"github.com/younwookim/surftimer/internal/domain/geom"
	"github.com/younwookim/surftimer/internal/domain/mapping"
	"github.com/younwookim/surftimer/internal/ecs"
)

// tracker is the touch state of one trigger the player overlaps
type tracker struct {
	entity             ecs.EntityID
	trigger            *mapping.Trigger // nil for unclassified triggers
	startTouchTime     float64
	possibleLegacyBhop bool

	startedTouch    bool
	touchedThisTick bool
	// mappingStarted is set once the semantic start touch ran. The semantic
	// end touch runs if and only if it is set.
	mappingStarted bool
}

func (t *tracker) canStartTouch() bool { return !t.startedTouch }
func (t *tracker) canTouch() bool      { return t.startedTouch && !t.touchedThisTick }
func (t *tracker) canEndTouch() bool   { return t.startedTouch }

// highFrequencyTouchAllowed limits repeated touches to classified triggers
func highFrequencyTouchAllowed(t *tracker) bool {
	return t.trigger != nil
}

// shouldTouchOnStartTouch lets triggers whose effect is checked on touch act
// on the very tick they are entered.
func shouldTouchOnStartTouch(t *tracker) bool {
	if t.trigger == nil {
		return false
	}
	typ := t.trigger.Type
	return typ.IsTeleport() || typ == mapping.TriggerAntiBhop || typ == mapping.TriggerModifier
}

// shouldTouchBeforeEndTouch gives modifier-like triggers a final touch on
// the way out.
func shouldTouchBeforeEndTouch(t *tracker) bool {
	if t.trigger == nil {
		return false
	}
	typ := t.trigger.Type
	return typ == mapping.TriggerModifier || typ == mapping.TriggerAntiBhop
}

// isPossibleLegacyBhopTrigger spots unclassified trigger_multiples that
// filter touchers and teleport them through an output.
func isPossibleLegacyBhopTrigger(kv ecs.Keyvalues) bool {
	if kv.String("filtername", "") == "" {
		return false
	}
	return strings.Contains(strings.ToLower(kv.String("OnTrigger", "")), "teleportentity")
}

func (s *Service) findTracker(id ecs.EntityID) *tracker {
	for _, t := range s.trackers {
		if t.entity == id {
			return t
		}
	}
	return nil
}

func (s *Service) removeTracker(target *tracker) {
	for i, t := range s.trackers {
		if t == target {
			s.trackers = append(s.trackers[:i], s.trackers[i+1:]...)
			return
		}
	}
}

// pruneTrackers drops trackers whose trigger no longer exists, running the
// semantic end touch for classified ones so counters stay balanced. live is
// called for every surviving tracker.
func (s *Service) pruneTrackers(live func(*tracker)) {
	kept := s.trackers[:0]
	for _, t := range s.trackers {
		if !s.world.Exists(t.entity) {
			if t.mappingStarted {
				s.onMappingEndTouch(t)
			}
			continue
		}
		if live != nil {
			live(t)
		}
		kept = append(kept, t)
	}
	s.trackers = kept
}

// UpdateTriggerTouchList reconciles the tracked set with a zero-length
// sweep at the player's position.
func (s *Service) UpdateTriggerTouchList() {
	pawn := s.host.Pawn()
	if pawn == nil {
		return
	}

	// Gravity is rebuilt from scratch by this tick's touches
	if s.host.Zones().Paused() {
		pawn.GravityScale = 0
	} else {
		pawn.GravityScale = 1
	}

	if !s.host.Alive() || pawn.MoveType == entity.MoveTypeNoclip {
		s.EndTouchAll()
		return
	}

	origin := s.host.Origin()
	hits := s.world.TraceTriggers(origin, origin, pawn.Bounds)
	hit := make(map[ecs.EntityID]bool, len(hits))
	for _, h := range hits {
		hit[h.Entity] = true
	}

	s.pruneTrackers(nil)
	for i := len(s.trackers) - 1; i >= 0; i-- {
		if i >= len(s.trackers) {
			continue
		}
		// Disabling a trigger ends the touches it started
		if t := s.trackers[i]; !hit[t.entity] || (t.mappingStarted && !s.world.PassesTriggerFilters(t.entity)) {
			s.EndTouch(t.entity)
		}
	}

	// Re-derived by this tick's antibhop touches
	s.antiBhopActive = false

	for _, h := range hits {
		t := s.findTracker(h.Entity)
		if t == nil {
			s.StartTouch(h.Entity)
		} else if highFrequencyTouchAllowed(t) {
			s.Touch(h.Entity, false)
		}
	}

	s.updateModifiersInternal()
}

// TouchTriggersAlongPath starts touching every trigger swept between start
// and end that isn't tracked yet. Movement code calls it when the player
// covers a large distance within one tick.
func (s *Service) TouchTriggersAlongPath(start, end geom.Vector, bounds geom.BBox) {
	pawn := s.host.Pawn()
	if !s.host.Alive() || pawn == nil || pawn.CollisionGroup != entity.CollisionGroupPlayer {
		return
	}
	for _, h := range s.world.TraceTriggers(start, end, bounds) {
		if !s.world.PassesTriggerFilters(h.Entity) {
			continue
		}
		if s.findTracker(h.Entity) == nil {
			s.StartTouch(h.Entity)
		}
	}
}

// TouchAll touches every tracked trigger once more
func (s *Service) TouchAll() {
	s.pruneTrackers(nil)
	for _, t := range append([]*tracker(nil), s.trackers...) {
		s.Touch(t.entity, false)
	}
}

// EndTouchAll ends every tracked touch
func (s *Service) EndTouchAll() {
	s.pruneTrackers(nil)
	for _, t := range append([]*tracker(nil), s.trackers...) {
		s.EndTouch(t.entity)
	}
}

// StartTouch begins touching a trigger if the mode and styles allow it
func (s *Service) StartTouch(id ecs.EntityID) {
	pawn := s.host.Pawn()
	if pawn == nil || !s.world.Exists(id) {
		return
	}

	t := s.findTracker(id)
	if t != nil && !t.canStartTouch() {
		return
	}
	if !s.startTouchPre(id) {
		return
	}

	if t == nil {
		t = &tracker{
			entity:         id,
			trigger:        s.catalog.Trigger(id),
			startTouchTime: s.globals.CurTime,
		}
		if strings.EqualFold(s.world.Classname(id), "trigger_multiple") {
			t.possibleLegacyBhop = isPossibleLegacyBhopTrigger(s.world.Keyvalues[id])
		}
		s.trackers = append(s.trackers, t)
	}

	s.updatePreTouchData()
	s.nativeStartTouch(id)
	t.startedTouch = true
	s.startTouchPost(id, t)
	s.updatePlayerPostTouch()

	if shouldTouchOnStartTouch(t) {
		s.Touch(id, true)
	}
}

// Touch runs one touch of a tracked trigger. A silent touch doesn't use up
// the tick's touch.
func (s *Service) Touch(id ecs.EntityID, silent bool) {
	if s.host.Pawn() == nil {
		return
	}
	t := s.findTracker(id)
	if t == nil || !t.canTouch() || !s.touchPre(id) {
		return
	}

	s.updatePreTouchData()
	if !silent {
		t.touchedThisTick = true
	}
	s.touchPost(id, t)
	s.updatePlayerPostTouch()
}

// EndTouch stops touching a tracked trigger if the mode and styles allow it
func (s *Service) EndTouch(id ecs.EntityID) {
	if s.host.Pawn() == nil {
		return
	}
	t := s.findTracker(id)
	if t == nil || !t.canEndTouch() || !s.endTouchPre(id) {
		return
	}

	if shouldTouchBeforeEndTouch(t) {
		s.Touch(id, false)
	}
	s.updatePreTouchData()
	s.updatePlayerPostTouch()
	s.endTouchPost(t)
	s.removeTracker(t)
}

func (s *Service) updatePreTouchData() {
	pawn := s.host.Pawn()
	s.preTouchOrigin = pawn.Origin
	s.preTouchVelocity = pawn.Velocity
}

// updatePlayerPostTouch carries origin changes made by native trigger logic
// into the move being processed.
func (s *Service) updatePlayerPostTouch() {
	pawn := s.host.Pawn()
	if s.host.ProcessingMovement() && pawn.Origin != s.preTouchOrigin {
		s.host.SetOrigin(pawn.Origin)
	}
}

// nativeStartTouch is the stock behavior of the trigger's class. Only
// trigger_teleport acts on its own: it moves the pawn to its target, and
// updatePlayerPostTouch carries the move over.
func (s *Service) nativeStartTouch(id ecs.EntityID) {
	if !strings.EqualFold(s.world.Classname(id), "trigger_teleport") || !s.world.PassesTriggerFilters(id) {
		return
	}
	target := s.world.Keyvalues[id].String("target", "")
	dest := s.world.FindByName(target)
	if dest == 0 {
		s.logger.Warn("trigger_teleport has no valid target", "target", target, "hammerId", s.world.HammerID[id])
		return
	}
	pawn := s.host.Pawn()
	pawn.Origin = s.world.Origin(dest)
	s.host.Teleported(pawn.Origin)
}
