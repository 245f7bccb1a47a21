package trigger

import (
	"github.com/younwookim/surftimer/internal/domain/mapping"
	"github.com/younwookim/surftimer/internal/ecs"
)

// Pre-hooks run on the mode and then every style. All of them run even
// after one refuses.

func (s *Service) startTouchPre(id ecs.EntityID) bool {
	allow := true
	for _, h := range s.host.TouchHooks() {
		allow = h.OnTriggerStartTouch(id) && allow
	}
	return allow
}

func (s *Service) touchPre(id ecs.EntityID) bool {
	allow := true
	for _, h := range s.host.TouchHooks() {
		allow = h.OnTriggerTouch(id) && allow
	}
	return allow
}

func (s *Service) endTouchPre(id ecs.EntityID) bool {
	allow := true
	for _, h := range s.host.TouchHooks() {
		allow = h.OnTriggerEndTouch(id) && allow
	}
	return allow
}

// Post phases only reach classified triggers. Start and touch also need the
// engine filters to pass; end touch follows whether start ran, so counters
// stay balanced when a trigger is toggled while touched.

func (s *Service) startTouchPost(id ecs.EntityID, t *tracker) {
	if t.trigger == nil || !s.world.PassesTriggerFilters(id) {
		return
	}
	t.mappingStarted = true
	s.onMappingStartTouch(t)
}

func (s *Service) touchPost(id ecs.EntityID, t *tracker) {
	if !t.mappingStarted || !s.world.PassesTriggerFilters(id) {
		return
	}
	s.onMappingTouch(t)
}

func (s *Service) endTouchPost(t *tracker) {
	if !t.mappingStarted {
		return
	}
	t.mappingStarted = false
	s.onMappingEndTouch(t)
}

// resolveCourse returns the course of a timer zone. ok is false when the
// trigger is a zone whose course can't be found.
func (s *Service) resolveCourse(st *mapping.Trigger) (*mapping.Course, bool) {
	if !st.Type.IsTimerZone() {
		return nil, true
	}
	course := s.catalog.CourseForTrigger(st)
	return course, course != nil
}

func (s *Service) onMappingStartTouch(t *tracker) {
	st := t.trigger
	course, ok := s.resolveCourse(st)
	if !ok {
		return
	}
	zones := s.host.Zones()

	switch st.Type {
	case mapping.TriggerModifier:
		mod, _ := st.Modifier()
		s.modifiers.add(mod, 1)
		s.applyModifierScalars(mod)

	case mapping.TriggerResetCheckpoints:
		if zones.Running() {
			if s.host.CheckpointCount() > 0 {
				s.host.PrintChat("Checkpoints cleared by map")
			}
			s.host.ResetCheckpoints()
		}

	case mapping.TriggerSingleBhopReset:
		s.ResetBhopState()

	case mapping.TriggerZoneStart, mapping.TriggerZoneBonusStart:
		s.host.ResetCheckpoints()
		zones.StartZoneStartTouch(course)

	case mapping.TriggerZoneEnd, mapping.TriggerZoneBonusEnd:
		zones.TimerEnd(course)

	case mapping.TriggerZoneSplit:
		zone, _ := st.Zone()
		zones.SplitZoneStartTouch(course, zone.Number)

	case mapping.TriggerZoneCheckpoint:
		zone, _ := st.Zone()
		zones.CheckpointZoneStartTouch(course, zone.Number)

	case mapping.TriggerZoneStage:
		zone, _ := st.Zone()
		zones.StageZoneStartTouch(course, zone.Number)

	case mapping.TriggerMultiBhop, mapping.TriggerSingleBhop, mapping.TriggerSequentialBhop:
		s.bhopTouchCount++

	case mapping.TriggerPush:
		if p, _ := st.Push(); p.Has(mapping.PushStartTouch) {
			s.AddPushEvent(st)
		}
	}
}

func (s *Service) onMappingTouch(t *tracker) {
	switch t.trigger.Type {
	case mapping.TriggerModifier:
		s.touchModifierTrigger(t)
	case mapping.TriggerAntiBhop:
		s.touchAntiBhopTrigger(t)
	case mapping.TriggerTeleport, mapping.TriggerMultiBhop, mapping.TriggerSingleBhop, mapping.TriggerSequentialBhop:
		s.touchTeleportTrigger(t)
	case mapping.TriggerPush:
		s.touchPushTrigger(t)
	}
}

func (s *Service) onMappingEndTouch(t *tracker) {
	st := t.trigger
	course, ok := s.resolveCourse(st)
	if !ok {
		return
	}
	zones := s.host.Zones()

	switch st.Type {
	case mapping.TriggerModifier:
		mod, _ := st.Modifier()
		s.modifiers.add(mod, -1)
		if s.modifiers.clampNegative() {
			s.logger.Error("modifier count went negative, an end touch was missed", "hammerId", st.HammerID)
		}

	case mapping.TriggerZoneStart, mapping.TriggerZoneBonusStart:
		s.host.ResetCheckpoints()
		zones.StartZoneEndTouch(course)

	case mapping.TriggerZoneStage:
		zone, _ := st.Zone()
		zones.StageZoneEndTouch(course, zone.Number)

	case mapping.TriggerMultiBhop, mapping.TriggerSingleBhop, mapping.TriggerSequentialBhop:
		s.bhopTouchCount--
		if s.bhopTouchCount < 0 {
			s.logger.Error("bhop touch count went negative", "hammerId", st.HammerID)
			s.bhopTouchCount = 0
		}

	case mapping.TriggerPush:
		if p, _ := st.Push(); p.Has(mapping.PushEndTouch) {
			s.AddPushEvent(st)
		}
	}
}
