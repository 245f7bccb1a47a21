package mapping

import (
	"strings"

	"github.com/younwookim/surftimer/internal/domain/geom"
)

// RoundStart closes the spawn window, records zone and destination
// transforms, and validates the zone numbering of every course. Invalid
// courses are dropped; the rest keep their counts. setup, if non-nil, is
// called with the surviving courses so persistence can assign local IDs.
func (c *Catalog) RoundStart(setup func(courses []*Course)) {
	c.roundStarting = false

	hasZones := false
	for i := range c.triggers {
		t := &c.triggers[i]
		if t.Type == TriggerDestination || t.Type.IsTimerZone() {
			c.recordTransform(t)
		}
		if t.Type.IsTimerZone() {
			hasZones = true
		}
	}

	if len(c.courses) == 0 && hasZones && !c.fatalFailure {
		c.CreateDefaultCourse()
	}

	valid := c.courses[:0]
	for _, course := range c.courses {
		if c.validateCourse(course) {
			valid = append(valid, course)
		}
	}
	c.courses = valid

	if setup != nil {
		setup(c.Courses())
	}
}

func (c *Catalog) recordTransform(t *Trigger) {
	if !c.world.Exists(t.Entity) {
		return
	}
	tr := c.world.Transform[t.Entity]
	t.Origin = tr.Origin
	t.Rotation = tr.Angles
	if col, ok := c.world.Collision[t.Entity]; ok {
		t.Mins = col.Bounds.Mins
		t.Maxs = col.Bounds.Maxs
	}
}

// validateCourse counts the course's numbered zones and checks, by XOR
// against the expected sequence, that each kind is numbered consecutively.
// Splits and checkpoints start at 1. Stage 1 is the start zone itself, so
// stage zones start at 2.
func (c *Catalog) validateCourse(course *Course) bool {
	var splitXor, cpXor, stageXor int
	var splitCount, cpCount, stageCount int

	for i := range c.triggers {
		t := &c.triggers[i]
		zone, ok := t.Zone()
		if !ok || !strings.EqualFold(zone.CourseDescriptor, course.EntityTargetname) {
			continue
		}

		switch t.Type {
		case TriggerZoneSplit:
			splitCount++
			splitXor ^= splitCount ^ zone.Number
		case TriggerZoneCheckpoint:
			cpCount++
			cpXor ^= cpCount ^ zone.Number
		case TriggerZoneStage:
			stageCount++
			stageXor ^= (stageCount + 1) ^ zone.Number
		case TriggerZoneStart, TriggerZoneBonusStart:
			if !course.HasStartPosition {
				course.SetStartPosition(standingPosition(t), t.Rotation)
			}
		case TriggerZoneEnd, TriggerZoneBonusEnd:
			if !course.HasEndPosition {
				course.HasEndPosition = true
				course.EndPosition = standingPosition(t)
				course.EndAngles = t.Rotation
			}
		}
	}

	invalid := false
	if splitXor != 0 {
		c.Errorf("Course \"%s\" Split zones aren't consecutive or don't start at 1!", course.Name)
		invalid = true
	}
	if cpXor != 0 {
		c.Errorf("Course \"%s\" Checkpoint zones aren't consecutive or don't start at 1!", course.Name)
		invalid = true
	}
	if stageXor != 0 {
		c.Errorf("Course \"%s\" Stage zones aren't consecutive or don't start at 2!", course.Name)
		invalid = true
	}
	if splitCount > MaxSplitZones {
		c.Errorf("Course \"%s\" Too many split zones! Maximum is %d.", course.Name, MaxSplitZones)
		invalid = true
	}
	if cpCount > MaxCheckpointZones {
		c.Errorf("Course \"%s\" Too many checkpoint zones! Maximum is %d.", course.Name, MaxCheckpointZones)
		invalid = true
	}
	if stageCount > MaxStageZones {
		c.Errorf("Course \"%s\" Too many stage zones! Maximum is %d.", course.Name, MaxStageZones)
		invalid = true
	}
	if invalid {
		return false
	}

	course.SplitCount = splitCount
	course.CheckpointCount = cpCount
	course.StageCount = stageCount
	return true
}

// standingPosition is the floor centre of a zone volume
func standingPosition(t *Trigger) geom.Vector {
	centre := t.Mins.Add(t.Maxs).Scale(0.5)
	return geom.Vec(t.Origin.X+centre.X, t.Origin.Y+centre.Y, t.Origin.Z+t.Mins.Z)
}
