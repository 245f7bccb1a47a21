package mapping

import (
	"fmt"
	"math"
	"strings"

	"github.com/younwookim/surftimer/internal/domain/geom"
	"github.com/younwookim/surftimer/internal/ecs"
)

// Keyvalue names read during classification
const (
	keyTriggerType        = "timer_trigger_type"
	keyIsCourseDescriptor = "timer_course_descriptor"
	keyMappingAPIVersion  = "timer_mapping_api_version"

	courseTargetPrefix = "[PR#]"

	defaultBhopDelay = 0.1
)

// LoadSpawnGroup reads the mapping API version from worldspawn and registers
// the course descriptors of the spawn group. Only the first call per map
// counts.
func (c *Catalog) LoadSpawnGroup(worldspawn ecs.Keyvalues, entities []ecs.EntityID) {
	if c.versionLoaded {
		return
	}
	c.versionLoaded = true
	c.version = worldspawn.Int(keyMappingAPIVersion, VersionNone)

	switch c.version {
	case VersionNone:
		c.logger.Warn("map is not compiled with the mapping API, reverting to default behavior")
		c.CreateDefaultCourse()
		return
	case VersionCurrent:
	default:
		c.Errorf("FATAL. Mapping API version %d is invalid!", c.version)
		c.fatalFailure = true
		return
	}

	for _, id := range entities {
		if strings.EqualFold(c.world.Classname(id), "info_target_server_only") {
			c.onCourseDescriptorSpawn(id)
		}
	}
}

// RoundPreStart drops last round's triggers and opens the spawn window
func (c *Catalog) RoundPreStart() {
	c.triggers = nil
	c.roundStarting = true
}

// OnSpawn classifies freshly spawned entities: trigger_multiple first, then
// teleport destinations, then trigger_push.
func (c *Catalog) OnSpawn(entities []ecs.EntityID) {
	if c.fatalFailure {
		return
	}

	passes := []struct {
		classname string
		handle    func(ecs.EntityID)
	}{
		{"trigger_multiple", c.onTriggerMultipleSpawn},
		{"info_teleport_destination", c.onDestinationSpawn},
		{"trigger_push", c.onTriggerPushSpawn},
	}
	for _, pass := range passes {
		for _, id := range entities {
			if !c.world.Exists(id) {
				continue
			}
			if strings.EqualFold(c.world.Classname(id), pass.classname) {
				pass.handle(id)
			}
		}
	}

	if c.fatalFailure {
		c.triggers = nil
		c.courses = nil
	}
}

func (c *Catalog) onCourseDescriptorSpawn(id ecs.EntityID) {
	kv := c.world.Keyvalues[id]
	if !kv.Bool(keyIsCourseDescriptor, false) {
		return
	}

	hammerID := c.world.HammerID[id]
	origin := c.world.Origin(id)
	number := kv.Int("timer_course_number", 0)
	name := kv.String("timer_course_name", "")
	targetname := strings.TrimPrefix(c.world.Class[id].Targetname, courseTargetPrefix)

	if number <= 0 {
		c.Errorf("Course number must be bigger than 0! Course descriptor Hammer ID %d, origin %s", hammerID, formatOrigin(origin))
		return
	}
	if name == "" {
		c.Errorf("Course name is empty! Course number %d. Course descriptor Hammer ID %d, origin %s", number, hammerID, formatOrigin(origin))
		return
	}
	if targetname == "" {
		c.Errorf("Course targetname is empty! Course name \"%s\". Course number %d. Course descriptor Hammer ID %d, origin %s",
			name, number, hammerID, formatOrigin(origin))
		return
	}

	c.CreateCourse(number, name, hammerID, targetname, kv.Bool("timer_course_disable_checkpoint", false))
}

func (c *Catalog) onTriggerMultipleSpawn(id ecs.EntityID) {
	if !c.roundStarting {
		return
	}

	kv := c.world.Keyvalues[id]
	hammerID := c.world.HammerID[id]
	origin := c.world.Origin(id)
	typ := TriggerType(kv.Int(keyTriggerType, int(TriggerDisabled)))

	if typ < TriggerDisabled || typ >= triggerMapperCount {
		c.Errorf("Trigger type %d is invalid and out of range (%d-%d) for trigger with Hammer ID %d, origin %s!",
			typ, TriggerDisabled, triggerMapperCount-1, hammerID, formatOrigin(origin))
		return
	}

	trigger := Trigger{Type: typ, Entity: id, HammerID: hammerID}

	switch {
	case typ == TriggerModifier:
		trigger.Payload = ModifierPayload{
			DisablePausing:     kv.Bool("timer_modifier_disable_pause", false),
			DisableCheckpoints: kv.Bool("timer_modifier_disable_checkpoints", false),
			DisableTeleports:   kv.Bool("timer_modifier_disable_teleports", false),
			DisableJumpstats:   kv.Bool("timer_modifier_disable_jumpstats", false),
			EnableSlide:        kv.Bool("timer_modifier_enable_slide", false),
			Gravity:            kv.Float("timer_modifier_gravity", 1),
			JumpFactor:         kv.Float("timer_modifier_jump_impulse", 1),
			ForceDuck:          kv.Bool("timer_modifier_force_duck", false),
			ForceUnduck:        kv.Bool("timer_modifier_force_unduck", false),
		}

	case typ == TriggerResetCheckpoints, typ == TriggerSingleBhopReset:

	case typ == TriggerAntiBhop:
		trigger.Payload = AntiBhopPayload{Time: math.Max(kv.Float("timer_anti_bhop_time", 0), 0)}

	case typ.IsTimerZone():
		zone, ok := c.classifyZone(typ, id, kv)
		if !ok {
			return
		}
		trigger.Payload = zone

	case typ.IsTeleport():
		delay := 0.0
		if typ.IsBhop() {
			delay = defaultBhopDelay
		}
		trigger.Payload = TeleportPayload{
			Destination:          kv.String("timer_teleport_destination", ""),
			Delay:                math.Max(kv.Float("timer_teleport_delay", delay), 0),
			UseDestinationAngles: kv.Bool("timer_teleport_use_dest_angles", false),
			ResetSpeed:           kv.Bool("timer_teleport_reset_speed", false),
			ReorientPlayer:       kv.Bool("timer_teleport_reorient_player", false),
			Relative:             kv.Bool("timer_teleport_relative", false),
		}

	case typ == TriggerPush:
		trigger.Payload = classifyPush(kv)

	case typ == TriggerDisabled:
		if c.version == VersionNone {
			c.classifyLegacy(&trigger)
		}
	}

	c.triggers = append(c.triggers, trigger)
}

func (c *Catalog) classifyZone(typ TriggerType, id ecs.EntityID, kv ecs.Keyvalues) (ZonePayload, bool) {
	hammerID := c.world.HammerID[id]
	origin := c.world.Origin(id)

	zone := ZonePayload{CourseDescriptor: kv.String("timer_zone_course_descriptor", "")}
	if zone.CourseDescriptor == "" {
		c.Errorf("Course descriptor targetname of %s trigger is empty! Hammer ID %d, origin %s", typ, hammerID, formatOrigin(origin))
		return zone, false
	}

	numberKey := ""
	switch typ {
	case TriggerZoneSplit:
		numberKey = "timer_zone_split_number"
	case TriggerZoneCheckpoint:
		numberKey = "timer_zone_checkpoint_number"
	case TriggerZoneStage:
		numberKey = "timer_zone_stage_number"
	}

	if numberKey == "" {
		if !c.world.Transform[id].Angles.IsZero() {
			c.Errorf("Warning: Unexpected rotation for timer trigger, some functionalities might not work properly! Hammer ID %d, origin %s",
				hammerID, formatOrigin(origin))
		}
		return zone, true
	}

	zone.Number = kv.Int(numberKey, 0)
	if zone.Number <= 0 {
		c.Errorf("%s number \"%d\" is invalid! Hammer ID %d, origin %s", typ, zone.Number, hammerID, formatOrigin(origin))
		return zone, false
	}
	return zone, true
}

func classifyPush(kv ecs.Keyvalues) PushPayload {
	push := PushPayload{
		Impulse: kv.Vector("timer_push_amount", geom.Zero),
		SetSpeed: [3]bool{
			kv.Bool("timer_push_abs_speed_x", false),
			kv.Bool("timer_push_abs_speed_y", false),
			kv.Bool("timer_push_abs_speed_z", false),
		},
		CancelOnTeleport: kv.Bool("timer_push_cancel_on_teleport", false),
		Cooldown:         kv.Float("timer_push_cooldown", 0.1),
		Delay:            kv.Float("timer_push_delay", 0),
	}

	conditions := []struct {
		key  string
		flag PushCondition
	}{
		{"timer_push_condition_start_touch", PushStartTouch},
		{"timer_push_condition_touch", PushTouch},
		{"timer_push_condition_end_touch", PushEndTouch},
		{"timer_push_condition_jump_event", PushJumpEvent},
		{"timer_push_condition_jump_button", PushJumpButton},
		{"timer_push_condition_attack", PushAttack},
		{"timer_push_condition_attack2", PushAttack2},
		{"timer_push_condition_use", PushUse},
	}
	for _, cond := range conditions {
		if kv.Bool(cond.key, false) {
			push.Conditions |= cond.flag
		}
	}
	return push
}

// classifyLegacy maps the zone naming conventions of maps built before the
// mapping API onto zone triggers.
func (c *Catalog) classifyLegacy(t *Trigger) {
	name := strings.ToLower(c.world.Class[t.Entity].Targetname)

	switch name {
	case "timer_startzone", "map_start":
		t.Type = TriggerZoneStart
		t.Payload = ZonePayload{CourseDescriptor: DefaultCourseDescriptor}
		return
	case "timer_endzone", "map_end":
		t.Type = TriggerZoneEnd
		t.Payload = ZonePayload{CourseDescriptor: DefaultCourseDescriptor}
		return
	}

	n, ok := scanNumbered(name, "stage", "_start", false)
	if !ok {
		n, ok = scanNumbered(name, "s", "_start", false)
	}
	if ok {
		if n == 1 {
			t.Type = TriggerZoneStart
		} else {
			t.Type = TriggerZoneStage
		}
		t.Payload = ZonePayload{CourseDescriptor: DefaultCourseDescriptor, Number: n}
		return
	}

	for _, prefix := range []string{"b", "bonus"} {
		if n, ok := scanNumbered(name, prefix, "_start", true); ok {
			descriptor := fmt.Sprintf("B%d", n)
			if c.findCourse(descriptor) == nil {
				c.CreateCourse(n+1, descriptor, len(c.courses)+1, descriptor, false)
			}
			t.Type = TriggerZoneBonusStart
			t.Payload = ZonePayload{CourseDescriptor: descriptor, Bonus: n}
			return
		}
		if n, ok := scanNumbered(name, prefix, "_end", true); ok {
			t.Type = TriggerZoneBonusEnd
			t.Payload = ZonePayload{CourseDescriptor: fmt.Sprintf("B%d", n), Bonus: n}
			return
		}
	}
}

// scanNumbered matches "<prefix><digits><suffix>". Unless exact is set,
// trailing characters after the suffix are allowed.
func scanNumbered(name, prefix, suffix string, exact bool) (int, bool) {
	if !strings.HasPrefix(name, prefix) {
		return 0, false
	}
	rest := name[len(prefix):]
	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	n := 0
	for _, r := range rest[:digits] {
		n = n*10 + int(r-'0')
	}
	tail := rest[digits:]
	if exact && tail != suffix || !exact && !strings.HasPrefix(tail, suffix) {
		return 0, false
	}
	return n, true
}

func (c *Catalog) onDestinationSpawn(id ecs.EntityID) {
	c.triggers = append(c.triggers, Trigger{
		Type:     TriggerDestination,
		Entity:   id,
		HammerID: c.world.HammerID[id],
	})
}

// onTriggerPushSpawn turns a stock trigger_push into a push trigger that
// sets velocity along pushdir at the given speed.
func (c *Catalog) onTriggerPushSpawn(id ecs.EntityID) {
	kv := c.world.Keyvalues[id]
	dir := kv.Vector("pushdir", geom.Zero)
	speed := float64(kv.Int("speed", 0))

	c.triggers = append(c.triggers, Trigger{
		Type:     TriggerPush,
		Entity:   id,
		HammerID: c.world.HammerID[id],
		Rotation: geom.QAngle{Pitch: dir.X, Yaw: dir.Y, Roll: dir.Z},
		Payload: PushPayload{
			Impulse:    angleDirection(dir.X, dir.Y).Scale(speed),
			Conditions: PushStartTouch | PushLegacy,
			SetSpeed:   [3]bool{true, true, true},
			Cooldown:   0.1,
		},
	})
}

// angleDirection converts pitch/yaw in degrees to a unit vector
func angleDirection(pitch, yaw float64) geom.Vector {
	p := pitch * math.Pi / 180
	y := yaw * math.Pi / 180
	return geom.Vec(math.Cos(p)*math.Cos(y), math.Cos(p)*math.Sin(y), -math.Sin(p))
}

func formatOrigin(v geom.Vector) string {
	return fmt.Sprintf("(%.0f %.0f %.0f)", v.X, v.Y, v.Z)
}
