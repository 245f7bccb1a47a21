package mapping

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/younwookim/surftimer/internal/ecs"
)

// ErrorPrintInterval is the default for how often collected mapping errors
// are shown, in seconds
const ErrorPrintInterval = 60.0

// ErrorPrefix is prepended to every mapping error shown in chat
const ErrorPrefix = "{darkred} ERROR: "

// Printer broadcasts a chat line to every player
type Printer interface {
	PrintChatAll(msg string)
}

// Catalog is the per-map registry of classified triggers and courses
type Catalog struct {
	world  *ecs.World
	logger *log.Logger

	version        int
	versionLoaded  bool
	fatalFailure   bool
	roundStarting  bool
	tooManyCourses bool

	triggers []Trigger
	courses  []*Course
	nextGUID uint32

	errors        []string
	nextErrorTime float64
	errorInterval float64
}

// NewCatalog creates an empty catalog bound to a world
func NewCatalog(world *ecs.World, logger *log.Logger) *Catalog {
	if logger == nil {
		logger = log.Default()
	}
	c := &Catalog{world: world, logger: logger.WithPrefix("mapping"), errorInterval: ErrorPrintInterval}
	c.Reset()
	return c
}

// SetErrorPrintInterval changes how often Tick repeats the error list.
// Non-positive values keep the current interval.
func (c *Catalog) SetErrorPrintInterval(seconds float64) {
	if seconds > 0 {
		c.errorInterval = seconds
	}
}

// Reset forgets everything, as on map change
func (c *Catalog) Reset() {
	c.version = VersionNone
	c.versionLoaded = false
	c.fatalFailure = false
	c.roundStarting = false
	c.tooManyCourses = false
	c.triggers = nil
	c.courses = nil
	c.nextGUID = 1
	c.errors = nil
	c.nextErrorTime = 0
}

// World returns the world the catalog reads entities from
func (c *Catalog) World() *ecs.World {
	return c.world
}

// Version returns the mapping API version of the loaded map
func (c *Catalog) Version() int {
	return c.version
}

// Fatal reports whether the map was rejected outright
func (c *Catalog) Fatal() bool {
	return c.fatalFailure
}

// Errorf records a mapping error. The list is bounded; once full, the last
// slot reads "Too many errors to list!".
func (c *Catalog) Errorf(format string, args ...any) {
	n := len(c.errors)
	switch {
	case n >= MaxErrors:
		return
	case n == MaxErrors-1:
		c.errors = append(c.errors, "Too many errors to list!")
		return
	}
	msg := fmt.Sprintf(format, args...)
	c.logger.Warn(msg)
	c.errors = append(c.errors, msg)
}

// Errors returns the collected mapping errors
func (c *Catalog) Errors() []string {
	out := make([]string, len(c.errors))
	copy(out, c.errors)
	return out
}

// PrintErrors sends every collected error to chat
func (c *Catalog) PrintErrors(p Printer) {
	if c.tooManyCourses {
		p.PrintChatAll(fmt.Sprintf("%sToo many Courses! Maximum is %d!", ErrorPrefix, MaxCourseCount))
	}
	for _, e := range c.errors {
		p.PrintChatAll(ErrorPrefix + e)
	}
}

// Tick prints the error list once per error print interval
func (c *Catalog) Tick(now float64, p Printer) {
	if now < c.nextErrorTime {
		return
	}
	c.nextErrorTime = now + c.errorInterval
	c.PrintErrors(p)
}

// CreateCourse registers a course descriptor. A repeated hammer ID is
// ignored silently; a repeated targetname is an error.
func (c *Catalog) CreateCourse(number int, name string, hammerID int, targetname string, disableCheckpoints bool) bool {
	if len(c.courses) >= MaxCourseCount {
		c.tooManyCourses = true
		c.Errorf("Failed to register course name '%s' (hammerId %d): Too many courses!", name, hammerID)
		return false
	}

	for _, existing := range c.courses {
		if existing.HammerID == hammerID {
			return false
		}
		if strings.EqualFold(existing.EntityTargetname, targetname) {
			c.Errorf("Course descriptor '%s' already existed! (registered by Hammer ID %d)", targetname, existing.HammerID)
			return false
		}
	}

	if len(name) > MaxCourseNameLen {
		name = name[:MaxCourseNameLen]
	}

	c.courses = append(c.courses, &Course{
		GUID:               c.nextGUID,
		ID:                 number,
		Name:               name,
		EntityTargetname:   targetname,
		HammerID:           hammerID,
		DisableCheckpoints: disableCheckpoints,
		LocalDatabaseID:    -1,
		GlobalDatabaseID:   -1,
	})
	c.nextGUID++
	return true
}

// CreateDefaultCourse registers the implicit course of maps without descriptors
func (c *Catalog) CreateDefaultCourse() bool {
	return c.CreateCourse(1, DefaultCourseName, -1, DefaultCourseDescriptor, false)
}

// ClearCourses removes all courses
func (c *Catalog) ClearCourses() {
	c.courses = nil
}

// Triggers returns the classified triggers
func (c *Catalog) Triggers() []Trigger {
	return c.triggers
}

// Trigger returns the classified trigger for an entity, or nil
func (c *Catalog) Trigger(id ecs.EntityID) *Trigger {
	if !c.world.Exists(id) {
		return nil
	}
	for i := range c.triggers {
		if c.triggers[i].Entity == id {
			return &c.triggers[i]
		}
	}
	return nil
}

// Destination returns the classified destination for an entity, or nil
func (c *Catalog) Destination(id ecs.EntityID) *Trigger {
	t := c.Trigger(id)
	if t == nil || t.Type != TriggerDestination {
		return nil
	}
	return t
}

// IsTimerZone reports whether the entity is a classified timer zone
func (c *Catalog) IsTimerZone(id ecs.EntityID) bool {
	t := c.Trigger(id)
	return t != nil && t.Type.IsTimerZone()
}

func (c *Catalog) findCourse(targetname string) *Course {
	if targetname == "" {
		return nil
	}
	for _, course := range c.courses {
		if strings.EqualFold(course.EntityTargetname, targetname) {
			return course
		}
	}
	return nil
}

// CourseForTrigger resolves the course a timer zone belongs to. A zone whose
// descriptor names no course is a mapping error and yields nil.
func (c *Catalog) CourseForTrigger(t *Trigger) *Course {
	zone, ok := t.Zone()
	if !ok {
		return nil
	}
	course := c.findCourse(zone.CourseDescriptor)
	if course == nil {
		c.Errorf("Couldn't find course descriptor from name \"%s\"! Trigger's Hammer Id: %d", zone.CourseDescriptor, t.HammerID)
	}
	return course
}

// sorted returns the courses ordered by mapper course number
func (c *Catalog) sorted() []*Course {
	out := make([]*Course, len(c.courses))
	copy(out, c.courses)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Courses returns all courses ordered by mapper course number
func (c *Catalog) Courses() []*Course {
	return c.sorted()
}

// CourseCount returns the number of registered courses
func (c *Catalog) CourseCount() int {
	return len(c.courses)
}

// Course returns the course with the given GUID
func (c *Catalog) Course(guid uint32) *Course {
	for _, course := range c.courses {
		if course.GUID == guid {
			return course
		}
	}
	return nil
}

// CourseByCourseID returns the course with the given mapper number
func (c *Catalog) CourseByCourseID(id int) *Course {
	for _, course := range c.sorted() {
		if course.ID == id {
			return course
		}
	}
	return nil
}

// CourseByLocalID returns the course with the given local database ID
func (c *Catalog) CourseByLocalID(id int64) *Course {
	for _, course := range c.sorted() {
		if course.LocalDatabaseID == id {
			return course
		}
	}
	return nil
}

// CourseByGlobalID returns the course with the given global database ID
func (c *Catalog) CourseByGlobalID(id int64) *Course {
	for _, course := range c.sorted() {
		if course.GlobalDatabaseID == id {
			return course
		}
	}
	return nil
}

// CourseByName returns the course with the given name
func (c *Catalog) CourseByName(name string, caseSensitive bool) *Course {
	for _, course := range c.sorted() {
		if caseSensitive && course.Name == name || !caseSensitive && strings.EqualFold(course.Name, name) {
			return course
		}
	}
	return nil
}

// FirstCourse returns the course with the lowest mapper number
func (c *Catalog) FirstCourse() *Course {
	sorted := c.sorted()
	if len(sorted) == 0 {
		return nil
	}
	return sorted[0]
}

// UpdateCourseLocalID stores the local database ID for a course by name
func (c *Catalog) UpdateCourseLocalID(name string, id int64) bool {
	for _, course := range c.courses {
		if course.Name == name {
			course.LocalDatabaseID = id
			return true
		}
	}
	return false
}

// UpdateCourseGlobalID stores the global database ID for a course by name
func (c *Catalog) UpdateCourseGlobalID(name string, id int64) bool {
	for _, course := range c.courses {
		if course.Name == name {
			course.GlobalDatabaseID = id
			return true
		}
	}
	return false
}
