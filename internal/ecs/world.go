package ecs

import (
	"strings"

	"github.com/younwookim/surftimer/internal/domain/geom"
)

// EntityID is a unique identifier for an entity (never recycled).
// Holding an EntityID is a weak reference: resolve it with Exists.
type EntityID uint64

// World holds all component maps and the next entity ID
type World struct {
	nextID EntityID

	// Components
	Transform map[EntityID]Transform
	Collision map[EntityID]Collision
	Class     map[EntityID]Class
	HammerID  map[EntityID]int
	Keyvalues map[EntityID]Keyvalues

	// Tags
	IsTrigger  map[EntityID]struct{}
	IsSolid    map[EntityID]struct{}
	IsDisabled map[EntityID]struct{}

	// Worldspawn keyvalues
	Worldspawn Keyvalues
}

// NewWorld creates a new empty world
func NewWorld() *World {
	return &World{
		nextID:     1, // 0 is "nil"
		Transform:  make(map[EntityID]Transform),
		Collision:  make(map[EntityID]Collision),
		Class:      make(map[EntityID]Class),
		HammerID:   make(map[EntityID]int),
		Keyvalues:  make(map[EntityID]Keyvalues),
		IsTrigger:  make(map[EntityID]struct{}),
		IsSolid:    make(map[EntityID]struct{}),
		IsDisabled: make(map[EntityID]struct{}),
		Worldspawn: Keyvalues{},
	}
}

// NewEntity returns a new unique entity ID
func (w *World) NewEntity() EntityID {
	id := w.nextID
	w.nextID++
	return id
}

// DestroyEntity removes all components for an entity
func (w *World) DestroyEntity(id EntityID) {
	delete(w.Transform, id)
	delete(w.Collision, id)
	delete(w.Class, id)
	delete(w.HammerID, id)
	delete(w.Keyvalues, id)
	delete(w.IsTrigger, id)
	delete(w.IsSolid, id)
	delete(w.IsDisabled, id)
}

// Exists checks if an entity has a Transform component
func (w *World) Exists(id EntityID) bool {
	if id == 0 {
		return false
	}
	_, ok := w.Transform[id]
	return ok
}

// SpawnInfo describes an entity as it comes out of a map file
type SpawnInfo struct {
	Classname  string
	Targetname string
	HammerID   int
	Origin     geom.Vector
	Angles     geom.QAngle
	Bounds     geom.BBox
	Keyvalues  map[string]string
}

// Spawn creates an entity from spawn info. Classnames starting with
// "trigger_" get the trigger tag, "func_brush" and "func_wall" are solid.
func (w *World) Spawn(info SpawnInfo) EntityID {
	id := w.NewEntity()

	w.Transform[id] = Transform{Origin: info.Origin, Angles: info.Angles}
	w.Collision[id] = Collision{Bounds: info.Bounds}
	w.Class[id] = Class{Classname: info.Classname, Targetname: info.Targetname}
	w.HammerID[id] = info.HammerID
	w.Keyvalues[id] = NewKeyvalues(info.Keyvalues)

	switch {
	case strings.HasPrefix(info.Classname, "trigger_"):
		w.IsTrigger[id] = struct{}{}
		if w.Keyvalues[id].Bool("StartDisabled", false) {
			w.IsDisabled[id] = struct{}{}
		}
	case info.Classname == "func_brush", info.Classname == "func_wall":
		w.IsSolid[id] = struct{}{}
	}

	return id
}

// CreateTrigger creates a trigger volume with the given classname
func (w *World) CreateTrigger(classname, targetname string, origin geom.Vector, bounds geom.BBox, kv map[string]string) EntityID {
	return w.Spawn(SpawnInfo{
		Classname:  classname,
		Targetname: targetname,
		Origin:     origin,
		Bounds:     bounds,
		Keyvalues:  kv,
	})
}

// CreateTarget creates a point entity such as a teleport destination
func (w *World) CreateTarget(classname, targetname string, origin geom.Vector, angles geom.QAngle) EntityID {
	return w.Spawn(SpawnInfo{
		Classname:  classname,
		Targetname: targetname,
		Origin:     origin,
		Angles:     angles,
	})
}

// CreateSolid creates a solid brush the movement solver collides with
func (w *World) CreateSolid(origin geom.Vector, bounds geom.BBox) EntityID {
	return w.Spawn(SpawnInfo{
		Classname: "func_brush",
		Origin:    origin,
		Bounds:    bounds,
	})
}

// FindByName returns the first live entity with the given targetname.
// Lookup is case-insensitive and the lowest ID wins.
func (w *World) FindByName(name string) EntityID {
	if name == "" {
		return 0
	}
	var found EntityID
	for id, class := range w.Class {
		if !strings.EqualFold(class.Targetname, name) {
			continue
		}
		if found == 0 || id < found {
			found = id
		}
	}
	return found
}

// Classname returns the entity's classname or "" if it doesn't exist
func (w *World) Classname(id EntityID) string {
	return w.Class[id].Classname
}

// Origin returns the entity's absolute origin
func (w *World) Origin(id EntityID) geom.Vector {
	return w.Transform[id].Origin
}

// SetDisabled toggles the disabled tag on a trigger
func (w *World) SetDisabled(id EntityID, disabled bool) {
	if disabled {
		w.IsDisabled[id] = struct{}{}
		return
	}
	delete(w.IsDisabled, id)
}

// PassesTriggerFilters reports whether a trigger is live and enabled
func (w *World) PassesTriggerFilters(id EntityID) bool {
	if !w.Exists(id) {
		return false
	}
	if _, ok := w.IsTrigger[id]; !ok {
		return false
	}
	_, disabled := w.IsDisabled[id]
	return !disabled
}

// Triggers returns all trigger entity IDs in ascending order
func (w *World) Triggers() []EntityID {
	ids := make([]EntityID, 0, len(w.IsTrigger))
	for id := range w.IsTrigger {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// Entities returns every live entity ID in ascending order
func (w *World) Entities() []EntityID {
	ids := make([]EntityID, 0, len(w.Transform))
	for id := range w.Transform {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}
