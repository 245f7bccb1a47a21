package config

import (
	"errors"
	"fmt"
)

// ErrUnknownEntity is returned for map entities without a classname
var ErrUnknownEntity = errors.New("unknown entity")

// MapFile is the root config for map JSON files: the worldspawn keyvalues
// and every entity the map spawns.
type MapFile struct {
	Name       string            `json:"name" jsonschema:"minLength=1,description=Map name reported to the record store and global API"`
	Worldspawn map[string]string `json:"worldspawn" jsonschema:"description=Worldspawn keyvalues; timer_mapping_api_version selects the zone format"`
	Spawn      Vec3              `json:"spawn" jsonschema:"description=Where connecting players appear"`
	Entities   []EntityConfig    `json:"entities"`
}

// EntityConfig is one map entity
type EntityConfig struct {
	Classname  string            `json:"classname" jsonschema:"minLength=1"`
	Targetname string            `json:"targetname,omitempty"`
	HammerID   int               `json:"hammerId"`
	Origin     Vec3              `json:"origin"`
	Angles     Vec3              `json:"angles,omitempty"`
	Mins       Vec3              `json:"mins,omitempty"`
	Maxs       Vec3              `json:"maxs,omitempty"`
	Keyvalues  map[string]string `json:"keyvalues,omitempty" jsonschema:"description=Hammer keyvalues such as timer_trigger_type"`
}

// Vec3 is an x/y/z triple. Angles use it as pitch/yaw/roll.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Validate checks that every entity has a classname
func (m *MapFile) Validate() error {
	for i, e := range m.Entities {
		if e.Classname == "" {
			return fmt.Errorf("entity %d (hammerId %d): %w", i, e.HammerID, ErrUnknownEntity)
		}
	}
	return nil
}
