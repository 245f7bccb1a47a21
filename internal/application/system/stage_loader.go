package system

import (
	"github.com/younwookim/surftimer/internal/domain/geom"
	"github.com/younwookim/surftimer/internal/ecs"
	"github.com/younwookim/surftimer/internal/infrastructure/config"
)

// LoadWorld spawns every entity of a map file into a new world and returns
// the spawned IDs in file order
func LoadWorld(cfg *config.MapFile) (*ecs.World, []ecs.EntityID) {
	w := ecs.NewWorld()
	w.Worldspawn = ecs.NewKeyvalues(cfg.Worldspawn)

	ids := make([]ecs.EntityID, 0, len(cfg.Entities))
	for _, e := range cfg.Entities {
		ids = append(ids, w.Spawn(ecs.SpawnInfo{
			Classname:  e.Classname,
			Targetname: e.Targetname,
			HammerID:   e.HammerID,
			Origin:     vec(e.Origin),
			Angles:     geom.QAngle{Pitch: e.Angles.X, Yaw: e.Angles.Y, Roll: e.Angles.Z},
			Bounds:     geom.BBox{Mins: vec(e.Mins), Maxs: vec(e.Maxs)},
			Keyvalues:  e.Keyvalues,
		}))
	}
	return w, ids
}

// SpawnPoint returns where new players appear
func SpawnPoint(cfg *config.MapFile) geom.Vector {
	return vec(cfg.Spawn)
}

func vec(v config.Vec3) geom.Vector {
	return geom.Vec(v.X, v.Y, v.Z)
}
