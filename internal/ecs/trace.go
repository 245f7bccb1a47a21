package ecs

import (
	"math"
	"sort"

	"github.com/younwookim/surftimer/internal/domain/geom"
)

// DistEpsilon is how far a solid trace stops short of the surface it hits
const DistEpsilon = 0.03125

// TraceHit describes one entity intersected by a swept box
type TraceHit struct {
	Entity     EntityID
	Fraction   float64
	Normal     geom.Vector
	StartPos   geom.Vector
	EndPos     geom.Vector
	StartSolid bool
}

// TraceResult is the outcome of a trace against solid geometry
type TraceResult struct {
	TraceHit
	Hit bool
}

// TraceTriggers sweeps bounds from start to end and returns every live
// trigger touched along the way, ordered by fraction then entity ID.
// A zero-length trace is a plain overlap test.
func (w *World) TraceTriggers(start, end geom.Vector, bounds geom.BBox) []TraceHit {
	var hits []TraceHit
	for id := range w.IsTrigger {
		tr, ok := w.Transform[id]
		if !ok {
			continue
		}
		box := w.Collision[id].AbsBox(tr.Origin).Expand(bounds)
		hit, ok := sweep(start, end, box, true)
		if !ok {
			continue
		}
		hit.Entity = id
		hits = append(hits, hit)
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Fraction != hits[j].Fraction {
			return hits[i].Fraction < hits[j].Fraction
		}
		return hits[i].Entity < hits[j].Entity
	})
	return hits
}

// TraceSolid sweeps bounds from start to end against solid entities and
// returns the first blocking hit. Ties go to the lowest entity ID.
func (w *World) TraceSolid(start, end geom.Vector, bounds geom.BBox) TraceResult {
	result := TraceResult{TraceHit: TraceHit{Fraction: 1, StartPos: start, EndPos: end}}
	ids := make([]EntityID, 0, len(w.IsSolid))
	for id := range w.IsSolid {
		ids = append(ids, id)
	}
	sortIDs(ids)

	for _, id := range ids {
		tr, ok := w.Transform[id]
		if !ok {
			continue
		}
		box := w.Collision[id].AbsBox(tr.Origin).Expand(bounds)
		hit, ok := sweep(start, end, box, false)
		if !ok {
			continue
		}
		if hit.StartSolid {
			hit.Entity = id
			hit.Fraction = 0
			hit.EndPos = start
			return TraceResult{TraceHit: hit, Hit: true}
		}
		if !result.Hit || hit.Fraction < result.Fraction {
			hit.Entity = id
			result = TraceResult{TraceHit: hit, Hit: true}
		}
	}

	if result.Hit {
		length := end.Sub(start).Length()
		if length > 0 {
			result.Fraction = math.Max(0, result.Fraction-DistEpsilon/length)
		}
		result.EndPos = start.Add(end.Sub(start).Scale(result.Fraction))
	}
	return result
}

// sweep intersects the segment start->end with box using the slab method.
// With inclusive set, resting exactly on a face counts as touching.
func sweep(start, end geom.Vector, box geom.BBox, inclusive bool) (TraceHit, bool) {
	delta := end.Sub(start)
	enter, exit := math.Inf(-1), math.Inf(1)
	normal := geom.Vector{}
	inside := true

	for axis := 0; axis < 3; axis++ {
		s := start.At(axis)
		d := delta.At(axis)
		lo, hi := box.Mins.At(axis), box.Maxs.At(axis)

		if s <= lo || s >= hi {
			if !(inclusive && (s == lo || s == hi)) {
				inside = false
			}
		}

		if d == 0 {
			if inclusive {
				if s < lo || s > hi {
					return TraceHit{}, false
				}
			} else if s <= lo || s >= hi {
				return TraceHit{}, false
			}
			continue
		}

		t1 := (lo - s) / d
		t2 := (hi - s) / d
		n := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			n = 1.0
		}
		if t1 > enter {
			enter = t1
			normal = geom.Vector{}.With(axis, n)
		}
		if t2 < exit {
			exit = t2
		}
		if enter > exit {
			return TraceHit{}, false
		}
	}

	if exit < 0 || (!inclusive && exit <= 0) || enter > 1 {
		return TraceHit{}, false
	}

	if inside || enter < 0 {
		return TraceHit{Fraction: 0, StartPos: start, EndPos: start, StartSolid: true}, true
	}

	return TraceHit{
		Fraction: enter,
		Normal:   normal,
		StartPos: start,
		EndPos:   start.Add(delta.Scale(enter)),
	}, true
}

func sortIDs(ids []EntityID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
