package timer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/younwookim/surftimer/internal/domain/mapping"
)

// CompareType is the tier a run is compared against. Tiers are ordered so
// that a preference acts as a ceiling when probing down.
type CompareType int

const (
	CompareNone CompareType = iota
	CompareSPB              // local (server) personal best
	CompareGPB              // global personal best
	CompareSR               // server record
	CompareWR               // world record
	compareTypeCount
)

// String returns the string representation of the compare type
func (c CompareType) String() string {
	switch c {
	case CompareNone:
		return "None"
	case CompareSPB:
		return "Server PB"
	case CompareGPB:
		return "Global PB"
	case CompareSR:
		return "SR"
	case CompareWR:
		return "WR"
	default:
		return "Unknown"
	}
}

// ParseCompareType accepts off|none|spb|gpb|pb|sr|wr, case-insensitively
func ParseCompareType(s string) (CompareType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none":
		return CompareNone, true
	case "spb":
		return CompareSPB, true
	case "gpb", "pb":
		return CompareGPB, true
	case "sr":
		return CompareSR, true
	case "wr":
		return CompareWR, true
	default:
		return compareTypeCount, false
	}
}

// PBKey packs a mode ID and a course GUID into one map key
type PBKey uint64

// NewPBKey builds the key for a mode and course
func NewPBKey(modeID, courseGUID uint32) PBKey {
	return PBKey(modeID) | PBKey(courseGUID)<<32
}

// ModeID returns the mode half of the key
func (k PBKey) ModeID() uint32 { return uint32(k) }

// CourseGUID returns the course half of the key
func (k PBKey) CourseGUID() uint32 { return uint32(k >> 32) }

// PBData is a cached best run. Zone time slices hold -1 for zones the run
// has no time for.
type PBData struct {
	Time           float64
	Points         float64
	SplitZoneTimes []float64
	CPZoneTimes    []float64
	StageZoneTimes []float64
}

func timeAt(times []float64, i int) float64 {
	if i < 0 || i >= len(times) {
		return -1
	}
	return times[i]
}

// RunMetadata is the JSON stored alongside a time
type RunMetadata struct {
	CPZoneTimes    []float64 `json:"cpZoneTimes"`
	StageZoneTimes []float64 `json:"stageZoneTimes"`
}

// fill sets the cached times from metadata, sized to the course
func (pb *PBData) fill(time float64, course *mapping.Course, metadata string) error {
	pb.Time = time
	pb.SplitZoneTimes = filled(course.SplitCount)
	pb.CPZoneTimes = filled(course.CheckpointCount)
	pb.StageZoneTimes = filled(course.StageCount)
	if metadata == "" {
		return nil
	}

	var md RunMetadata
	if err := json.Unmarshal([]byte(metadata), &md); err != nil {
		return fmt.Errorf("failed to parse run metadata: %w", err)
	}
	for i := range pb.CPZoneTimes {
		pb.CPZoneTimes[i] = timeAt(md.CPZoneTimes, i)
	}
	for i := range pb.StageZoneTimes {
		pb.StageZoneTimes[i] = timeAt(md.StageZoneTimes, i)
	}
	return nil
}

func filled(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = -1
	}
	return out
}

// RecordCache holds the server and world records of the current map. It is
// shared by every timer and cleared at round boundaries.
type RecordCache struct {
	sr     map[PBKey]*PBData
	wr     map[PBKey]*PBData
	timers map[*Timer]struct{}
}

// NewRecordCache creates an empty cache
func NewRecordCache() *RecordCache {
	return &RecordCache{
		sr:     make(map[PBKey]*PBData),
		wr:     make(map[PBKey]*PBData),
		timers: make(map[*Timer]struct{}),
	}
}

func (c *RecordCache) register(t *Timer)   { c.timers[t] = struct{}{} }
func (c *RecordCache) unregister(t *Timer) { delete(c.timers, t) }

// Clear forgets every record and every registered timer's local PBs
func (c *RecordCache) Clear() {
	clear(c.sr)
	clear(c.wr)
	for t := range c.timers {
		t.ClearPBCache()
	}
}

// InsertRecord caches a record: global records go to the WR tier, the rest
// to SR.
func (c *RecordCache) InsertRecord(time float64, course *mapping.Course, modeID uint32, global bool, metadata string) error {
	key := NewPBKey(modeID, course.GUID)
	target := c.sr
	if global {
		target = c.wr
	}
	pb := &PBData{}
	target[key] = pb
	return pb.fill(time, course, metadata)
}

// ServerRecord returns the cached SR for key, or nil
func (c *RecordCache) ServerRecord(key PBKey) *PBData { return c.sr[key] }

// WorldRecord returns the cached WR for key, or nil
func (c *RecordCache) WorldRecord(key PBKey) *PBData { return c.wr[key] }

// InsertPBToCache caches one of the player's own bests
func (t *Timer) InsertPBToCache(time float64, course *mapping.Course, modeID uint32, global bool, metadata string, points float64) error {
	key := NewPBKey(modeID, course.GUID)
	target := t.localPBs
	if global {
		target = t.globalPBs
	}
	pb := &PBData{Points: points}
	target[key] = pb
	return pb.fill(time, course, metadata)
}

// ClearPBCache forgets the player's local PBs
func (t *Timer) ClearPBCache() {
	clear(t.localPBs)
}

// GlobalCachedPB returns the player's cached global PB, or nil
func (t *Timer) GlobalCachedPB(course *mapping.Course, modeID uint32) *PBData {
	return t.globalPBs[NewPBKey(modeID, course.GUID)]
}

// LocalCachedPB returns the player's cached local PB, or nil
func (t *Timer) LocalCachedPB(course *mapping.Course, modeID uint32) *PBData {
	return t.localPBs[NewPBKey(modeID, course.GUID)]
}

func (t *Timer) compareTargetForType(ct CompareType, key PBKey) *PBData {
	switch ct {
	case CompareWR:
		return t.records.wr[key]
	case CompareSR:
		return t.records.sr[key]
	case CompareGPB:
		return t.globalPBs[key]
	case CompareSPB:
		return t.localPBs[key]
	}
	return nil
}

// UpdateCurrentCompareType probes WR, SR, global PB and local PB in that
// order, starting at the preferred tier, and settles on the first tier
// that has data for key.
func (t *Timer) UpdateCurrentCompareType(key PBKey) {
	for ct := t.preferredCompare; ct > CompareNone; ct-- {
		if t.compareTargetForType(ct, key) != nil {
			t.currentCompare = ct
			return
		}
	}
	t.currentCompare = CompareNone
}

func (t *Timer) compareTarget(key PBKey) *PBData {
	return t.compareTargetForType(t.currentCompare, key)
}
