package timer

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// FormatTime renders seconds as mm:ss.mmm, or h:mm:ss.mmm past an hour.
// Without precise the milliseconds are dropped.
func FormatTime(t float64, precise bool) string {
	total := int(math.Round(t * 1000))
	ms := total % 1000
	total /= 1000
	seconds := total % 60
	total /= 60
	minutes := total % 60
	hours := total / 60

	switch {
	case hours == 0 && precise:
		return fmt.Sprintf("%02d:%02d.%03d", minutes, seconds, ms)
	case hours == 0:
		return fmt.Sprintf("%d:%02d", minutes, seconds)
	case precise:
		return fmt.Sprintf("%d:%02d:%02d.%03d", hours, minutes, seconds, ms)
	default:
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
}

// FormatDiffTime renders a signed difference, e.g. "+00:01.250"
func FormatDiffTime(diff float64, precise bool) string {
	if diff > 0 {
		return "+" + FormatTime(diff, precise)
	}
	return "-" + FormatTime(-diff, precise)
}

// SanitizeMessage strips control characters and colour tag braces from
// player-provided text before it is embedded in a chat line.
func SanitizeMessage(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || r == '{' || r == '}' {
			return -1
		}
		return r
	}, s)
}

func (ct CompareType) diffLabel() string {
	switch ct {
	case CompareSPB:
		return "Server PB"
	case CompareGPB:
		return "Global PB"
	case CompareSR:
		return "SR"
	case CompareWR:
		return "WR"
	default:
		return ""
	}
}

// diffText is the coloured comparison suffix, or "" without a reference
func (t *Timer) diffText(current, reference float64) string {
	if reference <= 0 {
		return ""
	}
	diff := current - reference
	colour := "{lightred}"
	if diff < 0 {
		colour = "{green}"
	}
	return fmt.Sprintf(" {grey}[%s %s%s{grey}]", t.currentCompare.diffLabel(), colour, FormatDiffTime(diff, true))
}

// comparable reports whether the run can be compared at all. Styled runs
// never are.
func (t *Timer) comparable() bool {
	return t.Course() != nil && t.host.StyleCount() == 0
}

func (t *Timer) currentKey() PBKey {
	return NewPBKey(t.host.ModeID(), t.currentCourseGUID)
}

func (t *Timer) showSplitText(number int) {
	if !t.comparable() {
		return
	}
	current := t.splitZoneTimes[number-1]
	text := FormatTime(current, true)
	if t.lastSplit != 0 {
		text += fmt.Sprintf(" {grey}({default}%s{grey})", FormatDiffTime(current-t.splitZoneTimes[t.lastSplit-1], true))
	}
	pbDiff := ""
	if pb := t.compareTarget(t.currentKey()); pb != nil {
		pbDiff = t.diffText(current, timeAt(pb.SplitZoneTimes, number-1))
	}
	t.printer.PrintChat(fmt.Sprintf("{grey}Split {default}%d{grey}: {default}%s%s", number, text, pbDiff))
}

func (t *Timer) showCheckpointText(number int) {
	if !t.comparable() {
		return
	}
	current := t.cpZoneTimes[number-1]
	text := FormatTime(current, true)
	if t.lastCheckpoint != 0 {
		text += fmt.Sprintf(" {grey}({default}%s{grey})", FormatDiffTime(current-t.cpZoneTimes[t.lastCheckpoint-1], true))
	}
	pbDiff := ""
	if pb := t.compareTarget(t.currentKey()); pb != nil {
		pbDiff = t.diffText(current, timeAt(pb.CPZoneTimes, number-1))
	}
	t.printer.PrintChat(fmt.Sprintf("{grey}Checkpoint {default}%d{grey}: {default}%s%s", number, text, pbDiff))
}

func (t *Timer) showStageText() {
	if !t.comparable() {
		return
	}
	idx := t.currentStage - 1
	current := t.stageZoneTimes[idx]
	pbDiff := ""
	if pb := t.compareTarget(t.currentKey()); pb != nil {
		pbDiff = t.diffText(current, timeAt(pb.StageZoneTimes, idx))
	}
	t.printer.PrintChat(fmt.Sprintf("{grey}Stage {default}%d{grey}: {default}%s%s", t.currentStage, FormatTime(current, true), pbDiff))
}

// StartSpeedText describes the horizontal speed the run started with,
// base velocity included.
func (t *Timer) StartSpeedText() string {
	pawn := t.host.Pawn()
	speed := pawn.Velocity.Add(pawn.BaseVelocity).Length2D()
	return fmt.Sprintf("{grey}Start speed: {default}%.0f", speed)
}

// RunMetadata returns the JSON saved with the current run's time
func (t *Timer) RunMetadata() string {
	md := RunMetadata{
		CPZoneTimes:    append([]float64{}, t.cpZoneTimes...),
		StageZoneTimes: append([]float64{}, t.stageZoneTimes...),
	}
	data, err := json.Marshal(md)
	if err != nil {
		t.logger.Error("failed to encode run metadata", "err", err)
		return ""
	}
	return string(data)
}

// CheckMissedTime announces, once per run, that the run is already slower
// than the comparison target.
func (t *Timer) CheckMissedTime() {
	if !t.running || !t.announceMissedTime || !t.comparable() {
		return
	}
	pb := t.compareTarget(t.currentKey())
	if pb == nil || pb.Time <= 0 || t.currentTime <= pb.Time {
		return
	}
	t.printer.PrintChat(fmt.Sprintf("{grey}Missed %s {grey}({default}%s{grey})",
		t.currentCompare.diffLabel(), FormatTime(pb.Time, true)))
	t.announceMissedTime = false
	t.playMissedTimeSound()
}
