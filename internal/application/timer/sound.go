package timer

// Sound names understood by a SoundSink
const (
	SoundStart           = "Buttons.snd9"
	SoundEnd             = "tr.ScoreRegular"
	SoundFalseEnd        = "UIPanorama.buymenu_failure"
	SoundMissedZone      = "UIPanorama.buymenu_failure"
	SoundReachSplit      = "tr.Popup"
	SoundReachCheckpoint = "tr.Popup"
	SoundReachStage      = "UIPanorama.round_report_odds_up"
	SoundStop            = "tr.PuckFail"
	SoundMissedTime      = "UI.RankDown"
	SoundError           = "Buttons.snd10"
)

// soundCooldown throttles the start and missed-time sounds
const soundCooldown = 0.15

// SoundSink plays a named sound to the player
type SoundSink interface {
	PlaySound(name string)
}

// Printer shows a chat line to the player. Lines may carry {colour} tags.
type Printer interface {
	PrintChat(msg string)
}

type silentSink struct{}

func (silentSink) PlaySound(string) {}

type discardPrinter struct{}

func (discardPrinter) PrintChat(string) {}

func (t *Timer) playStartSound() {
	now := t.globals.CurTime
	if now-t.lastStartSoundTime > soundCooldown {
		t.sounds.PlaySound(SoundStart)
		t.lastStartSoundTime = now
	}
}

func (t *Timer) playMissedTimeSound() {
	now := t.globals.CurTime
	if now-t.lastMissedTimeSoundTime > soundCooldown {
		t.sounds.PlaySound(SoundMissedTime)
		t.lastMissedTimeSoundTime = now
	}
}

func (t *Timer) playStopSound() {
	if t.playTimerStopSound {
		t.sounds.PlaySound(SoundStop)
	}
}

func (t *Timer) playErrorSound() {
	t.sounds.PlaySound(SoundError)
}
