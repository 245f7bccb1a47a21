package timer

import (
	"github.com/younwookim/surftimer/internal/domain/entity"
	"github.com/younwookim/surftimer/internal/domain/geom"
)

// Pause freezes the player and the run
func (t *Timer) Pause() {
	if !t.CanPause(true) {
		return
	}
	if !t.listeners.allow(func(l Listener) bool { return l.OnPause(t) }) {
		t.printf("{grey}You can't pause right now.")
		t.playErrorSound()
		return
	}

	pawn := t.host.Pawn()
	t.paused = true
	t.pausedOnLadder = pawn.MoveType == entity.MoveTypeLadder
	t.lastDuckValue = pawn.DuckAmount
	t.lastStaminaValue = pawn.Stamina
	pawn.Velocity = geom.Vector{}
	pawn.MoveType = entity.MoveTypeNone
	pawn.GravityScale = 0
	t.markPaused()

	t.listeners.each(func(l Listener) { l.OnPausePost(t) })
}

// CanPause reports whether Pause would succeed. During a run the player
// can't pause right after resuming or while moving through the air.
func (t *Timer) CanPause(showError bool) bool {
	if t.paused {
		return false
	}
	if !t.running {
		return true
	}

	refuse := func(msg string) bool {
		if showError {
			t.printf("%s", msg)
			t.playErrorSound()
		}
		return false
	}
	if t.hasResumedInThisRun && t.globals.CurTime-t.lastResumeTime < PauseCooldown {
		return refuse("{grey}You just resumed, wait a moment before pausing.")
	}
	pawn := t.host.Pawn()
	if !pawn.OnGround() && !pawn.Velocity.IsZero() {
		return refuse("{grey}You can't pause in midair.")
	}
	return true
}

// Resume unfreezes the player. force skips the cooldown but not listener
// vetoes.
func (t *Timer) Resume(force bool) {
	if !t.paused {
		return
	}
	if !force && !t.CanResume(true) {
		return
	}
	if !t.listeners.allow(func(l Listener) bool { return l.OnResume(t) }) {
		t.printf("{grey}You can't resume right now.")
		t.playErrorSound()
		return
	}

	pawn := t.host.Pawn()
	if t.pausedOnLadder {
		pawn.MoveType = entity.MoveTypeLadder
	} else {
		pawn.MoveType = entity.MoveTypeWalk
	}
	// Pausing inside geometry must not let the player noclip out
	pawn.CollisionGroup = entity.CollisionGroupPlayer

	t.paused = false
	t.markResumed()
	t.restoreMoveState()

	t.listeners.each(func(l Listener) { l.OnResumePost(t) })
}

// CanResume reports whether Resume would succeed without force
func (t *Timer) CanResume(showError bool) bool {
	if t.running && t.hasPausedInThisRun && t.globals.CurTime-t.lastPauseTime < PauseCooldown {
		if showError {
			t.printf("{grey}You just paused, wait a moment before resuming.")
			t.playErrorSound()
		}
		return false
	}
	return true
}

// TogglePause pauses or resumes
func (t *Timer) TogglePause() {
	if t.paused {
		t.Resume(false)
	} else {
		t.Pause()
	}
}

func (t *Timer) markPaused() {
	if t.running {
		t.hasPausedInThisRun = true
		t.lastPauseTime = t.globals.CurTime
	}
}

func (t *Timer) markResumed() {
	if t.running {
		t.hasResumedInThisRun = true
		t.lastResumeTime = t.globals.CurTime
	}
}

func (t *Timer) restoreMoveState() {
	pawn := t.host.Pawn()
	pawn.DuckAmount = t.lastDuckValue
	pawn.Stamina = t.lastStaminaValue
}
