package timer

import "slices"

// Listener observes timer events. The bool-returning methods run before the
// event and any of them can veto it; the rest run after it happened.
type Listener interface {
	OnTimerStart(t *Timer, courseGUID uint32) bool
	OnTimerStartPost(t *Timer, courseGUID uint32)
	OnTimerEnd(t *Timer, courseGUID uint32, time float64) bool
	OnTimerEndPost(t *Timer, courseGUID uint32, time float64)
	OnTimerStopped(t *Timer, courseGUID uint32)
	OnTimerInvalidated(t *Timer)
	OnPause(t *Timer) bool
	OnPausePost(t *Timer)
	OnResume(t *Timer) bool
	OnResumePost(t *Timer)
}

// BaseListener allows everything and ignores every event. Embed it to
// implement only the events you care about.
type BaseListener struct{}

func (BaseListener) OnTimerStart(*Timer, uint32) bool        { return true }
func (BaseListener) OnTimerStartPost(*Timer, uint32)         {}
func (BaseListener) OnTimerEnd(*Timer, uint32, float64) bool { return true }
func (BaseListener) OnTimerEndPost(*Timer, uint32, float64)  {}
func (BaseListener) OnTimerStopped(*Timer, uint32)           {}
func (BaseListener) OnTimerInvalidated(*Timer)               {}
func (BaseListener) OnPause(*Timer) bool                     { return true }
func (BaseListener) OnPausePost(*Timer)                      {}
func (BaseListener) OnResume(*Timer) bool                    { return true }
func (BaseListener) OnResumePost(*Timer)                     {}

// Listeners is the ordered set of registered listeners
type Listeners struct {
	list []Listener
}

// Register adds l. It returns false if l is already registered.
func (ls *Listeners) Register(l Listener) bool {
	if slices.Contains(ls.list, l) {
		return false
	}
	ls.list = append(ls.list, l)
	return true
}

// Unregister removes l and reports whether it was registered
func (ls *Listeners) Unregister(l Listener) bool {
	i := slices.Index(ls.list, l)
	if i < 0 {
		return false
	}
	ls.list = slices.Delete(ls.list, i, i+1)
	return true
}

// allow runs a veto check on every listener. Every listener is asked even
// after one refused.
func (ls *Listeners) allow(check func(Listener) bool) bool {
	if ls == nil {
		return true
	}
	ok := true
	for _, l := range ls.list {
		ok = check(l) && ok
	}
	return ok
}

func (ls *Listeners) each(fn func(Listener)) {
	if ls == nil {
		return
	}
	for _, l := range ls.list {
		fn(l)
	}
}
