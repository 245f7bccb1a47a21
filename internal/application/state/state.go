package state

// RunState is where a player's run timer currently is
type RunState int

const (
	StateIdle RunState = iota
	StateRunning
	StatePaused
)

// String returns the string representation of the run state
func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StatePaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// Of derives the run state from the timer's running and paused flags. A
// player can be paused without a run; that still reads as Paused.
func Of(running, paused bool) RunState {
	switch {
	case paused:
		return StatePaused
	case running:
		return StateRunning
	default:
		return StateIdle
	}
}
