package episode

// State is a phase of an episode.
type State int

// The episode states. The last three are terminal.
const (
	StateResetting State = iota
	StateAwaitingMotion
	StateInProgress
	StateSucceeded
	StateCollided
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateResetting:
		return "resetting"
	case StateAwaitingMotion:
		return "awaiting_motion"
	case StateInProgress:
		return "in_progress"
	case StateSucceeded:
		return "succeeded"
	case StateCollided:
		return "collided"
	case StateTimedOut:
		return "timeout"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends an episode.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateCollided || s == StateTimedOut
}

// classify returns the terminal state of a finished tracking loop. A collision wins over a
// timeout.
func classify(collided bool, elapsed, deadline float64) State {
	switch {
	case collided:
		return StateCollided
	case elapsed >= deadline:
		return StateTimedOut
	default:
		return StateSucceeded
	}
}
