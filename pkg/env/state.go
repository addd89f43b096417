package env

// State is the lifecycle state of the environment loop.
type State string

// Lifecycle states. SETUP moves to RUNNING on start; RUNNING and PAUSED
// alternate cooperatively; STOPPED and FAILED are terminal.
const (
	StateSetup   State = "SETUP"
	StateRunning State = "RUNNING"
	StatePaused  State = "PAUSED"
	StateStopped State = "STOPPED"
	StateFailed  State = "FAILED"
)

// IsValid checks if the state is a known value.
func (s State) IsValid() bool {
	switch s {
	case StateSetup, StateRunning, StatePaused, StateStopped, StateFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the loop has ended.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateFailed
}
