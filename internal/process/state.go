package process

// State represents the lifecycle of a process handle.
type State int

const (
	// StateNotStarted is the initial state before the process is spawned.
	StateNotStarted State = iota

	// StateRunning indicates the process was spawned and has not exited.
	StateRunning

	// StateTerminating indicates a graceful shutdown was requested.
	StateTerminating

	// StateExited indicates the process has exited or failed to spawn.
	StateExited
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateTerminating:
		return "terminating"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// IsAlive returns true if the process may still be running.
func (s State) IsAlive() bool {
	return s == StateRunning || s == StateTerminating
}

// IsTerminal returns true if the handle will not change state again.
func (s State) IsTerminal() bool {
	return s == StateExited
}
