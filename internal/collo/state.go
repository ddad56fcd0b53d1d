package collo

// State is a task's position in its lifecycle.
type State int

const (
	StatePending State = iota
	StateInputsResolved
	StateSubprocessRunning
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateInputsResolved:
		return "INPUTS_RESOLVED"
	case StateSubprocessRunning:
		return "SUBPROCESS_RUNNING"
	case StateSucceeded:
		return "SUCCEEDED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Observer is told about every state a task enters. It is called
// synchronously from the runner's goroutine.
type Observer func(c Context, s State)
