package core

// Status represents the lifecycle state of a simulation.
//
// The lifecycle is pending → generating_personas → ready → running →
// {completed | stopped | error}. Transitions are monotonic; the three
// terminal statuses are never left.
type Status string

const (
	// StatusPending is the initial status after creation.
	StatusPending Status = "pending"
	// StatusGeneratingPersonas is set while the persona batch is generated.
	StatusGeneratingPersonas Status = "generating_personas"
	// StatusReady is set once personas and empty conversations exist.
	StatusReady Status = "ready"
	// StatusRunning is set while conversation drivers are executing.
	StatusRunning Status = "running"
	// StatusCompleted is the terminal status of a fully finished run.
	StatusCompleted Status = "completed"
	// StatusStopped is the terminal status after a cooperative stop.
	StatusStopped Status = "stopped"
	// StatusError is the terminal status after an unrecoverable failure.
	StatusError Status = "error"
)

// Terminal reports whether no further transition may leave the status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusStopped, StatusError:
		return true
	}
	return false
}

// String returns the wire representation of the status.
func (s Status) String() string { return string(s) }
