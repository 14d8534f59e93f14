package supervisor

import "fmt"

// State is the lifecycle phase of a supervised process.
type State int

const (
	// Idle means the process has not been started.
	Idle State = iota
	// Running means the process was spawned and has not been reaped.
	Running
	// Exited means the process has been reaped and its exit code is final.
	Exited
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Exited:
		return "exited"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}
