package supervisor

import "time"

// Observer receives lifecycle notifications. Calls happen outside the
// supervisor's lock and Exited is called from the goroutine that reaps the
// child.
type Observer interface {
	Started(pid int)
	Exited(exitCode int, elapsed time.Duration)
}
