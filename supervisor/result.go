package supervisor

import (
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/rsync/command"
)

// Result describes a finished run.
type Result struct {
	// Args is the rendered argument vector that was executed.
	Args command.Args

	// ExitCode is the literal exit code, or TerminatedExitCode.
	ExitCode int

	// Description is rsync's explanation of ExitCode.
	Description string

	// Duration is the time between spawn and reap.
	Duration time.Duration

	// LastLine is the final non-empty output line, read before release.
	LastLine string

	// OutputPath is the kept output file. Empty for ephemeral output.
	OutputPath string

	// Err is an EXECUTION_FAILED error when ExitCode is not zero.
	Err error

	// ReleaseErr is set when the output file could not be released cleanly.
	ReleaseErr error
}

// Success reports whether the process exited with code zero.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}
