package supervisor

import "fmt"

// TerminatedExitCode is reported for a process that was terminated or died
// from a signal.
const TerminatedExitCode = -1

var exitDescriptions = map[int]string{
	TerminatedExitCode: "terminated by signal",
	0:                  "success",
	1:                  "syntax or usage error",
	2:                  "protocol incompatibility",
	3:                  "errors selecting input/output files, dirs",
	4:                  "requested action not supported",
	5:                  "error starting client-server protocol",
	6:                  "daemon unable to append to log-file",
	10:                 "error in socket I/O",
	11:                 "error in file I/O",
	12:                 "error in rsync protocol data stream",
	13:                 "errors with program diagnostics",
	14:                 "error in IPC code",
	20:                 "received SIGUSR1 or SIGINT",
	21:                 "some error returned by waitpid()",
	22:                 "error allocating core memory buffers",
	23:                 "partial transfer due to error",
	24:                 "partial transfer due to vanished source files",
	25:                 "the --max-delete limit stopped deletions",
	30:                 "timeout in data send/receive",
	35:                 "timeout waiting for daemon connection",
}

// transient exit codes describe network or timing failures that may succeed
// when retried.
var transient = map[int]bool{
	10: true,
	12: true,
	30: true,
	35: true,
}

// DescribeExitCode returns rsync's description of code.
func DescribeExitCode(code int) string {
	if desc, ok := exitDescriptions[code]; ok {
		return desc
	}
	return fmt.Sprintf("unknown exit code %d", code)
}

// IsTransient reports whether a run that ended with code is worth retrying.
func IsTransient(code int) bool {
	return transient[code]
}
