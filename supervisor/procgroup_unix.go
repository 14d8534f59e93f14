//go:build unix

package supervisor

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// groupAttr places the child in a new process group whose id equals its pid.
func groupAttr() *syscall.SysProcAttr {
	return &unix.SysProcAttr{Setpgid: true}
}

func terminateGroup(p *os.Process) error {
	return signalGroup(p.Pid, unix.SIGTERM)
}

func killGroup(p *os.Process) error {
	return signalGroup(p.Pid, unix.SIGKILL)
}

// signalGroup delivers sig to every member of the group. A group that is
// already gone is not an error.
func signalGroup(pgid int, sig unix.Signal) error {
	err := unix.Kill(-pgid, sig)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
