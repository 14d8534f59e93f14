//go:build !unix

package supervisor

import (
	"errors"
	"os"
	"syscall"
)

func groupAttr() *syscall.SysProcAttr {
	return nil
}

// Without process groups only the direct child can be signalled.
func terminateGroup(p *os.Process) error {
	return killGroup(p)
}

func killGroup(p *os.Process) error {
	err := p.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
