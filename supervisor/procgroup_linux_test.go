//go:build linux

package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// gone reports whether pid no longer runs. Zombies count as gone since an
// orphaned grandchild may wait for a reaper that never comes in a container.
func gone(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return true
	}
	// The state field follows the parenthesised command name.
	fields := strings.Fields(string(data[strings.LastIndexByte(string(data), ')')+1:]))
	return len(fields) == 0 || fields[0] == "Z" || fields[0] == "X"
}

func TestTerminate_KillsProcessGroup(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "grandchild.pid")
	script := fmt.Sprintf("sleep 100 & echo $! > %s; wait", pidFile)
	sup := newSupervisor(t, shellSpec(t, script))

	require.NoError(t, sup.Start(context.Background()))

	var grandchild int
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(pidFile)
		if err != nil {
			return false
		}
		grandchild, err = strconv.Atoi(strings.TrimSpace(string(data)))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	pgid, err := unix.Getpgid(sup.PID())
	require.NoError(t, err)
	assert.Equal(t, sup.PID(), pgid)

	childPgid, err := unix.Getpgid(grandchild)
	require.NoError(t, err)
	assert.Equal(t, pgid, childPgid)

	require.NoError(t, sup.Terminate())

	code, err := sup.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TerminatedExitCode, code)
	assert.Equal(t, Exited, sup.State())

	assert.Eventually(t, func() bool { return gone(grandchild) }, 5*time.Second, 20*time.Millisecond)
}
