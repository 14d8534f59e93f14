// Package supervisor runs one rsync invocation as a child process and
// controls its lifecycle.
//
// The child is spawned in its own process group with stdout and stderr
// redirected to an output file. Terminate signals the whole group, so helper
// processes such as ssh go down with it. A Supervisor moves through
// Idle -> Running -> Exited exactly once:
//
//	sup, err := supervisor.New(spec)
//	if err != nil {
//		return err
//	}
//	defer sup.Close()
//
//	if err := sup.Start(ctx); err != nil {
//		return err
//	}
//	code, err := sup.Wait(ctx)
package supervisor

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/input-output-hk/catalyst-forge-libs/rsync/command"
	"github.com/input-output-hk/catalyst-forge-libs/rsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/rsync/sink"
)

// killGrace is how long RunToCompletion waits after SIGTERM before it sends
// SIGKILL to the group.
const killGrace = 5 * time.Second

// Supervisor owns one external process and its output file.
// It is safe for concurrent use.
type Supervisor struct {
	spec       *command.Spec
	outputPath string
	fs         billy.Filesystem
	logger     *slog.Logger
	observer   Observer

	sink *sink.Sink

	mu        sync.Mutex
	args      command.Args
	state     State
	cmd       *exec.Cmd
	pid       int
	exitCode  int
	startedAt time.Time
	elapsed   time.Duration
	done      chan struct{}
	closed    bool

	closeOnce sync.Once
	closeErr  error
}

// New renders spec and opens the output file. The spec must not be changed
// afterwards; use AddOption instead.
func New(spec *command.Spec, opts ...Option) (*Supervisor, error) {
	s := &Supervisor{
		spec:     spec,
		exitCode: TerminatedExitCode,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	args, err := command.Build(spec)
	if err != nil {
		return nil, err
	}
	s.args = args

	out, err := sink.Open(s.outputPath, sink.WithLogger(s.logger), sink.WithFilesystem(s.fs))
	if err != nil {
		return nil, err
	}
	s.sink = out

	return s, nil
}

// AddOption appends a rendered option to the argument vector. Entries that
// are already present are skipped, so repeated calls are harmless. Options
// can only be added before Start.
func (s *Supervisor) AddOption(name string, v command.Value) error {
	if err := command.ValidateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle || s.closed {
		return errors.NewWithContext(errors.CodeInvalidState, "options cannot be added after start",
			map[string]any{"state": s.state.String(), "option": name})
	}
	s.args = command.AddOption(s.args, name, v)
	return nil
}

// Args returns a copy of the rendered argument vector.
func (s *Supervisor) Args() command.Args {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(command.Args(nil), s.args...)
}

// String returns the command line as it would be typed into a shell.
func (s *Supervisor) String() string {
	return s.Args().String()
}

// OutputPath returns the location of the output file.
func (s *Supervisor) OutputPath() string {
	return s.sink.Path()
}

// State returns the current lifecycle phase.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PID returns the child's process id, or 0 before Start.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pid
}

// Start spawns the process. It may be called once, from Idle. The context is
// only consulted before spawning; use Terminate to stop a running process.
func (s *Supervisor) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != Idle {
		state := s.state
		s.mu.Unlock()
		return errors.NewWithContext(errors.CodeInvalidState, "process already started",
			map[string]any{"state": state.String()})
	}
	if s.closed {
		s.mu.Unlock()
		return errors.New(errors.CodeInvalidState, "supervisor is closed")
	}

	argv := command.Argv(s.spec, s.args)
	//nolint:gosec // the executable and its arguments are the caller's configuration.
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = s.sink.File()
	cmd.Stderr = s.sink.File()
	cmd.SysProcAttr = groupAttr()

	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to spawn rsync", "executable", argv[0], "error", err)
		}
		return errors.WrapWithContext(err, errors.CodeSpawnFailed, "failed to spawn process",
			map[string]any{"executable": argv[0]})
	}

	s.cmd = cmd
	s.pid = cmd.Process.Pid
	s.state = Running
	s.startedAt = time.Now()
	pid := s.pid
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.InfoContext(ctx, "rsync started",
			"pid", pid,
			"pgid", pid,
			"command", s.args.String(),
			"output", s.sink.Path())
	}
	if s.observer != nil {
		s.observer.Started(pid)
	}

	go s.waitLoop(cmd)
	return nil
}

// waitLoop reaps the child and publishes its exit code.
func (s *Supervisor) waitLoop(cmd *exec.Cmd) {
	err := cmd.Wait()

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// ExitCode is already -1 for a signal death.
			code = exitErr.ExitCode()
		} else {
			code = TerminatedExitCode
		}
	}

	s.mu.Lock()
	s.exitCode = code
	s.state = Exited
	s.elapsed = time.Since(s.startedAt)
	elapsed := s.elapsed
	pid := s.pid
	s.mu.Unlock()
	close(s.done)

	if s.logger != nil {
		s.logger.Info("rsync exited",
			"pid", pid,
			"exit_code", code,
			"description", DescribeExitCode(code),
			"elapsed", elapsed)
	}
	if s.observer != nil {
		s.observer.Exited(code, elapsed)
	}
}

// Poll reports whether the process has exited without blocking.
func (s *Supervisor) Poll() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Idle {
		return false, errors.New(errors.CodeInvalidState, "process not started")
	}
	return s.state == Exited, nil
}

// Wait blocks until the process exits and returns its exit code. When ctx is
// done first, Wait returns ctx.Err() and the process keeps running.
func (s *Supervisor) Wait(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.state == Idle {
		s.mu.Unlock()
		return TerminatedExitCode, errors.New(errors.CodeInvalidState, "process not started")
	}
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
		return s.ExitCode(), nil
	case <-ctx.Done():
		return TerminatedExitCode, ctx.Err()
	}
}

// Done returns a channel that is closed once the process has been reaped.
// It never closes for a Supervisor that is not started.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// ExitCode returns the exit code once the process has exited, and
// TerminatedExitCode before that.
func (s *Supervisor) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}

// Terminate sends SIGTERM to the process group. The process is reported as
// Exited with TerminatedExitCode once it has been reaped. Terminating a
// process that is not running sends nothing and returns a usage warning.
func (s *Supervisor) Terminate() error {
	s.mu.Lock()
	if s.state != Running {
		state := s.state
		s.mu.Unlock()
		warn := errors.NewWithContext(errors.CodeUsageWarning, "terminate called on a process that is not running",
			map[string]any{"state": state.String()})
		if s.logger != nil {
			s.logger.Warn("terminate ignored", "state", state.String())
		}
		return warn
	}
	proc := s.cmd.Process
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Info("terminating rsync process group", "pid", proc.Pid, "pgid", proc.Pid)
	}
	if err := terminateGroup(proc); err != nil {
		return errors.WrapWithContext(err, errors.CodeInternal, "failed to signal process group",
			map[string]any{"pgid": proc.Pid})
	}
	return nil
}

// kill sends SIGKILL to the process group.
func (s *Supervisor) kill() {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return
	}
	proc := s.cmd.Process
	s.mu.Unlock()

	if err := killGroup(proc); err != nil && s.logger != nil {
		s.logger.Error("failed to kill process group", "pgid", proc.Pid, "error", err)
	}
}

// HasProgress reports whether the argument vector asks rsync for progress
// output: "--progress", "-P" or an "--info" entry naming progress.
func HasProgress(args command.Args) bool {
	for _, entry := range args.Options() {
		switch {
		case entry == "--progress", entry == "-P":
			return true
		case strings.HasPrefix(entry, "--info") && strings.Contains(entry, "progress"):
			return true
		}
	}
	return false
}

// ReadLastProgressLine returns the last non-empty line of output written so
// far. Without a progress option it returns "" and a usage warning.
func (s *Supervisor) ReadLastProgressLine() (string, error) {
	s.mu.Lock()
	closed := s.closed
	progress := HasProgress(s.args)
	s.mu.Unlock()

	if !progress {
		if s.logger != nil {
			s.logger.Warn("progress requested without a progress option", "command", s.String())
		}
		return "", errors.Warning("no progress option is configured")
	}
	if closed {
		return "", errors.New(errors.CodeInvalidState, "output already released")
	}
	return s.sink.LastLine()
}

// Close releases the output file. An ephemeral file is deleted. Close does
// not stop the process and is safe to call more than once.
func (s *Supervisor) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		state := s.state
		s.mu.Unlock()

		if state == Running && s.logger != nil {
			s.logger.Warn("releasing output of a running process", "pid", s.PID())
		}
		s.closeErr = s.sink.Release()
	})
	return s.closeErr
}

// Abort terminates a running process and releases its output.
func (s *Supervisor) Abort() error {
	if err := s.Terminate(); err != nil && !errors.IsWarning(err) {
		return errors.Join(err, s.Close())
	}
	return s.Close()
}

// RunToCompletion starts the process, waits for it and releases the output.
// A non-zero exit is reported in the Result, not as an error. When ctx ends
// first the process group is terminated, reaped and ctx.Err() returned.
func (s *Supervisor) RunToCompletion(ctx context.Context) (*Result, error) {
	if err := s.Start(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	code, err := s.Wait(ctx)
	if err != nil {
		s.stop()
		_ = s.Close()
		return nil, err
	}

	res := &Result{
		Args:        s.Args(),
		ExitCode:    code,
		Description: DescribeExitCode(code),
	}
	s.mu.Lock()
	res.Duration = s.elapsed
	s.mu.Unlock()

	if line, lerr := s.sink.LastLine(); lerr == nil {
		res.LastLine = line
	}
	if s.sink.Mode() == sink.Persistent {
		res.OutputPath = s.sink.Path()
	}
	if code != 0 {
		res.Err = errors.NewWithContext(errors.CodeExecutionFailed, "rsync exited with a non-zero code",
			map[string]any{"exit_code": code, "description": res.Description})
	}

	// A release failure is logged by the sink and must not hide the outcome.
	res.ReleaseErr = s.Close()
	return res, nil
}

// stop terminates the group and waits for it to be reaped, escalating to
// SIGKILL after killGrace.
func (s *Supervisor) stop() {
	_ = s.Terminate()

	timer := time.NewTimer(killGrace)
	defer timer.Stop()

	select {
	case <-s.done:
	case <-timer.C:
		s.kill()
		<-s.done
	}
}
