// Package executor runs short-lived commands to completion and captures their
// output. It serves the one-shot rsync calls that do not need supervision,
// such as "rsync --version" or an itemized dry run, with optional retries,
// environment overrides and context cancellation.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/input-output-hk/catalyst-forge-libs/rsync/errors"
)

// Result holds the output and exit status of a command execution.
type Result struct {
	Stdout   string
	Stderr   string
	Combined string
	ExitCode int
	Attempts int
	Err      error
}

// Executor defines the interface for command execution.
type Executor interface {
	// Execute runs a command with the given options.
	Execute(ctx context.Context, opts ...Option) (*Result, error)

	// ExecuteWithInput runs a command with input on stdin.
	ExecuteWithInput(ctx context.Context, input string, opts ...Option) (*Result, error)
}

// CommandExecutor implements Executor for one program and argument list.
type CommandExecutor struct {
	program string
	args    []string
	options *Options
}

// Options configures command execution behavior.
type Options struct {
	// Output handling
	CaptureStdout   bool
	CaptureStderr   bool
	CaptureCombined bool

	// Retry configuration. A failed attempt is retried when RetryOn is nil
	// or returns true for it.
	MaxRetries int
	RetryDelay time.Duration
	RetryOn    func(*Result) bool

	// Working directory
	WorkingDir string

	// Environment variables, appended to the current environment
	Env map[string]string

	// Extra writers that receive a copy of the output
	StdoutWriter io.Writer
	StderrWriter io.Writer

	Logger *slog.Logger
}

// Option is a function that modifies Options.
type Option func(*Options)

// DefaultOptions returns default execution options.
func DefaultOptions() *Options {
	return &Options{
		CaptureStdout: true,
		CaptureStderr: true,
		RetryDelay:    time.Second,
		Env:           make(map[string]string),
	}
}

// New creates a CommandExecutor.
func New(program string, args ...string) *CommandExecutor {
	return &CommandExecutor{
		program: program,
		args:    args,
		options: DefaultOptions(),
	}
}

// NewWrappedExecutor creates an executor bound to one program, typically the
// rsync binary.
func NewWrappedExecutor(program string, opts ...Option) *WrappedExecutor {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return &WrappedExecutor{
		program: program,
		options: options,
	}
}

// WrappedExecutor runs different argument lists against the same program.
type WrappedExecutor struct {
	program string
	options *Options
}

// Program returns the wrapped program.
func (w *WrappedExecutor) Program() string {
	return w.program
}

// Command creates an executor for the wrapped program with specific arguments.
func (w *WrappedExecutor) Command(args ...string) *CommandExecutor {
	return &CommandExecutor{
		program: w.program,
		args:    args,
		options: w.options,
	}
}

// Execute runs the wrapped program with args.
func (w *WrappedExecutor) Execute(
	ctx context.Context,
	args []string,
	opts ...Option,
) (*Result, error) {
	result, err := w.Command(args...).Execute(ctx, opts...)
	if err != nil {
		return result, fmt.Errorf("failed to execute %s with args %v: %w", w.program, args, err)
	}
	return result, nil
}

// Execute implements the Executor interface.
func (c *CommandExecutor) Execute(ctx context.Context, opts ...Option) (*Result, error) {
	return c.ExecuteWithInput(ctx, "", opts...)
}

// ExecuteWithInput implements the Executor interface with stdin support.
// Failed attempts are retried with a constant delay up to MaxRetries times.
// The returned error is an EXECUTION_FAILED error for a non-zero exit and a
// SPAWN_FAILED error when the program could not be started, which is never
// retried.
func (c *CommandExecutor) ExecuteWithInput(
	ctx context.Context,
	input string,
	opts ...Option,
) (*Result, error) {
	options := c.mergeOptions(opts...)

	var policy backoff.BackOff = backoff.WithContext(backoff.NewConstantBackOff(options.RetryDelay), ctx)
	policy = backoff.WithMaxRetries(policy, uint64(max(options.MaxRetries, 0)))

	attempts := 0
	var last *Result
	operation := func() error {
		attempts++
		result, err := c.executeOnce(ctx, input, options)
		result.Attempts = attempts
		last = result
		if err == nil {
			return nil
		}
		if errors.HasCode(err, errors.CodeSpawnFailed) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if options.RetryOn != nil && !options.RetryOn(result) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		if options.Logger != nil {
			options.Logger.WarnContext(ctx, "command failed, retrying",
				"program", c.program,
				"attempt", attempts,
				"retry_in", next,
				"error", err)
		}
	}

	err := backoff.RetryNotify(operation, policy, notify)
	return last, err
}

// setupCommand configures the exec.Cmd with working directory, environment, and input.
func (c *CommandExecutor) setupCommand(cmd *exec.Cmd, input string, options *Options) {
	if options.WorkingDir != "" {
		cmd.Dir = options.WorkingDir
	}

	if len(options.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range options.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}
}

// setupOutputCapture configures stdout and stderr writers for the command.
func (c *CommandExecutor) setupOutputCapture(
	cmd *exec.Cmd,
	options *Options,
) (stdout, stderr, combined *bytes.Buffer) {
	stdout, stderr, combined = &bytes.Buffer{}, &bytes.Buffer{}, &bytes.Buffer{}

	var stdoutWriters, stderrWriters []io.Writer
	switch {
	case options.CaptureCombined:
		stdoutWriters = append(stdoutWriters, combined)
		stderrWriters = append(stderrWriters, combined)
	default:
		if options.CaptureStdout {
			stdoutWriters = append(stdoutWriters, stdout)
		}
		if options.CaptureStderr {
			stderrWriters = append(stderrWriters, stderr)
		}
	}
	if options.StdoutWriter != nil {
		stdoutWriters = append(stdoutWriters, options.StdoutWriter)
	}
	if options.StderrWriter != nil {
		stderrWriters = append(stderrWriters, options.StderrWriter)
	}

	if len(stdoutWriters) > 0 {
		cmd.Stdout = io.MultiWriter(stdoutWriters...)
	}
	if len(stderrWriters) > 0 {
		cmd.Stderr = io.MultiWriter(stderrWriters...)
	}
	return stdout, stderr, combined
}

func (c *CommandExecutor) executeOnce(
	ctx context.Context,
	input string,
	options *Options,
) (*Result, error) {
	//nolint:gosec // program and arguments are the caller's configuration.
	cmd := exec.CommandContext(ctx, c.program, c.args...)

	c.setupCommand(cmd, input, options)
	stdout, stderr, combined := c.setupOutputCapture(cmd, options)

	if options.Logger != nil {
		options.Logger.DebugContext(ctx, "executing command", "program", c.program, "args", c.args)
	}

	if err := cmd.Start(); err != nil {
		wrapped := errors.WrapWithContext(err, errors.CodeSpawnFailed, "failed to start command",
			map[string]any{"program": c.program})
		return &Result{ExitCode: -1, Err: wrapped}, wrapped
	}
	err := cmd.Wait()

	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Combined: combined.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return result, nil
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		result.ExitCode = -1
	}

	result.Err = errors.WrapWithContext(err, errors.CodeExecutionFailed, "command execution failed",
		map[string]any{"program": c.program, "exit_code": result.ExitCode})
	return result, result.Err
}

func (c *CommandExecutor) mergeOptions(opts ...Option) *Options {
	merged := *c.options
	merged.Env = make(map[string]string, len(c.options.Env))
	for k, v := range c.options.Env {
		merged.Env[k] = v
	}

	for _, opt := range opts {
		opt(&merged)
	}
	return &merged
}

// WithCapture configures output capture.
func WithCapture(stdout, stderr, combined bool) Option {
	return func(o *Options) {
		o.CaptureStdout = stdout
		o.CaptureStderr = stderr
		o.CaptureCombined = combined
	}
}

// WithRetry retries a failed attempt up to maxRetries times, delay apart.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(o *Options) {
		o.MaxRetries = maxRetries
		o.RetryDelay = delay
	}
}

// WithRetryCondition limits retries to results for which fn returns true.
func WithRetryCondition(fn func(*Result) bool) Option {
	return func(o *Options) {
		o.RetryOn = fn
	}
}

// WithWorkingDir sets the working directory.
func WithWorkingDir(dir string) Option {
	return func(o *Options) {
		o.WorkingDir = dir
	}
}

// WithEnv adds environment variables.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string)
		}
		for k, v := range env {
			o.Env[k] = v
		}
	}
}

// WithEnvVar adds a single environment variable.
func WithEnvVar(key, value string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string)
		}
		o.Env[key] = value
	}
}

// WithStdoutWriter tees stdout into w.
func WithStdoutWriter(w io.Writer) Option {
	return func(o *Options) {
		o.StdoutWriter = w
	}
}

// WithStderrWriter tees stderr into w.
func WithStderrWriter(w io.Writer) Option {
	return func(o *Options) {
		o.StderrWriter = w
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// SilentMode captures stdout and stderr separately, replacing an earlier
// combined capture.
func SilentMode() Option {
	return func(o *Options) {
		o.CaptureStdout = true
		o.CaptureStderr = true
		o.CaptureCombined = false
	}
}
