// Package command renders an rsync invocation into an argument vector.
//
// A Spec describes one synchronization: source operand(s), a destination,
// an optional remote host on one side, and named options in insertion order.
// Build turns a Spec into Args:
//
//	[executable, source, dest, option...]
//
// Options are rendered as "--name value", "--name", "-n value" or "-n".
// Rendering is deterministic and free of side effects; no shell escaping is
// performed.
package command

import (
	"github.com/input-output-hk/catalyst-forge-libs/rsync/errors"
)

// DefaultExecutable is resolved through PATH when no executable is configured.
const DefaultExecutable = "rsync"

// Spec is the configuration of one rsync invocation.
type Spec struct {
	// Source is one or more source paths.
	Source Path

	// Dest is the destination path.
	Dest string

	// Executable is the program to run. Defaults to DefaultExecutable.
	Executable string

	// SourceRemote qualifies Source with a host, e.g. "user@host".
	SourceRemote string

	// DestRemote qualifies Dest with a host. Mutually exclusive with SourceRemote.
	DestRemote string

	// Options are rendered after the operands in insertion order.
	Options []Option
}

// SpecOption configures a Spec in NewSpec.
type SpecOption func(*Spec)

// WithExecutable sets the program path. An empty path keeps the default.
func WithExecutable(path string) SpecOption {
	return func(s *Spec) {
		if path != "" {
			s.Executable = path
		}
	}
}

// WithSourceRemote marks the source as living on host.
func WithSourceRemote(host string) SpecOption {
	return func(s *Spec) {
		s.SourceRemote = host
	}
}

// WithDestRemote marks the destination as living on host.
func WithDestRemote(host string) SpecOption {
	return func(s *Spec) {
		s.DestRemote = host
	}
}

// WithOption appends a named option.
func WithOption(name string, v Value) SpecOption {
	return func(s *Spec) {
		s.Options = append(s.Options, Option{Name: name, Value: v})
	}
}

// WithFlag appends value-less options.
func WithFlag(names ...string) SpecOption {
	return func(s *Spec) {
		for _, name := range names {
			s.Options = append(s.Options, Option{Name: name, Value: Flag()})
		}
	}
}

// WithInclude appends "--include <pattern>" entries.
func WithInclude(patterns ...string) SpecOption {
	return WithOption("include", List(patterns...))
}

// WithExclude appends "--exclude <pattern>" entries.
func WithExclude(patterns ...string) SpecOption {
	return WithOption("exclude", List(patterns...))
}

// NewSpec builds and validates a Spec. It fails with an INVALID_CONFIGURATION
// error when both sides are remote, when an operand is missing, or when an
// option name cannot be rendered.
func NewSpec(source Path, dest string, opts ...SpecOption) (*Spec, error) {
	s := &Spec{
		Source:     source,
		Dest:       dest,
		Executable: DefaultExecutable,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the Spec invariants.
func (s *Spec) Validate() error {
	if s == nil {
		return errors.New(errors.CodeInvalidConfig, "sync spec is nil")
	}
	if s.SourceRemote != "" && s.DestRemote != "" {
		return errors.NewWithContext(errors.CodeInvalidConfig, "source and dest cannot both be remote",
			map[string]any{"source_remote": s.SourceRemote, "dest_remote": s.DestRemote})
	}
	if len(Flatten(s.Source)) == 0 {
		return errors.New(errors.CodeInvalidConfig, "at least one source path is required")
	}
	if s.Dest == "" {
		return errors.New(errors.CodeInvalidConfig, "destination path is required")
	}
	for _, opt := range s.Options {
		if err := ValidateName(opt.Name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Spec) executable() string {
	if s.Executable == "" {
		return DefaultExecutable
	}
	return s.Executable
}

// ShellCommand returns the rendered vector joined with spaces, suitable for
// pasting into a terminal when no path needs quoting.
func (s *Spec) ShellCommand() (string, error) {
	args, err := Build(s)
	if err != nil {
		return "", err
	}
	return args.String(), nil
}
