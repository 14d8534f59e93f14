package supervisor

import (
	"log/slog"

	"github.com/go-git/go-billy/v5"
)

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// WithOutput writes process output to path and keeps the file after Close.
// Without it the output goes to an ephemeral file that Close removes.
func WithOutput(path string) Option {
	return func(s *Supervisor) {
		s.outputPath = path
	}
}

// WithObserver registers an Observer for start and exit events.
func WithObserver(o Observer) Option {
	return func(s *Supervisor) {
		s.observer = o
	}
}

// WithFilesystem sets the filesystem the output file is read back through.
// Creation and removal of the file always happen on the host.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(s *Supervisor) {
		s.fs = fs
	}
}
