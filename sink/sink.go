// Package sink owns the file a supervised rsync process writes its combined
// stdout and stderr into.
//
// A Sink is either ephemeral (a uuid-named file in the OS temp directory,
// removed on Release) or persistent (a caller-chosen path that is kept).
// The file is held under an exclusive advisory lock for the lifetime of the
// Sink, so two Sinks can never share one path.
package sink

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/input-output-hk/catalyst-forge-libs/rsync/errors"
)

// Mode tells whether the sink file survives Release.
type Mode int

const (
	// Ephemeral files are removed on Release.
	Ephemeral Mode = iota
	// Persistent files are left on disk.
	Persistent
)

func (m Mode) String() string {
	if m == Persistent {
		return "persistent"
	}
	return "ephemeral"
}

// Sink is an output file owned by exactly one process.
type Sink struct {
	path   string
	mode   Mode
	file   *os.File
	lock   *flock.Flock
	fs     billy.Filesystem
	logger *slog.Logger

	once       sync.Once
	releaseErr error
}

// Option configures a Sink.
type Option func(*Sink)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		s.logger = logger
	}
}

// WithFilesystem sets the filesystem the file is read back through.
// Defaults to the host filesystem. The file itself is always created and
// removed on the host, since the child process writes to its descriptor.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(s *Sink) {
		if fs != nil {
			s.fs = fs
		}
	}
}

// EphemeralPath returns a fresh path of the form <tmp>/rsync-<uuid>.log.
func EphemeralPath() string {
	return filepath.Join(os.TempDir(), "rsync-"+uuid.NewString()+".log")
}

// Open creates the sink. An empty path selects an ephemeral file; any other
// path is truncated and kept after Release. Open fails with a CONFLICT error
// when another Sink holds the path.
func Open(path string, opts ...Option) (*Sink, error) {
	s := &Sink{
		path: path,
		mode: Persistent,
		fs:   osfs.New("/"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.path == "" {
		s.path = EphemeralPath()
		s.mode = Ephemeral
	}

	s.lock = flock.New(s.path)
	locked, err := s.lock.TryLock()
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeIO, "failed to lock output file",
			map[string]any{"path": s.path})
	}
	if !locked {
		return nil, errors.NewWithContext(errors.CodeConflict, "output file is owned by another process",
			map[string]any{"path": s.path})
	}

	// Stdout and stderr of the child are handed this descriptor directly.
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		_ = s.lock.Unlock()
		return nil, errors.WrapWithContext(err, errors.CodeIO, "failed to open output file",
			map[string]any{"path": s.path})
	}
	s.file = f

	if s.logger != nil {
		s.logger.Debug("output sink opened", "path", s.path, "mode", s.mode.String())
	}
	return s, nil
}

// Path returns the file location.
func (s *Sink) Path() string { return s.path }

// Mode returns whether the file is ephemeral or persistent.
func (s *Sink) Mode() Mode { return s.mode }

// File returns the writable descriptor. It is nil after Release.
func (s *Sink) File() *os.File { return s.file }

// LastLine returns the final non-empty line written so far.
func (s *Sink) LastLine() (string, error) {
	return LastLine(s.fs, s.path)
}

// Release closes the file, drops the lock and removes an ephemeral file.
// Only the first call does any work; later calls return the same result.
func (s *Sink) Release() error {
	s.once.Do(func() {
		var errs []error
		if err := s.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %q: %w", s.path, err))
		}
		s.file = nil
		if err := s.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("unlock %q: %w", s.path, err))
		}
		if s.mode == Ephemeral {
			if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, fmt.Errorf("remove %q: %w", s.path, err))
			}
		}

		if len(errs) > 0 {
			s.releaseErr = errors.WrapWithContext(errors.Join(errs...), errors.CodeIO, "failed to release output sink",
				map[string]any{"path": s.path})
			if s.logger != nil {
				s.logger.Error("output sink release failed", "path", s.path, "error", s.releaseErr)
			}
			return
		}
		if s.logger != nil {
			s.logger.Debug("output sink released", "path", s.path, "mode", s.mode.String())
		}
	})
	return s.releaseErr
}

// LastLine reads name from fs and returns its final non-empty line. Both
// '\r' and '\n' end a line, so carriage-return progress updates are split
// the same way as ordinary output. A trailing partial line counts, and
// surrounding whitespace is trimmed.
func LastLine(fs billy.Filesystem, name string) (string, error) {
	data, err := util.ReadFile(fs, name)
	if err != nil {
		return "", fmt.Errorf("sink: read %q: %w", name, err)
	}

	end := len(data)
	for end > 0 {
		i := bytes.LastIndexAny(data[:end], "\r\n")
		line := bytes.TrimSpace(data[i+1 : end])
		if len(line) > 0 {
			return string(line), nil
		}
		if i < 0 {
			break
		}
		end = i
	}
	return "", nil
}
