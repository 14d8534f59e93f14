// Package watch re-runs a synchronization when its local sources change.
//
// A Watcher watches source directories recursively, batches filesystem
// events over a debounce window and then calls its trigger. Changes that
// arrive while a trigger is running are coalesced into a single follow-up
// run.
//
//	w, err := watch.New([]string{"/home/me/Pictures"}, func(ctx context.Context) error {
//	    _, err := supervisor.Run(ctx, spec)
//	    return err
//	})
//	if err != nil {
//	    return err
//	}
//	return w.Run(ctx)
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/input-output-hk/catalyst-forge-libs/rsync/errors"
)

// DefaultDebounce is how long the watcher waits for events to settle.
const DefaultDebounce = 2 * time.Second

// DefaultIgnore lists base-name patterns that never trigger a run.
var DefaultIgnore = []string{".git", "*.swp", "*.tmp", "*~"}

// Trigger performs one synchronization.
type Trigger func(ctx context.Context) error

// Watcher watches paths and calls a Trigger after they change.
type Watcher struct {
	paths    []string
	trigger  Trigger
	debounce time.Duration
	ignore   []string
	logger   *slog.Logger

	fsw       *fsnotify.Watcher
	closeOnce sync.Once
	closeErr  error
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a run. Non-positive values keep
// the default.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithIgnore replaces the ignore patterns. Patterns are matched against the
// base name of each event path with filepath.Match.
func WithIgnore(patterns ...string) Option {
	return func(w *Watcher) {
		w.ignore = append([]string(nil), patterns...)
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New creates a Watcher and registers every path with the kernel, so
// changes made after New returns are observed. Directories are watched
// recursively; plain files are watched on their own.
func New(paths []string, trigger Trigger, opts ...Option) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, errors.New(errors.CodeInvalidInput, "no paths to watch")
	}
	if trigger == nil {
		return nil, errors.New(errors.CodeInvalidInput, "trigger is nil")
	}

	w := &Watcher{
		paths:    append([]string(nil), paths...),
		trigger:  trigger,
		debounce: DefaultDebounce,
		ignore:   DefaultIgnore,
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeIO, "failed to create filesystem watcher")
	}
	w.fsw = fsw

	for _, p := range w.paths {
		if err := w.add(p); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Paths returns the watched roots.
func (w *Watcher) Paths() []string {
	return append([]string(nil), w.paths...)
}

func (w *Watcher) add(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return errors.WrapWithContext(err, errors.CodeInvalidInput, "cannot watch path",
			map[string]any{"path": root})
	}
	if !info.IsDir() {
		if err := w.fsw.Add(root); err != nil {
			return errors.WrapWithContext(err, errors.CodeIO, "cannot watch path",
				map[string]any{"path": root})
		}
		return nil
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped; the root itself was stat'ed above.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return errors.WrapWithContext(err, errors.CodeIO, "cannot watch directory",
				map[string]any{"path": path})
		}
		return nil
	})
}

func (w *Watcher) ignored(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.ignore {
		if base == pattern {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// Run processes events until ctx is cancelled or the Watcher is closed. It
// waits for a run in progress to return before returning itself, and closes
// the Watcher.
// Trigger errors are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.Close() }()

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		running bool
		pending bool
		done    = make(chan struct{}, 1)
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	start := func() {
		running = true
		go func() {
			defer func() { done <- struct{}{} }()
			w.fire(ctx)
		}()
	}

	wait := func() {
		if running {
			<-done
		}
	}

	for {
		select {
		case <-ctx.Done():
			wait()
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				wait()
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.add(event.Name); err != nil && w.logger != nil {
						w.logger.WarnContext(ctx, "failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer, timerC = nil, nil
			if running {
				pending = true
				continue
			}
			start()

		case <-done:
			running = false
			if pending {
				pending = false
				start()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				wait()
				return nil
			}
			if w.logger != nil {
				w.logger.ErrorContext(ctx, "filesystem watcher error", "error", err)
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if w.ignored(event.Name) {
		return false
	}
	// Events inside ignored directories arrive only for files already being
	// watched, so their parents are checked too.
	for _, root := range w.paths {
		rel, err := filepath.Rel(root, event.Name)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		for _, part := range strings.Split(filepath.Dir(rel), string(filepath.Separator)) {
			if part != "." && w.ignored(part) {
				return false
			}
		}
	}
	return true
}

func (w *Watcher) fire(ctx context.Context) {
	if w.logger != nil {
		w.logger.InfoContext(ctx, "sources changed, synchronizing")
	}
	start := time.Now()
	if err := w.trigger(ctx); err != nil {
		if w.logger != nil {
			w.logger.ErrorContext(ctx, "synchronization failed", "error", err, "elapsed", time.Since(start))
		}
		return
	}
	if w.logger != nil {
		w.logger.InfoContext(ctx, "synchronization finished", "elapsed", time.Since(start))
	}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		if err := w.fsw.Close(); err != nil {
			w.closeErr = errors.Wrap(err, errors.CodeIO, "failed to close filesystem watcher")
		}
	})
	return w.closeErr
}
