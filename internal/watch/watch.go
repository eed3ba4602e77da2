// Package watch re-runs work when a file changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before a change fires.
const DefaultDebounce = 100 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// Debounce collapses bursts of events. Zero uses DefaultDebounce.
	Debounce time.Duration
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Watcher reports debounced changes of a single file.
//
// The parent directory is watched rather than the file itself, so editors
// that save by writing a temp file and renaming it are still seen.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
}

// New starts watching path. Events are delivered once Run is called; the
// watch itself is active when New returns.
func New(path string, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	return &Watcher{
		path:     abs,
		debounce: debounce,
		logger:   logger,
		fsw:      fsw,
	}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Run calls onChange after each burst of changes to the file until ctx is
// done. Calls are serialized on Run's goroutine. An error from onChange is
// logged and watching continues. Run closes the watcher before returning.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context) error) error {
	defer func() { _ = w.fsw.Close() }()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("file event", slog.String("file", event.Name), slog.String("op", event.Op.String()))

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := onChange(ctx); err != nil {
				if errors.Is(err, context.Canceled) && ctx.Err() != nil {
					return nil
				}
				w.logger.Error("change handler failed", slog.String("file", w.path), slog.Any("error", err))
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", slog.Any("error", err))
		}
	}
}

// Close stops watching without running. It is not needed after Run.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
