package mediasync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// watcherDebounceInterval is how often pending filesystem events are
	// checked for quiescence.
	watcherDebounceInterval = 500 * time.Millisecond

	// watcherQuietPeriod is how long the folder must stay unchanged
	// before a pending trigger fires. Batches a burst of writes (a large
	// copy, an export) into one sync run.
	watcherQuietPeriod = 2 * time.Second
)

// Watcher monitors the local folder and fires a trigger once the folder
// has been quiet after a change. The sync engine re-plans the whole
// folder on each trigger, so individual event payloads are irrelevant;
// only "something changed" matters.
type Watcher struct {
	dir    string
	logger *slog.Logger

	watcher  *fsnotify.Watcher
	triggers chan struct{}

	// Debounce state. Touched only by the Watch goroutine.
	dirty     bool
	lastEvent time.Time
}

// NewWatcher creates a watcher for dir. Triggers are delivered on the
// channel returned by Triggers.
func NewWatcher(dir string, logger *slog.Logger) *Watcher {
	return &Watcher{
		dir:      dir,
		logger:   logger,
		triggers: make(chan struct{}, 1),
	}
}

// Triggers returns the channel that fires after the watched folder
// changed and then went quiet. Capacity one: triggers arriving while a
// sync is still running coalesce into a single pending trigger.
func (w *Watcher) Triggers() <-chan struct{} {
	return w.triggers
}

// Watch blocks until the context is cancelled, watching the folder
// recursively and debouncing change events into triggers.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	w.watcher = watcher
	defer watcher.Close()

	if err := w.addRecursive(w.dir); err != nil {
		return fmt.Errorf("watching folder: %w", err)
	}

	w.logger.Info("folder watcher started", slog.String("dir", w.dir))

	ticker := time.NewTicker(watcherDebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed unexpectedly")
			}

			if w.shouldIgnore(event.Name) {
				continue
			}

			w.noteChange(time.Now())

			// A new directory must be watched immediately or files created
			// inside it are missed. Lstat so symlinks pointing outside the
			// folder are not followed.
			if event.Has(fsnotify.Create) {
				info, err := os.Lstat(event.Name)
				if err == nil && info.IsDir() && info.Mode()&os.ModeSymlink == 0 {
					_ = w.addRecursive(event.Name)
				}
			}

			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				_ = watcher.Remove(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed unexpectedly")
			}

			w.logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-ticker.C:
			w.maybeFire(time.Now())
		}
	}
}

// noteChange records that the folder changed at now, restarting the
// quiet period.
func (w *Watcher) noteChange(now time.Time) {
	w.dirty = true
	w.lastEvent = now
}

// maybeFire fires a trigger when a change is pending and the folder has
// been quiet long enough. Reports whether the quiet period had elapsed;
// the trigger send itself is non-blocking, so firing into an undrained
// channel coalesces with the pending trigger.
func (w *Watcher) maybeFire(now time.Time) bool {
	if !w.dirty || now.Sub(w.lastEvent) < watcherQuietPeriod {
		return false
	}

	w.dirty = false

	select {
	case w.triggers <- struct{}{}:
		w.logger.Debug("change trigger fired")
	default:
		// A trigger is already pending; the next run picks up
		// these changes too.
	}

	return true
}

// addRecursive watches dir and every non-ignored directory beneath it.
// An unreadable subdirectory is logged and skipped, matching the sync
// walker's tolerance; only a failure on dir itself aborts.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}

			w.logger.Warn("skipping unwatchable directory",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)

			return filepath.SkipDir
		}

		if !d.IsDir() {
			return nil
		}

		if w.shouldIgnore(path) {
			return filepath.SkipDir
		}

		if d.Type()&os.ModeSymlink != 0 {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			if path == dir {
				return err
			}

			w.logger.Warn("skipping unwatchable directory",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)

			return filepath.SkipDir
		}

		return nil
	})
}

func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}

	// Editor and download temp files.
	if strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".part") || strings.HasSuffix(base, ".crdownload") {
		return true
	}

	return false
}
