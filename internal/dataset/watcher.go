package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"casepulse/internal/dataprocessing"
	"casepulse/internal/infrastructure"
)

// Reloader is implemented by Store.
type Reloader interface {
	Reload(ctx context.Context) (*dataprocessing.Dataset, error)
}

// WatcherStats counts watcher activity.
type WatcherStats struct {
	Events        int
	Reloads       int
	Errors        int
	LastEventTime time.Time
	LastEventOp   string
}

// Watcher reloads the dataset when the case file changes on disk. It watches
// the file's directory so that editors which replace the file by rename, and
// a file that does not exist yet, are both picked up.
type Watcher struct {
	file     string
	dir      string
	debounce time.Duration
	target   Reloader
	logger   *slog.Logger

	ready     chan struct{}
	readyOnce sync.Once

	mu    sync.Mutex
	stats WatcherStats
}

// NewWatcher creates a watcher for file. Bursts of events closer together
// than debounce trigger a single reload.
func NewWatcher(file string, debounce time.Duration, target Reloader, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	abs, err := filepath.Abs(file)
	if err != nil {
		abs = filepath.Clean(file)
	}

	return &Watcher{
		file:     abs,
		dir:      filepath.Dir(abs),
		debounce: debounce,
		target:   target,
		logger:   logger.With("component", "dataset_watcher"),
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the directory is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Stats returns a copy of the activity counters.
func (w *Watcher) Stats() WatcherStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Run watches until ctx is cancelled. It returns an error only when the
// watch cannot be established.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.readyOnce.Do(func() { close(w.ready) })

	w.logger.InfoContext(ctx, "watching case file",
		slog.String("file", w.file),
		slog.Duration("debounce", w.debounce))

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
			w.logger.InfoContext(ctx, "file watcher stopped")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.handleEvent(ctx, event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
			w.logger.ErrorContext(ctx, "file watcher error", slog.String("error", err.Error()))

		case <-fire:
			fire = nil
			w.reload(ctx)
		}
	}
}

// handleEvent records an event and reports whether it concerns the case file.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.file {
		return false
	}

	var op string
	switch {
	case event.Has(fsnotify.Create):
		op = "create"
	case event.Has(fsnotify.Write):
		op = "write"
	case event.Has(fsnotify.Remove):
		op = "remove"
	case event.Has(fsnotify.Rename):
		op = "rename"
	default:
		return false
	}

	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventOp = op
	w.mu.Unlock()

	w.logger.DebugContext(ctx, "case file event", slog.String("op", op))
	return true
}

func (w *Watcher) reload(ctx context.Context) {
	ctx = infrastructure.EnsureTraceID(ctx)

	w.mu.Lock()
	w.stats.Reloads++
	w.mu.Unlock()

	if _, err := w.target.Reload(ctx); err != nil {
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		w.logger.WarnContext(ctx, "reload after file change failed", slog.String("error", err.Error()))
	}
}
