// Package watch re-runs scripts when their files change on disk.
// Editors typically replace files on save, so the watch is on the
// containing directory with events filtered by base name.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config configures a script file watcher.
type Config struct {
	// DebounceInterval is the quiet period after a change before the
	// callback fires. Multiple rapid changes coalesce into one event.
	// Default: 300ms.
	DebounceInterval time.Duration

	// OnChange is called, debounced, when a watched file changed.
	OnChange func(path string)

	// OnError is called on watcher errors.
	OnError func(err error)

	// Logger for structured logging.
	Logger *slog.Logger
}

// Watcher monitors script files for changes.
type Watcher struct {
	config  Config
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	mu       sync.Mutex
	files    map[string]bool      // absolute path -> watched
	pending  map[string]time.Time // path -> last change time
	stopCh   chan struct{}
	doneCh   chan struct{}
	watching bool
}

// NewWatcher creates a watcher for the given script files.
func NewWatcher(paths []string, config Config) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}
	if config.DebounceInterval == 0 {
		config.DebounceInterval = 300 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	files := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = fsWatcher.Close()
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		files[abs] = true
	}

	return &Watcher{
		config:  config,
		watcher: fsWatcher,
		logger:  config.Logger,
		files:   files,
		pending: make(map[string]time.Time),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start begins watching. Call Stop to halt.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.watching = true
	w.mu.Unlock()

	dirs := make(map[string]bool)
	for path := range w.files {
		dirs[filepath.Dir(path)] = true
	}
	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.logger.Debug("watching directory", "path", dir)
	}

	go w.eventLoop(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop halts the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.watching {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	return w.watcher.Close()
}

func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			close(w.doneCh)
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			w.mu.Lock()
			watched := w.files[abs]
			w.mu.Unlock()
			if !watched {
				continue
			}

			// Write, create and rename cover saves by truncation and by
			// replacement.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.mu.Lock()
				w.pending[abs] = time.Now()
				w.mu.Unlock()
				w.logger.Debug("script file changed", "path", abs, "op", event.Op.String())
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("fsnotify error", "error", err)
			if w.config.OnError != nil {
				w.config.OnError(err)
			}
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.processPending()
		}
	}
}

func (w *Watcher) processPending() {
	w.mu.Lock()
	now := time.Now()
	var toProcess []string
	for path, lastChange := range w.pending {
		if now.Sub(lastChange) >= w.config.DebounceInterval {
			toProcess = append(toProcess, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range toProcess {
		if w.config.OnChange != nil {
			w.config.OnChange(path)
		}
	}
}
