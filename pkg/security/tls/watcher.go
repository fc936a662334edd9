package tls

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce is the quiet period before a change is reported.
const DefaultWatchDebounce = 100 * time.Millisecond

// Watcher reports changes to served certificate and key files. The
// Dispatcher is immutable, so a change only produces a warning that a
// restart is required to serve the new material.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	files    map[string]bool
	debounce time.Duration
	onChange func(path string)

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithChangeHook registers fn to be called once per debounced change.
func WithChangeHook(fn func(path string)) WatcherOption {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithDebounce overrides DefaultWatchDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher watches the directories containing files. Directories are
// watched rather than the files themselves so that atomic replacement by
// rename is seen.
func NewWatcher(files []string, logger *slog.Logger, opts ...WatcherOption) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		logger:   logger,
		files:    make(map[string]bool),
		debounce: DefaultWatchDebounce,
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}

	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to resolve %q: %w", f, err)
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to watch directory %q: %w", dir, err)
		}
	}

	return w, nil
}

// Run processes file events until ctx is canceled, then releases the
// underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}
			path, err := filepath.Abs(event.Name)
			if err != nil || !w.files[path] {
				continue
			}
			w.trigger(path, event.Op)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("certificate watcher error", "error", err)
		}
	}
}

// trigger reports path after the debounce interval, coalescing bursts.
func (w *Watcher) trigger(path string, op fsnotify.Op) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		w.logger.Warn("certificate file changed on disk, restart to serve it",
			"path", path,
			"op", op.String(),
		)
		if w.onChange != nil {
			w.onChange(path)
		}
	})
}

func (w *Watcher) close() {
	w.mu.Lock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.watcher.Close()
}
