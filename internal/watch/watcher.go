// Package watch reports changes to the image files of a single directory.
package watch

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wilbur182/pixelterm/internal/catalog"
)

// DefaultDebounce is how long the watcher waits for more events before
// signaling.
const DefaultDebounce = 100 * time.Millisecond

// Watcher monitors one directory, non-recursively. Bursts of events are
// coalesced into a single signal carrying the watched directory.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	logger    *slog.Logger
	debounce  time.Duration
	events    chan string
	stop      chan struct{}
	mu        sync.Mutex
	dir       string
	timer     *time.Timer
	closed    bool
	stopOnce  sync.Once
}

// New creates a watcher that is not yet watching anything. A debounce of
// zero uses DefaultDebounce.
func New(debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	w := &Watcher{
		fsWatcher: fsw,
		logger:    logger,
		debounce:  debounce,
		events:    make(chan string, 1),
		stop:      make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Watch switches the watcher to dir. Watching the current directory again
// is a no-op.
func (w *Watcher) Watch(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fsnotify.ErrClosed
	}
	dir = filepath.Clean(dir)
	if dir == w.dir {
		return nil
	}
	if w.dir != "" {
		_ = w.fsWatcher.Remove(w.dir)
		w.dir = ""
	}
	if err := w.fsWatcher.Add(dir); err != nil {
		return err
	}
	w.dir = dir
	if w.timer != nil {
		w.timer.Stop()
	}
	return nil
}

// Dir returns the watched directory, or "" when none.
func (w *Watcher) Dir() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dir
}

func (w *Watcher) run() {
	defer func() {
		w.mu.Lock()
		w.closed = true
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		close(w.events)
	}()

	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			w.mu.Lock()
			dir := w.dir
			if filepath.Dir(event.Name) == dir {
				w.schedule(dir)
			}
			w.mu.Unlock()
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Debug("watch error", "err", err)
		}
	}
}

// schedule restarts the debounce timer. Caller holds w.mu.
func (w *Watcher) schedule(dir string) {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.closed || w.dir != dir {
			return
		}
		select {
		case w.events <- dir:
		default: // a signal is already pending
		}
	})
}

// relevant reports whether event can change the image catalog. Chmod is
// ignored, and so are files that are not images.
func relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	return catalog.IsImageFile(event.Name)
}

// Events delivers the watched directory after its images change. It is
// closed when the watcher stops.
func (w *Watcher) Events() <-chan string {
	return w.events
}

// Stop shuts down the watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		w.fsWatcher.Close()
	})
}
