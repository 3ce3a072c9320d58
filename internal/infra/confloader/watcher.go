package confloader

import (
	"context"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reports changes to a set of files.
//
// It watches each file's directory rather than the file, so replacing a
// file by rename (as most editors and ConfigMap mounts do) is seen as a
// Create of the watched name.
type Watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	logger   logger.Logger

	mu       sync.Mutex
	files    map[string]struct{}
	handlers []func(path string)

	closeOnce sync.Once
	closeErr  error
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger.
func WithWatcherLogger(l logger.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long events must settle before handlers run.
// Zero runs handlers on every event.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher with no files.
func NewWatcher(opts ...WatcherOption) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fs:       fs,
		debounce: DefaultDebounce,
		logger:   logger.Default(),
		files:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logger.Component(w.logger, "confwatch")
	return w, nil
}

// Watch adds files. Their directories must exist.
func (w *Watcher) Watch(paths ...string) error {
	for _, p := range paths {
		p = filepath.Clean(p)
		if err := w.fs.Add(filepath.Dir(p)); err != nil {
			return err
		}
		w.mu.Lock()
		w.files[p] = struct{}{}
		w.mu.Unlock()
		w.logger.Debug("watching file", "path", p)
	}
	return nil
}

// OnChange adds a handler. Handlers run on the Run goroutine, one path at
// a time.
func (w *Watcher) OnChange(fn func(path string)) {
	w.mu.Lock()
	w.handlers = append(w.handlers, fn)
	w.mu.Unlock()
}

// Run delivers changes until ctx ends or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	changed := make(map[string]struct{})
	settle := time.NewTimer(time.Hour)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			name := filepath.Clean(ev.Name)
			if (!ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create)) || !w.watched(name) {
				continue
			}
			w.logger.Debug("file changed", "path", name, "op", ev.Op.String())
			if w.debounce <= 0 {
				w.dispatch(name)
				continue
			}
			changed[name] = struct{}{}
			settle.Reset(w.debounce)

		case <-settle.C:
			for name := range changed {
				delete(changed, name)
				w.dispatch(name)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", "error", err)

		case <-ctx.Done():
			return
		}
	}
}

// Close stops watching. Run returns soon after. It is safe to call more
// than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.fs.Close()
	})
	return w.closeErr
}

func (w *Watcher) watched(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.files[path]
	return ok
}

func (w *Watcher) dispatch(path string) {
	w.mu.Lock()
	handlers := slices.Clone(w.handlers)
	w.mu.Unlock()

	for _, fn := range handlers {
		fn(path)
	}
}
