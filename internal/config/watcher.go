package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher watches definition files matching a glob and notifies callbacks
// after changes settle.
type Watcher struct {
	watcher   *fsnotify.Watcher
	pattern   string
	baseDir   string
	callbacks []func()
	mu        sync.RWMutex
	debounce  time.Duration
	logger    *zap.Logger
	done      chan struct{}
	stopOnce  sync.Once
}

// NewWatcher creates a watcher for pattern. Nothing is watched until Start.
func NewWatcher(pattern string, logger *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))

	return &Watcher{
		watcher:  fsWatcher,
		pattern:  filepath.Clean(pattern),
		baseDir:  filepath.FromSlash(base),
		debounce: 500 * time.Millisecond,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// OnChange registers a callback for definition changes
func (w *Watcher) OnChange(callback func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start watches the pattern's base directory and every directory below it.
func (w *Watcher) Start() error {
	err := filepath.WalkDir(w.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	go w.watch()
	return nil
}

func (w *Watcher) watch() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-w.done:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.watcher.Add(event.Name); err != nil {
						w.logger.Warn("failed to watch directory", zap.String("dir", event.Name), zap.Error(err))
					}
					continue
				}
			}

			if !w.matches(event.Name) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounceDuration(), w.notify)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("definition watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) matches(name string) bool {
	ok, err := doublestar.PathMatch(w.pattern, filepath.Clean(name))
	return err == nil && ok
}

func (w *Watcher) notify() {
	select {
	case <-w.done:
		return
	default:
	}

	w.mu.RLock()
	callbacks := make([]func(), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	w.logger.Info("definition files changed", zap.String("pattern", w.pattern))

	for _, cb := range callbacks {
		cb()
	}
}

// Stop stops watching for changes
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

// SetDebounce sets the debounce duration for file changes. It may be called
// while the watcher is running; the new value applies to the next change.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

func (w *Watcher) debounceDuration() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.debounce
}
