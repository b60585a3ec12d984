package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/kubegate/kubegate/internal/logging"
)

// Watcher reloads the configuration file on change and hands resolved
// snapshots to subscribers. Write bursts from editors and orchestrators
// are debounced; a file that no longer parses keeps the previous
// snapshot in effect.
type Watcher struct {
	fs       *fsnotify.Watcher
	loader   *Loader
	path     string
	debounce time.Duration

	mu          sync.RWMutex
	subscribers []func(*Resolved)
	last        *Config
}

// NewWatcher creates a watcher for the given config file and performs
// the initial load.
func NewWatcher(path string) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fs:       fs,
		loader:   NewLoader(),
		path:     path,
		debounce: 500 * time.Millisecond,
	}

	cfg, err := w.loader.Load(path)
	if err != nil {
		fs.Close()
		return nil, err
	}
	w.last = cfg

	return w, nil
}

// OnChange registers a subscriber for resolved snapshots.
func (w *Watcher) OnChange(fn func(*Resolved)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, fn)
}

// Start begins watching. The containing directory is watched rather
// than the file itself so atomic rename-into-place updates are seen.
func (w *Watcher) Start() error {
	if err := w.fs.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	var timer *time.Timer

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logging.Error("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := w.loader.Load(w.path)
	if err != nil {
		logging.Error("failed to reload config", zap.Error(err))
		return
	}

	resolved := cfg.Resolve()
	if resolved.Err != nil {
		logging.Warn("reloaded configuration is invalid",
			zap.String("path", w.path),
			zap.Error(resolved.Err),
		)
	} else {
		logging.Info("configuration reloaded", zap.String("path", w.path))
	}

	w.mu.Lock()
	w.last = cfg
	subscribers := make([]func(*Resolved), len(w.subscribers))
	copy(subscribers, w.subscribers)
	w.mu.Unlock()

	for _, fn := range subscribers {
		fn(resolved)
	}
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last
}

// Stop stops watching for changes.
func (w *Watcher) Stop() error {
	return w.fs.Close()
}

// SetDebounce overrides the reload debounce interval.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}
