package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/evercast/internal/logger"
	"github.com/stwalsh4118/evercast/internal/models"
)

const (
	defaultPollInterval = 2 * time.Second
	debounceWindow      = 250 * time.Millisecond
	reloadTimeout       = 30 * time.Second
)

// ReloadFunc receives the catalogue after a successful re-import
type ReloadFunc func(items []models.ContentItem)

// Watcher re-imports the catalogue file whenever it changes. It watches the
// parent directory so editors that replace the file by rename are seen, and
// falls back to polling the file's size and mtime when fsnotify is unavailable.
type Watcher struct {
	path         string
	service      *Service
	onReload     ReloadFunc
	pollInterval time.Duration
	log          zerolog.Logger

	fsnotifyWatcher *fsnotify.Watcher
	stopChan        chan struct{}
	watchDone       chan struct{}

	mu        sync.Mutex
	started   bool
	stopped   bool
	dirty     bool
	lastEvent time.Time
	lastMod   time.Time
	lastSize  int64
}

// NewWatcher creates a watcher for the catalogue file at path
func NewWatcher(path string, service *Service, onReload ReloadFunc, pollInterval time.Duration) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("catalogue file path cannot be empty")
	}
	if service == nil {
		return nil, fmt.Errorf("catalogue service cannot be nil")
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalogue path: %w", err)
	}

	return &Watcher{
		path:         abs,
		service:      service,
		onReload:     onReload,
		pollInterval: pollInterval,
		log:          logger.Component("catalog_watcher"),
		stopChan:     make(chan struct{}),
		watchDone:    make(chan struct{}),
	}, nil
}

// Start begins watching in the background
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return ErrWatcherStopped
	}
	if w.started {
		return nil
	}
	w.started = true

	if info, err := os.Stat(w.path); err == nil {
		w.lastMod, w.lastSize = info.ModTime(), info.Size()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("Failed to create fsnotify watcher, falling back to polling")
	} else if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("Failed to watch catalogue directory, falling back to polling")
		_ = watcher.Close()
	} else {
		w.fsnotifyWatcher = watcher
	}

	go w.run()

	w.log.Info().
		Str("path", w.path).
		Bool("using_fsnotify", w.fsnotifyWatcher != nil).
		Msg("Catalogue watcher started")
	return nil
}

// Stop ends the watch loop and waits for it to exit
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	started := w.started
	w.mu.Unlock()

	close(w.stopChan)
	if w.fsnotifyWatcher != nil {
		if err := w.fsnotifyWatcher.Close(); err != nil {
			w.log.Warn().Err(err).Msg("Error closing fsnotify watcher")
		}
	}
	if started {
		<-w.watchDone
	}

	w.log.Debug().Str("path", w.path).Msg("Catalogue watcher stopped")
	return nil
}

func (w *Watcher) run() {
	defer close(w.watchDone)

	if w.fsnotifyWatcher != nil {
		w.watchEvents()
	} else {
		w.poll()
	}
}

func (w *Watcher) watchEvents() {
	ticker := time.NewTicker(debounceWindow)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-w.fsnotifyWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				w.markDirty()
			}
		case err, ok := <-w.fsnotifyWatcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("fsnotify error, continuing")
		case <-ticker.C:
			if w.takeDirty() {
				w.reload()
			}
		}
	}
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			info, err := os.Stat(w.path)
			if err != nil {
				continue
			}
			w.mu.Lock()
			changed := !info.ModTime().Equal(w.lastMod) || info.Size() != w.lastSize
			w.lastMod, w.lastSize = info.ModTime(), info.Size()
			w.mu.Unlock()

			if changed {
				w.reload()
			}
		}
	}
}

func (w *Watcher) markDirty() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dirty = true
	w.lastEvent = time.Now()
}

// takeDirty reports a pending change once writes have settled for a debounce window
func (w *Watcher) takeDirty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirty || time.Since(w.lastEvent) < debounceWindow {
		return false
	}
	w.dirty = false
	return true
}

func (w *Watcher) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()

	n, err := w.service.ImportFile(ctx, w.path)
	if err != nil {
		w.log.Error().Err(err).Str("path", w.path).Msg("Catalogue re-import failed, keeping previous content")
		return
	}

	items, err := w.service.Load(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Failed to load catalogue after re-import")
		return
	}

	w.log.Info().Int("imported", n).Int("items", len(items)).Msg("Catalogue reloaded")
	if w.onReload != nil {
		w.onReload(items)
	}
}
