// Package workers contains background workers for the sweeper daemon.
package workers

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/artpar/sweeper/internal/core/manifest"
)

// ManifestWatcherConfig configures the manifest watcher worker.
type ManifestWatcherConfig struct {
	// Path is the manifest file to watch.
	Path string

	// DebounceInterval is how long to wait after the last file event
	// before reloading. Editors fire several events per save.
	// Default: 250ms.
	DebounceInterval time.Duration
}

// ManifestWatcher watches the projects manifest and hands every valid new
// version to the callback. Invalid manifests are logged and skipped; the
// daemon keeps sweeping the last good project list.
type ManifestWatcher struct {
	config   ManifestWatcherConfig
	onChange func(*manifest.Manifest)
	logger   *slog.Logger

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	timer *time.Timer
}

// NewManifestWatcher creates a manifest watcher worker.
func NewManifestWatcher(config ManifestWatcherConfig, onChange func(*manifest.Manifest), logger *slog.Logger) *ManifestWatcher {
	if config.DebounceInterval == 0 {
		config.DebounceInterval = 250 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ManifestWatcher{
		config:   config,
		onChange: onChange,
		logger:   logger.With("component", "manifest_watcher"),
	}
}

// Start begins watching in a background goroutine.
func (w *ManifestWatcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory, not the file: editors replace files on save,
	// which unregisters a direct file watch.
	if err := watcher.Add(filepath.Dir(w.config.Path)); err != nil {
		watcher.Close()
		return err
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())

	w.wg.Add(1)
	go w.run(watcher)

	w.logger.Info("manifest watcher started", "path", w.config.Path)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *ManifestWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	w.logger.Info("manifest watcher stopped")
}

// run is the fsnotify event loop.
func (w *ManifestWatcher) run(watcher *fsnotify.Watcher) {
	defer w.wg.Done()
	defer watcher.Close()

	target := filepath.Clean(w.config.Path)

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("manifest change detected", "op", event.Op.String())
			w.debounceReload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("manifest watcher error", "error", err)
		}
	}
}

// debounceReload schedules a reload, resetting the timer on every new event.
func (w *ManifestWatcher) debounceReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.config.DebounceInterval, func() {
		if w.ctx.Err() != nil {
			return
		}
		w.reload()
	})
}

// reload rereads and parses the manifest, invoking the callback on success.
func (w *ManifestWatcher) reload() {
	content, err := os.ReadFile(w.config.Path)
	if err != nil {
		w.logger.Error("failed to read manifest", "path", w.config.Path, "error", err)
		return
	}

	m, err := manifest.Parse(content)
	if err != nil {
		w.logger.Error("ignoring invalid manifest", "path", w.config.Path, "error", err)
		return
	}

	w.logger.Info("manifest reloaded", "projects", len(m.Projects))
	w.onChange(m)
}
