package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Reloader re-reads the config file.
type Reloader interface {
	Reload(ctx context.Context) error
}

// ConfigWatcher reloads the config when the file is edited outside the app.
// It watches the parent directory so editors that replace the file by rename
// are seen too.
type ConfigWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	reloader Reloader
	debounce time.Duration
	logger   *zap.Logger
}

// NewConfigWatcher creates a watcher for the config file at path.
func NewConfigWatcher(path string, reloader Reloader, debounce time.Duration, logger *zap.Logger) *ConfigWatcher {
	return &ConfigWatcher{
		path:     filepath.Clean(path),
		reloader: reloader,
		debounce: debounce,
		logger:   orNop(logger),
	}
}

// Watch starts receiving events for the config directory. Run calls it if
// it has not been called yet.
func (w *ConfigWatcher) Watch() error {
	if w.watcher != nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.watcher = watcher
	w.logger.Debug("watching config", zap.String("path", w.path))
	return nil
}

// Run reloads on config changes until ctx is cancelled.
func (w *ConfigWatcher) Run(ctx context.Context) error {
	if err := w.Watch(); err != nil {
		return err
	}
	watcher := w.watcher
	defer func() {
		watcher.Close()
		w.watcher = nil
	}()

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			pending = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", zap.Error(err))

		case <-pending:
			pending = nil
			w.reload(ctx)
		}
	}
}

func (w *ConfigWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}

func (w *ConfigWatcher) reload(ctx context.Context) {
	w.logger.Debug("config changed on disk", zap.String("path", w.path))
	if err := w.reloader.Reload(ctx); err != nil {
		w.logger.Warn("config reload failed", zap.Error(err))
	}
}
