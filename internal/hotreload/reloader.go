// Package hotreload re-applies a configuration file when it changes on disk.
package hotreload

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the reloader waits after the last write.
const DefaultDebounce = 500 * time.Millisecond

// Reloader watches a single file and calls reload after it settles.
// The parent directory is watched so editors that replace the file by
// rename are still seen.
type Reloader struct {
	watcher  *fsnotify.Watcher
	path     string
	reload   func() error
	debounce time.Duration
	logger   *zap.Logger
}

// New creates a Reloader for path.
func New(path string, reload func() error, debounce time.Duration, logger *zap.Logger) (*Reloader, error) {
	if path == "" {
		return nil, fmt.Errorf("hotreload: empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("hotreload: resolve %q: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", filepath.Dir(abs), err)
	}

	return &Reloader{
		watcher:  watcher,
		path:     abs,
		reload:   reload,
		debounce: debounce,
		logger:   logger,
	}, nil
}

// Run blocks until ctx is cancelled, reloading on every settled change.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	var (
		mu       sync.Mutex
		debounce *time.Timer
	)
	defer func() {
		mu.Lock()
		if debounce != nil {
			debounce.Stop()
		}
		mu.Unlock()
	}()

	r.logger.Info("watching policy file", zap.String("path", r.path))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != r.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			mu.Lock()
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(r.debounce, r.fire)
			mu.Unlock()

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

// Close releases the watcher of a Reloader that was never run.
func (r *Reloader) Close() error {
	return r.watcher.Close()
}

func (r *Reloader) fire() {
	if err := r.reload(); err != nil {
		r.logger.Error("hot-reload failed", zap.String("path", r.path), zap.Error(err))
		return
	}
	r.logger.Info("hot-reload: policy reloaded", zap.String("path", r.path))
}
