// Package seed loads a CSV from disk into the store and optionally reloads it when
// the file changes.
package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/rake220/customer-segmentation/internal/dataset"
	"github.com/rake220/customer-segmentation/pkg/logger"
	"github.com/rake220/customer-segmentation/pkg/retry"
)

type Uploader interface {
	Upload(source string, d *dataset.Dataset) string
}

type Loader struct {
	path     string
	uploader Uploader
	// reload retries a Load triggered by the watcher; writers often emit the event
	// before the file is complete.
	reload retry.Policy

	mu      sync.Mutex
	lastMod time.Time
}

func NewLoader(path string, uploader Uploader) *Loader {
	reload := retry.DefaultPolicy("seed reload")
	reload.Base = 200 * time.Millisecond
	reload.Logger = logger.Named("seed")
	return &Loader{
		path:     filepath.Clean(path),
		uploader: uploader,
		reload:   reload,
	}
}

// Load parses the seed file and replaces the stored dataset with it.
func (l *Loader) Load() error {
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat seed file: %w", err)
	}

	d, err := dataset.ParseCSV(f)
	if err != nil {
		return fmt.Errorf("failed to parse seed file %s: %w", l.path, err)
	}

	l.mu.Lock()
	l.lastMod = info.ModTime()
	l.mu.Unlock()

	version := l.uploader.Upload(l.path, d)
	logger.Info("Seed dataset loaded",
		zap.String("path", l.path),
		zap.String("version", version),
		zap.Int("rows", d.NumRows()),
	)
	return nil
}

// Watch reloads the seed file on write or create until ctx is cancelled. The parent
// directory is watched so editors that replace the file by rename are still seen.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(l.path), err)
	}
	logger.Info("Watching seed file", zap.String("path", l.path))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != l.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !l.changed() {
				continue
			}
			err := retry.Do(ctx, l.reload, func(int) error { return l.Load() })
			if err != nil {
				logger.Warn("Seed reload failed", zap.String("path", l.path), zap.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("Seed watcher error", zap.Error(err))
		}
	}
}

func (l *Loader) changed() bool {
	info, err := os.Stat(l.path)
	if err != nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return info.ModTime().After(l.lastMod)
}
