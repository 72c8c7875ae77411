package console

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/matsen/vulngraph/internal/export"
)

// DefaultWatchDebounce collapses bursts of writes into one reload.
const DefaultWatchDebounce = 200 * time.Millisecond

// Watch reloads the shared result set whenever the file at path changes,
// until ctx is canceled. The file may be any format export.ReadFile reads.
// The directory is watched rather than the file so that editors which
// replace files by renaming are seen.
func (s *Server) Watch(ctx context.Context, path string, debounce time.Duration) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	go s.watchLoop(ctx, watcher, abs, debounce)
	s.logger.Info("watching result file", zap.String("path", abs))
	return nil
}

func (s *Server) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string, debounce time.Duration) {
	defer watcher.Close()

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("file watcher error", zap.Error(err))

		case <-timer.C:
			data, err := export.ReadFile(path)
			if err != nil {
				// Partially written files are retried on the next event.
				s.logger.Warn("reloading result file", zap.String("path", path), zap.Error(err))
				continue
			}
			s.SetData(ctx, data)
		}
	}
}
