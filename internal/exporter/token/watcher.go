package token

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/autopeer-io/tesla-exporter/pkg/log"
)

// Watcher reloads the Manager whenever the token file is replaced on disk.
type Watcher struct {
	path    string
	manager *Manager
	logger  log.Logger
}

// NewWatcher creates a watcher for the token file at path.
func NewWatcher(path string, manager *Manager) *Watcher {
	return &Watcher{
		path:    path,
		manager: manager,
		logger:  log.WithName("token").WithValues("path", path),
	}
}

// Run watches until ctx is done. The parent directory is watched rather than the file
// because atomic replacement swaps the inode the file watch would be bound to. A watch
// that cannot be set up is logged and Run returns; the manager still re-reads the
// store whenever the held refresh token is revoked.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := newDirWatcher(w.path)
	if err != nil {
		w.logger.Warn("Token file watch unavailable, changes are only picked up after a revoked refresh token", "error", err)
		return nil
	}
	defer fw.Close()

	w.logger.Info("Watching token file for changes")
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Token file watch error", "error", err)
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !matches(ev, w.path) {
				continue
			}
			if err := w.manager.Reload(ctx); err != nil {
				w.logger.Debug("Token file changed but could not be loaded", "op", ev.Op.String(), "error", err)
			}
		}
	}
}

// WaitForFile blocks until the file at path exists or timeout passes. A zero
// timeout checks once.
func WaitForFile(ctx context.Context, path string, timeout time.Duration) error {
	if exists(path) || timeout <= 0 {
		return nil
	}

	fw, err := newDirWatcher(path)
	if err != nil {
		return err
	}
	defer fw.Close()

	// The file may have appeared between the first check and adding the watch.
	if exists(path) {
		return nil
	}

	log.WithName("token").Info("Waiting for token file", "path", path, "timeout", timeout)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("token file %s did not appear within %s", path, timeout)
		case err := <-fw.Errors:
			return err
		case ev := <-fw.Events:
			if matches(ev, path) && exists(path) {
				return nil
			}
		}
	}
}

func newDirWatcher(path string) (*fsnotify.Watcher, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create token directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return fw, nil
}

func matches(ev fsnotify.Event, path string) bool {
	if filepath.Clean(ev.Name) != filepath.Clean(path) {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
