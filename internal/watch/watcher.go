package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"shrike/internal/blocklist"
)

// Editors and downloaders replace files with write+rename bursts; the
// delay collapses one burst into a single reload.
const reloadDebounce = 500 * time.Millisecond

// StartFileWatcher resubmits path to the load job whenever the file is
// written or replaced. The parent directory is watched because a rename
// swaps the inode out from under a direct file watch.
func StartFileWatcher(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()

		var reload *time.Timer
		defer func() {
			if reload != nil {
				reload.Stop()
			}
		}()

		target := filepath.Clean(path)
		for {
			select {
			case <-ctx.Done():
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

				if reload != nil {
					reload.Stop()
				}
				reload = time.AfterFunc(reloadDebounce, func() {
					log.Info("Filter file changed, reloading", "path", path)
					blocklist.Reload(path)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("Filter file watcher error", "error", err)
			}
		}
	}()

	log.Debug("Watching filter file for changes", "path", path)
	return nil
}
