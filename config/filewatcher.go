package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ruaan-deysel/mcp-runtime/logger"
)

// FileWatcher watches a config file for changes using fsnotify and triggers
// a callback, debounced to coalesce rapid successive fs events (editors
// commonly truncate-then-write, which otherwise fires two events for one
// logical save) into a single reload.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	debounce time.Duration
	timer    *time.Timer
}

// NewFileWatcher creates a FileWatcher with the given debounce duration.
func NewFileWatcher(debounce time.Duration) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &FileWatcher{watcher: w, debounce: debounce}, nil
}

// WatchFile adds path to the watch list by watching its parent directory.
// fsnotify watches directories, not individual files, so the directory is
// watched and events are filtered by filename.
func (fw *FileWatcher) WatchFile(path string) error {
	dir := filepath.Dir(path)
	return fw.watcher.Add(dir)
}

// Run starts the event loop, invoking onChange (debounced) whenever path is
// written or created. Run blocks until ctx is cancelled.
func (fw *FileWatcher) Run(ctx context.Context, path string, onChange func()) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			eventAbs, err := filepath.Abs(event.Name)
			if err != nil {
				eventAbs = event.Name
			}
			if eventAbs != abs {
				continue
			}
			logger.Debug("config: change detected on %s (op=%s)", event.Name, event.Op)
			fw.debouncedCallback(onChange)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("config: file watcher error: %v", err)
		}
	}
}

// Close releases the underlying fsnotify watcher resources.
func (fw *FileWatcher) Close() error {
	return fw.watcher.Close()
}

func (fw *FileWatcher) debouncedCallback(cb func()) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.debounce, cb)
}
