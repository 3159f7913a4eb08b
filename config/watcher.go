package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/teranos/invar/errors"
	"github.com/teranos/invar/logger"
)

// FileWatcher watches a configuration or suite file for changes and triggers
// callbacks. Loaded records stay immutable for the lifetime of a run; the
// watcher exists so long-running sweeps can warn that the files on disk no
// longer match what the run was started with.
type FileWatcher struct {
	path           string
	watcher        *fsnotify.Watcher
	callbacks      []ChangeCallback
	mu             sync.RWMutex
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
	done           chan struct{}
}

// ChangeCallback is called when the watched file changes on disk.
type ChangeCallback func(path string)

// NewFileWatcher creates a watcher for the given file
func NewFileWatcher(path string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, errors.Wrapf(err, "failed to watch file %s", path)
	}

	return &FileWatcher{
		path:           path,
		watcher:        watcher,
		callbacks:      make([]ChangeCallback, 0),
		debouncePeriod: 500 * time.Millisecond, // Debounce rapid editor writes
		done:           make(chan struct{}),
	}, nil
}

// OnChange registers a callback to be called when the file changes
func (fw *FileWatcher) OnChange(callback ChangeCallback) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.callbacks = append(fw.callbacks, callback)
}

// Start begins watching in a background goroutine
func (fw *FileWatcher) Start() {
	go fw.loop()
}

func (fw *FileWatcher) loop() {
	for {
		select {
		case <-fw.done:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			fw.mu.Lock()
			if fw.debounceTimer != nil {
				fw.debounceTimer.Stop()
			}
			fw.debounceTimer = time.AfterFunc(fw.debouncePeriod, fw.fire)
			fw.mu.Unlock()
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnw("File watcher error", "path", fw.path, "error", err)
		}
	}
}

func (fw *FileWatcher) fire() {
	fw.mu.RLock()
	callbacks := make([]ChangeCallback, len(fw.callbacks))
	copy(callbacks, fw.callbacks)
	fw.mu.RUnlock()

	for _, cb := range callbacks {
		cb(fw.path)
	}
}

// Stop stops watching and releases resources
func (fw *FileWatcher) Stop() {
	close(fw.done)
	fw.watcher.Close()
}
