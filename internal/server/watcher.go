package server

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors filesystem paths and invokes a callback when changes are
// detected, debouncing rapid successive events into one invocation.
type Watcher struct {
	paths    []string
	onChange func()
	debounce time.Duration
	watcher  *fsnotify.Watcher
	done     chan struct{}
	once     sync.Once
}

// NewWatcher creates a Watcher over the given paths. The onChange callback
// fires after events have been quiet for the debounce duration.
func NewWatcher(paths []string, debounce time.Duration, onChange func()) *Watcher {
	return &Watcher{
		paths:    paths,
		onChange: onChange,
		debounce: debounce,
		done:     make(chan struct{}),
	}
}

// Start begins watching. It blocks until Stop is called.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fsw
	defer fsw.Close()

	for _, p := range w.paths {
		info, err := os.Stat(p)
		if err != nil {
			// Path may not exist yet (e.g. no layouts/ directory); skip.
			continue
		}
		if info.IsDir() {
			if err := w.addRecursive(p); err != nil {
				fmt.Fprintf(os.Stderr, "warning: watching %s: %v\n", p, err)
			}
		} else if err := fsw.Add(p); err != nil {
			fmt.Fprintf(os.Stderr, "warning: watching %s: %v\n", p, err)
		}
	}

	var timer *time.Timer
	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			// Only trigger on write, create, remove, and rename events;
			// chmod-only noise must not cause rebuilds.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// New directories must be added explicitly; fsnotify does not
			// watch recursively.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(event.Name)
				}
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.onChange)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "warning: watcher: %v\n", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return nil
		}
	}
}

// Stop terminates the watch loop. Safe to call more than once.
func (w *Watcher) Stop() {
	w.once.Do(func() { close(w.done) })
}

// addRecursive adds dir and all its subdirectories to the watcher.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.watcher.Add(path)
	})
}
