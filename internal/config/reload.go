package config

import (
	"fmt"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Watcher recompiles a policy document in the background whenever its file
// changes on disk, backing EngineConfig.HotReload. It never blocks an
// in-flight Check: callers read the value load last produced via Current,
// which always returns the last value that loaded cleanly -- a write that
// leaves the file momentarily truncated or malformed is reported to onLoad
// and otherwise ignored rather than torn down into a broken state.
type Watcher struct {
	path   string
	load   func(path string) (any, error)
	onLoad func(any, error)

	watcher *fsnotify.Watcher
	done    chan struct{}

	current atomic.Pointer[any]
}

// NewWatcher builds a Watcher for path. load re-reads and parses the file
// into whatever value the caller's domain needs (a *policy.Document, a
// *compiler.Factory, ...); onLoad is invoked after every reload attempt,
// successful or not, so the caller can log failures without the Watcher
// itself depending on a logger. The initial load happens synchronously so
// Current is populated before NewWatcher returns.
func NewWatcher(path string, load func(path string) (any, error), onLoad func(any, error)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create file watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	w := &Watcher{path: path, load: load, onLoad: onLoad, watcher: fsw, done: make(chan struct{})}
	w.reload()
	return w, nil
}

// Start begins watching for filesystem events in the background. Call
// Stop to release the underlying inotify/kqueue handle.
func (w *Watcher) Start() {
	go w.eventLoop()
}

// Stop terminates the event loop and closes the underlying watcher.
func (w *Watcher) Stop() {
	close(w.done)
	w.watcher.Close()
}

// Current returns the most recently successfully loaded value.
func (w *Watcher) Current() any {
	if v := w.current.Load(); v != nil {
		return *v
	}
	return nil
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.reload()
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	v, err := w.load(w.path)
	if err == nil {
		w.current.Store(&v)
	}
	if w.onLoad != nil {
		w.onLoad(v, err)
	}
}
