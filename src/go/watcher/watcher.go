// Package watcher notifies the query REPL when the lexicon/matrix
// artifact pair it has loaded gets rebuilt on disk while the session
// is open. It never reaches into the loaded structures — reload is
// logged, not applied, since a ReadOnly lexicon/matrix pair is never
// mutated mid-session (spec.md §5).
package watcher

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ArtifactWatcher watches the directories containing a set of
// artifact files (typically a lexicon path and a matrix path) and
// reports write/create/rename events debounced by a short interval,
// so a build's temp-file-then-rename (tile.WriteBinary) collapses to
// one notification instead of one per intermediate event.
type ArtifactWatcher struct {
	fsWatcher *fsnotify.Watcher
	targets   map[string]bool
	events    chan Event
	debounce  time.Duration
}

// Event reports that path was recreated or modified.
type Event struct {
	Path string
	Time time.Time
}

// New creates a watcher for the given artifact paths. Each path's
// parent directory is watched (rather than the file itself) so a
// rename-into-place build still fires an event for that exact path.
func New(paths []string, debounce time.Duration) (*ArtifactWatcher, error) {
	fsW, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: new: %w", err)
	}
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	w := &ArtifactWatcher{
		fsWatcher: fsW,
		targets:   make(map[string]bool, len(paths)),
		events:    make(chan Event, 16),
		debounce:  debounce,
	}
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsW.Close()
			return nil, fmt.Errorf("watcher: abs %s: %w", p, err)
		}
		w.targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsW.Add(dir); err != nil {
			fsW.Close()
			return nil, fmt.Errorf("watcher: add %s: %w", dir, err)
		}
	}
	return w, nil
}

// Start launches the debouncing event loop; call Close to stop it.
func (w *ArtifactWatcher) Start() {
	pending := make(map[string]*time.Timer)
	go func() {
		for {
			select {
			case ev, ok := <-w.fsWatcher.Events:
				if !ok {
					return
				}
				abs, err := filepath.Abs(ev.Name)
				if err != nil || !w.targets[abs] {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if t, exists := pending[abs]; exists {
					t.Stop()
				}
				pending[abs] = time.AfterFunc(w.debounce, func() {
					select {
					case w.events <- Event{Path: abs, Time: time.Now()}:
					default:
					}
				})
			case _, ok := <-w.fsWatcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
}

// Events returns the channel of debounced rebuild notifications.
func (w *ArtifactWatcher) Events() <-chan Event { return w.events }

// Close stops the underlying fsnotify watcher.
func (w *ArtifactWatcher) Close() error { return w.fsWatcher.Close() }
