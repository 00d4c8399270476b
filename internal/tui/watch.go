package tui

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// DBWatcher watches the workspace .mcoda directory and signals when the
// database file changes, so the board refreshes while other mcoda commands
// write new priorities.
type DBWatcher struct {
	watcher *fsnotify.Watcher
	changes chan struct{}
	done    chan struct{}
}

// WatchWorkspaceDB watches the directory containing the workspace database.
// dbPath is the database file; its WAL and journal siblings also trigger.
func WatchWorkspaceDB(dbPath string) (*DBWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(dbPath)); err != nil {
		watcher.Close()
		return nil, err
	}

	w := &DBWatcher{
		watcher: watcher,
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go w.watch(filepath.Base(dbPath))
	return w, nil
}

// watch owns the changes channel: it is the only sender and closes it on
// exit, so Close can never race a send.
func (w *DBWatcher) watch(dbName string) {
	defer close(w.changes)
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasPrefix(filepath.Base(event.Name), dbName) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Coalesce bursts: a pending signal is enough.
			select {
			case w.changes <- struct{}{}:
			default:
			}
		case <-w.watcher.Errors:
			// Keep watching.
		}
	}
}

// Changes returns the signal channel. One receive per batch of writes.
func (w *DBWatcher) Changes() <-chan struct{} {
	return w.changes
}

// Close stops the watcher. The changes channel is closed by the watch
// goroutine once it observes the shutdown.
func (w *DBWatcher) Close() {
	close(w.done)
	w.watcher.Close()
}
