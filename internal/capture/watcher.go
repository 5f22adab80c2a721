// Copyright (C) 2024 The Foldersync Authors (see the CONTRIBUTORS file).
//
// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.
//
// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE. See the GNU General Public License for
// more details.
//
// You should have received a copy of the GNU General Public License along
// with this program. If not, see <http://www.gnu.org/licenses/>.

package capture

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/syncthing/notify"
)

// renamePairWindow bounds how long a lone "old half" of a rename is held
// waiting for its "new half" before it is flushed as a plain delete. The
// underlying notify backends deliver the two halves of a move as separate
// Rename events with no portable pairing token, so this is a heuristic, not
// an exact reconstruction.
const renamePairWindow = 150 * time.Millisecond

// FSWatcher subscribes to filesystem events on root, recursively and
// without an ignore list, and translates each into an Event delivered to
// Events(). It owns no outbound queue itself; callers (the Capturer) decide
// how to turn events into commands.
type FSWatcher struct {
	root string
	out  chan Event

	notifyCh chan notify.EventInfo

	mu      sync.Mutex
	pending map[string]*pendingRemove
}

type pendingRemove struct {
	event Event
	timer *time.Timer
}

// NewFSWatcher constructs a watcher rooted at root. Call Start to begin
// receiving events and Stop to release the underlying OS watch.
func NewFSWatcher(root string) *FSWatcher {
	return &FSWatcher{
		root:    root,
		out:     make(chan Event, 128),
		pending: make(map[string]*pendingRemove),
	}
}

// Events returns the channel of translated events. It is closed after Stop
// has fully drained the underlying notify channel.
func (w *FSWatcher) Events() <-chan Event {
	return w.out
}

// Start begins watching w.root recursively. Filesystem-watcher errors are
// fatal to the client process per spec §7 and are returned to the caller
// rather than retried.
func (w *FSWatcher) Start() error {
	w.notifyCh = make(chan notify.EventInfo, 128)
	if err := notify.Watch(filepath.Join(w.root, "..."), w.notifyCh, notify.All); err != nil {
		return err
	}
	go w.translate()
	return nil
}

// Stop releases the underlying OS watch and closes Events().
func (w *FSWatcher) Stop() {
	notify.Stop(w.notifyCh)
	close(w.notifyCh)
}

func (w *FSWatcher) translate() {
	defer close(w.out)
	for ei := range w.notifyCh {
		rel, err := filepath.Rel(w.root, ei.Path())
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		isDir := isDirNow(ei.Path())

		switch {
		case ei.Event()&notify.Create != 0:
			w.out <- Event{Kind: EventCreated, Path: rel, IsDir: isDir}
		case ei.Event()&notify.Remove != 0:
			w.out <- Event{Kind: EventDeleted, Path: rel, IsDir: isDir}
		case ei.Event()&notify.Write != 0:
			w.out <- Event{Kind: EventModified, Path: rel, IsDir: isDir}
		case ei.Event()&notify.Rename != 0:
			w.handleRename(ei.Path(), rel, isDir)
		}
	}
}

func isDirNow(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// handleRename pairs the two halves of a move. If the path no longer
// exists, this is the "old half": it is buffered briefly in case a matching
// "new half" arrives. If the path exists, this is the "new half": it is
// paired with the most recently buffered old half sharing the same base
// name, or else emitted as a plain Created (a file moved in from outside
// the watched tree, or an unpaired rename after the window expired).
func (w *FSWatcher) handleRename(fullPath, rel string, isDir bool) {
	base := filepath.Base(fullPath)
	if _, err := os.Stat(fullPath); err != nil {
		w.bufferOldHalf(base, rel, isDir)
		return
	}
	w.mu.Lock()
	old, ok := w.pending[base]
	if ok {
		old.timer.Stop()
		delete(w.pending, base)
	}
	w.mu.Unlock()

	if ok {
		w.out <- Event{Kind: EventMoved, OldPath: old.event.Path, NewPath: rel, IsDir: isDir}
		return
	}
	w.out <- Event{Kind: EventCreated, Path: rel, IsDir: isDir}
}

func (w *FSWatcher) bufferOldHalf(base, rel string, isDir bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ev := Event{Kind: EventDeleted, Path: rel, IsDir: isDir}
	w.pending[base] = &pendingRemove{
		event: ev,
		timer: time.AfterFunc(renamePairWindow, func() {
			w.flushUnpaired(base, ev)
		}),
	}
}

func (w *FSWatcher) flushUnpaired(base string, ev Event) {
	w.mu.Lock()
	_, ok := w.pending[base]
	if ok {
		delete(w.pending, base)
	}
	w.mu.Unlock()
	if ok {
		w.out <- ev
	}
}
