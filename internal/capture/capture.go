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

	"github.com/foldersync/foldersync/internal/logging"
	"github.com/foldersync/foldersync/internal/protocol"
)

var l = logging.Default.NewFacility("capture", "filesystem event capture")

// Capturer converts filesystem events on a device's local mirror into
// commands and appends them to an outbound Queue. modified events on
// directories are discarded; bursty events on the same path between two
// sync rounds are not coalesced (the interpreter's idempotence tolerates
// the replay).
type Capturer struct {
	root  string
	queue *Queue
}

// NewCapturer builds a Capturer rooted at root, appending to queue.
func NewCapturer(root string, queue *Queue) *Capturer {
	return &Capturer{root: root, queue: queue}
}

// Run consumes events from w until its channel is closed, appending the
// corresponding commands to the Capturer's queue.
func (c *Capturer) Run(w *FSWatcher) {
	for ev := range w.Events() {
		cmd, ok := c.translate(ev)
		if !ok {
			continue
		}
		c.queue.Append(cmd)
	}
}

func (c *Capturer) translate(ev Event) (protocol.Command, bool) {
	switch ev.Kind {
	case EventCreated:
		return protocol.NewCreate(ev.Path, ev.IsDir), true
	case EventDeleted:
		return protocol.NewDelete(ev.Path, ev.IsDir), true
	case EventModified:
		if ev.IsDir {
			return protocol.Command{}, false
		}
		content, err := os.ReadFile(filepath.Join(c.root, filepath.FromSlash(ev.Path)))
		if err != nil {
			l.Warnf("reading modified file %q: %v", ev.Path, err)
			return protocol.Command{}, false
		}
		return protocol.NewModify(ev.Path, content), true
	case EventMoved:
		return protocol.NewMove(ev.OldPath, ev.NewPath), true
	default:
		return protocol.Command{}, false
	}
}
