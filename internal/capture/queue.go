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
	"sync"

	"github.com/foldersync/foldersync/internal/protocol"
)

// Queue is the client's outbound command queue: the watcher appends to it
// as filesystem events arrive, and the sync driver periodically snapshots
// and drains it. It is safe for concurrent use by exactly those two roles.
type Queue struct {
	mu    sync.Mutex
	items []protocol.Command
}

// NewQueue returns an empty outbound queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Append adds cmd to the tail of the queue. Called by the watcher.
func (q *Queue) Append(cmd protocol.Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, cmd)
}

// Snapshot returns a copy of the queue's current contents, in FIFO order,
// without removing them. Events appended after Snapshot returns are not
// included and remain queued for the next round.
func (q *Queue) Snapshot() []protocol.Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]protocol.Command, len(q.items))
	copy(out, q.items)
	return out
}

// Remove drops exactly the first n queued commands that were present at the
// time of a prior Snapshot call of the same length, preserving any commands
// appended since. The caller must pass the length of the snapshot it is
// acknowledging.
func (q *Queue) Remove(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n > len(q.items) {
		n = len(q.items)
	}
	remaining := make([]protocol.Command, len(q.items)-n)
	copy(remaining, q.items[n:])
	q.items = remaining
}

// Len reports the current queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
