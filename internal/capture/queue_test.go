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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foldersync/foldersync/internal/protocol"
)

func TestQueueSnapshotPreservesFIFOOrder(t *testing.T) {
	q := NewQueue()
	q.Append(protocol.NewCreate("a.txt", false))
	q.Append(protocol.NewCreate("b.txt", false))
	q.Append(protocol.NewCreate("c.txt", false))

	got := q.Snapshot()
	require.Len(t, got, 3)
	require.Equal(t, "a.txt", got[0].Path)
	require.Equal(t, "b.txt", got[1].Path)
	require.Equal(t, "c.txt", got[2].Path)
	require.Equal(t, 3, q.Len())
}

func TestQueueSnapshotDoesNotMutate(t *testing.T) {
	q := NewQueue()
	q.Append(protocol.NewCreate("a.txt", false))
	snap := q.Snapshot()
	snap[0] = protocol.NewCreate("tampered.txt", false)

	require.Equal(t, "a.txt", q.Snapshot()[0].Path)
}

func TestQueueRemovePrunesOnlyTheSnapshottedPrefix(t *testing.T) {
	q := NewQueue()
	q.Append(protocol.NewCreate("a.txt", false))
	q.Append(protocol.NewCreate("b.txt", false))

	snap := q.Snapshot()
	require.Len(t, snap, 2)

	// A third event arrives after the snapshot but before the round's ack.
	q.Append(protocol.NewCreate("c.txt", false))

	q.Remove(len(snap))
	remaining := q.Snapshot()
	require.Len(t, remaining, 1)
	require.Equal(t, "c.txt", remaining[0].Path)
}

func TestQueueRemoveClampsToCurrentLength(t *testing.T) {
	q := NewQueue()
	q.Append(protocol.NewCreate("a.txt", false))

	q.Remove(5)
	require.Equal(t, 0, q.Len())
}

func TestQueueLenReflectsAppendsAndRemoves(t *testing.T) {
	q := NewQueue()
	require.Equal(t, 0, q.Len())
	q.Append(protocol.NewCreate("a.txt", false))
	q.Append(protocol.NewCreate("b.txt", false))
	require.Equal(t, 2, q.Len())
	q.Remove(1)
	require.Equal(t, 1, q.Len())
}
