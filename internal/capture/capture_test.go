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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foldersync/foldersync/internal/protocol"
)

func TestTranslateCreated(t *testing.T) {
	c := NewCapturer(t.TempDir(), NewQueue())
	cmd, ok := c.translate(Event{Kind: EventCreated, Path: "a.txt", IsDir: false})
	require.True(t, ok)
	require.Equal(t, protocol.NewCreate("a.txt", false), cmd)
}

func TestTranslateCreatedDir(t *testing.T) {
	c := NewCapturer(t.TempDir(), NewQueue())
	cmd, ok := c.translate(Event{Kind: EventCreated, Path: "sub", IsDir: true})
	require.True(t, ok)
	require.Equal(t, protocol.NewCreate("sub", true), cmd)
}

func TestTranslateDeleted(t *testing.T) {
	c := NewCapturer(t.TempDir(), NewQueue())
	cmd, ok := c.translate(Event{Kind: EventDeleted, Path: "a.txt", IsDir: false})
	require.True(t, ok)
	require.Equal(t, protocol.NewDelete("a.txt", false), cmd)
}

func TestTranslateModifiedDirectoryIsDiscarded(t *testing.T) {
	c := NewCapturer(t.TempDir(), NewQueue())
	_, ok := c.translate(Event{Kind: EventModified, Path: "sub", IsDir: true})
	require.False(t, ok)
}

func TestTranslateModifiedFileReadsContent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o666))

	c := NewCapturer(root, NewQueue())
	cmd, ok := c.translate(Event{Kind: EventModified, Path: "a.txt", IsDir: false})
	require.True(t, ok)
	require.Equal(t, protocol.NewModify("a.txt", []byte("hello")), cmd)
}

func TestTranslateModifiedMissingFileIsDiscarded(t *testing.T) {
	c := NewCapturer(t.TempDir(), NewQueue())
	_, ok := c.translate(Event{Kind: EventModified, Path: "gone.txt", IsDir: false})
	require.False(t, ok)
}

func TestTranslateMoved(t *testing.T) {
	c := NewCapturer(t.TempDir(), NewQueue())
	cmd, ok := c.translate(Event{Kind: EventMoved, OldPath: "a.txt", NewPath: "b.txt"})
	require.True(t, ok)
	require.Equal(t, protocol.NewMove("a.txt", "b.txt"), cmd)
}

func TestTranslateUnknownKindIsDiscarded(t *testing.T) {
	c := NewCapturer(t.TempDir(), NewQueue())
	_, ok := c.translate(Event{Kind: EventKind(99)})
	require.False(t, ok)
}

func TestCapturerRunAppendsTranslatedEventsInOrder(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("v1"), 0o666))

	queue := NewQueue()
	c := NewCapturer(root, queue)
	w := NewFSWatcher(root)

	w.out <- Event{Kind: EventCreated, Path: "a.txt", IsDir: false}
	w.out <- Event{Kind: EventModified, Path: "a.txt", IsDir: false}
	close(w.out)

	c.Run(w)

	got := queue.Snapshot()
	require.Len(t, got, 2)
	require.Equal(t, protocol.NewCreate("a.txt", false), got[0])
	require.Equal(t, protocol.NewModify("a.txt", []byte("v1")), got[1])
}
