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

package syncserver

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foldersync/foldersync/internal/protocol"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, string) {
	t.Helper()
	root := t.TempDir()
	d := NewDispatcher(NewRegistry(), root, 5, nil)
	return d, root
}

func TestOnboardNewUser(t *testing.T) {
	d, root := newTestDispatcher(t)
	client, server := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		d.handleConn(server)
		close(done)
	}()

	require.NoError(t, protocol.WriteAll(client, []byte(protocol.DefaultUserID)))
	require.NoError(t, protocol.WriteAll(client, []byte(protocol.FormatDeviceID(protocol.DefaultDeviceID))))

	newID, err := protocol.ReadExact(client, protocol.UserIDLength)
	require.NoError(t, err)
	require.Len(t, newID, protocol.UserIDLength)
	require.NotEqual(t, protocol.DefaultUserID, string(newID))

	require.NoError(t, protocol.WriteAll(client, []byte("a.txt\n2\nhi")))
	client.Close()
	<-done // wait for the server to finish writing the received folder

	got, err := os.ReadFile(filepath.Join(root, string(newID), "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "hi", string(got))
}

func TestOnboardNewDeviceAndNormalSyncPeerExclusion(t *testing.T) {
	d, _ := newTestDispatcher(t)
	userID, err := d.registry.CreateUser()
	require.NoError(t, err)
	u, ok := d.registry.Lookup(userID)
	require.True(t, ok)
	folder := t.TempDir()
	withUser(u, func(u *userState) { u.folder = folder })

	// Enroll device 1 (device 0 already exists from CreateUser).
	client, server := net.Pipe()
	go d.handleConn(server)
	require.NoError(t, protocol.WriteAll(client, []byte(userID)))
	require.NoError(t, protocol.WriteAll(client, []byte(protocol.FormatDeviceID(protocol.DefaultDeviceID))))
	idRaw, err := protocol.ReadExact(client, protocol.DeviceIDWidth)
	require.NoError(t, err)
	newDeviceID, err := protocol.ParseDeviceID(string(idRaw))
	require.NoError(t, err)
	require.Equal(t, 1, newDeviceID)
	client.Close()

	// Device 0 uploads a CREATE command.
	client, server = net.Pipe()
	go d.handleConn(server)
	require.NoError(t, protocol.WriteAll(client, []byte(userID)))
	require.NoError(t, protocol.WriteAll(client, []byte(protocol.FormatDeviceID(0))))
	require.NoError(t, protocol.EncodeBatch(client, []protocol.Command{protocol.NewCreate("note.txt", false)}))
	gotBatch, err := protocol.DecodeBatch(client)
	require.NoError(t, err)
	require.Empty(t, gotBatch) // device 0 has no pending commands of its own
	ack, err := protocol.ReadExact(client, 1)
	require.NoError(t, err)
	require.Equal(t, "A", string(ack))
	client.Close()

	// Device 1's next round should receive device 0's CREATE, not its own.
	client, server = net.Pipe()
	go d.handleConn(server)
	require.NoError(t, protocol.WriteAll(client, []byte(userID)))
	require.NoError(t, protocol.WriteAll(client, []byte(protocol.FormatDeviceID(1))))
	require.NoError(t, protocol.EncodeBatch(client, nil))
	gotBatch, err = protocol.DecodeBatch(client)
	require.NoError(t, err)
	require.Len(t, gotBatch, 1)
	require.Equal(t, "note.txt", gotBatch[0].Path)
	ack, err = protocol.ReadExact(client, 1)
	require.NoError(t, err)
	require.Equal(t, "A", string(ack))
	client.Close()

	_, err = os.Stat(filepath.Join(folder, "note.txt"))
	require.NoError(t, err)
}
