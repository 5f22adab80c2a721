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

// Package syncclient implements the device-side sync driver: one round per
// tick connects to the server, uploads a snapshot of the outbound queue,
// receives and applies peer commands, and acks.
package syncclient

import (
	"fmt"
	"net"
	"time"

	"github.com/foldersync/foldersync/internal/capture"
	"github.com/foldersync/foldersync/internal/interpreter"
	"github.com/foldersync/foldersync/internal/logging"
	"github.com/foldersync/foldersync/internal/protocol"
)

var l = logging.Default.NewFacility("syncdriver", "client sync round driver")

const (
	// ConnectTimeout bounds how long a round waits to establish the
	// connection before aborting (spec §4.6 step 1).
	ConnectTimeout = 3 * time.Second
	// AckTimeout bounds how long a round waits for the final 'A' byte
	// (spec's SPECIAL_TIMEOUT).
	AckTimeout = 30 * time.Second
)

// Driver runs sync rounds against a single server address for one device
// of one user.
type Driver struct {
	Addr     string
	Folder   string
	UserID   string
	DeviceID int
	Queue    *capture.Queue
}

// RunRound performs exactly one sync round (spec §4.6). Transport errors
// (connect timeout, short read, missing ack) abort the round without
// mutating the outbound queue, so the next tick retries at-least-once.
func (d *Driver) RunRound() error {
	conn, err := net.DialTimeout("tcp", d.Addr, ConnectTimeout)
	if err != nil {
		l.Debugf("round aborted: connect: %v", err)
		return fmt.Errorf("syncclient: connect: %w", err)
	}
	defer conn.Close()

	snapshot := d.Queue.Snapshot()

	if err := protocol.WriteAll(conn, []byte(d.UserID)); err != nil {
		return fmt.Errorf("syncclient: sending user id: %w", err)
	}
	if err := protocol.WriteAll(conn, []byte(protocol.FormatDeviceID(d.DeviceID))); err != nil {
		return fmt.Errorf("syncclient: sending device id: %w", err)
	}
	if err := protocol.EncodeBatch(conn, snapshot); err != nil {
		return fmt.Errorf("syncclient: uploading commands: %w", err)
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetReadDeadline(time.Now().Add(AckTimeout))
	}

	peerCmds, err := protocol.DecodeBatch(conn)
	if err != nil {
		return fmt.Errorf("syncclient: receiving peer commands: %w", err)
	}
	for _, cmd := range peerCmds {
		if err := interpreter.Apply(d.Folder, cmd); err != nil {
			l.Warnf("applying peer %s command: %v", cmd.Kind, err)
			continue
		}
	}

	ack, err := protocol.ReadExact(conn, 1)
	if err != nil {
		return fmt.Errorf("syncclient: waiting for ack: %w", err)
	}
	if ack[0] != 'A' {
		return fmt.Errorf("syncclient: unexpected ack byte %q", ack[0])
	}

	d.Queue.Remove(len(snapshot))
	return nil
}

// Run calls RunRound every period until stop is closed. Each round's error
// (if any) is logged; the queue is never dropped on failure, so the client
// simply retries on the next tick.
func (d *Driver) Run(period time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := d.RunRound(); err != nil {
				l.Infof("sync round did not complete: %v", err)
			}
		}
	}
}
