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

// Package syncserver implements the per-user replication state (Registry)
// and the connection dispatcher that classifies and serves each inbound
// round: new user, new device, or normal sync.
package syncserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/sync/semaphore"

	"github.com/foldersync/foldersync/internal/foldertransfer"
	"github.com/foldersync/foldersync/internal/interpreter"
	"github.com/foldersync/foldersync/internal/logging"
	"github.com/foldersync/foldersync/internal/metrics"
	"github.com/foldersync/foldersync/internal/protocol"
	"github.com/foldersync/foldersync/internal/reporting"
)

var l = logging.Default.NewFacility("dispatch", "server connection dispatcher")

// Dispatcher accepts connections, classifies each as a new-user,
// new-device, or normal-sync round, and serves it against the Registry
// under the appropriate per-user lock.
type Dispatcher struct {
	registry    *Registry
	remotesRoot string
	sem         *semaphore.Weighted
	reporter    *reporting.Reporter
}

// NewDispatcher builds a Dispatcher. backlog bounds the number of rounds
// served concurrently (spec §6: fixed listen-queue depth 5-7).
func NewDispatcher(registry *Registry, remotesRoot string, backlog int64, reporter *reporting.Reporter) *Dispatcher {
	return &Dispatcher{
		registry:    registry,
		remotesRoot: remotesRoot,
		sem:         semaphore.NewWeighted(backlog),
		reporter:    reporter,
	}
}

// Serve accepts connections from ln until ctx is cancelled or Accept
// returns a fatal error. Each connection runs in its own goroutine, bounded
// by the dispatcher's semaphore.
func (d *Dispatcher) Serve(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return fmt.Errorf("syncserver: accept: %w", err)
		}
		if err := d.sem.Acquire(ctx, 1); err != nil {
			conn.Close()
			return nil
		}
		go func() {
			defer d.sem.Release(1)
			defer conn.Close()
			d.handleConn(conn)
		}()
	}
}

func (d *Dispatcher) handleConn(conn net.Conn) {
	userIDRaw, err := protocol.ReadExact(conn, protocol.UserIDLength)
	if err != nil {
		l.Debugf("reading user id: %v", err)
		return
	}
	userID := string(userIDRaw)

	deviceIDRaw, err := protocol.ReadExact(conn, protocol.DeviceIDWidth)
	if err != nil {
		l.Debugf("reading device id: %v", err)
		return
	}

	if userID == protocol.DefaultUserID {
		if err := d.onboardUser(conn); err != nil {
			l.Warnf("new-user onboarding failed: %v", err)
			d.reporter.ReportFatal("onboarding", err)
		}
		return
	}

	deviceID, err := protocol.ParseDeviceID(string(deviceIDRaw))
	if err != nil {
		l.Debugf("malformed device id: %v", err)
		return
	}

	if deviceID == protocol.DefaultDeviceID {
		if err := d.onboardDevice(conn, userID); err != nil {
			l.Warnf("new-device onboarding failed for user %s: %v", userID, err)
			d.reporter.ReportFatal("onboarding", err)
		}
		return
	}

	if err := d.handleRound(conn, userID, deviceID); err != nil {
		l.Warnf("sync round failed for user %s device %d: %v", userID, deviceID, err)
	}
}

// handleRound serves spec §4.7's normal-sync case: read uploaded commands,
// apply them, enqueue them for every peer, drain the sending device's own
// pending queue into the reply, and ack. The uploaded batch is decoded
// before the lock is taken; everything from apply through the ack runs
// under the user's lock so no peer ever observes a partially-applied round.
func (d *Dispatcher) handleRound(conn net.Conn, userID string, deviceID int) error {
	u, ok := d.registry.Lookup(userID)
	if !ok {
		return fmt.Errorf("syncserver: unknown user %q", userID)
	}

	uploaded, err := protocol.DecodeBatch(conn)
	if err != nil {
		metrics.SyncRoundsTotal.WithLabelValues("protocol_error").Inc()
		return fmt.Errorf("syncserver: decoding uploaded commands: %w", err)
	}

	var pending []protocol.Command
	var unknownDevice bool
	var sendErr error
	withUser(u, func(u *userState) {
		if deviceID < 0 || deviceID >= len(u.devices) {
			unknownDevice = true
			return
		}
		for _, cmd := range uploaded {
			if err := interpreter.Apply(u.folder, cmd); err != nil {
				l.Warnf("user %s: applying %s command: %v", userID, cmd.Kind, err)
				continue
			}
			metrics.CommandsAppliedTotal.WithLabelValues(cmd.Kind.String()).Inc()
		}
		u.enqueueForPeersLocked(deviceID, uploaded)
		pending = u.drainLocked(deviceID)
		metrics.PendingQueueDepth.WithLabelValues(userID, protocol.FormatDeviceID(deviceID)).Set(float64(len(pending)))
		if err := protocol.EncodeBatch(conn, pending); err != nil {
			sendErr = fmt.Errorf("syncserver: sending pending commands: %w", err)
			return
		}
		if err := protocol.WriteAll(conn, []byte{'A'}); err != nil {
			sendErr = fmt.Errorf("syncserver: sending ack: %w", err)
		}
	})
	if unknownDevice {
		return fmt.Errorf("syncserver: unknown device %d for user %q", deviceID, userID)
	}
	if sendErr != nil {
		metrics.SyncRoundsTotal.WithLabelValues("transport_error").Inc()
		return sendErr
	}
	metrics.SyncRoundsTotal.WithLabelValues("ok").Inc()
	return nil
}

// onboardUser implements spec §4.8 Case A: generate a fresh user id,
// create its remote folder, register it with a single device-0 queue,
// send the new id, then receive the client's initial folder.
func (d *Dispatcher) onboardUser(conn net.Conn) error {
	userID, err := d.registry.CreateUser()
	if err != nil {
		return fmt.Errorf("syncserver: generating user id: %w", err)
	}
	folder := filepath.Join(d.remotesRoot, userID)
	if err := os.MkdirAll(folder, 0o777); err != nil {
		return fmt.Errorf("syncserver: creating remote folder for %s: %w", userID, err)
	}
	if u, ok := d.registry.Lookup(userID); ok {
		withUser(u, func(u *userState) { u.folder = folder })
	}

	if err := protocol.WriteAll(conn, []byte(userID)); err != nil {
		return fmt.Errorf("syncserver: sending new user id: %w", err)
	}
	if err := foldertransfer.Receive(conn, folder); err != nil {
		return fmt.Errorf("syncserver: receiving initial folder for %s: %w", userID, err)
	}
	metrics.OnboardingsTotal.WithLabelValues("new_user").Inc()
	return nil
}

// onboardDevice implements spec §4.8 Case B: assign the next device id,
// append an empty pending queue, send the id, then send the authoritative
// folder.
func (d *Dispatcher) onboardDevice(conn net.Conn, userID string) error {
	u, ok := d.registry.Lookup(userID)
	if !ok {
		return fmt.Errorf("syncserver: unknown user %q", userID)
	}

	var deviceID int
	var folder string
	withUser(u, func(u *userState) {
		deviceID = u.addDeviceLocked()
		folder = u.folder
	})

	if err := protocol.WriteAll(conn, []byte(protocol.FormatDeviceID(deviceID))); err != nil {
		return fmt.Errorf("syncserver: sending new device id: %w", err)
	}
	if err := foldertransfer.Send(conn, folder); err != nil {
		return fmt.Errorf("syncserver: sending folder to new device: %w", err)
	}
	metrics.OnboardingsTotal.WithLabelValues("new_device").Inc()
	return nil
}
