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
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/foldersync/foldersync/internal/protocol"
)

// userState is one user's authoritative folder path plus its per-device
// pending-command queues. mu is the per-user lock: every mutation of a
// user's devices, pending queues, or authoritative folder happens while mu
// is held, so a round for one device never observes another device's
// round half-applied (spec §5).
type userState struct {
	mu      sync.Mutex
	folder  string
	devices []*deviceQueue
}

// deviceQueue is one device's append-only pending-commands queue.
type deviceQueue struct {
	pending []protocol.Command
}

// Registry is the server's per-user replication state: user id maps to
// authoritative folder path and enrolled device queues. It replaces the
// reference's bare module-level dict with a concurrent map (Design Note
// §9), striped implicitly by per-user locks for the mutations within one
// user, and by a short-lived global lock only around user creation (where
// a fresh random id must be checked for collision and inserted
// atomically).
type Registry struct {
	insertMu sync.Mutex
	users    *xsync.MapOf[string, *userState]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{users: xsync.NewMapOf[string, *userState]()}
}

// Lookup returns the state for an already-enrolled user, or false if none
// exists.
func (r *Registry) Lookup(userID string) (*userState, bool) {
	return r.users.Load(userID)
}

// CreateUser atomically generates a fresh user id (rejecting collisions),
// creates its folder-rooted state with a single device-0 queue, and
// inserts it into the registry. It returns the new user id.
func (r *Registry) CreateUser() (string, error) {
	r.insertMu.Lock()
	defer r.insertMu.Unlock()

	for {
		id, err := protocol.GenerateUserID()
		if err != nil {
			return "", err
		}
		if _, exists := r.users.Load(id); exists {
			continue // collision: astronomically unlikely, but never overwrite.
		}
		state := &userState{
			devices: []*deviceQueue{{}},
		}
		r.users.Store(id, state)
		return id, nil
	}
}

// withUser runs fn with u's per-user lock held, serializing it against
// every other round for the same user.
func withUser(u *userState, fn func(u *userState)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fn(u)
}

// addDeviceLocked appends a new, empty pending queue and returns its device id
// (len(devices) before the append, assigned densely from 0 in registration
// order). Must be called with u's lock held by the caller via withUser.
func (u *userState) addDeviceLocked() int {
	id := len(u.devices)
	u.devices = append(u.devices, &deviceQueue{})
	return id
}

// enqueueForPeersLocked appends cmds to every device's queue except
// fromDevice, so a device never receives its own commands echoed back
// (spec §3 invariant, §8 property 5).
func (u *userState) enqueueForPeersLocked(fromDevice int, cmds []protocol.Command) {
	for i, d := range u.devices {
		if i == fromDevice {
			continue
		}
		d.pending = append(d.pending, cmds...)
	}
}

// drainLocked returns and empties deviceID's pending queue.
func (u *userState) drainLocked(deviceID int) []protocol.Command {
	d := u.devices[deviceID]
	out := d.pending
	d.pending = nil
	return out
}
