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

package syncclient

import (
	"fmt"
	"net"

	"github.com/foldersync/foldersync/internal/foldertransfer"
	"github.com/foldersync/foldersync/internal/protocol"
)

// OnboardNewUser implements the client side of spec §4.8 Case A: connect
// with the sentinel user id and device id, receive the freshly-assigned
// user id, then upload the local folder as the seed for the authoritative
// copy. The client adopts device id 0.
func OnboardNewUser(addr, localFolder string) (userID string, err error) {
	conn, err := net.DialTimeout("tcp", addr, ConnectTimeout)
	if err != nil {
		return "", fmt.Errorf("syncclient: onboarding connect: %w", err)
	}
	defer conn.Close()

	if err := protocol.WriteAll(conn, []byte(protocol.DefaultUserID)); err != nil {
		return "", fmt.Errorf("syncclient: sending sentinel user id: %w", err)
	}
	if err := protocol.WriteAll(conn, []byte(protocol.FormatDeviceID(protocol.DefaultDeviceID))); err != nil {
		return "", fmt.Errorf("syncclient: sending sentinel device id: %w", err)
	}

	idRaw, err := protocol.ReadExact(conn, protocol.UserIDLength)
	if err != nil {
		return "", fmt.Errorf("syncclient: receiving assigned user id: %w", err)
	}
	userID = string(idRaw)

	if err := foldertransfer.Send(conn, localFolder); err != nil {
		return "", fmt.Errorf("syncclient: uploading initial folder: %w", err)
	}
	return userID, nil
}

// OnboardNewDevice implements the client side of spec §4.8 Case B: connect
// with an established user id and the sentinel device id, receive the
// newly-assigned device id, then download the authoritative folder into
// localFolder.
func OnboardNewDevice(addr, userID, localFolder string) (deviceID int, err error) {
	conn, err := net.DialTimeout("tcp", addr, ConnectTimeout)
	if err != nil {
		return 0, fmt.Errorf("syncclient: onboarding connect: %w", err)
	}
	defer conn.Close()

	if err := protocol.WriteAll(conn, []byte(userID)); err != nil {
		return 0, fmt.Errorf("syncclient: sending user id: %w", err)
	}
	if err := protocol.WriteAll(conn, []byte(protocol.FormatDeviceID(protocol.DefaultDeviceID))); err != nil {
		return 0, fmt.Errorf("syncclient: sending sentinel device id: %w", err)
	}

	idRaw, err := protocol.ReadExact(conn, protocol.DeviceIDWidth)
	if err != nil {
		return 0, fmt.Errorf("syncclient: receiving assigned device id: %w", err)
	}
	deviceID, err = protocol.ParseDeviceID(string(idRaw))
	if err != nil {
		return 0, err
	}

	if err := foldertransfer.Receive(conn, localFolder); err != nil {
		return 0, fmt.Errorf("syncclient: downloading authoritative folder: %w", err)
	}
	return deviceID, nil
}
