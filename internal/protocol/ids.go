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

// Package protocol implements the wire framing, command codec and
// fixed-width identifier encodings shared by the client and server.
package protocol

import (
	"crypto/rand"
	"fmt"
)

const (
	// UserIDLength is the width, in characters, of a user id field.
	UserIDLength = 128
	// CommandLenSize is the width of a command's leading length field.
	CommandLenSize = 8
	// CommandIDLen is the width of a command's kind tag.
	CommandIDLen = 1
	// PathLenSize is the width of a MODIFY/MOVE path-length field.
	PathLenSize = 3
	// DeviceIDWidth is the rendered width of a device id field, including sign.
	DeviceIDWidth = 2
	// CountWidth is the width of a batch command count field.
	CountWidth = 2
	// MaxChunkSize bounds a single write/read fragment of a MODIFY payload.
	MaxChunkSize = 1000

	// DefaultUserID is the sentinel meaning "unassigned, requesting onboarding".
	DefaultUserID = "00000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000"
	// DefaultDeviceID is the sentinel meaning "unassigned, requesting enrolment".
	DefaultDeviceID = -1
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func init() {
	if len(DefaultUserID) != UserIDLength {
		panic(fmt.Sprintf("DefaultUserID has length %d, want %d", len(DefaultUserID), UserIDLength))
	}
}

// GenerateUserID returns a fresh, uniformly random user id. The caller is
// responsible for rejecting collisions against the existing registry; this
// function does not consult any state.
func GenerateUserID() (string, error) {
	// Bytes at or above limit are rejected so that every character of
	// idAlphabet is equally likely.
	limit := 256 - 256%len(idAlphabet)
	buf := make([]byte, 0, UserIDLength)
	idx := make([]byte, UserIDLength)
	for len(buf) < UserIDLength {
		if _, err := rand.Read(idx); err != nil {
			return "", fmt.Errorf("protocol: generating user id: %w", err)
		}
		for _, b := range idx {
			if int(b) < limit && len(buf) < UserIDLength {
				buf = append(buf, idAlphabet[int(b)%len(idAlphabet)])
			}
		}
	}
	return string(buf), nil
}

// FormatDeviceID renders a device id as the 2-character, left zero-padded
// (or, for the sentinel, left-padded with a leading minus) decimal the wire
// protocol expects.
func FormatDeviceID(id int) string {
	// %0*d zero-pads positive ids and renders the -1 sentinel as "-1",
	// both already DeviceIDWidth characters wide.
	return fmt.Sprintf("%0*d", DeviceIDWidth, id)
}

// ParseDeviceID parses a DeviceIDWidth-character device id field.
func ParseDeviceID(s string) (int, error) {
	if len(s) != DeviceIDWidth {
		return 0, fmt.Errorf("protocol: device id field has length %d, want %d", len(s), DeviceIDWidth)
	}
	var id int
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
		return 0, fmt.Errorf("protocol: malformed device id %q: %w", s, err)
	}
	return id, nil
}
