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

package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateUserIDLength(t *testing.T) {
	id, err := GenerateUserID()
	require.NoError(t, err)
	require.Len(t, id, UserIDLength)
	for _, r := range id {
		require.Contains(t, idAlphabet, string(r))
	}
}

func TestFormatParseDeviceID(t *testing.T) {
	cases := []int{0, 1, 9, 10, 63, DefaultDeviceID}
	for _, id := range cases {
		s := FormatDeviceID(id)
		require.Len(t, s, DeviceIDWidth)
		got, err := ParseDeviceID(s)
		require.NoError(t, err)
		require.Equal(t, id, got)
	}
}

func TestDefaultUserIDSentinel(t *testing.T) {
	require.Len(t, DefaultUserID, UserIDLength)
	for _, r := range DefaultUserID {
		require.Equal(t, '0', r)
	}
}
