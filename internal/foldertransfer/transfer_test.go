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

package foldertransfer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o777))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o666))
}

func TestSendReceiveRoundTrip(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "a.txt", "hi")
	writeFile(t, src, "sub/b.txt", "x")

	var buf bytes.Buffer
	require.NoError(t, Send(&buf, src))

	dst := t.TempDir()
	require.NoError(t, Receive(&buf, dst))

	got, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "hi", string(got))

	got, err = os.ReadFile(filepath.Join(dst, "sub", "b.txt"))
	require.NoError(t, err)
	require.Equal(t, "x", string(got))
}

func TestSendReceiveLargeFileSpansChunks(t *testing.T) {
	src := t.TempDir()
	content := bytes.Repeat([]byte{'q'}, 3500)
	writeFile(t, src, "big.bin", string(content))

	var buf bytes.Buffer
	require.NoError(t, Send(&buf, src))

	dst := t.TempDir()
	require.NoError(t, Receive(&buf, dst))

	got, err := os.ReadFile(filepath.Join(dst, "big.bin"))
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestReceiveTruncatedMidFileIsFatal(t *testing.T) {
	// Header declares 100 bytes but only 3 are actually present.
	r := bytes.NewBufferString("f.txt\n100\nabc")
	dst := t.TempDir()
	err := Receive(r, dst)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestReceiveEmptyStreamIsCleanEOF(t *testing.T) {
	dst := t.TempDir()
	require.NoError(t, Receive(bytes.NewReader(nil), dst))
}
