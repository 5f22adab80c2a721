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
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteAllReadExactRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 7, 1000, 4096} {
		payload := bytes.Repeat([]byte{'x'}, n)
		var buf bytes.Buffer
		require.NoError(t, WriteAll(&buf, payload))
		got, err := ReadExact(&buf, n)
		require.NoError(t, err)
		require.Equal(t, payload, got)
	}
}

func TestReadExactShortStreamIsFatal(t *testing.T) {
	r := bytes.NewReader([]byte("abc"))
	_, err := ReadExact(r, 10)
	require.ErrorIs(t, err, ErrShortRead)
}

func TestDecimalRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDecimal(&buf, 42, 8))
	require.Equal(t, "00000042", buf.String())
	v, err := ReadDecimal(&buf, 8)
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestWriteChunkedSplitsAtMaxChunkSize(t *testing.T) {
	var rec recordingWriter
	payload := bytes.Repeat([]byte{'a'}, MaxChunkSize+1)
	require.NoError(t, WriteChunked(&rec, payload))
	require.Len(t, rec.writes, 2)
	require.Len(t, rec.writes[0], MaxChunkSize)
	require.Len(t, rec.writes[1], 1)
}

// recordingWriter records the exact slices passed to Write, to verify
// chunking behavior without depending on bytes.Buffer's coalescing.
type recordingWriter struct {
	writes [][]byte
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	cp := append([]byte(nil), p...)
	w.writes = append(w.writes, cp)
	return len(p), nil
}

var _ io.Writer = (*recordingWriter)(nil)
