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
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrShortRead is returned by ReadExact when the peer closes the connection
// before delivering the requested number of bytes.
var ErrShortRead = errors.New("protocol: connection closed before all bytes were read")

// ReadExact reads exactly n bytes from r, looping until the buffer is full.
// It fails with ErrShortRead if the peer closes the stream early.
func ReadExact(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, ErrShortRead
		}
		return nil, fmt.Errorf("protocol: read_exact: %w", err)
	}
	return buf, nil
}

// WriteAll writes the entirety of buf to w, looping until it is all
// delivered or an error occurs.
func WriteAll(w io.Writer, buf []byte) error {
	written := 0
	for written < len(buf) {
		n, err := w.Write(buf[written:])
		if err != nil {
			return fmt.Errorf("protocol: write_all: %w", err)
		}
		written += n
	}
	return nil
}

// WriteChunked writes buf to w in fragments no larger than MaxChunkSize, as
// required for large MODIFY payloads that may exceed a single TCP segment.
func WriteChunked(w io.Writer, buf []byte) error {
	for off := 0; off < len(buf); off += MaxChunkSize {
		end := off + MaxChunkSize
		if end > len(buf) {
			end = len(buf)
		}
		if err := WriteAll(w, buf[off:end]); err != nil {
			return err
		}
	}
	return nil
}

// ReadDecimal reads a width-character, zero-padded ASCII decimal field and
// parses it as an integer.
func ReadDecimal(r io.Reader, width int) (int, error) {
	raw, err := ReadExact(r, width)
	if err != nil {
		return 0, err
	}
	return parseDecimal(string(raw))
}

// WriteDecimal renders v as a width-character, zero-padded ASCII decimal and
// writes it to w.
func WriteDecimal(w io.Writer, v, width int) error {
	s := fmt.Sprintf("%0*d", width, v)
	if len(s) != width {
		return fmt.Errorf("protocol: value %d does not fit in a %d-char decimal field", v, width)
	}
	return WriteAll(w, []byte(s))
}

func parseDecimal(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("protocol: malformed decimal field %q: %w", s, err)
	}
	return v, nil
}
