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

// Package foldertransfer implements the whole-folder upload/download used
// during onboarding: a per-file LF-delimited header (relative path, size)
// followed by the file's raw bytes.
package foldertransfer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/foldersync/foldersync/internal/protocol"
)

// ErrTruncated is returned by Receive when the stream ends mid-file.
var ErrTruncated = errors.New("foldertransfer: connection closed mid-file")

// Send walks root recursively and writes each regular file to w as
// "relative/path\n" + "size\n" + raw bytes, chunked to protocol.MaxChunkSize.
// Empty directories are not transmitted; they are reconstructed implicitly
// by Receive from the paths of the files within them.
func Send(w io.Writer, root string) error {
	return filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()

		header := fmt.Sprintf("%s\n%d\n", rel, info.Size())
		if err := protocol.WriteAll(w, []byte(header)); err != nil {
			return err
		}
		buf := make([]byte, protocol.MaxChunkSize)
		if _, err := io.CopyBuffer(chunkedWriter{w}, f, buf); err != nil {
			return fmt.Errorf("foldertransfer: sending %q: %w", rel, err)
		}
		return nil
	})
}

// chunkedWriter fragments writes to protocol.MaxChunkSize, matching the
// sender-side chunking spec §4.3 requires for large files.
type chunkedWriter struct {
	w io.Writer
}

func (c chunkedWriter) Write(p []byte) (int, error) {
	if err := protocol.WriteChunked(c.w, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Receive reads a stream produced by Send and materializes it under root,
// creating missing parent directories. It returns nil at a clean EOF between
// files, and ErrTruncated if the stream ends mid-file.
func Receive(r io.Reader, root string) error {
	br := bufio.NewReader(r)
	for {
		pathLine, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && pathLine == "" {
				return nil
			}
			return fmt.Errorf("foldertransfer: reading path header: %w", err)
		}
		rel := strings.TrimRight(pathLine, "\n")
		rel = strings.ReplaceAll(rel, `\`, "/")

		sizeLine, err := br.ReadString('\n')
		if err != nil {
			return fmt.Errorf("foldertransfer: reading size header for %q: %w", rel, err)
		}
		size, err := strconv.ParseInt(strings.TrimRight(sizeLine, "\n"), 10, 64)
		if err != nil {
			return fmt.Errorf("foldertransfer: malformed size header for %q: %w", rel, err)
		}

		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o777); err != nil {
			return err
		}
		out, err := os.Create(full)
		if err != nil {
			return err
		}
		n, err := io.CopyN(out, br, size)
		closeErr := out.Close()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: %q (%d of %d bytes)", ErrTruncated, rel, n, size)
			}
			return err
		}
		if closeErr != nil {
			return closeErr
		}
	}
}
