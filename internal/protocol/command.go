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
	"errors"
	"fmt"
	"io"
)

// Kind identifies which of the four command shapes a Command holds.
type Kind byte

const (
	KindCreate Kind = '1'
	KindDelete Kind = '2'
	KindModify Kind = '3'
	KindMove   Kind = '4'
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "CREATE"
	case KindDelete:
		return "DELETE"
	case KindModify:
		return "MODIFY"
	case KindMove:
		return "MOVE"
	default:
		return fmt.Sprintf("Kind(%q)", byte(k))
	}
}

// ErrUnknownKind is returned when a command's tag byte does not match any
// known Kind. It is fatal for the connection that produced it.
var ErrUnknownKind = errors.New("protocol: unknown command kind")

// Command is a tagged union over the four wire command shapes. Only the
// fields relevant to Kind are meaningful; Encode ignores the rest.
type Command struct {
	Kind Kind

	// CREATE, DELETE
	IsDir bool
	Path  string

	// MODIFY
	Content []byte

	// MOVE
	OldPath string
	NewPath string
}

// NewCreate builds a CREATE command.
func NewCreate(path string, isDir bool) Command {
	return Command{Kind: KindCreate, Path: path, IsDir: isDir}
}

// NewDelete builds a DELETE command.
func NewDelete(path string, isDir bool) Command {
	return Command{Kind: KindDelete, Path: path, IsDir: isDir}
}

// NewModify builds a MODIFY command. content is treated as opaque bytes.
func NewModify(path string, content []byte) Command {
	return Command{Kind: KindModify, Path: path, Content: content}
}

// NewMove builds a MOVE command.
func NewMove(oldPath, newPath string) Command {
	return Command{Kind: KindMove, OldPath: oldPath, NewPath: newPath}
}

// payload returns the tag-specific bytes that follow the kind tag, per the
// table in spec §3.
func (c Command) payload() ([]byte, error) {
	switch c.Kind {
	case KindCreate, KindDelete:
		var buf bytes.Buffer
		if c.IsDir {
			buf.WriteByte('1')
		} else {
			buf.WriteByte('0')
		}
		buf.WriteString(c.Path)
		return buf.Bytes(), nil
	case KindModify:
		if len(c.Path) >= 1000 {
			return nil, fmt.Errorf("protocol: path %q too long for a %d-char length field", c.Path, PathLenSize)
		}
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "%0*d", PathLenSize, len(c.Path))
		buf.WriteString(c.Path)
		buf.Write(c.Content)
		return buf.Bytes(), nil
	case KindMove:
		if len(c.OldPath) >= 1000 {
			return nil, fmt.Errorf("protocol: path %q too long for a %d-char length field", c.OldPath, PathLenSize)
		}
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "%0*d", PathLenSize, len(c.OldPath))
		buf.WriteString(c.OldPath)
		buf.WriteString(c.NewPath)
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, byte(c.Kind))
	}
}

// Encode renders c as a complete command record: the CommandLenSize-char
// total-length header, the kind tag, and the tag-specific payload.
func (c Command) Encode() ([]byte, error) {
	payload, err := c.payload()
	if err != nil {
		return nil, err
	}
	total := CommandLenSize + CommandIDLen + len(payload)
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%0*d", CommandLenSize, total)
	buf.WriteByte(byte(c.Kind))
	buf.Write(payload)
	if buf.Len() != total {
		return nil, fmt.Errorf("protocol: internal encode length mismatch: wrote %d, declared %d", buf.Len(), total)
	}
	return buf.Bytes(), nil
}

// WriteTo encodes c and writes it to w using WriteChunked, so that large
// MODIFY payloads are fragmented as required by spec §4.1.
func (c Command) WriteTo(w io.Writer) error {
	raw, err := c.Encode()
	if err != nil {
		return err
	}
	return WriteChunked(w, raw)
}

// DecodeCommand reads one full command record from r: an 8-char length L,
// then L-8 further bytes, dispatching on the first byte of those.
func DecodeCommand(r io.Reader) (Command, error) {
	total, err := ReadDecimal(r, CommandLenSize)
	if err != nil {
		return Command{}, err
	}
	rest := total - CommandLenSize
	if rest < CommandIDLen {
		return Command{}, fmt.Errorf("protocol: declared command length %d too short", total)
	}
	body, err := ReadExact(r, rest)
	if err != nil {
		return Command{}, err
	}
	return decodeBody(body)
}

func decodeBody(body []byte) (Command, error) {
	kind := Kind(body[0])
	rest := body[1:]
	switch kind {
	case KindCreate, KindDelete:
		if len(rest) < 1 {
			return Command{}, fmt.Errorf("protocol: %s command missing is_dir flag", kind)
		}
		isDir := rest[0] == '1'
		path := string(rest[1:])
		if kind == KindCreate {
			return NewCreate(path, isDir), nil
		}
		return NewDelete(path, isDir), nil
	case KindModify:
		if len(rest) < PathLenSize {
			return Command{}, fmt.Errorf("protocol: MODIFY command missing path-length field")
		}
		pathLen, err := parseDecimal(string(rest[:PathLenSize]))
		if err != nil {
			return Command{}, err
		}
		rest = rest[PathLenSize:]
		if len(rest) < pathLen {
			return Command{}, fmt.Errorf("protocol: MODIFY command path-length %d exceeds payload", pathLen)
		}
		path := string(rest[:pathLen])
		content := append([]byte(nil), rest[pathLen:]...)
		return NewModify(path, content), nil
	case KindMove:
		if len(rest) < PathLenSize {
			return Command{}, fmt.Errorf("protocol: MOVE command missing old-path-length field")
		}
		pathLen, err := parseDecimal(string(rest[:PathLenSize]))
		if err != nil {
			return Command{}, err
		}
		rest = rest[PathLenSize:]
		if len(rest) < pathLen {
			return Command{}, fmt.Errorf("protocol: MOVE command old-path-length %d exceeds payload", pathLen)
		}
		oldPath := string(rest[:pathLen])
		newPath := string(rest[pathLen:])
		return NewMove(oldPath, newPath), nil
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownKind, byte(kind))
	}
}

// EncodeBatch writes a CountWidth-char count followed by each command, the
// framing used both for sync-round uploads/downloads and (with C=0) for
// onboarding handshakes.
func EncodeBatch(w io.Writer, cmds []Command) error {
	if len(cmds) > 99 {
		return fmt.Errorf("protocol: batch of %d commands exceeds %d-char count field", len(cmds), CountWidth)
	}
	if err := WriteDecimal(w, len(cmds), CountWidth); err != nil {
		return err
	}
	for _, c := range cmds {
		if err := c.WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}

// DecodeBatch reads a CountWidth-char count and that many commands.
func DecodeBatch(r io.Reader) ([]Command, error) {
	count, err := ReadDecimal(r, CountWidth)
	if err != nil {
		return nil, err
	}
	cmds := make([]Command, 0, count)
	for i := 0; i < count; i++ {
		c, err := DecodeCommand(r)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, c)
	}
	return cmds, nil
}
