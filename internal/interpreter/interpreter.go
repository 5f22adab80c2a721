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

// Package interpreter applies decoded commands to a folder tree rooted at a
// caller-supplied path.
package interpreter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/foldersync/foldersync/internal/protocol"
)

// ErrPathEscape is returned when a command's path would resolve outside the
// folder root, e.g. via a ".." component.
var ErrPathEscape = errors.New("interpreter: path escapes folder root")

// Apply applies one decoded command to the folder rooted at root, producing
// filesystem side effects. It is idempotent: applying the same command
// twice against the same starting state yields the same resulting state.
func Apply(root string, c protocol.Command) error {
	switch c.Kind {
	case protocol.KindCreate:
		return applyCreate(root, c)
	case protocol.KindDelete:
		return applyDelete(root, c)
	case protocol.KindModify:
		return applyModify(root, c)
	case protocol.KindMove:
		return applyMove(root, c)
	default:
		return fmt.Errorf("%w: %q", protocol.ErrUnknownKind, byte(c.Kind))
	}
}

func resolve(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("%w: empty path", ErrPathEscape)
	}
	native := filepath.FromSlash(strings.ReplaceAll(rel, `\`, "/"))
	full := filepath.Join(root, native)
	rootClean := filepath.Clean(root)
	if full != rootClean && !strings.HasPrefix(full, rootClean+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrPathEscape, rel)
	}
	return full, nil
}

func applyCreate(root string, c protocol.Command) error {
	full, err := resolve(root, c.Path)
	if err != nil {
		return err
	}
	if c.IsDir {
		return os.MkdirAll(full, 0o777)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o777); err != nil {
		return err
	}
	f, err := os.OpenFile(full, os.O_CREATE, 0o666)
	if err != nil {
		return err
	}
	// An existing file is left untouched: O_CREATE without O_TRUNC/O_WRONLY
	// does not modify existing content.
	return f.Close()
}

func applyDelete(root string, c protocol.Command) error {
	full, err := resolve(root, c.Path)
	if err != nil {
		return err
	}
	if c.IsDir {
		return removeTreeBottomUp(full)
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// removeTreeBottomUp deletes full's contents bottom-up, longest path first,
// so every entry is removed before its parent directory (children before
// parents, as the reference implementation's remove_folder did with
// os.walk(topdown=False)), then removes full itself. A missing target is
// success.
func removeTreeBottomUp(full string) error {
	entries, err := listRecursive(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	// Deepest paths first so a directory is empty by the time it's removed.
	sort.Slice(entries, func(i, j int) bool {
		return len(entries[i]) > len(entries[j])
	})
	for _, p := range entries {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func listRecursive(root string) ([]string, error) {
	var out []string
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func applyModify(root string, c protocol.Command) error {
	full, err := resolve(root, c.Path)
	if err != nil {
		return err
	}
	if info, err := os.Stat(full); err == nil && info.IsDir() {
		return fmt.Errorf("interpreter: refusing to MODIFY a directory at %q", c.Path)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o777); err != nil {
		return err
	}
	return os.WriteFile(full, c.Content, 0o666)
}

func applyMove(root string, c protocol.Command) error {
	oldFull, err := resolve(root, c.OldPath)
	if err != nil {
		return err
	}
	newFull, err := resolve(root, c.NewPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(newFull), 0o777); err != nil {
		return err
	}
	if err := os.Rename(oldFull, newFull); err != nil {
		if os.IsNotExist(err) {
			// Already moved by a peer: treat as success.
			return nil
		}
		return err
	}
	return nil
}
