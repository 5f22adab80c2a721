// Copyright (C) 2024 The Foldersync Authors. All rights reserved. Use of
// this source code is governed by an MIT-style license that can be found in
// the LICENSE file.

package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerLevelFiltering(t *testing.T) {
	l := New()
	l.SetFlags(0)

	var debug, info, warn int
	l.AddHandler(LevelDebug, func(LogLevel, string) { debug++ })
	l.AddHandler(LevelInfo, func(LogLevel, string) { info++ })
	l.AddHandler(LevelWarn, func(LogLevel, string) { warn++ })

	f := l.NewFacility("test", "")
	l.SetDebug("test", true)

	f.Debugf("d")
	f.Infof("i")
	f.Warnf("w")

	require.Equal(t, 3, debug) // debug handler also sees info/warn
	require.Equal(t, 2, info)
	require.Equal(t, 1, warn)
}

func TestDebugSuppressedUntilEnabled(t *testing.T) {
	l := New()
	l.SetFlags(0)

	var seen int
	l.AddHandler(LevelDebug, func(LogLevel, string) { seen++ })

	f := l.NewFacility("quiet", "")
	f.Debugf("should not be seen")
	require.Equal(t, 0, seen)

	l.SetDebug("quiet", true)
	f.Debugf("now visible")
	require.Equal(t, 1, seen)
}
