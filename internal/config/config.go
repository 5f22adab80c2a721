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

// Package config loads the optional YAML configuration file layered under
// each binary's CLI flags. There is no live-reload and no durability
// guarantee beyond the file itself; config persistence is out of scope.
package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Client holds cmd/syncclient's configuration.
type Client struct {
	ServerHost   string `json:"serverHost,omitempty"`
	ServerPort   int    `json:"serverPort,omitempty"`
	LocalFolder  string `json:"localFolder,omitempty"`
	SyncPeriodS  int    `json:"syncPeriodSeconds,omitempty"`
	UserID       string `json:"userID,omitempty"`
	SentryDSN    string `json:"sentryDSN,omitempty"`
	StatusListen string `json:"statusListen,omitempty"`
}

// Server holds cmd/syncserver's configuration.
type Server struct {
	ListenPort   int    `json:"listenPort,omitempty"`
	RemotesRoot  string `json:"remotesRoot,omitempty"`
	ListenBacklog int   `json:"listenBacklog,omitempty"`
	SentryDSN    string `json:"sentryDSN,omitempty"`
	StatusListen string `json:"statusListen,omitempty"`
}

// LoadClient reads a YAML file at path into a Client. A missing path is not
// an error: callers fall back to CLI-flag defaults.
func LoadClient(path string) (Client, error) {
	var c Client
	if path == "" {
		return c, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, fmt.Errorf("config: reading %q: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("config: parsing %q: %w", path, err)
	}
	return c, nil
}

// LoadServer reads a YAML file at path into a Server. A missing path is not
// an error: callers fall back to CLI-flag defaults.
func LoadServer(path string) (Server, error) {
	var s Server
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("config: reading %q: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("config: parsing %q: %w", path, err)
	}
	return s, nil
}
