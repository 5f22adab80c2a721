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

// Package reporting forwards fatal errors (onboarding collisions, watcher
// death, unrecoverable interpreter failures) to an external crash-reporting
// service, mirroring the analytics hook the teacher wires into its own
// fatal-error paths.
package reporting

import (
	"github.com/getsentry/raven-go"
)

// Reporter sends fatal errors to a configured Sentry-compatible DSN. The
// zero value is a no-op reporter suitable for tests and for operators who
// don't configure a DSN.
type Reporter struct {
	client *raven.Client
}

// New configures a Reporter against dsn. An empty dsn yields a no-op
// reporter: fatal-error reporting is an ambient concern, not a hard
// dependency, and the service must keep working without it configured.
func New(dsn string) (*Reporter, error) {
	if dsn == "" {
		return &Reporter{}, nil
	}
	client, err := raven.New(dsn)
	if err != nil {
		return nil, err
	}
	return &Reporter{client: client}, nil
}

// ReportFatal reports err, tagged with the component that hit it
// (e.g. "onboarding", "watcher", "interpreter"), and blocks until the
// report has been sent or has definitively failed.
func (r *Reporter) ReportFatal(component string, err error) {
	if r == nil || r.client == nil || err == nil {
		return
	}
	r.client.CaptureMessageAndWait(err.Error(), map[string]string{"component": component})
}
