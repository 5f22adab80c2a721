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

// Package metrics exposes Prometheus collectors for the server dispatcher:
// round counts, onboardings, pending-queue depths, and applied commands. It plays the
// role the teacher's usage-reporting (ur) packages play for syncthing,
// scaled down to a handful of counters and gauges.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// SyncRoundsTotal counts completed sync rounds, partitioned by outcome.
	SyncRoundsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foldersync_sync_rounds_total",
		Help: "Total sync rounds handled by the dispatcher, by outcome.",
	}, []string{"outcome"})

	// OnboardingsTotal counts onboarding handshakes, partitioned by case.
	OnboardingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foldersync_onboardings_total",
		Help: "Total onboarding handshakes, by case (new_user, new_device).",
	}, []string{"case"})

	// PendingQueueDepth reports the length of a device's pending command
	// queue at the moment its latest round drained it, i.e. the number of
	// commands delivered to the device in that round.
	PendingQueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "foldersync_pending_queue_depth",
		Help: "Pending command queue depth for a device, sampled when each round drains it.",
	}, []string{"user_id", "device_id"})

	// CommandsAppliedTotal counts commands applied by the interpreter, by kind.
	CommandsAppliedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "foldersync_commands_applied_total",
		Help: "Total commands applied by the interpreter, by kind.",
	}, []string{"kind"})
)

// Registry is the collector registry the status HTTP surface serves. It is
// package-level because metrics are process-wide, matching how the
// prometheus client library is conventionally wired.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(SyncRoundsTotal, OnboardingsTotal, PendingQueueDepth, CommandsAppliedTotal)
}
