// SPDX-License-Identifier: AGPL-3.0-or-later
// KBComm - an in-process-network key/value store with integrated pub/sub
// Copyright (C) 2023-2026 Jacob McSwain
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package dashboard

import "github.com/prometheus/client_golang/prometheus"

// wsMetrics tracks active browser websocket connections to the dashboard
// bridge, mirroring the broker's own connection gauge.
type wsMetrics struct {
	connectionsActive prometheus.Gauge
}

func newWSMetrics(reg prometheus.Registerer) *wsMetrics {
	m := &wsMetrics{
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kbcomm_dashboard_websocket_connections_active",
			Help: "Number of active dashboard websocket connections.",
		}),
	}
	reg.MustRegister(m.connectionsActive)
	return m
}
