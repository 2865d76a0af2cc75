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

package broker

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every Prometheus collector the broker exposes. It mirrors
// internal/metrics.Metrics's KV collectors and extends them with
// subscription/publish counters for the pub/sub half of the protocol.
type Metrics struct {
	KVOperationsTotal   *prometheus.CounterVec
	KVOperationDuration *prometheus.HistogramVec
	KVKeysTotal         prometheus.Gauge
	KVExpiredKeysTotal  prometheus.Counter
	KVCleanupDuration   prometheus.Histogram

	SubscriptionsActive  prometheus.Gauge
	PublishesTotal       *prometheus.CounterVec
	PublishDeliveryTotal *prometheus.CounterVec
	ConnectionsActive    *prometheus.GaugeVec
}

// NewMetrics builds and registers every collector against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		KVOperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kbcomm_kv_operations_total",
			Help: "The total number of keystore operations performed, by command and outcome.",
		}, []string{"operation", "status"}),
		KVOperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kbcomm_kv_operation_duration_seconds",
			Help:    "Duration of keystore operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		KVKeysTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kbcomm_kv_keys_total",
			Help: "The current number of live keys in the keystore.",
		}),
		KVExpiredKeysTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kbcomm_kv_expired_keys_total",
			Help: "The total number of keys removed because they expired.",
		}),
		KVCleanupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kbcomm_kv_cleanup_duration_seconds",
			Help:    "Duration of periodic keystore reaper sweeps.",
			Buckets: prometheus.DefBuckets,
		}),
		SubscriptionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kbcomm_subscriptions_active",
			Help: "The current number of active (pattern, connection) subscriptions.",
		}),
		PublishesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kbcomm_publishes_total",
			Help: "The total number of PUB commands processed.",
		}, []string{"status"}),
		PublishDeliveryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kbcomm_publish_deliveries_total",
			Help: "The total number of per-subscriber publish deliveries, by outcome.",
		}, []string{"outcome"}),
		ConnectionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kbcomm_connections_active",
			Help: "The current number of open connections, by role.",
		}, []string{"role"}),
	}
	reg.MustRegister(
		m.KVOperationsTotal,
		m.KVOperationDuration,
		m.KVKeysTotal,
		m.KVExpiredKeysTotal,
		m.KVCleanupDuration,
		m.SubscriptionsActive,
		m.PublishesTotal,
		m.PublishDeliveryTotal,
		m.ConnectionsActive,
	)
	return m
}

func (m *Metrics) RecordKVOperation(operation, status string, duration float64) {
	m.KVOperationsTotal.WithLabelValues(operation, status).Inc()
	m.KVOperationDuration.WithLabelValues(operation).Observe(duration)
}

func (m *Metrics) SetKVKeysTotal(count float64) {
	m.KVKeysTotal.Set(count)
}

func (m *Metrics) RecordKeyReap(removed int, duration float64) {
	m.KVExpiredKeysTotal.Add(float64(removed))
	m.KVCleanupDuration.Observe(duration)
}

func (m *Metrics) RecordPublish(status string) {
	m.PublishesTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordDelivery(delivered, dropped int) {
	if delivered > 0 {
		m.PublishDeliveryTotal.WithLabelValues("delivered").Add(float64(delivered))
	}
	if dropped > 0 {
		m.PublishDeliveryTotal.WithLabelValues("dropped").Add(float64(dropped))
	}
}

func (m *Metrics) SetSubscriptionsActive(count int) {
	m.SubscriptionsActive.Set(float64(count))
}

func (m *Metrics) ConnectionOpened(role string) {
	m.ConnectionsActive.WithLabelValues(role).Inc()
}

func (m *Metrics) ConnectionClosed(role string) {
	m.ConnectionsActive.WithLabelValues(role).Dec()
}
