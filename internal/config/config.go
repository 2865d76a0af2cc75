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

// Package config holds the KBComm broker configuration, loaded through
// configulator from environment variables, a YAML file, and CLI flags.
package config

import "time"

// Broker configures the TCP listener that speaks the SETGET/PUBSUB protocol.
type Broker struct {
	// Bind is the address the broker listens on.
	Bind string `yaml:"bind" default:"0.0.0.0" env:"BROKER_BIND"`
	// Port is the TCP port the broker listens on. Spec default is 8888.
	Port int `yaml:"port" default:"8888" env:"BROKER_PORT"`
	// ReadTimeout bounds how long a newly accepted connection may take to
	// send its ROLE handshake line. Reads after the handshake carry no
	// deadline.
	ReadTimeout time.Duration `yaml:"readTimeout" default:"3s" env:"BROKER_READ_TIMEOUT"`
	// ReaperInterval is the period of the optional periodic TTL sweep
	// described in spec.md §4.4. Zero disables the periodic sweep and
	// relies solely on lazy expiry at read time.
	ReaperInterval time.Duration `yaml:"reaperInterval" default:"1s" env:"BROKER_REAPER_INTERVAL"`
}

// Dashboard configures the HTTP/WebSocket bridge that lets browser
// dashboards observe and mutate the keystore without speaking the raw
// line protocol (spec.md §6.6).
type Dashboard struct {
	Enabled bool   `yaml:"enabled" default:"true" env:"DASHBOARD_ENABLED"`
	Bind    string `yaml:"bind" default:"0.0.0.0" env:"DASHBOARD_BIND"`
	Port    int    `yaml:"port" default:"8889" env:"DASHBOARD_PORT"`

	CORSHosts      []string `yaml:"corsHosts" env:"DASHBOARD_CORS_HOSTS"`
	TrustedProxies []string `yaml:"trustedProxies" env:"DASHBOARD_TRUSTED_PROXIES"`

	// RateLimitPerMinute bounds REST/WS connection attempts per client IP.
	RateLimitPerMinute int `yaml:"rateLimitPerMinute" default:"120" env:"DASHBOARD_RATE_LIMIT"`
}

// Metrics configures the Prometheus metrics server.
type Metrics struct {
	Enabled bool   `yaml:"enabled" default:"true" env:"METRICS_ENABLED"`
	Bind    string `yaml:"bind" default:"0.0.0.0" env:"METRICS_BIND"`
	Port    int    `yaml:"port" default:"9090" env:"METRICS_PORT"`

	// OTLPEndpoint, when set, enables OpenTelemetry tracing of broker
	// dispatch and exports spans to this collector.
	OTLPEndpoint string `yaml:"otlpEndpoint" env:"OTLP_ENDPOINT"`
}

// PProf configures the diagnostic profiling server.
type PProf struct {
	Enabled        bool     `yaml:"enabled" default:"false" env:"PPROF_ENABLED"`
	Bind           string   `yaml:"bind" default:"127.0.0.1" env:"PPROF_BIND"`
	Port           int      `yaml:"port" default:"6060" env:"PPROF_PORT"`
	TrustedProxies []string `yaml:"trustedProxies" env:"PPROF_TRUSTED_PROXIES"`
}

// Config stores the full KBComm application configuration.
type Config struct {
	LogLevel LogLevel `yaml:"logLevel" default:"info" env:"LOG_LEVEL"`

	Broker    Broker    `yaml:"broker"`
	Dashboard Dashboard `yaml:"dashboard"`
	Metrics   Metrics   `yaml:"metrics"`
	PProf     PProf     `yaml:"pprof"`
}
