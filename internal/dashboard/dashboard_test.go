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

package dashboard_test

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/kevinbotlib/kbcomm/internal/broker"
	"github.com/kevinbotlib/kbcomm/internal/config"
	"github.com/kevinbotlib/kbcomm/internal/dashboard"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// startTestStack brings up a real broker.Server and a real dashboard.Server
// on ephemeral ports, wired together the way cmd/serve.go wires them.
func startTestStack(t *testing.T) (brokerSrv *broker.Server, dashAddr string) {
	t.Helper()

	brokerCfg := config.Broker{Bind: "127.0.0.1", Port: 0, ReadTimeout: 3 * time.Second}
	brokerSrv = broker.NewServer(brokerCfg, slog.Default(), prometheus.NewRegistry())

	scheduler, err := gocron.NewScheduler()
	require.NoError(t, err)
	scheduler.Start()
	t.Cleanup(func() { _ = scheduler.Shutdown() })

	require.NoError(t, brokerSrv.Start(scheduler))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = brokerSrv.Stop(ctx)
	})

	dashCfg := config.Dashboard{
		Bind:               "127.0.0.1",
		Port:               0,
		RateLimitPerMinute: 1000,
	}
	dashSrv := dashboard.NewServer(dashCfg, slog.Default(), brokerSrv, prometheus.NewRegistry())
	require.NoError(t, dashSrv.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = dashSrv.Stop(ctx)
	})

	addr := dashSrv.Addr().(*net.TCPAddr)
	dashAddr = net.JoinHostPort(addr.IP.String(), strconv.Itoa(addr.Port))
	return brokerSrv, dashAddr
}

// brokerTCPAddr returns the host/port a client.Transport can dial to reach
// srv's SETGET/PUBSUB listener.
func brokerTCPAddr(srv *broker.Server) (host string, port int) {
	addr := srv.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}
