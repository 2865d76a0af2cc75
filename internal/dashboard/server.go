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

// Package dashboard implements an HTTP+WebSocket bridge in front of the
// broker's keystore and subscription table, so a browser dashboard can
// inspect and watch keys without speaking the raw SETGET/PUBSUB line
// protocol itself.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kevinbotlib/kbcomm/internal/broker"
	"github.com/kevinbotlib/kbcomm/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const readTimeout = 3 * time.Second

// Server is the HTTP+WebSocket bridge to a broker.Server.
type Server struct {
	cfg    config.Dashboard
	logger *slog.Logger
	broker *broker.Server
	ws     *wsHandler

	httpServer *http.Server
	listener   net.Listener
}

// NewServer builds a Server for cfg, reading from and watching brokerServer.
func NewServer(cfg config.Dashboard, logger *slog.Logger, brokerServer *broker.Server, registry *prometheus.Registry) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		broker: brokerServer,
		ws:     newWSHandler(cfg, brokerServer, logger, newWSMetrics(registry)),
	}
}

// Start builds the gin router and begins serving in the background. It
// returns once the listener is bound.
func (s *Server) Start() error {
	r := gin.New()
	r.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = s.cfg.CORSHosts
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE"}
	r.Use(cors.New(corsConfig))

	if err := r.SetTrustedProxies(s.cfg.TrustedProxies); err != nil {
		s.logger.Error("failed setting dashboard trusted proxies", "error", err)
	}

	r.Use(otelgin.Middleware("dashboard"))

	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Minute,
		Limit: uint(s.cfg.RateLimitPerMinute),
	})
	limiter := ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			c.String(http.StatusTooManyRequests, "too many requests, retry in "+time.Until(info.ResetTime).String())
		},
		KeyFunc: func(c *gin.Context) string { return c.ClientIP() },
	})
	r.Use(limiter)

	s.applyRoutes(r)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Bind, s.cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: readTimeout,
	}

	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("dashboard server failed", "error", err)
		}
	}()

	s.logger.Info("dashboard listening", "addr", listener.Addr().String())
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the HTTP listener's bound address. Useful for tests that
// bind to port 0 and need to know which port the dashboard actually took.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
