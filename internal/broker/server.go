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

// Package broker implements the SETGET/PUBSUB network protocol: the
// in-memory keystore, the glob-matched subscription table, and the TCP
// connection dispatch loops that tie them together.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/go-co-op/gocron/v2"
	"github.com/kevinbotlib/kbcomm/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// Server owns the keystore, subscription table, and TCP listener that
// together implement the broker side of the protocol.
type Server struct {
	cfg           config.Broker
	logger        *slog.Logger
	metrics       *Metrics
	keystore      *Keystore
	subscriptions *subscriptionTable

	ctx    context.Context
	cancel context.CancelFunc

	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer builds a Server. reg receives the broker's Prometheus
// collectors; pass prometheus.DefaultRegisterer unless tests need
// isolation.
func NewServer(cfg config.Broker, logger *slog.Logger, reg prometheus.Registerer) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:           cfg,
		logger:        logger,
		metrics:       NewMetrics(reg),
		keystore:      NewKeystore(),
		subscriptions: newSubscriptionTable(),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start binds the TCP listener and begins the accept loop. It also starts
// the optional periodic reaper against scheduler when cfg.ReaperInterval
// is positive. Start returns once the listener is bound; the accept loop
// itself runs in a background goroutine.
func (s *Server) Start(scheduler gocron.Scheduler) error {
	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Bind, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on %s:%d: %w", s.cfg.Bind, s.cfg.Port, err)
	}
	s.listener = listener

	if err := startReaper(scheduler, s.keystore, s.metrics, s.cfg.ReaperInterval, s.logger); err != nil {
		return err
	}

	s.wg.Add(1)
	go s.acceptLoop()

	s.logger.Info("broker listening", "addr", listener.Addr().String())
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		raw, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.logger.Error("accept failed", "error", err)
				return
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(raw)
		}()
	}
}

// Stop closes the listener, cancels the accept loop, and waits for every
// in-flight connection handler to exit. Mirrors the teacher's
// errgroup-based shutdown fan-out generalized from multiple DMR listeners
// to this broker's single TCP listener plus its connection goroutines.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.wg.Wait()
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Keystore exposes the broker's keyspace for the dashboard bridge to read
// without speaking the raw TCP protocol.
func (s *Server) Keystore() *Keystore {
	return s.keystore
}

// Addr returns the TCP listener's bound address. Useful for tests that
// bind to port 0 and need to know which port the broker actually took.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// funcSubscriber adapts a plain callback to the subscriber interface, for
// in-process watchers (the dashboard bridge) that don't hold a TCP
// connection to write PUB lines to.
type funcSubscriber func(key, value string) error

func (f funcSubscriber) deliver(key, value string) error { return f(key, value) }

// Watch registers an in-process callback against pattern, delivered the
// same way a PUBSUB subscriber's connection would be, without opening a
// loopback TCP connection. The returned func unregisters it.
func (s *Server) Watch(pattern string, onMessage func(key, value string)) func() {
	sub := funcSubscriber(func(key, value string) error {
		onMessage(key, value)
		return nil
	})
	s.subscriptions.add(pattern, sub)
	s.metrics.SetSubscriptionsActive(s.subscriptions.count())
	return func() {
		s.subscriptions.remove(pattern, sub)
		s.metrics.SetSubscriptionsActive(s.subscriptions.count())
	}
}
