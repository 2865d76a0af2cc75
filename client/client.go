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

package client

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kevinbotlib/kbcomm/internal/sendable"
)

// Option configures a Client at construction time.
type Option func(*Client)

// WithTimeout overrides the default 5 second socket timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.timeout = timeout }
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithOnConnect registers a callback fired after a successful Connect.
func WithOnConnect(fn func()) Option {
	return func(c *Client) { c.onConnect = fn }
}

// WithOnDisconnect registers a callback fired when the client goes from
// live to dead (a failed Connect or request), and again on every Close.
func WithOnDisconnect(fn func()) Option {
	return func(c *Client) { c.onDisconnect = fn }
}

// Client is the application-facing handle to a broker: typed get/set
// over SETGET, typed publish/subscribe over PUBSUB, and liveness
// tracking so callers can react to a dropped connection.
type Client struct {
	host string
	port int

	// id is a per-instance correlation id attached to this client's log
	// lines, so a broker operator can tell two concurrent clients apart
	// in a shared log stream.
	id string

	timeout      time.Duration
	logger       *slog.Logger
	onConnect    func()
	onDisconnect func()

	transport *Transport
	registry  *sendable.Registry
	liveness  *liveness

	hooksMu       sync.Mutex
	hooks         []hookEntry
	hookStartOnce sync.Once
	hookStop      chan struct{}
	hookWG        sync.WaitGroup

	hookStateMu sync.Mutex
	hookState   map[string]hookRawState
}

// New builds a Client targeting host:port. It does not connect; call
// Connect before issuing requests.
func New(host string, port int, opts ...Option) *Client {
	c := &Client{
		host:    host,
		port:    port,
		id:      uuid.NewString(),
		timeout: 5 * time.Second,
		logger:  defaultLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("client_id", c.id)
	c.liveness = newLiveness(func() {
		if c.onDisconnect != nil {
			c.onDisconnect()
		}
	})
	c.registry = sendable.NewRegistry()
	c.transport = NewTransport(c.host, c.port, c.timeout)
	c.hookState = make(map[string]hookRawState)
	return c
}

// RegisterType adds a custom sendable tag/constructor pair to this
// client's decode registry, without mutating any process-global state.
func (c *Client) RegisterType(tag string, ctor sendable.Constructor) {
	c.registry.Register(tag, ctor)
}

// Connect opens the SETGET socket. PUBSUB sockets are opened lazily per
// subscription and per publish.
func (c *Client) Connect() error {
	if err := c.transport.Connect(); err != nil {
		c.liveness.markDead()
		return err
	}
	c.liveness.markAlive()
	if c.onConnect != nil {
		c.onConnect()
	}
	return nil
}

// IsConnected reports whether the SETGET socket is open and the last
// request against it succeeded.
func (c *Client) IsConnected() bool {
	return c.transport.IsConnected() && !c.liveness.isDead()
}

// Get retrieves the value stored under key and decodes it through the
// sendable registry. It returns nil, nil if the key doesn't exist.
func (c *Client) Get(key string) (sendable.Sendable, error) {
	raw, ok, err := c.transport.Get(key)
	if err != nil {
		c.liveness.markDead()
		return nil, err
	}
	c.liveness.markAlive()
	if !ok {
		return nil, nil
	}
	return c.registry.Decode(raw)
}

// Set encodes s, including its s.Struct() hint, and stores it under key
// with no expiry. The envelope's timeout field is neither filled in nor
// consulted; SetTTL is the only way to store an expiring key.
func (c *Client) Set(key string, s sendable.Sendable) error {
	raw, err := sendable.Encode(s)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.transport.Set(key, raw); err != nil {
		c.liveness.markDead()
		return err
	}
	c.liveness.markAlive()
	return nil
}

// SetTTL behaves like Set but expires the key after ttl.
func (c *Client) SetTTL(key string, s sendable.Sendable, ttl time.Duration) error {
	raw, err := sendable.Encode(s)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.transport.SetTTL(key, raw, ttl); err != nil {
		c.liveness.markDead()
		return err
	}
	c.liveness.markAlive()
	return nil
}

// Delete removes key.
func (c *Client) Delete(key string) error {
	if err := c.transport.Delete(key); err != nil {
		c.liveness.markDead()
		return err
	}
	c.liveness.markAlive()
	return nil
}

// WipeAll removes every key on the server.
func (c *Client) WipeAll() error {
	if err := c.transport.Clear(); err != nil {
		c.liveness.markDead()
		return err
	}
	c.liveness.markAlive()
	return nil
}

// Keys returns every key currently stored.
func (c *Client) Keys() ([]string, error) {
	keys, err := c.transport.Keys()
	if err != nil {
		c.liveness.markDead()
		return nil, err
	}
	c.liveness.markAlive()
	return keys, nil
}

// Publish encodes s and delivers it to every subscriber matching key.
func (c *Client) Publish(key string, s sendable.Sendable) error {
	raw, err := sendable.Encode(s)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.transport.Publish(key, raw); err != nil {
		c.liveness.markDead()
		return err
	}
	c.liveness.markAlive()
	return nil
}

// Subscribe decodes every value delivered on pattern through the
// client's sendable registry before invoking onMessage.
func (c *Client) Subscribe(pattern string, onMessage func(key string, s sendable.Sendable)) error {
	return c.transport.Subscribe(pattern, func(key, value string) {
		c.liveness.markAlive()
		s, err := c.registry.Decode(value)
		if err != nil {
			c.logger.Warn("failed to decode sendable", "key", key, "error", err)
			return
		}
		onMessage(key, s)
	})
}

// Unsubscribe stops delivery for pattern.
func (c *Client) Unsubscribe(pattern string) error {
	return c.transport.Unsubscribe(pattern)
}

// GetLatency measures round-trip time to the server, or returns an
// error if the ping fails.
func (c *Client) GetLatency() (time.Duration, error) {
	latency, err := c.transport.Ping()
	if err != nil {
		c.liveness.markDead()
		return 0, err
	}
	c.liveness.markAlive()
	return latency, nil
}

// Close unsubscribes every active subscription, stops the hook engine,
// and closes the SETGET socket.
func (c *Client) Close() error {
	c.stopHooks()
	err := c.transport.Close()
	if c.onDisconnect != nil {
		c.onDisconnect()
	}
	return err
}
