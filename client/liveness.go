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
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrHandshakeTimeout is returned by WaitUntilConnected when the
// deadline elapses before the connection becomes live.
var ErrHandshakeTimeout = errors.New("client: connection handshake timed out")

// liveness tracks whether the client's last server interaction
// succeeded, firing onDisconnect exactly once per live-to-dead
// transition.
type liveness struct {
	dead          atomic.Bool
	onDisconnect  func()
}

func newLiveness(onDisconnect func()) *liveness {
	return &liveness{onDisconnect: onDisconnect}
}

func (l *liveness) markAlive() {
	l.dead.Store(false)
}

func (l *liveness) markDead() {
	if l.dead.CompareAndSwap(false, true) && l.onDisconnect != nil {
		l.onDisconnect()
	}
}

func (l *liveness) isDead() bool {
	return l.dead.Load()
}

// WaitUntilConnected sends PING over the SETGET socket every 20ms until
// one is answered, returning ErrHandshakeTimeout once timeout elapses
// (or ctx's error if ctx ends first).
func (c *Client) WaitUntilConnected(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		if c.transport.IsConnected() {
			if _, err := c.GetLatency(); err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			c.liveness.markDead()
			return ErrHandshakeTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
