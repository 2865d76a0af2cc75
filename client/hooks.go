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
	"log/slog"
	"time"

	"github.com/kevinbotlib/kbcomm/internal/sendable"
)

// hookPollInterval is the fixed tick the hook engine GETs each watched
// key on. Independent of pub/sub: the broker emits no change notification
// on SET, so peer state changes are only observable by polling.
const hookPollInterval = 10 * time.Millisecond

// Hook is invoked whenever a watched key's value changes: val is nil if
// the key is absent.
type Hook func(key string, val sendable.Sendable)

type hookEntry struct {
	key  string
	hook Hook
}

// hookRawState is the hook engine's per-key memo of the last raw value it
// observed, used to detect a change on the next tick without decoding
// unchanged values repeatedly.
type hookRawState struct {
	raw     string
	present bool
}

// AddHook registers hook against key: on every poll tick, the engine GETs
// key and, if the raw value differs from what it last observed, decodes
// it through the client's sendable registry and invokes hook. hook is
// called with a nil value when key disappears after having been observed
// present; a key that is absent from the start fires nothing until it
// first appears. A decode failure is logged
// and the callback is skipped, but the raw-value memo still advances so
// the failure doesn't repeat every tick.
func (c *Client) AddHook(key string, hook Hook) error {
	c.hooksMu.Lock()
	c.hooks = append(c.hooks, hookEntry{key: key, hook: hook})
	c.hooksMu.Unlock()

	c.startHooks()
	return nil
}

// RemoveHooks stops delivery for every hook registered on key.
func (c *Client) RemoveHooks(key string) error {
	c.hooksMu.Lock()
	kept := c.hooks[:0]
	for _, h := range c.hooks {
		if h.key != key {
			kept = append(kept, h)
		}
	}
	c.hooks = kept
	c.hooksMu.Unlock()

	c.hookStateMu.Lock()
	delete(c.hookState, key)
	c.hookStateMu.Unlock()
	return nil
}

// startHooks launches the poll-tick goroutine the first time a hook is
// registered. Safe to call repeatedly; only the first call has an effect.
func (c *Client) startHooks() {
	c.hookStartOnce.Do(func() {
		c.hooksMu.Lock()
		c.hookStop = make(chan struct{})
		c.hooksMu.Unlock()
		c.hookWG.Add(1)
		go c.runHooks()
	})
}

// stopHooks signals the poll-tick goroutine to exit and waits for it,
// called from Close so no goroutine outlives its client. A no-op if no
// hook was ever registered.
func (c *Client) stopHooks() {
	c.hooksMu.Lock()
	stop := c.hookStop
	c.hooksMu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	c.hookWG.Wait()
}

func (c *Client) runHooks() {
	defer c.hookWG.Done()

	ticker := time.NewTicker(hookPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.hookStop:
			return
		case <-ticker.C:
			c.pollHooks()
		}
	}
}

func (c *Client) pollHooks() {
	c.hooksMu.Lock()
	entries := make([]hookEntry, len(c.hooks))
	copy(entries, c.hooks)
	c.hooksMu.Unlock()

	for _, e := range entries {
		raw, ok, err := c.transport.Get(e.key)
		if err != nil {
			c.liveness.markDead()
			continue
		}
		c.liveness.markAlive()

		c.hookStateMu.Lock()
		// An unseen key reads as the zero memo (absent), so a key that
		// is missing on the first poll does not count as a change.
		prev := c.hookState[e.key]
		changed := prev.present != ok || prev.raw != raw
		if changed {
			c.hookState[e.key] = hookRawState{raw: raw, present: ok}
		}
		c.hookStateMu.Unlock()

		if !changed {
			continue
		}

		if !ok {
			e.hook(e.key, nil)
			continue
		}

		s, err := c.registry.Decode(raw)
		if err != nil {
			c.logger.Warn("failed to decode sendable for hook", "key", e.key, "error", err)
			continue
		}
		e.hook(e.key, s)
	}
}

func defaultLogger() *slog.Logger {
	return slog.Default()
}
