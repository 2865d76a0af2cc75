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

import "strings"

// connSubscriber adapts a *conn to the subscriber interface used by
// subscriptionTable.broadcast: delivering a publish means writing a PUB
// frame to the underlying socket.
type connSubscriber struct {
	c *conn
}

func (cs connSubscriber) deliver(key, value string) error {
	return cs.c.writeLine("PUB " + key + " " + value)
}

// handlePubSub runs the PUBSUB command loop for one connection: SUB,
// UNSUB, PUB, PING, RDY. Mirrors NetworkServer.handle_pubsub, including
// unsubscribing from every held pattern on disconnect.
func (s *Server) handlePubSub(c *conn, addr string) {
	sub := connSubscriber{c: c}
	patterns := make(map[string]struct{})

	defer func() {
		for pattern := range patterns {
			s.subscriptions.remove(pattern, sub)
		}
		s.metrics.SetSubscriptionsActive(s.subscriptions.count())
		s.logger.Info("closing PUBSUB connection", "addr", addr)
	}()

	for {
		line, err := c.readLine()
		if err != nil {
			break
		}
		if line == "" {
			continue
		}

		fields := strings.SplitN(line, " ", 3)
		command := strings.ToUpper(fields[0])

		switch {
		case command == "SUB" && len(fields) >= 2:
			pattern := fields[1]
			s.subscriptions.add(pattern, sub)
			patterns[pattern] = struct{}{}
			s.metrics.SetSubscriptionsActive(s.subscriptions.count())
			s.logger.Debug("client subscribed", "pattern", pattern, "addr", addr)

		case command == "UNSUB" && len(fields) >= 2:
			pattern := fields[1]
			s.subscriptions.remove(pattern, sub)
			delete(patterns, pattern)
			s.metrics.SetSubscriptionsActive(s.subscriptions.count())
			s.logger.Debug("client unsubscribed", "pattern", pattern, "addr", addr)

		case command == "PUB" && len(fields) >= 3:
			_, span := startSpan(s.ctx, "broker.publish")
			delivered, dropped := s.subscriptions.broadcast(fields[1], fields[2])
			span.End()
			s.metrics.RecordPublish("ok")
			s.metrics.RecordDelivery(delivered, dropped)
			if err := c.writeLine("OK"); err != nil {
				return
			}

		case command == "PING":
			if err := c.writeLine("PONG"); err != nil {
				return
			}

		case command == "RDY":
			if err := c.writeLine("OK"); err != nil {
				return
			}

		default:
			if err := c.writeLine("ERROR Invalid PUBSUB command"); err != nil {
				return
			}
		}
	}
}
