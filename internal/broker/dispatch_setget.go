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

import (
	"strconv"
	"strings"
	"time"
)

// handleSetGet runs the SETGET command loop for one connection: SET, SETX,
// GET, DEL, CLR, GKC, GAK, KEY, PING, RDY. Mirrors
// NetworkServer.handle_setget/process_setget.
func (s *Server) handleSetGet(c *conn, addr string) {
	for {
		line, err := c.readLine()
		if err != nil {
			break
		}
		if line == "" {
			continue
		}

		response := s.dispatchSetGet(line)
		if err := c.writeLine(response); err != nil {
			break
		}
	}
	s.logger.Info("closing SETGET connection", "addr", addr)
}

func (s *Server) dispatchSetGet(message string) string {
	ctx, span := startSpan(s.ctx, "broker.setget")
	defer span.End()
	_ = ctx

	fields := strings.SplitN(message, " ", 3)
	command := strings.ToUpper(fields[0])

	start := time.Now()
	status := "ok"
	defer func() {
		s.metrics.RecordKVOperation(strings.ToLower(command), status, time.Since(start).Seconds())
	}()

	switch command {
	case "SET":
		if len(fields) < 3 {
			status = "error"
			return "ERROR Invalid command"
		}
		s.keystore.Set(fields[1], fields[2])
		s.metrics.SetKVKeysTotal(float64(s.keystore.Len()))
		return "OK"

	case "SETX":
		// SETX key ttl_ms value
		parts := strings.SplitN(message, " ", 4)
		if len(parts) < 4 {
			status = "error"
			return "ERROR Invalid command"
		}
		ttlMS, err := strconv.Atoi(parts[2])
		if err != nil {
			status = "error"
			return "ERROR Invalid TTL"
		}
		s.keystore.SetTTL(parts[1], parts[3], time.Duration(ttlMS)*time.Millisecond)
		s.metrics.SetKVKeysTotal(float64(s.keystore.Len()))
		return "OK"

	case "GET":
		if len(fields) < 2 {
			status = "error"
			return "ERROR Invalid command"
		}
		value, ok := s.keystore.Get(fields[1])
		if !ok {
			status = "miss"
			return "ERROR Key not found"
		}
		return value

	case "DEL":
		if len(fields) < 2 {
			status = "error"
			return "ERROR Invalid command"
		}
		s.keystore.Delete(fields[1])
		s.metrics.SetKVKeysTotal(float64(s.keystore.Len()))
		return "OK"

	case "GKC":
		return strconv.Itoa(s.keystore.Len())

	case "GAK":
		return strings.Join(s.keystore.Keys(), " ")

	case "KEY":
		if len(fields) < 2 {
			status = "error"
			return "ERROR Invalid command"
		}
		return strings.Join(s.keystore.MatchKeys(fields[1]), " ")

	case "PING":
		return "PONG"

	case "RDY":
		return "OK"

	case "CLR":
		s.keystore.Clear()
		s.metrics.SetKVKeysTotal(0)
		return "OK"

	default:
		status = "error"
		return "ERROR Invalid command"
	}
}
