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

package dashboard

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kevinbotlib/kbcomm/internal/broker"
	"github.com/kevinbotlib/kbcomm/internal/config"
)

const wsBufferSize = 1024

// wsEvent is the frame shape delivered to browser clients over the
// /ws/watch socket.
type wsEvent struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type wsHandler struct {
	cfg      config.Dashboard
	broker   *broker.Server
	logger   *slog.Logger
	metrics  *wsMetrics
	upgrader websocket.Upgrader
}

func newWSHandler(cfg config.Dashboard, brokerServer *broker.Server, logger *slog.Logger, metrics *wsMetrics) *wsHandler {
	return &wsHandler{
		cfg:     cfg,
		broker:  brokerServer,
		logger:  logger,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  wsBufferSize,
			WriteBufferSize: wsBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(cfg.CORSHosts) == 0 {
					return origin == ""
				}
				for _, host := range cfg.CORSHosts {
					if host == "*" || strings.Contains(origin, host) {
						return true
					}
				}
				return false
			},
		},
	}
}

// handle upgrades the request to a WebSocket and streams every PUB
// delivered against the pattern named by the "pattern" query parameter
// until the client disconnects.
func (h *wsHandler) handle(c *gin.Context) {
	pattern := c.Query("pattern")
	if pattern == "" {
		pattern = "*"
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade dashboard websocket", "error", err)
		return
	}
	defer conn.Close()

	h.metrics.connectionsActive.Inc()
	defer h.metrics.connectionsActive.Dec()

	writeMu := make(chan struct{}, 1)
	writeMu <- struct{}{}

	unwatch := h.broker.Watch(pattern, func(key, value string) {
		<-writeMu
		defer func() { writeMu <- struct{}{} }()
		payload, err := json.Marshal(wsEvent{Key: key, Value: value})
		if err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Debug("dashboard websocket write failed", "error", err)
			conn.Close()
		}
	})
	defer unwatch()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
