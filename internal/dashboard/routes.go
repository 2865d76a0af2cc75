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
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func (s *Server) applyRoutes(r *gin.Engine) {
	api := r.Group("/api")
	api.GET("/ping", s.handlePing)
	api.GET("/keys", s.handleListKeys)
	api.GET("/keys/*key", s.handleGetKey)
	api.POST("/keys/*key", s.handleSetKey)
	api.DELETE("/keys/*key", s.handleDeleteKey)

	r.GET("/ws/watch", s.ws.handle)
}

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListKeys(c *gin.Context) {
	pattern := c.Query("pattern")
	var keys []string
	if pattern != "" {
		keys = s.broker.Keystore().MatchKeys(pattern)
	} else {
		keys = s.broker.Keystore().Keys()
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

func (s *Server) handleGetKey(c *gin.Context) {
	key := trimLeadingSlash(c.Param("key"))
	value, ok := s.broker.Keystore().Get(key)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

type setKeyRequest struct {
	Value string `json:"value" binding:"required"`
	TTLMs int64  `json:"ttl_ms"`
}

func (s *Server) handleSetKey(c *gin.Context) {
	key := trimLeadingSlash(c.Param("key"))
	var req setKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.TTLMs > 0 {
		s.broker.Keystore().SetTTL(key, req.Value, msToDuration(req.TTLMs))
	} else {
		s.broker.Keystore().Set(key, req.Value)
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleDeleteKey(c *gin.Context) {
	key := trimLeadingSlash(c.Param("key"))
	s.broker.Keystore().Delete(key)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func trimLeadingSlash(s string) string {
	if len(s) > 0 && s[0] == '/' {
		return s[1:]
	}
	return s
}
