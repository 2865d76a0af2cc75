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

// Package logging builds the application's slog handler. Callers construct
// a *slog.Logger once at startup and pass it down explicitly; nothing here
// is kept as package state.
package logging

import (
	"io"
	"log/slog"

	"github.com/kevinbotlib/kbcomm/internal/config"
	"github.com/lmittmann/tint"
)

// New builds a tint-backed slog.Logger at the level named by cfg.LogLevel,
// writing to w.
func New(cfg config.LogLevel, w io.Writer) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level(cfg),
		TimeFormat: "15:04:05",
	}))
}

func level(l config.LogLevel) slog.Level {
	switch l {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	case config.LogLevelInfo:
		fallthrough
	default:
		return slog.LevelInfo
	}
}
