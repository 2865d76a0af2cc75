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
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// startReaper schedules the optional periodic TTL sweep described in
// spec.md §4.4. It runs under the scheduler's own goroutine, observing the
// same Keystore the SETGET dispatcher mutates directly — no extra lock is
// needed since Keystore itself is concurrency-safe.
func startReaper(scheduler gocron.Scheduler, ks *Keystore, metrics *Metrics, interval time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		logger.Debug("periodic key reaper disabled, relying on lazy expiry only")
		return nil
	}

	_, err := scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			start := time.Now()
			removed := ks.Reap()
			if metrics != nil {
				metrics.RecordKeyReap(removed, time.Since(start).Seconds())
			}
			if removed > 0 {
				logger.Debug("reaped expired keys", "count", removed)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule key reaper: %w", err)
	}
	return nil
}
