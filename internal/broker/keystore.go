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
	"sort"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// entry is a single keystore slot: an opaque string value with an optional
// expiry deadline. A zero expiresAt means the value never expires.
type entry struct {
	value     string
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now)
}

// Keystore is the concurrent, in-memory keyspace described by the data
// model: a flat map of string key to opaque string value, with lazy
// per-read expiry plus an optional periodic sweep (see Reap).
type Keystore struct {
	m *xsync.Map[string, entry]
}

// NewKeystore builds an empty Keystore.
func NewKeystore() *Keystore {
	return &Keystore{m: xsync.NewMap[string, entry]()}
}

// Set stores value under key with no expiry, overwriting any prior value
// (last-writer-wins, per spec.md's concurrency non-goal).
func (k *Keystore) Set(key, value string) {
	k.m.Store(key, entry{value: value})
}

// SetTTL stores value under key with an expiry ttl from now. A
// non-positive ttl stores the value with no expiry, like Set.
func (k *Keystore) SetTTL(key, value string, ttl time.Duration) {
	if ttl <= 0 {
		k.Set(key, value)
		return
	}
	k.m.Store(key, entry{value: value, expiresAt: time.Now().Add(ttl)})
}

// Get returns the value stored at key. ok is false if the key is absent or
// has expired; an expired key is deleted on read.
func (k *Keystore) Get(key string) (value string, ok bool) {
	e, found := k.m.Load(key)
	if !found {
		return "", false
	}
	if e.expired(time.Now()) {
		k.m.Delete(key)
		return "", false
	}
	return e.value, true
}

// Has reports whether key is present and unexpired.
func (k *Keystore) Has(key string) bool {
	_, ok := k.Get(key)
	return ok
}

// Delete removes key unconditionally.
func (k *Keystore) Delete(key string) {
	k.m.Delete(key)
}

// Clear removes every key.
func (k *Keystore) Clear() {
	k.m.Clear()
}

// Len returns the number of live (unexpired) keys. Expired entries
// encountered along the way are deleted, matching the lazy-expiry
// discipline used by Get.
func (k *Keystore) Len() int {
	now := time.Now()
	count := 0
	k.m.Range(func(key string, e entry) bool {
		if e.expired(now) {
			k.m.Delete(key)
			return true
		}
		count++
		return true
	})
	return count
}

// Keys returns every live key, sorted for deterministic output (GAK).
func (k *Keystore) Keys() []string {
	now := time.Now()
	keys := make([]string, 0)
	k.m.Range(func(key string, e entry) bool {
		if e.expired(now) {
			k.m.Delete(key)
			return true
		}
		keys = append(keys, key)
		return true
	})
	sort.Strings(keys)
	return keys
}

// MatchKeys returns every live key matching the glob pattern (KEY), sorted
// for deterministic output.
func (k *Keystore) MatchKeys(pattern string) []string {
	now := time.Now()
	keys := make([]string, 0)
	k.m.Range(func(key string, e entry) bool {
		if e.expired(now) {
			k.m.Delete(key)
			return true
		}
		if globMatch(pattern, key) {
			keys = append(keys, key)
		}
		return true
	})
	sort.Strings(keys)
	return keys
}

// Reap sweeps every entry and deletes those past their deadline, returning
// the count removed. This is the optional periodic sweep from spec.md
// §4.4 — lazy expiry on Get/Keys/MatchKeys/Len is always active regardless
// of whether Reap is ever called.
func (k *Keystore) Reap() int {
	now := time.Now()
	removed := 0
	k.m.Range(func(key string, e entry) bool {
		if e.expired(now) {
			k.m.Delete(key)
			removed++
		}
		return true
	})
	return removed
}
