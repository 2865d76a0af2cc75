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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeystoreSetAndGet(t *testing.T) {
	t.Parallel()
	ks := NewKeystore()

	ks.Set("testkey", "testvalue")

	val, ok := ks.Get("testkey")
	assert.True(t, ok)
	assert.Equal(t, "testvalue", val)
}

func TestKeystoreGetMissing(t *testing.T) {
	t.Parallel()
	ks := NewKeystore()

	_, ok := ks.Get("nonexistent")
	assert.False(t, ok)
}

func TestKeystoreHas(t *testing.T) {
	t.Parallel()
	ks := NewKeystore()

	assert.False(t, ks.Has("missing"))

	ks.Set("present", "val")
	assert.True(t, ks.Has("present"))
}

func TestKeystoreDelete(t *testing.T) {
	t.Parallel()
	ks := NewKeystore()

	ks.Set("delme", "val")
	ks.Delete("delme")

	assert.False(t, ks.Has("delme"))
}

func TestKeystoreSetTTLExpires(t *testing.T) {
	t.Parallel()
	ks := NewKeystore()

	ks.SetTTL("expiring", "val", 20*time.Millisecond)
	assert.True(t, ks.Has("expiring"))

	time.Sleep(60 * time.Millisecond)

	assert.False(t, ks.Has("expiring"))
	_, ok := ks.Get("expiring")
	assert.False(t, ok)
}

func TestKeystoreSetTTLZeroActsLikeSet(t *testing.T) {
	t.Parallel()
	ks := NewKeystore()

	ks.SetTTL("nottl", "val", 0)
	assert.True(t, ks.Has("nottl"))
}

func TestKeystoreOverwrite(t *testing.T) {
	t.Parallel()
	ks := NewKeystore()

	ks.Set("key", "first")
	ks.Set("key", "second")

	val, ok := ks.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "second", val)
}

func TestKeystoreClear(t *testing.T) {
	t.Parallel()
	ks := NewKeystore()

	ks.Set("a", "1")
	ks.Set("b", "2")
	ks.Clear()

	assert.Equal(t, 0, ks.Len())
}

func TestKeystoreLenIgnoresExpired(t *testing.T) {
	t.Parallel()
	ks := NewKeystore()

	ks.Set("a", "1")
	ks.SetTTL("b", "2", 10*time.Millisecond)
	time.Sleep(40 * time.Millisecond)

	assert.Equal(t, 1, ks.Len())
}

func TestKeystoreKeysSorted(t *testing.T) {
	t.Parallel()
	ks := NewKeystore()

	ks.Set("b", "2")
	ks.Set("a", "1")
	ks.Set("c", "3")

	assert.Equal(t, []string{"a", "b", "c"}, ks.Keys())
}

func TestKeystoreMatchKeys(t *testing.T) {
	t.Parallel()
	ks := NewKeystore()

	ks.Set("robot/drive/left", "1")
	ks.Set("robot/drive/right", "2")
	ks.Set("robot/arm/position", "3")

	assert.Equal(t, []string{"robot/drive/left", "robot/drive/right"}, ks.MatchKeys("robot/drive/*"))
}

func TestKeystoreReap(t *testing.T) {
	t.Parallel()
	ks := NewKeystore()

	ks.Set("permanent", "1")
	ks.SetTTL("temp1", "2", 10*time.Millisecond)
	ks.SetTTL("temp2", "3", 10*time.Millisecond)
	time.Sleep(40 * time.Millisecond)

	removed := ks.Reap()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, ks.Len())
}
