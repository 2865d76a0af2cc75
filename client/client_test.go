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

package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/kevinbotlib/kbcomm/client"
	"github.com/kevinbotlib/kbcomm/internal/sendable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSetGetRoundTripsTypedValues(t *testing.T) {
	t.Parallel()
	host, port := startTestBroker(t)

	c := client.New(host, port)
	require.NoError(t, c.Connect())
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Set("robot/battery/voltage", sendable.NewFloat(12.6)))

	val, err := c.Get("robot/battery/voltage")
	require.NoError(t, err)
	fv, ok := val.(*sendable.FloatSendable)
	require.True(t, ok)
	assert.InDelta(t, 12.6, fv.Value, 0.0001)
}

func TestClientGetMissingKeyReturnsNilNil(t *testing.T) {
	t.Parallel()
	host, port := startTestBroker(t)

	c := client.New(host, port)
	require.NoError(t, c.Connect())
	t.Cleanup(func() { _ = c.Close() })

	val, err := c.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestClientOnConnectCallback(t *testing.T) {
	t.Parallel()
	host, port := startTestBroker(t)

	called := false
	c := client.New(host, port, client.WithOnConnect(func() { called = true }))
	require.NoError(t, c.Connect())
	t.Cleanup(func() { _ = c.Close() })

	assert.True(t, called)
	assert.True(t, c.IsConnected())
}

func TestClientIsConnectedLifecycle(t *testing.T) {
	t.Parallel()
	host, port := startTestBroker(t)

	c := client.New(host, port)
	assert.False(t, c.IsConnected(), "a never-connected client must not report connected")

	require.NoError(t, c.Connect())
	assert.True(t, c.IsConnected())

	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected(), "a closed client must not report connected")
}

func TestClientPublishSubscribeDecodesThroughRegistry(t *testing.T) {
	t.Parallel()
	host, port := startTestBroker(t)

	sub := client.New(host, port)
	require.NoError(t, sub.Connect())
	t.Cleanup(func() { _ = sub.Close() })

	received := make(chan *sendable.StringSendable, 1)
	require.NoError(t, sub.Subscribe("log/*", func(key string, val sendable.Sendable) {
		if s, ok := val.(*sendable.StringSendable); ok {
			received <- s
		}
	}))

	pub := client.New(host, port)
	require.NoError(t, pub.Connect())
	t.Cleanup(func() { _ = pub.Close() })
	require.NoError(t, pub.Publish("log/info", sendable.NewString("boot complete")))

	select {
	case s := <-received:
		assert.Equal(t, "boot complete", s.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for decoded publish")
	}
}

func TestClientAddHookFiresOnSet(t *testing.T) {
	t.Parallel()
	host, port := startTestBroker(t)

	c := client.New(host, port)
	require.NoError(t, c.Connect())
	t.Cleanup(func() { _ = c.Close() })

	fired := make(chan sendable.Sendable, 4)
	require.NoError(t, c.AddHook("sensors/temp", func(_ string, val sendable.Sendable) {
		fired <- val
	}))

	// The hook engine polls by GET, so the change has to land via SET (not
	// PUB) for it to be observed at all.
	require.NoError(t, c.Set("sensors/temp", sendable.NewInteger(42)))

	select {
	case val := <-fired:
		iv, ok := val.(*sendable.IntegerSendable)
		require.True(t, ok)
		assert.Equal(t, int64(42), iv.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for hook")
	}

	// Setting the same value again must not re-fire the hook: the raw
	// memo is unchanged.
	require.NoError(t, c.Set("sensors/temp", sendable.NewInteger(42)))
	select {
	case val := <-fired:
		t.Fatalf("hook fired again for an unchanged value: %v", val)
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, c.Delete("sensors/temp"))
	select {
	case val := <-fired:
		assert.Nil(t, val)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for absence hook")
	}

	require.NoError(t, c.RemoveHooks("sensors/temp"))
}

func TestClientGetLatency(t *testing.T) {
	t.Parallel()
	host, port := startTestBroker(t)

	c := client.New(host, port)
	require.NoError(t, c.Connect())
	t.Cleanup(func() { _ = c.Close() })

	latency, err := c.GetLatency()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, latency, time.Duration(0))
}

func TestClientWaitUntilConnected(t *testing.T) {
	t.Parallel()
	host, port := startTestBroker(t)

	c := client.New(host, port)
	require.NoError(t, c.Connect())
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, c.WaitUntilConnected(ctx, 100*time.Millisecond))
}

const coordinateTag = "kbcomm.test.coordinate"

type coordinateSendable struct {
	Tag string  `json:"did"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
}

func (c *coordinateSendable) DataID() string         { return coordinateTag }
func (c *coordinateSendable) Struct() map[string]any { return nil }

func TestClientCustomRegisteredType(t *testing.T) {
	t.Parallel()
	host, port := startTestBroker(t)

	c := client.New(host, port)
	require.NoError(t, c.Connect())
	t.Cleanup(func() { _ = c.Close() })

	c.RegisterType(coordinateTag, func() sendable.Sendable { return &coordinateSendable{} })

	require.NoError(t, c.Set("custom", &coordinateSendable{Tag: coordinateTag, X: 1.5, Y: -2.5}))

	val, err := c.Get("custom")
	require.NoError(t, err)
	coord, ok := val.(*coordinateSendable)
	require.True(t, ok)
	assert.InDelta(t, 1.5, coord.X, 0.0001)
	assert.InDelta(t, -2.5, coord.Y, 0.0001)
}
