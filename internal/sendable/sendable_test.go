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

package sendable

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeInteger(t *testing.T) {
	t.Parallel()
	raw, err := Encode(NewInteger(42))
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)

	got, ok := decoded.(*IntegerSendable)
	require.True(t, ok)
	assert.Equal(t, int64(42), got.Value)
	assert.Equal(t, TagInt, got.DataID())
}

func TestEncodeDecodeBoolean(t *testing.T) {
	t.Parallel()
	raw, err := Encode(NewBoolean(true))
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)

	got, ok := decoded.(*BooleanSendable)
	require.True(t, ok)
	assert.True(t, got.Value)
}

func TestEncodeDecodeString(t *testing.T) {
	t.Parallel()
	raw, err := Encode(NewString("hello"))
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)

	got, ok := decoded.(*StringSendable)
	require.True(t, ok)
	assert.Equal(t, "hello", got.Value)
}

func TestEncodeDecodeFloat(t *testing.T) {
	t.Parallel()
	raw, err := Encode(NewFloat(3.14))
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)

	got, ok := decoded.(*FloatSendable)
	require.True(t, ok)
	assert.InDelta(t, 3.14, got.Value, 0.0001)
}

func TestEncodeDecodeList(t *testing.T) {
	t.Parallel()
	raw, err := Encode(NewList([]any{"a", float64(1), true}))
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)

	got, ok := decoded.(*ListSendable)
	require.True(t, ok)
	if diff := cmp.Diff([]any{"a", float64(1), true}, got.Value); diff != "" {
		t.Errorf("decoded list value mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeDecodeDict(t *testing.T) {
	t.Parallel()
	raw, err := Encode(NewDict(map[string]any{"speed": float64(5)}))
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)

	got, ok := decoded.(*DictSendable)
	require.True(t, ok)
	if diff := cmp.Diff(map[string]any{"speed": float64(5)}, got.Value); diff != "" {
		t.Errorf("decoded dict value mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeDecodeBinary(t *testing.T) {
	t.Parallel()
	payload := []byte{0x01, 0x02, 0xFF}
	raw, err := Encode(NewBinary(payload))
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)

	got, ok := decoded.(*BinarySendable)
	require.True(t, ok)

	out, err := got.Bytes()
	require.NoError(t, err)
	assert.Equal(t, payload, out)

	wantStruct := map[string]any{
		"dashboard": []map[string]any{{"element": "value", "format": "limit:1024"}},
	}
	if diff := cmp.Diff(wantStruct, got.Struct()); diff != "" {
		t.Errorf("binary sendable's dashboard struct hint mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	t.Parallel()
	_, err := Decode(`{"did":"kbcomm.dtype.nope","value":{}}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownType))
}

func TestDecodeMalformedEnvelope(t *testing.T) {
	t.Parallel()
	_, err := Decode(`not json`)
	require.Error(t, err)
}

type customSendable struct {
	Tag   string `json:"did"`
	Value string `json:"value"`
}

func (c *customSendable) DataID() string         { return "app.dtype.custom" }
func (c *customSendable) Struct() map[string]any { return nil }

func TestRegistryOverlayResolvesLocalTagFirst(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register("app.dtype.custom", func() Sendable { return &customSendable{} })

	raw, err := Encode(&customSendable{Tag: "app.dtype.custom", Value: "x"})
	require.NoError(t, err)

	decoded, err := r.Decode(raw)
	require.NoError(t, err)

	got, ok := decoded.(*customSendable)
	require.True(t, ok)
	assert.Equal(t, "x", got.Value)
}

func TestRegistryOverlayFallsThroughToPackageDefaults(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	raw, err := Encode(NewInteger(7))
	require.NoError(t, err)

	decoded, err := r.Decode(raw)
	require.NoError(t, err)

	got, ok := decoded.(*IntegerSendable)
	require.True(t, ok)
	assert.Equal(t, int64(7), got.Value)
}

func TestRegistryOverlayUnknownTagStillErrors(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	_, err := r.Decode(`{"did":"app.dtype.nope","value":{}}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownType))
}
