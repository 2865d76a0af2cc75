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

// Package sendable implements the typed JSON envelope carried as a
// keystore value: a type tag ("did"), an optional timeout, dashboard
// rendering hints ("struct"), and a user value. A package-level registry
// maps tags to constructors so the wire payload can be decoded back into
// its concrete Go type.
package sendable

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Envelope is the wire shape of every sendable: the fields common to all
// typed records, with Value left as raw JSON until a concrete type is
// decoded from it.
type Envelope struct {
	DataID  string          `json:"did"`
	Value   json.RawMessage `json:"value"`
	Timeout *float64        `json:"timeout,omitempty"`
	Flags   []string        `json:"flags,omitempty"`
	Struct  map[string]any  `json:"struct,omitempty"`
}

// Sendable is anything that can be carried as a keystore/pubsub value.
// DataID returns the type tag used to find a decoder on the way back in;
// Struct returns the dashboard rendering hint carried alongside the value.
type Sendable interface {
	DataID() string
	Struct() map[string]any
}

// Constructor builds a zero-value Sendable of a given type, used only to
// get a concrete destination for json.Unmarshal.
type Constructor func() Sendable

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register adds tag to the package-level registry. Built-in types are
// registered in init() (see builtin.go); applications may register
// their own tags the same way.
func Register(tag string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[tag] = ctor
}

func lookup(tag string) (Constructor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ctor, ok := registry[tag]
	return ctor, ok
}

// Encode marshals s into the wire envelope JSON string stored as a
// keystore value.
func Encode(s Sendable) (string, error) {
	value, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal sendable value: %w", err)
	}
	env := Envelope{
		DataID: s.DataID(),
		Value:  value,
		Struct: s.Struct(),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("failed to marshal sendable envelope: %w", err)
	}
	return string(raw), nil
}

// Decode parses raw into its envelope and, if a constructor is registered
// for the envelope's "did" tag, unmarshals the envelope's value into that
// concrete type. An unrecognized tag returns a nil Sendable and an error
// wrapping ErrUnknownType.
func Decode(raw string) (Sendable, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("failed to decode sendable envelope: %w", err)
	}

	ctor, ok := lookup(env.DataID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.DataID)
	}

	s := ctor()
	if err := json.Unmarshal(env.Value, s); err != nil {
		return nil, fmt.Errorf("failed to decode sendable value: %w", err)
	}
	return s, nil
}

// ErrUnknownType is returned by Decode when no constructor is registered
// for the envelope's type tag.
var ErrUnknownType = fmt.Errorf("sendable: unrecognized type tag")

// Registry is a per-instance overlay on top of the package-level
// registry: a client can add custom types without mutating global
// state, per the "MUST NOT rely on global mutable state" design note.
type Registry struct {
	mu  sync.RWMutex
	own map[string]Constructor
}

// NewRegistry builds an empty overlay; lookups fall through to the
// package-level defaults when a tag isn't found locally.
func NewRegistry() *Registry {
	return &Registry{own: make(map[string]Constructor)}
}

// Register adds tag to this registry's local overlay.
func (r *Registry) Register(tag string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.own[tag] = ctor
}

// Decode behaves like the package-level Decode, but consults this
// registry's overlay before the shared defaults.
func (r *Registry) Decode(raw string) (Sendable, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("failed to decode sendable envelope: %w", err)
	}

	r.mu.RLock()
	ctor, ok := r.own[env.DataID]
	r.mu.RUnlock()

	if !ok {
		ctor, ok = lookup(env.DataID)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.DataID)
	}

	s := ctor()
	if err := json.Unmarshal(env.Value, s); err != nil {
		return nil, fmt.Errorf("failed to decode sendable value: %w", err)
	}
	return s, nil
}
