/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package statetest holds the behaviour every state backend must share.
package statetest

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/panestate/pkg/event"
	"github.com/numaproj/panestate/pkg/shared/codec"
	"github.com/numaproj/panestate/pkg/state"
)

// NewBackendFunc opens a fresh, empty backend for one sub test.
type NewBackendFunc func(t *testing.T) state.Backend

// RunConformance runs the primitive contract against the backends built by newBackend.
func RunConformance(t *testing.T, newBackend NewBackendFunc) {
	tests := []struct {
		name string
		fn   func(t *testing.T, h *state.Handle)
	}{
		{"insert and get", testInsertGet},
		{"rmw sums counts", testRMWSum},
		{"rmw concatenates records", testRMWConcat},
		{"remove deletes", testRemove},
		{"namespaces are isolated", testNamespaces},
		{"count", testCount},
		{"value take", testValue},
		{"rmw without semigroup", testNoSemigroup},
		{"iteration", testIter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := state.NewHandle(newBackend(t), "test")
			defer func() { assert.NoError(t, h.Close()) }()
			tt.fn(t, h)
		})
	}
}

func testInsertGet(t *testing.T, h *state.Handle) {
	m, err := state.Map[uint64, uint64](h, "panes", codec.OrderedUint64{}, codec.Uint64{})
	require.NoError(t, err)

	_, ok, err := m.Get(3000)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Insert(3000, 5))
	require.NoError(t, m.Insert(3000, 6))
	v, ok, err := m.Get(3000)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(6), v)

	// reads do not consume
	v, ok, err = m.Get(3000)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(6), v)
	assert.Equal(t, len(state.EncodeNamespace("test.panes")), m.KeyPrefixLen())
}

func testRMWSum(t *testing.T, h *state.Handle) {
	m, err := state.Map[uint64, uint64](h, "panes", codec.Uint64{}, codec.Uint64{})
	require.NoError(t, err)

	require.NoError(t, m.RMW(1000, 1))
	v, ok, err := m.Get(1000)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), v)

	require.NoError(t, m.Insert(2000, 3))
	require.NoError(t, m.RMW(2000, 2))
	for i := 0; i < 10; i++ {
		require.NoError(t, m.RMW(2000, 1))
	}
	v, _, err = m.Get(2000)
	require.NoError(t, err)
	assert.Equal(t, uint64(15), v)
}

func testRMWConcat(t *testing.T, h *state.Handle) {
	m, err := state.Map[uint64, []event.Event](h, "records", codec.Uint64{}, codec.Records{})
	require.NoError(t, err)

	require.NoError(t, m.RMW(1000, []event.Event{{Key: 7, Timestamp: 500}}))
	require.NoError(t, m.RMW(1000, []event.Event{{Key: 9, Timestamp: 600}, {Key: 7, Timestamp: 700}}))
	v, ok, err := m.Get(1000)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []event.Event{{Key: 7, Timestamp: 500}, {Key: 9, Timestamp: 600}, {Key: 7, Timestamp: 700}}, v)
}

func testRemove(t *testing.T, h *state.Handle) {
	m, err := state.Map[uint64, uint64](h, "panes", codec.OrderedUint64{}, codec.Uint64{})
	require.NoError(t, err)

	require.NoError(t, m.Insert(1000, 42))
	require.NoError(t, m.Insert(2000, 43))
	v, ok, err := m.Remove(1000)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(42), v)

	_, ok, err = m.Remove(1000)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.Contains(1000)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = m.Contains(2000)
	require.NoError(t, err)
	assert.True(t, ok)

	// rmw after removal starts from scratch
	require.NoError(t, m.RMW(1000, 1))
	v, _, err = m.Get(1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)
}

func testNamespaces(t *testing.T, h *state.Handle) {
	a, err := state.Map[uint64, uint64](h, "a", codec.OrderedUint64{}, codec.Uint64{})
	require.NoError(t, err)
	sub := h.Sub("a")
	defer func() { assert.NoError(t, sub.Close()) }()
	assert.Equal(t, "test.a", sub.Name())
	b, err := state.Map[uint64, uint64](sub, "b", codec.OrderedUint64{}, codec.Uint64{})
	require.NoError(t, err)
	assert.Equal(t, "test.a.b", b.Name())

	require.NoError(t, a.Insert(1, 10))
	require.NoError(t, b.Insert(1, 20))
	v, _, err := a.Get(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), v)
	v, _, err = b.Get(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), v)

	_, _, err = b.Remove(1)
	require.NoError(t, err)
	ok, err := a.Contains(1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func testCount(t *testing.T, h *state.Handle) {
	c, err := h.Count("events")
	require.NoError(t, err)
	n, err := c.Get()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	require.NoError(t, c.Increase(5))
	require.NoError(t, c.Decrease(7))
	n, err = c.Get()
	require.NoError(t, err)
	assert.Equal(t, int64(-2), n)

	require.NoError(t, c.Set(100))
	require.NoError(t, c.Increase(1))
	n, err = c.Get()
	require.NoError(t, err)
	assert.Equal(t, int64(101), n)
}

func testValue(t *testing.T, h *state.Handle) {
	v, err := state.Value[[]uint64](h, "keys", codec.Uint64s{})
	require.NoError(t, err)
	require.NoError(t, v.Set([]uint64{1}))
	require.NoError(t, v.RMW([]uint64{2, 3}))
	got, ok, err := v.Get()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []uint64{1, 2, 3}, got)

	got, ok, err = v.Take()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []uint64{1, 2, 3}, got)
	_, ok, err = v.Get()
	require.NoError(t, err)
	assert.False(t, ok)
}

func testNoSemigroup(t *testing.T, h *state.Handle) {
	v, err := state.Value[map[string]int](h, "json", codec.JSON[map[string]int]{})
	require.NoError(t, err)
	err = v.RMW(map[string]int{"a": 1})
	assert.True(t, errors.Is(err, state.ErrNoSemigroup))
}

func testIter(t *testing.T, h *state.Handle) {
	m, err := state.Map[uint64, uint64](h, "panes", codec.OrderedUint64{}, codec.Uint64{})
	require.NoError(t, err)
	// a neighbouring namespace whose keys must not leak into the scan
	n, err := state.Map[uint64, uint64](h, "panes2", codec.OrderedUint64{}, codec.Uint64{})
	require.NoError(t, err)

	for _, k := range []uint64{5000, 256, 1, 3000, 1000} {
		require.NoError(t, m.Insert(k, k*2))
	}
	require.NoError(t, n.Insert(2000, 1))
	_, _, err = m.Remove(3000)
	require.NoError(t, err)

	it, err := m.Iter(1000)
	if !h.Backend().Ordered() {
		assert.True(t, errors.Is(err, state.ErrIterationUnsupported))
		return
	}
	require.NoError(t, err)
	var keys, values []uint64
	for it.Next() {
		keys = append(keys, it.Key())
		values = append(values, it.Value())
	}
	require.NoError(t, it.Err())
	require.NoError(t, it.Close())
	assert.Equal(t, []uint64{1000, 5000}, keys)
	assert.Equal(t, []uint64{2000, 10000}, values)

	it, err = m.Iter(0)
	require.NoError(t, err)
	keys = keys[:0]
	for it.Next() {
		keys = append(keys, it.Key())
	}
	require.NoError(t, it.Close())
	assert.Equal(t, []uint64{1, 256, 1000, 5000}, keys)
}
