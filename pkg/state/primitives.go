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

package state

import (
	"github.com/cockroachdb/errors"

	"github.com/numaproj/panestate/pkg/metrics"
	"github.com/numaproj/panestate/pkg/shared/codec"
)

type instrumented struct {
	backend string
}

func (i instrumented) observe(op string, err error) error {
	metrics.StateOperations.WithLabelValues(i.backend, op).Inc()
	if err != nil {
		metrics.StateErrors.WithLabelValues(i.backend, op).Inc()
	}
	return err
}

// ManagedMap is a typed key-value map stored in a Table.
type ManagedMap[K, V any] struct {
	instrumented
	name   string
	table  Table
	keys   codec.Codec[K]
	values codec.ValueCodec[V]
}

// NewManagedMap wraps table with the given codecs.
func NewManagedMap[K, V any](name string, kind Kind, table Table, keys codec.Codec[K], values codec.ValueCodec[V]) *ManagedMap[K, V] {
	return &ManagedMap[K, V]{
		instrumented: instrumented{backend: string(kind)},
		name:         name,
		table:        table,
		keys:         keys,
		values:       values,
	}
}

// Name returns the physical name of the map.
func (m *ManagedMap[K, V]) Name() string { return m.name }

// KeyPrefixLen is the length of the namespace prefix of the stored keys.
func (m *ManagedMap[K, V]) KeyPrefixLen() int { return m.table.PrefixLen() }

// Insert stores v under k, overwriting any previous value.
func (m *ManagedMap[K, V]) Insert(k K, v V) error {
	err := m.table.Put(m.keys.Encode(k), m.values.Encode(v))
	return m.observe("insert", errors.Wrapf(err, "inserting into %s", m.name))
}

// Get returns the value stored under k.
func (m *ManagedMap[K, V]) Get(k K) (V, bool, error) {
	var zero V
	b, ok, err := m.table.Get(m.keys.Encode(k))
	if err = m.observe("get", err); err != nil {
		return zero, false, errors.Wrapf(err, "reading from %s", m.name)
	}
	if !ok {
		return zero, false, nil
	}
	v, err := m.values.Decode(b)
	if err != nil {
		return zero, false, errors.Wrapf(err, "decoding value of %s", m.name)
	}
	return v, true, nil
}

// Remove deletes k and returns the value it held.
func (m *ManagedMap[K, V]) Remove(k K) (V, bool, error) {
	v, ok, err := m.Get(k)
	if err != nil || !ok {
		return v, ok, err
	}
	if err := m.observe("remove", m.table.Delete(m.keys.Encode(k))); err != nil {
		return v, false, errors.Wrapf(err, "removing from %s", m.name)
	}
	return v, true, nil
}

// RMW merges delta into the value under k using the value semigroup.
func (m *ManagedMap[K, V]) RMW(k K, delta V) error {
	sg := m.values.Semigroup()
	if sg == nil {
		return errors.Wrapf(ErrNoSemigroup, "rmw on %s", m.name)
	}
	err := m.table.RMW(m.keys.Encode(k), m.values.Encode(delta), sg)
	return m.observe("rmw", errors.Wrapf(err, "rmw on %s", m.name))
}

// Contains reports whether k is present.
func (m *ManagedMap[K, V]) Contains(k K) (bool, error) {
	_, ok, err := m.table.Get(m.keys.Encode(k))
	return ok, m.observe("contains", errors.Wrapf(err, "reading from %s", m.name))
}

// Iter returns a cursor over the entries with key >= from in encoded key order.
func (m *ManagedMap[K, V]) Iter(from K) (*MapIterator[K, V], error) {
	it, err := m.table.Iter(m.keys.Encode(from))
	if err = m.observe("iter", err); err != nil {
		return nil, errors.Wrapf(err, "iterating %s", m.name)
	}
	return &MapIterator[K, V]{it: it, keys: m.keys, values: m.values}, nil
}

// MapIterator decodes the entries of a ManagedMap.
type MapIterator[K, V any] struct {
	it     Iterator
	keys   codec.Codec[K]
	values codec.ValueCodec[V]
	key    K
	value  V
	err    error
}

// Next advances the cursor. It returns false at the end or on error.
func (i *MapIterator[K, V]) Next() bool {
	if i.err != nil || !i.it.Next() {
		return false
	}
	if i.key, i.err = i.keys.Decode(i.it.Key()); i.err != nil {
		return false
	}
	if i.value, i.err = i.values.Decode(i.it.Value()); i.err != nil {
		return false
	}
	return true
}

func (i *MapIterator[K, V]) Key() K   { return i.key }
func (i *MapIterator[K, V]) Value() V { return i.value }

func (i *MapIterator[K, V]) Err() error {
	if i.err != nil {
		return i.err
	}
	return i.it.Err()
}

func (i *MapIterator[K, V]) Close() error {
	return i.it.Close()
}

// ManagedValue is a single typed value stored in a Table.
type ManagedValue[V any] struct {
	m *ManagedMap[struct{}, V]
}

// NewManagedValue wraps table with the given value codec.
func NewManagedValue[V any](name string, kind Kind, table Table, values codec.ValueCodec[V]) *ManagedValue[V] {
	return &ManagedValue[V]{m: NewManagedMap[struct{}, V](name, kind, table, codec.Empty{}, values)}
}

func (v *ManagedValue[V]) Set(x V) error { return v.m.Insert(struct{}{}, x) }

func (v *ManagedValue[V]) Get() (V, bool, error) { return v.m.Get(struct{}{}) }

// Take returns the value and clears it.
func (v *ManagedValue[V]) Take() (V, bool, error) { return v.m.Remove(struct{}{}) }

func (v *ManagedValue[V]) RMW(delta V) error { return v.m.RMW(struct{}{}, delta) }

// ManagedCount is a signed counter. An unset counter reads as zero.
type ManagedCount struct {
	v *ManagedValue[int64]
}

// NewManagedCount wraps table as a counter.
func NewManagedCount(name string, kind Kind, table Table) *ManagedCount {
	return &ManagedCount{v: NewManagedValue[int64](name, kind, table, codec.Int64{})}
}

func (c *ManagedCount) Increase(n int64) error { return c.v.RMW(n) }

func (c *ManagedCount) Decrease(n int64) error { return c.v.RMW(-n) }

func (c *ManagedCount) Set(n int64) error { return c.v.Set(n) }

func (c *ManagedCount) Get() (int64, error) {
	n, _, err := c.v.Get()
	return n, err
}
