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

/*
Package state provides managed state primitives (ManagedValue, ManagedCount and
ManagedMap) over pluggable storage backends.

A Backend owns the physical storage and hands out Tables, one per namespace.
Every key written to a table is prefixed by the encoded namespace, so tables
sharing one physical store never see each other's keys. Typed primitives wrap a
Table with codecs and are obtained through a Handle.
*/
package state

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"github.com/numaproj/panestate/pkg/shared/codec"
)

// Kind names a storage strategy.
type Kind string

const (
	// KindMemory keeps state in process memory.
	KindMemory Kind = "memory"
	// KindLog uses the embedded log-structured engine.
	KindLog Kind = "log"
	// KindLSM uses an LSM tree with read-then-write updates.
	KindLSM Kind = "lsm"
	// KindLSMMerge uses an LSM tree with a registered merge operator.
	KindLSMMerge Kind = "lsm-merge"
)

// Kinds lists every supported storage strategy.
var Kinds = []Kind{KindMemory, KindLog, KindLSM, KindLSMMerge}

var (
	// ErrIterationUnsupported is returned by Iter on backends without key order.
	ErrIterationUnsupported = errors.New("iteration is not supported by this backend")
	// ErrNoSemigroup is returned by RMW on values that have no merge operation.
	ErrNoSemigroup = errors.New("value type has no merge operation")
	// ErrClosed is returned when a closed backend is used.
	ErrClosed = errors.New("state backend is closed")
)

// Backend is a physical store shared by every primitive of one worker.
type Backend interface {
	Kind() Kind
	// Ordered reports whether tables of this backend support Iter.
	Ordered() bool
	// Table returns the namespace with the given name, creating it on first use.
	Table(name string) (Table, error)
	Close() error
}

// Table is a byte-keyed namespace inside a Backend. Keys passed in and
// returned never include the namespace prefix.
type Table interface {
	// PrefixLen is the length of the namespace prefix in the physical key.
	PrefixLen() int
	Get(key []byte) ([]byte, bool, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	// RMW combines delta into the stored value with sg, or stores delta when
	// the key is absent.
	RMW(key, delta []byte, sg codec.Semigroup) error
	// Iter returns a cursor positioned at the first key >= from, in
	// byte-lexicographic order, restricted to this table.
	Iter(from []byte) (Iterator, error)
}

// Iterator walks a table in key order. Key and Value are valid until the next call to Next.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
	Close() error
}

// EncodeNamespace returns the physical key prefix of a namespace: a 2-byte
// big-endian length followed by the name.
func EncodeNamespace(name string) []byte {
	b := make([]byte, 2+len(name))
	binary.BigEndian.PutUint16(b, uint16(len(name)))
	copy(b[2:], name)
	return b
}

// PrefixedKey returns prefix followed by key in a fresh slice.
func PrefixedKey(prefix, key []byte) []byte {
	b := make([]byte, 0, len(prefix)+len(key))
	b = append(b, prefix...)
	return append(b, key...)
}

// PrefixUpperBound returns the smallest key greater than every key starting
// with prefix, or nil when no such key exists.
func PrefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
