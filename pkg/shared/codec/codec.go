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
Package codec converts keys and values of the managed state primitives to and
from bytes.

Codecs whose encoding is used for range iteration (OrderedUint64, OrderedPair)
write big-endian so that byte-lexicographic order matches numeric order. Value
codecs may carry a Semigroup that defines read-modify-write for the type.
*/
package codec

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/goccy/go-json"

	"github.com/numaproj/panestate/pkg/event"
)

// ErrShortBuffer is returned when an encoded value has an unexpected length.
var ErrShortBuffer = errors.New("codec: unexpected encoded length")

// Codec encodes and decodes values of type T.
type Codec[T any] interface {
	Encode(v T) []byte
	Decode(b []byte) (T, error)
}

// ValueCodec is a Codec for values stored in state. Semigroup returns nil when
// the type has no merge operation.
type ValueCodec[T any] interface {
	Codec[T]
	Semigroup() Semigroup
}

func checkLen(b []byte, n int) error {
	if len(b) != n {
		return errors.Wrapf(ErrShortBuffer, "want %d bytes, got %d", n, len(b))
	}
	return nil
}

// Uint64 is a little-endian u64 that sums on read-modify-write.
type Uint64 struct{}

func (Uint64) Encode(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func (Uint64) Decode(b []byte) (uint64, error) {
	if err := checkLen(b, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (Uint64) Semigroup() Semigroup { return Sum{} }

// Int64 is a little-endian i64 that sums on read-modify-write.
type Int64 struct{}

func (Int64) Encode(v int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return b
}

func (Int64) Decode(b []byte) (int64, error) {
	if err := checkLen(b, 8); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func (Int64) Semigroup() Semigroup { return Sum{} }

// OrderedUint64 is a big-endian u64, for keys that are scanned in order.
type OrderedUint64 struct{}

func (OrderedUint64) Encode(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func (OrderedUint64) Decode(b []byte) (uint64, error) {
	if err := checkLen(b, 8); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// Pair is a composite key of two integers ordered by First, then Second.
type Pair struct {
	First  uint64
	Second uint64
}

// OrderedPair encodes a Pair as two big-endian integers.
type OrderedPair struct{}

func (OrderedPair) Encode(v Pair) []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b, v.First)
	binary.BigEndian.PutUint64(b[8:], v.Second)
	return b
}

func (OrderedPair) Decode(b []byte) (Pair, error) {
	if err := checkLen(b, 16); err != nil {
		return Pair{}, err
	}
	return Pair{First: binary.BigEndian.Uint64(b), Second: binary.BigEndian.Uint64(b[8:])}, nil
}

// Records encodes a list of events as 16 byte elements; lists concatenate.
type Records struct{}

func (Records) Encode(v []event.Event) []byte {
	b := make([]byte, 16*len(v))
	for i, e := range v {
		binary.BigEndian.PutUint64(b[16*i:], e.Key)
		binary.BigEndian.PutUint64(b[16*i+8:], e.Timestamp)
	}
	return b
}

func (Records) Decode(b []byte) ([]event.Event, error) {
	if len(b)%16 != 0 {
		return nil, errors.Wrapf(ErrShortBuffer, "record list length %d is not a multiple of 16", len(b))
	}
	out := make([]event.Event, len(b)/16)
	for i := range out {
		out[i] = event.Event{
			Key:       binary.BigEndian.Uint64(b[16*i:]),
			Timestamp: binary.BigEndian.Uint64(b[16*i+8:]),
		}
	}
	return out, nil
}

func (Records) Semigroup() Semigroup { return Concat{} }

// Uint64s encodes a list of integers as 8 byte little-endian elements; lists concatenate.
type Uint64s struct{}

func (Uint64s) Encode(v []uint64) []byte {
	b := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(b[8*i:], x)
	}
	return b
}

func (Uint64s) Decode(b []byte) ([]uint64, error) {
	if len(b)%8 != 0 {
		return nil, errors.Wrapf(ErrShortBuffer, "integer list length %d is not a multiple of 8", len(b))
	}
	out := make([]uint64, len(b)/8)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(b[8*i:])
	}
	return out, nil
}

func (Uint64s) Semigroup() Semigroup { return Concat{} }

// Empty is the zero-length key used by single-valued primitives.
type Empty struct{}

func (Empty) Encode(struct{}) []byte { return []byte{} }

func (Empty) Decode(b []byte) (struct{}, error) {
	return struct{}{}, checkLen(b, 0)
}

// JSON encodes arbitrary values with go-json. It has no semigroup.
type JSON[T any] struct{}

func (JSON[T]) Encode(v T) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Only unsupported types (channels, funcs) fail, which is a programming error.
		panic(errors.Wrap(err, "encoding json value"))
	}
	return b
}

func (JSON[T]) Decode(b []byte) (T, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return v, errors.Wrap(err, "decoding json value")
	}
	return v, nil
}

func (JSON[T]) Semigroup() Semigroup { return nil }
