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

package codec

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// Semigroup is an associative combine over encoded values. Backends apply it
// during read-modify-write, either eagerly or lazily as a merge operator.
type Semigroup interface {
	// ID is the stable single-byte identifier stored alongside merge operands.
	ID() byte
	Name() string
	Combine(existing, delta []byte) ([]byte, error)
}

const (
	// SumID identifies Sum.
	SumID byte = 1
	// ConcatID identifies Concat.
	ConcatID byte = 2
)

// Sum adds 8-byte little-endian integers with wraparound, which serves both
// unsigned counts and signed deltas.
type Sum struct{}

func (Sum) ID() byte     { return SumID }
func (Sum) Name() string { return "sum" }

func (Sum) Combine(existing, delta []byte) ([]byte, error) {
	if len(existing) != 8 || len(delta) != 8 {
		return nil, errors.Wrapf(ErrShortBuffer, "sum operands must be 8 bytes, got %d and %d", len(existing), len(delta))
	}
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, binary.LittleEndian.Uint64(existing)+binary.LittleEndian.Uint64(delta))
	return out, nil
}

// Concat appends the delta to the existing bytes. Used by list values made
// of fixed width elements.
type Concat struct{}

func (Concat) ID() byte     { return ConcatID }
func (Concat) Name() string { return "concat" }

func (Concat) Combine(existing, delta []byte) ([]byte, error) {
	out := make([]byte, 0, len(existing)+len(delta))
	out = append(out, existing...)
	return append(out, delta...), nil
}

// SemigroupByID returns the semigroup registered under id.
func SemigroupByID(id byte) (Semigroup, bool) {
	switch id {
	case SumID:
		return Sum{}, true
	case ConcatID:
		return Concat{}, true
	default:
		return nil, false
	}
}
