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

package lsm

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"github.com/numaproj/panestate/pkg/shared/codec"
)

// MergerName identifies the merge operator in the database manifest; it must
// not change for existing databases.
const MergerName = "panestate.semigroup.v1"

// plainTag marks a value written by Put. Merge operands carry the ID of their
// semigroup instead.
const plainTag byte = 0

// semigroupMerger resolves tagged merge operands with the semigroups of pkg/shared/codec.
var semigroupMerger = &pebble.Merger{
	Name: MergerName,
	Merge: func(key, value []byte) (pebble.ValueMerger, error) {
		m := &operandMerger{}
		return m, m.MergeNewer(value)
	},
}

func tag(t byte, value []byte) []byte {
	b := make([]byte, 0, len(value)+1)
	b = append(b, t)
	return append(b, value...)
}

func untag(value []byte) ([]byte, error) {
	if len(value) == 0 {
		return nil, errors.AssertionFailedf("stored value has no tag")
	}
	return value[1:], nil
}

// operandMerger collects operands oldest first and folds them on Finish.
type operandMerger struct {
	operands [][]byte
}

func (m *operandMerger) MergeNewer(value []byte) error {
	m.operands = append(m.operands, append([]byte(nil), value...))
	return nil
}

func (m *operandMerger) MergeOlder(value []byte) error {
	m.operands = append([][]byte{append([]byte(nil), value...)}, m.operands...)
	return nil
}

// Finish folds the operands. With the base included the result is a plain
// value, otherwise it stays an operand of the same semigroup.
func (m *operandMerger) Finish(includesBase bool) ([]byte, io.Closer, error) {
	var sg codec.Semigroup
	for _, op := range m.operands {
		if len(op) == 0 {
			return nil, nil, errors.AssertionFailedf("merge operand has no tag")
		}
		if op[0] == plainTag {
			continue
		}
		s, ok := codec.SemigroupByID(op[0])
		if !ok {
			return nil, nil, errors.Newf("unknown semigroup %d", op[0])
		}
		if sg != nil && sg.ID() != s.ID() {
			return nil, nil, errors.Newf("mixed semigroups %s and %s for one key", sg.Name(), s.Name())
		}
		sg = s
	}
	acc := m.operands[0][1:]
	for _, op := range m.operands[1:] {
		if sg == nil {
			// only plain values; the newest wins
			acc = op[1:]
			continue
		}
		var err error
		if acc, err = sg.Combine(acc, op[1:]); err != nil {
			return nil, nil, err
		}
	}
	if includesBase || sg == nil {
		return tag(plainTag, acc), nil, nil
	}
	return tag(sg.ID(), acc), nil, nil
}
