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

package window

import (
	"sort"

	"github.com/numaproj/panestate/pkg/event"
)

// Ranked is a value with its rank.
type Ranked struct {
	Value uint64
	Rank  uint64
}

// Rank sorts values ascending and ranks them: equal values share the rank of
// the first of them, and the next distinct value is ranked one plus the number
// of values before it. values is sorted in place.
func Rank(values []uint64) []Ranked {
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	out := make([]Ranked, len(values))
	var rank uint64 = 1
	for i, v := range values {
		if i > 0 && v != values[i-1] {
			rank = uint64(i) + 1
		}
		out[i] = Ranked{Value: v, Rank: rank}
	}
	return out
}

// RankRecords ranks the keys of records.
func RankRecords(records []event.Event) []Ranked {
	return Rank(event.Keys(records))
}
