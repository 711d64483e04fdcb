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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/numaproj/panestate/pkg/event"
)

func TestRank(t *testing.T) {
	assert.Empty(t, Rank(nil))
	assert.Equal(t, []Ranked{{Value: 7, Rank: 1}, {Value: 7, Rank: 1}, {Value: 9, Rank: 3}}, Rank([]uint64{9, 7, 7}))
	assert.Equal(t, []Ranked{
		{Value: 1, Rank: 1},
		{Value: 2, Rank: 2},
		{Value: 2, Rank: 2},
		{Value: 2, Rank: 2},
		{Value: 5, Rank: 5},
	}, Rank([]uint64{2, 5, 2, 1, 2}))
}

func TestRankRecords(t *testing.T) {
	records := []event.Event{{Key: 9, Timestamp: 2500}, {Key: 7, Timestamp: 500}, {Key: 7, Timestamp: 1500}}
	assert.Equal(t, []Ranked{{Value: 7, Rank: 1}, {Value: 7, Rank: 1}, {Value: 9, Rank: 3}}, RankRecords(records))
}
