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

package dataflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/numaproj/panestate/pkg/event"
)

func TestPartitioner(t *testing.T) {
	p := NewPartitioner(4)
	seen := make(map[int]bool)
	for k := uint64(0); k < 1000; k++ {
		w := p.Worker(k)
		assert.GreaterOrEqual(t, w, 0)
		assert.Less(t, w, 4)
		assert.Equal(t, w, p.Worker(k))
		seen[w] = true
	}
	assert.Len(t, seen, 4)
}

func TestPartitioner_Split(t *testing.T) {
	p := NewPartitioner(3)
	events := []event.Event{{Key: 1, Timestamp: 1}, {Key: 2, Timestamp: 2}, {Key: 1, Timestamp: 3}, {Key: 5, Timestamp: 4}}
	parts := p.Split(events)
	assert.Len(t, parts, 3)
	total := 0
	for w, part := range parts {
		for i, e := range part {
			assert.Equal(t, w, p.Worker(e.Key))
			if i > 0 {
				assert.Less(t, part[i-1].Timestamp, e.Timestamp)
			}
		}
		total += len(part)
	}
	assert.Equal(t, len(events), total)
}
