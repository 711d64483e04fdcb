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
	"encoding/binary"

	"github.com/spaolacci/murmur3"

	"github.com/numaproj/panestate/pkg/event"
)

// Partitioner routes keys to workers.
type Partitioner struct {
	workers int
}

func NewPartitioner(workers int) *Partitioner {
	return &Partitioner{workers: workers}
}

// Worker returns the worker owning key.
func (p *Partitioner) Worker(key uint64) int {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], key)
	return int(murmur3.Sum64(b[:]) % uint64(p.workers))
}

// Split divides events by worker, keeping their order.
func (p *Partitioner) Split(events []event.Event) [][]event.Event {
	parts := make([][]event.Event, p.workers)
	for _, e := range events {
		w := p.Worker(e.Key)
		parts[w] = append(parts[w], e)
	}
	return parts
}
