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

// Package event defines the records flowing through the window operators.
package event

import "fmt"

// Event is a single keyed observation. Timestamp is in nanoseconds.
type Event struct {
	Key       uint64
	Timestamp uint64
}

func (e Event) String() string {
	return fmt.Sprintf("(%d,%d)", e.Key, e.Timestamp)
}

// Keys returns the keys of the given events, in order.
func Keys(events []Event) []uint64 {
	keys := make([]uint64, len(events))
	for i, e := range events {
		keys[i] = e.Key
	}
	return keys
}

// Batch is the set of events of one epoch. Epochs of a stream never decrease.
type Batch struct {
	Epoch  uint64
	Events []Event
}
