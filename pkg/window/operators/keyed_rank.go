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

package operators

import (
	"context"
	"time"

	"github.com/numaproj/panestate/pkg/event"
	"github.com/numaproj/panestate/pkg/shared/codec"
	"github.com/numaproj/panestate/pkg/state"
	"github.com/numaproj/panestate/pkg/window"
)

// KeyedRank ranks the events of every key within every window. Each event is
// copied into a bucket for every window containing it, keyed by the key and
// the window start, so firing a window reads one bucket per key.
type KeyedRank struct {
	*base
	index   *sliceIndex
	buckets *state.ManagedMap[codec.Pair, []event.Event]
}

// NewKeyedRank returns a KeyedRank over p.State.
func NewKeyedRank(ctx context.Context, p Params) (*KeyedRank, error) {
	if err := p.Window.ValidateSliced(); err != nil {
		return nil, err
	}
	b, err := newBase(ctx, "keyed-window-rank", p)
	if err != nil {
		return nil, err
	}
	index, err := newSliceIndex(b, p.State, codec.Uint64{})
	if err != nil {
		return nil, err
	}
	buckets, err := state.Map[codec.Pair, []event.Event](p.State, "buckets", codec.OrderedPair{}, codec.Records{})
	if err != nil {
		return nil, err
	}
	return &KeyedRank{base: b, index: index, buckets: buckets}, nil
}

func (k *KeyedRank) OnData(_ context.Context, epoch uint64, events []event.Event) error {
	if _, err := k.advance(epoch, len(events)); err != nil {
		return err
	}
	for _, e := range events {
		for _, start := range k.cfg.AssignWindows(e.Timestamp) {
			if err := k.buckets.RMW(codec.Pair{First: e.Key, Second: start}, []event.Event{e}); err != nil {
				return err
			}
		}
		if err := k.index.add(e); err != nil {
			return err
		}
	}
	return k.checkpoint()
}

// OnNotify emits, for every key of the window, the rank of each of its events
// among the events of that key.
func (k *KeyedRank) OnNotify(_ context.Context, windowEnd uint64) ([]Result, error) {
	start := time.Now()
	keys, err := k.index.keys(windowEnd)
	if err != nil {
		return nil, err
	}
	windowStart := k.cfg.WindowStart(windowEnd)
	var results []Result
	for _, key := range keys {
		records, ok, err := k.buckets.Remove(codec.Pair{First: key, Second: windowStart})
		if err != nil {
			return nil, err
		}
		if !ok {
			k.missing("fire", "bucket", windowEnd, key)
			continue
		}
		results = append(results, rankResults(windowEnd, window.RankRecords(records))...)
	}
	if err := k.index.purge(windowEnd); err != nil {
		return nil, err
	}
	k.fired(start, results)
	return results, k.checkpoint()
}
