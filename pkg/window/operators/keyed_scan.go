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

	"github.com/cockroachdb/errors"
	"go.uber.org/multierr"

	"github.com/numaproj/panestate/pkg/event"
	"github.com/numaproj/panestate/pkg/shared/codec"
	"github.com/numaproj/panestate/pkg/state"
)

// KeyedScanCount counts the events of every key in every window using range
// scans: one over the slice index to find the keys of the window, and one per
// key over its panes. Both maps are keyed big-endian, so it needs an ordered
// backend.
type KeyedScanCount struct {
	*base
	index *sliceIndex
	panes *state.ManagedMap[codec.Pair, uint64]
}

// NewKeyedScanCount returns a KeyedScanCount over p.State.
func NewKeyedScanCount(ctx context.Context, p Params) (*KeyedScanCount, error) {
	const name = "keyed-window-count-scan"
	if err := requireOrdered(name, p.State); err != nil {
		return nil, err
	}
	if err := p.Window.ValidateSliced(); err != nil {
		return nil, err
	}
	b, err := newBase(ctx, name, p)
	if err != nil {
		return nil, err
	}
	index, err := newSliceIndex(b, p.State, codec.OrderedUint64{})
	if err != nil {
		return nil, err
	}
	panes, err := state.Map[codec.Pair, uint64](p.State, "panes", codec.OrderedPair{}, codec.Uint64{})
	if err != nil {
		return nil, err
	}
	return &KeyedScanCount{base: b, index: index, panes: panes}, nil
}

func (k *KeyedScanCount) OnData(_ context.Context, epoch uint64, events []event.Event) error {
	if _, err := k.advance(epoch, len(events)); err != nil {
		return err
	}
	for _, e := range events {
		if err := k.panes.RMW(codec.Pair{First: e.Key, Second: k.cfg.PaneEnd(e.Timestamp)}, 1); err != nil {
			return err
		}
		if err := k.index.add(e); err != nil {
			return err
		}
	}
	return k.checkpoint()
}

func (k *KeyedScanCount) OnNotify(_ context.Context, windowEnd uint64) ([]Result, error) {
	start := time.Now()
	keys, err := k.scanKeys(windowEnd)
	if err != nil {
		return nil, err
	}
	first := k.cfg.FirstPane(windowEnd)
	results := make([]Result, 0, len(keys))
	for _, key := range keys {
		count, err := k.scanCount(key, first, windowEnd)
		if err != nil {
			return nil, err
		}
		results = append(results, Result{WindowEnd: windowEnd, Key: key, Value: count})
		if _, ok, err := k.panes.Remove(codec.Pair{First: key, Second: first}); err != nil {
			return nil, err
		} else if !ok {
			k.missing("purge", "pane", windowEnd, first)
		}
	}
	if err := k.index.purge(windowEnd); err != nil {
		return nil, err
	}
	k.fired(start, results)
	return results, k.checkpoint()
}

// scanKeys returns the distinct keys of the slices of the window, ascending.
func (k *KeyedScanCount) scanKeys(windowEnd uint64) (keys []uint64, err error) {
	it, err := k.index.m.Iter(k.cfg.WindowStart(windowEnd) + k.cfg.SliceWidth)
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, it.Close()) }()
	set := make(map[uint64]struct{})
	for it.Next() {
		if it.Key() > windowEnd {
			break
		}
		for _, key := range it.Value() {
			set[key] = struct{}{}
		}
	}
	if err := it.Err(); err != nil {
		return nil, errors.Wrapf(err, "%s: scanning slices of window %d", k.name, windowEnd)
	}
	return sortedKeys(set), nil
}

// scanCount sums the panes of key from the first pane of the window up to its end.
func (k *KeyedScanCount) scanCount(key, first, windowEnd uint64) (count uint64, err error) {
	it, err := k.panes.Iter(codec.Pair{First: key, Second: first})
	if err != nil {
		return 0, err
	}
	defer func() { err = multierr.Append(err, it.Close()) }()
	for it.Next() {
		if p := it.Key(); p.First != key || p.Second > windowEnd {
			break
		}
		count += it.Value()
	}
	return count, errors.Wrapf(it.Err(), "%s: scanning panes of key %d", k.name, key)
}
