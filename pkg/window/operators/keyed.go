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
)

// sliceIndex records which keys were seen in every slice.
type sliceIndex struct {
	*base
	m *state.ManagedMap[uint64, []uint64]
}

func newSliceIndex(b *base, h *state.Handle, keys codec.Codec[uint64]) (*sliceIndex, error) {
	m, err := state.Map[uint64, []uint64](h, "index", keys, codec.Uint64s{})
	if err != nil {
		return nil, err
	}
	return &sliceIndex{base: b, m: m}, nil
}

func (s *sliceIndex) add(e event.Event) error {
	return addKey(s.m, s.cfg.SliceEnd(e.Timestamp), e.Key)
}

// keys returns the distinct keys of the slices of the window, ascending.
func (s *sliceIndex) keys(windowEnd uint64) ([]uint64, error) {
	set := make(map[uint64]struct{})
	for _, slice := range s.cfg.SlicesOf(windowEnd) {
		keys, _, err := s.m.Get(slice)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			set[k] = struct{}{}
		}
	}
	return sortedKeys(set), nil
}

// purge removes the slices of the first pane of the window. Slices without
// events were never created.
func (s *sliceIndex) purge(windowEnd uint64) error {
	for _, slice := range s.cfg.PurgeSlices(windowEnd) {
		_, ok, err := s.m.Remove(slice)
		if err != nil {
			return err
		}
		if !ok {
			s.missing("purge", "slice", windowEnd, slice)
		}
	}
	return nil
}

// KeyedCount counts the events of every key in every window. Windows found
// already closed when the stream jumps ahead are kept pending and fire with
// the next notification.
type KeyedCount struct {
	*base
	index *sliceIndex
	panes *state.ManagedMap[codec.Pair, uint64]
}

// NewKeyedCount returns a KeyedCount over p.State.
func NewKeyedCount(ctx context.Context, p Params) (*KeyedCount, error) {
	if err := p.Window.ValidateSliced(); err != nil {
		return nil, err
	}
	b, err := newBase(ctx, "keyed-window-count", p)
	if err != nil {
		return nil, err
	}
	b.lagging = true
	index, err := newSliceIndex(b, p.State, codec.Uint64{})
	if err != nil {
		return nil, err
	}
	panes, err := state.Map[codec.Pair, uint64](p.State, "panes", codec.OrderedPair{}, codec.Uint64{})
	if err != nil {
		return nil, err
	}
	return &KeyedCount{base: b, index: index, panes: panes}, nil
}

func (k *KeyedCount) OnData(_ context.Context, epoch uint64, events []event.Event) error {
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

// OnNotify fires the pending windows up to windowEnd and then windowEnd itself.
func (k *KeyedCount) OnNotify(_ context.Context, windowEnd uint64) ([]Result, error) {
	var results []Result
	for _, w := range k.cursor.FireOrder(windowEnd) {
		r, err := k.fire(w)
		if err != nil {
			return nil, err
		}
		results = append(results, r...)
	}
	return results, k.checkpoint()
}

func (k *KeyedCount) fire(windowEnd uint64) ([]Result, error) {
	start := time.Now()
	keys, err := k.index.keys(windowEnd)
	if err != nil {
		return nil, err
	}
	first := k.cfg.FirstPane(windowEnd)
	results := make([]Result, 0, len(keys))
	for _, key := range keys {
		var count uint64
		for _, pane := range k.cfg.PanesOf(windowEnd) {
			c, _, err := k.panes.Get(codec.Pair{First: key, Second: pane})
			if err != nil {
				return nil, err
			}
			count += c
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
	return results, nil
}
