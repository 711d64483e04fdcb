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

	"github.com/numaproj/panestate/pkg/event"
	"github.com/numaproj/panestate/pkg/shared/codec"
	"github.com/numaproj/panestate/pkg/state"
	"github.com/numaproj/panestate/pkg/window"
)

// slices keeps window contents at slice granularity: every slice lists the
// distinct event timestamps that fell into it and every timestamp lists the
// keys of its events. A window is read as slice_count * slices_per_slide
// slices and purging it removes the slices of its first slide.
type slices struct {
	*base
	index    *state.ManagedMap[uint64, []uint64]
	contents *state.ManagedMap[uint64, []uint64]
}

func newSlices(ctx context.Context, name string, p Params) (*slices, error) {
	if err := p.Window.ValidateSliced(); err != nil {
		return nil, err
	}
	b, err := newBase(ctx, name, p)
	if err != nil {
		return nil, err
	}
	index, err := state.Map[uint64, []uint64](p.State, "slices", codec.Uint64{}, codec.Uint64s{})
	if err != nil {
		return nil, err
	}
	contents, err := state.Map[uint64, []uint64](p.State, "contents", codec.Uint64{}, codec.Uint64s{})
	if err != nil {
		return nil, err
	}
	return &slices{base: b, index: index, contents: contents}, nil
}

func (s *slices) OnData(_ context.Context, epoch uint64, events []event.Event) error {
	if _, err := s.advance(epoch, len(events)); err != nil {
		return err
	}
	for _, e := range events {
		seen, err := s.contents.Contains(e.Timestamp)
		if err != nil {
			return err
		}
		if !seen {
			if err := s.index.RMW(s.cfg.SliceEnd(e.Timestamp), []uint64{e.Timestamp}); err != nil {
				return err
			}
		}
		if err := s.contents.RMW(e.Timestamp, []uint64{e.Key}); err != nil {
			return err
		}
	}
	return s.checkpoint()
}

// keys returns the keys of all events of the window.
func (s *slices) keys(windowEnd uint64) ([]uint64, error) {
	var keys []uint64
	n := s.cfg.SliceCount * s.cfg.SlicesPerSlide()
	for i := uint64(0); i < n; i++ {
		slice := windowEnd - s.cfg.SliceWidth*i
		timestamps, ok, err := s.index.Get(slice)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.missing("fire", "slice", windowEnd, slice)
			continue
		}
		for _, ts := range timestamps {
			k, ok, err := s.contents.Get(ts)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, errors.AssertionFailedf("%s: contents of timestamp %d in slice %d are missing", s.name, ts, slice)
			}
			keys = append(keys, k...)
		}
	}
	return keys, nil
}

// purge removes the slices of the first slide of the window and their contents.
func (s *slices) purge(windowEnd uint64) error {
	first := s.cfg.FirstPane(windowEnd)
	for i := uint64(0); i < s.cfg.SlicesPerSlide(); i++ {
		slice := first - s.cfg.SliceWidth*i
		timestamps, ok, err := s.index.Remove(slice)
		if err != nil {
			return err
		}
		if !ok {
			s.missing("purge", "slice", windowEnd, slice)
			continue
		}
		for _, ts := range timestamps {
			_, ok, err := s.contents.Remove(ts)
			if err != nil {
				return err
			}
			if !ok {
				return errors.AssertionFailedf("%s: contents of timestamp %d in slice %d are missing at purge", s.name, ts, slice)
			}
		}
	}
	return s.checkpoint()
}

// SlicedCount counts the events of every window from slice contents.
type SlicedCount struct {
	*slices
}

// NewSlicedCount returns a SlicedCount over p.State.
func NewSlicedCount(ctx context.Context, p Params) (*SlicedCount, error) {
	s, err := newSlices(ctx, "window-count-sliced", p)
	if err != nil {
		return nil, err
	}
	return &SlicedCount{slices: s}, nil
}

func (s *SlicedCount) OnNotify(_ context.Context, windowEnd uint64) ([]Result, error) {
	start := time.Now()
	keys, err := s.keys(windowEnd)
	if err != nil {
		return nil, err
	}
	results := []Result{{WindowEnd: windowEnd, Value: uint64(len(keys))}}
	if err := s.purge(windowEnd); err != nil {
		return nil, err
	}
	s.fired(start, results)
	return results, nil
}

// SlicedRank ranks the keys of every window from slice contents.
type SlicedRank struct {
	*slices
}

// NewSlicedRank returns a SlicedRank over p.State.
func NewSlicedRank(ctx context.Context, p Params) (*SlicedRank, error) {
	s, err := newSlices(ctx, "window-rank-sliced", p)
	if err != nil {
		return nil, err
	}
	return &SlicedRank{slices: s}, nil
}

func (s *SlicedRank) OnNotify(_ context.Context, windowEnd uint64) ([]Result, error) {
	start := time.Now()
	keys, err := s.keys(windowEnd)
	if err != nil {
		return nil, err
	}
	results := rankResults(windowEnd, window.Rank(keys))
	if err := s.purge(windowEnd); err != nil {
		return nil, err
	}
	s.fired(start, results)
	return results, nil
}
