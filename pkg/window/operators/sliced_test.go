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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/panestate/pkg/event"
	"github.com/numaproj/panestate/pkg/shared/codec"
	"github.com/numaproj/panestate/pkg/state"
	"github.com/numaproj/panestate/pkg/window"
)

func TestSlicedCount(t *testing.T) {
	forEachBackend(t, false, func(t *testing.T, h *state.Handle) {
		hs := newHarness(t)
		op, err := NewSlicedCount(testContext(), hs.params(threeSecondWindows, h))
		require.NoError(t, err)
		hs.op = op

		hs.push(ms(2500), scenarioEvents()...)
		assert.Equal(t, []Result{
			{WindowEnd: ms(3000), Value: 3},
			{WindowEnd: ms(4000), Value: 2},
			{WindowEnd: ms(5000), Value: 1},
		}, hs.close())

		slices, err := state.Map[uint64, []uint64](h, "slices", codec.Uint64{}, codec.Uint64s{})
		require.NoError(t, err)
		contents, err := state.Map[uint64, []uint64](h, "contents", codec.Uint64{}, codec.Uint64s{})
		require.NoError(t, err)
		for _, e := range scenarioEvents() {
			ok, err := slices.Contains(threeSecondWindows.SliceEnd(e.Timestamp))
			require.NoError(t, err)
			assert.False(t, ok)
			ok, err = contents.Contains(e.Timestamp)
			require.NoError(t, err)
			assert.False(t, ok)
		}
	})
}

func TestSlicedCount_SharedTimestamps(t *testing.T) {
	forEachBackend(t, false, func(t *testing.T, h *state.Handle) {
		hs := newHarness(t)
		op, err := NewSlicedCount(testContext(), hs.params(threeSecondWindows, h))
		require.NoError(t, err)
		hs.op = op

		hs.push(ms(500), event.Event{Key: 1, Timestamp: ms(500)}, event.Event{Key: 2, Timestamp: ms(500)}, event.Event{Key: 3, Timestamp: ms(500)})
		slices, err := state.Map[uint64, []uint64](h, "slices", codec.Uint64{}, codec.Uint64s{})
		require.NoError(t, err)
		timestamps, ok, err := slices.Get(ms(1000))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []uint64{ms(500)}, timestamps)

		assert.Equal(t, []Result{{WindowEnd: ms(3000), Value: 3}}, hs.close())
	})
}

func TestSlicedCount_MultipleSlicesPerSlide(t *testing.T) {
	forEachBackend(t, false, func(t *testing.T, h *state.Handle) {
		hs := newHarness(t)
		cfg := window.Config{Slide: ms(2000), SliceCount: 2, SliceWidth: ms(1000)}
		op, err := NewSlicedCount(testContext(), hs.params(cfg, h))
		require.NoError(t, err)
		hs.op = op

		hs.push(ms(3500),
			event.Event{Key: 1, Timestamp: ms(500)},
			event.Event{Key: 1, Timestamp: ms(1500)},
			event.Event{Key: 1, Timestamp: ms(2500)},
			event.Event{Key: 1, Timestamp: ms(3500)},
		)
		assert.Equal(t, []Result{
			{WindowEnd: ms(4000), Value: 4},
			{WindowEnd: ms(6000), Value: 2},
		}, hs.close())
	})
}

func TestSlicedCount_EmptyWindow(t *testing.T) {
	forEachBackend(t, false, func(t *testing.T, h *state.Handle) {
		hs := newHarness(t)
		op, err := NewSlicedCount(testContext(), hs.params(threeSecondWindows, h))
		require.NoError(t, err)
		hs.op = op
		hs.push(ms(500))
		assert.Equal(t, []Result{{WindowEnd: ms(3000), Value: 0}}, hs.close())
	})
}

func TestSlicedRank(t *testing.T) {
	forEachBackend(t, false, func(t *testing.T, h *state.Handle) {
		hs := newHarness(t)
		op, err := NewSlicedRank(testContext(), hs.params(threeSecondWindows, h))
		require.NoError(t, err)
		hs.op = op

		hs.push(ms(2500), scenarioEvents()...)
		assert.Equal(t, []Result{
			{WindowEnd: ms(3000), Key: 7, Value: 1},
			{WindowEnd: ms(3000), Key: 7, Value: 1},
			{WindowEnd: ms(3000), Key: 9, Value: 3},
		}, windowResults(hs.close(), ms(3000)))
	})
}
