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
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/panestate/pkg/event"
	"github.com/numaproj/panestate/pkg/shared/logging"
	"github.com/numaproj/panestate/pkg/state"
	"github.com/numaproj/panestate/pkg/state/logstore"
	"github.com/numaproj/panestate/pkg/state/lsm"
	"github.com/numaproj/panestate/pkg/state/memory"
	"github.com/numaproj/panestate/pkg/window"
)

func testContext() context.Context {
	return logging.WithLogger(context.Background(), logging.NewNopLogger())
}

func ms(n uint64) uint64 { return n * uint64(time.Millisecond) }

// threeSecondWindows slides by one second over three panes.
var threeSecondWindows = window.NewConfig(time.Second, 3)

type backendCase struct {
	name    string
	ordered bool
	open    func(t *testing.T) state.Backend
}

func backendCases() []backendCase {
	return []backendCase{
		{name: "memory", open: func(t *testing.T) state.Backend {
			return memory.NewMemStore(testContext())
		}},
		{name: "log", open: func(t *testing.T) state.Backend {
			b, err := logstore.NewLogStore(testContext(), logstore.Options{Name: "test", Dir: t.TempDir(), TableSize: 128, LogSize: 1 << 16})
			require.NoError(t, err)
			return b
		}},
		{name: "lsm", ordered: true, open: func(t *testing.T) state.Backend {
			b, err := lsm.NewReadWriteStore(testContext(), lsm.Options{Name: "test", Dir: t.TempDir(), CacheSize: 1 << 20, WriteBufferSize: 1 << 20})
			require.NoError(t, err)
			return b
		}},
		{name: "lsm-merge", ordered: true, open: func(t *testing.T) state.Backend {
			b, err := lsm.NewMergeStore(testContext(), lsm.Options{Name: "test", Dir: t.TempDir(), CacheSize: 1 << 20, WriteBufferSize: 1 << 20})
			require.NoError(t, err)
			return b
		}},
	}
}

// forEachBackend runs fn against every backend, or only the ordered ones.
func forEachBackend(t *testing.T, orderedOnly bool, fn func(t *testing.T, h *state.Handle)) {
	for _, bc := range backendCases() {
		if orderedOnly && !bc.ordered {
			continue
		}
		t.Run(bc.name, func(t *testing.T) {
			h := state.NewHandle(bc.open(t), "query")
			t.Cleanup(func() { assert.NoError(t, h.Close()) })
			fn(t, h)
		})
	}
}

// harness plays the host: it collects notification requests and delivers
// them in ascending order once the frontier passes them.
type harness struct {
	t         *testing.T
	op        Operator
	requested map[uint64]struct{}
}

func newHarness(t *testing.T) *harness {
	return &harness{t: t, requested: make(map[uint64]struct{})}
}

func (h *harness) NotifyAt(t uint64) { h.requested[t] = struct{}{} }

func (h *harness) params(cfg window.Config, s *state.Handle) Params {
	return Params{Window: cfg, State: s, Notifier: h, Worker: "0"}
}

func (h *harness) push(epoch uint64, events ...event.Event) {
	require.NoError(h.t, h.op.OnData(testContext(), epoch, events))
}

// advance fires every requested time before frontier.
func (h *harness) advance(frontier uint64) []Result {
	var due []uint64
	for t := range h.requested {
		if t < frontier {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i] < due[j] })
	var results []Result
	for _, t := range due {
		delete(h.requested, t)
		r, err := h.op.OnNotify(testContext(), t)
		require.NoError(h.t, err)
		results = append(results, r...)
	}
	return results
}

// close fires every outstanding notification.
func (h *harness) close() []Result {
	return h.advance(^uint64(0))
}

func scenarioEvents() []event.Event {
	return []event.Event{
		{Key: 7, Timestamp: ms(500)},
		{Key: 7, Timestamp: ms(1500)},
		{Key: 9, Timestamp: ms(2500)},
	}
}

func windowResults(results []Result, windowEnd uint64) []Result {
	var out []Result
	for _, r := range results {
		if r.WindowEnd == windowEnd {
			out = append(out, r)
		}
	}
	return out
}

func TestRequireOrdered(t *testing.T) {
	h := state.NewHandle(memory.NewMemStore(testContext()), "query")
	defer func() { assert.NoError(t, h.Close()) }()
	hs := newHarness(t)
	_, err := NewGlobalScanRank(testContext(), hs.params(threeSecondWindows, h))
	assert.ErrorIs(t, err, state.ErrIterationUnsupported)
	_, err = NewKeyedScanCount(testContext(), hs.params(threeSecondWindows, h))
	assert.ErrorIs(t, err, state.ErrIterationUnsupported)
}

func TestNewBase_RequiresNotifier(t *testing.T) {
	h := state.NewHandle(memory.NewMemStore(testContext()), "query")
	defer func() { assert.NoError(t, h.Close()) }()
	_, err := NewGlobalCount(testContext(), Params{Window: threeSecondWindows, State: h})
	assert.Error(t, err)
}

func TestCursorIsRestored(t *testing.T) {
	forEachBackend(t, false, func(t *testing.T, h *state.Handle) {
		first := newHarness(t)
		op, err := NewGlobalCount(testContext(), first.params(threeSecondWindows, h))
		require.NoError(t, err)
		first.op = op
		first.push(ms(2500), scenarioEvents()...)
		assert.Len(t, first.requested, 3)

		// a new operator over the same state continues where the first stopped
		second := newHarness(t)
		op, err = NewGlobalCount(testContext(), second.params(threeSecondWindows, h))
		require.NoError(t, err)
		second.op = op
		second.push(ms(2600))
		assert.Empty(t, second.requested)
		second.requested = first.requested
		assert.Equal(t, []Result{{WindowEnd: ms(3000), Value: 3}}, windowResults(second.close(), ms(3000)))
	})
}
