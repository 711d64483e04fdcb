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

// Package operators implements the sliding window aggregations over managed state.
//
// Every operator follows the same protocol. OnData is called with the events of one epoch, epochs never decrease.
// The operator advances its slide cursor, asks its Notifier to be called back at the end of every window it has not
// seen yet, and merges the events into panes. OnNotify is called once for each requested window end, in ascending
// order, after the stream has moved past it. The operator then aggregates the window, emits its results and purges
// the state no later window reads.
package operators

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/numaproj/panestate/pkg/event"
	"github.com/numaproj/panestate/pkg/metrics"
	"github.com/numaproj/panestate/pkg/shared/codec"
	"github.com/numaproj/panestate/pkg/shared/logging"
	"github.com/numaproj/panestate/pkg/state"
	"github.com/numaproj/panestate/pkg/window"
)

// Result is one output record. Global counts use key 0.
type Result struct {
	WindowEnd uint64
	Key       uint64
	Value     uint64
}

// Notifier schedules a call to OnNotify once the stream passes t.
type Notifier interface {
	NotifyAt(t uint64)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(t uint64)

func (f NotifierFunc) NotifyAt(t uint64) { f(t) }

// Operator is a windowed aggregation bound to one worker's state.
type Operator interface {
	Name() string
	OnData(ctx context.Context, epoch uint64, events []event.Event) error
	OnNotify(ctx context.Context, windowEnd uint64) ([]Result, error)
}

// Params carries what every operator is built from.
type Params struct {
	Window   window.Config
	State    *state.Handle
	Notifier Notifier
	// Worker labels the operator metrics.
	Worker string
}

// base holds the cursor and the bookkeeping shared by all operators.
type base struct {
	name     string
	worker   string
	cfg      window.Config
	notifier Notifier
	log      *zap.SugaredLogger
	cursor   window.SlideCursor
	saved    *state.ManagedValue[window.SlideCursor]
	// lagging enables the pending-fire set.
	lagging bool
}

func newBase(ctx context.Context, name string, p Params) (*base, error) {
	if p.State == nil || p.Notifier == nil {
		return nil, errors.Newf("%s: state handle and notifier are required", name)
	}
	saved, err := state.Value[window.SlideCursor](p.State, "cursor", codec.JSON[window.SlideCursor]{})
	if err != nil {
		return nil, err
	}
	b := &base{
		name:     name,
		worker:   p.Worker,
		cfg:      p.Window,
		notifier: p.Notifier,
		log:      logging.FromContext(ctx).With("query", name, "worker", p.Worker),
		saved:    saved,
	}
	cursor, ok, err := saved.Get()
	if err != nil {
		return nil, errors.Wrapf(err, "%s: restoring cursor", name)
	}
	if ok {
		b.cursor = cursor
		b.log.Infow("Restored window cursor", zap.Uint64("lastSlideSeen", cursor.LastSlideSeen), zap.Int("pending", len(cursor.Pending)))
	}
	return b, nil
}

func (b *base) Name() string { return b.name }

// advance moves the cursor to epoch and requests notifications for the new windows.
func (b *base) advance(epoch uint64, events int) (window.Advance, error) {
	a, err := b.cursor.Advance(b.cfg, epoch, b.lagging)
	if err != nil {
		return a, errors.Wrap(err, b.name)
	}
	for _, w := range a.Notify {
		b.notifier.NotifyAt(w)
	}
	if len(a.Lagging) > 0 {
		b.log.Infow("Windows already closed, firing with the next notification", zap.Uint64s("windows", a.Lagging))
	}
	metrics.EventsIngested.WithLabelValues(b.name, b.worker).Add(float64(events))
	return a, nil
}

// checkpoint stores the cursor.
func (b *base) checkpoint() error {
	if b.lagging {
		metrics.PendingWindows.WithLabelValues(b.name, b.worker).Set(float64(len(b.cursor.Pending)))
	}
	return errors.Wrapf(b.saved.Set(b.cursor), "%s: saving cursor", b.name)
}

// fired records the metrics of one fired window.
func (b *base) fired(start time.Time, results []Result) {
	metrics.WindowsFired.WithLabelValues(b.name, b.worker).Inc()
	metrics.ResultsEmitted.WithLabelValues(b.name, b.worker).Add(float64(len(results)))
	metrics.FireProcessingTime.WithLabelValues(b.name).Observe(float64(time.Since(start).Microseconds()))
}

// missing reports an absent pane or slice that the algorithm tolerates.
func (b *base) missing(reason, what string, windowEnd, at uint64) {
	metrics.MissingEntries.WithLabelValues(b.name, reason).Inc()
	b.log.Debugw("Missing "+what, zap.String("reason", reason), zap.Uint64("windowEnd", windowEnd), zap.Uint64("at", at))
}

// requireOrdered rejects backends that cannot range scan.
func requireOrdered(name string, h *state.Handle) error {
	if h == nil || h.Backend().Ordered() {
		return nil
	}
	return errors.Wrapf(state.ErrIterationUnsupported, "%s needs an ordered backend, %s is not", name, h.Backend().Kind())
}

// rankResults emits one result per ranked value.
func rankResults(windowEnd uint64, ranked []window.Ranked) []Result {
	out := make([]Result, len(ranked))
	for i, r := range ranked {
		out[i] = Result{WindowEnd: windowEnd, Key: r.Value, Value: r.Rank}
	}
	return out
}

// addKey appends k to the key list of a slice unless it is already there.
func addKey(index *state.ManagedMap[uint64, []uint64], slice, k uint64) error {
	keys, _, err := index.Get(slice)
	if err != nil {
		return err
	}
	for _, x := range keys {
		if x == k {
			return nil
		}
	}
	return index.Insert(slice, append(keys, k))
}

// sortedKeys returns the distinct keys of a set in ascending order.
func sortedKeys(set map[uint64]struct{}) []uint64 {
	keys := make([]uint64, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
