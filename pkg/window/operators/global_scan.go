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
	"github.com/numaproj/panestate/pkg/window"
)

// GlobalScanRank ranks the keys of every window, reading the panes of a
// window with one range scan. Panes are keyed big-endian so that the scan
// visits them in time order; it needs an ordered backend.
type GlobalScanRank struct {
	*panes[[]event.Event]
}

// NewGlobalScanRank returns a GlobalScanRank over p.State.
func NewGlobalScanRank(ctx context.Context, p Params) (*GlobalScanRank, error) {
	const name = "window-rank-scan"
	if err := requireOrdered(name, p.State); err != nil {
		return nil, err
	}
	b, err := newBase(ctx, name, p)
	if err != nil {
		return nil, err
	}
	m, err := state.Map[uint64, []event.Event](p.State, "panes", codec.OrderedUint64{}, codec.Records{})
	if err != nil {
		return nil, err
	}
	return &GlobalScanRank{panes: newPanes(b, m, []event.Event{})}, nil
}

func (g *GlobalScanRank) OnData(_ context.Context, epoch uint64, events []event.Event) error {
	return g.ingest(epoch, events, func(e event.Event) []event.Event { return []event.Event{e} })
}

func (g *GlobalScanRank) OnNotify(_ context.Context, windowEnd uint64) ([]Result, error) {
	start := time.Now()
	if err := g.initialize(windowEnd); err != nil {
		return nil, err
	}
	keys, err := g.scan(windowEnd)
	if err != nil {
		return nil, err
	}
	results := rankResults(windowEnd, window.Rank(keys))
	if err := g.purge(windowEnd); err != nil {
		return nil, err
	}
	g.fired(start, results)
	return results, nil
}

// scan collects the keys of the panes from the first pane of the window up to its end.
func (g *GlobalScanRank) scan(windowEnd uint64) (keys []uint64, err error) {
	it, err := g.m.Iter(g.cfg.FirstPane(windowEnd))
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, it.Close()) }()
	for it.Next() {
		if it.Key() > windowEnd {
			break
		}
		keys = append(keys, event.Keys(it.Value())...)
	}
	return keys, errors.Wrapf(it.Err(), "%s: scanning window %d", g.name, windowEnd)
}
