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

// panes is the pane store of the global aggregations. Panes are created empty
// for every slide the stream reaches, so that a pane missing at purge time
// means lost state.
type panes[V any] struct {
	*base
	m     *state.ManagedMap[uint64, V]
	empty V
}

func newPanes[V any](b *base, m *state.ManagedMap[uint64, V], empty V) *panes[V] {
	return &panes[V]{base: b, m: m, empty: empty}
}

// initialize creates the empty panes up to the end of slide.
func (p *panes[V]) initialize(slide uint64) error {
	for _, pane := range p.cursor.PanesToInitialize(p.cfg, slide) {
		ok, err := p.m.Contains(pane)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if err := p.m.Insert(pane, p.empty); err != nil {
			return err
		}
	}
	return nil
}

// ingest advances the cursor and merges every event into its pane.
func (p *panes[V]) ingest(epoch uint64, events []event.Event, delta func(event.Event) V) error {
	a, err := p.advance(epoch, len(events))
	if err != nil {
		return err
	}
	if err := p.initialize(a.CurrentSlide); err != nil {
		return err
	}
	for _, e := range events {
		if err := p.m.RMW(p.cfg.PaneEnd(e.Timestamp), delta(e)); err != nil {
			return err
		}
	}
	return p.checkpoint()
}

// read returns the panes of the window that exist.
func (p *panes[V]) read(windowEnd uint64) ([]V, error) {
	if err := p.initialize(windowEnd); err != nil {
		return nil, err
	}
	var out []V
	for _, pane := range p.cfg.PanesOf(windowEnd) {
		v, ok, err := p.m.Get(pane)
		if err != nil {
			return nil, err
		}
		if !ok {
			p.missing("fire", "pane", windowEnd, pane)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// purge removes the first pane of the window, which must exist.
func (p *panes[V]) purge(windowEnd uint64) error {
	first := p.cfg.FirstPane(windowEnd)
	_, ok, err := p.m.Remove(first)
	if err != nil {
		return err
	}
	if !ok {
		return errors.AssertionFailedf("%s: pane %d of window %d is missing at purge", p.name, first, windowEnd)
	}
	return p.checkpoint()
}

// GlobalCount counts the events of every window.
type GlobalCount struct {
	*panes[uint64]
}

// NewGlobalCount returns a GlobalCount over p.State.
func NewGlobalCount(ctx context.Context, p Params) (*GlobalCount, error) {
	b, err := newBase(ctx, "window-count", p)
	if err != nil {
		return nil, err
	}
	m, err := state.Map[uint64, uint64](p.State, "panes", codec.Uint64{}, codec.Uint64{})
	if err != nil {
		return nil, err
	}
	return &GlobalCount{panes: newPanes(b, m, uint64(0))}, nil
}

func (g *GlobalCount) OnData(_ context.Context, epoch uint64, events []event.Event) error {
	return g.ingest(epoch, events, func(event.Event) uint64 { return 1 })
}

// OnNotify emits the event count of the window, zero for an empty window.
func (g *GlobalCount) OnNotify(_ context.Context, windowEnd uint64) ([]Result, error) {
	start := time.Now()
	counts, err := g.read(windowEnd)
	if err != nil {
		return nil, err
	}
	var total uint64
	for _, c := range counts {
		total += c
	}
	results := []Result{{WindowEnd: windowEnd, Value: total}}
	if err := g.purge(windowEnd); err != nil {
		return nil, err
	}
	g.fired(start, results)
	return results, nil
}

// GlobalRank ranks the keys of all events of every window.
type GlobalRank struct {
	*panes[[]event.Event]
}

// NewGlobalRank returns a GlobalRank over p.State.
func NewGlobalRank(ctx context.Context, p Params) (*GlobalRank, error) {
	b, err := newBase(ctx, "window-rank", p)
	if err != nil {
		return nil, err
	}
	m, err := state.Map[uint64, []event.Event](p.State, "panes", codec.Uint64{}, codec.Records{})
	if err != nil {
		return nil, err
	}
	return &GlobalRank{panes: newPanes(b, m, []event.Event{})}, nil
}

func (g *GlobalRank) OnData(_ context.Context, epoch uint64, events []event.Event) error {
	return g.ingest(epoch, events, func(e event.Event) []event.Event { return []event.Event{e} })
}

// OnNotify emits (key, rank) for every event of the window. An empty window emits nothing.
func (g *GlobalRank) OnNotify(_ context.Context, windowEnd uint64) ([]Result, error) {
	start := time.Now()
	records, err := g.read(windowEnd)
	if err != nil {
		return nil, err
	}
	var keys []uint64
	for _, r := range records {
		keys = append(keys, event.Keys(r)...)
	}
	results := rankResults(windowEnd, window.Rank(keys))
	if err := g.purge(windowEnd); err != nil {
		return nil, err
	}
	g.fired(start, results)
	return results, nil
}
