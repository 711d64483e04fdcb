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

// Package queries maps query names to window operators.
package queries

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/numaproj/panestate/pkg/state"
	"github.com/numaproj/panestate/pkg/window/operators"
)

const (
	WindowCount          = "window-count"
	WindowRank           = "window-rank"
	WindowRankScan       = "window-rank-scan"
	KeyedWindowCount     = "keyed-window-count"
	KeyedWindowRank      = "keyed-window-rank"
	KeyedWindowCountScan = "keyed-window-count-scan"
	WindowCountSliced    = "window-count-sliced"
	WindowRankSliced     = "window-rank-sliced"
)

// ErrUnknownQuery is returned for a name with no registered query.
var ErrUnknownQuery = errors.New("unknown query")

// Query describes a registered query.
type Query struct {
	Name string
	// Ordered queries range scan their state and need an ordered backend.
	Ordered bool
	Build   func(ctx context.Context, p operators.Params) (operators.Operator, error)
}

var registry = map[string]Query{
	WindowCount: {Name: WindowCount, Build: func(ctx context.Context, p operators.Params) (operators.Operator, error) {
		return operators.NewGlobalCount(ctx, p)
	}},
	WindowRank: {Name: WindowRank, Build: func(ctx context.Context, p operators.Params) (operators.Operator, error) {
		return operators.NewGlobalRank(ctx, p)
	}},
	WindowRankScan: {Name: WindowRankScan, Ordered: true, Build: func(ctx context.Context, p operators.Params) (operators.Operator, error) {
		return operators.NewGlobalScanRank(ctx, p)
	}},
	KeyedWindowCount: {Name: KeyedWindowCount, Build: func(ctx context.Context, p operators.Params) (operators.Operator, error) {
		return operators.NewKeyedCount(ctx, p)
	}},
	KeyedWindowRank: {Name: KeyedWindowRank, Build: func(ctx context.Context, p operators.Params) (operators.Operator, error) {
		return operators.NewKeyedRank(ctx, p)
	}},
	KeyedWindowCountScan: {Name: KeyedWindowCountScan, Ordered: true, Build: func(ctx context.Context, p operators.Params) (operators.Operator, error) {
		return operators.NewKeyedScanCount(ctx, p)
	}},
	WindowCountSliced: {Name: WindowCountSliced, Build: func(ctx context.Context, p operators.Params) (operators.Operator, error) {
		return operators.NewSlicedCount(ctx, p)
	}},
	WindowRankSliced: {Name: WindowRankSliced, Build: func(ctx context.Context, p operators.Params) (operators.Operator, error) {
		return operators.NewSlicedRank(ctx, p)
	}},
}

// Names returns the registered query names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the query called name.
func Lookup(name string) (Query, error) {
	q, ok := registry[name]
	if !ok {
		return Query{}, errors.Wrapf(ErrUnknownQuery, "%q, known queries are %v", name, Names())
	}
	return q, nil
}

// Check verifies that query can run on backends of kind.
func Check(name string, kind state.Kind) error {
	q, err := Lookup(name)
	if err != nil {
		return err
	}
	if q.Ordered && !Ordered(kind) {
		return errors.Wrapf(state.ErrIterationUnsupported, "query %s cannot run on the %s backend", name, kind)
	}
	return nil
}

// Ordered reports whether backends of kind support range iteration.
func Ordered(kind state.Kind) bool {
	return kind == state.KindLSM || kind == state.KindLSMMerge
}
