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

/*
Package memory implements a state backend that keeps every table in process memory.

Each namespace gets its own map, so no key ever carries type-erased values of
another namespace. Iteration is not supported since maps have no key order.
*/
package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/numaproj/panestate/pkg/shared/codec"
	"github.com/numaproj/panestate/pkg/shared/logging"
	"github.com/numaproj/panestate/pkg/state"
)

// memStore is a state backend backed by in mem maps.
type memStore struct {
	lock     sync.Mutex
	tables   map[string]*memTable
	isClosed bool
	log      *zap.SugaredLogger
}

var _ state.Backend = (*memStore)(nil)

// NewMemStore returns an in-memory backend.
func NewMemStore(ctx context.Context) state.Backend {
	return &memStore{
		tables: make(map[string]*memTable),
		log:    logging.FromContext(ctx).With("backend", state.KindMemory),
	}
}

func (s *memStore) Kind() state.Kind { return state.KindMemory }

func (s *memStore) Ordered() bool { return false }

// Table returns the table for the namespace, creating it if needed.
func (s *memStore) Table(name string) (state.Table, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.isClosed {
		return nil, state.ErrClosed
	}
	if t, ok := s.tables[name]; ok {
		return t, nil
	}
	t := &memTable{
		store:     s,
		prefixLen: len(state.EncodeNamespace(name)),
		kv:        make(map[string][]byte),
	}
	s.tables[name] = t
	return t, nil
}

// Close drops every table.
func (s *memStore) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.isClosed {
		return nil
	}
	s.isClosed = true
	s.log.Infow("Closing in-memory state", zap.Int("tables", len(s.tables)))
	s.tables = nil
	return nil
}

func (s *memStore) closed() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.isClosed
}

// memTable is a single namespace. It is not safe for concurrent use; every
// worker owns its backend.
type memTable struct {
	store     *memStore
	prefixLen int
	kv        map[string][]byte
}

func (t *memTable) PrefixLen() int { return t.prefixLen }

func (t *memTable) Get(key []byte) ([]byte, bool, error) {
	if t.store.closed() {
		return nil, false, state.ErrClosed
	}
	v, ok := t.kv[string(key)]
	return v, ok, nil
}

func (t *memTable) Put(key, value []byte) error {
	if t.store.closed() {
		return state.ErrClosed
	}
	var val = make([]byte, len(value))
	copy(val, value)
	t.kv[string(key)] = val
	return nil
}

func (t *memTable) Delete(key []byte) error {
	if t.store.closed() {
		return state.ErrClosed
	}
	delete(t.kv, string(key))
	return nil
}

func (t *memTable) RMW(key, delta []byte, sg codec.Semigroup) error {
	existing, ok, err := t.Get(key)
	if err != nil {
		return err
	}
	if !ok {
		return t.Put(key, delta)
	}
	merged, err := sg.Combine(existing, delta)
	if err != nil {
		return err
	}
	t.kv[string(key)] = merged
	return nil
}

func (t *memTable) Iter([]byte) (state.Iterator, error) {
	return nil, state.ErrIterationUnsupported
}
