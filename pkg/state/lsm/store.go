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
Package lsm implements state backends on an LSM tree (pebble).

Keys are kept in byte-lexicographic order, so tables support range iteration.
Two read-modify-write strategies are available: KindLSM reads the current
value, combines it and writes it back, while KindLSMMerge appends a merge
operand that the engine folds lazily on reads and compactions.
*/
package lsm

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/numaproj/panestate/pkg/shared/codec"
	"github.com/numaproj/panestate/pkg/shared/logging"
	"github.com/numaproj/panestate/pkg/state"
)

type lsmStore struct {
	kind   state.Kind
	opts   Options
	db     *pebble.DB
	tables map[string]*lsmTable
	log    *zap.SugaredLogger
}

var _ state.Backend = (*lsmStore)(nil)

// NewReadWriteStore opens a backend whose read-modify-write reads, combines and writes.
func NewReadWriteStore(ctx context.Context, opts Options) (state.Backend, error) {
	return open(ctx, state.KindLSM, opts)
}

// NewMergeStore opens a backend whose read-modify-write is a merge operand.
func NewMergeStore(ctx context.Context, opts Options) (state.Backend, error) {
	return open(ctx, state.KindLSMMerge, opts)
}

func open(ctx context.Context, kind state.Kind, opts Options) (state.Backend, error) {
	opts = opts.withDefaults()
	log := logging.FromContext(ctx).With("backend", kind, "dir", opts.Dir)
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating store directory %s", opts.Dir)
	}

	cache := pebble.NewCache(opts.CacheSize + opts.HashIndexSize)
	defer cache.Unref()

	dbOpts := opts.pebbleOptions(cache)
	dbOpts.Logger = log
	if kind == state.KindLSMMerge {
		dbOpts.Merger = semigroupMerger
	}
	db, err := pebble.Open(opts.Dir, dbOpts)
	if err != nil {
		return nil, errors.Wrap(err, "opening pebble database")
	}
	log.Infow("Opened LSM state",
		zap.Int("blockSize", opts.BlockSize),
		zap.Int64("cacheSize", opts.CacheSize),
		zap.Uint64("writeBufferSize", opts.WriteBufferSize),
		zap.Int64("hashIndexSize", opts.HashIndexSize))
	return &lsmStore{
		kind:   kind,
		opts:   opts,
		db:     db,
		tables: make(map[string]*lsmTable),
		log:    log,
	}, nil
}

func (s *lsmStore) Kind() state.Kind { return s.kind }

func (s *lsmStore) Ordered() bool { return true }

func (s *lsmStore) Table(name string) (state.Table, error) {
	if s.db == nil {
		return nil, state.ErrClosed
	}
	if t, ok := s.tables[name]; ok {
		return t, nil
	}
	t := &lsmTable{store: s, prefix: state.EncodeNamespace(name), merge: s.kind == state.KindLSMMerge}
	s.tables[name] = t
	return t, nil
}

func (s *lsmStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if s.opts.RemoveOnClose {
		err = multierr.Append(err, os.RemoveAll(s.opts.Dir))
	}
	return err
}

type lsmTable struct {
	store  *lsmStore
	prefix []byte
	// merge tables tag every stored value, see merge.go
	merge bool
}

func (t *lsmTable) PrefixLen() int { return len(t.prefix) }

func (t *lsmTable) db() (*pebble.DB, error) {
	if t.store.db == nil {
		return nil, state.ErrClosed
	}
	return t.store.db, nil
}

func (t *lsmTable) Get(key []byte) ([]byte, bool, error) {
	db, err := t.db()
	if err != nil {
		return nil, false, err
	}
	v, closer, err := db.Get(state.PrefixedKey(t.prefix, key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	if t.merge {
		if v, err = untag(v); err != nil {
			return nil, false, err
		}
	}
	return append([]byte(nil), v...), true, nil
}

func (t *lsmTable) Put(key, value []byte) error {
	db, err := t.db()
	if err != nil {
		return err
	}
	if t.merge {
		value = tag(plainTag, value)
	}
	return db.Set(state.PrefixedKey(t.prefix, key), value, pebble.NoSync)
}

func (t *lsmTable) Delete(key []byte) error {
	db, err := t.db()
	if err != nil {
		return err
	}
	return db.Delete(state.PrefixedKey(t.prefix, key), pebble.NoSync)
}

func (t *lsmTable) RMW(key, delta []byte, sg codec.Semigroup) error {
	db, err := t.db()
	if err != nil {
		return err
	}
	if t.merge {
		return db.Merge(state.PrefixedKey(t.prefix, key), tag(sg.ID(), delta), pebble.NoSync)
	}
	existing, ok, err := t.Get(key)
	if err != nil {
		return err
	}
	if ok {
		if delta, err = sg.Combine(existing, delta); err != nil {
			return err
		}
	}
	return t.Put(key, delta)
}

func (t *lsmTable) Iter(from []byte) (state.Iterator, error) {
	db, err := t.db()
	if err != nil {
		return nil, err
	}
	it, err := db.NewIter(&pebble.IterOptions{
		LowerBound: state.PrefixedKey(t.prefix, from),
		UpperBound: state.PrefixUpperBound(t.prefix),
	})
	if err != nil {
		return nil, err
	}
	return &lsmIterator{it: it, prefixLen: len(t.prefix), merge: t.merge}, nil
}

type lsmIterator struct {
	it        *pebble.Iterator
	prefixLen int
	merge     bool
	started   bool
	err       error
}

func (i *lsmIterator) Next() bool {
	if i.err != nil {
		return false
	}
	if !i.started {
		i.started = true
		return i.it.First()
	}
	return i.it.Next()
}

func (i *lsmIterator) Key() []byte {
	return i.it.Key()[i.prefixLen:]
}

func (i *lsmIterator) Value() []byte {
	v := i.it.Value()
	if !i.merge {
		return v
	}
	v, err := untag(v)
	if err != nil {
		i.err = err
	}
	return v
}

func (i *lsmIterator) Err() error {
	if i.err != nil {
		return i.err
	}
	return i.it.Error()
}

func (i *lsmIterator) Close() error {
	return i.it.Close()
}
