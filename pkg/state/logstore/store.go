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
Package logstore adapts the embedded log engine in pkg/logkv to a state backend.

The engine only reclaims memory and retires asynchronous operations when its
session is refreshed, so the backend refreshes every RefreshEvery operations
and waits for every outstanding operation every CompleteEvery operations.
*/
package logstore

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/numaproj/panestate/pkg/logkv"
	"github.com/numaproj/panestate/pkg/shared/codec"
	"github.com/numaproj/panestate/pkg/shared/logging"
	"github.com/numaproj/panestate/pkg/state"
)

const (
	DefaultRefreshEvery  = 1 << 4
	DefaultCompleteEvery = 1 << 10
	DefaultReportEvery   = 1 << 20
)

// Options configures the log engine backend.
type Options struct {
	Name string
	// Dir holds the engine files.
	Dir       string
	TableSize uint64
	LogSize   uint64
	PageSize  uint64
	// RefreshEvery, CompleteEvery and ReportEvery are operation counts.
	RefreshEvery  uint64
	CompleteEvery uint64
	ReportEvery   uint64
	// RemoveOnClose deletes Dir when the backend is closed.
	RemoveOnClose bool
}

type logStore struct {
	opts    Options
	store   *logkv.Store
	session *logkv.Session
	ops     uint64
	tables  map[string]*logTable
	log     *zap.SugaredLogger
}

var _ state.Backend = (*logStore)(nil)

// NewLogStore opens a log engine in opts.Dir and starts its session.
func NewLogStore(ctx context.Context, opts Options) (state.Backend, error) {
	if opts.RefreshEvery == 0 {
		opts.RefreshEvery = DefaultRefreshEvery
	}
	if opts.CompleteEvery == 0 {
		opts.CompleteEvery = DefaultCompleteEvery
	}
	if opts.ReportEvery == 0 {
		opts.ReportEvery = DefaultReportEvery
	}
	store, err := logkv.Open(ctx, logkv.Options{
		Name:      opts.Name,
		Dir:       opts.Dir,
		TableSize: opts.TableSize,
		LogSize:   opts.LogSize,
		PageSize:  opts.PageSize,
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening log engine")
	}
	return &logStore{
		opts:    opts,
		store:   store,
		session: store.StartSession(),
		tables:  make(map[string]*logTable),
		log:     logging.FromContext(ctx).With("backend", state.KindLog, "dir", opts.Dir),
	}, nil
}

func (l *logStore) Kind() state.Kind { return state.KindLog }

func (l *logStore) Ordered() bool { return false }

func (l *logStore) Table(name string) (state.Table, error) {
	if t, ok := l.tables[name]; ok {
		return t, nil
	}
	t := &logTable{store: l, prefix: state.EncodeNamespace(name)}
	l.tables[name] = t
	return t, nil
}

// maintain runs the refresh cadence after every operation.
func (l *logStore) maintain() error {
	l.ops++
	if l.ops%l.opts.RefreshEvery == 0 {
		if err := l.session.Refresh(); err != nil {
			return errors.Wrap(err, "refreshing log session")
		}
	}
	if l.ops%l.opts.CompleteEvery == 0 {
		if err := l.session.CompletePending(true); err != nil {
			return errors.Wrap(err, "completing pending log operations")
		}
	}
	if l.ops%l.opts.ReportEvery == 0 {
		l.log.Infow("Log engine size", zap.Uint64("operations", l.ops), zap.Uint64("size", l.store.Size()))
	}
	return nil
}

func (l *logStore) Close() error {
	err := l.session.CompletePending(true)
	err = multierr.Append(err, l.store.Close())
	if l.opts.RemoveOnClose {
		err = multierr.Append(err, os.RemoveAll(l.opts.Dir))
	}
	return err
}

type logTable struct {
	store  *logStore
	prefix []byte
}

func (t *logTable) PrefixLen() int { return len(t.prefix) }

func (t *logTable) Get(key []byte) ([]byte, bool, error) {
	st, v, op, err := t.store.session.Read(state.PrefixedKey(t.prefix, key))
	if err != nil {
		return nil, false, err
	}
	if st == logkv.StatusPending {
		<-op.Done()
		if v, err = op.Result(); err != nil {
			return nil, false, err
		}
		st = logkv.StatusOK
	}
	if err := t.store.maintain(); err != nil {
		return nil, false, err
	}
	return v, st == logkv.StatusOK, nil
}

func (t *logTable) Put(key, value []byte) error {
	if _, err := t.store.session.Upsert(state.PrefixedKey(t.prefix, key), value); err != nil {
		return err
	}
	return t.store.maintain()
}

func (t *logTable) Delete(key []byte) error {
	if _, err := t.store.session.Delete(state.PrefixedKey(t.prefix, key)); err != nil {
		return err
	}
	return t.store.maintain()
}

func (t *logTable) RMW(key, delta []byte, sg codec.Semigroup) error {
	if _, err := t.store.session.RMW(state.PrefixedKey(t.prefix, key), delta, sg.Combine); err != nil {
		return err
	}
	return t.store.maintain()
}

func (t *logTable) Iter([]byte) (state.Iterator, error) {
	return nil, state.ErrIterationUnsupported
}
