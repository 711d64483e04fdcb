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

package state

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"

	"github.com/numaproj/panestate/pkg/shared/codec"
)

// Handle is a naming scope over a shared Backend. Handles derived from one
// another share the backend, which is closed when the last handle is closed.
type Handle struct {
	backend Backend
	name    string
	refs    *atomic.Int32
	closed  atomic.Bool
}

// NewHandle returns the root handle of backend.
func NewHandle(backend Backend, name string) *Handle {
	return &Handle{backend: backend, name: name, refs: atomic.NewInt32(1)}
}

// Name returns the scope of this handle.
func (h *Handle) Name() string { return h.name }

// Backend returns the shared backend.
func (h *Handle) Backend() Backend { return h.backend }

// Sub returns a handle scoped under name. The caller must close it.
func (h *Handle) Sub(name string) *Handle {
	h.refs.Inc()
	return &Handle{backend: h.backend, name: h.qualify(name), refs: h.refs}
}

// Clone returns another handle with the same scope. The caller must close it.
func (h *Handle) Clone() *Handle {
	h.refs.Inc()
	return &Handle{backend: h.backend, name: h.name, refs: h.refs}
}

// Close releases this handle and closes the backend if it was the last one.
func (h *Handle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	if h.refs.Dec() == 0 {
		return h.backend.Close()
	}
	return nil
}

func (h *Handle) qualify(name string) string {
	if h.name == "" {
		return name
	}
	return h.name + "." + name
}

func (h *Handle) table(name string) (string, Table, error) {
	if h.closed.Load() {
		return "", nil, ErrClosed
	}
	full := h.qualify(name)
	t, err := h.backend.Table(full)
	if err != nil {
		return "", nil, errors.Wrapf(err, "opening table %s", full)
	}
	return full, t, nil
}

// Count returns the counter called name in this scope.
func (h *Handle) Count(name string) (*ManagedCount, error) {
	full, t, err := h.table(name)
	if err != nil {
		return nil, err
	}
	return NewManagedCount(full, h.backend.Kind(), t), nil
}

// Map returns the map called name in the scope of h.
func Map[K, V any](h *Handle, name string, keys codec.Codec[K], values codec.ValueCodec[V]) (*ManagedMap[K, V], error) {
	full, t, err := h.table(name)
	if err != nil {
		return nil, err
	}
	return NewManagedMap[K, V](full, h.backend.Kind(), t, keys, values), nil
}

// Value returns the single value called name in the scope of h.
func Value[V any](h *Handle, name string, values codec.ValueCodec[V]) (*ManagedValue[V], error) {
	full, t, err := h.table(name)
	if err != nil {
		return nil, err
	}
	return NewManagedValue[V](full, h.backend.Kind(), t, values), nil
}
