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

package memory

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/panestate/pkg/shared/codec"
	"github.com/numaproj/panestate/pkg/shared/logging"
	"github.com/numaproj/panestate/pkg/state"
	"github.com/numaproj/panestate/pkg/state/statetest"
)

func newBackend(*testing.T) state.Backend {
	return NewMemStore(logging.WithLogger(context.Background(), logging.NewNopLogger()))
}

func TestMemStore_Conformance(t *testing.T) {
	statetest.RunConformance(t, newBackend)
}

func TestMemStore_Close(t *testing.T) {
	b := newBackend(t)
	h := state.NewHandle(b, "q")
	clone := h.Clone()
	m, err := state.Map[uint64, uint64](h, "panes", codec.Uint64{}, codec.Uint64{})
	require.NoError(t, err)
	require.NoError(t, m.Insert(1, 1))

	// the backend stays open while a clone is alive
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	_, err = b.Table("q.panes")
	require.NoError(t, err)

	require.NoError(t, clone.Close())
	_, err = b.Table("q.panes")
	assert.True(t, errors.Is(err, state.ErrClosed))
	_, _, err = m.Get(1)
	assert.True(t, errors.Is(err, state.ErrClosed))
}
