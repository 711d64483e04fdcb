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

package dataflow

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/panestate/pkg/event"
	"github.com/numaproj/panestate/pkg/state"
	"github.com/numaproj/panestate/pkg/state/memory"
	"github.com/numaproj/panestate/pkg/window/operators"
)

func openMemory(ctx context.Context, _ int) (state.Backend, error) {
	return memory.NewMemStore(ctx), nil
}

func keyedCount(ctx context.Context, p operators.Params) (operators.Operator, error) {
	return operators.NewKeyedCount(ctx, p)
}

func TestPipeline(t *testing.T) {
	c := &collector{}
	p, err := NewPipeline(3, testWindow, openMemory, keyedCount, WithOutput(c.output), WithBuffer(1))
	require.NoError(t, err)

	batches := make(chan event.Batch, 4)
	batches <- event.Batch{Epoch: ms(500), Events: []event.Event{{Key: 7, Timestamp: ms(500)}}}
	batches <- event.Batch{Epoch: ms(1500), Events: []event.Event{{Key: 7, Timestamp: ms(1500)}, {Key: 8, Timestamp: ms(1500)}}}
	batches <- event.Batch{Epoch: ms(2500), Events: []event.Event{{Key: 9, Timestamp: ms(2500)}}}
	close(batches)
	require.NoError(t, p.Run(testContext(), batches))

	assert.Equal(t, []operators.Result{
		{WindowEnd: ms(3000), Key: 7, Value: 2},
		{WindowEnd: ms(3000), Key: 8, Value: 1},
		{WindowEnd: ms(3000), Key: 9, Value: 1},
		{WindowEnd: ms(4000), Key: 7, Value: 1},
		{WindowEnd: ms(4000), Key: 8, Value: 1},
		{WindowEnd: ms(4000), Key: 9, Value: 1},
		{WindowEnd: ms(5000), Key: 9, Value: 1},
	}, c.sorted())
}

func TestPipeline_StopsOnError(t *testing.T) {
	p, err := NewPipeline(2, testWindow, openMemory, keyedCount)
	require.NoError(t, err)
	batches := make(chan event.Batch, 2)
	batches <- event.Batch{Epoch: ms(2500)}
	batches <- event.Batch{Epoch: ms(500)}
	close(batches)
	require.NoError(t, p.IsHealthy(testContext()))
	err = p.Run(testContext(), batches)
	require.Error(t, err)
	assert.True(t, errors.HasAssertionFailure(err))
	assert.Equal(t, err, p.IsHealthy(testContext()))
}

func TestPipeline_OpenError(t *testing.T) {
	boom := errors.New("boom")
	p, err := NewPipeline(2, testWindow, func(context.Context, int) (state.Backend, error) { return nil, boom }, keyedCount)
	require.NoError(t, err)
	batches := make(chan event.Batch)
	close(batches)
	assert.ErrorIs(t, p.Run(testContext(), batches), boom)
}

func TestNewPipeline_Validation(t *testing.T) {
	_, err := NewPipeline(0, testWindow, openMemory, keyedCount)
	assert.Error(t, err)
}
