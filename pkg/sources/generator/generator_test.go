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

package generator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numaproj/panestate/pkg/event"
	"github.com/numaproj/panestate/pkg/shared/logging"
)

func testContext() context.Context {
	return logging.WithLogger(context.Background(), logging.NewNopLogger())
}

func collect(t *testing.T, cfg Config) []event.Batch {
	g, err := New(testContext(), cfg)
	require.NoError(t, err)
	out := make(chan event.Batch, 1024)
	require.NoError(t, g.Run(testContext(), out))
	var batches []event.Batch
	for b := range out {
		batches = append(batches, b)
	}
	return batches
}

func TestGenerator(t *testing.T) {
	batches := collect(t, Config{Rate: 1000, Keys: 10, Duration: time.Second, Epoch: 100 * time.Millisecond, Seed: 7})
	require.Len(t, batches, 10)

	var total int
	var last uint64
	for i, b := range batches {
		assert.Equal(t, uint64(i+1)*uint64(100*time.Millisecond)-1, b.Epoch)
		assert.Len(t, b.Events, 100)
		for _, e := range b.Events {
			assert.Less(t, e.Key, uint64(10))
			assert.LessOrEqual(t, e.Timestamp, b.Epoch)
			if total > 0 {
				assert.Equal(t, last+uint64(time.Millisecond), e.Timestamp)
			}
			last = e.Timestamp
			total++
		}
	}
	assert.Equal(t, 1000, total)
}

func TestGenerator_Deterministic(t *testing.T) {
	cfg := Config{Rate: 100, Keys: 1000, Duration: time.Second, Epoch: time.Second, Seed: 42}
	assert.Equal(t, collect(t, cfg), collect(t, cfg))
}

func TestGenerator_Throttle(t *testing.T) {
	start := time.Now()
	batches := collect(t, Config{Rate: 1000, Keys: 10, Duration: time.Second, Epoch: 100 * time.Millisecond, Throttle: 1e6})
	assert.Len(t, batches, 10)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestGenerator_Cancel(t *testing.T) {
	g, err := New(testContext(), Config{Rate: 10, Keys: 1, Duration: time.Hour, Epoch: time.Second})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(testContext())
	cancel()
	out := make(chan event.Batch)
	assert.ErrorIs(t, g.Run(ctx, out), context.Canceled)
	_, ok := <-out
	assert.False(t, ok)
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(testContext(), Config{Keys: 1, Epoch: time.Second})
	assert.Error(t, err)
	_, err = New(testContext(), Config{Rate: 2e9, Keys: 1, Epoch: time.Second})
	assert.Error(t, err)
}
